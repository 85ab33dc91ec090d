// Package mcpi provides the shared building blocks of the Minecraft: Pi Edition
// API protocol client: commands, connection options, error values, the
// newline frame reader and the CP437 character table.
//
// The protocol is a plain text, line oriented exchange over one TCP stream.
// Every command is a single line such as "world.getBlock(0,0,0)\n". Query
// commands are answered by exactly one line, mutations normally are not
// answered at all. Lines carry no request identifier, so a client must match
// responses to requests purely by transmission order.
//
// Concrete connections live in sub packages:
//   - rawconn: a single, non goroutine-safe connection that writes a command
//     and optionally waits for its response.
//   - queued: a goroutine-safe handle that serializes many callers onto one
//     rawconn.Connection through a bounded queue and a single worker.
//
// Both satisfy the Protocol interface.
//
// Command Classification:
//
// Each Command carries a HasResponse flag. A connection reads a response only
// when HasResponse is true or ConnectOptions.AlwaysWaitForResponse is set.
// The server may answer a malformed mutation with "Fail"; waiting for every
// command surfaces such failures at the cost of one ResponseTimeout per
// mutation. Response text, including "Fail", is returned verbatim.
package mcpi
