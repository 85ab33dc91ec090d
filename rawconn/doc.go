// Package rawconn provides the raw connection to a Minecraft: Pi Edition API
// server.
//
// A raw Connection owns one stream and performs one request at a time: it
// writes a command and, if the command expects an answer (or the options ask
// to always wait), reads the next newline delimited frame as the response.
// The protocol carries no request identifiers, so responses are correlated by
// order only. Callers that share a connection should go through the queued
// package, which serializes all access through a single worker.
//
// A response that arrives after its timeout expired is remembered as owed and
// discarded before the next response is read, keeping later requests
// correlated with their own answers.
package rawconn
