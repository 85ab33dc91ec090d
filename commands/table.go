// Package commands encodes a representative set of MCPI commands.
//
// Whether a command gets a response is a fixed property of its name, kept in
// a static table. Encoders join arguments with commas and omit trailing
// optional arguments entirely instead of leaving empty fields.
package commands

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/arloliu/go-mcpi/mcpi"
)

var (
	// ErrUnknownCommand indicates a command name missing from the table.
	ErrUnknownCommand = errors.New("commands: unknown command")

	// ErrNewlineInField indicates a string argument containing a line feed,
	// which would end the command line early.
	ErrNewlineInField = errors.New("commands: line feed in field")
)

// responses maps each known command name to whether the server answers it.
var responses = map[string]bool{
	"world.getBlock":         true,
	"world.getBlockWithData": true,
	"world.setBlock":         false,
	"world.setBlocks":        false,
	"world.getHeight":        true,
	"world.getPlayerIds":     true,
	"world.setting":          false,
	"chat.post":              false,
	"player.getPos":          true,
	"player.setPos":          false,
	"player.getTile":         true,
	"events.block.hits":      true,
	"events.chat.posts":      true,
	"events.clear":           false,
	"camera.mode.setFixed":   false,
	"camera.mode.setNormal":  false,
}

// HasResponse reports whether the server answers the named command, and
// whether the name is known at all.
func HasResponse(name string) (hasResponse bool, known bool) {
	hasResponse, known = responses[name]
	return hasResponse, known
}

// Names returns the known command names in sorted order.
func Names() []string {
	names := make([]string, 0, len(responses))
	for name := range responses {
		names = append(names, name)
	}
	slices.Sort(names)

	return names
}

// New builds the named command from already formatted arguments.
func New(name string, args ...string) (mcpi.Command, error) {
	hasResponse, ok := responses[name]
	if !ok {
		return mcpi.Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}

	for _, arg := range args {
		if strings.ContainsAny(arg, "\r\n") {
			return mcpi.Command{}, fmt.Errorf("%w: %s argument %q", ErrNewlineInField, name, arg)
		}
	}

	var sb strings.Builder
	sb.Grow(len(name) + 2 + 8*len(args))
	sb.WriteString(name)
	sb.WriteByte('(')
	sb.WriteString(strings.Join(args, ","))
	sb.WriteByte(')')

	return mcpi.NewCommand([]byte(sb.String()), hasResponse)
}

func mustNew(name string, args ...string) mcpi.Command {
	cmd, err := New(name, args...)
	if err != nil {
		panic(err)
	}

	return cmd
}
