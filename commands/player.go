package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/go-mcpi/mcpi"
)

// ChatPost posts a chat message. The text is encoded to CP437, with '?'
// replacing runes the code page can't represent.
func ChatPost(msg string) (mcpi.Command, error) {
	if strings.ContainsAny(msg, "\r\n") {
		return mcpi.Command{}, fmt.Errorf("%w: chat.post message", ErrNewlineInField)
	}

	payload := make([]byte, 0, len("chat.post()")+len(msg))
	payload = append(payload, "chat.post("...)
	payload = append(payload, mcpi.EncodeCP437Lossy(msg)...)
	payload = append(payload, ')')

	return mcpi.NewCommand(payload, false)
}

// PlayerGetPos queries the exact position of the host player.
func PlayerGetPos() mcpi.Command {
	return mustNew("player.getPos")
}

// PlayerSetPos moves the host player.
func PlayerSetPos(x, y, z float64) mcpi.Command {
	return mustNew("player.setPos", floats(x, y, z)...)
}

// PlayerGetTile queries the tile the host player stands on.
func PlayerGetTile() mcpi.Command {
	return mustNew("player.getTile")
}

// EventsBlockHits drains the queued block hit events.
func EventsBlockHits() mcpi.Command {
	return mustNew("events.block.hits")
}

// EventsChatPosts drains the queued chat events.
func EventsChatPosts() mcpi.Command {
	return mustNew("events.chat.posts")
}

// EventsClear discards all queued events.
func EventsClear() mcpi.Command {
	return mustNew("events.clear")
}

// CameraModeSetFixed fixes the camera in place.
func CameraModeSetFixed() mcpi.Command {
	return mustNew("camera.mode.setFixed")
}

// CameraModeSetNormal returns the camera to first person, optionally for the
// given entity.
func CameraModeSetNormal(entityID ...int) mcpi.Command {
	if len(entityID) > 0 {
		return mustNew("camera.mode.setNormal", strconv.Itoa(entityID[0]))
	}

	return mustNew("camera.mode.setNormal")
}
