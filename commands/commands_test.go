package commands

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-mcpi/mcpi"
)

func TestHasResponse(t *testing.T) {
	require := require.New(t)

	hasResponse, known := HasResponse("world.getBlock")
	require.True(known)
	require.True(hasResponse)

	hasResponse, known = HasResponse("world.setBlock")
	require.True(known)
	require.False(hasResponse)

	_, known = HasResponse("world.explode")
	require.False(known)

	require.Len(Names(), 16)
	require.IsIncreasing(Names())
}

func TestEncoders(t *testing.T) {
	tests := []struct {
		name        string
		cmd         mcpi.Command
		line        string
		hasResponse bool
	}{
		{name: "get block", cmd: GetBlock(1, -2, 3), line: "world.getBlock(1,-2,3)", hasResponse: true},
		{name: "get block with data", cmd: GetBlockWithData(0, 0, 0), line: "world.getBlockWithData(0,0,0)", hasResponse: true},
		{name: "set block", cmd: SetBlock(1, 2, 3, 4), line: "world.setBlock(1,2,3,4)"},
		{name: "set block with data", cmd: SetBlock(1, 2, 3, 35, 14), line: "world.setBlock(1,2,3,35,14)"},
		{name: "set blocks", cmd: SetBlocks(0, 0, 0, 9, 9, 9, 1), line: "world.setBlocks(0,0,0,9,9,9,1)"},
		{name: "set blocks with data", cmd: SetBlocks(0, 0, 0, 1, 1, 1, 35, 2), line: "world.setBlocks(0,0,0,1,1,1,35,2)"},
		{name: "get height", cmd: GetHeight(5, -5), line: "world.getHeight(5,-5)", hasResponse: true},
		{name: "player ids", cmd: GetPlayerIDs(), line: "world.getPlayerIds()", hasResponse: true},
		{name: "player get pos", cmd: PlayerGetPos(), line: "player.getPos()", hasResponse: true},
		{name: "player set pos", cmd: PlayerSetPos(0.5, 64, -1.25), line: "player.setPos(0.5,64,-1.25)"},
		{name: "player get tile", cmd: PlayerGetTile(), line: "player.getTile()", hasResponse: true},
		{name: "block hits", cmd: EventsBlockHits(), line: "events.block.hits()", hasResponse: true},
		{name: "chat posts", cmd: EventsChatPosts(), line: "events.chat.posts()", hasResponse: true},
		{name: "events clear", cmd: EventsClear(), line: "events.clear()"},
		{name: "camera fixed", cmd: CameraModeSetFixed(), line: "camera.mode.setFixed()"},
		{name: "camera normal", cmd: CameraModeSetNormal(), line: "camera.mode.setNormal()"},
		{name: "camera normal target", cmd: CameraModeSetNormal(7), line: "camera.mode.setNormal(7)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.line+"\n", string(tt.cmd.Bytes()))
			require.Equal(t, tt.hasResponse, tt.cmd.HasResponse())
		})
	}
}

func TestWorldSetting(t *testing.T) {
	require := require.New(t)

	cmd, err := WorldSetting(SettingWorldImmutable, true)
	require.NoError(err)
	require.Equal("world.setting(world_immutable,1)\n", string(cmd.Bytes()))
	require.False(cmd.HasResponse())

	_, err = WorldSetting("", false)
	require.ErrorIs(err, mcpi.ErrInvalidCommand)

	_, err = WorldSetting("bad\nkey", false)
	require.ErrorIs(err, ErrNewlineInField)
}

func TestChatPost(t *testing.T) {
	require := require.New(t)

	cmd, err := ChatPost("I am so happy ♥")
	require.NoError(err)
	require.Equal([]byte("chat.post(I am so happy \x03)\n"), cmd.Bytes())
	require.False(cmd.HasResponse())

	cmd, err = ChatPost("snow ☃ man")
	require.NoError(err)
	require.Equal("chat.post(snow ? man)\n", string(cmd.Bytes()))

	_, err = ChatPost("two\nlines")
	require.ErrorIs(err, ErrNewlineInField)
}

func TestNew(t *testing.T) {
	_, err := New("world.explode", "1")
	require.ErrorIs(t, err, ErrUnknownCommand)

	cmd, err := New("world.getBlock", "1", "2", "3")
	require.NoError(t, err)
	require.Equal(t, GetBlock(1, 2, 3).Bytes(), cmd.Bytes())
}

func TestParseResponses(t *testing.T) {
	require := require.New(t)

	vals, err := ParseInts("35,14")
	require.NoError(err)
	require.Equal([]int{35, 14}, vals)

	vals, err = ParseInts("")
	require.NoError(err)
	require.Empty(vals)

	_, err = ParseInts("Fail")
	require.ErrorIs(err, ErrBadResponse)
	require.True(IsFail("Fail"))
	require.False(IsFail("fail"))

	vec, err := ParseVec3("0.5,64.0,-3")
	require.NoError(err)
	require.Equal([3]float64{0.5, 64, -3}, vec)

	_, err = ParseVec3("1,2")
	require.ErrorIs(err, ErrBadResponse)

	hits, err := ParseBlockHits("1,2,3,1,42|4,5,6,0,42")
	require.NoError(err)
	require.Equal([]BlockHit{
		{X: 1, Y: 2, Z: 3, Face: 1, EntityID: 42},
		{X: 4, Y: 5, Z: 6, Face: 0, EntityID: 42},
	}, hits)

	hits, err = ParseBlockHits("")
	require.NoError(err)
	require.Empty(hits)

	_, err = ParseBlockHits("1,2,3")
	require.ErrorIs(err, ErrBadResponse)
}
