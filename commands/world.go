package commands

import (
	"fmt"
	"strconv"

	"github.com/arloliu/go-mcpi/mcpi"
)

// World settings accepted by WorldSetting.
const (
	SettingWorldImmutable  = "world_immutable"
	SettingNametagsVisible = "nametags_visible"
)

func ints(vals ...int) []string {
	args := make([]string, len(vals))
	for i, v := range vals {
		args[i] = strconv.Itoa(v)
	}

	return args
}

func floats(vals ...float64) []string {
	args := make([]string, len(vals))
	for i, v := range vals {
		args[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}

	return args
}

func boolArg(v bool) string {
	if v {
		return "1"
	}

	return "0"
}

// GetBlock queries the block id at a tile position.
func GetBlock(x, y, z int) mcpi.Command {
	return mustNew("world.getBlock", ints(x, y, z)...)
}

// GetBlockWithData queries the block id and data value at a tile position.
func GetBlockWithData(x, y, z int) mcpi.Command {
	return mustNew("world.getBlockWithData", ints(x, y, z)...)
}

// SetBlock places a block. The data value is optional.
func SetBlock(x, y, z, id int, data ...int) mcpi.Command {
	args := ints(x, y, z, id)
	if len(data) > 0 {
		args = append(args, strconv.Itoa(data[0]))
	}

	return mustNew("world.setBlock", args...)
}

// SetBlocks fills the cuboid between two corners. The data value is optional.
func SetBlocks(x1, y1, z1, x2, y2, z2, id int, data ...int) mcpi.Command {
	args := ints(x1, y1, z1, x2, y2, z2, id)
	if len(data) > 0 {
		args = append(args, strconv.Itoa(data[0]))
	}

	return mustNew("world.setBlocks", args...)
}

// GetHeight queries the y of the highest non-air block in a column.
func GetHeight(x, z int) mcpi.Command {
	return mustNew("world.getHeight", ints(x, z)...)
}

// GetPlayerIDs queries the entity ids of all connected players.
func GetPlayerIDs() mcpi.Command {
	return mustNew("world.getPlayerIds")
}

// WorldSetting changes a boolean world setting.
func WorldSetting(key string, value bool) (mcpi.Command, error) {
	if key == "" {
		return mcpi.Command{}, fmt.Errorf("%w: empty world setting key", mcpi.ErrInvalidCommand)
	}

	return New("world.setting", key, boolArg(value))
}
