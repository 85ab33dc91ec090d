package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// FailResponse is the text the server answers with when it rejects a command.
const FailResponse = "Fail"

// ErrBadResponse indicates a response that doesn't have the expected shape.
var ErrBadResponse = errors.New("commands: unexpected response")

// IsFail reports whether resp is the server's failure answer.
func IsFail(resp string) bool {
	return resp == FailResponse
}

// ParseInts parses a comma separated list of integers, such as the answer to
// world.getBlockWithData. An empty response yields no values.
func ParseInts(resp string) ([]int, error) {
	if resp == "" {
		return nil, nil
	}

	fields := strings.Split(resp, ",")
	vals := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrBadResponse, resp, err)
		}
		vals[i] = v
	}

	return vals, nil
}

// ParseVec3 parses an "x,y,z" position.
func ParseVec3(resp string) ([3]float64, error) {
	var vec [3]float64

	fields := strings.Split(resp, ",")
	if len(fields) != 3 {
		return vec, fmt.Errorf("%w: %q is not a position", ErrBadResponse, resp)
	}

	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return vec, fmt.Errorf("%w: %q: %w", ErrBadResponse, resp, err)
		}
		vec[i] = v
	}

	return vec, nil
}

// BlockHit is one event of events.block.hits.
type BlockHit struct {
	X, Y, Z  int
	Face     int
	EntityID int
}

// ParseBlockHits parses the "|" separated events of an events.block.hits
// answer.
func ParseBlockHits(resp string) ([]BlockHit, error) {
	if resp == "" {
		return nil, nil
	}

	events := strings.Split(resp, "|")
	hits := make([]BlockHit, 0, len(events))
	for _, event := range events {
		vals, err := ParseInts(event)
		if err != nil {
			return nil, err
		}

		if len(vals) != 5 {
			return nil, fmt.Errorf("%w: block hit %q", ErrBadResponse, event)
		}

		hits = append(hits, BlockHit{X: vals[0], Y: vals[1], Z: vals[2], Face: vals[3], EntityID: vals[4]})
	}

	return hits, nil
}
