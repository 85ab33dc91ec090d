package mcpi

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// The game renders the control range 0x00-0x1F and 0x7F as glyphs, and 0xFF
// as a copyright sign, unlike the standard code page 437 mapping.
const cp437LowGlyphs = "\x00☺☻♥♦♣♠•◘○\n♂♀♪♫☼►◄↕‼¶§▬↨↑↓→←∟↔▲▼"

var (
	cp437ToRune [256]rune
	runeToCP437 map[rune]byte
)

func init() {
	low := []rune(cp437LowGlyphs)
	if len(low) != 0x20 {
		panic(fmt.Sprintf("mcpi: cp437 low glyph table has %d entries", len(low)))
	}

	copy(cp437ToRune[:], low)
	for b := 0x20; b < 0x100; b++ {
		cp437ToRune[b] = charmap.CodePage437.DecodeByte(byte(b))
	}
	cp437ToRune[0x7F] = '⌂'
	cp437ToRune[0xFF] = '©'

	runeToCP437 = make(map[rune]byte, len(cp437ToRune))
	for b, r := range cp437ToRune {
		if _, ok := runeToCP437[r]; !ok {
			runeToCP437[r] = byte(b)
		}
	}
}

// EncodeCP437 converts s to the game's CP437 variant. It fails on the first
// rune that has no CP437 representation.
func EncodeCP437(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i, r := range s {
		b, ok := runeToCP437[r]
		if !ok {
			return nil, fmt.Errorf("mcpi: rune %q at offset %d has no CP437 encoding", r, i)
		}
		out = append(out, b)
	}

	return out, nil
}

// EncodeCP437Lossy converts s to CP437, replacing unmappable runes with '?'.
func EncodeCP437Lossy(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		b, ok := runeToCP437[r]
		if !ok {
			b = '?'
		}
		out = append(out, b)
	}

	return out
}

// DecodeCP437 converts CP437 bytes to a UTF-8 string.
func DecodeCP437(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		sb.WriteRune(cp437ToRune[c])
	}

	return sb.String()
}

// DecodeResponse turns a frame into response text. The frame must be valid
// UTF-8 unless cp437 is set, in which case it is decoded through the CP437
// table and never fails.
func DecodeResponse(frame []byte, cp437 bool) (string, error) {
	if cp437 {
		return DecodeCP437(frame), nil
	}

	if !utf8.Valid(frame) {
		return "", fmt.Errorf("%w: invalid UTF-8 in %q", ErrMalformedResponse, frame)
	}

	return string(frame), nil
}
