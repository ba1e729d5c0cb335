// Package patch provides the patch entry codec and the patch store used by
// the frame-hook patch engine.
package patch

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedLine is returned when a patch line cannot be decoded.
var ErrMalformedLine = errors.New("malformed patch line")

// ErrUnknownType is returned when a patch line names a write width that is
// not one of byte, word or dword. It always wraps ErrMalformedLine.
var ErrUnknownType = fmt.Errorf("%w: unknown patch type", ErrMalformedLine)

// Type is the write width of a patch entry.
type Type uint8

// The order of these constants matches the order of typeNames and must
// not change.
const (
	// Type8Bit writes a single byte.
	Type8Bit Type = iota
	// Type16Bit writes a halfword ("word" in configuration files).
	Type16Bit
	// Type32Bit writes a full word ("dword" in configuration files).
	Type32Bit
)

var typeNames = [...]string{
	"byte",
	"word",
	"dword",
}

// TypeName returns the configuration-file name of a patch type. It returns
// an empty string for values outside the known widths.
func TypeName(t Type) string {
	if int(t) >= len(typeNames) {
		return ""
	}
	return typeNames[t]
}

// ParseType returns the patch type for a configuration-file name. Matching
// is case-sensitive.
func ParseType(name string) (Type, bool) {
	for i, n := range typeNames {
		if n == name {
			return Type(i), true
		}
	}
	return 0, false
}

// String implements fmt.Stringer.
func (t Type) String() string {
	if name := TypeName(t); name != "" {
		return name
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// Size returns the width of the type in bytes.
func (t Type) Size() int {
	switch t {
	case Type8Bit:
		return 1
	case Type16Bit:
		return 2
	case Type32Bit:
		return 4
	}
	return 0
}

// Entry is a single memory write.
type Entry struct {
	// Address is the effective address written to.
	Address uint32
	// Value is truncated to the width of Type when written.
	Value uint32
	// Type is the write width.
	Type Type
	// Conditional entries only write when the current memory content,
	// read at the same width, equals Comparand.
	Conditional bool
	Comparand   uint32
}

// ParseEntry decodes a patch line of the form
// address:type:value[:comparand]. The first '=' in the line is treated as
// a ':' separator.
func ParseEntry(line string) (Entry, error) {
	line = strings.Replace(line, "=", ":", 1)
	items := strings.Split(line, ":")

	var entry Entry

	if len(items) < 3 {
		return entry, fmt.Errorf("%w: %q has %d fields", ErrMalformedLine, line, len(items))
	}

	var err error

	if entry.Address, err = parseU32(items[0]); err != nil {
		return Entry{}, fmt.Errorf("%w: bad address: %v", ErrMalformedLine, err)
	}

	if entry.Value, err = parseU32(items[2]); err != nil {
		return Entry{}, fmt.Errorf("%w: bad value: %v", ErrMalformedLine, err)
	}

	if len(items) >= 4 {
		if entry.Comparand, err = parseU32(items[3]); err != nil {
			return Entry{}, fmt.Errorf("%w: bad comparand: %v", ErrMalformedLine, err)
		}
		entry.Conditional = true
	}

	t, ok := ParseType(items[1])
	if !ok {
		return Entry{}, fmt.Errorf("%w %q", ErrUnknownType, items[1])
	}
	entry.Type = t

	return entry, nil
}

// SerializeEntry encodes an entry in the canonical form accepted by
// ParseEntry.
func SerializeEntry(e Entry) string {
	if e.Conditional {
		return fmt.Sprintf("0x%08X:%s:0x%08X:0x%08X", e.Address, TypeName(e.Type), e.Value, e.Comparand)
	}
	return fmt.Sprintf("0x%08X:%s:0x%08X", e.Address, TypeName(e.Type), e.Value)
}

// String implements fmt.Stringer.
func (e Entry) String() string {
	return SerializeEntry(e)
}

// ParseU32 parses an unsigned 32-bit integer using the same rules as patch
// lines: a 0x prefix selects hexadecimal, a leading 0 octal, otherwise
// decimal.
func ParseU32(s string) (uint32, error) {
	return parseU32(s)
}

func parseU32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
