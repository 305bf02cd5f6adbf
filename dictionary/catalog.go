// Package dictionary implements the message catalog and data dictionary of
// spec §3 and §4.6: the keyed collection of commands, replies and outputs
// discovered at build time, ID assignment, and the compressed JSON
// self-description served over the wire via identify.
package dictionary

import "fmt"

// Kind distinguishes the three message catalog variants of spec §3.
type Kind int

const (
	// Command is incoming (host → MCU) and has a handler.
	Command Kind = iota
	// Reply is outgoing (MCU → host), structured, named like a command.
	Reply
	// Output is outgoing, a printf-like format string whose specifiers
	// define its argument types. The format string is both its key and
	// its descriptor.
	Output
)

func (k Kind) String() string {
	switch k {
	case Command:
		return "command"
	case Reply:
		return "reply"
	case Output:
		return "output"
	default:
		return "unknown"
	}
}

// ArgType is one of the printf-style argument types a descriptor string
// can carry (spec §3 "descriptor string").
type ArgType int

const (
	ArgU32 ArgType = iota
	ArgI32
	ArgU16
	ArgI16
	ArgU8
	ArgBytes
	ArgString
)

// Code returns the printf-style type code used in a descriptor string.
func (t ArgType) Code() string {
	switch t {
	case ArgU32:
		return "%u"
	case ArgI32:
		return "%i"
	case ArgU16:
		return "%hu"
	case ArgI16:
		return "%hi"
	case ArgU8:
		return "%c"
	case ArgBytes, ArgString:
		return "%*s"
	default:
		return "%?"
	}
}

// Arg is one declared argument of a command, reply, or a %-specifier
// parsed out of an output format string.
type Arg struct {
	Name string
	Type ArgType
}

// Message is one entry of the catalog: a command, reply, or output.
// For Output, Name holds the literal format string (its key and
// descriptor are the same text).
type Message struct {
	Kind       Kind
	Name       string
	Args       []Arg
	ID         *int // nil until AssignIDs runs
	ModulePath string
	HasContext bool
}

// Descriptor returns the catalog key / dictionary key for this message:
// "<name> arg1=%fmt1 arg2=%fmt2 ..." for commands/replies, or the literal
// format string for outputs (spec §3 "descriptor string").
func (m *Message) Descriptor() string {
	if m.Kind == Output {
		return m.Name
	}
	d := m.Name
	for _, a := range m.Args {
		d += " " + a.Name + "=" + a.Type.Code()
	}
	return d
}

func sameSignature(a, b *Message) bool {
	if a.Kind != b.Kind || len(a.Args) != len(b.Args) {
		return false
	}
	for i := range a.Args {
		if a.Args[i] != b.Args[i] {
			return false
		}
	}
	return true
}

// BuildError is a fatal, user-visible build-time error (spec §7).
type BuildError struct {
	Pos string // "<file>:<line>" when known, else empty
	Msg string
}

func (e *BuildError) Error() string {
	if e.Pos != "" {
		return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
	}
	return e.Msg
}

func errf(pos, format string, args ...interface{}) error {
	return &BuildError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
