package emit

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/klipmcu/klipmcu/dictionary"
)

// sanitizeIdent turns an arbitrary string into a valid Go identifier
// fragment, for naming static-string constants after their own text.
func sanitizeIdent(s string) string {
	var b strings.Builder
	upperNext := true
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if upperNext {
				b.WriteRune(unicode.ToUpper(r))
				upperNext = false
			} else {
				b.WriteRune(r)
			}
		default:
			upperNext = true
		}
	}
	out := b.String()
	if out == "" {
		return "Empty"
	}
	if unicode.IsDigit(rune(out[0])) {
		return "S" + out
	}
	return out
}

// outputGoName derives a Go function-name fragment for an output format
// string, since the format string itself (the output's dictionary key)
// is rarely a valid identifier.
func outputGoName(format string) string {
	return sanitizeIdent(format)
}

// outputArgs parses the printf-style %-specifiers out of an output format
// string into positional arguments (spec §3 "descriptor string"):
// %u→u32, %i→i32, %hu→u16, %hi→i16, %c→u8, %*s→bytes.
func outputArgs(format string) []dictionary.Arg {
	var args []dictionary.Arg
	n := 0
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			continue
		}
		rest := format[i+1:]
		switch {
		case strings.HasPrefix(rest, "hu"):
			args = append(args, dictionary.Arg{Name: fmt.Sprintf("arg%d", n), Type: dictionary.ArgU16})
			i += 2
		case strings.HasPrefix(rest, "hi"):
			args = append(args, dictionary.Arg{Name: fmt.Sprintf("arg%d", n), Type: dictionary.ArgI16})
			i += 2
		case strings.HasPrefix(rest, "*s"):
			args = append(args, dictionary.Arg{Name: fmt.Sprintf("arg%d", n), Type: dictionary.ArgBytes})
			i += 2
		case strings.HasPrefix(rest, "u"):
			args = append(args, dictionary.Arg{Name: fmt.Sprintf("arg%d", n), Type: dictionary.ArgU32})
			i++
		case strings.HasPrefix(rest, "i"):
			args = append(args, dictionary.Arg{Name: fmt.Sprintf("arg%d", n), Type: dictionary.ArgI32})
			i++
		case strings.HasPrefix(rest, "c"):
			args = append(args, dictionary.Arg{Name: fmt.Sprintf("arg%d", n), Type: dictionary.ArgU8})
			i++
		default:
			continue
		}
		n++
	}
	return args
}

// argGoType returns the Go parameter type a wire argument decodes to.
func argGoType(t dictionary.ArgType) string {
	switch t {
	case dictionary.ArgU32:
		return "uint32"
	case dictionary.ArgI32:
		return "int32"
	case dictionary.ArgU16:
		return "uint16"
	case dictionary.ArgI16:
		return "int16"
	case dictionary.ArgU8:
		return "uint8"
	case dictionary.ArgBytes:
		return "[]byte"
	case dictionary.ArgString:
		return "string"
	default:
		return "interface{}"
	}
}

// argDecodeFunc returns the protocol decode function for a wire argument.
func argDecodeFunc(t dictionary.ArgType) string {
	switch t {
	case dictionary.ArgU32:
		return "protocol.DecodeVLQUint"
	case dictionary.ArgI32:
		return "protocol.DecodeVLQInt"
	case dictionary.ArgU16:
		return "protocol.DecodeVLQUint16"
	case dictionary.ArgI16:
		return "protocol.DecodeVLQInt16"
	case dictionary.ArgU8:
		return "protocol.DecodeVLQUint8"
	case dictionary.ArgBytes:
		return "protocol.DecodeVLQBytes"
	case dictionary.ArgString:
		return "protocol.DecodeVLQString"
	default:
		return "protocol.DecodeVLQUint"
	}
}

// argEncodeFunc returns the protocol encode function for a wire argument.
func argEncodeFunc(t dictionary.ArgType) string {
	switch t {
	case dictionary.ArgU32:
		return "protocol.EncodeVLQUint"
	case dictionary.ArgI32:
		return "protocol.EncodeVLQInt"
	case dictionary.ArgU16, dictionary.ArgI16:
		return "protocol.EncodeVLQUint"
	case dictionary.ArgU8:
		return "protocol.EncodeVLQUint"
	case dictionary.ArgBytes:
		return "protocol.EncodeVLQBytes"
	case dictionary.ArgString:
		return "protocol.EncodeVLQString"
	default:
		return "protocol.EncodeVLQUint"
	}
}

// argEncodeCast returns the Go expression wrapping v so it matches the
// width the chosen encode function expects.
func argEncodeCast(t dictionary.ArgType, v string) string {
	switch t {
	case dictionary.ArgU32:
		return v
	case dictionary.ArgI32:
		return v
	case dictionary.ArgU16, dictionary.ArgU8:
		return "uint32(" + v + ")"
	case dictionary.ArgI16:
		return "uint32(uint16(" + v + "))"
	default:
		return v
	}
}
