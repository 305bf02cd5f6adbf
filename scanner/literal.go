package scanner

import (
	"fmt"
	"go/ast"
	"go/token"
	"os"
	"strconv"

	"github.com/klipmcu/klipmcu/dictionary"
)

// parseLiteral evaluates a constant expression statically, without
// executing the program: basic literals (numbers, strings, bools),
// signed unary literals, and parenthesized literals. Anything else
// (a function call, an identifier referring to another constant, a
// composite literal) is a build error — spec §7 "a constant whose
// literal cannot be represented as JSON."
func parseLiteral(e ast.Expr) (interface{}, error) {
	switch v := e.(type) {
	case *ast.BasicLit:
		return basicLitValue(v)
	case *ast.UnaryExpr:
		if v.Op != token.SUB {
			return nil, fmt.Errorf("unsupported unary operator %v in constant", v.Op)
		}
		inner, err := parseLiteral(v.X)
		if err != nil {
			return nil, err
		}
		switch n := inner.(type) {
		case int64:
			return -n, nil
		case float64:
			return -n, nil
		default:
			return nil, fmt.Errorf("cannot negate non-numeric constant")
		}
	case *ast.Ident:
		switch v.Name {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, fmt.Errorf("constant value must be a literal, not identifier %q", v.Name)
	case *ast.ParenExpr:
		return parseLiteral(v.X)
	default:
		return nil, fmt.Errorf("constant value must be a literal, not %T", e)
	}
}

func basicLitValue(lit *ast.BasicLit) (interface{}, error) {
	switch lit.Kind {
	case token.INT:
		n, err := strconv.ParseInt(lit.Value, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer literal %q: %w", lit.Value, err)
		}
		return n, nil
	case token.FLOAT:
		f, err := strconv.ParseFloat(lit.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float literal %q: %w", lit.Value, err)
		}
		return f, nil
	case token.STRING:
		str, err := strconv.Unquote(lit.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid string literal %q: %w", lit.Value, err)
		}
		return str, nil
	default:
		return nil, fmt.Errorf("unsupported literal kind %v", lit.Kind)
	}
}

// stringArg returns the string literal at call.Args[i], or an error if
// it isn't one.
func stringArg(call *ast.CallExpr, i int) (string, error) {
	if i >= len(call.Args) {
		return "", fmt.Errorf("expected at least %d arguments", i+1)
	}
	lit, ok := call.Args[i].(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return "", fmt.Errorf("expected a string literal argument")
	}
	return strconv.Unquote(lit.Value)
}

// intArg returns the integer literal at call.Args[i].
func intArg(call *ast.CallExpr, i int) (int, error) {
	if i >= len(call.Args) {
		return 0, fmt.Errorf("expected at least %d arguments", i+1)
	}
	lit, ok := call.Args[i].(*ast.BasicLit)
	if !ok || lit.Kind != token.INT {
		return 0, fmt.Errorf("expected an integer literal argument")
	}
	n, err := strconv.Atoi(lit.Value)
	return n, err
}

// argFuncs maps a schema.<Func> call name to the dictionary.ArgType it
// declares, matching the schema package's Arg constructors exactly.
var argFuncs = map[string]dictionary.ArgType{
	"U32": dictionary.ArgU32, "I32": dictionary.ArgI32,
	"U16": dictionary.ArgU16, "I16": dictionary.ArgI16,
	"U8": dictionary.ArgU8, "Bytes": dictionary.ArgBytes, "Str": dictionary.ArgString,
}

// parseMessageCall parses a schema.Reply("name", schema.U32("x"), ...)
// call expression into a catalog Message.
func parseMessageCall(call *ast.CallExpr, kind dictionary.Kind) (*dictionary.Message, error) {
	name, err := stringArg(call, 0)
	if err != nil {
		return nil, err
	}
	msg := &dictionary.Message{Kind: kind, Name: name}
	for _, raw := range call.Args[1:] {
		argCall, ok := raw.(*ast.CallExpr)
		if !ok {
			return nil, fmt.Errorf("message %q: expected a schema arg constructor call", name)
		}
		sel, ok := argCall.Fun.(*ast.SelectorExpr)
		if !ok {
			return nil, fmt.Errorf("message %q: expected schema.<Type>(name)", name)
		}
		argType, ok := argFuncs[sel.Sel.Name]
		if !ok {
			return nil, fmt.Errorf("message %q: unknown type in reply/output: %s", name, sel.Sel.Name)
		}
		argName, err := stringArg(argCall, 0)
		if err != nil {
			return nil, fmt.Errorf("message %q: %w", name, err)
		}
		msg.Args = append(msg.Args, dictionary.Arg{Name: argName, Type: argType})
	}
	return msg, nil
}

// renameFuncs maps a schema.Rename* identifier to its dictionary.RenamePolicy.
var renameFuncs = map[string]dictionary.RenamePolicy{
	"RenameIdentity": dictionary.RenameIdentity,
	"RenameLower":    dictionary.RenameLower,
	"RenameUpper":    dictionary.RenameUpper,
	"RenameSnake":    dictionary.RenameSnake,
}

// parseEnumCall parses a
// schema.Enum("name", schema.RenameUpper, schema.Variant("PA0"), schema.Range("oid",0,8))
// call expression into a catalog Enumeration.
func parseEnumCall(call *ast.CallExpr) (*dictionary.Enumeration, error) {
	if len(call.Args) < 2 {
		return nil, fmt.Errorf("schema.Enum requires a name and a rename policy")
	}
	name, err := stringArg(call, 0)
	if err != nil {
		return nil, err
	}
	renameSel, ok := call.Args[1].(*ast.SelectorExpr)
	if !ok {
		return nil, fmt.Errorf("enumeration %q: expected a schema.Rename* policy", name)
	}
	rename, ok := renameFuncs[renameSel.Sel.Name]
	if !ok {
		return nil, fmt.Errorf("enumeration %q: unknown enumeration option %s", name, renameSel.Sel.Name)
	}

	enum := &dictionary.Enumeration{Name: name, HostName: name, Rename: rename}
	for _, raw := range call.Args[2:] {
		vcall, ok := raw.(*ast.CallExpr)
		if !ok {
			return nil, fmt.Errorf("enumeration %q: expected a schema.Variant/Range call", name)
		}
		sel, ok := vcall.Fun.(*ast.SelectorExpr)
		if !ok {
			return nil, fmt.Errorf("enumeration %q: malformed variant", name)
		}
		switch sel.Sel.Name {
		case "Variant":
			vname, err := stringArg(vcall, 0)
			if err != nil {
				return nil, err
			}
			enum.Variants = append(enum.Variants, dictionary.Variant{Name: vname})
		case "DisabledVariant":
			vname, err := stringArg(vcall, 0)
			if err != nil {
				return nil, err
			}
			enum.Variants = append(enum.Variants, dictionary.Variant{Name: vname, Disabled: true})
		case "Range":
			prefix, err := stringArg(vcall, 0)
			if err != nil {
				return nil, err
			}
			start, err := intArg(vcall, 1)
			if err != nil {
				return nil, err
			}
			count, err := intArg(vcall, 2)
			if err != nil {
				return nil, err
			}
			enum.Variants = append(enum.Variants, dictionary.Variant{IsRange: true, Prefix: prefix, Start: start, Count: count})
		default:
			return nil, fmt.Errorf("enumeration %q: unknown variant constructor %s", name, sel.Sel.Name)
		}
	}
	return enum, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
