// Package scanner implements the build-time source walk of spec §4.5: it
// statically parses an entry file and the local submodules it reaches,
// discovering commands, replies, outputs, enumerations, constants, static
// strings, shutdown call sites, and the transport/context binding,
// without ever executing the user's program.
package scanner

import (
	"fmt"
	"go/ast"
	"go/build/constraint"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klipmcu/klipmcu/dictionary"
)

const (
	dirCommand   = "klipmcu:command"
	dirCfg       = "klipmcu:cfg"
	dirConstant  = "klipmcu:constant"
	dirReply     = "klipmcu:reply"
	dirOutput    = "klipmcu:output"
	dirStatic    = "klipmcu:static"
	dirEnum      = "klipmcu:enum"
	dirConfig    = "klipmcu:config"
	dirSubmodule = "klipmcu:submodule"
)

// Config is the scanner's result for the single klipmcu:config directive:
// the transport output type and context type named in the generic
// instantiation `schema.ConfigGenerate[T, C]()` (spec §4.4).
type Config struct {
	TransportType string
	ContextType   string
	Pos           token.Position
}

// Result is everything the scan discovered, ready to hand to the emitter.
type Result struct {
	// Package is the entry file's own package name. The emitted artifact
	// joins that same package, since its generated wrapper functions call
	// user-declared command functions by unqualified name.
	Package string
	Catalog *dictionary.Catalog
	Config  *Config
	// CommandFuncs maps a registered command's name to the Go function
	// name implementing it, for the emitter's generated wrapper to call.
	CommandFuncs map[string]FuncInfo
	// Shutdowns is every schema.Shutdown call site discovered, in scan order.
	Shutdowns []ShutdownSite
}

// FuncInfo describes a //klipmcu:command function's signature as the
// emitter needs it: which Go function to call, whether its first
// parameter is a context value, and the wire arguments to decode.
type FuncInfo struct {
	GoName     string
	Package    string
	HasContext string // the context parameter's Go type, or "" if none
	Args       []dictionary.Arg
	Pos        token.Position
}

// ShutdownSite is one schema.Shutdown(ctx, "msg", clockExpr) call site.
type ShutdownSite struct {
	Message string
	Pos     token.Position
}

// scanState accumulates results across the entry file and every
// submodule it reaches.
type scanState struct {
	fset    *token.FileSet
	pkg     string
	catalog *dictionary.Catalog
	config  *Config
	funcs   map[string]FuncInfo
	sd      []ShutdownSite
	visited map[string]bool
}

// ScanEntry walks entryPath (a single Go source file) and every local
// submodule it declares via //klipmcu:submodule, building the full
// message catalog (spec §4.5).
func ScanEntry(entryPath string) (*Result, error) {
	s := &scanState{
		fset:    token.NewFileSet(),
		catalog: dictionary.NewCatalog(),
		funcs:   make(map[string]FuncInfo),
		visited: make(map[string]bool),
	}
	if err := s.scanFile(entryPath); err != nil {
		return nil, err
	}
	return &Result{
		Package:      s.pkg,
		Catalog:      s.catalog,
		Config:       s.config,
		CommandFuncs: s.funcs,
		Shutdowns:    s.sd,
	}, nil
}

// scanFile parses and processes a single Go source file. A parse error
// ends the scan of that file and is suppressed (scanFile returns nil), so
// the subsequent compile reports it, not this tool (spec §7).
func (s *scanState) scanFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if s.visited[abs] {
		return nil
	}
	s.visited[abs] = true

	src, err := os.ReadFile(abs)
	if err != nil {
		return err
	}
	file, err := parser.ParseFile(s.fset, abs, src, parser.ParseComments)
	if err != nil {
		// Parse errors in the user's program are not this tool's to
		// report; let the compiler surface them.
		return nil
	}

	dir := filepath.Dir(abs)
	if s.pkg == "" {
		s.pkg = file.Name.Name
	}

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if err := s.scanFunc(file.Name.Name, d); err != nil {
				return err
			}
		case *ast.GenDecl:
			if err := s.scanGenDecl(file.Name.Name, d, dir); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *scanState) pos(p token.Pos) token.Position {
	return s.fset.Position(p)
}

func hasDirective(doc *ast.CommentGroup, directive string) (string, bool) {
	if doc == nil {
		return "", false
	}
	for _, c := range doc.List {
		text := strings.TrimPrefix(c.Text, "//")
		text = strings.TrimSpace(text)
		if text == directive {
			return "", true
		}
		if rest, ok := strings.CutPrefix(text, directive+" "); ok {
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}

// scanFunc processes a top-level function declaration, registering it as
// a command if it carries //klipmcu:command, and scanning its body for
// schema.Shutdown call sites regardless.
func (s *scanState) scanFunc(pkg string, fn *ast.FuncDecl) error {
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		if !isSelector(call.Fun, "schema", "Shutdown") {
			return true
		}
		if len(call.Args) != 3 {
			return true
		}
		if lit, ok := call.Args[1].(*ast.BasicLit); ok && lit.Kind == token.STRING {
			msg, err := strconv.Unquote(lit.Value)
			if err == nil {
				s.catalog.Statics.Intern(msg)
				s.sd = append(s.sd, ShutdownSite{Message: msg, Pos: s.pos(lit.Pos())})
				s.catalog.EnsureShutdownReply()
			}
		}
		return true
	})

	if _, ok := hasDirective(fn.Doc, dirCommand); !ok {
		return nil
	}
	if cond, ok := hasDirective(fn.Doc, dirCfg); ok {
		if !evalCfgExpr(cond) {
			return nil
		}
	}

	info := FuncInfo{GoName: fn.Name.Name, Package: pkg, Pos: s.pos(fn.Pos())}

	var args []dictionary.Arg
	if fn.Type.Params != nil {
		first := true
		for _, field := range fn.Type.Params.List {
			names := field.Names
			if len(names) == 0 {
				names = []*ast.Ident{{Name: "_"}}
			}
			for _, name := range names {
				typeName := exprString(field.Type)
				if first {
					first = false
					if name.Name == "context" || name.Name == "ctx" {
						info.HasContext = typeName
						continue
					}
				}
				argType, ok := goTypeToArg(typeName)
				if !ok {
					return fmt.Errorf("%s: command %q parameter %q has unsupported type %q",
						info.Pos, fn.Name.Name, name.Name, typeName)
				}
				args = append(args, dictionary.Arg{Name: argName(name.Name), Type: argType})
			}
		}
	}
	info.Args = args

	msg := &dictionary.Message{Name: fn.Name.Name, Args: args, ModulePath: pkg, HasContext: info.HasContext != ""}
	if err := s.catalog.AddCommand(msg); err != nil {
		return err
	}
	s.funcs[fn.Name.Name] = info
	return nil
}

// argName strips a single leading underscore, so a handler parameter named
// "_pin" records as the descriptor name "pin" (spec §4.5).
func argName(name string) string {
	if len(name) > 1 && name[0] == '_' {
		return name[1:]
	}
	return name
}

func goTypeToArg(t string) (dictionary.ArgType, bool) {
	switch t {
	case "uint32":
		return dictionary.ArgU32, true
	case "int32":
		return dictionary.ArgI32, true
	case "uint16":
		return dictionary.ArgU16, true
	case "int16":
		return dictionary.ArgI16, true
	case "uint8", "byte":
		return dictionary.ArgU8, true
	case "[]byte":
		return dictionary.ArgBytes, true
	case "string":
		return dictionary.ArgString, true
	default:
		return 0, false
	}
}

func exprString(e ast.Expr) string {
	switch t := e.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.ArrayType:
		if t.Len == nil {
			return "[]" + exprString(t.Elt)
		}
	case *ast.StarExpr:
		return "*" + exprString(t.X)
	case *ast.SelectorExpr:
		return exprString(t.X) + "." + t.Sel.Name
	}
	return fmt.Sprintf("%T", e)
}

func isSelector(e ast.Expr, pkg, name string) bool {
	sel, ok := e.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	id, ok := sel.X.(*ast.Ident)
	return ok && id.Name == pkg && sel.Sel.Name == name
}

// evalCfgExpr evaluates a //klipmcu:cfg directive using the same boolean
// tag-expression grammar as Go build constraints (this is the scanner's
// analogue of `#[cfg(...)]`). The directive's text is parsed exactly as
// a //go:build line would be; an unparseable expression is treated as
// always-satisfied so a malformed directive fails loudly at compile time
// rather than silently dropping a command.
func evalCfgExpr(expr string) bool {
	line := "//go:build " + strings.TrimSpace(expr)
	x, err := constraint.Parse(line)
	if err != nil {
		return true
	}
	return x.Eval(func(tag string) bool { return tag == "true" })
}
