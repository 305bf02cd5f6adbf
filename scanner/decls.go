package scanner

import (
	"fmt"
	"go/ast"
	"go/token"
	"path/filepath"
	"strconv"

	"github.com/klipmcu/klipmcu/dictionary"
)

// scanGenDecl processes a top-level const/var/import declaration group,
// dispatching on whichever klipmcu directive (if any) is attached.
func (s *scanState) scanGenDecl(pkg string, d *ast.GenDecl, dir string) error {
	switch d.Tok {
	case token.CONST:
		return s.scanConstGroup(d)
	case token.VAR:
		return s.scanVarGroup(pkg, d)
	case token.IMPORT:
		return s.scanImportGroup(d, dir)
	}
	return nil
}

func specDoc(d *ast.GenDecl, spec ast.Spec) *ast.CommentGroup {
	switch sp := spec.(type) {
	case *ast.ValueSpec:
		if sp.Doc != nil {
			return sp.Doc
		}
	case *ast.ImportSpec:
		if sp.Doc != nil {
			return sp.Doc
		}
	}
	return d.Doc
}

func (s *scanState) scanConstGroup(d *ast.GenDecl) error {
	for _, spec := range d.Specs {
		vs, ok := spec.(*ast.ValueSpec)
		if !ok {
			continue
		}
		if _, ok := hasDirective(specDoc(d, spec), dirConstant); !ok {
			continue
		}
		for i, name := range vs.Names {
			if i >= len(vs.Values) {
				continue
			}
			value, err := parseLiteral(vs.Values[i])
			if err != nil {
				return fmt.Errorf("%s: constant %q: %w", s.pos(vs.Pos()), name.Name, err)
			}
			s.catalog.AddConstant(name.Name, value)
		}
	}
	return nil
}

func (s *scanState) scanVarGroup(pkg string, d *ast.GenDecl) error {
	for _, spec := range d.Specs {
		vs, ok := spec.(*ast.ValueSpec)
		if !ok || len(vs.Values) == 0 {
			continue
		}
		doc := specDoc(d, spec)

		if _, ok := hasDirective(doc, dirConfig); ok {
			if err := s.scanConfigGenerate(vs); err != nil {
				return err
			}
			continue
		}

		call, ok := vs.Values[0].(*ast.CallExpr)
		if !ok {
			continue
		}

		switch {
		case isSelector(call.Fun, "schema", "Reply"):
			if _, ok := hasDirective(doc, dirReply); !ok {
				continue
			}
			msg, err := parseMessageCall(call, dictionary.Reply)
			if err != nil {
				return fmt.Errorf("%s: %w", s.pos(call.Pos()), err)
			}
			msg.ModulePath = pkg
			if err := s.catalog.AddReply(msg); err != nil {
				return err
			}
		case isSelector(call.Fun, "schema", "Output"):
			if _, ok := hasDirective(doc, dirOutput); !ok {
				continue
			}
			format, err := stringArg(call, 0)
			if err != nil {
				return fmt.Errorf("%s: %w", s.pos(call.Pos()), err)
			}
			if err := s.catalog.AddOutput(&dictionary.Message{Name: format, ModulePath: pkg}); err != nil {
				return err
			}
		case isSelector(call.Fun, "schema", "StaticString"):
			if _, ok := hasDirective(doc, dirStatic); !ok {
				continue
			}
			str, err := stringArg(call, 0)
			if err != nil {
				return fmt.Errorf("%s: %w", s.pos(call.Pos()), err)
			}
			s.catalog.Statics.Intern(str)
		case isSelector(call.Fun, "schema", "Enum"):
			if _, ok := hasDirective(doc, dirEnum); !ok {
				continue
			}
			enum, err := parseEnumCall(call)
			if err != nil {
				return fmt.Errorf("%s: %w", s.pos(call.Pos()), err)
			}
			if err := s.catalog.AddEnumeration(enum); err != nil {
				return err
			}
		}
	}
	return nil
}

// scanConfigGenerate extracts T and C from `schema.ConfigGenerate[T, C]()`.
// Go's parser represents two-or-more type arguments as IndexListExpr and a
// single one as IndexExpr; both are handled.
func (s *scanState) scanConfigGenerate(vs *ast.ValueSpec) error {
	call, ok := vs.Values[0].(*ast.CallExpr)
	if !ok {
		return fmt.Errorf("%s: klipmcu:config value is not a call expression", s.pos(vs.Pos()))
	}
	if s.config != nil {
		return fmt.Errorf("%s: multiple transport-generation directives (first at %s)",
			s.pos(vs.Pos()), s.config.Pos)
	}

	var typeArgs []ast.Expr
	switch fn := call.Fun.(type) {
	case *ast.IndexExpr:
		if !isSelector(fn.X, "schema", "ConfigGenerate") {
			return fmt.Errorf("%s: expected schema.ConfigGenerate[...]", s.pos(vs.Pos()))
		}
		typeArgs = []ast.Expr{fn.Index}
	case *ast.IndexListExpr:
		if !isSelector(fn.X, "schema", "ConfigGenerate") {
			return fmt.Errorf("%s: expected schema.ConfigGenerate[...]", s.pos(vs.Pos()))
		}
		typeArgs = fn.Indices
	default:
		return fmt.Errorf("%s: expected schema.ConfigGenerate[Transport, Context]()", s.pos(vs.Pos()))
	}
	if len(typeArgs) != 2 {
		return fmt.Errorf("%s: schema.ConfigGenerate requires exactly 2 type arguments", s.pos(vs.Pos()))
	}

	s.config = &Config{
		TransportType: exprString(typeArgs[0]),
		ContextType:   exprString(typeArgs[1]),
		Pos:           s.pos(vs.Pos()),
	}
	return nil
}

func (s *scanState) scanImportGroup(d *ast.GenDecl, dir string) error {
	for _, spec := range d.Specs {
		_, ok := spec.(*ast.ImportSpec)
		if !ok {
			continue
		}
		doc := specDoc(d, spec)
		name, ok := hasDirective(doc, dirSubmodule)
		if !ok {
			continue
		}
		name = trimQuotes(name)
		if err := s.scanSubmodule(dir, name); err != nil {
			return err
		}
	}
	return nil
}

// scanSubmodule resolves one of the two candidate files spec §4.5
// prescribes for `//klipmcu:submodule "name"`: <dir>/<name>.go, or
// <dir>/<name>/<name>.go. Exactly one must exist.
func (s *scanState) scanSubmodule(dir, name string) error {
	flat := filepath.Join(dir, name+".go")
	nested := filepath.Join(dir, name, name+".go")

	flatExists := fileExists(flat)
	nestedExists := fileExists(nested)

	switch {
	case flatExists && nestedExists:
		return fmt.Errorf("ambiguous submodule %q: both %s and %s exist", name, flat, nested)
	case !flatExists && !nestedExists:
		return fmt.Errorf("unresolvable submodule %q: neither %s nor %s exists", name, flat, nested)
	case flatExists:
		return s.scanFile(flat)
	default:
		return s.scanFile(nested)
	}
}

func trimQuotes(s string) string {
	if unquoted, err := strconv.Unquote(s); err == nil {
		return unquoted
	}
	return s
}
