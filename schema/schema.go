// Package schema is the declarative surface an entry file's var/const
// declarations are written against. Its functions are never actually
// invoked at build time — scanner statically parses the AST of each call
// expression without executing user code (spec §4.5) — but they exist as
// real, typed Go so that entry files compile and type-check normally, and
// so callers get compile-time feedback on arity/type mistakes before the
// generator ever runs.
package schema

import "github.com/klipmcu/klipmcu/dictionary"

// Arg declares one named, typed argument of a reply or command.
type Arg struct {
	Name string
	Type dictionary.ArgType
}

func U32(name string) Arg   { return Arg{name, dictionary.ArgU32} }
func I32(name string) Arg   { return Arg{name, dictionary.ArgI32} }
func U16(name string) Arg   { return Arg{name, dictionary.ArgU16} }
func I16(name string) Arg   { return Arg{name, dictionary.ArgI16} }
func U8(name string) Arg    { return Arg{name, dictionary.ArgU8} }
func Bytes(name string) Arg { return Arg{name, dictionary.ArgBytes} }
func Str(name string) Arg   { return Arg{name, dictionary.ArgString} }

// ReplyDecl is the value a `//klipmcu:reply` var declaration is
// initialized with: schema.Reply("pin_state", schema.U8("pin"), ...).
type ReplyDecl struct {
	Name string
	Args []Arg
}

// Reply declares an MCU→host reply message.
func Reply(name string, args ...Arg) ReplyDecl {
	return ReplyDecl{Name: name, Args: args}
}

// OutputDecl is the value a `//klipmcu:output` var declaration is
// initialized with: schema.Output("debug: temp=%u").
type OutputDecl struct {
	Format string
}

// Output declares a printf-like diagnostic message; its argument types
// come from the %-specifiers in format itself.
func Output(format string) OutputDecl {
	return OutputDecl{Format: format}
}

// StaticStringDecl is the value a `//klipmcu:static` var declaration is
// initialized with.
type StaticStringDecl struct {
	Value string
}

// StaticString interns a string literal into the static string table.
func StaticString(s string) StaticStringDecl {
	return StaticStringDecl{Value: s}
}

// RenamePolicy mirrors dictionary.RenamePolicy for entry-file authors,
// so they don't need to import the dictionary package directly.
type RenamePolicy = dictionary.RenamePolicy

const (
	RenameIdentity = dictionary.RenameIdentity
	RenameLower    = dictionary.RenameLower
	RenameUpper    = dictionary.RenameUpper
	RenameSnake    = dictionary.RenameSnake
)

// VariantDecl is one element of a schema.Enum(...) variant list.
type VariantDecl struct {
	Name     string
	IsRange  bool
	Prefix   string
	Start    int
	Count    int
	Disabled bool
}

// Variant declares a single named enumeration value.
func Variant(name string) VariantDecl {
	return VariantDecl{Name: name}
}

// DisabledVariant declares a variant excluded from numbering output
// (spec §3 "Disabled variants are skipped during numbering").
func DisabledVariant(name string) VariantDecl {
	return VariantDecl{Name: name, Disabled: true}
}

// Range declares a compact run of count variants named
// "<prefix><start>".."<prefix><start+count-1>".
func Range(prefix string, start, count int) VariantDecl {
	return VariantDecl{IsRange: true, Prefix: prefix, Start: start, Count: count}
}

// EnumDecl is the value a `//klipmcu:enum` var declaration is initialized
// with: schema.Enum("pin", schema.RenameUpper, schema.Variant("PA0"), ...).
type EnumDecl struct {
	HostName string
	Rename   RenamePolicy
	Variants []VariantDecl
}

// Enum declares an enumeration with a preferred host-visible name and
// rename policy.
func Enum(hostName string, rename RenamePolicy, variants ...VariantDecl) EnumDecl {
	return EnumDecl{HostName: hostName, Rename: rename, Variants: variants}
}

// ShutdownContext is satisfied by whatever context type an entry file
// declares for schema.Shutdown's first argument; the scanner never
// resolves it, it only needs a call expression of this shape to exist.
type ShutdownContext interface{}

// Shutdown marks a shutdown call site: the scanner collects the string
// literal as a static string and ensures the catalog carries a
// `shutdown(clock, static_string_id)` reply. Its body is empty, and the
// generated artifact neither rewrites nor forwards calls to it, so a call
// sends nothing at runtime. The artifact emits the string's
// StaticString_* ID constant and a SendShutdown sender; dispatch.Shutdown
// also sends the reply.
func Shutdown(ctx ShutdownContext, msg string, clock uint32) {}

// ConfigGenerate records the single transport/context binding used for
// code emission (spec §4.4 "klipper_config_generate!"). T is the user's
// transport output type, C is the user's context type; both are read
// from the generic instantiation's type arguments by the scanner, never
// from a runtime call — this function's body never executes.
func ConfigGenerate[T any, C any]() struct{} { return struct{}{} }
