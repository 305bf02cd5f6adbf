package emit

import "text/template"

var artifactTemplate = template.Must(template.New("artifact").Funcs(template.FuncMap{
	"goType":     argGoType,
	"decodeFunc": argDecodeFunc,
	"encodeFunc": argEncodeFunc,
	"encodeCast": argEncodeCast,
	"bytesLit":   bytesLiteral,
	"goName":     sanitizeIdent,
}).Parse(artifactSource))

// bytesLiteral renders b as a Go []byte composite literal.
func bytesLiteral(b []byte) string {
	out := "[]byte{"
	for i, c := range b {
		if i > 0 {
			out += ","
		}
		out += itoaByte(c)
	}
	out += "}"
	return out
}

func itoaByte(b byte) string {
	const digits = "0123456789"
	if b == 0 {
		return "0"
	}
	var buf [3]byte
	i := 3
	for b > 0 {
		i--
		buf[i] = digits[b%10]
		b /= 10
	}
	return string(buf[i:])
}

// artifactSource is the generated artifact's template (spec §4.6 step 4).
// Code generated by klipmcu-gen; DO NOT EDIT is stamped into the real
// output by Generate's caller (genconfig.Builder.Build, which
// cmd/klipmcu-gen drives), not here, so tests can render the template
// body directly.
const artifactSource = `package {{.Package}}

import (
	"github.com/klipmcu/klipmcu/dispatch"
	"github.com/klipmcu/klipmcu/protocol"
)

// compressedDictionary is the zlib-compressed, JSON-encoded data
// dictionary computed at build time (spec §4.6 step 3).
var compressedDictionary = {{bytesLit .Dictionary}}

{{range .StaticStrings}}// {{.ConstName}} is the static-string ID for {{printf "%q" .Value}}.
const {{.ConstName}} uint16 = {{.ID}}
{{end}}

// NewTable builds the command dispatch table for this artifact, wiring
// every declared command to its handler and registering the built-in
// identify command against the embedded dictionary (spec §4.6 step 4).
// ctx is the context value bound by klipmcu:config, threaded into every
// command handler that declares one.
func NewTable(framer *protocol.Framer, ctx {{.ContextType}}) *dispatch.Table {
	table := dispatch.NewTable()
	dispatch.RegisterIdentify(table, framer, compressedDictionary)
{{range .Commands}}
	table.Register({{.ID}}, func(body *[]byte) error {
{{range .Args}}		{{.Name}}, err := {{decodeFunc .Type}}(body)
		if err != nil {
			return err
		}
{{end}}		return {{.GoFunc}}({{if .HasContext}}ctx{{if .Args}}, {{end}}{{end}}{{range $i, $a := .Args}}{{if $i}}, {{end}}{{$a.Name}}{{end}})
	})
{{end}}
	return table
}

{{range .Replies}}{{if eq .Name "shutdown"}}
func init() { dispatch.RegisterShutdownReplyID({{.ID}}) }
{{end}}{{end}}

{{range .Replies}}
// Send{{goName .Name}} emits the {{.Name}} reply.
func Send{{goName .Name}}(framer *protocol.Framer{{range .Args}}, {{.Name}} {{goType .Type}}{{end}}) {
	dispatch.SendReply(framer, {{.ID}}, func(o protocol.OutputBuffer) {
{{range .Args}}		{{encodeFunc .Type}}(o, {{encodeCast .Type .Name}})
{{end}}	})
}
{{end}}

{{range .Outputs}}
// Send{{goName .Name}} emits the output {{printf "%q" .Format}}.
func Send{{goName .Name}}(framer *protocol.Framer{{range .Args}}, {{.Name}} {{goType .Type}}{{end}}) {
	dispatch.SendReply(framer, {{.ID}}, func(o protocol.OutputBuffer) {
{{range .Args}}		{{encodeFunc .Type}}(o, {{encodeCast .Type .Name}})
{{end}}	})
}
{{end}}
`
