// Package emit writes the generated artifact of spec §4.6 step 4: the
// command dispatch table wiring, reply/output sender functions, static
// string ID constants, and the embedded compressed data dictionary.
package emit

import (
	"bytes"
	"fmt"
	"go/format"
	"sort"

	"github.com/klipmcu/klipmcu/dictionary"
	"github.com/klipmcu/klipmcu/scanner"
)

// Options configures one emission (spec §6 "Build-step surface").
type Options struct {
	PackageName   string
	Version       string
	BuildVersions string
	SkipCommands  []string
}

// Generate assigns IDs, builds the compressed dictionary, and renders the
// single generated source artifact, gofmt'd via go/format (spec §4.6).
func Generate(res *scanner.Result, opts Options) ([]byte, error) {
	if opts.PackageName == "" {
		opts.PackageName = res.Package
	}
	cat := res.Catalog
	cat.Version = opts.Version
	cat.BuildVersions = opts.BuildVersions
	cat.SkipCommands(opts.SkipCommands)

	if err := cat.AssignIDs(); err != nil {
		return nil, err
	}

	compressed, err := cat.BuildDictionary()
	if err != nil {
		return nil, err
	}

	data := templateData{
		Package:       opts.PackageName,
		TransportType: "interface{}",
		ContextType:   "interface{}",
		Dictionary:    compressed,
	}
	if res.Config != nil {
		data.TransportType = res.Config.TransportType
		data.ContextType = res.Config.ContextType
	}

	for _, m := range cat.Commands {
		if m.Name == "identify" {
			continue
		}
		info, ok := res.CommandFuncs[m.Name]
		if !ok {
			return nil, fmt.Errorf("command %q has no matching function declaration", m.Name)
		}
		data.Commands = append(data.Commands, commandEntry{
			ID:         *m.ID,
			Name:       m.Name,
			GoFunc:     info.GoName,
			HasContext: info.HasContext != "",
			Args:       m.Args,
		})
	}
	sort.Slice(data.Commands, func(i, j int) bool { return data.Commands[i].ID < data.Commands[j].ID })

	for _, m := range cat.Replies {
		if m.Name == "identify_response" {
			continue
		}
		data.Replies = append(data.Replies, senderEntry{ID: *m.ID, Name: m.Name, Args: m.Args})
	}
	sort.Slice(data.Replies, func(i, j int) bool { return data.Replies[i].ID < data.Replies[j].ID })

	for _, m := range cat.Outputs {
		data.Outputs = append(data.Outputs, senderEntry{ID: *m.ID, Name: outputGoName(m.Name), Format: m.Name, Args: outputArgs(m.Name)})
	}
	sort.Slice(data.Outputs, func(i, j int) bool { return data.Outputs[i].ID < data.Outputs[j].ID })

	data.StaticStrings = staticStringPairs(cat)

	var buf bytes.Buffer
	if err := artifactTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}

	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("emitted source failed to gofmt (likely a template bug): %w\n---\n%s", err, buf.String())
	}
	return formatted, nil
}

type commandEntry struct {
	ID         int
	Name       string
	GoFunc     string
	HasContext bool
	Args       []dictionary.Arg
}

type senderEntry struct {
	ID     int
	Name   string
	Format string
	Args   []dictionary.Arg
}

type staticStringEntry struct {
	ConstName string
	ID        int
	Value     string
}

type templateData struct {
	Package       string
	TransportType string
	ContextType   string
	Dictionary    []byte
	Commands      []commandEntry
	Replies       []senderEntry
	Outputs       []senderEntry
	StaticStrings []staticStringEntry
}

// staticStringPairs reads back the interned table in insertion order by
// sorting the enumeration's value-to-ID map on ID, since StaticStringTable
// does not expose its order directly outside the dictionary package.
func staticStringPairs(cat *dictionary.Catalog) []staticStringEntry {
	var out []staticStringEntry
	for value, id := range cat.Statics.Enumeration().ExpandedNames() {
		out = append(out, staticStringEntry{
			ConstName: "StaticString_" + sanitizeIdent(value),
			ID:        id,
			Value:     value,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
