package dictionary

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"sort"
)

// Constant is a build-time constant contributed by a //klipmcu:constant
// declaration, carried into the dictionary's "config" map verbatim
// (spec §3 "Data dictionary").
type Constant struct {
	Name  string
	Value interface{}
}

// builtinIdentify and builtinIdentifyResponse are always pre-assigned
// (spec §4.6 step 2).
const (
	builtinIdentifyID         = 1
	builtinIdentifyResponseID = 0
)

// Catalog is the full build-time model discovered by a source scan:
// every command, reply, output, enumeration, constant, and interned
// static string, ready for ID assignment and dictionary emission
// (spec §3, §4.6).
type Catalog struct {
	Commands     []*Message
	Replies      []*Message
	Outputs      []*Message
	Enumerations []*Enumeration
	Constants    []Constant
	Statics      *StaticStringTable

	Version       string
	BuildVersions string
}

// NewCatalog returns an empty catalog with the two built-in messages
// (identify, identify_response) pre-registered and its static string
// table initialized. The shutdown reply is not registered here; see
// EnsureShutdownReply.
func NewCatalog() *Catalog {
	c := &Catalog{Statics: NewStaticStringTable()}
	id1, id0 := builtinIdentifyID, builtinIdentifyResponseID
	c.Commands = append(c.Commands, &Message{
		Kind: Command, Name: "identify",
		Args: []Arg{{Name: "offset", Type: ArgU32}, {Name: "count", Type: ArgU32}},
		ID:   &id1,
	})
	c.Replies = append(c.Replies, &Message{
		Kind: Reply, Name: "identify_response",
		Args: []Arg{{Name: "offset", Type: ArgU32}, {Name: "data", Type: ArgBytes}},
		ID:   &id0,
	})
	return c
}

// AddCommand registers a command, failing if a message of the same name
// already exists with a different signature (spec §7 "duplicate message
// name with different signature").
func (c *Catalog) AddCommand(m *Message) error {
	m.Kind = Command
	return c.add(&c.Commands, m)
}

// AddReply registers a reply message.
func (c *Catalog) AddReply(m *Message) error {
	m.Kind = Reply
	return c.add(&c.Replies, m)
}

// AddOutput registers an output format string.
func (c *Catalog) AddOutput(m *Message) error {
	m.Kind = Output
	return c.add(&c.Outputs, m)
}

func (c *Catalog) add(bucket *[]*Message, m *Message) error {
	for _, existing := range *bucket {
		if existing.Name != m.Name {
			continue
		}
		if !sameSignature(existing, m) {
			return errf("", "duplicate message %q with conflicting signature", m.Name)
		}
		return nil
	}
	*bucket = append(*bucket, m)
	return nil
}

// AddEnumeration registers an enumeration, failing on a duplicate name.
func (c *Catalog) AddEnumeration(e *Enumeration) error {
	for _, existing := range c.Enumerations {
		if existing.Name == e.Name {
			return errf("", "duplicate enumeration %q", e.Name)
		}
	}
	c.Enumerations = append(c.Enumerations, e)
	return nil
}

// AddConstant registers a build-time constant for the dictionary's
// "config" section.
func (c *Catalog) AddConstant(name string, value interface{}) {
	c.Constants = append(c.Constants, Constant{Name: name, Value: value})
}

// EnsureShutdownReply registers the built-in shutdown reply the first
// time a schema.Shutdown call is discovered (spec §4.4 "klipper_shutdown!").
func (c *Catalog) EnsureShutdownReply() error {
	return c.AddReply(&Message{
		Name: "shutdown",
		Args: []Arg{
			{Name: "clock", Type: ArgU32},
			{Name: "static_string_id", Type: ArgU16},
		},
	})
}

// SkipCommands drops catalog entries named in skip (spec §4.6 step 1).
func (c *Catalog) SkipCommands(skip []string) {
	if len(skip) == 0 {
		return
	}
	drop := make(map[string]bool, len(skip))
	for _, name := range skip {
		drop[name] = true
	}
	kept := c.Commands[:0]
	for _, m := range c.Commands {
		if !drop[m.Name] {
			kept = append(kept, m)
		}
	}
	c.Commands = kept
}

// catalogEntry pairs a message with its descriptor sort key, so the unified
// ID-assignment walk can touch every message regardless of bucket.
type catalogEntry struct {
	msg *Message
	key string
}

// AssignIDs allocates an ID to every message lacking one, in the
// catalog's keyed (descriptor-sorted) order: the smallest unused ID at
// or above a rolling cursor, advancing the cursor one past each fresh
// assignment (spec §4.6 step 2). Commands, replies, and outputs share a
// single 0..255 ID space since the dispatcher selects on one 8-bit ID.
func (c *Catalog) AssignIDs() error {
	var entries []catalogEntry
	for _, m := range c.Commands {
		entries = append(entries, catalogEntry{m, m.Descriptor()})
	}
	for _, m := range c.Replies {
		entries = append(entries, catalogEntry{m, m.Descriptor()})
	}
	for _, m := range c.Outputs {
		entries = append(entries, catalogEntry{m, m.Descriptor()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	used := make(map[int]bool)
	for _, e := range entries {
		if e.msg.ID != nil {
			used[*e.msg.ID] = true
		}
	}

	cursor := 0
	for _, e := range entries {
		if e.msg.ID != nil {
			continue
		}
		id := cursor
		for used[id] {
			id++
		}
		if id > 255 {
			return errf("", "more than 256 messages in catalog")
		}
		assigned := id
		e.msg.ID = &assigned
		used[id] = true
		cursor = id + 1
	}
	return nil
}

// BuildDictionary assembles the JSON data dictionary in the defined
// field order, then zlib-compresses it at the default level
// (spec §4.6 step 3).
func (c *Catalog) BuildDictionary() ([]byte, error) {
	doc := struct {
		Version       string                 `json:"version"`
		BuildVersions string                 `json:"build_versions"`
		Config        map[string]interface{} `json:"config"`
		Commands      map[string]int         `json:"commands"`
		Responses     map[string]int         `json:"responses"`
		Output        map[string]int         `json:"output"`
		Enumerations  map[string]interface{} `json:"enumerations"`
	}{
		Version:       c.Version,
		BuildVersions: c.BuildVersions,
		Config:        make(map[string]interface{}, len(c.Constants)),
		Commands:      make(map[string]int, len(c.Commands)),
		Responses:     make(map[string]int, len(c.Replies)),
		Output:        make(map[string]int, len(c.Outputs)),
		Enumerations:  make(map[string]interface{}, len(c.Enumerations)+1),
	}

	for _, cst := range c.Constants {
		doc.Config[cst.Name] = cst.Value
	}
	for _, m := range c.Commands {
		doc.Commands[m.Descriptor()] = *m.ID
	}
	for _, m := range c.Replies {
		doc.Responses[m.Descriptor()] = *m.ID
	}
	for _, m := range c.Outputs {
		doc.Output[m.Descriptor()] = *m.ID
	}
	for _, e := range c.Enumerations {
		doc.Enumerations[e.hostName()] = enumerationPayload(e)
	}
	doc.Enumerations["static_string_id"] = enumerationPayload(c.Statics.Enumeration())

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// enumerationPayload renders an enumeration's variants as the dictionary
// expects: a plain number for a single variant, a [start, count] pair
// for a range (spec §4.6 step 3).
func enumerationPayload(e *Enumeration) map[string]interface{} {
	out := make(map[string]interface{}, len(e.Variants))
	for _, entry := range e.Expand() {
		if entry.isRange {
			out[entry.name] = [2]int{entry.start, entry.count}
		} else {
			out[entry.name] = entry.value
		}
	}
	return out
}
