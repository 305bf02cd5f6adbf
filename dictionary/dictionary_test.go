package dictionary

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"io"
	"testing"
)

func TestNewCatalogPreassignsBuiltins(t *testing.T) {
	c := NewCatalog()
	if len(c.Commands) != 1 || *c.Commands[0].ID != 1 {
		t.Fatalf("expected identify preassigned to ID 1")
	}
	if len(c.Replies) != 1 || *c.Replies[0].ID != 0 {
		t.Fatalf("expected identify_response preassigned to ID 0")
	}
}

func TestAssignIDsSkipsUsedAndAdvancesCursor(t *testing.T) {
	c := NewCatalog()
	c.AddCommand(&Message{Name: "set_pin", Args: []Arg{{Name: "pin", Type: ArgU8}}})
	c.AddReply(&Message{Name: "pin_state", Args: []Arg{{Name: "pin", Type: ArgU8}}})
	c.AddOutput(&Message{Name: "debug: %c"})

	if err := c.AssignIDs(); err != nil {
		t.Fatalf("AssignIDs: %v", err)
	}

	seen := map[int]bool{}
	for _, m := range append(append(append([]*Message{}, c.Commands...), c.Replies...), c.Outputs...) {
		if m.ID == nil {
			t.Fatalf("message %q left without an ID", m.Descriptor())
		}
		if seen[*m.ID] {
			t.Fatalf("duplicate ID %d assigned", *m.ID)
		}
		seen[*m.ID] = true
	}
	if !seen[0] || !seen[1] {
		t.Fatalf("expected IDs 0 and 1 preserved for built-ins")
	}
}

func TestAssignIDsFailsOver256Messages(t *testing.T) {
	c := NewCatalog()
	for i := 0; i < 260; i++ {
		c.AddCommand(&Message{Name: "cmd_" + itoa(i), Args: []Arg{{Name: "n", Type: ArgU32}}})
	}
	if err := c.AssignIDs(); err == nil {
		t.Fatal("expected an error when more than 256 IDs are required")
	}
}

func TestAddCommandIdenticalRepeatIsNoop(t *testing.T) {
	c := NewCatalog()
	if err := c.AddCommand(&Message{Name: "set_pin", Args: []Arg{{Name: "pin", Type: ArgU8}}}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := c.AddCommand(&Message{Name: "set_pin", Args: []Arg{{Name: "pin", Type: ArgU8}}}); err != nil {
		t.Fatalf("identical repeat should be a no-op, got %v", err)
	}
	if len(c.Commands) != 2 { // identify + set_pin, not a third entry
		t.Errorf("expected no duplicate entry, got %d commands", len(c.Commands))
	}
}

func TestAddCommandConflictingSignatureFails(t *testing.T) {
	c := NewCatalog()
	if err := c.AddCommand(&Message{Name: "set_pin", Args: []Arg{{Name: "pin", Type: ArgU8}}}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	err := c.AddCommand(&Message{Name: "set_pin", Args: []Arg{{Name: "pin", Type: ArgU8}, {Name: "value", Type: ArgU8}}})
	if err == nil {
		t.Fatal("expected an error for a same-name, different-signature command")
	}
}

func TestBuildDictionaryFieldOrderAndContent(t *testing.T) {
	c := NewCatalog()
	c.Version = "v1"
	c.BuildVersions = "gcc-host"
	c.AddConstant("CLOCK_FREQ", 16000000)
	c.AddCommand(&Message{Name: "set_pin", Args: []Arg{{Name: "pin", Type: ArgU8}, {Name: "value", Type: ArgU8}}})
	c.AddOutput(&Message{Name: "debug: %u"})
	c.AddEnumeration(&Enumeration{
		Name: "pin",
		Variants: []Variant{
			{Name: "PA0"},
			{IsRange: true, Prefix: "oid", Start: 0, Count: 4},
		},
	})
	c.Statics.Intern("shutdown reason")

	if err := c.AssignIDs(); err != nil {
		t.Fatalf("AssignIDs: %v", err)
	}

	compressed, err := c.BuildDictionary()
	if err != nil {
		t.Fatalf("BuildDictionary: %v", err)
	}

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("zlib.NewReader: %v", err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}

	// Field order in the raw JSON text must match the spec's defined order.
	order := []string{"\"version\"", "\"build_versions\"", "\"config\"", "\"commands\"", "\"responses\"", "\"output\"", "\"enumerations\""}
	last := -1
	text := string(raw)
	for _, field := range order {
		idx := indexOf(text, field)
		if idx < 0 {
			t.Fatalf("missing field %s in %s", field, text)
		}
		if idx < last {
			t.Fatalf("field %s out of order in %s", field, text)
		}
		last = idx
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc["version"] != "v1" || doc["build_versions"] != "gcc-host" {
		t.Errorf("version fields mismatch: %v", doc)
	}
	enums := doc["enumerations"].(map[string]interface{})
	if _, ok := enums["static_string_id"]; !ok {
		t.Errorf("expected static_string_id enumeration, got %v", enums)
	}
	pin := enums["pin"].(map[string]interface{})
	if v, ok := pin["oid"].([]interface{}); !ok || len(v) != 2 {
		t.Errorf("expected oid range pair, got %v", pin["oid"])
	}
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
