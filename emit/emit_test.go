package emit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klipmcu/klipmcu/dictionary"
	"github.com/klipmcu/klipmcu/scanner"
)

const fixtureSource = `package demo

import "github.com/klipmcu/klipmcu/schema"

//klipmcu:config
var _ = schema.ConfigGenerate[Output, Context]()

//klipmcu:reply
var PinState = schema.Reply("pin_state", schema.U8("pin"), schema.U8("value"))

//klipmcu:output
var DebugMsg = schema.Output("debug: value=%u")

//klipmcu:command
func SetPin(ctx *Context, pin uint8, value uint8) error {
	return nil
}
`

func scanFixture(t *testing.T) *scanner.Result {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "commands.go")
	if err := os.WriteFile(path, []byte(fixtureSource), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	res, err := scanner.ScanEntry(path)
	if err != nil {
		t.Fatalf("ScanEntry: %v", err)
	}
	return res
}

func TestGenerateProducesWellFormedSource(t *testing.T) {
	res := scanFixture(t)

	src, err := Generate(res, Options{Version: "v1", BuildVersions: "test"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	text := string(src)
	for _, want := range []string{
		"package demo",
		"func NewTable(",
		"table.Register(",
		"func SendPinState(",
		"func SendDebugValueU(",
		"compressedDictionary = []byte{",
		"ctx Context)",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("expected generated source to contain %q, got:\n%s", want, text)
		}
	}
}

func TestGenerateFailsWhenCommandFunctionMissing(t *testing.T) {
	res := scanFixture(t)
	// Simulate a command whose backing function was never discovered:
	// added straight to the catalog, bypassing the scanner's function
	// registration.
	res.Catalog.AddCommand(&dictionary.Message{Name: "phantom_command"})

	if _, err := Generate(res, Options{}); err == nil {
		t.Fatal("expected an error for a command without a matching function")
	}
}
