// Package dispatch is the generated artifact's runtime support library:
// the dense 256-entry command table the emitted dispatcher function
// selects over, the reply/output sender helpers, the static-string-ID
// registry, and the built-in identify handler (spec §4.6 step 4).
package dispatch

import (
	"errors"

	"github.com/klipmcu/klipmcu/protocol"
)

// ErrUnknownCommand is returned by Table.Dispatch for a command ID with no
// registered handler.
var ErrUnknownCommand = errors.New("unknown command ID")

// CommandFunc is a per-command wrapper: it decodes its declared arguments
// from body (advancing it past what it consumes) and invokes the user's
// handler. Generated wrapper functions close over the user handler and
// any declared context.
type CommandFunc func(body *[]byte) error

// Table is the dense 8-bit command ID → handler selection of spec §4.6
// step 4. An ID without a registered handler is a decode error
// (ErrUnknownCommand), so the rest of the frame body is abandoned, as in
// the runtime error model of spec §7.
type Table struct {
	handlers [256]CommandFunc
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{}
}

// Register installs fn as the handler for cmdID. Registering the same ID
// twice replaces the previous handler; the build-time ID assignment
// guarantees IDs are unique across a single generated artifact.
func (t *Table) Register(cmdID uint16, fn CommandFunc) {
	t.handlers[uint8(cmdID)] = fn
}

// Dispatch invokes the handler registered for cmdID, or returns
// ErrUnknownCommand if there is none. It is the CommandHandler a Framer
// is constructed with; the framer already strips the VLQ command ID off
// body before calling it.
func (t *Table) Dispatch(cmdID uint16, body *[]byte) error {
	fn := t.handlers[uint8(cmdID)]
	if fn == nil {
		return ErrUnknownCommand
	}
	return fn(body)
}

// AsHandler adapts Table.Dispatch to protocol.CommandHandler, for wiring
// a Table directly into protocol.NewFramer.
func (t *Table) AsHandler() protocol.CommandHandler {
	return t.Dispatch
}

// SendReply emits a reply/output frame through framer: the VLQ message ID
// followed by encode's writes, matching the sender functions spec §4.6
// step 4 describes as "invokes the frame writer and emits its ID plus its
// arguments via the writable codec."
func SendReply(framer *protocol.Framer, id uint16, encode func(protocol.OutputBuffer)) {
	framer.SendMessage(id, encode)
}

// StaticStringIDs maps a generated artifact's interned static strings to
// their dictionary-assigned 16-bit IDs (spec §3 "Static string table").
// Generated code populates one instance per artifact as named constants;
// this registry exists for runtime lookups (e.g. a shared shutdown
// helper) that need the mapping by string rather than by constant name.
type StaticStringIDs struct {
	ids map[string]uint16
}

// NewStaticStringIDs builds a registry from a generated id table.
func NewStaticStringIDs(table map[string]uint16) *StaticStringIDs {
	return &StaticStringIDs{ids: table}
}

// ID returns the 16-bit static string ID for s, or ok=false if s was
// never interned at build time.
func (s *StaticStringIDs) ID(str string) (uint16, bool) {
	id, ok := s.ids[str]
	return id, ok
}

// shutdownReplyID is set by generated code via RegisterShutdownReplyID,
// since the shutdown reply's assigned ID is only known after build-time
// ID assignment.
var shutdownReplyID uint16 = 0xFFFF

// RegisterShutdownReplyID records the dictionary-assigned ID of the
// shutdown reply. Generated code calls this once during init.
func RegisterShutdownReplyID(id uint16) { shutdownReplyID = id }

// Shutdown emits the shutdown reply (clock, static_string_id) through
// framer, the runtime counterpart of a schema.Shutdown call site
// (spec §4.4 "klipper_shutdown!", §6 "Built-in messages").
func Shutdown(framer *protocol.Framer, clock uint32, staticStringID uint16) {
	SendReply(framer, shutdownReplyID, func(o protocol.OutputBuffer) {
		protocol.EncodeVLQUint(o, clock)
		protocol.EncodeVLQUint(o, uint32(staticStringID))
	})
}

// identifyResponseID and identifyID mirror the catalog's always-assigned
// built-in IDs (spec §4.6 step 2); they are compile-time constants because
// the build-time catalog pre-assigns them before any other ID exists.
const (
	identifyResponseID = 0
	identifyCommandID  = 1
)

// RegisterIdentify wires the built-in identify command and
// identify_response reply against the compressed dictionary blob
// produced at build time. Generated code calls this from NewTable with
// the embedded dictionary byte array.
func RegisterIdentify(table *Table, framer *protocol.Framer, dictionary []byte) {
	table.Register(identifyCommandID, func(body *[]byte) error {
		offset, err := protocol.DecodeVLQUint(body)
		if err != nil {
			return err
		}
		count, err := protocol.DecodeVLQUint(body)
		if err != nil {
			return err
		}
		start := int(offset)
		if start > len(dictionary) {
			start = len(dictionary)
		}
		end := start + int(count)
		if end > len(dictionary) {
			end = len(dictionary)
		}
		window := dictionary[start:end]

		SendReply(framer, identifyResponseID, func(o protocol.OutputBuffer) {
			protocol.EncodeVLQUint(o, uint32(start))
			protocol.EncodeVLQBytes(o, window)
		})
		return nil
	})
}
