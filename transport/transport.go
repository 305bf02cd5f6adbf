// Package transport wires a byte-oriented serial connection to a
// protocol.Framer: it owns the fixed-capacity receive buffer and output
// sink spec §6 calls the "transport source/sink contract," and drives
// Framer.Receive from whatever bytes the port has available.
package transport

import (
	"fmt"
	"io"
	"sync"

	"github.com/klipmcu/klipmcu/protocol"
)

// Port is the minimal byte-pipe contract a concrete transport backend
// must satisfy. Both the tarm/serial and daedaluz/goserial backends
// implement it.
type Port interface {
	io.ReadWriteCloser
}

// Sink is a protocol.OutputBuffer that appends accumulated bytes directly
// to a Port on every Output call, serializing writers with a mutex — the
// "atomically with respect to other calls to output" guarantee of spec §6.
type Sink struct {
	mu   sync.Mutex
	port Port
	pos  int
}

// NewSink wraps port as an OutputBuffer.
func NewSink(port Port) *Sink {
	return &Sink{port: port}
}

// Output writes data directly to the underlying port.
func (s *Sink) Output(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.port.Write(data)
	s.pos += len(data)
}

// CurPosition returns a monotonically increasing cursor used only to
// compute DataSince spans within a single EncodeFrame call; Sink writes
// through immediately so it keeps no backlog.
func (s *Sink) CurPosition() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// Update is a no-op for a direct-write sink: nothing buffered waits to be
// patched, since length/CRC are computed by EncodeFrame before those
// bytes are ever handed to Output.
func (s *Sink) Update(pos int, val byte) {}

// DataSince returns nil: a direct-write Sink keeps no backlog to re-read.
// EncodeFrame instead routes length/CRC through a staging ScratchOutput
// when used with this transport; see Transport.SendMessage.
func (s *Sink) DataSince(pos int) []byte { return nil }

// Transport bundles a Port, a Framer, and the fixed-capacity receive
// buffer spec §5 requires ("all runtime buffers are caller-provided and
// of fixed capacity"). A frame's length/CRC are computed in a small
// scratch buffer first, then flushed to the port in one write, since the
// wire itself cannot be backfilled after the fact.
type Transport struct {
	port    Port
	recv    *protocol.FifoBuffer
	framer  *protocol.Framer
	scratch *protocol.ScratchOutput
	mu      sync.Mutex
}

// New builds a Transport over port with a receive buffer of the given
// capacity (sized from the caller's link-time constants, per spec §5).
// handler is invoked for each dispatched command.
func New(port Port, recvCapacity int, handler protocol.CommandHandler) *Transport {
	scratch := protocol.NewScratchOutput()
	t := &Transport{
		port:    port,
		recv:    protocol.NewFifoBuffer(recvCapacity),
		scratch: scratch,
	}
	t.framer = protocol.NewFramer(&flushingOutput{t: t}, handler)
	t.framer.SetFlushCallback(t.Flush)
	return t
}

// Framer returns the underlying Framer for sending replies/outputs.
func (t *Transport) Framer() *protocol.Framer { return t.framer }

// SendMessage encodes a reply/output frame and flushes it to the port.
// Use this rather than calling Framer().SendMessage directly, since only
// Receive's internal ACK path installs the flush callback automatically.
func (t *Transport) SendMessage(cmdID uint16, args func(protocol.OutputBuffer)) {
	t.framer.SendMessage(cmdID, args)
	t.Flush()
}

// Pump reads whatever is currently available from the port into the
// receive buffer and feeds it to the framer, mirroring the "application
// owns framing of bytes into the input buffer" contract of spec §6. It
// returns io.EOF when the port is closed.
func (t *Transport) Pump(readBuf []byte) error {
	n, err := t.port.Read(readBuf)
	if n > 0 {
		if !t.recv.Extend(readBuf[:n]) {
			return fmt.Errorf("transport: receive buffer overflow, dropping %d bytes", n)
		}
		t.framer.Receive(t.recv)
	}
	return err
}

// Close closes the underlying port.
func (t *Transport) Close() error { return t.port.Close() }

// flushingOutput adapts Transport's scratch-then-flush write path to the
// protocol.OutputBuffer interface EncodeFrame expects: it stages one
// frame in t.scratch so length/CRC backfill works, then flushes the whole
// frame to the port once EncodeFrame's caller is done with it. Output only
// stages bytes; they reach the port when Transport.Flush runs, which the
// framer's flush callback does after each ACK and Transport.SendMessage
// does after each sender frame.
type flushingOutput struct {
	t *Transport
}

func (f *flushingOutput) Output(data []byte) {
	f.t.mu.Lock()
	defer f.t.mu.Unlock()
	f.t.scratch.Output(data)
}

func (f *flushingOutput) CurPosition() int {
	f.t.mu.Lock()
	defer f.t.mu.Unlock()
	return f.t.scratch.CurPosition()
}

func (f *flushingOutput) Update(pos int, val byte) {
	f.t.mu.Lock()
	defer f.t.mu.Unlock()
	f.t.scratch.Update(pos, val)
}

func (f *flushingOutput) DataSince(pos int) []byte {
	f.t.mu.Lock()
	defer f.t.mu.Unlock()
	return f.t.scratch.DataSince(pos)
}

// Flush writes everything accumulated in the scratch buffer to the port
// and resets it, ready for the next frame. Install this as the Framer's
// flush callback so every ACK and sender frame reaches the wire
// immediately (spec SPEC_FULL "Flush-before-buffer callback").
func (t *Transport) Flush() {
	t.mu.Lock()
	data := t.scratch.Result()
	t.scratch.Reset()
	t.mu.Unlock()
	if len(data) > 0 {
		t.port.Write(data)
	}
}
