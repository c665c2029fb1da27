// Package enginetest provides a scripted engine that records every call
// made to it.
package enginetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/simonhull/mediainfo/internal/engine"
)

// Call is one recorded engine or handle call.
type Call struct {
	Method string
	Args   []any
}

func (c Call) String() string {
	return fmt.Sprintf("%s%v", c.Method, c.Args)
}

// Script controls the replies of a fake engine.
type Script struct {
	// Version is reported through Info_Version, e.g. "21.09".
	Version string

	// Report is returned by Inform.
	Report string

	// NewErr makes New fail.
	NewErr error

	// OpenFails makes Open return 0.
	OpenFails bool

	// Seeks are returned by successive OpenBufferContinueGoToGet calls;
	// once exhausted NoSeek is returned.
	Seeks []uint64

	// FinishAfter sets StatusFinished on the n-th OpenBufferContinue call.
	// Zero never finishes.
	FinishAfter int
}

// Engine is a fake engine.Engine.
type Engine struct {
	script Script

	mu        sync.Mutex
	calls     []Call
	fed       []byte
	continues int
	seeks     int
}

// New returns a fake engine following script.
func New(script Script) *Engine {
	return &Engine{script: script}
}

func (e *Engine) Name() string { return "test" }

func (e *Engine) New(_ context.Context, library string) (engine.Handle, error) {
	e.record("New", library)
	if e.script.NewErr != nil {
		return nil, e.script.NewErr
	}
	return &handle{e: e}, nil
}

// Calls returns every recorded call in order.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// Methods returns the names of the recorded calls in order.
func (e *Engine) Methods() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.calls))
	for i, c := range e.calls {
		out[i] = c.Method
	}
	return out
}

// Options returns the name/value pairs of every Option call except the
// version query.
func (e *Engine) Options() [][2]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out [][2]string
	for _, c := range e.calls {
		if c.Method != "Option" || c.Args[0] == "Info_Version" {
			continue
		}
		out = append(out, [2]string{c.Args[0].(string), c.Args[1].(string)})
	}
	return out
}

// Option returns the value of the last Option call for name.
func (e *Engine) Option(name string) (string, bool) {
	opts := e.Options()
	for i := len(opts) - 1; i >= 0; i-- {
		if opts[i][0] == name {
			return opts[i][1], true
		}
	}
	return "", false
}

// Fed returns every byte handed to OpenBufferContinue.
func (e *Engine) Fed() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]byte(nil), e.fed...)
}

// Count returns how many times method was called.
func (e *Engine) Count(method string) int {
	n := 0
	for _, m := range e.Methods() {
		if m == method {
			n++
		}
	}
	return n
}

func (e *Engine) record(method string, args ...any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, Call{Method: method, Args: args})
}

type handle struct {
	e *Engine
}

func (h *handle) Option(name, value string) string {
	h.e.record("Option", name, value)
	if name == "Info_Version" {
		return "MediaInfoLib - v" + h.e.script.Version
	}
	return ""
}

func (h *handle) Open(name string) uint {
	h.e.record("Open", name)
	if h.e.script.OpenFails {
		return 0
	}
	return 1
}

func (h *handle) OpenBufferInit(size, offset uint64) uint {
	h.e.record("OpenBufferInit", size, offset)
	return 1
}

func (h *handle) OpenBufferContinue(buf []byte) uint {
	h.e.record("OpenBufferContinue", len(buf))

	h.e.mu.Lock()
	defer h.e.mu.Unlock()
	h.e.fed = append(h.e.fed, buf...)
	h.e.continues++
	if h.e.script.FinishAfter > 0 && h.e.continues >= h.e.script.FinishAfter {
		return 0x01 | engine.StatusFinished
	}
	return 0x01
}

func (h *handle) OpenBufferContinueGoToGet() uint64 {
	h.e.mu.Lock()
	target := engine.NoSeek
	if h.e.seeks < len(h.e.script.Seeks) {
		target = h.e.script.Seeks[h.e.seeks]
		h.e.seeks++
	}
	h.e.mu.Unlock()

	h.e.record("OpenBufferContinueGoToGet")
	return target
}

func (h *handle) OpenBufferFinalize() uint {
	h.e.record("OpenBufferFinalize")
	return 1
}

func (h *handle) Inform() string {
	h.e.record("Inform")
	return h.e.script.Report
}

func (h *handle) Close()  { h.e.record("Close") }
func (h *handle) Delete() { h.e.record("Delete") }
