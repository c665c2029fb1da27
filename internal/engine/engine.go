// Package engine drives a MediaInfo analysis engine through its procedural
// handle API and returns the raw report.
//
// An Engine creates Handles. A Handle mirrors the C interface of
// libmediainfo: options are set by name, a source is opened either by name
// or by feeding it buffer by buffer, and Inform returns the report in the
// format selected through the Inform option. Session runs that sequence for
// a single request and always releases the handle.
package engine

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
)

// NoSeek is returned by Handle.OpenBufferContinueGoToGet when the engine
// does not need the feeder to seek.
const NoSeek = ^uint64(0)

// StatusFinished is the status bit reporting that the engine has read
// enough of a buffer-fed source.
const StatusFinished = 0x08

// ChunkSize is the amount of data handed to the engine per buffer call.
const ChunkSize = 64 * 1024

// Engine creates analysis handles.
type Engine interface {
	// Name identifies the engine in the registry ("native", "cli").
	Name() string

	// New loads the engine, from library when it is non-empty, and returns
	// a fresh handle. The context bounds any work the handle does outside
	// the process.
	New(ctx context.Context, library string) (Handle, error)
}

// Handle is one analysis session inside the engine.
type Handle interface {
	// Option sets a named option and returns the engine's reply.
	Option(name, value string) string

	// Open analyses a path or URL. It returns 0 on failure.
	Open(name string) uint

	// OpenBufferInit starts, or restarts after a seek, a buffer feed of a
	// source of the given size at offset.
	OpenBufferInit(size, offset uint64) uint

	// OpenBufferContinue hands the next chunk to the engine and returns a
	// status bitfield; see StatusFinished.
	OpenBufferContinue(buf []byte) uint

	// OpenBufferContinueGoToGet returns the offset the engine wants to read
	// next, or NoSeek.
	OpenBufferContinueGoToGet() uint64

	// OpenBufferFinalize ends a buffer feed.
	OpenBufferFinalize() uint

	// Inform returns the report of the analysed source.
	Inform() string

	Close()
	Delete()
}

// Moder is implemented by streams that know the mode they were opened in.
// A stream whose mode does not contain "b" is a text stream and cannot be
// fed to the engine.
type Moder interface {
	Mode() string
}

var (
	mu      sync.RWMutex
	engines = make(map[string]Engine)
)

// Register makes an engine available by name. Engine packages call it from
// init; registering a name twice replaces the earlier engine.
func Register(e Engine) {
	mu.Lock()
	defer mu.Unlock()
	engines[e.Name()] = e
}

// Lookup returns the engine registered under name, or nil.
func Lookup(name string) Engine {
	mu.RLock()
	defer mu.RUnlock()
	return engines[name]
}

// Names returns the registered engine names in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LibraryNames returns the file names under which libmediainfo is looked
// up on the given GOOS.
func LibraryNames(goos string) []string {
	switch goos {
	case "windows":
		return []string{"MediaInfo.dll"}
	case "darwin":
		return []string{"libmediainfo.0.dylib", "libmediainfo.dylib"}
	default:
		return []string{"libmediainfo.so.0"}
	}
}

// LibraryCandidates returns the library paths to try in order. An explicit
// library is the only candidate. Otherwise a copy next to the executable in
// dir wins over the system names, and once one is found there no other name
// is tried.
func LibraryCandidates(goos, dir, library string, exists func(string) bool) []string {
	if library != "" {
		return []string{library}
	}
	names := LibraryNames(goos)
	if dir != "" {
		for _, name := range names {
			p := filepath.Join(dir, name)
			if exists(p) {
				return []string{p}
			}
		}
	}
	return names
}
