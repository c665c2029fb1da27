// Package native loads libmediainfo at run time and drives it through its
// C interface.
//
// The library is looked up next to the running executable first, then under
// the platform's system name (libmediainfo.so.0, libmediainfo.0.dylib or
// libmediainfo.dylib, MediaInfo.dll). An explicit path skips the lookup.
// Builds without cgo, and Windows builds, register an engine whose handles
// always fail to load.
package native

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/simonhull/mediainfo/internal/engine"
	"github.com/simonhull/mediainfo/internal/logger"
)

// Name is the registry name of the engine.
const Name = "native"

var log = logger.Get("Native")

// Engine is the libmediainfo engine.
type Engine struct{}

func init() {
	engine.Register(Engine{})
}

func (Engine) Name() string { return Name }

func candidates(library string) []string {
	var dir string
	if exe, err := os.Executable(); err == nil {
		dir = filepath.Dir(exe)
	}
	return engine.LibraryCandidates(runtime.GOOS, dir, library, isFile)
}

func isFile(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.Mode().IsRegular()
}
