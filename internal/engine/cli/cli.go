// Package cli drives the mediainfo command line tool as an analysis engine.
//
// Options set on a handle are translated to command line flags when the
// source is analysed. Buffer-fed sources are spooled to a temporary file,
// so the engine never asks the feeder to seek.
package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/simonhull/mediainfo/internal/engine"
	"github.com/simonhull/mediainfo/internal/logger"
	"github.com/simonhull/mediainfo/internal/types"
)

// Name is the registry name of the engine.
const Name = "cli"

// DefaultBinary is looked up on PATH when no binary is configured.
const DefaultBinary = "mediainfo"

var log = logger.Get("CLI")

func init() {
	engine.Register(&Engine{})
}

// Engine runs the mediainfo executable.
type Engine struct {
	// Binary is the executable name or path. Empty means DefaultBinary.
	Binary string
}

func (e *Engine) Name() string { return Name }

// New resolves the executable. A non-empty library names the executable
// and takes precedence over Binary.
func (e *Engine) New(ctx context.Context, library string) (engine.Handle, error) {
	bin := library
	if bin == "" {
		bin = e.Binary
	}
	if bin == "" {
		bin = DefaultBinary
	}

	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrEngineUnavailable, err)
	}

	return &handle{
		ctx:     ctx,
		path:    path,
		options: make(map[string]string),
	}, nil
}

type handle struct {
	ctx     context.Context
	path    string
	options map[string]string
	report  string

	spool *os.File
}

func (h *handle) Option(name, value string) string {
	switch name {
	case "Info_Version":
		out, err := h.run("--Version")
		if err != nil {
			return ""
		}
		return versionLine(out)
	case "Reset":
		h.options = make(map[string]string)
		return ""
	}
	h.options[name] = value
	return ""
}

// versionLine picks the library line out of "mediainfo --Version", which
// prints the tool name first.
func versionLine(out string) string {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "MediaInfoLib") {
			return line
		}
	}
	return strings.TrimSpace(out)
}

func (h *handle) Open(name string) uint {
	return h.analyse(name)
}

func (h *handle) OpenBufferInit(size, offset uint64) uint {
	if h.spool == nil {
		f, err := os.CreateTemp("", "mediainfo-*")
		if err != nil {
			log.Emit(logger.ERROR, "create spool file: %v\n", err)
			return 0
		}
		h.spool = f
	}
	if _, err := h.spool.Seek(int64(offset), io.SeekStart); err != nil {
		log.Emit(logger.ERROR, "seek spool file: %v\n", err)
		return 0
	}
	return 1
}

func (h *handle) OpenBufferContinue(buf []byte) uint {
	if h.spool == nil {
		return 0
	}
	if _, err := h.spool.Write(buf); err != nil {
		log.Emit(logger.ERROR, "write spool file: %v\n", err)
		return 0
	}
	return 1
}

func (h *handle) OpenBufferContinueGoToGet() uint64 {
	return engine.NoSeek
}

func (h *handle) OpenBufferFinalize() uint {
	if h.spool == nil {
		return 0
	}
	if err := h.spool.Sync(); err != nil {
		log.Emit(logger.ERROR, "flush spool file: %v\n", err)
		return 0
	}
	return h.analyse(h.spool.Name())
}

func (h *handle) Inform() string {
	return h.report
}

func (h *handle) Close() {
	if h.spool == nil {
		return
	}
	name := h.spool.Name()
	h.spool.Close()
	os.Remove(name)
	h.spool = nil
}

func (h *handle) Delete() {
	h.report = ""
	h.options = nil
}

func (h *handle) analyse(name string) uint {
	args := append(h.flags(), name)
	out, err := h.run(args...)
	if err != nil {
		log.Emit(logger.DEBUG, "analyse %s: %v\n", name, err)
		return 0
	}
	h.report = out
	return 1
}

// flags translates the recorded options. Empty values are the engine's
// defaults and produce no flag.
func (h *handle) flags() []string {
	names := make([]string, 0, len(h.options))
	for name := range h.options {
		names = append(names, name)
	}
	sort.Strings(names)

	var args []string
	for _, name := range names {
		value := h.options[name]
		switch {
		case name == "CharSet":
			// Applied through the locale in run.
		case name == "Inform":
			if value != "" {
				args = append(args, "--Output="+value)
			}
		case name == "Complete":
			if value == "1" {
				args = append(args, "-f")
			}
		case value != "":
			args = append(args, "--"+name+"="+value)
		}
	}
	return args
}

func (h *handle) run(args ...string) (string, error) {
	cmd := exec.CommandContext(h.ctx, h.path, args...)

	env := os.Environ()
	if strings.EqualFold(h.options["CharSet"], "UTF-8") {
		env = append(env, "LANG=C.UTF-8", "LC_ALL=C.UTF-8")
	}
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w: %s", err, msg)
		}
		return "", err
	}
	return stdout.String(), nil
}
