package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mitchellh/go-homedir"

	"github.com/simonhull/mediainfo/internal/logger"
	"github.com/simonhull/mediainfo/internal/types"
)

var log = logger.Get("Engine")

var validate = validator.New()

// Request describes one analysis.
type Request struct {
	// Name is a local path or URL. Exactly one of Name and Stream is set.
	Name string

	// Stream is fed to the engine buffer by buffer. It must implement
	// io.Seeker.
	Stream io.Reader `validate:"-"`

	// Library is an explicit engine library location; "~" is expanded.
	Library string

	ParseSpeed          float64 `validate:"gte=0,lte=1"`
	Full                bool
	LegacyStreamDisplay bool
	CoverData           bool

	// Output selects a custom report format. Nil selects the XML format
	// the document parser reads.
	Output *string

	// EngineOptions are passed through verbatim, in sorted key order.
	EngineOptions map[string]string `validate:"-"`

	// Timeout bounds the analysis of a URL. Zero means no limit.
	Timeout time.Duration `validate:"gte=0"`
}

// Source names the request in errors and logs.
func (r *Request) Source() string {
	if r.Stream != nil {
		if named, ok := r.Stream.(interface{ Name() string }); ok {
			return named.Name()
		}
		return "<stream>"
	}
	return r.Name
}

// Validate checks a request without touching any engine.
func (r *Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) && len(invalid) > 0 {
			f := invalid[0]
			return &types.ConfigurationError{Field: f.Field(), Reason: reason(f)}
		}
		return &types.ConfigurationError{Reason: err.Error()}
	}

	switch {
	case r.Stream == nil && r.Name == "":
		return &types.ConfigurationError{Field: "Name", Reason: "a path, URL or stream is required"}
	case r.Stream != nil && r.Name != "":
		return &types.ConfigurationError{Field: "Stream", Reason: "a stream cannot be combined with a name"}
	case r.Stream == nil:
		return nil
	}

	if m, ok := r.Stream.(Moder); ok && !strings.Contains(m.Mode(), "b") {
		return &types.ConfigurationError{Field: "Stream", Reason: "stream must be opened in binary mode"}
	}
	if _, ok := r.Stream.(io.Seeker); !ok {
		return &types.ConfigurationError{Field: "Stream", Reason: "stream must implement io.Seeker"}
	}
	return nil
}

func reason(f validator.FieldError) string {
	switch f.Tag() {
	case "gte":
		return "must be at least " + f.Param()
	case "lte":
		return "must be at most " + f.Param()
	}
	return fmt.Sprintf("failed the %s check", f.Tag())
}

// IsURL reports whether a name is handed to the engine as a URL.
func IsURL(name string) bool {
	return strings.Contains(name, "://")
}

// Session runs requests against one engine.
type Session struct {
	engine Engine
}

// NewSession returns a session for e.
func NewSession(e Engine) *Session {
	return &Session{engine: e}
}

// Engine returns the session's engine.
func (s *Session) Engine() Engine {
	return s.engine
}

// Run analyses the request and returns the raw report together with any
// warnings raised while configuring the engine.
//
// Request errors are reported as *types.ConfigurationError before the
// engine is loaded. A missing local file is a *types.NotFoundError; any
// other engine failure is a *types.EngineError.
func (s *Session) Run(ctx context.Context, req Request) (string, []types.Warning, error) {
	if err := req.Validate(); err != nil {
		return "", nil, err
	}
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	if req.Timeout > 0 && IsURL(req.Name) {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	library, err := homedir.Expand(req.Library)
	if err != nil {
		return "", nil, &types.ConfigurationError{Field: "Library", Reason: err.Error()}
	}

	id := uuid.NewString()
	source := req.Source()

	h, err := s.engine.New(ctx, library)
	if err != nil {
		return "", nil, &types.EngineError{Source: source, Reason: "load " + s.engine.Name() + " engine", Err: err}
	}
	defer func() {
		h.Close()
		h.Delete()
		log.Emit(logger.VERBOSE, "session %s released\n", id)
	}()

	version, err := HandleVersion(h)
	if err != nil {
		return "", nil, &types.EngineError{Source: source, Reason: "read engine version", Err: err}
	}
	log.Emit(logger.DEBUG, "session %s: %s engine %s, source %s\n", id, s.engine.Name(), version, source)

	warnings := configure(h, version, &req)
	for _, w := range warnings {
		log.Emit(logger.WARNING, "session %s: %s\n", id, w.Message)
	}

	if req.Stream != nil {
		if err := feed(h, req.Stream, source); err != nil {
			return "", warnings, err
		}
	} else if h.Open(req.Name) == 0 {
		return "", warnings, openError(req.Name)
	}

	report := h.Inform()

	if len(req.EngineOptions) > 0 && version.Supports(ResetOption) {
		h.Option("Reset", "")
	}

	log.Emit(logger.DEBUG, "session %s: %d bytes of output\n", id, len(report))
	return report, warnings, nil
}

// configure sets the engine options for a request in the order the engine
// expects them.
func configure(h Handle, version Version, req *Request) []types.Warning {
	if version.Supports(CoverDataOption) {
		h.Option("Cover_Data", flag(req.CoverData, "base64"))
	}
	h.Option("CharSet", "UTF-8")

	inform := "XML"
	if version.Supports(OldXMLFormat) {
		inform = "OLDXML"
	}
	if req.Output != nil {
		inform = *req.Output
	}
	h.Option("Inform", inform)
	h.Option("Complete", flag(req.Full, "1"))
	h.Option("ParseSpeed", strconv.FormatFloat(req.ParseSpeed, 'f', -1, 64))
	h.Option("LegacyStreamDisplay", flag(req.LegacyStreamDisplay, "1"))

	if len(req.EngineOptions) == 0 {
		return nil
	}

	var warnings []types.Warning
	if !version.Supports(ResetOption) {
		warnings = append(warnings, types.Warning{
			Stage: "options",
			Message: fmt.Sprintf("engine version %s cannot reset options to their defaults; "+
				"custom options may leak into later analyses", version),
		})
	}

	names := make([]string, 0, len(req.EngineOptions))
	for name := range req.EngineOptions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		h.Option(name, req.EngineOptions[name])
	}
	return warnings
}

func flag(set bool, value string) string {
	if set {
		return value
	}
	return ""
}

// feed hands a seekable stream to the engine, honoring the engine's seek
// requests, until the engine reports it is finished or the stream ends.
func feed(h Handle, r io.Reader, source string) error {
	rs := r.(io.ReadSeeker)

	end, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return &types.EngineError{Source: source, Reason: "measure stream", Err: err}
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return &types.EngineError{Source: source, Reason: "rewind stream", Err: err}
	}
	size := uint64(end)

	h.OpenBufferInit(size, 0)

	buf := make([]byte, ChunkSize)
	for {
		n, err := io.ReadFull(rs, buf)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return &types.EngineError{Source: source, Reason: "read stream", Err: err}
		}
		if n == 0 {
			break
		}

		if h.OpenBufferContinue(buf[:n])&StatusFinished != 0 {
			break
		}

		target := h.OpenBufferContinueGoToGet()
		if target == NoSeek {
			continue
		}
		if target > math.MaxInt64 {
			return &types.EngineError{Source: source, Reason: fmt.Sprintf("engine requested offset %d", target)}
		}
		pos, err := rs.Seek(int64(target), io.SeekStart)
		if err != nil {
			return &types.EngineError{Source: source, Reason: "seek stream", Err: err}
		}
		h.OpenBufferInit(size, uint64(pos))
	}

	h.OpenBufferFinalize()
	return nil
}

func openError(name string) error {
	if !IsURL(name) {
		if _, err := os.Stat(name); err != nil {
			return &types.NotFoundError{Path: name}
		}
	}
	return &types.EngineError{Source: name}
}

// Probe reports whether the engine can be loaded and answers a version
// query.
func Probe(ctx context.Context, e Engine, library string) bool {
	_, err := Info(ctx, e, library)
	return err == nil
}

// Info loads the engine and returns its version.
func Info(ctx context.Context, e Engine, library string) (Version, error) {
	library, err := homedir.Expand(library)
	if err != nil {
		return nil, err
	}
	h, err := e.New(ctx, library)
	if err != nil {
		return nil, err
	}
	defer func() {
		h.Close()
		h.Delete()
	}()
	return HandleVersion(h)
}
