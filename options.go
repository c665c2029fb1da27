package mediainfo

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/simonhull/mediainfo/internal/document"
	"github.com/simonhull/mediainfo/internal/engine"
	"github.com/simonhull/mediainfo/internal/engine/native"
)

// Option configures how media is analysed.
//
// Options use the functional options pattern:
//
//	doc, err := mediainfo.Parse(ctx, "movie.mkv",
//	    mediainfo.WithParseSpeed(1),
//	    mediainfo.WithCoverData(),
//	)
type Option func(*options)

// options holds the configuration of one call.
type options struct {
	engineName     string        // Registered engine to use
	engine         Engine        // Explicit engine, overrides engineName
	library        string        // Engine library or executable location
	parseSpeed     float64       // ParseSpeed engine option, 0 to 1
	full           bool          // Report every field (Complete=1)
	legacy         bool          // LegacyStreamDisplay engine option
	coverData      bool          // Report cover art as base64
	engineOptions  map[string]string
	encodingErrors string        // document.EncodingStrict or document.EncodingReplace
	timeout        time.Duration // Bound on URL analyses
	cache          *Cache
}

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		engineName:     native.Name,
		parseSpeed:     0.5,
		full:           true,
		encodingErrors: document.EncodingStrict,
	}
}

func newOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// resolveEngine returns the engine selected by the options.
func (o *options) resolveEngine() (Engine, error) {
	if o.engine != nil {
		return o.engine, nil
	}
	if e := engine.Lookup(o.engineName); e != nil {
		return e, nil
	}
	return nil, &ConfigurationError{
		Field:  "Engine",
		Reason: fmt.Sprintf("unknown engine %q (registered: %s)", o.engineName, strings.Join(engine.Names(), ", ")),
	}
}

func (o *options) documentOptions() document.Options {
	return document.Options{EncodingErrors: o.encodingErrors}
}

// request fills the engine request for a source.
func (o *options) request(req engine.Request) engine.Request {
	req.Library = o.library
	req.ParseSpeed = o.parseSpeed
	req.Full = o.full
	req.LegacyStreamDisplay = o.legacy
	req.CoverData = o.coverData
	req.EngineOptions = o.engineOptions
	req.Timeout = o.timeout
	return req
}

// fingerprint identifies every option that changes the engine's report.
func (o *options) fingerprint(engineName, version string, output *string) string {
	parts := []string{
		"engine=" + engineName,
		"version=" + version,
		"library=" + o.library,
		"speed=" + strconv.FormatFloat(o.parseSpeed, 'f', -1, 64),
		"full=" + strconv.FormatBool(o.full),
		"legacy=" + strconv.FormatBool(o.legacy),
		"cover=" + strconv.FormatBool(o.coverData),
	}
	if output != nil {
		parts = append(parts, "output="+*output)
	}
	names := make([]string, 0, len(o.engineOptions))
	for name := range o.engineOptions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		parts = append(parts, "opt:"+name+"="+o.engineOptions[name])
	}
	return strings.Join(parts, "\n")
}

// WithEngine selects a registered engine by name: "native" (the default,
// libmediainfo) or "cli" (the mediainfo executable).
func WithEngine(name string) Option {
	return func(o *options) {
		o.engineName = name
		o.engine = nil
	}
}

// WithCustomEngine uses e instead of a registered engine.
func WithCustomEngine(e Engine) Option {
	return func(o *options) {
		o.engine = e
	}
}

// WithLibrary sets the location of the engine: the libmediainfo shared
// library for the native engine, the executable for the cli engine. A
// leading "~" is expanded to the home directory.
//
// By default the library is looked up next to the executable and then under
// the platform's usual name.
func WithLibrary(path string) Option {
	return func(o *options) {
		o.library = path
	}
}

// WithParseSpeed sets how much of a file the engine reads, from 0 (fast) to
// 1 (complete). Default is 0.5. Values outside [0, 1] make the call fail
// with a *ConfigurationError.
func WithParseSpeed(speed float64) Option {
	return func(o *options) {
		o.parseSpeed = speed
	}
}

// WithFull controls whether the engine reports every field, including the
// machine-readable duplicates of sizes and durations. Default is true.
func WithFull(full bool) Option {
	return func(o *options) {
		o.full = full
	}
}

// WithLegacyStreamDisplay makes the engine report additional stream
// information.
func WithLegacyStreamDisplay() Option {
	return func(o *options) {
		o.legacy = true
	}
}

// WithCoverData makes the engine report embedded cover art as base64 in the
// cover_data field. See Track.CoverData.
func WithCoverData() Option {
	return func(o *options) {
		o.coverData = true
	}
}

// WithEngineOptions passes options to the engine verbatim, for example
// {"Language": "raw"}.
//
// Custom options are reset after the analysis on engines from 19.09 on. Older
// engines keep them, which is reported as a Warning. Custom options also
// disable the parallelism of ParseMany.
func WithEngineOptions(opts map[string]string) Option {
	return func(o *options) {
		if len(opts) == 0 {
			o.engineOptions = nil
			return
		}
		o.engineOptions = make(map[string]string, len(opts))
		for k, v := range opts {
			o.engineOptions[k] = v
		}
	}
}

// WithEncodingErrors selects how invalid UTF-8 in a report is handled:
// "strict" (the default) fails with a *MalformedInputError, "replace"
// substitutes U+FFFD.
func WithEncodingErrors(policy string) Option {
	return func(o *options) {
		o.encodingErrors = policy
	}
}

// WithTimeout bounds the analysis of URLs. It has no effect on local files
// and streams.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithCache stores engine reports for local files in c and reuses them while
// the file and the options are unchanged.
func WithCache(c *Cache) Option {
	return func(o *options) {
		o.cache = c
	}
}
