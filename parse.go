package mediainfo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/simonhull/mediainfo/internal/cache"
	"github.com/simonhull/mediainfo/internal/document"
	"github.com/simonhull/mediainfo/internal/engine"
	_ "github.com/simonhull/mediainfo/internal/engine/cli"
	"github.com/simonhull/mediainfo/internal/logger"
)

var log = logger.Get("MediaInfo")

// Parse analyses a local file or URL and returns its tracks.
//
// A local path that does not exist fails with a *NotFoundError; any other
// engine failure is an *EngineError.
//
// Example:
//
//	doc, err := mediainfo.Parse(ctx, "movie.mkv")
//	if err != nil {
//		return err
//	}
//	general := doc.General()[0]
//	duration, _ := general.Int("duration")
//	fmt.Printf("%.1f s\n", float64(duration)/1000)
func Parse(ctx context.Context, name string, opts ...Option) (*Document, error) {
	return parse(ctx, newOptions(opts), engine.Request{Name: name})
}

// ParseReader analyses a stream. The stream must implement io.Seeker; a
// stream that reports a text mode through Mode() is rejected. Both fail with
// a *ConfigurationError before the engine is loaded.
func ParseReader(ctx context.Context, r io.Reader, opts ...Option) (*Document, error) {
	return parse(ctx, newOptions(opts), engine.Request{Stream: r})
}

// Inform analyses a local file or URL and returns the engine's report in the
// given output format (see OutputText, OutputJSON, ...) without parsing it.
func Inform(ctx context.Context, name, output string, opts ...Option) (string, error) {
	report, _, err := run(ctx, newOptions(opts), engine.Request{Name: name, Output: &output})
	return report, err
}

// InformReader is Inform for a stream.
func InformReader(ctx context.Context, r io.Reader, output string, opts ...Option) (string, error) {
	report, _, err := run(ctx, newOptions(opts), engine.Request{Stream: r, Output: &output})
	return report, err
}

// ParseMany analyses several files and returns their documents in the order
// of names.
//
// Files are analysed in parallel, up to runtime.NumCPU() at a time, only when
// the engine is version 20.03 or later and no custom engine options are set.
// Otherwise they are analysed one after the other.
//
// If any file fails, the first error is returned.
func ParseMany(ctx context.Context, names []string, opts ...Option) ([]*Document, error) {
	if len(names) == 0 {
		return nil, nil
	}

	o := newOptions(opts)
	limit, err := concurrency(ctx, o)
	if err != nil {
		return nil, err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	results := make([]*Document, len(names))

	for i, name := range names {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			doc, err := parse(ctx, o, engine.Request{Name: name})
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			results[i] = doc
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// concurrency returns how many analyses may run at once.
func concurrency(ctx context.Context, o *options) (int, error) {
	e, err := o.resolveEngine()
	if err != nil {
		return 0, err
	}
	if len(o.engineOptions) > 0 {
		return 1, nil
	}
	v, err := engine.Info(ctx, e, o.library)
	if err != nil || !v.Supports(engine.ThreadSafe) {
		return 1, nil
	}
	return runtime.NumCPU(), nil
}

// CanParse reports whether the selected engine can be loaded.
func CanParse(opts ...Option) bool {
	o := newOptions(opts)
	e, err := o.resolveEngine()
	if err != nil {
		return false
	}
	return engine.Probe(context.Background(), e, o.library)
}

// EngineVersion returns the version of the selected engine, such as "21.9".
func EngineVersion(ctx context.Context, opts ...Option) (string, error) {
	o := newOptions(opts)
	e, err := o.resolveEngine()
	if err != nil {
		return "", err
	}
	v, err := engine.Info(ctx, e, o.library)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func parse(ctx context.Context, o *options, req engine.Request) (*Document, error) {
	if err := o.documentOptions().Validate(); err != nil {
		return nil, err
	}

	report, warnings, err := run(ctx, o, req)
	if err != nil {
		return nil, err
	}

	tracks, err := document.Parse(strings.NewReader(report), o.documentOptions())
	if err != nil {
		return nil, err
	}
	return &Document{Tracks: tracks, Warnings: warnings}, nil
}

// run produces the raw report for a request, from the cache when possible.
func run(ctx context.Context, o *options, req engine.Request) (string, []Warning, error) {
	e, err := o.resolveEngine()
	if err != nil {
		return "", nil, err
	}
	req = o.request(req)

	key := cacheKey(ctx, o, e, &req)
	if key != "" {
		entry, err := o.cache.Get(ctx, key)
		switch {
		case err == nil:
			log.Emit(logger.DEBUG, "cache hit for %s\n", req.Name)
			return entry.Report, nil, nil
		case !errors.Is(err, cache.ErrNotFound):
			log.Emit(logger.WARNING, "cache lookup for %s: %v\n", req.Name, err)
		}
	}

	report, warnings, err := engine.NewSession(e).Run(ctx, req)
	if err != nil {
		return "", warnings, err
	}

	if key != "" {
		entry := cache.Entry{Key: key, Source: req.Name, Engine: e.Name(), Report: report}
		if err := o.cache.Put(ctx, entry); err != nil {
			log.Emit(logger.WARNING, "cache store for %s: %v\n", req.Name, err)
		}
	}
	return report, warnings, nil
}

// cacheKey returns the cache key of a request, or "" when the request is
// not cacheable: no cache, a stream, a URL, or a file that cannot be
// examined.
func cacheKey(ctx context.Context, o *options, e Engine, req *engine.Request) string {
	if o.cache == nil || req.Stream != nil || req.Name == "" || engine.IsURL(req.Name) {
		return ""
	}
	// Reports from another engine build must not be reused.
	version, err := engine.Info(ctx, e, o.library)
	if err != nil {
		log.Emit(logger.DEBUG, "cache disabled for %s: %v\n", req.Name, err)
		return ""
	}
	key, err := cache.Key(req.Name, o.fingerprint(e.Name(), version.String(), req.Output))
	if err != nil {
		return ""
	}
	return key
}
