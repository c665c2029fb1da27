// Command mediainfo-dump prints what the engine reports about media files.
//
// Usage:
//
//	mediainfo-dump [flags] FILE|URL...
//
// By default every track is printed framed by its type, followed by a short
// summary of the general, video and audio tracks. --json prints the parsed
// document as JSON and --output prints the engine's own report instead.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/pflag"

	"github.com/simonhull/mediainfo"
	"github.com/simonhull/mediainfo/internal/config"
	"github.com/simonhull/mediainfo/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type flags struct {
	json       bool
	output     string
	engine     string
	library    string
	parseSpeed float64
	full       bool
	legacy     bool
	cover      bool
	options    []string
	cache      string
	config     string
	verbose    bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var f flags
	fs := pflag.NewFlagSet("mediainfo-dump", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: mediainfo-dump [flags] FILE|URL...")
		fs.PrintDefaults()
	}

	fs.BoolVar(&f.json, "json", false, "print the parsed document as JSON")
	fs.StringVar(&f.output, "output", "", "print the engine report in this format (\"\" for text, XML, JSON, HTML, ...)")
	fs.StringVar(&f.engine, "engine", "", "engine to use: native or cli")
	fs.StringVar(&f.library, "library", "", "libmediainfo or mediainfo executable location")
	fs.Float64Var(&f.parseSpeed, "parse-speed", 0.5, "how much of each file to read, 0 to 1")
	fs.BoolVar(&f.full, "full", true, "report every field")
	fs.BoolVar(&f.legacy, "legacy", false, "report legacy stream information")
	fs.BoolVar(&f.cover, "cover", false, "report cover art as base64")
	fs.StringArrayVar(&f.options, "option", nil, "engine option as NAME=VALUE (repeatable)")
	fs.StringVar(&f.cache, "cache", "", "report cache database")
	fs.StringVar(&f.config, "config", "", "YAML configuration file")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "verbose logging")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(f.config)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := apply(fs, &f, cfg); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	level, err := cfg.Level()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if f.verbose {
		level = logger.DEBUG
	}
	logger.SetLevel(level)
	logger.SetOutput(stderr)

	opts := cfg.Options()
	cache, err := cfg.OpenCache()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if cache != nil {
		defer cache.Close()
		opts = append(opts, mediainfo.WithCache(cache))
	}

	status := 0
	for i, name := range fs.Args() {
		if i > 0 {
			fmt.Fprintln(stdout)
		}
		if err := process(ctx, stdout, name, &f, fs.Changed("output"), opts); err != nil {
			fmt.Fprintf(stderr, "Error: %s: %v\n", name, err)
			status = 1
		}
	}
	return status
}

// apply overrides the configuration with the flags given on the command
// line.
func apply(fs *pflag.FlagSet, f *flags, cfg *config.Config) error {
	if fs.Changed("engine") {
		cfg.Engine.Name = f.engine
	}
	if fs.Changed("library") {
		cfg.Engine.Library = f.library
	}
	if fs.Changed("parse-speed") {
		cfg.Engine.ParseSpeed = f.parseSpeed
	}
	if fs.Changed("full") {
		cfg.Engine.Full = f.full
	}
	if fs.Changed("legacy") {
		cfg.Engine.Legacy = f.legacy
	}
	if fs.Changed("cover") {
		cfg.Engine.CoverData = f.cover
	}
	if fs.Changed("cache") {
		cfg.Cache.Path = f.cache
	}
	if len(f.options) > 0 {
		if cfg.Engine.Options == nil {
			cfg.Engine.Options = make(map[string]string)
		}
		for _, kv := range f.options {
			name, value, ok := strings.Cut(kv, "=")
			if !ok || name == "" {
				return fmt.Errorf("invalid --option %q, expected NAME=VALUE", kv)
			}
			cfg.Engine.Options[name] = value
		}
	}
	return nil
}

func process(ctx context.Context, w io.Writer, name string, f *flags, raw bool, opts []mediainfo.Option) error {
	if raw {
		report, err := mediainfo.Inform(ctx, name, f.output, opts...)
		if err != nil {
			return err
		}
		fmt.Fprint(w, report)
		return nil
	}

	doc, err := mediainfo.Parse(ctx, name, opts...)
	if err != nil {
		return err
	}

	if f.json {
		s, err := doc.ToJSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(w, s)
		return nil
	}

	fmt.Fprintf(w, "Processing %s\n", name)
	for _, t := range doc.Tracks {
		dumpTrack(w, t)
	}
	summarize(w, doc)

	for _, warn := range doc.Warnings {
		fmt.Fprintf(w, "  • %s\n", warn)
	}
	return nil
}

func dumpTrack(w io.Writer, t *mediainfo.Track) {
	title := fmt.Sprintf("─ %s ", t.Type)
	fmt.Fprintf(w, "┌%s%s\n", title, strings.Repeat("─", max(0, 40-len([]rune(title)))))
	for _, key := range t.Keys() {
		v, _ := t.Get(key)
		fmt.Fprintf(w, "│ %-32s %s\n", key, format(v))
	}
	fmt.Fprintln(w, "└"+strings.Repeat("─", 40))
}

func format(v any) string {
	switch val := v.(type) {
	case nil:
		return "None"
	case []any:
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = format(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return fmt.Sprint(v)
}

func summarize(w io.Writer, doc *mediainfo.Document) {
	for _, t := range doc.General() {
		if f, ok := t.Text("format"); ok {
			fmt.Fprintf(w, "The file format is %s\n", f)
		}
		if d, ok := t.Int("duration"); ok {
			fmt.Fprintf(w, "Duration of the general track: %g seconds\n", float64(d)/1000)
		}
	}
	for _, t := range doc.Video() {
		id, _ := t.ID()
		width, _ := t.Text("width")
		height, _ := t.Text("height")
		fmt.Fprintf(w, "Video track %s has a resolution of %s×%s", id, width, height)
		if rate, ok := t.Text("bit_rate"); ok {
			fmt.Fprintf(w, " and a bit rate of %s bits/s", rate)
		}
		fmt.Fprintln(w)
	}
	for _, t := range doc.Audio() {
		if d, ok := t.Int("duration"); ok {
			id, _ := t.ID()
			fmt.Fprintf(w, "Audio track %s has a duration of %g seconds\n", id, float64(d)/1000)
		}
	}
}
