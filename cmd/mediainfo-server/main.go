// Command mediainfo-server serves media analysis over HTTP.
//
//	mediainfo-server --config mediainfo.yml
//
// See internal/server for the routes.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/simonhull/mediainfo"
	"github.com/simonhull/mediainfo/internal/config"
	"github.com/simonhull/mediainfo/internal/logger"
	"github.com/simonhull/mediainfo/internal/server"
)

var log = logger.Get("Main")

func main() {
	configPath := pflag.String("config", "", "YAML configuration file")
	port := pflag.Int("port", 0, "listen port, overrides the configuration")
	mediaRoot := pflag.String("media-root", "", "directory served by GET /v1/media")
	verbose := pflag.BoolP("verbose", "v", false, "verbose logging")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if pflag.CommandLine.Changed("port") {
		cfg.Server.Port = *port
	}
	if pflag.CommandLine.Changed("media-root") {
		cfg.Server.MediaRoot = *mediaRoot
	}

	level, err := cfg.Level()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if *verbose {
		level = logger.DEBUG
	}
	logger.SetLevel(level)

	opts := cfg.Options()
	if !mediainfo.CanParse(opts...) {
		log.Emit(logger.WARNING, "%s engine is not available; analyses will fail\n", cfg.Engine.Name)
	}

	cache, err := cfg.OpenCache()
	if err != nil {
		log.Emit(logger.FATAL, "open cache: %v\n", err)
		os.Exit(1)
	}
	if cache != nil {
		defer cache.Close()
	}

	s := server.New(&server.Options{
		Engine:        cfg.Engine.Name,
		Parse:         opts,
		Cache:         cache,
		MediaRoot:     cfg.Server.MediaRoot,
		MaxUploadSize: cfg.Server.MaxUploadSize,
		AccessLog:     os.Stdout,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()

	log.Emit(logger.INFO, "serving HTTP on %s\n", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Emit(logger.FATAL, "%v\n", err)
		os.Exit(1)
	}
}
