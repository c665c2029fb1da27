// Package server exposes media analysis over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/simonhull/mediainfo"
	"github.com/simonhull/mediainfo/internal/logger"
)

var log = logger.Get("Server")

// RequestIDHeader carries the id assigned to every request.
const RequestIDHeader = "X-Request-ID"

type Options struct {
	// Engine is the engine name reported by /healthz.
	Engine string
	// Parse is applied to every analysis.
	Parse []mediainfo.Option
	// Cache is used for path lookups. Optional.
	Cache *mediainfo.Cache
	// MediaRoot is the directory path lookups are confined to. Empty
	// disables them.
	MediaRoot string
	// MaxUploadSize bounds uploaded files. Zero means no limit.
	MaxUploadSize int64
	// AccessLog receives one combined-format line per request. Optional.
	AccessLog io.Writer
}

type Server struct {
	engine        string
	parse         []mediainfo.Option
	cache         *mediainfo.Cache
	mediaRoot     string
	maxUploadSize int64
	accessLog     io.Writer
}

func New(o *Options) *Server {
	return &Server{
		engine:        o.Engine,
		parse:         o.Parse,
		cache:         o.Cache,
		mediaRoot:     o.MediaRoot,
		maxUploadSize: o.MaxUploadSize,
		accessLog:     o.AccessLog,
	}
}

// RegisterHandlers adds the API routes to r.
func (s *Server) RegisterHandlers(r *mux.Router) {
	gzip := handlers.CompressHandler

	r.HandleFunc("/healthz", s.healthHandler).Methods("GET", "HEAD")

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Handle("/media", gzip(http.HandlerFunc(s.uploadHandler))).Methods("POST")
	v1.Handle("/media", gzip(http.HandlerFunc(s.pathHandler))).Methods("GET")
}

// Handler returns the complete HTTP handler: routes, request ids and the
// access log.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	s.RegisterHandlers(r)

	var h http.Handler = r
	if s.accessLog != nil {
		h = handlers.CombinedLoggingHandler(s.accessLog, h)
	}
	return requestID(h)
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

type health struct {
	Engine    string `json:"engine"`
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := health{Engine: s.engine}

	version, err := mediainfo.EngineVersion(r.Context(), s.parse...)
	if err == nil {
		resp.Available = true
		resp.Version = version
	} else {
		log.Emit(logger.WARNING, "engine %s unavailable: %v\n", s.engine, err)
	}
	serveJSON(w, http.StatusOK, resp)
}

func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	if s.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			serveError(w, r, http.StatusRequestEntityTooLarge, err)
			return
		}
		serveError(w, r, http.StatusBadRequest, err)
		return
	}
	defer file.Close()

	log.Emit(logger.DEBUG, "request %s: upload %s (%d bytes)\n", r.Header.Get(RequestIDHeader), header.Filename, header.Size)

	s.analyse(w, r, func(ctx context.Context, output *string, opts []mediainfo.Option) (any, error) {
		if output != nil {
			return mediainfo.InformReader(ctx, file, *output, opts...)
		}
		return mediainfo.ParseReader(ctx, file, opts...)
	})
}

func (s *Server) pathHandler(w http.ResponseWriter, r *http.Request) {
	path, err := s.resolve(r.URL.Query().Get("path"))
	if err != nil {
		serveError(w, r, http.StatusForbidden, err)
		return
	}

	s.analyse(w, r, func(ctx context.Context, output *string, opts []mediainfo.Option) (any, error) {
		if s.cache != nil {
			opts = append(opts, mediainfo.WithCache(s.cache))
		}
		if output != nil {
			return mediainfo.Inform(ctx, path, *output, opts...)
		}
		return mediainfo.Parse(ctx, path, opts...)
	})
}

type analysis func(ctx context.Context, output *string, opts []mediainfo.Option) (any, error)

// analyse runs fn and writes its result: a Document as JSON or, when the
// output query parameter is present, the raw engine report.
func (s *Server) analyse(w http.ResponseWriter, r *http.Request, fn analysis) {
	var output *string
	if q := r.URL.Query(); q.Has("output") {
		v := q.Get("output")
		output = &v
	}

	opts := append([]mediainfo.Option(nil), s.parse...)
	result, err := fn(r.Context(), output, opts)
	if err != nil {
		serveError(w, r, statusOf(err), err)
		return
	}

	switch v := result.(type) {
	case string:
		w.Header().Set("Content-Type", contentType(*output))
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, v)
	default:
		serveJSON(w, http.StatusOK, v)
	}
}

// resolve maps a path query onto the media root.
func (s *Server) resolve(rel string) (string, error) {
	if s.mediaRoot == "" {
		return "", errors.New("path lookups are disabled")
	}
	if rel == "" {
		return "", errors.New("path is required")
	}

	root, err := filepath.Abs(s.mediaRoot)
	if err != nil {
		return "", err
	}
	full := filepath.Join(root, filepath.FromSlash(rel))
	if !within(root, full) {
		return "", errors.New("path escapes the media root")
	}

	// Symlinks are followed; a missing file is left for the engine to report.
	target, err := filepath.EvalSymlinks(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return full, nil
		}
		return "", err
	}
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", err
	}
	if !within(realRoot, target) {
		return "", errors.New("path escapes the media root")
	}
	return full, nil
}

func within(root, path string) bool {
	inside, err := filepath.Rel(root, path)
	return err == nil && inside != ".." && !strings.HasPrefix(inside, ".."+string(filepath.Separator))
}

func statusOf(err error) int {
	var (
		cfg       *mediainfo.ConfigurationError
		notFound  *mediainfo.NotFoundError
		malformed *mediainfo.MalformedInputError
		engineErr *mediainfo.EngineError
	)
	switch {
	case errors.As(err, &cfg):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &malformed), errors.As(err, &engineErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func contentType(output string) string {
	switch strings.ToUpper(output) {
	case mediainfo.OutputJSON:
		return "application/json"
	case mediainfo.OutputXML, mediainfo.OutputOldXML:
		return "application/xml"
	case mediainfo.OutputHTML:
		return "text/html; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}

type apiError struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func serveError(w http.ResponseWriter, r *http.Request, status int, err error) {
	id := r.Header.Get(RequestIDHeader)
	level := logger.INFO
	if status >= http.StatusInternalServerError {
		level = logger.ERROR
	}
	log.Emit(level, "request %s: %d %v\n", id, status, err)
	serveJSON(w, status, apiError{Error: err.Error(), RequestID: id})
}

func serveJSON(w http.ResponseWriter, status int, obj any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	j := json.NewEncoder(w)
	j.SetIndent("", "  ")
	j.Encode(obj)
}
