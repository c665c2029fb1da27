package engine_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonhull/mediainfo/internal/engine"
	"github.com/simonhull/mediainfo/internal/engine/enginetest"
	"github.com/simonhull/mediainfo/internal/types"
)

// textStream reports a text mode like a file opened without "b".
type textStream struct {
	*bytes.Reader
	mode string
}

func (s textStream) Mode() string { return s.mode }

func baseRequest(name string) engine.Request {
	return engine.Request{Name: name, ParseSpeed: 0.5, Full: true}
}

func writeTemp(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "clip.mkv")
	require.NoError(t, os.WriteFile(p, []byte("data"), 0o644))
	return p
}

func TestSession_Run_Path(t *testing.T) {
	spy := enginetest.New(enginetest.Script{Version: "21.09", Report: "<File/>"})
	path := writeTemp(t)

	report, warnings, err := engine.NewSession(spy).Run(context.Background(), baseRequest(path))
	require.NoError(t, err)
	assert.Equal(t, "<File/>", report)
	assert.Empty(t, warnings)

	assert.Equal(t, []string{
		"New", "Option", // Info_Version
		"Option", "Option", "Option", "Option", "Option", "Option",
		"Open", "Inform", "Close", "Delete",
	}, spy.Methods())

	assert.Equal(t, [][2]string{
		{"Cover_Data", ""},
		{"CharSet", "UTF-8"},
		{"Inform", "OLDXML"},
		{"Complete", "1"},
		{"ParseSpeed", "0.5"},
		{"LegacyStreamDisplay", ""},
	}, spy.Options())
}

func TestSession_Run_OptionsByVersion(t *testing.T) {
	custom := "JSON"
	tests := []struct {
		name      string
		version   string
		mutate    func(*engine.Request)
		wantInfo  string
		wantCover *string
	}{
		{name: "old engine uses XML", version: "17.9", wantInfo: "XML"},
		{name: "17.10 uses OLDXML", version: "17.10", wantInfo: "OLDXML"},
		{name: "cover option before 18.3 is omitted", version: "18.2", wantInfo: "OLDXML",
			mutate: func(r *engine.Request) { r.CoverData = true }},
		{name: "cover data requested", version: "18.3", wantInfo: "OLDXML", wantCover: ptr("base64"),
			mutate: func(r *engine.Request) { r.CoverData = true }},
		{name: "cover data not requested", version: "18.3", wantInfo: "OLDXML", wantCover: ptr("")},
		{name: "custom output", version: "21.09", wantInfo: "JSON", wantCover: ptr(""),
			mutate: func(r *engine.Request) { r.Output = &custom }},
		{name: "text output", version: "21.09", wantInfo: "", wantCover: ptr(""),
			mutate: func(r *engine.Request) { r.Output = ptr("") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := enginetest.New(enginetest.Script{Version: tt.version})
			req := baseRequest(writeTemp(t))
			if tt.mutate != nil {
				tt.mutate(&req)
			}

			_, _, err := engine.NewSession(spy).Run(context.Background(), req)
			require.NoError(t, err)

			inform, _ := spy.Option("Inform")
			assert.Equal(t, tt.wantInfo, inform)

			cover, ok := spy.Option("Cover_Data")
			if tt.wantCover == nil {
				assert.False(t, ok, "Cover_Data must not be set")
			} else {
				assert.True(t, ok)
				assert.Equal(t, *tt.wantCover, cover)
			}
		})
	}
}

func TestSession_Run_Flags(t *testing.T) {
	spy := enginetest.New(enginetest.Script{Version: "21.09"})
	req := engine.Request{Name: writeTemp(t), ParseSpeed: 1, LegacyStreamDisplay: true}

	_, _, err := engine.NewSession(spy).Run(context.Background(), req)
	require.NoError(t, err)

	complete, _ := spy.Option("Complete")
	assert.Equal(t, "", complete)
	speed, _ := spy.Option("ParseSpeed")
	assert.Equal(t, "1", speed)
	legacy, _ := spy.Option("LegacyStreamDisplay")
	assert.Equal(t, "1", legacy)
}

func TestSession_Run_ResetOnlyWithCustomOptions(t *testing.T) {
	tests := []struct {
		name         string
		version      string
		options      map[string]string
		wantReset    bool
		wantWarnings int
	}{
		{"no options", "21.09", nil, false, 0},
		{"options on 19.9", "19.9", map[string]string{"Language": "raw"}, true, 0},
		{"options before 19.9", "19.8", map[string]string{"Language": "raw"}, false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := enginetest.New(enginetest.Script{Version: tt.version})
			req := baseRequest(writeTemp(t))
			req.EngineOptions = tt.options

			_, warnings, err := engine.NewSession(spy).Run(context.Background(), req)
			require.NoError(t, err)

			_, reset := spy.Option("Reset")
			assert.Equal(t, tt.wantReset, reset)
			assert.Len(t, warnings, tt.wantWarnings)
		})
	}
}

func TestSession_Run_ResetAfterInform(t *testing.T) {
	spy := enginetest.New(enginetest.Script{Version: "21.09"})
	req := baseRequest(writeTemp(t))
	req.EngineOptions = map[string]string{"Language": "raw", "File_TestContinuousFileNames": "0"}

	_, _, err := engine.NewSession(spy).Run(context.Background(), req)
	require.NoError(t, err)

	opts := spy.Options()
	require.GreaterOrEqual(t, len(opts), 3)
	assert.Equal(t, [2]string{"File_TestContinuousFileNames", "0"}, opts[len(opts)-3], "pass-through options are applied in sorted order")
	assert.Equal(t, [2]string{"Language", "raw"}, opts[len(opts)-2])
	assert.Equal(t, [2]string{"Reset", ""}, opts[len(opts)-1])

	methods := spy.Methods()
	assert.Equal(t, []string{"Inform", "Option", "Close", "Delete"}, methods[len(methods)-4:])
}

func TestSession_Run_OpenErrors(t *testing.T) {
	existing := writeTemp(t)
	tests := []struct {
		name   string
		source string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "missing local path",
			source: filepath.Join(t.TempDir(), "missing.mkv"),
			check: func(t *testing.T, err error) {
				var nf *types.NotFoundError
				require.ErrorAs(t, err, &nf)
				assert.Contains(t, nf.Path, "missing.mkv")
			},
		},
		{
			name:   "unsupported scheme",
			source: "unsupportedscheme://",
			check: func(t *testing.T, err error) {
				var ee *types.EngineError
				require.ErrorAs(t, err, &ee)
				assert.Equal(t, "unsupportedscheme://", ee.Source)
			},
		},
		{
			name:   "existing file the engine rejects",
			source: existing,
			check: func(t *testing.T, err error) {
				var ee *types.EngineError
				require.ErrorAs(t, err, &ee)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := enginetest.New(enginetest.Script{Version: "21.09", OpenFails: true})

			_, _, err := engine.NewSession(spy).Run(context.Background(), baseRequest(tt.source))
			tt.check(t, err)

			assert.Equal(t, 1, spy.Count("Close"), "handle must be closed")
			assert.Equal(t, 1, spy.Count("Delete"), "handle must be deleted")
			assert.Zero(t, spy.Count("Inform"))
		})
	}
}

func TestSession_Run_EngineLoadFailure(t *testing.T) {
	cause := errors.New("dlopen failed")
	spy := enginetest.New(enginetest.Script{NewErr: cause})

	_, _, err := engine.NewSession(spy).Run(context.Background(), baseRequest(writeTemp(t)))

	var ee *types.EngineError
	require.ErrorAs(t, err, &ee)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, []string{"New"}, spy.Methods())
}

func TestSession_Run_BadVersionReleasesHandle(t *testing.T) {
	spy := enginetest.New(enginetest.Script{Version: "garbage"})

	_, _, err := engine.NewSession(spy).Run(context.Background(), baseRequest(writeTemp(t)))

	var ee *types.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, []string{"New", "Option", "Close", "Delete"}, spy.Methods())
}

func TestSession_Run_BufferFeed(t *testing.T) {
	data := make([]byte, 3*engine.ChunkSize+100)
	for i := range data {
		data[i] = byte(i % 251)
	}
	spy := enginetest.New(enginetest.Script{Version: "21.09", Report: "ok"})
	req := engine.Request{Stream: bytes.NewReader(data), ParseSpeed: 0.5}

	report, _, err := engine.NewSession(spy).Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "ok", report)
	assert.Equal(t, data, spy.Fed(), "the whole stream is fed when the engine never finishes")

	methods := spy.Methods()
	assert.Equal(t, 4, spy.Count("OpenBufferContinue"))
	assert.Equal(t, 1, spy.Count("OpenBufferInit"))
	assert.Equal(t, 1, spy.Count("OpenBufferFinalize"))
	assert.Zero(t, spy.Count("Open"))
	assert.Equal(t, []string{"OpenBufferFinalize", "Inform", "Close", "Delete"}, methods[len(methods)-4:])
}

func TestSession_Run_BufferFeedHonorsSeeks(t *testing.T) {
	data := make([]byte, 4*engine.ChunkSize)
	for i := range data {
		data[i] = byte(i % 253)
	}
	spy := enginetest.New(enginetest.Script{
		Version:     "21.09",
		Seeks:       []uint64{engine.NoSeek, 10},
		FinishAfter: 3,
	})
	req := engine.Request{Stream: bytes.NewReader(data)}

	_, _, err := engine.NewSession(spy).Run(context.Background(), req)
	require.NoError(t, err)

	var want []byte
	want = append(want, data[:2*engine.ChunkSize]...)
	want = append(want, data[10:10+engine.ChunkSize]...)
	assert.Equal(t, want, spy.Fed())

	var inits []enginetest.Call
	for _, c := range spy.Calls() {
		if c.Method == "OpenBufferInit" {
			inits = append(inits, c)
		}
	}
	require.Len(t, inits, 2)
	assert.Equal(t, []any{uint64(len(data)), uint64(0)}, inits[0].Args)
	assert.Equal(t, []any{uint64(len(data)), uint64(10)}, inits[1].Args)

	assert.Equal(t, 2, spy.Count("OpenBufferContinueGoToGet"), "no seek query after the finished bit")
}

func TestSession_Run_EmptyStream(t *testing.T) {
	spy := enginetest.New(enginetest.Script{Version: "21.09"})

	_, _, err := engine.NewSession(spy).Run(context.Background(), engine.Request{Stream: bytes.NewReader(nil)})
	require.NoError(t, err)

	assert.Zero(t, spy.Count("OpenBufferContinue"))
	assert.Equal(t, 1, spy.Count("OpenBufferFinalize"))
}

func TestSession_Run_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name  string
		req   engine.Request
		field string
	}{
		{"text mode stream", engine.Request{Stream: textStream{bytes.NewReader([]byte("x")), "r"}}, "Stream"},
		{"text mode with plus", engine.Request{Stream: textStream{bytes.NewReader([]byte("x")), "r+"}}, "Stream"},
		{"unseekable stream", engine.Request{Stream: bytes.NewBufferString("x")}, "Stream"},
		{"nothing to parse", engine.Request{}, "Name"},
		{"name and stream", engine.Request{Name: "a.mkv", Stream: bytes.NewReader(nil)}, "Stream"},
		{"parse speed too high", engine.Request{Name: "a.mkv", ParseSpeed: 1.5}, "ParseSpeed"},
		{"parse speed negative", engine.Request{Name: "a.mkv", ParseSpeed: -0.1}, "ParseSpeed"},
		{"negative timeout", engine.Request{Name: "a.mkv", Timeout: -1}, "Timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := enginetest.New(enginetest.Script{Version: "21.09"})

			_, _, err := engine.NewSession(spy).Run(context.Background(), tt.req)

			var cfg *types.ConfigurationError
			require.ErrorAs(t, err, &cfg)
			assert.Equal(t, tt.field, cfg.Field)
			assert.Empty(t, spy.Calls(), "no engine call may happen before validation passes")
		})
	}
}

func TestSession_Run_BinaryModeStream(t *testing.T) {
	spy := enginetest.New(enginetest.Script{Version: "21.09"})
	req := engine.Request{Stream: textStream{bytes.NewReader([]byte("abc")), "rb"}}

	_, _, err := engine.NewSession(spy).Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), spy.Fed())
}

func TestSession_Run_CanceledContext(t *testing.T) {
	spy := enginetest.New(enginetest.Script{Version: "21.09"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := engine.NewSession(spy).Run(ctx, baseRequest(writeTemp(t)))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, spy.Calls())
}

func TestSession_Run_ExpandsLibrary(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	spy := enginetest.New(enginetest.Script{Version: "21.09"})
	req := baseRequest(writeTemp(t))
	req.Library = "~/lib/libmediainfo.so.0"

	_, _, err = engine.NewSession(spy).Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []any{filepath.Join(home, "lib", "libmediainfo.so.0")}, spy.Calls()[0].Args)
}

func TestProbe(t *testing.T) {
	ok := enginetest.New(enginetest.Script{Version: "21.09"})
	assert.True(t, engine.Probe(context.Background(), ok, ""))
	assert.Equal(t, []string{"New", "Option", "Close", "Delete"}, ok.Methods())

	broken := enginetest.New(enginetest.Script{NewErr: errors.New("missing")})
	assert.False(t, engine.Probe(context.Background(), broken, ""))

	garbled := enginetest.New(enginetest.Script{Version: "?"})
	assert.False(t, engine.Probe(context.Background(), garbled, ""))
	assert.Equal(t, 1, garbled.Count("Delete"))
}

func TestInfo(t *testing.T) {
	spy := enginetest.New(enginetest.Script{Version: "20.03"})

	v, err := engine.Info(context.Background(), spy, "")
	require.NoError(t, err)
	assert.True(t, v.Supports(engine.ThreadSafe))
}

func ptr(s string) *string { return &s }
