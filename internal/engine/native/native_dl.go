//go:build cgo && !windows

package native

/*
#cgo linux LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdint.h>
#include <stdlib.h>

typedef void*       (*mi_new_t)(void);
typedef void        (*mi_void_t)(void*);
typedef size_t      (*mi_open_t)(void*, const char*);
typedef size_t      (*mi_buffer_init_t)(void*, uint64_t, uint64_t);
typedef size_t      (*mi_buffer_continue_t)(void*, const uint8_t*, size_t);
typedef uint64_t    (*mi_goto_get_t)(void*);
typedef size_t      (*mi_size_t)(void*);
typedef const char* (*mi_inform_t)(void*, size_t);
typedef const char* (*mi_option_t)(void*, const char*, const char*);

typedef struct {
	void*                dl;
	mi_new_t             new_;
	mi_void_t            delete_;
	mi_void_t            close_;
	mi_open_t            open;
	mi_buffer_init_t     buffer_init;
	mi_buffer_continue_t buffer_continue;
	mi_goto_get_t        goto_get;
	mi_size_t            buffer_finalize;
	mi_inform_t          inform;
	mi_option_t          option;
} mi_lib;

static const char* mi_dlerror(void) {
	const char* e = dlerror();
	return e ? e : "missing symbol";
}

// Returns 0 when the library cannot be opened, -1 when a symbol is missing.
static int mi_load(const char* path, mi_lib* lib) {
	lib->dl = dlopen(path, RTLD_NOW | RTLD_LOCAL);
	if (!lib->dl) return 0;

	lib->new_            = (mi_new_t)dlsym(lib->dl, "MediaInfoA_New");
	lib->delete_         = (mi_void_t)dlsym(lib->dl, "MediaInfoA_Delete");
	lib->close_          = (mi_void_t)dlsym(lib->dl, "MediaInfoA_Close");
	lib->open            = (mi_open_t)dlsym(lib->dl, "MediaInfoA_Open");
	lib->buffer_init     = (mi_buffer_init_t)dlsym(lib->dl, "MediaInfoA_Open_Buffer_Init");
	lib->buffer_continue = (mi_buffer_continue_t)dlsym(lib->dl, "MediaInfoA_Open_Buffer_Continue");
	lib->goto_get        = (mi_goto_get_t)dlsym(lib->dl, "MediaInfoA_Open_Buffer_Continue_GoTo_Get");
	lib->buffer_finalize = (mi_size_t)dlsym(lib->dl, "MediaInfoA_Open_Buffer_Finalize");
	lib->inform          = (mi_inform_t)dlsym(lib->dl, "MediaInfoA_Inform");
	lib->option          = (mi_option_t)dlsym(lib->dl, "MediaInfoA_Option");

	if (!lib->new_ || !lib->delete_ || !lib->close_ || !lib->open ||
	    !lib->buffer_init || !lib->buffer_continue || !lib->goto_get ||
	    !lib->buffer_finalize || !lib->inform || !lib->option) {
		dlclose(lib->dl);
		lib->dl = NULL;
		return -1;
	}
	return 1;
}

static void*       mi_new(mi_lib* l)                                  { return l->new_(); }
static void        mi_delete(mi_lib* l, void* h)                      { l->delete_(h); }
static void        mi_close(mi_lib* l, void* h)                       { l->close_(h); }
static size_t      mi_open(mi_lib* l, void* h, const char* n)         { return l->open(h, n); }
static size_t      mi_buffer_init(mi_lib* l, void* h, uint64_t s, uint64_t o) { return l->buffer_init(h, s, o); }
static size_t      mi_buffer_continue(mi_lib* l, void* h, const uint8_t* b, size_t n) { return l->buffer_continue(h, b, n); }
static uint64_t    mi_goto_get(mi_lib* l, void* h)                    { return l->goto_get(h); }
static size_t      mi_buffer_finalize(mi_lib* l, void* h)             { return l->buffer_finalize(h); }
static const char* mi_inform(mi_lib* l, void* h)                      { return l->inform(h, 0); }
static const char* mi_option(mi_lib* l, void* h, const char* n, const char* v) { return l->option(h, n, v); }
*/
import "C"

import (
	"context"
	"fmt"
	"sync"
	"unsafe"

	"github.com/simonhull/mediainfo/internal/engine"
	"github.com/simonhull/mediainfo/internal/logger"
	"github.com/simonhull/mediainfo/internal/types"
)

var (
	libsMu sync.Mutex
	libs   = make(map[string]*C.mi_lib)
)

// open returns the library at path, loading it on first use. Loaded
// libraries stay resident for the life of the process.
func open(path string) (*C.mi_lib, error) {
	libsMu.Lock()
	defer libsMu.Unlock()

	if lib, ok := libs[path]; ok {
		return lib, nil
	}

	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	lib := (*C.mi_lib)(C.calloc(1, C.sizeof_mi_lib))
	switch C.mi_load(cpath, lib) {
	case 1:
		libs[path] = lib
		log.Emit(logger.DEBUG, "loaded %s\n", path)
		return lib, nil
	case 0:
		err := fmt.Errorf("%s: %s", path, C.GoString(C.mi_dlerror()))
		C.free(unsafe.Pointer(lib))
		return nil, err
	default:
		C.free(unsafe.Pointer(lib))
		return nil, fmt.Errorf("%s: not a MediaInfo library", path)
	}
}

func (Engine) New(_ context.Context, library string) (engine.Handle, error) {
	var lastErr error
	for _, path := range candidates(library) {
		lib, err := open(path)
		if err != nil {
			lastErr = err
			continue
		}
		h := C.mi_new(lib)
		if h == nil {
			return nil, fmt.Errorf("%s: MediaInfo_New returned no handle", path)
		}
		return &handle{lib: lib, h: h}, nil
	}
	return nil, fmt.Errorf("%w: %v", types.ErrEngineUnavailable, lastErr)
}

type handle struct {
	lib *C.mi_lib
	h   unsafe.Pointer
}

func (h *handle) Option(name, value string) string {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	cvalue := C.CString(value)
	defer C.free(unsafe.Pointer(cvalue))
	return C.GoString(C.mi_option(h.lib, h.h, cname, cvalue))
}

func (h *handle) Open(name string) uint {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return uint(C.mi_open(h.lib, h.h, cname))
}

func (h *handle) OpenBufferInit(size, offset uint64) uint {
	return uint(C.mi_buffer_init(h.lib, h.h, C.uint64_t(size), C.uint64_t(offset)))
}

func (h *handle) OpenBufferContinue(buf []byte) uint {
	if len(buf) == 0 {
		return uint(C.mi_buffer_continue(h.lib, h.h, nil, 0))
	}
	return uint(C.mi_buffer_continue(h.lib, h.h, (*C.uint8_t)(unsafe.Pointer(&buf[0])), C.size_t(len(buf))))
}

func (h *handle) OpenBufferContinueGoToGet() uint64 {
	return uint64(C.mi_goto_get(h.lib, h.h))
}

func (h *handle) OpenBufferFinalize() uint {
	return uint(C.mi_buffer_finalize(h.lib, h.h))
}

func (h *handle) Inform() string {
	return C.GoString(C.mi_inform(h.lib, h.h))
}

func (h *handle) Close() {
	if h.h == nil {
		return
	}
	C.mi_close(h.lib, h.h)
}

func (h *handle) Delete() {
	if h.h == nil {
		return
	}
	C.mi_delete(h.lib, h.h)
	h.h = nil
}
