//go:build !cgo || windows

package native

import (
	"context"
	"fmt"

	"github.com/simonhull/mediainfo/internal/engine"
	"github.com/simonhull/mediainfo/internal/types"
)

func (Engine) New(context.Context, string) (engine.Handle, error) {
	return nil, fmt.Errorf("%w: native engine requires a cgo build on a dlopen platform", types.ErrEngineUnavailable)
}
