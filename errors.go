package mediainfo

import (
	"github.com/simonhull/mediainfo/internal/types"
)

// ErrEngineUnavailable is wrapped by errors from engines that cannot be
// loaded.
var ErrEngineUnavailable = types.ErrEngineUnavailable

// MalformedInputError is an alias to types.MalformedInputError.
// Re-exporting from internal/types to maintain public API.
type MalformedInputError = types.MalformedInputError

// NotFoundError is an alias to types.NotFoundError.
// Re-exporting from internal/types to maintain public API.
type NotFoundError = types.NotFoundError

// EngineError is an alias to types.EngineError.
// Re-exporting from internal/types to maintain public API.
type EngineError = types.EngineError

// ConfigurationError is an alias to types.ConfigurationError.
// Re-exporting from internal/types to maintain public API.
type ConfigurationError = types.ConfigurationError

// Warning is an alias to types.Warning.
// Re-exporting from internal/types to maintain public API.
type Warning = types.Warning
