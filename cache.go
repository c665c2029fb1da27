package mediainfo

import (
	"github.com/mitchellh/go-homedir"

	"github.com/simonhull/mediainfo/internal/cache"
)

// Cache stores engine reports across calls and processes.
type Cache = cache.Store

// OpenCache opens or creates a report cache at filename. A leading "~" is
// expanded to the home directory.
//
//	c, err := mediainfo.OpenCache("~/.cache/mediainfo.db")
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//	doc, err := mediainfo.Parse(ctx, path, mediainfo.WithCache(c))
func OpenCache(filename string) (*Cache, error) {
	path, err := homedir.Expand(filename)
	if err != nil {
		return nil, err
	}
	return cache.Open(path)
}
