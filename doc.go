// Package mediainfo reads technical and tag metadata from media files through
// the MediaInfo analysis engine.
//
// The engine reports each file as a list of tracks: one General track for the
// container and one track per video, audio, text, image or menu stream. This
// package drives the engine, parses its report and exposes the tracks as a
// read-only Document.
//
// # Quick Start
//
//	doc, err := mediainfo.Parse(ctx, "movie.mkv")
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, track := range doc.Video() {
//		width, _ := track.Int("width")
//		fmt.Printf("%s: %d pixels wide\n", track.Type, width)
//	}
//
// # Fields
//
// Field names are the engine's element names lowercased, with surrounding
// underscores removed; "ID" becomes "track_id". When the engine reports a
// field more than once, the first value is kept under the plain name and the
// remaining ones are collected, in order, in a list under other_<name>. For
// such repeated fields the primary value is converted to an int64 when one of
// the values is a base-10 integer:
//
//	size, _ := general.Get("file_size")   // int64(5988)
//	general.Others("file_size")           // ["5.85 KiB", "6 KiB", ...]
//
// Fields reported once stay text; Track.Int converts them on demand.
//
// # Engines
//
// The native engine loads libmediainfo at run time (cgo builds only). The cli
// engine runs the mediainfo executable instead:
//
//	doc, err := mediainfo.Parse(ctx, "movie.mkv", mediainfo.WithEngine("cli"))
//
// CanParse reports whether the selected engine is usable.
//
// # Streams
//
// ParseReader feeds any io.ReadSeeker to the engine chunk by chunk, seeking
// when the engine asks to. Streams that report a text mode through Mode()
// are rejected with a *ConfigurationError.
//
// # Concurrency
//
// Every call uses its own engine handle. Whether handles may be used from
// several goroutines at once depends on the engine version; ParseMany only
// runs in parallel when the engine reports version 20.03 or later and no
// custom engine options are set.
//
// # Error Handling
//
// Errors are typed and can be matched with errors.As:
//
//   - *NotFoundError: a local path does not exist
//   - *EngineError: the engine failed for any other reason
//   - *MalformedInputError: the report is not well-formed XML
//   - *ConfigurationError: an option or stream was rejected before analysis
package mediainfo
