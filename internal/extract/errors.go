package extract

import "errors"

var (
	// ErrDownload: source video unreachable or unreadable.
	ErrDownload = errors.New("source download failed")
	// ErrExtraction: filter graph, encode, or out-of-bounds seek failure.
	ErrExtraction = errors.New("clip extraction failed")
	// ErrUpload: storage write failed; the event keeps no partial clip URL.
	ErrUpload = errors.New("artifact upload failed")
)
