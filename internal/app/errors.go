package app

import (
	"errors"
	"fmt"
)

// ErrEmptyContent indicates a document produced no extractable text,
// typically a scanned-image-only PDF without an embedded text layer.
var ErrEmptyContent = errors.New("document has no extractable text")

// DownloadError indicates the file bytes could not be fetched from the
// source URL.
type DownloadError struct {
	URL    string
	Status int
	Err    error
}

func (e *DownloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("download %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("download %s: status %d", e.URL, e.Status)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// FormatError indicates the downloaded payload does not carry the expected
// file signature. It keeps the observed header: an authentication redirect
// served as an HTML login page shows up here as a wrong signature rather
// than a transport error, and the header makes that visible.
type FormatError struct {
	Header []byte
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("not a PDF file (header %q)", e.Header)
}

// ExtractionError indicates the payload matched the signature but could not
// be parsed.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract text: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
