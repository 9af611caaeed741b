// Package extract turns external document sources (web pages, PDF uploads)
// into plain text plus metadata for the analysis pipeline.
package extract

import "errors"

// ErrNoContent is returned when a source yields no readable text.
var ErrNoContent = errors.New("extract: no readable content found")

// Document is extracted source text with its metadata.
type Document struct {
	Content  string
	Title    string
	Metadata map[string]string
}
