// Package core defines the pipeline interfaces for deckproxy.
// Each stage of the pipeline is a clean, testable interface.
package core

import (
	"context"
	"io"
)

// FetchResult holds the buffered body and response metadata from a fetch.
type FetchResult struct {
	URL         string
	StatusCode  int
	ContentType string // empty when the origin sent no Content-Type header
	Body        []byte
}

// Stream is the streaming counterpart of FetchResult. The caller owns
// Body and must close it.
type Stream struct {
	URL         string
	StatusCode  int
	ContentType string
	Length      int64 // -1 when the origin sent no Content-Length
	Body        io.ReadCloser
}

// SlideEntry is one resolved (identifier, image URL, display title) triple
// extracted from a slide-deck manifest.
type SlideEntry struct {
	ID       string
	ImageURL string
	Title    string
}

// Payload is the final proxied response: content type, download filename,
// and body. Exactly one of Bytes and Reader is set; Reader is used for
// binary passthrough so large files are never fully buffered.
type Payload struct {
	ContentType string
	Filename    string
	Bytes       []byte
	Reader      io.ReadCloser
	Length      int64 // -1 when unknown ahead of send
}

// Close releases the streaming body, if any.
func (p *Payload) Close() error {
	if p.Reader != nil {
		return p.Reader.Close()
	}
	return nil
}

// Fetcher retrieves a resource from a URL. Implementations enforce the
// origin allow-list before any network call is made.
type Fetcher interface {
	// Fetch buffers the whole body in memory.
	Fetch(ctx context.Context, url string) (*FetchResult, error)
	// Open returns a streaming handle instead of a buffered body.
	Open(ctx context.Context, url string) (*Stream, error)
}
