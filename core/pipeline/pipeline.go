// Package pipeline orchestrates the classification-and-synthesis flow:
// fetch → classify → branch. Manifests become compiled decks, generic
// JSON is re-serialized pretty-printed, and everything else passes
// through byte-exact with an inferred filename.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/gaurav-prasanna/deckproxy/core"
	"github.com/gaurav-prasanna/deckproxy/core/classify"
	"github.com/gaurav-prasanna/deckproxy/core/deck"
	"github.com/gaurav-prasanna/deckproxy/core/extract"
	"github.com/gaurav-prasanna/deckproxy/core/naming"
)

const (
	pdfContentType    = "application/pdf"
	jsonContentType   = "application/json"
	binaryContentType = "application/octet-stream"
)

// Pipeline wires the stages together for one request at a time. It holds
// no per-request state and is safe for concurrent use.
type Pipeline struct {
	fetcher  core.Fetcher
	resolver *naming.Resolver
	compiler *deck.Compiler
	logger   *zap.Logger
}

// New creates a Pipeline.
func New(fetcher core.Fetcher, resolver *naming.Resolver, compiler *deck.Compiler, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{fetcher: fetcher, resolver: resolver, compiler: compiler, logger: logger}
}

// Run fetches rawURL and produces the response payload. filename is the
// caller-supplied base name and may be empty. The returned payload must
// be closed by the caller when it carries a stream.
func (p *Pipeline) Run(ctx context.Context, rawURL, filename string) (*core.Payload, error) {
	stream, err := p.fetcher.Open(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if !classify.CandidateJSON(stream.ContentType, rawURL) {
		return p.passthroughStream(stream, filename), nil
	}

	body, err := io.ReadAll(stream.Body)
	stream.Body.Close()
	if err != nil {
		return nil, &core.UpstreamError{URL: rawURL, Err: fmt.Errorf("reading response body: %w", err)}
	}

	result, cerr := classify.Classify(body)
	if cerr != nil {
		// Candidate bytes that fail to parse are passed through
		// unchanged rather than surfaced as an error.
		p.logger.Debug("candidate JSON did not parse, passing through",
			zap.String("url", rawURL), zap.Error(cerr))
		return p.passthroughBytes(stream, body, filename), nil
	}

	switch result.Kind {
	case classify.Manifest:
		return p.compileDeck(ctx, result.Manifest, filename)
	default:
		return emitJSON(result.Value, filename)
	}
}

// compileDeck turns a manifest into the presentation payload.
func (p *Pipeline) compileDeck(ctx context.Context, m *classify.SlideManifest, filename string) (*core.Payload, error) {
	entries := extract.Extract(m)
	title := firstNonEmpty(m.Title, stripExt(filename))

	compiled := p.compiler.Compile(ctx, entries, title)
	data, err := compiled.Bytes()
	if err != nil {
		return nil, fmt.Errorf("serializing deck: %w", err)
	}

	p.logger.Info("compiled slide deck",
		zap.String("title", compiled.Title),
		zap.Int("slides", len(compiled.Slides)),
		zap.Int("bytes", len(data)))

	name := firstNonEmpty(stripExt(filename), m.Title, "presentation") + ".pdf"
	return &core.Payload{
		ContentType: pdfContentType,
		Filename:    name,
		Bytes:       data,
		Length:      int64(len(data)),
	}, nil
}

// emitJSON re-serializes generic JSON pretty-printed. The output is
// structurally equal to the source but not byte-identical.
func emitJSON(value any, filename string) (*core.Payload, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling JSON: %w", err)
	}

	name := filename
	if name == "" {
		name = "data"
	}
	if !strings.HasSuffix(strings.ToLower(name), ".json") {
		name += ".json"
	}

	return &core.Payload{
		ContentType: jsonContentType,
		Filename:    name,
		Bytes:       data,
		Length:      int64(len(data)),
	}, nil
}

// passthroughStream emits the original response unmodified, streamed.
func (p *Pipeline) passthroughStream(stream *core.Stream, filename string) *core.Payload {
	return &core.Payload{
		ContentType: firstNonEmpty(stream.ContentType, binaryContentType),
		Filename:    p.binaryFilename(stream, filename),
		Reader:      stream.Body,
		Length:      stream.Length,
	}
}

// passthroughBytes is the buffered variant used after a failed JSON
// parse, when the body has already been read.
func (p *Pipeline) passthroughBytes(stream *core.Stream, body []byte, filename string) *core.Payload {
	return &core.Payload{
		ContentType: firstNonEmpty(stream.ContentType, binaryContentType),
		Filename:    p.binaryFilename(stream, filename),
		Bytes:       body,
		Length:      int64(len(body)),
	}
}

// binaryFilename picks the base name (caller-supplied, else the URL's
// final path segment, else a generic default) and completes a missing
// extension via the resolver.
func (p *Pipeline) binaryFilename(stream *core.Stream, filename string) string {
	name := filename
	if name == "" {
		if parsed, err := url.Parse(stream.URL); err == nil {
			if base := path.Base(parsed.Path); base != "." && base != "/" {
				name = base
			}
		}
	}
	if name == "" {
		name = "download"
	}
	return name + p.resolver.Resolve(stream.ContentType, stream.URL, name)
}

func stripExt(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
