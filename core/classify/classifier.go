// Package classify decides what a fetched JSON payload actually is.
// A payload is a slide-deck manifest iff it is a JSON object with at
// least one "list-like" key (slide_ids, slides, files) AND at least one
// "image-like" key (images, outline, isImageSlides). Everything else
// that parses is generic JSON.
package classify

import (
	"encoding/json"
	"strings"
)

// Kind is the classification of a parsed JSON payload.
type Kind int

const (
	// GenericJSON is any valid JSON that is not a slide-deck manifest.
	GenericJSON Kind = iota
	// Manifest is a JSON object describing an ordered slide deck.
	Manifest
)

// slidesURLMarker is a base64 fragment ("slides") that the origin CDN
// embeds in manifest URLs served without a JSON content-type. It is one
// optional heuristic input, not load-bearing on its own, and may vanish
// if the origin changes its URL scheme.
const slidesURLMarker = "c2xpZGVz"

// listLikeKeys and imageLikeKeys define the manifest shape rule.
var (
	listLikeKeys  = []string{"slide_ids", "slides", "files"}
	imageLikeKeys = []string{"images", "outline", "isImageSlides"}
)

// SlideManifest is the parsed form of a slide-deck manifest. Only the
// fields the pipeline consumes are decoded.
type SlideManifest struct {
	Title         string            `json:"title"`
	SlideIDs      []string          `json:"slide_ids"`
	Images        map[string]string `json:"images"`
	Files         []FileBlock       `json:"files"`
	Outline       []OutlineItem     `json:"outline"`
	IsImageSlides bool              `json:"isImageSlides"`
}

// FileBlock is one content block of a files-based manifest. Content is
// an HTML-ish string that may embed an image reference inline.
type FileBlock struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// OutlineItem carries per-slide display metadata.
type OutlineItem struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// Result is the outcome of classifying a JSON payload.
type Result struct {
	Kind     Kind
	Manifest *SlideManifest // non-nil only when Kind == Manifest
	Value    any            // the generically decoded payload, for re-serialization
}

// CandidateJSON reports whether a fetched response should be run through
// the JSON classifier at all, based on its content-type and source URL.
func CandidateJSON(contentType, sourceURL string) bool {
	if strings.Contains(strings.ToLower(contentType), "application/json") {
		return true
	}
	return strings.Contains(sourceURL, slidesURLMarker)
}

// Classify parses raw JSON and applies the manifest shape rule. A parse
// failure is returned to the caller, which falls back to binary
// passthrough rather than surfacing an error.
func Classify(raw []byte) (*Result, error) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, err
	}

	keys := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &keys); err != nil {
		// Valid JSON but not an object: generic by definition.
		return &Result{Kind: GenericJSON, Value: value}, nil
	}

	if !hasAny(keys, listLikeKeys) || !hasAny(keys, imageLikeKeys) {
		return &Result{Kind: GenericJSON, Value: value}, nil
	}

	var manifest SlideManifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		// The shape rule matched but the fields don't decode; treat the
		// payload as generic JSON rather than failing the request.
		return &Result{Kind: GenericJSON, Value: value}, nil
	}

	return &Result{Kind: Manifest, Manifest: &manifest, Value: value}, nil
}

func hasAny(keys map[string]json.RawMessage, names []string) bool {
	for _, name := range names {
		if _, ok := keys[name]; ok {
			return true
		}
	}
	return false
}
