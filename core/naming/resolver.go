// Package naming infers download filenames and extensions.
// Origin servers are inconsistent about both Content-Disposition and
// Content-Type, so the resolver falls back through three tiers: the
// content-type table, the URL path, and finally known substrings in the
// raw URL. A URL-substring match never overrides a content-type match.
package naming

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

// URLPattern maps a URL substring to an extension. Patterns are checked
// in slice order; the first match wins.
type URLPattern struct {
	Substring string
	Ext       string
}

// Resolver maps content types and URLs to file extensions using
// immutable, process-lifetime tables injected at construction.
type Resolver struct {
	contentTypes map[string]string
	urlPatterns  []URLPattern
}

// NewResolver creates a Resolver over the given tables. The tables are
// not copied and must not be mutated after construction.
func NewResolver(contentTypes map[string]string, urlPatterns []URLPattern) *Resolver {
	return &Resolver{contentTypes: contentTypes, urlPatterns: urlPatterns}
}

// Default returns a Resolver over the built-in tables.
func Default() *Resolver {
	return NewResolver(defaultContentTypes, defaultURLPatterns)
}

// extSuffix matches a plausible dotted extension at the end of a path
// segment.
var extSuffix = regexp.MustCompile(`\.([A-Za-z0-9]{1,5})$`)

// Resolve returns the extension to append to currentFilename, or the
// empty string when the name already carries one (no rewrite) or when
// nothing can be inferred.
func (r *Resolver) Resolve(contentType, sourceURL, currentFilename string) string {
	// 1. An existing extension is never rewritten.
	if extSuffix.MatchString(currentFilename) {
		return ""
	}

	// 2. Content-type table, parameters stripped.
	if mt := mediaType(contentType); mt != "" {
		if ext, ok := r.contentTypes[mt]; ok {
			return ext
		}
	}

	// 3. Dotted suffix on the URL's final path segment.
	if parsed, err := url.Parse(sourceURL); err == nil {
		if m := extSuffix.FindStringSubmatch(path.Base(parsed.Path)); m != nil {
			return strings.ToLower("." + m[1])
		}
	}

	// 4. Known substrings anywhere in the raw URL, in priority order.
	for _, p := range r.urlPatterns {
		if strings.Contains(sourceURL, p.Substring) {
			return p.Ext
		}
	}

	return ""
}

// mediaType lowercases a Content-Type header value and strips any
// parameters (e.g. "; charset=utf-8").
func mediaType(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

// defaultContentTypes maps media types to extensions.
var defaultContentTypes = map[string]string{
	"application/pdf":    ".pdf",
	"application/json":   ".json",
	"application/zip":    ".zip",
	"application/gzip":   ".gz",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   ".docx",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": ".pptx",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         ".xlsx",
	"application/vnd.ms-powerpoint": ".ppt",
	"application/vnd.ms-excel":      ".xls",
	"text/plain":                    ".txt",
	"text/html":                     ".html",
	"text/markdown":                 ".md",
	"text/csv":                      ".csv",
	"image/png":                     ".png",
	"image/jpeg":                    ".jpg",
	"image/gif":                     ".gif",
	"image/svg+xml":                 ".svg",
	"image/webp":                    ".webp",
	"audio/mpeg":                    ".mp3",
	"video/mp4":                     ".mp4",
}

// defaultURLPatterns is the last-resort substring table. Document
// formats come before image formats so archive/report links with query
// noise resolve sensibly.
var defaultURLPatterns = []URLPattern{
	{".pdf", ".pdf"},
	{".docx", ".docx"},
	{".pptx", ".pptx"},
	{".xlsx", ".xlsx"},
	{".doc", ".doc"},
	{".ppt", ".ppt"},
	{".xls", ".xls"},
	{".jpeg", ".jpg"},
	{".png", ".png"},
	{".jpg", ".jpg"},
	{".gif", ".gif"},
	{".svg", ".svg"},
	{".webp", ".webp"},
	{".zip", ".zip"},
	{".csv", ".csv"},
	{".json", ".json"},
	{".md", ".md"},
	{".txt", ".txt"},
	{".html", ".html"},
	{".mp4", ".mp4"},
	{".mp3", ".mp3"},
}
