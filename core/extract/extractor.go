// Package extract turns a classified slide-deck manifest into an ordered
// list of slide entries. Two strategies exist, selected by manifest shape:
//  1. images-based — the manifest carries an images map keyed by slide id
//  2. files-based — each file block may embed an image reference inline
//
// Entries with no resolvable image URL are dropped, not emitted empty.
package extract

import (
	"regexp"
	"sort"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"

	"github.com/gaurav-prasanna/deckproxy/core"
	"github.com/gaurav-prasanna/deckproxy/core/classify"
)

// Extract resolves the ordered slide entries for a manifest.
func Extract(m *classify.SlideManifest) []core.SlideEntry {
	if len(m.Images) > 0 {
		return fromImages(m)
	}
	if len(m.Files) > 0 {
		return fromFiles(m)
	}
	return nil
}

// fromImages orders identifiers by slide_ids when present, else by the
// natural (sorted) key order of the images map.
func fromImages(m *classify.SlideManifest) []core.SlideEntry {
	ids := m.SlideIDs
	if len(ids) == 0 {
		ids = make([]string, 0, len(m.Images))
		for id := range m.Images {
			ids = append(ids, id)
		}
		sort.Strings(ids)
	}

	entries := make([]core.SlideEntry, 0, len(ids))
	for _, id := range ids {
		url := m.Images[id]
		if url == "" {
			continue
		}
		entries = append(entries, core.SlideEntry{
			ID:       id,
			ImageURL: url,
			Title:    outlineTitle(m.Outline, id, ""),
		})
	}
	return entries
}

// fromFiles walks the file blocks in sequence order, emitting an entry
// for each block whose content embeds an image reference. When the
// outline has no title for a block, one is derived from the block's own
// content before falling back to the identifier.
func fromFiles(m *classify.SlideManifest) []core.SlideEntry {
	entries := make([]core.SlideEntry, 0, len(m.Files))
	for _, file := range m.Files {
		url := EmbeddedImageURL(file.Content)
		if url == "" {
			continue
		}
		entries = append(entries, core.SlideEntry{
			ID:       file.ID,
			ImageURL: url,
			Title:    outlineTitle(m.Outline, file.ID, titleFromContent(file.Content)),
		})
	}
	return entries
}

// outlineTitle resolves a display title by outline lookup: title, else
// summary, else the derived fallback, else the identifier itself.
func outlineTitle(outline []classify.OutlineItem, id, derived string) string {
	for _, item := range outline {
		if item.ID != id {
			continue
		}
		if item.Title != "" {
			return item.Title
		}
		if item.Summary != "" {
			return item.Summary
		}
		break
	}
	if derived != "" {
		return derived
	}
	return id
}

// srcPattern is the last-resort match for an embedded image reference in
// content that goquery cannot parse into a document.
var srcPattern = regexp.MustCompile(`src="([^"]+)"`)

// EmbeddedImageURL finds the first image reference inside an HTML-ish
// content string. Parsing with goquery is preferred; the raw src="..."
// scan backstops malformed fragments.
func EmbeddedImageURL(content string) string {
	if content == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err == nil {
		if src, ok := doc.Find("img[src]").First().Attr("src"); ok && src != "" {
			return src
		}
	}

	if m := srcPattern.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	return ""
}

var headingLine = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)

// titleFromContent derives a display title from a block's HTML-ish
// content: the first Markdown heading after normalization, else the
// first non-empty line.
func titleFromContent(content string) string {
	markdown, err := htmltomarkdown.ConvertString(content)
	if err != nil {
		return ""
	}

	if m := headingLine.FindStringSubmatch(markdown); m != nil {
		return strings.TrimSpace(m[1])
	}
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "![") {
			continue
		}
		return line
	}
	return ""
}
