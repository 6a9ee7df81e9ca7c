// Package deck compiles slide entries into a presentation document:
// a 16:9 PDF with one full-bleed image per page. Each entry is processed
// independently — a failed image download degrades that one slide to a
// placeholder, never the whole deck.
package deck

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gaurav-prasanna/deckproxy/core"
)

// Slide canvas: 16:9, 10 × 5.625 logical inches.
const (
	pageWidth  = 10.0
	pageHeight = 5.625
)

const (
	defaultTitle = "Presentation"
	deckAuthor   = "deckproxy"
	slideTimeout = 30 * time.Second
)

// Status is the outcome of building one slide.
type Status int

const (
	// StatusDownloaded means the slide carries its image.
	StatusDownloaded Status = iota
	// StatusDegraded means the slide was replaced by placeholder text.
	StatusDegraded
)

// SlideResult records what happened to one entry during compilation.
type SlideResult struct {
	Entry  core.SlideEntry
	Status Status
	Reason string // set only when degraded
}

// CompiledDeck is the in-memory presentation document, ready for
// serialization. It is destroyed after being written to the response.
type CompiledDeck struct {
	Title  string
	Slides []SlideResult

	pdf *gofpdf.Fpdf
}

// Bytes serializes the deck. If an embedded image poisoned the document,
// the deck is rebuilt text-only so the caller still receives a usable
// file.
func (d *CompiledDeck) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err == nil {
		return buf.Bytes(), nil
	}

	pdf := newDeckPDF(d.Title)
	if len(d.Slides) == 0 {
		addTitleSlide(pdf, d.Title)
	} else {
		for i, s := range d.Slides {
			addPlaceholder(pdf, fmt.Sprintf("Slide %d: %s", i+1, s.Entry.Title), "Error loading slide content.")
		}
	}

	buf.Reset()
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("writing deck: %w", err)
	}
	return buf.Bytes(), nil
}

// Compiler drives image downloads and deck assembly.
type Compiler struct {
	fetcher core.Fetcher
	logger  *zap.Logger
	workers int
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithConcurrency enables a bounded worker pool for image downloads.
// Slide order in the final deck is preserved regardless of completion
// order. n <= 1 keeps the default strictly sequential behavior.
func WithConcurrency(n int) Option {
	return func(c *Compiler) {
		if n > 1 {
			c.workers = n
		}
	}
}

// NewCompiler creates a Compiler that downloads images via fetcher.
func NewCompiler(fetcher core.Fetcher, logger *zap.Logger, opts ...Option) *Compiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Compiler{fetcher: fetcher, logger: logger, workers: 1}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile builds a deck from the entries in sequence order. It never
// fails: an empty entry list yields a single title slide, and per-entry
// failures degrade to placeholders.
func (c *Compiler) Compile(ctx context.Context, entries []core.SlideEntry, title string) *CompiledDeck {
	if title == "" {
		title = defaultTitle
	}

	pdf := newDeckPDF(title)
	deck := &CompiledDeck{Title: title, pdf: pdf}

	if len(entries) == 0 {
		addTitleSlide(pdf, title)
		return deck
	}

	if c.workers > 1 {
		for i, res := range c.downloadAll(ctx, entries) {
			deck.Slides = append(deck.Slides, c.buildSlide(pdf, i, entries[i], res.data, res.err))
		}
		return deck
	}

	// Sequential by default: each image buffer lives only for the
	// duration of its own slide's construction.
	for i, entry := range entries {
		data, err := c.fetchImage(ctx, entry.ImageURL)
		deck.Slides = append(deck.Slides, c.buildSlide(pdf, i, entry, data, err))
	}
	return deck
}

type download struct {
	data []byte
	err  error
}

// downloadAll fetches every image with a bounded worker pool, writing
// results by index so ordering survives out-of-order completion.
func (c *Compiler) downloadAll(ctx context.Context, entries []core.SlideEntry) []download {
	results := make([]download, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, entry := range entries {
		g.Go(func() error {
			results[i].data, results[i].err = c.fetchImage(gctx, entry.ImageURL)
			return nil // per-slide failures degrade, they never abort the group
		})
	}
	g.Wait()
	return results
}

func (c *Compiler) fetchImage(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, slideTimeout)
	defer cancel()

	result, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return result.Body, nil
}

// buildSlide adds one page for the entry: the image full-bleed on
// success, a placeholder otherwise.
func (c *Compiler) buildSlide(pdf *gofpdf.Fpdf, idx int, entry core.SlideEntry, data []byte, err error) (result SlideResult) {
	result = SlideResult{Entry: entry, Status: StatusDownloaded}
	ordinal := idx + 1

	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("slide build panicked",
				zap.String("slide_id", entry.ID), zap.Any("panic", r))
			addPlaceholder(pdf, fmt.Sprintf("Slide %d: %s", ordinal, entry.Title), "Error loading slide content.")
			result.Status = StatusDegraded
			result.Reason = fmt.Sprintf("build failed: %v", r)
		}
	}()

	if err != nil {
		c.logger.Warn("slide image download failed",
			zap.String("slide_id", entry.ID), zap.String("url", entry.ImageURL), zap.Error(err))
		addPlaceholder(pdf, fmt.Sprintf("Slide %d: %s", ordinal, entry.Title), "The image for this slide could not be loaded.")
		return SlideResult{Entry: entry, Status: StatusDegraded, Reason: fmt.Sprintf("download failed: %v", err)}
	}

	// Validate before handing bytes to gofpdf: a registration failure
	// would poison the whole document, not just this page.
	_, format, derr := image.DecodeConfig(bytes.NewReader(data))
	if derr != nil {
		c.logger.Warn("slide image not decodable",
			zap.String("slide_id", entry.ID), zap.Error(derr))
		addPlaceholder(pdf, fmt.Sprintf("Slide %d: %s", ordinal, entry.Title), "Error loading slide content.")
		return SlideResult{Entry: entry, Status: StatusDegraded, Reason: fmt.Sprintf("decode failed: %v", derr)}
	}

	imageType := registeredImageType(format)
	if imageType == "" {
		imageType = ImageTypeFromURL(entry.ImageURL)
	}

	name := fmt.Sprintf("slide-%04d", ordinal)
	opts := gofpdf.ImageOptions{ImageType: imageType}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))

	pdf.AddPage()
	// Stretch to fully cover the canvas, matching the source deck's
	// full-bleed layout.
	pdf.ImageOptions(name, 0, 0, pageWidth, pageHeight, false, opts, 0, "")
	return result
}

// ImageTypeFromURL infers the embedded image format from a URL's
// extension, defaulting to JPEG.
func ImageTypeFromURL(url string) string {
	if strings.Contains(strings.ToLower(url), ".png") {
		return "PNG"
	}
	return "JPG"
}

// registeredImageType maps an image.DecodeConfig format name to gofpdf's
// image type identifiers. The decoded format wins over the URL hint
// because gofpdf parses the actual bytes.
func registeredImageType(format string) string {
	switch format {
	case "png":
		return "PNG"
	case "jpeg":
		return "JPG"
	case "gif":
		return "GIF"
	}
	return ""
}

// newDeckPDF creates the 16:9 document and sets deck-level metadata.
func newDeckPDF(title string) *gofpdf.Fpdf {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "in",
		Size:           gofpdf.SizeType{Wd: pageWidth, Ht: pageHeight},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(title, true)
	pdf.SetAuthor(deckAuthor, true)
	pdf.SetSubject(title, true)
	return pdf
}

// addTitleSlide renders the single fallback slide for an empty deck.
func addTitleSlide(pdf *gofpdf.Fpdf, title string) {
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	pdf.SetTextColor(54, 54, 54)
	pdf.SetFont("Helvetica", "B", 28)
	pdf.SetXY(0.5, pageHeight/2-0.3)
	pdf.CellFormat(pageWidth-1, 0.6, tr(title), "", 1, "C", false, 0, "")
}

// addPlaceholder renders a text-only slide for a degraded entry.
func addPlaceholder(pdf *gofpdf.Fpdf, heading, note string) {
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	pdf.SetTextColor(54, 54, 54)
	pdf.SetFont("Helvetica", "B", 24)
	pdf.SetXY(0.5, pageHeight/2-0.5)
	pdf.CellFormat(pageWidth-1, 0.5, tr(heading), "", 1, "C", false, 0, "")
	pdf.SetTextColor(120, 120, 120)
	pdf.SetFont("Helvetica", "", 12)
	pdf.SetX(0.5)
	pdf.CellFormat(pageWidth-1, 0.4, tr(note), "", 1, "C", false, 0, "")
}
