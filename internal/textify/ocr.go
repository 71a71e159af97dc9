package textify

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/devtree-data/devtree/internal/model"
)

// OCREngine extracts text through the poppler pdftotext CLI. Its layout
// mode recovers text from documents where direct content-stream reading
// returns garbage, at the cost of a subprocess per document.
type OCREngine struct {
	binPath string
}

// NewOCREngine creates an OCR engine. If binPath is empty, "pdftotext"
// is resolved from PATH.
func NewOCREngine(binPath string) *OCREngine {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &OCREngine{binPath: binPath}
}

func (e *OCREngine) Source() model.TextSource {
	return model.SourceOCR
}

// Extract runs pdftotext -layout and reads stdout. The page count comes
// from the form-feed separators pdftotext emits between pages.
func (e *OCREngine) Extract(ctx context.Context, pdfPath string) (Extraction, error) {
	cmd := exec.CommandContext(ctx, e.binPath, "-layout", pdfPath, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Extraction{}, eris.Wrapf(err, "textify: pdftotext failed for %s: %s", pdfPath, stderr.String())
	}

	text := stdout.String()
	pages := strings.Count(text, "\f")
	if len(text) > 0 && !strings.HasSuffix(text, "\f") {
		pages++
	}
	return Extraction{Text: text, Pages: pages}, nil
}

// RenderedPage is one page rendered to a PNG image for vision extraction.
type RenderedPage struct {
	Number int
	PNG    []byte
}

// PageRenderer rasterizes PDF pages through the poppler pdftoppm CLI.
type PageRenderer struct {
	binPath string
	dpi     int
}

// NewPageRenderer creates a renderer. If binPath is empty, "pdftoppm" is
// resolved from PATH; dpi values < 1 fall back to 100, enough for the
// vision model to read typewritten K-numbers without inflating payloads.
func NewPageRenderer(binPath string, dpi int) *PageRenderer {
	if binPath == "" {
		binPath = "pdftoppm"
	}
	if dpi < 1 {
		dpi = 100
	}
	return &PageRenderer{binPath: binPath, dpi: dpi}
}

// Render rasterizes pages 1..maxPages of the PDF to PNGs. Documents
// shorter than maxPages yield fewer pages; pdftoppm stops at the end.
func (r *PageRenderer) Render(ctx context.Context, pdfPath string, maxPages int) ([]RenderedPage, error) {
	if maxPages < 1 {
		return nil, eris.New("textify: render requires at least one page")
	}

	pages := make([]RenderedPage, 0, maxPages)
	for n := 1; n <= maxPages; n++ {
		png, err := r.renderPage(ctx, pdfPath, n)
		if err != nil {
			// Past the last page pdftoppm exits nonzero with no output.
			if len(pages) > 0 {
				break
			}
			return nil, err
		}
		if len(png) == 0 {
			break
		}
		pages = append(pages, RenderedPage{Number: n, PNG: png})
	}

	if len(pages) == 0 {
		return nil, eris.Wrapf(ErrNoPages, "textify: render %s", pdfPath)
	}
	return pages, nil
}

// ErrNoPages marks a PDF that rendered to zero pages.
var ErrNoPages = eris.New("no renderable pages")

func (r *PageRenderer) renderPage(ctx context.Context, pdfPath string, page int) ([]byte, error) {
	pageArg := strconv.Itoa(page)
	cmd := exec.CommandContext(ctx, r.binPath,
		"-png",
		"-r", strconv.Itoa(r.dpi),
		"-f", pageArg,
		"-l", pageArg,
		pdfPath,
		"-", // stdout
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "textify: pdftoppm page %d of %s: %s", page, pdfPath, stderr.String())
	}
	return stdout.Bytes(), nil
}
