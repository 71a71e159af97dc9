package textify

import (
	"context"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"

	"github.com/devtree-data/devtree/internal/model"
)

// PDFTextEngine reads text directly from PDF content streams. It is the
// fastest engine but yields nothing for scanned documents, which carry
// their text as page images.
type PDFTextEngine struct{}

// NewPDFTextEngine creates a content-stream text engine.
func NewPDFTextEngine() *PDFTextEngine {
	return &PDFTextEngine{}
}

func (e *PDFTextEngine) Source() model.TextSource {
	return model.SourcePDFText
}

// Extract pulls plain text page by page. Pages that fail to decode are
// skipped rather than failing the document; FDA summaries routinely mix
// clean and damaged pages.
func (e *PDFTextEngine) Extract(ctx context.Context, pdfPath string) (Extraction, error) {
	f, reader, err := pdf.Open(pdfPath)
	if err != nil {
		return Extraction{}, eris.Wrapf(err, "textify: open pdf %s", pdfPath)
	}
	defer f.Close() //nolint:errcheck

	totalPages := reader.NumPage()
	var sb strings.Builder

	for i := 1; i <= totalPages; i++ {
		if err := ctx.Err(); err != nil {
			return Extraction{}, eris.Wrap(err, "textify: extraction canceled")
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	return Extraction{Text: sb.String(), Pages: totalPages}, nil
}
