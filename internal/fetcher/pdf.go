package fetcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// PDFResult describes one completed PDF download.
type PDFResult struct {
	DeviceID string
	Path     string
	Size     int64
}

// PrimaryPDFURL builds the expected summary URL for a device. K-numbers
// cleared 1976-2001 live under cdrh_docs/pdf/, later years under
// cdrh_docs/pdf{YY}/; DEN (De Novo) documents live under reviews/.
func PrimaryPDFURL(baseURL, deviceID string) string {
	if strings.HasPrefix(deviceID, "DEN") {
		return fmt.Sprintf("%s/reviews/%s.pdf", baseURL, deviceID)
	}

	yy, err := strconv.Atoi(deviceID[1:3])
	if err != nil || yy > 76 || yy < 2 {
		return fmt.Sprintf("%s/pdf/%s.pdf", baseURL, deviceID)
	}
	return fmt.Sprintf("%s/pdf%d/%s.pdf", baseURL, yy, deviceID)
}

// FallbackPDFURL is the secondary location checked when the primary
// pattern 404s; some summaries are filed under reviews/ regardless of year.
func FallbackPDFURL(baseURL, deviceID string) string {
	return fmt.Sprintf("%s/reviews/%s.pdf", baseURL, deviceID)
}

// DownloadPDF fetches a device's summary PDF, trying the primary URL
// pattern then the fallback. A 404 on both is ErrNotFound (terminal);
// transient failures have already been retried by the underlying fetcher.
func DownloadPDF(ctx context.Context, f *HTTPFetcher, baseURL, deviceID, destDir string) (PDFResult, error) {
	destPath := filepath.Join(destDir, deviceID+".pdf")

	body, err := f.Get(ctx, PrimaryPDFURL(baseURL, deviceID))
	if err != nil && errors.Is(err, ErrNotFound) {
		body, err = f.Get(ctx, FallbackPDFURL(baseURL, deviceID))
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return PDFResult{}, eris.Wrapf(ErrNotFound, "device %s", deviceID)
		}
		return PDFResult{}, eris.Wrapf(err, "fetcher: download pdf %s", deviceID)
	}

	if err := writeFileAtomic(destPath, body); err != nil {
		return PDFResult{}, err
	}

	return PDFResult{DeviceID: deviceID, Path: destPath, Size: int64(len(body))}, nil
}
