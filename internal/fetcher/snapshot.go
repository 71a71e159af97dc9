package fetcher

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/devtree-data/devtree/internal/model"
)

// FetchSnapshot downloads the openFDA 510(k) ZIP, extracts its single
// JSON member, writes it atomically to destPath, and returns the parsed
// snapshot.
func FetchSnapshot(ctx context.Context, f *HTTPFetcher, url, destPath string) (*model.Snapshot, error) {
	zap.L().Info("fetching dataset snapshot", zap.String("url", url))

	body, err := f.Get(ctx, url)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: download snapshot")
	}

	raw, err := extractJSONMember(body)
	if err != nil {
		return nil, err
	}

	snapshot, err := ParseSnapshot(raw)
	if err != nil {
		return nil, err
	}

	if err := writeFileAtomic(destPath, raw); err != nil {
		return nil, err
	}

	zap.L().Info("snapshot saved",
		zap.String("path", destPath),
		zap.Int("devices", len(snapshot.Results)),
	)
	return snapshot, nil
}

// LoadSnapshot reads a previously fetched snapshot from disk.
func LoadSnapshot(path string) (*model.Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read snapshot %s", path)
	}
	return ParseSnapshot(raw)
}

// ParseSnapshot decodes snapshot JSON.
func ParseSnapshot(raw []byte) (*model.Snapshot, error) {
	var s model.Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, eris.Wrap(err, "fetcher: parse snapshot")
	}
	return &s, nil
}

// extractJSONMember pulls the single .json file out of a ZIP archive.
func extractJSONMember(zipData []byte) ([]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(zipData), int64(len(zipData)))
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: open snapshot zip")
	}

	for _, f := range r.File {
		if !strings.HasSuffix(f.Name, ".json") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: open zip member %s", f.Name)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: read zip member %s", f.Name)
		}
		return data, nil
	}

	return nil, eris.New("fetcher: no JSON member in snapshot zip")
}
