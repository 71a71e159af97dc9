// Package report renders the markdown sync report summarizing a
// pipeline run: counts, newly processed devices, flagged cases, and
// failed downloads.
package report

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/devtree-data/devtree/internal/model"
	"github.com/devtree-data/devtree/internal/store"
)

const (
	maxDeviceRows     = 50
	maxFlaggedCases   = 20
	maxFailedDownload = 10
)

// Input gathers everything the report reads.
type Input struct {
	Store        *store.Store
	SnapshotIdx  map[string]model.SnapshotDevice
	NewDeviceIDs []string // devices first seen this run, sorted
	Elapsed      time.Duration
}

// Generate renders the sync report markdown.
func Generate(in Input) string {
	date := time.Now().UTC().Format("2006-01-02")

	downloaded, downloadFailed := 0, 0
	var failedIDs, flaggedIDs []string
	for _, id := range in.Store.SortedIDs() {
		rec := in.Store.Get(id)
		if rec.Doc.Status == model.DocDownloaded {
			downloaded++
		}
		if rec.Errors.Download != "" {
			downloadFailed++
			failedIDs = append(failedIDs, id)
		}
		if len(rec.Preds.Malformed) > 0 && !rec.Preds.Verified {
			flaggedIDs = append(flaggedIDs, id)
		}
	}
	sort.Strings(failedIDs)
	sort.Strings(flaggedIDs)

	var b strings.Builder
	fmt.Fprintf(&b, "## Weekly Device Sync - %s\n\n", date)
	b.WriteString("### Summary\n")
	fmt.Fprintf(&b, "- **New devices processed**: %d\n", len(in.NewDeviceIDs))
	fmt.Fprintf(&b, "- **PDFs downloaded**: %d (%d unavailable)\n", downloaded, downloadFailed)
	fmt.Fprintf(&b, "- **Devices with predicates**: %d\n", in.Store.Stats.WithPredicates)
	fmt.Fprintf(&b, "- **Flagged for review**: %d devices\n\n", len(flaggedIDs))

	writeNewDevices(&b, in)
	writeFlagged(&b, in, flaggedIDs)
	writeFailedDownloads(&b, in, failedIDs)

	b.WriteString("### Pipeline Stats\n")
	fmt.Fprintf(&b, "- **Runtime**: %s\n", formatDuration(in.Elapsed))
	fmt.Fprintf(&b, "- **Total devices tracked**: %d\n", in.Store.Stats.TotalDevices)

	return b.String()
}

// WriteFile renders the report and writes it to path.
func WriteFile(in Input, path string) error {
	if err := os.WriteFile(path, []byte(Generate(in)), 0o644); err != nil {
		return eris.Wrapf(err, "report: write %s", path)
	}
	return nil
}

func writeNewDevices(b *strings.Builder, in Input) {
	if len(in.NewDeviceIDs) == 0 {
		return
	}
	b.WriteString("### New Devices\n\n")
	b.WriteString("| K-Number | Applicant | Device Name | Predicates |\n")
	b.WriteString("|----------|-----------|-------------|------------|\n")

	for i, id := range in.NewDeviceIDs {
		if i == maxDeviceRows {
			fmt.Fprintf(b, "| ... | *%d more devices* | | |\n", len(in.NewDeviceIDs)-maxDeviceRows)
			break
		}
		rec := in.Store.Get(id)
		meta := in.SnapshotIdx[id]
		preds := ""
		if rec != nil {
			preds = predsCell(rec.Preds.Values)
		}
		fmt.Fprintf(b, "| %s | %s | %s | %s |\n",
			id,
			clip(orUnknown(meta.Applicant), 30),
			clip(orUnknown(meta.DeviceName), 40),
			preds,
		)
	}
	b.WriteString("\n")
}

func writeFlagged(b *strings.Builder, in Input, flaggedIDs []string) {
	if len(flaggedIDs) == 0 {
		return
	}
	b.WriteString("### Flagged Cases\n\n")
	for i, id := range flaggedIDs {
		if i == maxFlaggedCases {
			fmt.Fprintf(b, "*... and %d more flagged devices*\n\n", len(flaggedIDs)-maxFlaggedCases)
			break
		}
		rec := in.Store.Get(id)
		meta := in.SnapshotIdx[id]
		fmt.Fprintf(b, "#### %s - Malformed Identifiers\n", id)
		fmt.Fprintf(b, "**Device**: %s\n", orUnknown(meta.DeviceName))
		fmt.Fprintf(b, "**Details**: %s\n\n", strings.Join(rec.Preds.Malformed, ", "))
	}
}

func writeFailedDownloads(b *strings.Builder, in Input, failedIDs []string) {
	if len(failedIDs) == 0 {
		return
	}
	b.WriteString("### Failed Downloads\n\n")
	for i, id := range failedIDs {
		if i == maxFailedDownload {
			fmt.Fprintf(b, "- *... and %d more*\n", len(failedIDs)-maxFailedDownload)
			break
		}
		fmt.Fprintf(b, "- **%s**: %s\n", id, in.Store.Get(id).Errors.Download)
	}
	b.WriteString("\n")
}

func predsCell(preds []string) string {
	if len(preds) == 0 {
		return ""
	}
	shown := preds
	if len(shown) > 3 {
		shown = shown[:3]
	}
	cell := strings.Join(shown, ", ")
	if len(preds) > 3 {
		cell += fmt.Sprintf(" (+%d more)", len(preds)-3)
	}
	return cell
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func formatDuration(d time.Duration) string {
	secs := d.Seconds()
	if secs < 60 {
		return fmt.Sprintf("%.0fs", secs)
	}
	return fmt.Sprintf("%dm %ds", int(secs)/60, int(secs)%60)
}
