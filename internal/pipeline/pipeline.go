// Package pipeline wires the stages together: fetch dataset, download
// PDFs, extract text and predicates, aggregate, build and analyze the
// graph, and render the sync report. Stages run sequentially; items
// within a stage run concurrently through the runner. Each stage is
// idempotent and resumable from the device store.
package pipeline

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/devtree-data/devtree/internal/aggregate"
	"github.com/devtree-data/devtree/internal/config"
	"github.com/devtree-data/devtree/internal/extract"
	"github.com/devtree-data/devtree/internal/fetcher"
	"github.com/devtree-data/devtree/internal/knum"
	"github.com/devtree-data/devtree/internal/llm"
	"github.com/devtree-data/devtree/internal/model"
	"github.com/devtree-data/devtree/internal/runner"
	"github.com/devtree-data/devtree/internal/store"
	"github.com/devtree-data/devtree/internal/textify"
)

// Pipeline holds the shared stage dependencies.
type Pipeline struct {
	cfg       *config.Config
	store     *store.Store
	fetcher   *fetcher.HTTPFetcher
	llmClient llm.Client
	textCache *textify.Cache
	extCache  *extract.Cache
	renderer  *textify.PageRenderer
	llmSem    *semaphore.Weighted

	startedAt time.Time
	newIDs    []string
}

// New loads the device store and builds the stage dependencies. The
// LLM-backed adapters are only available when an API key is configured;
// without one the extract stage degrades to pattern matching.
func New(cfg *config.Config) (*Pipeline, error) {
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.PDFDir, cfg.Paths.TextDir, cfg.Paths.CacheDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "pipeline: create dir %s", dir)
		}
	}

	st, err := store.Load(cfg.Paths.StorePath())
	if err != nil {
		return nil, err
	}

	llmSlots := cfg.Extract.LLMConcurrency
	if llmSlots < 1 {
		llmSlots = 1
	}

	p := &Pipeline{
		cfg:   cfg,
		store: st,
		fetcher: fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:  cfg.Download.UserAgent,
			Timeout:    time.Duration(cfg.Download.TimeoutSecs) * time.Second,
			RatePerSec: cfg.Download.RatePerSec,
		}),
		textCache: textify.NewCache(cfg.Paths.TextDir),
		extCache:  extract.NewCache(cfg.Paths.CacheDir),
		renderer:  textify.NewPageRenderer(cfg.Extract.PdfToPpmPath, cfg.Extract.RenderDPI),
		llmSem:    semaphore.NewWeighted(int64(llmSlots)),
		startedAt: time.Now(),
	}
	if cfg.Anthropic.Key != "" {
		p.llmClient = llm.NewClient(cfg.Anthropic.Key)
	} else {
		zap.L().Warn("no anthropic key configured, model extraction disabled")
	}
	return p, nil
}

// Store exposes the device store for the verify command.
func (p *Pipeline) Store() *store.Store { return p.store }

// NewDeviceIDs returns the devices first seen by this run's fetch stage.
func (p *Pipeline) NewDeviceIDs() []string { return p.newIDs }

// Elapsed is the wall time since the pipeline was constructed.
func (p *Pipeline) Elapsed() time.Duration { return time.Since(p.startedAt) }

// SaveStore persists the device store.
func (p *Pipeline) SaveStore() error {
	return p.store.Save(p.cfg.Paths.StorePath())
}

// Fetch downloads the dataset snapshot and registers every device in the
// store. Returns the parsed snapshot.
func (p *Pipeline) Fetch(ctx context.Context) (*model.Snapshot, error) {
	snapshot, err := fetcher.FetchSnapshot(ctx, p.fetcher, p.cfg.FDA.SnapshotURL, p.cfg.Paths.SnapshotPath())
	if err != nil {
		return nil, err
	}
	p.registerSnapshot(snapshot)
	return snapshot, nil
}

// LoadSnapshot reads the snapshot fetched by a previous run.
func (p *Pipeline) LoadSnapshot() (*model.Snapshot, error) {
	return fetcher.LoadSnapshot(p.cfg.Paths.SnapshotPath())
}

func (p *Pipeline) registerSnapshot(snapshot *model.Snapshot) {
	rejected := 0
	for _, d := range snapshot.Results {
		id := knum.Normalize(d.KNumber)
		if !knum.Valid(id) {
			// Malformed dataset identifiers never become records; they
			// would only bounce to quarantine on the next load.
			if d.KNumber != "" {
				rejected++
				zap.L().Warn("snapshot: rejecting malformed identifier",
					zap.String("k_number", d.KNumber),
				)
			}
			continue
		}
		if p.store.Get(id) == nil {
			p.newIDs = append(p.newIDs, id)
		}
		p.store.Ensure(id)
	}
	zap.L().Info("snapshot registered",
		zap.Int("devices", len(snapshot.Results)),
		zap.Int("new", len(p.newIDs)),
		zap.Int("rejected", rejected),
	)
}

// Download fetches summary PDFs for every device without a local copy.
// Confirmed-missing documents are recorded as terminal and skipped on
// later runs; transient failures stay retryable.
func (p *Pipeline) Download(ctx context.Context) runner.Summary[string, fetcher.PDFResult] {
	ids := p.store.SortedIDs()

	summary := runner.Run(ctx, "download", ids, runner.Options[string]{
		Concurrency: p.cfg.Download.Concurrency,
		Skip: func(id string) bool {
			rec := p.store.Get(id)
			return rec.Doc.Status == model.DocDownloaded || rec.Doc.Status == model.DocMissing
		},
	}, func(ctx context.Context, id string) (fetcher.PDFResult, error) {
		return fetcher.DownloadPDF(ctx, p.fetcher, p.cfg.FDA.DocsBaseURL, id, p.cfg.Paths.PDFDir)
	})

	for _, res := range summary.Succeeded {
		p.store.SetDownloaded(res.DeviceID, res.Path, res.Size)
	}
	for _, f := range summary.Failed {
		if fetcher.IsNotFoundText(f.Err) {
			p.store.SetNotFound(f.Item)
		} else {
			p.store.SetDownloadError(f.Item, eris.New(f.Err))
		}
	}
	return summary
}

// ExtractOutcome is what one device's extract task reports back.
type ExtractOutcome struct {
	id      string
	source  model.TextSource
	chars   int
	pages   int
	cached  bool
	results []model.ExtractionResult
}

// Extract runs text and predicate extraction for every downloaded
// device. Per device: read the content stream, fall back to OCR when
// the text is not rich, run the pattern and model adapters over the
// best text, and escalate empty documents to the vision adapter.
func (p *Pipeline) Extract(ctx context.Context) runner.Summary[string, ExtractOutcome] {
	var pattern extract.Adapter = extract.NewPatternAdapter()
	var llmAdapter, visionAdapter extract.Adapter
	if p.llmClient != nil {
		llmAdapter = extract.NewLLMAdapter(p.llmClient, p.cfg.Anthropic.TextModel, int64(p.cfg.Anthropic.MaxTokens))
		visionAdapter = extract.NewVisionAdapter(p.llmClient, p.renderer, p.cfg.Anthropic.VisionModel,
			int64(p.cfg.Anthropic.MaxTokens), p.cfg.Extract.MaxVisionPages)
	}

	ids := p.store.SortedIDs()
	summary := runner.Run(ctx, "extract", ids, runner.Options[string]{
		Concurrency: p.cfg.Extract.Concurrency,
		Skip: func(id string) bool {
			rec := p.store.Get(id)
			return rec.Doc.Status != model.DocDownloaded || rec.Preds.Verified
		},
	}, func(ctx context.Context, id string) (ExtractOutcome, error) {
		return p.extractOne(ctx, id, pattern, llmAdapter, visionAdapter)
	})

	for _, out := range summary.Succeeded {
		chars, pages := out.chars, out.pages
		if out.cached {
			// Cache hits carry no page count; keep the first run's
			// numbers so a rerun cannot degrade the text state.
			if rec := p.store.Get(out.id); rec != nil && rec.Text.Extracted && rec.Text.Source == out.source {
				chars, pages = rec.Text.Chars, rec.Text.Pages
			}
		}
		p.store.SetText(out.id, out.source, chars, pages)

		if msg := failedResultSummary(out.results); msg != "" {
			p.store.SetPredicateError(out.id, eris.New(msg))
		}
	}
	for _, f := range summary.Failed {
		p.store.SetTextError(f.Item, eris.New(f.Err))
	}
	return summary
}

// failedResultSummary flattens the failed adapter results for one device
// into a single error string for the record.
func failedResultSummary(results []model.ExtractionResult) string {
	var parts []string
	for _, res := range results {
		if res.Failed() {
			parts = append(parts, res.Tag.String()+": "+res.Err)
		}
	}
	return strings.Join(parts, "; ")
}

func (p *Pipeline) extractOne(ctx context.Context, id string, pattern, llmAdapter, visionAdapter extract.Adapter) (ExtractOutcome, error) {
	rec := p.store.Get(id)
	pdfPath := rec.Doc.Path

	ext, hit, err := textify.ExtractCached(ctx, p.textCache, textify.NewPDFTextEngine(), id, pdfPath)
	kind := model.SourcePDFText
	if err != nil {
		ext = textify.Extraction{}
	}

	quality := textQuality(ext)
	if quality != model.QualityRich {
		ocrExt, ocrHit, ocrErr := textify.ExtractCached(ctx, p.textCache, textify.NewOCREngine(p.cfg.Extract.PdfToTextPath), id, pdfPath)
		if ocrErr == nil && len(ocrExt.Text) > len(ext.Text) {
			ext, kind, hit = ocrExt, model.SourceOCR, ocrHit
			quality = textQuality(ext)
		} else if err != nil && ocrErr != nil {
			return ExtractOutcome{}, eris.Wrap(err, "all text engines failed")
		}
	}

	out := ExtractOutcome{id: id, source: kind, chars: len(ext.Text), pages: ext.Pages, cached: hit}
	src := extract.Source{Kind: kind, Text: ext.Text, Path: pdfPath}

	out.results = append(out.results, extract.Cached(ctx, p.extCache, pattern, id, src))
	if llmAdapter != nil && quality != model.QualityEmpty {
		out.results = append(out.results, p.modelCall(ctx, llmAdapter, id, src))
	}
	if visionAdapter != nil && quality == model.QualityEmpty {
		scanSrc := extract.Source{Kind: model.SourceScan, Path: pdfPath}
		out.results = append(out.results, p.modelCall(ctx, visionAdapter, id, scanSrc))
	}
	return out, nil
}

// modelCall runs a paid adapter under the model-call semaphore. Extract
// workers outnumber the API budget; the semaphore caps in-flight model
// requests without throttling the free pattern adapter.
func (p *Pipeline) modelCall(ctx context.Context, a extract.Adapter, id string, src extract.Source) model.ExtractionResult {
	tag := model.MethodTag{Extractor: a.Extractor(), Source: src.Kind}
	if err := p.llmSem.Acquire(ctx, 1); err != nil {
		return model.ErrResult(id, tag, eris.Wrap(err, "acquire model slot"))
	}
	defer p.llmSem.Release(1)
	return extract.Cached(ctx, p.extCache, a, id, src)
}

func textQuality(ext textify.Extraction) model.TextQuality {
	if ext.Pages == 0 {
		if len(ext.Text) == 0 {
			return model.QualityEmpty
		}
		return model.QualityRich // cache hit without page count
	}
	return model.QualityForDensity(float64(len(ext.Text)) / float64(ext.Pages))
}

// Aggregate reconciles cached extraction results into one predicate
// list per device and writes it to the store. Human-verified records
// are frozen and left untouched.
func (p *Pipeline) Aggregate() int {
	table := aggregate.DefaultPriority()

	var all []model.ExtractionResult
	malformed := make(map[string][]string)
	for _, id := range p.store.SortedIDs() {
		results := p.extCache.Results(id)
		all = append(all, results...)
		for _, res := range results {
			if len(res.Malformed) > 0 && len(malformed[id]) == 0 {
				malformed[id] = res.Malformed
			}
		}
	}

	winners := aggregate.Aggregate(all, table)
	for id, agg := range winners {
		p.store.SetPredicates(id, agg.Tag, agg.Predicates, malformed[id])
		// A cited predicate becomes a tracked device the first time it
		// is referenced, so later runs can fetch its document.
		for _, target := range agg.Predicates {
			p.store.Ensure(target)
		}
	}
	return len(winners)
}

// Predicates returns the store's aggregated predicate view for graph
// building: every device with an extracted, error-free predicate list.
func (p *Pipeline) Predicates() map[string]model.AggregatedPredicate {
	preds := make(map[string]model.AggregatedPredicate)
	for id, rec := range p.store.Devices {
		if !rec.Preds.Extracted {
			continue
		}
		preds[id] = model.AggregatedPredicate{
			DeviceID:   id,
			Predicates: rec.Preds.Values,
			Tag:        rec.Preds.Method,
		}
	}
	return preds
}
