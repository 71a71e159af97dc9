// Package config loads application configuration from a YAML file and the
// environment, and initializes the global logger. The resulting Config is
// constructed once at startup and passed explicitly to every component;
// nothing in the pipeline reads paths from the working directory.
package config

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Paths     PathsConfig     `yaml:"paths" mapstructure:"paths"`
	FDA       FDAConfig       `yaml:"fda" mapstructure:"fda"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Download  DownloadConfig  `yaml:"download" mapstructure:"download"`
	Extract   ExtractConfig   `yaml:"extract" mapstructure:"extract"`
	Analyze   AnalyzeConfig   `yaml:"analyze" mapstructure:"analyze"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// PathsConfig holds all on-disk locations used by the pipeline.
type PathsConfig struct {
	DataDir  string `yaml:"data_dir" mapstructure:"data_dir"`
	PDFDir   string `yaml:"pdf_dir" mapstructure:"pdf_dir"`
	TextDir  string `yaml:"text_dir" mapstructure:"text_dir"`
	CacheDir string `yaml:"cache_dir" mapstructure:"cache_dir"`
}

// StorePath is the device store file under the data dir.
func (p PathsConfig) StorePath() string { return filepath.Join(p.DataDir, "devices.json") }

// SnapshotPath is the FDA dataset snapshot file under the data dir.
func (p PathsConfig) SnapshotPath() string {
	return filepath.Join(p.DataDir, "device-510k.json")
}

// GraphPath is the raw graph export file.
func (p PathsConfig) GraphPath() string { return filepath.Join(p.DataDir, "graph.json") }

// CytoscapePath is the node-consistent visualization export file.
func (p PathsConfig) CytoscapePath() string { return filepath.Join(p.DataDir, "cytoscape.json") }

// AnalysisPath is the analysis report file.
func (p PathsConfig) AnalysisPath() string { return filepath.Join(p.DataDir, "analysis.json") }

// ReportPath is the markdown sync report file.
func (p PathsConfig) ReportPath() string { return filepath.Join(p.DataDir, "sync_report.md") }

// FDAConfig holds upstream FDA endpoints.
type FDAConfig struct {
	SnapshotURL string `yaml:"snapshot_url" mapstructure:"snapshot_url"`
	DocsBaseURL string `yaml:"docs_base_url" mapstructure:"docs_base_url"`
}

// AnthropicConfig holds Anthropic API settings for the LLM and vision
// extraction adapters.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	TextModel   string `yaml:"text_model" mapstructure:"text_model"`
	VisionModel string `yaml:"vision_model" mapstructure:"vision_model"`
	MaxTokens   int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// DownloadConfig configures the PDF download stage.
type DownloadConfig struct {
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// ExtractConfig configures the text and predicate extraction stages.
type ExtractConfig struct {
	Concurrency    int    `yaml:"concurrency" mapstructure:"concurrency"`
	LLMConcurrency int    `yaml:"llm_concurrency" mapstructure:"llm_concurrency"`
	MaxVisionPages int    `yaml:"max_vision_pages" mapstructure:"max_vision_pages"`
	RenderDPI      int    `yaml:"render_dpi" mapstructure:"render_dpi"`
	PdfToTextPath  string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	PdfToPpmPath   string `yaml:"pdftoppm_path" mapstructure:"pdftoppm_path"`
}

// AnalyzeConfig configures the graph analysis stage.
type AnalyzeConfig struct {
	TopChains       int `yaml:"top_chains" mapstructure:"top_chains"`
	TopDevices      int `yaml:"top_devices" mapstructure:"top_devices"`
	TopCompanies    int `yaml:"top_companies" mapstructure:"top_companies"`
	MinCompanyEdges int `yaml:"min_company_edges" mapstructure:"min_company_edges"`
	MinVariants     int `yaml:"min_variants" mapstructure:"min_variants"`
	MinDevices      int `yaml:"min_devices" mapstructure:"min_devices"`
	ChainWorkers    int `yaml:"chain_workers" mapstructure:"chain_workers"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("DEVTREE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("paths.data_dir", "data")
	v.SetDefault("paths.pdf_dir", "pdfs")
	v.SetDefault("paths.text_dir", "text")
	v.SetDefault("paths.cache_dir", "cache")
	v.SetDefault("fda.snapshot_url", "https://download.open.fda.gov/device/510k/device-510k-0001-of-0001.json.zip")
	v.SetDefault("fda.docs_base_url", "https://www.accessdata.fda.gov/cdrh_docs")
	v.SetDefault("anthropic.text_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.vision_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("download.concurrency", 3)
	v.SetDefault("download.rate_per_sec", 1.0)
	v.SetDefault("download.timeout_secs", 30)
	v.SetDefault("download.user_agent", "devtree/1.0")
	v.SetDefault("extract.concurrency", 4)
	v.SetDefault("extract.llm_concurrency", 2)
	v.SetDefault("extract.max_vision_pages", 6)
	v.SetDefault("extract.render_dpi", 100)
	v.SetDefault("extract.pdftotext_path", "pdftotext")
	v.SetDefault("extract.pdftoppm_path", "pdftoppm")
	v.SetDefault("analyze.top_chains", 20)
	v.SetDefault("analyze.top_devices", 50)
	v.SetDefault("analyze.top_companies", 50)
	v.SetDefault("analyze.min_company_edges", 5)
	v.SetDefault("analyze.min_variants", 5)
	v.SetDefault("analyze.min_devices", 200)
	v.SetDefault("analyze.chain_workers", 8)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
