package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
type Config struct {
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	LedgerBackend string `mapstructure:"LEDGER_BACKEND"`
	LedgerPath    string `mapstructure:"LEDGER_PATH"`
	PostgresURL   string `mapstructure:"POSTGRES_URL"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	RedisQueueKey string `mapstructure:"REDIS_QUEUE_KEY"`

	URLFile         string `mapstructure:"URL_FILE"`
	PDFInboxDir     string `mapstructure:"PDF_INBOX_DIR"`
	DocumentPattern string `mapstructure:"DOCUMENT_PATTERN"`

	OriginDir    string `mapstructure:"ORIGIN_DIR"`
	TableDir     string `mapstructure:"TABLE_DIR"`
	OriginPrefix string `mapstructure:"ORIGIN_PREFIX"`
	TablePrefix  string `mapstructure:"TABLE_PREFIX"`

	WebStrategy      string `mapstructure:"WEB_STRATEGY"`
	PDFStrategy      string `mapstructure:"PDF_STRATEGY"`
	MorphVariant     string `mapstructure:"MORPH_VARIANT"`
	FullPageFallback bool   `mapstructure:"FULL_PAGE_FALLBACK"`

	PDFDPI           int           `mapstructure:"PDF_DPI"`
	PDFPaddingPx     int           `mapstructure:"PDF_PADDING_PX"`
	PDFPaddingPt     float64       `mapstructure:"PDF_PADDING_PT"`
	PDFExtendRight   bool          `mapstructure:"PDF_EXTEND_RIGHT"`
	PDFRightMarginPx int           `mapstructure:"PDF_RIGHT_MARGIN_PX"`
	PdftoppmPath     string        `mapstructure:"PDFTOPPM_PATH"`
	PDFRenderTimeout time.Duration `mapstructure:"PDF_RENDER_TIMEOUT"`

	ChromePath         string        `mapstructure:"CHROME_PATH"`
	UserAgent          string        `mapstructure:"USER_AGENT"`
	ViewportWidth      int           `mapstructure:"VIEWPORT_WIDTH"`
	ViewportHeight     int           `mapstructure:"VIEWPORT_HEIGHT"`
	ElementWaitTimeout time.Duration `mapstructure:"ELEMENT_WAIT_TIMEOUT"`

	ScrollStepPx   int           `mapstructure:"SCROLL_STEP_PX"`
	ScrollPause    time.Duration `mapstructure:"SCROLL_PAUSE"`
	ScrollMaxSteps int           `mapstructure:"SCROLL_MAX_STEPS"`

	WebSourceDelay time.Duration `mapstructure:"WEB_SOURCE_DELAY"`
	PDFSourceDelay time.Duration `mapstructure:"PDF_SOURCE_DELAY"`

	PanelPatterns       []string `mapstructure:"PANEL_PATTERNS"`
	RemoveProcessedPDFs bool     `mapstructure:"REMOVE_PROCESSED_PDFS"`
	MetricsAddr         string   `mapstructure:"METRICS_ADDR"`
}

var defaults = map[string]any{
	"LOG_LEVEL":  "info",
	"LOG_FORMAT": "json",

	"LEDGER_BACKEND": "xlsx",
	"LEDGER_PATH":    "Medical_Table_Results.xlsx",
	"POSTGRES_URL":   "",

	"REDIS_ADDR":      "localhost:6379",
	"REDIS_PASSWORD":  "",
	"REDIS_DB":        0,
	"REDIS_QUEUE_KEY": "tablemagnifier:sources",

	"URL_FILE":         "urls.txt",
	"PDF_INBOX_DIR":    "temperal_pdf",
	"DOCUMENT_PATTERN": "**/*.pdf",

	"ORIGIN_DIR":    "Medical/Context/Origin",
	"TABLE_DIR":     "Medical/Table",
	"ORIGIN_PREFIX": "M_origin",
	"TABLE_PREFIX":  "M_table",

	"WEB_STRATEGY":       "dom_table",
	"PDF_STRATEGY":       "pdf_native_table",
	"MORPH_VARIANT":      "loose",
	"FULL_PAGE_FALLBACK": false,

	"PDF_DPI":             300,
	"PDF_PADDING_PX":      30,
	"PDF_PADDING_PT":      0.0,
	"PDF_EXTEND_RIGHT":    true,
	"PDF_RIGHT_MARGIN_PX": 20,
	"PDFTOPPM_PATH":       "pdftoppm",
	"PDF_RENDER_TIMEOUT":  60 * time.Second,

	"CHROME_PATH":          "",
	"USER_AGENT":           "",
	"VIEWPORT_WIDTH":       1920,
	"VIEWPORT_HEIGHT":      1080,
	"ELEMENT_WAIT_TIMEOUT": 20 * time.Second,

	"SCROLL_STEP_PX":   500,
	"SCROLL_PAUSE":     200 * time.Millisecond,
	"SCROLL_MAX_STEPS": 200,

	"WEB_SOURCE_DELAY": 2 * time.Second,
	"PDF_SOURCE_DELAY": 1 * time.Second,

	"PANEL_PATTERNS":        []string{"page06_new.html"},
	"REMOVE_PROCESSED_PDFS": false,
	"METRICS_ADDR":          "",
}

// Load reads configuration from file or environment variables. An empty path
// means an optional .env in the working directory.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path == "" {
		v.SetConfigFile(".env")
		v.SetConfigType("env")
	} else {
		v.SetConfigFile(path)
	}
	v.AutomaticEnv()

	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	// The default .env is optional; a file named explicitly is not.
	if err := v.ReadInConfig(); err != nil && path != "" {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no command could run with.
func (c *Config) Validate() error {
	switch c.LedgerBackend {
	case "xlsx":
		if c.LedgerPath == "" {
			return errors.New("LEDGER_PATH is required for the xlsx ledger")
		}
	case "postgres":
		if c.PostgresURL == "" {
			return errors.New("POSTGRES_URL is required for the postgres ledger")
		}
	default:
		return fmt.Errorf("unknown LEDGER_BACKEND %q", c.LedgerBackend)
	}
	if c.PDFDPI <= 0 {
		return fmt.Errorf("PDF_DPI must be positive, got %d", c.PDFDPI)
	}
	if c.ScrollStepPx <= 0 || c.ScrollMaxSteps <= 0 {
		return errors.New("SCROLL_STEP_PX and SCROLL_MAX_STEPS must be positive")
	}
	if c.MorphVariant != "loose" && c.MorphVariant != "strict" {
		return fmt.Errorf("unknown MORPH_VARIANT %q", c.MorphVariant)
	}
	return nil
}
