package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/invoice-tracker/constants"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Server   ServerConfig   `yaml:"server" toml:"server"`
	OCR      OCRConfig      `yaml:"ocr" toml:"ocr"`
	LLM      LLMConfig      `yaml:"llm" toml:"llm"`
	Jobs     JobsConfig     `yaml:"jobs" toml:"jobs"`
	Fallback FallbackConfig `yaml:"fallback" toml:"fallback"`
	Inbox    InboxConfig    `yaml:"inbox" toml:"inbox"`
	Log      LogConfig      `yaml:"log" toml:"log"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string        `yaml:"driver" toml:"driver" validate:"oneof=postgres sqlite"`
	DSN              string        `yaml:"dsn" toml:"dsn" validate:"required"`
	MaxConns         int32         `yaml:"max_conns" toml:"max_conns" validate:"gte=1"`
	MinConns         int32         `yaml:"min_conns" toml:"min_conns" validate:"gte=0"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime" toml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time" toml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout" toml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout" toml:"statement_timeout"`
}

// ServerConfig holds listener addresses for the daemon
type ServerConfig struct {
	GRPCAddr   string `yaml:"grpc_addr" toml:"grpc_addr" validate:"required"`
	EventsAddr string `yaml:"events_addr" toml:"events_addr" validate:"required"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Engine        string `yaml:"engine" toml:"engine" validate:"oneof=tesseract azure none"`
	Tesseract     string `yaml:"tesseract" toml:"tesseract"`
	Pdftoppm      string `yaml:"pdftoppm" toml:"pdftoppm"`
	TesseractLang string `yaml:"tesseract_lang" toml:"tesseract_lang"`
	TessdataDir   string `yaml:"tessdata_dir" toml:"tessdata_dir"`
	DPI           int    `yaml:"dpi" toml:"dpi" validate:"gte=72,lte=1200"`
	MaxPages      int    `yaml:"max_pages" toml:"max_pages" validate:"gte=1,lte=5"`
	Preprocess    bool   `yaml:"preprocess" toml:"preprocess"`
	AzureEndpoint string `yaml:"azure_endpoint" toml:"azure_endpoint" validate:"omitempty,url"`
	AzureKey      string `yaml:"azure_key" toml:"azure_key"`

	Timeout time.Duration `yaml:"timeout" toml:"timeout"`
}

// LLMConfig holds generative model configuration
type LLMConfig struct {
	Provider        string        `yaml:"provider" toml:"provider" validate:"oneof=gemini openai none"`
	Model           string        `yaml:"model" toml:"model"`
	APIKey          string        `yaml:"api_key" toml:"api_key"`
	BaseURL         string        `yaml:"base_url" toml:"base_url" validate:"omitempty,url"`
	Temperature     float32       `yaml:"temperature" toml:"temperature" validate:"gte=0,lte=2"`
	TopP            float32       `yaml:"top_p" toml:"top_p" validate:"gte=0,lte=1"`
	TopK            int32         `yaml:"top_k" toml:"top_k" validate:"gte=0"`
	MaxOutputTokens int32         `yaml:"max_output_tokens" toml:"max_output_tokens" validate:"gte=1"`
	Timeout         time.Duration `yaml:"timeout" toml:"timeout"`
	RequestsPerMin  int           `yaml:"requests_per_min" toml:"requests_per_min" validate:"gte=0"`
}

// JobsConfig bounds a single background extraction job
type JobsConfig struct {
	Timeout time.Duration `yaml:"timeout" toml:"timeout"`
}

// FallbackConfig controls synthetic sample records
type FallbackConfig struct {
	TaxRate string `yaml:"tax_rate" toml:"tax_rate" validate:"required,numeric"`
	Seed    uint64 `yaml:"seed" toml:"seed"`
}

// InboxConfig lists directories watched for new documents
type InboxConfig struct {
	Dirs        []string      `yaml:"dirs" toml:"dirs"`
	InitialScan bool          `yaml:"initial_scan" toml:"initial_scan"`
	Debounce    time.Duration `yaml:"debounce" toml:"debounce"`
}

// LogConfig selects the slog handler
type LogConfig struct {
	Level  string `yaml:"level" toml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" toml:"format" validate:"oneof=json text"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "file:invoices.db?_pragma=busy_timeout(5000)",
			MaxConns:        20,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			GRPCAddr:   ":8080",
			EventsAddr: ":8081",
		},
		OCR: OCRConfig{
			Engine:        "tesseract",
			Tesseract:     "tesseract",
			Pdftoppm:      "pdftoppm",
			TesseractLang: "eng",
			DPI:           300,
			MaxPages:      constants.MaxRasterPages,
			Preprocess:    true,
			Timeout:       60 * time.Second,
		},
		LLM: LLMConfig{
			Provider:        "gemini",
			Model:           "gemini-2.5-flash",
			Temperature:     0.1,
			TopP:            0.8,
			TopK:            40,
			MaxOutputTokens: 4000,
			Timeout:         45 * time.Second,
			RequestsPerMin:  60,
		},
		Jobs: JobsConfig{
			Timeout: 3 * time.Minute,
		},
		Fallback: FallbackConfig{
			TaxRate: "0.06875",
		},
		Inbox: InboxConfig{
			Debounce: 500 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig builds configuration from defaults, an optional file (.yaml, .yml or .toml),
// an optional .env file, then environment variables. Later sources win.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, NewAppError(CodeConfig, "failed to load .env", err)
	}

	cfg := DefaultConfig()
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewAppError(CodeConfig, "failed to read config file", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return NewAppError(CodeConfig, fmt.Sprintf("unsupported config format %q", filepath.Ext(path)), ErrInvalidInput)
	}
	if err != nil {
		return NewAppError(CodeConfig, "failed to parse config file", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	db := &cfg.Database
	db.Driver = getEnv("DB_DRIVER", db.Driver)
	db.DSN = getEnv("DB_URL", db.DSN)
	db.MaxConns = getEnvAsInt32("DB_MAX_CONNS", db.MaxConns)
	db.MinConns = getEnvAsInt32("DB_MIN_CONNS", db.MinConns)
	db.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", db.MaxConnLifetime)
	db.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", db.MaxConnIdleTime)
	db.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", db.DialTimeout)
	db.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", db.StatementTimeout)

	cfg.Server.GRPCAddr = getEnv("GRPC_ADDR", cfg.Server.GRPCAddr)
	cfg.Server.EventsAddr = getEnv("EVENTS_ADDR", cfg.Server.EventsAddr)

	o := &cfg.OCR
	o.Engine = getEnv("OCR_ENGINE", o.Engine)
	o.Tesseract = getEnv("TESSERACT_BIN", o.Tesseract)
	o.Pdftoppm = getEnv("PDFTOPPM_BIN", o.Pdftoppm)
	o.TesseractLang = getEnv("TESSERACT_LANG", o.TesseractLang)
	o.TessdataDir = getEnv("TESSDATA_PREFIX", o.TessdataDir)
	o.DPI = getEnvAsInt("OCR_DPI", o.DPI)
	o.MaxPages = getEnvAsInt("OCR_MAX_PAGES", o.MaxPages)
	o.Preprocess = getEnvAsBool("OCR_PREPROCESS", o.Preprocess)
	o.AzureEndpoint = getEnv("AZURE_VISION_ENDPOINT", o.AzureEndpoint)
	o.AzureKey = getEnv("AZURE_VISION_KEY", o.AzureKey)
	o.Timeout = getEnvAsDuration("OCR_TIMEOUT", o.Timeout)

	l := &cfg.LLM
	l.Provider = getEnv("LLM_PROVIDER", l.Provider)
	l.Model = getEnv("LLM_MODEL", l.Model)
	switch l.Provider {
	case "openai":
		l.APIKey = getEnv("OPENAI_API_KEY", l.APIKey)
	default:
		l.APIKey = getEnv("GEMINI_API_KEY", l.APIKey)
	}
	l.APIKey = getEnv("LLM_API_KEY", l.APIKey)
	l.BaseURL = getEnv("LLM_BASE_URL", l.BaseURL)
	l.Temperature = getEnvAsFloat32("LLM_TEMPERATURE", l.Temperature)
	l.TopP = getEnvAsFloat32("LLM_TOP_P", l.TopP)
	l.TopK = getEnvAsInt32("LLM_TOP_K", l.TopK)
	l.MaxOutputTokens = getEnvAsInt32("LLM_MAX_OUTPUT_TOKENS", l.MaxOutputTokens)
	l.Timeout = getEnvAsDuration("LLM_TIMEOUT", l.Timeout)
	l.RequestsPerMin = getEnvAsInt("LLM_REQUESTS_PER_MIN", l.RequestsPerMin)

	cfg.Jobs.Timeout = getEnvAsDuration("JOB_TIMEOUT", cfg.Jobs.Timeout)
	cfg.Fallback.TaxRate = getEnv("FALLBACK_TAX_RATE", cfg.Fallback.TaxRate)

	if dirs := getEnv("INBOX_DIRS", ""); dirs != "" {
		cfg.Inbox.Dirs = splitList(dirs)
	}
	cfg.Inbox.InitialScan = getEnvAsBool("INBOX_INITIAL_SCAN", cfg.Inbox.InitialScan)
	cfg.Inbox.Debounce = getEnvAsDuration("INBOX_DEBOUNCE", cfg.Inbox.Debounce)

	cfg.Log.Level = strings.ToLower(getEnv("LOG_LEVEL", cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(getEnv("LOG_FORMAT", cfg.Log.Format))
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	if err := ValidateStruct(c); err != nil {
		return NewAppError(CodeConfig, "invalid configuration", err)
	}
	if c.OCR.Engine == "azure" && (c.OCR.AzureEndpoint == "" || c.OCR.AzureKey == "") {
		return NewAppError(CodeConfig, "AZURE_VISION_ENDPOINT and AZURE_VISION_KEY are required for the azure OCR engine", ErrInvalidInput)
	}
	return nil
}
