package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-tracker/internal/common"
	"github.com/joseph-ayodele/invoice-tracker/internal/extract"
	"github.com/joseph-ayodele/invoice-tracker/internal/fallback"
	"github.com/joseph-ayodele/invoice-tracker/internal/llm"
	"github.com/joseph-ayodele/invoice-tracker/internal/llm/gemini"
	"github.com/joseph-ayodele/invoice-tracker/internal/llm/openai"
	"github.com/joseph-ayodele/invoice-tracker/internal/normalize"
	"github.com/joseph-ayodele/invoice-tracker/internal/ocr"
	"github.com/joseph-ayodele/invoice-tracker/internal/rules"
)

// Capabilities is what this process can reach, detected once at startup.
type Capabilities struct {
	OCR        bool `json:"ocr"`
	Rasterizer bool `json:"rasterizer"`
	Model      bool `json:"model"`
}

// DetectCapabilities checks for OCR binaries or credentials and a model credential.
func DetectCapabilities(cfg *common.Config) Capabilities {
	var caps Capabilities
	switch cfg.OCR.Engine {
	case "tesseract":
		caps.OCR = ocr.Available(cfg.OCR.Tesseract)
	case "azure":
		caps.OCR = cfg.OCR.AzureEndpoint != "" && cfg.OCR.AzureKey != ""
	}
	caps.Rasterizer = ocr.Available(cfg.OCR.Pdftoppm)
	caps.Model = cfg.LLM.Provider != "none" && cfg.LLM.Provider != "" && cfg.LLM.APIKey != ""
	return caps
}

func (c Capabilities) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("ocr", c.OCR),
		slog.Bool("rasterizer", c.Rasterizer),
		slog.Bool("model", c.Model),
	)
}

// NewGenerator builds the configured model client, rate limited when requested.
func NewGenerator(ctx context.Context, cfg common.LLMConfig, logger *slog.Logger) (llm.Generator, error) {
	var gen llm.Generator
	switch cfg.Provider {
	case "gemini":
		c, err := gemini.NewClient(ctx, gemini.Config{APIKey: cfg.APIKey, Model: cfg.Model, Timeout: cfg.Timeout}, logger)
		if err != nil {
			return nil, err
		}
		gen = c
	case "openai":
		gen = openai.NewClient(openai.Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model, Timeout: cfg.Timeout}, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	return llm.NewRateLimited(gen, cfg.RequestsPerMin), nil
}

// NewOCREngine builds the configured OCR engine.
func NewOCREngine(cfg common.OCRConfig, logger *slog.Logger) (ocr.Engine, error) {
	oc := ocrConfig(cfg)
	switch cfg.Engine {
	case "tesseract":
		return ocr.NewTesseractEngine(oc, nil, logger), nil
	case "azure":
		return ocr.NewAzureEngine(cfg.AzureEndpoint, cfg.AzureKey, logger)
	default:
		return nil, fmt.Errorf("unknown ocr engine %q", cfg.Engine)
	}
}

func ocrConfig(cfg common.OCRConfig) ocr.Config {
	return ocr.Config{
		Engine:        cfg.Engine,
		Tesseract:     cfg.Tesseract,
		Pdftoppm:      cfg.Pdftoppm,
		TesseractLang: cfg.TesseractLang,
		TessdataDir:   cfg.TessdataDir,
		DPI:           cfg.DPI,
		MaxPages:      cfg.MaxPages,
		AzureEndpoint: cfg.AzureEndpoint,
		AzureKey:      cfg.AzureKey,
	}
}

// Build wires a pipeline from configuration, leaving out every stage whose
// capability is missing.
func Build(ctx context.Context, cfg *common.Config, caps Capabilities, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	src := extract.Sources{PDFText: extract.NewNativePDFSource(logger)}

	var gen llm.Generator
	if caps.Model {
		g, err := NewGenerator(ctx, cfg.LLM, logger)
		if err != nil {
			logger.Warn("pipeline.model_unavailable", "error", err)
		} else {
			gen = g
		}
	}

	if caps.OCR {
		engine, err := NewOCREngine(cfg.OCR, logger)
		if err != nil {
			logger.Warn("pipeline.ocr_unavailable", "error", err)
		} else {
			src.ImageOCR = extract.WithTimeout(extract.NewImageOCRSource(engine, cfg.OCR.Preprocess, logger), cfg.OCR.Timeout)
			if caps.Rasterizer {
				raster := ocr.NewRasterizer(ocrConfig(cfg.OCR), nil, logger)
				src.PDFOCR = extract.WithTimeout(extract.NewPDFOCRSource(raster, engine, logger), cfg.OCR.Timeout)
			}
		}
	}

	opts := llm.GenerationOptions{
		Temperature:     cfg.LLM.Temperature,
		TopP:            cfg.LLM.TopP,
		TopK:            cfg.LLM.TopK,
		MaxOutputTokens: cfg.LLM.MaxOutputTokens,
	}

	var structured FieldExtractor
	if gen != nil {
		src.Vision = extract.WithTimeout(extract.NewVisionSource(gen, opts), cfg.LLM.Timeout)
		se, err := llm.NewStructuredExtractor(gen, logger,
			llm.WithGenerationOptions(opts), llm.WithCallTimeout(cfg.LLM.Timeout))
		if err != nil {
			return nil, err
		}
		structured = se
	}

	taxRate, err := decimal.NewFromString(cfg.Fallback.TaxRate)
	if err != nil {
		return nil, common.NewAppError(common.CodeConfig, "invalid fallback tax rate", err)
	}

	logger.Info("pipeline.ready", "capabilities", caps)
	return New(
		extract.NewTextExtractor(src, logger),
		structured,
		rules.NewExtractor(logger),
		normalize.New(logger),
		fallback.NewGenerator(fallback.Config{TaxRate: taxRate, Seed: cfg.Fallback.Seed}, logger),
		logger,
	), nil
}
