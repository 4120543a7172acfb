package ocr

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"

	"github.com/joseph-ayodele/invoice-tracker/internal/common"
)

// AzureEngine calls the Computer Vision printed-text OCR endpoint.
type AzureEngine struct {
	client computervision.BaseClient
	logger *slog.Logger
}

func NewAzureEngine(endpoint, key string, logger *slog.Logger) (*AzureEngine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if endpoint == "" || key == "" {
		return nil, common.Transient("azure ocr: endpoint and key are required", nil)
	}
	client := computervision.New(endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(key)
	return &AzureEngine{client: client, logger: logger}, nil
}

func (e *AzureEngine) Name() string { return "azure" }

func (e *AzureEngine) ReadText(ctx context.Context, img []byte) ([]Line, error) {
	result, err := e.client.RecognizePrintedTextInStream(ctx, true,
		io.NopCloser(bytes.NewReader(img)), computervision.OcrLanguages(computervision.En))
	if err != nil {
		return nil, common.Transient("azure ocr", err)
	}
	if result.Regions == nil {
		return nil, common.Transient("azure ocr", errors.New("empty result"))
	}

	var lines []Line
	for _, region := range *result.Regions {
		if region.Lines == nil {
			continue
		}
		for _, line := range *region.Lines {
			if line.Words == nil {
				continue
			}
			words := make([]string, 0, len(*line.Words))
			for _, w := range *line.Words {
				if w.Text != nil {
					words = append(words, *w.Text)
				}
			}
			if len(words) > 0 {
				lines = append(lines, Line{Text: strings.Join(words, " ")})
			}
		}
	}
	e.logger.Debug("ocr.azure.ok", "lines", len(lines))
	return lines, nil
}
