package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-tracker/internal/common"
	"github.com/joseph-ayodele/invoice-tracker/internal/llm"
)

// Generate implements llm.Generator over /chat/completions. An attached image is
// sent inline as a base64 data URL.
func (c *Client) Generate(ctx context.Context, req llm.GenerateRequest) (string, error) {
	if c.cfg.APIKey == "" {
		return "", common.Transient("openai: missing api key", nil)
	}
	start := time.Now()

	var content any = req.Prompt
	if req.Image != nil && len(req.Image.Data) > 0 {
		content = []map[string]any{
			{"type": "text", "text": req.Prompt},
			{"type": "image_url", "image_url": map[string]any{"url": dataURL(req.Image)}},
		}
	}

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": req.Options.Temperature,
		"top_p":       req.Options.TopP,
		"messages": []map[string]any{
			{"role": "user", "content": content},
		},
	}
	if req.Options.MaxOutputTokens > 0 {
		body["max_tokens"] = req.Options.MaxOutputTokens
	}
	if req.Options.JSONResponse {
		body["response_format"] = map[string]any{"type": "json_object"}
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := llm.SendJSON(ctx, c.http, endpoint, body, map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
	}, c.log)
	if err != nil {
		c.log.Error("llm.openai.http_error", "model", c.cfg.Model, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", classify(err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return "", errors.New("no choices in openai response")
	}

	out := strings.TrimSpace(cc.Choices[0].Message.Content)
	c.log.Info("llm.openai.ok",
		"model", c.cfg.Model,
		"has_image", req.Image != nil,
		"chars", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// classify marks errors worth falling back on as transient.
func classify(err error) error {
	var se *llm.HTTPStatusError
	if errors.As(err, &se) {
		if se.StatusCode == http.StatusTooManyRequests || se.StatusCode == http.StatusUnauthorized || se.StatusCode >= 500 {
			return common.Transient("openai", err)
		}
		return fmt.Errorf("openai: %w", err)
	}
	return common.Transient("openai", err)
}

func dataURL(img *llm.Image) string {
	mt := img.MIMEType
	if mt == "" {
		mt = "application/octet-stream"
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
