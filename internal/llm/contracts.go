package llm

import "context"

// GenerationOptions are the sampling settings sent with every model call.
type GenerationOptions struct {
	Temperature     float32
	TopP            float32
	TopK            int32
	MaxOutputTokens int32
	JSONResponse    bool // ask the provider for a JSON mime type when it supports one
}

// DefaultGenerationOptions favors deterministic, schema-shaped output.
func DefaultGenerationOptions() GenerationOptions {
	return GenerationOptions{
		Temperature:     0.1,
		TopP:            0.8,
		TopK:            40,
		MaxOutputTokens: 4000,
	}
}

// Image is an optional inline attachment for vision-capable models.
type Image struct {
	Data     []byte
	MIMEType string
}

type GenerateRequest struct {
	Prompt  string
	Image   *Image
	Options GenerationOptions
}

// Generator is the model capability the pipeline depends on:
// prompt (plus optional image) in, raw text out.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	Model() string
}
