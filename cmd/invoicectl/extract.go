package main

import (
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-tracker/internal/common"
	"github.com/joseph-ayodele/invoice-tracker/internal/ingest"
	"github.com/joseph-ayodele/invoice-tracker/internal/pipeline"
)

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Run the extraction pipeline once and print the record",
	Long:  `Extracts text and invoice fields from a PDF or image without storing anything. Prints the cleaned record as JSON.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runExtract,
}

type extractResult struct {
	Provenance  string `json:"provenance"`
	Method      string `json:"method,omitempty"`
	TextPreview string `json:"text_preview,omitempty"`
	Error       string `json:"error,omitempty"`
	Fallback    bool   `json:"fallback"`
	Record      any    `json:"record"`
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := config.Validate(); err != nil {
		return err
	}
	doc, err := ingest.LoadDocument(args[0])
	if err != nil {
		return err
	}

	caps := pipeline.DetectCapabilities(config)
	logger.Info("capabilities detected", "capabilities", caps)
	p, err := pipeline.Build(ctx, config, caps, logger)
	if err != nil {
		return err
	}

	out := p.Run(common.WithRequestID(ctx, doc.ContentHash), doc)
	res := extractResult{
		Provenance:  string(out.Provenance),
		Method:      string(out.Method),
		TextPreview: out.TextPreview,
	}
	if out.Succeeded() {
		res.Record = out.Record
	} else if out.Err != nil {
		res.Error = out.Err.Error()
		res.Fallback = out.Fallback != nil
		res.Record = out.Fallback
	}
	return printJSON(res)
}
