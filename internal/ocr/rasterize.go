package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/joseph-ayodele/invoice-tracker/constants"
	"github.com/joseph-ayodele/invoice-tracker/internal/common"
)

// Rasterizer renders the first pages of a PDF to PNG with pdftoppm.
type Rasterizer struct {
	bin      string
	dpi      int
	maxPages int
	runner   Runner
	logger   *slog.Logger
}

func NewRasterizer(cfg Config, runner Runner, logger *slog.Logger) *Rasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MaxPages <= 0 || cfg.MaxPages > constants.MaxRasterPages {
		cfg.MaxPages = constants.MaxRasterPages
	}
	return &Rasterizer{bin: cfg.Pdftoppm, dpi: cfg.DPI, maxPages: cfg.MaxPages, runner: runner, logger: logger}
}

// Pages returns one PNG per rendered page, in page order.
func (r *Rasterizer) Pages(ctx context.Context, pdf []byte) ([][]byte, error) {
	tmpDir, err := os.MkdirTemp("", "inv-pp-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			r.logger.Warn("failed to remove temp dir", "dir", tmpDir, "error", err)
		}
	}()

	in := filepath.Join(tmpDir, "in.pdf")
	if err := os.WriteFile(in, pdf, 0o600); err != nil {
		return nil, err
	}
	prefix := filepath.Join(tmpDir, "page")

	// pdftoppm -r 300 -png -f 1 -l N <in.pdf> <tmp/page>
	_, errb, err := r.runner.Run(ctx, r.bin,
		"-r", strconv.Itoa(r.dpi), "-png", "-f", "1", "-l", strconv.Itoa(r.maxPages), in, prefix)
	if err != nil {
		return nil, common.Transient("pdftoppm", fmt.Errorf("%w: %s", err, truncate(string(errb), 512)))
	}

	// prefix-1.png, prefix-2.png, ... (zero padded when the document is long)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) > r.maxPages {
		matches = matches[:r.maxPages]
	}
	if len(matches) == 0 {
		return nil, errors.New("pdftoppm produced no images")
	}

	pages := make([][]byte, 0, len(matches))
	for _, m := range matches {
		b, err := os.ReadFile(m)
		if err != nil {
			return nil, err
		}
		pages = append(pages, b)
	}
	r.logger.Debug("ocr.rasterize.ok", "pages", len(pages), "dpi", r.dpi)
	return pages, nil
}
