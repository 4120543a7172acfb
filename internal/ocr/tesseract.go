package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/invoice-tracker/internal/common"
)

// TesseractEngine shells out to the tesseract CLI in TSV mode.
type TesseractEngine struct {
	bin    string
	lang   string
	tess   string
	psm    int
	oem    int
	runner Runner
	logger *slog.Logger
}

func NewTesseractEngine(cfg Config, runner Runner, logger *slog.Logger) *TesseractEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	return &TesseractEngine{
		bin:    cfg.Tesseract,
		lang:   cfg.TesseractLang,
		tess:   cfg.TessdataDir,
		psm:    cfg.PSM,
		oem:    cfg.OEM,
		runner: runner,
		logger: logger,
	}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

func (e *TesseractEngine) ReadText(ctx context.Context, img []byte) ([]Line, error) {
	f, err := os.CreateTemp("", "inv-ocr-*.img")
	if err != nil {
		return nil, err
	}
	path := f.Name()
	defer func() { _ = os.Remove(path) }()
	if _, err := f.Write(img); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return e.ReadFile(ctx, path)
}

// ReadFile runs tesseract on an image already on disk.
func (e *TesseractEngine) ReadFile(ctx context.Context, path string) ([]Line, error) {
	// tesseract <file> stdout -l <lang> [--psm N] [--oem N] [--tessdata-dir D] tsv
	args := []string{path, "stdout", "-l", e.lang}
	if e.psm > 0 {
		args = append(args, "--psm", strconv.Itoa(e.psm))
	}
	if e.oem > 0 {
		args = append(args, "--oem", strconv.Itoa(e.oem))
	}
	if e.tess != "" {
		args = append(args, "--tessdata-dir", e.tess)
	}
	args = append(args, "tsv")

	out, errb, err := e.runner.Run(ctx, e.bin, args...)
	if err != nil {
		return nil, common.Transient("tesseract", fmt.Errorf("%w: %s", err, truncate(string(errb), 512)))
	}
	lines := ParseTSV(string(out))
	e.logger.Debug("ocr.tesseract.ok", "lines", len(lines), "confidence", MeanConfidence(lines))
	return lines, nil
}

type lineKey struct{ page, block, par, line int }

// ParseTSV groups tesseract TSV word rows into lines. The confidence of a line
// is the mean word confidence scaled to 0..1.
func ParseTSV(tsv string) []Line {
	type acc struct {
		words []string
		conf  float64
		n     int
	}
	groups := map[lineKey]*acc{}
	var order []lineKey

	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || strings.TrimSpace(ln) == "" {
			continue
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		word := strings.TrimSpace(cols[11])
		if word == "" {
			continue
		}
		var k lineKey
		k.page, _ = strconv.Atoi(cols[1])
		k.block, _ = strconv.Atoi(cols[2])
		k.par, _ = strconv.Atoi(cols[3])
		k.line, _ = strconv.Atoi(cols[4])

		g, ok := groups[k]
		if !ok {
			g = &acc{}
			groups[k] = g
			order = append(order, k)
		}
		g.words = append(g.words, word)
		if c, err := strconv.ParseFloat(cols[10], 64); err == nil && c >= 0 {
			g.conf += c
			g.n++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.page != b.page {
			return a.page < b.page
		}
		if a.block != b.block {
			return a.block < b.block
		}
		if a.par != b.par {
			return a.par < b.par
		}
		return a.line < b.line
	})

	lines := make([]Line, 0, len(order))
	for _, k := range order {
		g := groups[k]
		var conf float32
		if g.n > 0 {
			conf = float32(g.conf / float64(g.n) / 100)
		}
		lines = append(lines, Line{Text: strings.Join(g.words, " "), Confidence: conf})
	}
	return lines
}
