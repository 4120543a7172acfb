// Package ingest turns files on disk into documents for the extraction orchestrator.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/invoice-tracker/constants"
	"github.com/joseph-ayodele/invoice-tracker/internal/async"
	"github.com/joseph-ayodele/invoice-tracker/internal/common"
	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
)

// MaxDocumentBytes caps a single document read from disk.
const MaxDocumentBytes = 32 << 20

// Submitter is the part of the orchestrator the ingestors depend on.
type Submitter interface {
	Submit(ctx context.Context, doc entity.RawDocument) (*async.Task, error)
}

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath string
	JobID      string
	HashHex    string
	FileExt    string
	Skipped    bool // same content already submitted by this ingestor
	Err        string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned   uint32
	Matched   uint32
	Submitted uint32
	Skipped   uint32
	Failed    uint32
}

// LoadDocument reads path into a RawDocument. The declared type comes from
// the file extension; unsupported extensions are rejected before reading.
func LoadDocument(path string) (entity.RawDocument, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return entity.RawDocument{}, fmt.Errorf("abs path: %w", err)
	}
	ext := constants.NormalizeExt(filepath.Ext(abs))
	kind, ok := constants.KindForExt(ext)
	if !ok {
		return entity.RawDocument{}, common.NewAppError(common.CodeInvalidInput,
			fmt.Sprintf("unsupported or missing extension: %q", ext), common.ErrInvalidInput)
	}

	f, err := os.Open(abs)
	if err != nil {
		return entity.RawDocument{}, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ReadDocument(filepath.Base(abs), ext, kind, f)
}

// ReadDocument builds a RawDocument from r, hashing the content as it is read.
func ReadDocument(name, ext string, kind constants.DocumentKind, r io.Reader) (entity.RawDocument, error) {
	h := sha256.New()
	content, err := io.ReadAll(io.TeeReader(io.LimitReader(r, MaxDocumentBytes+1), h))
	if err != nil {
		return entity.RawDocument{}, fmt.Errorf("read: %w", err)
	}
	if len(content) > MaxDocumentBytes {
		return entity.RawDocument{}, common.NewAppError(common.CodeInvalidInput,
			fmt.Sprintf("document %s exceeds %d bytes", name, MaxDocumentBytes), common.ErrInvalidInput)
	}
	return entity.RawDocument{
		Filename:    name,
		Ext:         constants.NormalizeExt(ext),
		Kind:        kind,
		ContentHash: hex.EncodeToString(h.Sum(nil)),
		Content:     content,
	}, nil
}

// AllowedExt checks if a file extension is an accepted document type.
func AllowedExt(ext string) bool {
	_, ok := constants.KindForExt(ext)
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
