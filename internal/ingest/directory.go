package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
)

// Ingestor submits documents found on disk, skipping content it has
// already submitted during its lifetime.
type Ingestor struct {
	submitter Submitter
	logger    *slog.Logger

	mu   sync.Mutex
	seen map[string]string // content hash -> job id
}

func NewIngestor(submitter Submitter, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{submitter: submitter, logger: logger, seen: map[string]string{}}
}

// IngestPath loads one file and submits it as a job.
func (i *Ingestor) IngestPath(ctx context.Context, path string) (IngestionResult, error) {
	out := IngestionResult{SourcePath: path}

	doc, err := LoadDocument(path)
	if err != nil {
		i.logger.Warn("ingest.load.failed", "path", path, "error", err)
		return out, err
	}
	out.HashHex, out.FileExt = doc.ContentHash, doc.Ext

	i.mu.Lock()
	if id, dup := i.seen[doc.ContentHash]; dup {
		i.mu.Unlock()
		out.JobID, out.Skipped = id, true
		i.logger.Debug("ingest.skip.duplicate", "path", path, "job_id", id)
		return out, nil
	}
	i.mu.Unlock()

	task, err := i.submitter.Submit(ctx, doc)
	if err != nil {
		i.logger.Error("ingest.submit.failed", "path", path, "error", err)
		return out, err
	}

	i.mu.Lock()
	i.seen[doc.ContentHash] = task.ID
	i.mu.Unlock()

	out.JobID = task.ID
	i.logger.Info("ingest.submitted", "path", path, "job_id", task.ID, "sha256", doc.ContentHash)
	return out, nil
}

// IngestDirectory walks root, skips hidden entries if requested,
// and calls IngestPath for each accepted file.
func (i *Ingestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root_path is required")
	}

	var results []IngestionResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, path)
		if err != nil {
			r.Err = err.Error()
			results = append(results, r)
			stats.Failed++
			return nil
		}
		results = append(results, r)
		if r.Skipped {
			stats.Skipped++
		} else {
			stats.Submitted++
		}
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}
