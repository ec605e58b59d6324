package genie

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/lgtm-migrator/genienlp-tester/pkg/fileutil"
	"github.com/lgtm-migrator/genienlp-tester/pkg/httputil"
)

// embeddingFiles returns the three files that make up one named
// embedding set: vectors, index-to-token, and table, each a binary
// numpy array.
func embeddingFiles(set string) []string {
	return []string{
		set + ".txt.vectors.npy",
		set + ".txt.itos.npy",
		set + ".txt.table.npy",
	}
}

// prepareEmbeddings resolves the embedding cache directory. An existing
// fully populated cache is reused as-is; otherwise missing files are
// fetched from the configured base URL. The cache is never mutated once
// the matrix starts.
func (ts *Tester) prepareEmbeddings(ctx context.Context) error {
	dir := ts.cfg.EmbeddingsDir

	var missing []string
	for _, set := range ts.cfg.EmbeddingSets {
		for _, f := range embeddingFiles(set) {
			if !fileutil.Exist(filepath.Join(dir, f)) {
				missing = append(missing, f)
			}
		}
	}
	if len(missing) == 0 {
		ts.lg.Info("reusing embedding cache", zap.String("embeddings-dir", dir))
		ts.embeddingsPopulated = true
		return nil
	}

	if !fileutil.Exist(dir) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "create embeddings dir %q", dir)
		}
		ts.embeddingsCreated = true
	}

	base := strings.TrimSuffix(ts.cfg.EmbeddingsDownloadURL, "/")
	for _, f := range missing {
		if err := ctx.Err(); err != nil {
			return err
		}
		ep := base + "/" + f
		fpath := filepath.Join(dir, f)
		if err := httputil.DownloadToFile(ts.lg, ts.logWriter, ep, fpath); err != nil {
			return errors.Wrapf(err, "download embedding file %q", f)
		}
	}

	ts.embeddingsPopulated = true
	ts.lg.Info("populated embedding cache",
		zap.String("embeddings-dir", dir),
		zap.Int("downloaded", len(missing)),
	)
	return nil
}
