package genie

import (
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/lgtm-migrator/genienlp-tester/pkg/fileutil"
)

// ErrMissingArtifact indicates an invocation reported success but an
// expected output file is absent. Distinct from a subprocess failure.
var ErrMissingArtifact = errors.New("expected artifact not found")

func (ts *Tester) checkArtifact(p string) error {
	if !fileutil.Exist(p) {
		ts.lg.Error("expected artifact not found", zap.String("path", p))
		return errors.Wrapf(ErrMissingArtifact, "%q", p)
	}
	fi, err := os.Stat(p)
	if err != nil {
		return errors.Wrapf(err, "stat %q", p)
	}
	ts.lg.Info("found artifact", zap.String("path", p), zap.String("size", humanize.Bytes(uint64(fi.Size()))))
	return nil
}

func (ts *Tester) checkArtifactNonEmpty(p string) error {
	if err := ts.checkArtifact(p); err != nil {
		return err
	}
	if !fileutil.ExistNonEmpty(p) {
		ts.lg.Error("expected artifact is empty", zap.String("path", p))
		return errors.Wrapf(ErrMissingArtifact, "%q is empty", p)
	}
	return nil
}
