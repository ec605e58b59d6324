// Package genie implements a functional-test harness for the genienlp CLI.
//
// The harness drives the genienlp executable through a matrix of
// hyperparameter configurations, asserts that each invocation leaves the
// expected artifacts on disk, and removes all ephemeral state on every
// exit path. The executable is treated as a black box; the harness only
// observes exit codes and the filesystem.
package genie

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"k8s.io/utils/exec"

	"github.com/lgtm-migrator/genienlp-tester/genieconfig"
	"github.com/lgtm-migrator/genienlp-tester/pkg/fileutil"
	"github.com/lgtm-migrator/genienlp-tester/pkg/logutil"
	"github.com/lgtm-migrator/genienlp-tester/version"
)

// Tester drives the genienlp CLI through the configured test matrix.
type Tester struct {
	color func(string) string

	lg        *zap.Logger
	logWriter io.Writer
	logFile   *os.File

	cfg *genieconfig.Config

	exec exec.Interface

	genienlpPath string
	fineTunePath string

	// shared-memory temp files leaked by the external trainer,
	// swept on teardown
	shmGlob string

	embeddingsCreated   bool
	embeddingsPopulated bool
}

// New creates a new genienlp matrix tester.
func New(cfg *genieconfig.Config) (*Tester, error) {
	if err := cfg.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	lg, logWriter, logFile, err := logutil.NewWithStderrWriter(cfg.LogLevel, cfg.LogOutputs)
	if err != nil {
		return nil, err
	}
	lg.Info("set up log writer and file", zap.Strings("outputs", cfg.LogOutputs), zap.Bool("is-color", cfg.LogColor))
	cfg.Sync()

	fmt.Fprint(logWriter, cfg.Colorize("\n\n[yellow]*********************************\n"))
	fmt.Fprintf(logWriter, cfg.Colorize("[light_green]New %q [default](%q)\n"), cfg.ConfigPath, version.Version())

	ts := &Tester{
		color:     cfg.Colorize,
		lg:        lg,
		logWriter: logWriter,
		logFile:   logFile,
		cfg:       cfg,
		exec:      exec.New(),
		shmGlob:   "/dev/shm/torch_shm_*",
	}

	if !fileutil.Exist(cfg.DatasetDir) {
		return nil, fmt.Errorf("dataset directory %q does not exist", cfg.DatasetDir)
	}

	ts.genienlpPath, err = ts.exec.LookPath(cfg.GenienlpPath)
	if err != nil {
		return nil, fmt.Errorf("%q does not exist (%v)", cfg.GenienlpPath, err)
	}
	if cfg.IsEnabledFineTune() {
		ts.fineTunePath, err = ts.exec.LookPath(cfg.FineTune.Path)
		if err != nil {
			return nil, fmt.Errorf("%q does not exist (%v)", cfg.FineTune.Path, err)
		}
	}

	return ts, nil
}

// LogWriter returns the log writer, multi-writer to both log file and stderr.
func (ts *Tester) LogWriter() io.Writer {
	return ts.logWriter
}

// Up runs the whole test matrix, strictly sequentially.
// Any failure aborts the run; Down must still be called to remove
// ephemeral state.
func (ts *Tester) Up(ctx context.Context) (err error) {
	defer ts.cfg.Sync()

	ts.cfg.RecordStatus("preparing embeddings")
	if err = ts.prepareEmbeddings(ctx); err != nil {
		ts.cfg.RecordStatus(fmt.Sprintf("embeddings failed (%v)", err))
		return err
	}

	workDir := fileutil.MkTmpDir(ts.cfg.WorkDirParent, "genienlp-tester")
	ts.cfg.SetWorkDir(workDir)
	ts.lg.Info("created work directory", zap.String("work-dir", workDir))

	ts.cfg.RecordStatus("running single-task matrix")
	if err = ts.runSingleTaskMatrix(ctx); err != nil {
		ts.cfg.RecordStatus(fmt.Sprintf("single-task matrix failed (%v)", err))
		return err
	}

	if ts.cfg.IsEnabledMultilingual() {
		ts.cfg.RecordStatus("running multilingual matrix")
		if err = ts.runMultilingualMatrix(ctx); err != nil {
			ts.cfg.RecordStatus(fmt.Sprintf("multilingual matrix failed (%v)", err))
			return err
		}
	}

	if ts.cfg.IsEnabledParaphrase() {
		ts.cfg.RecordStatus("running paraphrase sub-flow")
		if err = ts.runParaphrase(ctx); err != nil {
			ts.cfg.RecordStatus(fmt.Sprintf("paraphrase sub-flow failed (%v)", err))
			return err
		}
	}

	if ts.cfg.IsEnabledFineTune() {
		ts.cfg.RecordStatus("running fine-tune sub-flow")
		if err = ts.runFineTune(ctx); err != nil {
			ts.cfg.RecordStatus(fmt.Sprintf("fine-tune sub-flow failed (%v)", err))
			return err
		}
	}

	ts.cfg.RecordStatus("matrix complete")
	return nil
}

// Down removes the ephemeral work directory, any partially populated
// embedding cache this run created, and leaked shared-memory temp files.
// Safe to call more than once, and on failed or interrupted runs.
func (ts *Tester) Down() error {
	var errs []string

	if ts.cfg.WorkDir != "" {
		ts.lg.Info("removing work directory", zap.String("work-dir", ts.cfg.WorkDir))
		if err := os.RemoveAll(ts.cfg.WorkDir); err != nil {
			errs = append(errs, fmt.Sprintf("remove work dir: %v", err))
		}
	}

	if ts.embeddingsCreated && !ts.embeddingsPopulated {
		ts.lg.Warn("removing partially populated embedding cache", zap.String("embeddings-dir", ts.cfg.EmbeddingsDir))
		if err := os.RemoveAll(ts.cfg.EmbeddingsDir); err != nil {
			errs = append(errs, fmt.Sprintf("remove embeddings dir: %v", err))
		}
	}

	matches, err := filepath.Glob(ts.shmGlob)
	if err == nil {
		for _, m := range matches {
			ts.lg.Warn("removing leaked shared-memory file", zap.String("path", m))
			if err = os.RemoveAll(m); err != nil {
				errs = append(errs, fmt.Sprintf("remove %q: %v", m, err))
			}
		}
	}

	if len(errs) > 0 {
		return errors.Errorf("teardown failed (%q)", errs)
	}
	ts.lg.Info("tore down ephemeral state")
	return nil
}
