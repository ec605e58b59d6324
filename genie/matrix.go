package genie

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	shellquote "github.com/kballard/go-shellquote"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// runSingleTaskMatrix trains and predicts once per single-task
// configuration entry, asserting the per-case result file after each.
func (ts *Tester) runSingleTaskMatrix(ctx context.Context) error {
	for _, entry := range ts.cfg.SingleTaskMatrix {
		idx := ts.cfg.NextCase()
		modelDir := ts.modelDir(idx)
		ts.lg.Info("running single-task case",
			zap.Int64("case", idx),
			zap.String("configuration", entry),
		)

		caseFlags, err := shellquote.Split(entry)
		if err != nil {
			return errors.Wrapf(err, "invalid configuration entry %q", entry)
		}

		if err = ts.train(ctx, ts.cfg.Task, modelDir, caseFlags); err != nil {
			return err
		}
		if err = ts.predict(ctx, ts.cfg.Task, modelDir, nil); err != nil {
			return err
		}

		resultFile := filepath.Join(modelDir, "eval_results", ts.cfg.EvalSplit, ts.cfg.Task+".tsv")
		if err = ts.checkArtifact(resultFile); err != nil {
			return err
		}
	}
	return nil
}

// runMultilingualMatrix is the same shape as the single-task matrix, but
// predicts twice per case: once for combined-language evaluation and once
// for per-language separate evaluation.
func (ts *Tester) runMultilingualMatrix(ctx context.Context) error {
	ml := ts.cfg.Multilingual
	for _, entry := range ml.Matrix {
		idx := ts.cfg.NextCase()
		modelDir := ts.modelDir(idx)
		ts.lg.Info("running multilingual case",
			zap.Int64("case", idx),
			zap.String("configuration", entry),
		)

		caseFlags, err := shellquote.Split(entry)
		if err != nil {
			return errors.Wrapf(err, "invalid configuration entry %q", entry)
		}

		if err = ts.train(ctx, ml.Task, modelDir, caseFlags); err != nil {
			return err
		}
		if err = ts.predict(ctx, ml.Task, modelDir, []string{
			"--pred_languages", ml.PredLanguages,
		}); err != nil {
			return err
		}
		if err = ts.predict(ctx, ml.Task, modelDir, []string{
			"--pred_languages", ml.PredLanguages,
			"--separate_eval",
		}); err != nil {
			return err
		}

		evalDir := filepath.Join(modelDir, "eval_results", ts.cfg.EvalSplit)
		if err = ts.checkArtifact(filepath.Join(evalDir, fmt.Sprintf("%s_%s.tsv", ml.Task, ml.PredLanguages))); err != nil {
			return err
		}
		for _, lang := range strings.Split(ml.PredLanguages, "+") {
			if err = ts.checkArtifact(filepath.Join(evalDir, fmt.Sprintf("%s_%s.tsv", ml.Task, lang))); err != nil {
				return err
			}
		}
	}
	return nil
}

func (ts *Tester) modelDir(idx int64) string {
	return filepath.Join(ts.cfg.WorkDir, fmt.Sprintf("model_%d", idx))
}

func (ts *Tester) train(ctx context.Context, task string, modelDir string, caseFlags []string) error {
	args := []string{
		"train",
		"--train_tasks", task,
		"--train_batch_tokens", fmt.Sprintf("%d", ts.cfg.TrainBatchTokens),
		"--val_batch_size", fmt.Sprintf("%d", ts.cfg.ValBatchSize),
		"--train_iterations", fmt.Sprintf("%d", ts.cfg.TrainIterations),
		"--preserve_case",
		"--save_every", fmt.Sprintf("%d", ts.cfg.SaveEvery),
		"--log_every", fmt.Sprintf("%d", ts.cfg.LogEvery),
		"--val_every", fmt.Sprintf("%d", ts.cfg.ValEvery),
		"--save", modelDir,
		"--data", ts.cfg.DatasetDir,
	}
	args = append(args, caseFlags...)
	args = append(args,
		"--exist_ok",
		"--skip_cache",
		"--embeddings", ts.cfg.EmbeddingsDir,
		"--no_commit",
	)
	return ts.runCommand(ctx, "train "+filepath.Base(modelDir), ts.genienlpPath, args...)
}

func (ts *Tester) predict(ctx context.Context, task string, modelDir string, extraFlags []string) error {
	args := []string{
		"predict",
		"--tasks", task,
		"--evaluate", ts.cfg.EvalSplit,
		"--path", modelDir,
		"--overwrite",
		"--eval_dir", filepath.Join(modelDir, "eval_results"),
		"--data", ts.cfg.DatasetDir,
		"--embeddings", ts.cfg.EmbeddingsDir,
	}
	args = append(args, extraFlags...)
	return ts.runCommand(ctx, "predict "+filepath.Base(modelDir), ts.genienlpPath, args...)
}
