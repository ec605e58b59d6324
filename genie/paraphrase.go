package genie

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/lgtm-migrator/genienlp-tester/pkg/fileutil"
)

// runParaphrase copies the paraphrasing dataset into the work directory,
// trains a small paraphrase model, and generates paraphrases with it.
func (ts *Tester) runParaphrase(ctx context.Context) error {
	pp := ts.cfg.Paraphrase

	src := filepath.Join(ts.cfg.DatasetDir, pp.DatasetSubdir)
	dst := filepath.Join(ts.cfg.WorkDir, pp.DatasetSubdir)
	ts.lg.Info("copying paraphrasing dataset", zap.String("src", src), zap.String("dst", dst))
	if err := fileutil.CopyDir(src, dst); err != nil {
		return errors.Wrapf(err, "copy paraphrasing dataset %q", src)
	}

	modelDir := filepath.Join(ts.cfg.WorkDir, "paraphraser")
	trainArgs := []string{
		"train-paraphrase",
		"--train_data_file", filepath.Join(dst, "train.tsv"),
		"--eval_data_file", filepath.Join(dst, "dev.tsv"),
		"--output_dir", modelDir,
		"--model_type", pp.ModelType,
		"--model_name_or_path", pp.ModelNameOrPath,
		"--do_train",
		"--do_eval",
		"--evaluate_during_training",
		"--overwrite_output_dir",
		"--logging_steps", fmt.Sprintf("%d", pp.LoggingSteps),
		"--save_steps", fmt.Sprintf("%d", pp.SaveSteps),
		"--max_steps", fmt.Sprintf("%d", pp.MaxSteps),
		"--save_total_limit", fmt.Sprintf("%d", pp.SaveTotalLimit),
		"--gradient_accumulation_steps", fmt.Sprintf("%d", pp.GradientAccumulationSteps),
		"--per_gpu_eval_batch_size", fmt.Sprintf("%d", pp.PerGPUEvalBatchSize),
		"--per_gpu_train_batch_size", fmt.Sprintf("%d", pp.PerGPUTrainBatchSize),
		"--num_train_epochs", fmt.Sprintf("%d", pp.NumTrainEpochs),
	}
	if err := ts.runCommand(ctx, "train-paraphrase", ts.genienlpPath, trainArgs...); err != nil {
		return err
	}

	outputFile := filepath.Join(ts.cfg.WorkDir, pp.OutputFile)
	genArgs := []string{
		"run-paraphrase",
		"--model_name_or_path", modelDir,
		"--length", fmt.Sprintf("%d", pp.Length),
		"--temperature", fmt.Sprintf("%g", pp.Temperature),
		"--repetition_penalty", fmt.Sprintf("%g", pp.RepetitionPenalty),
		"--num_samples", fmt.Sprintf("%d", pp.NumSamples),
		"--input_file", filepath.Join(ts.cfg.DatasetDir, ts.cfg.Task, "train.tsv"),
		"--input_column", fmt.Sprintf("%d", pp.InputColumn),
		"--output_file", outputFile,
	}
	if err := ts.runCommand(ctx, "run-paraphrase", ts.genienlpPath, genArgs...); err != nil {
		return err
	}

	return ts.checkArtifactNonEmpty(outputFile)
}

// runFineTune invokes the separate fine-tuning entry point for a
// seq2seq architecture against the copied paraphrasing dataset, then
// asserts the expected checkpoint. The checkpoint naming template is
// kept exactly as the trainer writes it.
func (ts *Tester) runFineTune(ctx context.Context) error {
	ft := ts.cfg.FineTune
	dataDir := filepath.Join(ts.cfg.WorkDir, ts.cfg.Paraphrase.DatasetSubdir)
	outputDir := filepath.Join(ts.cfg.WorkDir, ft.OutputDirName)

	args := []string{
		"--train_data_file", filepath.Join(dataDir, "train.tsv"),
		"--eval_data_file", filepath.Join(dataDir, "dev.tsv"),
		"--output_dir", outputDir,
		"--model_type", ft.ModelType,
		"--num_train_epochs", fmt.Sprintf("%d", ft.NumTrainEpochs),
		"--do_train",
		"--overwrite_output_dir",
	}
	if err := ts.runCommand(ctx, "fine-tune", ts.fineTunePath, args...); err != nil {
		return err
	}

	checkpoint := filepath.Join(outputDir, fmt.Sprintf(ft.CheckpointTemplate, ft.NumTrainEpochs-1))
	return ts.checkArtifact(checkpoint)
}
