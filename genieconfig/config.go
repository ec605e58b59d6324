// Package genieconfig defines genienlp-tester configuration.
package genieconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mitchellh/colorstring"
	"sigs.k8s.io/yaml" // must use "sigs.k8s.io/yaml"

	"github.com/lgtm-migrator/genienlp-tester/pkg/randutil"
)

// GENIENLP_TESTER_PREFIX is the environment variable prefix used for "genieconfig".
const GENIENLP_TESTER_PREFIX = "GENIENLP_TESTER_"

// Config defines the genienlp test matrix configuration.
type Config struct {
	mu *sync.RWMutex

	// Name is the test run name.
	// If empty, tester auto-populates it.
	Name string `json:"name"`

	// ConfigPath is the configuration file path.
	// Tester is expected to update this file with latest status.
	ConfigPath string `json:"config-path,omitempty"`

	// LogColor is true to output colorized logs.
	LogColor bool `json:"log-color"`
	// LogLevel configures log level. Only supports debug, info, warn, error, panic, or fatal. Default 'info'.
	LogLevel string `json:"log-level"`
	// LogOutputs is a list of log outputs. Valid values are 'default', 'stderr', 'stdout', or file names.
	// Logs are appended to the existing file, if any.
	// Multiple values are accepted. If empty, it sets to '<Name>.log', which is the log file.
	LogOutputs []string `json:"log-outputs,omitempty"`

	// GenienlpPath is the path to the genienlp executable under test.
	GenienlpPath string `json:"genienlp-path"`
	// DatasetDir is the dataset root directory with one subdirectory per task.
	DatasetDir string `json:"dataset-dir"`
	// Task is the single-task dataset/task name.
	Task string `json:"task"`

	// WorkDirParent is the parent directory for the ephemeral work directory.
	// If empty, the OS temp directory is used.
	WorkDirParent string `json:"work-dir-parent,omitempty"`
	// WorkDir is the ephemeral per-run scratch directory.
	// Tester creates and deletes it; never set this manually.
	WorkDir string `json:"work-dir,omitempty" read-only:"true"`

	// EmbeddingsDir is the shared embedding cache directory.
	// An existing, fully populated directory is reused read-only.
	EmbeddingsDir string `json:"embeddings-dir"`
	// EmbeddingsDownloadURL is the base URL embedding files are fetched from
	// when the cache is not populated.
	EmbeddingsDownloadURL string `json:"embeddings-download-url"`
	// EmbeddingSets lists the named embedding sets the matrix needs.
	// Each set consists of a vectors, an itos, and a table file.
	EmbeddingSets []string `json:"embedding-sets,omitempty"`

	// TrainIterations is the fixed small iteration count for matrix training runs.
	TrainIterations int64 `json:"train-iterations"`
	// SaveEvery is the checkpoint interval in iterations.
	SaveEvery int64 `json:"save-every"`
	// LogEvery is the log interval in iterations.
	LogEvery int64 `json:"log-every"`
	// ValEvery is the validation interval in iterations.
	ValEvery int64 `json:"val-every"`
	// TrainBatchTokens is the token budget per training batch.
	TrainBatchTokens int64 `json:"train-batch-tokens"`
	// ValBatchSize is the validation batch size.
	ValBatchSize int64 `json:"val-batch-size"`
	// EvalSplit is the dataset split prediction evaluates on.
	EvalSplit string `json:"eval-split"`

	// SingleTaskMatrix lists one flag string per single-task configuration case.
	// Each entry is passed through verbatim to "genienlp train".
	SingleTaskMatrix []string `json:"single-task-matrix,omitempty"`

	// Multilingual configures the multilingual matrix cases.
	Multilingual *Multilingual `json:"multilingual,omitempty"`
	// Paraphrase configures the paraphrase train/generate sub-flow.
	Paraphrase *Paraphrase `json:"paraphrase,omitempty"`
	// FineTune configures the seq2seq fine-tuning sub-flow.
	FineTune *FineTune `json:"fine-tune,omitempty"`

	// CaseCounter names per-case model directories uniquely across both matrices.
	CaseCounter int64 `json:"case-counter" read-only:"true"`

	// StatusCurrent represents the current status of the test run.
	StatusCurrent string `json:"status-current" read-only:"true"`
	// Statuses is the list of test run statuses with timestamps.
	Statuses []Status `json:"statuses,omitempty" read-only:"true"`
}

// Status is a timestamped test run status.
type Status struct {
	Time   time.Time `json:"time"`
	Status string    `json:"status"`
}

// GENIENLP_TESTER_MULTILINGUAL_PREFIX is the environment variable prefix used for "Multilingual".
const GENIENLP_TESTER_MULTILINGUAL_PREFIX = GENIENLP_TESTER_PREFIX + "MULTILINGUAL_"

// Multilingual defines the multilingual matrix cases.
type Multilingual struct {
	// Enable is true to run the multilingual matrix.
	Enable bool `json:"enable"`
	// Task is the multilingual dataset/task name.
	Task string `json:"task"`
	// Matrix lists one flag string per multilingual configuration case.
	Matrix []string `json:"matrix,omitempty"`
	// PredLanguages is the '+'-joined language list prediction runs on.
	PredLanguages string `json:"pred-languages"`
}

// GENIENLP_TESTER_PARAPHRASE_PREFIX is the environment variable prefix used for "Paraphrase".
const GENIENLP_TESTER_PARAPHRASE_PREFIX = GENIENLP_TESTER_PREFIX + "PARAPHRASE_"

// Paraphrase defines the paraphrase model training and generation sub-flow.
type Paraphrase struct {
	// Enable is true to run the paraphrase sub-flow.
	Enable bool `json:"enable"`
	// DatasetSubdir is the paraphrasing dataset subdirectory under the dataset root.
	// It must contain "train.tsv" and "dev.tsv".
	DatasetSubdir string `json:"dataset-subdir"`

	// ModelType is the paraphraser model type.
	ModelType string `json:"model-type"`
	// ModelNameOrPath is the pre-trained model the paraphraser trains from.
	ModelNameOrPath string `json:"model-name-or-path"`
	// MaxSteps is the fixed small number of training steps.
	MaxSteps                  int64 `json:"max-steps"`
	LoggingSteps              int64 `json:"logging-steps"`
	SaveSteps                 int64 `json:"save-steps"`
	SaveTotalLimit            int64 `json:"save-total-limit"`
	GradientAccumulationSteps int64 `json:"gradient-accumulation-steps"`
	PerGPUTrainBatchSize      int64 `json:"per-gpu-train-batch-size"`
	PerGPUEvalBatchSize       int64 `json:"per-gpu-eval-batch-size"`
	NumTrainEpochs            int64 `json:"num-train-epochs"`

	// Length is the generated sequence length.
	Length int64 `json:"length"`
	// Temperature is the generation sampling temperature.
	Temperature float64 `json:"temperature"`
	// RepetitionPenalty is the generation repetition penalty.
	RepetitionPenalty float64 `json:"repetition-penalty"`
	// NumSamples is the number of paraphrases generated per input.
	NumSamples int64 `json:"num-samples"`
	// InputColumn is the TSV column paraphrase inputs are read from.
	InputColumn int64 `json:"input-column"`
	// OutputFile is the generated paraphrase file name under the work directory.
	OutputFile string `json:"output-file"`
}

// GENIENLP_TESTER_FINE_TUNE_PREFIX is the environment variable prefix used for "FineTune".
const GENIENLP_TESTER_FINE_TUNE_PREFIX = GENIENLP_TESTER_PREFIX + "FINE_TUNE_"

// FineTune defines the seq2seq fine-tuning sub-flow.
type FineTune struct {
	// Enable is true to run the fine-tuning sub-flow.
	Enable bool `json:"enable"`
	// Path is the fine-tuning entry point executable, separate from the
	// main genienlp executable.
	Path string `json:"path"`
	// ModelType is the summarization/translation-style architecture to fine-tune.
	ModelType string `json:"model-type"`
	// NumTrainEpochs is the number of fine-tuning epochs.
	NumTrainEpochs int64 `json:"num-train-epochs"`
	// OutputDirName is the fine-tuned model directory name under the work directory.
	OutputDirName string `json:"output-dir-name"`
	// CheckpointTemplate is the checkpoint file naming template, formatted
	// with the final epoch index. The literal pattern from the trainer is
	// kept as-is; only existence is asserted.
	CheckpointTemplate string `json:"checkpoint-template"`
}

// NewDefault returns a copy of the default configuration.
func NewDefault() *Config {
	name := fmt.Sprintf("genienlp-tester-%s-%s", getTS(10), randutil.String(7))
	return &Config{
		mu: new(sync.RWMutex),

		Name: name,

		LogColor:   true,
		LogLevel:   "info",
		LogOutputs: []string{name + ".log"},

		GenienlpPath: "genienlp",
		DatasetDir:   "dataset",
		Task:         "almond",

		EmbeddingsDir:         defaultEmbeddingsDir(),
		EmbeddingsDownloadURL: "https://oval.cs.stanford.edu/data/glove",
		EmbeddingSets:         []string{"small_glove", "char"},

		TrainIterations:  6,
		SaveEvery:        2,
		LogEvery:         2,
		ValEvery:         2,
		TrainBatchTokens: 100,
		ValBatchSize:     100,
		EvalSplit:        "test",

		SingleTaskMatrix: []string{
			"--encoder_embeddings=small_glove+char --decoder_embeddings=small_glove+char",
			"--encoder_embeddings=bert-base-uncased --decoder_embeddings= --trainable_decoder_embeddings=50",
			"--encoder_embeddings=bert-base-uncased --decoder_embeddings= --trainable_decoder_embeddings=50 --seq2seq_encoder=Identity --rnn_zero_state=average",
			"--encoder_embeddings=bert-base-uncased --decoder_embeddings= --trainable_decoder_embeddings=50 --seq2seq_encoder=Identity --rnn_zero_state=cls",
		},

		Multilingual: &Multilingual{
			Enable: true,
			Task:   "almond_multilingual",
			Matrix: []string{
				"--encoder_embeddings=bert-base-multilingual-uncased --decoder_embeddings= --trainable_decoder_embeddings=50 --train_languages fa --eval_languages fa",
				"--encoder_embeddings=bert-base-multilingual-uncased --decoder_embeddings= --trainable_decoder_embeddings=50 --train_languages fa+en --eval_languages fa+en",
			},
			PredLanguages: "fa+en",
		},

		Paraphrase: &Paraphrase{
			Enable:        true,
			DatasetSubdir: "paraphrasing",

			ModelType:                 "gpt2",
			ModelNameOrPath:           "gpt2",
			MaxSteps:                  4,
			LoggingSteps:              1000,
			SaveSteps:                 1000,
			SaveTotalLimit:            1,
			GradientAccumulationSteps: 1,
			PerGPUTrainBatchSize:      1,
			PerGPUEvalBatchSize:       1,
			NumTrainEpochs:            1,

			Length:            15,
			Temperature:       0.4,
			RepetitionPenalty: 1.0,
			NumSamples:        4,
			InputColumn:       1,
			OutputFile:        "generated.tsv",
		},

		FineTune: &FineTune{
			Enable:             true,
			Path:               "genienlp-finetune",
			ModelType:          "bart",
			NumTrainEpochs:     1,
			OutputDirName:      "finetuned",
			CheckpointTemplate: "checkpointepoch=%02d.ckpt",
		},
	}
}

func defaultEmbeddingsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "embeddings")
	}
	return filepath.Join(home, ".embeddings")
}

func getTS(n int) string {
	now := time.Now()
	ts := fmt.Sprintf(
		"%04d%02d%02d%02d%02d",
		now.Year(),
		int(now.Month()),
		now.Day(),
		now.Hour(),
		now.Second(),
	)
	if n > 0 && n < len(ts) {
		ts = ts[:n]
	}
	return ts
}

// Load loads configuration from YAML.
//
// Callers are expected to update some fields with environment variables
// via UpdateFromEnvs, and ValidateAndSetDefaults before use.
func Load(p string) (cfg *Config, err error) {
	var d []byte
	d, err = os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	cfg = new(Config)
	if err = yaml.Unmarshal(d, cfg); err != nil {
		return nil, err
	}
	cfg.mu = new(sync.RWMutex)

	if cfg.ConfigPath != p {
		cfg.ConfigPath = p
	}
	var ap string
	ap, err = filepath.Abs(p)
	if err != nil {
		return nil, fmt.Errorf("failed to 'filepath.Abs(%s)' %v", p, err)
	}
	cfg.ConfigPath = ap

	return cfg, nil
}

// Sync persists current configuration and states to disk.
func (cfg *Config) Sync() (err error) {
	cfg.mu.Lock()
	defer cfg.mu.Unlock()
	return cfg.unsafeSync()
}

func (cfg *Config) unsafeSync() (err error) {
	if cfg.ConfigPath == "" {
		return fmt.Errorf("empty config path")
	}
	if !filepath.IsAbs(cfg.ConfigPath) {
		var p string
		p, err = filepath.Abs(cfg.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to 'filepath.Abs(%s)' %v", cfg.ConfigPath, err)
		}
		cfg.ConfigPath = p
	}

	var d []byte
	d, err = yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to 'yaml.Marshal' %v", err)
	}
	if err = os.WriteFile(cfg.ConfigPath, d, 0600); err != nil {
		return fmt.Errorf("failed to write file %q (%v)", cfg.ConfigPath, err)
	}
	return nil
}

// RecordStatus records the current test run status and syncs to disk.
func (cfg *Config) RecordStatus(status string) {
	cfg.mu.Lock()
	defer cfg.mu.Unlock()

	cfg.StatusCurrent = status
	cfg.Statuses = append(cfg.Statuses, Status{Time: time.Now(), Status: status})
	cfg.unsafeSync()
}

// SetWorkDir records the created ephemeral work directory and syncs to disk.
func (cfg *Config) SetWorkDir(dir string) {
	cfg.mu.Lock()
	defer cfg.mu.Unlock()

	cfg.WorkDir = dir
	cfg.unsafeSync()
}

// NextCase returns the current case index and increments the counter.
// The index names the per-case model directory, unique across both matrices.
func (cfg *Config) NextCase() int64 {
	cfg.mu.Lock()
	defer cfg.mu.Unlock()

	idx := cfg.CaseCounter
	cfg.CaseCounter++
	cfg.unsafeSync()
	return idx
}

// Colorize prints colorized input if LogColor is set.
func (cfg *Config) Colorize(input string) string {
	colorize := colorstring.Colorize{
		Colors:  colorstring.DefaultColors,
		Disable: !cfg.LogColor,
		Reset:   true,
	}
	return colorize.Color(input)
}

// IsEnabledMultilingual returns true if the multilingual matrix is enabled.
func (cfg *Config) IsEnabledMultilingual() bool {
	return cfg.Multilingual != nil && cfg.Multilingual.Enable
}

// IsEnabledParaphrase returns true if the paraphrase sub-flow is enabled.
func (cfg *Config) IsEnabledParaphrase() bool {
	return cfg.Paraphrase != nil && cfg.Paraphrase.Enable
}

// IsEnabledFineTune returns true if the fine-tuning sub-flow is enabled.
func (cfg *Config) IsEnabledFineTune() bool {
	return cfg.FineTune != nil && cfg.FineTune.Enable
}

// ValidateAndSetDefaults returns an error for invalid configurations.
// User is expected to call this at least once at startup.
func (cfg *Config) ValidateAndSetDefaults() error {
	if cfg.mu == nil {
		cfg.mu = new(sync.RWMutex)
	}
	cfg.mu.Lock()
	defer cfg.mu.Unlock()

	if cfg.ConfigPath == "" {
		return fmt.Errorf("empty ConfigPath")
	}
	if cfg.Name == "" {
		cfg.Name = fmt.Sprintf("genienlp-tester-%s-%s", getTS(10), randutil.String(7))
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if len(cfg.LogOutputs) == 0 {
		cfg.LogOutputs = []string{cfg.Name + ".log"}
	}

	if cfg.GenienlpPath == "" {
		cfg.GenienlpPath = "genienlp"
	}
	if cfg.DatasetDir == "" {
		return fmt.Errorf("empty DatasetDir")
	}
	if cfg.Task == "" {
		cfg.Task = "almond"
	}

	if cfg.WorkDirParent == "" {
		cfg.WorkDirParent = os.TempDir()
	}

	if cfg.EmbeddingsDir == "" {
		cfg.EmbeddingsDir = defaultEmbeddingsDir()
	}
	if cfg.EmbeddingsDownloadURL == "" {
		return fmt.Errorf("empty EmbeddingsDownloadURL")
	}
	if len(cfg.EmbeddingSets) == 0 {
		cfg.EmbeddingSets = []string{"small_glove", "char"}
	}

	if cfg.TrainIterations <= 0 {
		return fmt.Errorf("invalid TrainIterations %d", cfg.TrainIterations)
	}
	if cfg.SaveEvery <= 0 || cfg.LogEvery <= 0 || cfg.ValEvery <= 0 {
		return fmt.Errorf("invalid intervals [save %d, log %d, val %d]", cfg.SaveEvery, cfg.LogEvery, cfg.ValEvery)
	}
	if cfg.TrainBatchTokens <= 0 || cfg.ValBatchSize <= 0 {
		return fmt.Errorf("invalid batch options [train tokens %d, val size %d]", cfg.TrainBatchTokens, cfg.ValBatchSize)
	}
	if cfg.EvalSplit == "" {
		cfg.EvalSplit = "test"
	}

	if len(cfg.SingleTaskMatrix) == 0 {
		return fmt.Errorf("empty SingleTaskMatrix")
	}

	if cfg.IsEnabledMultilingual() {
		if cfg.Multilingual.Task == "" {
			cfg.Multilingual.Task = "almond_multilingual"
		}
		if len(cfg.Multilingual.Matrix) == 0 {
			return fmt.Errorf("Multilingual enabled with empty Matrix")
		}
		if cfg.Multilingual.PredLanguages == "" {
			return fmt.Errorf("Multilingual enabled with empty PredLanguages")
		}
	}

	if cfg.IsEnabledParaphrase() {
		pp := cfg.Paraphrase
		if pp.DatasetSubdir == "" {
			pp.DatasetSubdir = "paraphrasing"
		}
		if pp.ModelType == "" {
			pp.ModelType = "gpt2"
		}
		if pp.ModelNameOrPath == "" {
			pp.ModelNameOrPath = pp.ModelType
		}
		if pp.MaxSteps <= 0 {
			return fmt.Errorf("invalid Paraphrase.MaxSteps %d", pp.MaxSteps)
		}
		if pp.NumSamples <= 0 {
			return fmt.Errorf("invalid Paraphrase.NumSamples %d", pp.NumSamples)
		}
		if pp.InputColumn < 0 {
			return fmt.Errorf("invalid Paraphrase.InputColumn %d", pp.InputColumn)
		}
		if pp.OutputFile == "" {
			pp.OutputFile = "generated.tsv"
		}
	}

	if cfg.IsEnabledFineTune() {
		ft := cfg.FineTune
		if !cfg.IsEnabledParaphrase() {
			return fmt.Errorf("FineTune requires Paraphrase dataset; enable Paraphrase")
		}
		if ft.Path == "" {
			ft.Path = "genienlp-finetune"
		}
		if ft.ModelType == "" {
			ft.ModelType = "bart"
		}
		if ft.NumTrainEpochs <= 0 {
			return fmt.Errorf("invalid FineTune.NumTrainEpochs %d", ft.NumTrainEpochs)
		}
		if ft.OutputDirName == "" {
			ft.OutputDirName = "finetuned"
		}
		if ft.CheckpointTemplate == "" {
			ft.CheckpointTemplate = "checkpointepoch=%02d.ckpt"
		}
	}

	return cfg.unsafeSync()
}
