package genieconfig

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestUpdateFromEnvs(t *testing.T) {
	kvs := map[string]string{
		"GENIENLP_TESTER_LOG_LEVEL":                       "debug",
		"GENIENLP_TESTER_GENIENLP_PATH":                   "/opt/genienlp/bin/genienlp",
		"GENIENLP_TESTER_DATASET_DIR":                     "/data/dataset",
		"GENIENLP_TESTER_TRAIN_ITERATIONS":                "12",
		"GENIENLP_TESTER_EMBEDDING_SETS":                  "small_glove,char,fasttext",
		"GENIENLP_TESTER_EVAL_SPLIT":                      "aux",
		"GENIENLP_TESTER_MULTILINGUAL_PRED_LANGUAGES":     "de+en",
		"GENIENLP_TESTER_PARAPHRASE_NUM_SAMPLES":          "8",
		"GENIENLP_TESTER_PARAPHRASE_TEMPERATURE":          "0.7",
		"GENIENLP_TESTER_FINE_TUNE_PATH":                  "/opt/genienlp/bin/genienlp-finetune",
		"GENIENLP_TESTER_FINE_TUNE_NUM_TRAIN_EPOCHS":      "2",
	}
	for k, v := range kvs {
		os.Setenv(k, v)
	}
	defer func() {
		for k := range kvs {
			os.Unsetenv(k)
		}
	}()

	cfg := NewDefault()
	cfg.ConfigPath = filepath.Join(t.TempDir(), "cfg.yaml")
	if err := cfg.UpdateFromEnvs(); err != nil {
		t.Fatal(err)
	}

	if cfg.LogLevel != "debug" {
		t.Fatalf("unexpected LogLevel %q", cfg.LogLevel)
	}
	if cfg.GenienlpPath != "/opt/genienlp/bin/genienlp" {
		t.Fatalf("unexpected GenienlpPath %q", cfg.GenienlpPath)
	}
	if cfg.DatasetDir != "/data/dataset" {
		t.Fatalf("unexpected DatasetDir %q", cfg.DatasetDir)
	}
	if cfg.TrainIterations != 12 {
		t.Fatalf("unexpected TrainIterations %d", cfg.TrainIterations)
	}
	if !reflect.DeepEqual(cfg.EmbeddingSets, []string{"small_glove", "char", "fasttext"}) {
		t.Fatalf("unexpected EmbeddingSets %v", cfg.EmbeddingSets)
	}
	if cfg.EvalSplit != "aux" {
		t.Fatalf("unexpected EvalSplit %q", cfg.EvalSplit)
	}
	if cfg.Multilingual.PredLanguages != "de+en" {
		t.Fatalf("unexpected Multilingual.PredLanguages %q", cfg.Multilingual.PredLanguages)
	}
	if cfg.Paraphrase.NumSamples != 8 {
		t.Fatalf("unexpected Paraphrase.NumSamples %d", cfg.Paraphrase.NumSamples)
	}
	if cfg.Paraphrase.Temperature != 0.7 {
		t.Fatalf("unexpected Paraphrase.Temperature %v", cfg.Paraphrase.Temperature)
	}
	if cfg.FineTune.Path != "/opt/genienlp/bin/genienlp-finetune" {
		t.Fatalf("unexpected FineTune.Path %q", cfg.FineTune.Path)
	}
	if cfg.FineTune.NumTrainEpochs != 2 {
		t.Fatalf("unexpected FineTune.NumTrainEpochs %d", cfg.FineTune.NumTrainEpochs)
	}
}

func TestUpdateFromEnvsReadOnly(t *testing.T) {
	os.Setenv("GENIENLP_TESTER_WORK_DIR", "/tmp/should-not-be-set")
	defer os.Unsetenv("GENIENLP_TESTER_WORK_DIR")

	cfg := NewDefault()
	cfg.ConfigPath = filepath.Join(t.TempDir(), "cfg.yaml")
	if err := cfg.UpdateFromEnvs(); err == nil {
		t.Fatal("expected error for read-only field override")
	}
}

func TestUpdateFromEnvsInvalidValue(t *testing.T) {
	os.Setenv("GENIENLP_TESTER_TRAIN_ITERATIONS", "not-a-number")
	defer os.Unsetenv("GENIENLP_TESTER_TRAIN_ITERATIONS")

	cfg := NewDefault()
	cfg.ConfigPath = filepath.Join(t.TempDir(), "cfg.yaml")
	if err := cfg.UpdateFromEnvs(); err == nil {
		t.Fatal("expected error for unparsable integer")
	}
}
