package genie

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"go.uber.org/goleak"

	"github.com/lgtm-migrator/genienlp-tester/genieconfig"
	"github.com/lgtm-migrator/genienlp-tester/pkg/fileutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

// stubGenienlp fabricates the artifacts the real CLI would produce.
const stubGenienlp = `#!/bin/sh
sub="$1"; shift
save=""; eval_dir=""; tasks=""; evaluate=""; separate=0; pred_languages=""; output_dir=""; output_file=""
while [ $# -gt 0 ]; do
  case "$1" in
    --save) save="$2"; shift 2 ;;
    --eval_dir) eval_dir="$2"; shift 2 ;;
    --tasks) tasks="$2"; shift 2 ;;
    --evaluate) evaluate="$2"; shift 2 ;;
    --pred_languages) pred_languages="$2"; shift 2 ;;
    --separate_eval) separate=1; shift ;;
    --output_dir) output_dir="$2"; shift 2 ;;
    --output_file) output_file="$2"; shift 2 ;;
    *) shift ;;
  esac
done
case "$sub" in
  train)
    mkdir -p "$save" && touch "$save/best.pth" ;;
  predict)
    d="$eval_dir/$evaluate"; mkdir -p "$d"
    if [ -z "$pred_languages" ]; then
      touch "$d/$tasks.tsv"
    elif [ "$separate" = "1" ]; then
      for l in $(echo "$pred_languages" | tr '+' ' '); do touch "$d/${tasks}_${l}.tsv"; done
    else
      touch "$d/${tasks}_${pred_languages}.tsv"
    fi ;;
  train-paraphrase)
    mkdir -p "$output_dir" && touch "$output_dir/pytorch_model.bin" ;;
  run-paraphrase)
    printf 'show me restaurants\tnow => @com.yelp.restaurant() => notify\n' > "$output_file" ;;
esac
exit 0
`

const stubFineTune = `#!/bin/sh
output_dir=""
while [ $# -gt 0 ]; do
  case "$1" in
    --output_dir) output_dir="$2"; shift 2 ;;
    *) shift ;;
  esac
done
mkdir -p "$output_dir" && touch "$output_dir/checkpointepoch=00.ckpt"
exit 0
`

func writeStub(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0755); err != nil {
		t.Fatal(err)
	}
	return p
}

func writeDataset(t *testing.T, dir string) string {
	t.Helper()
	root := filepath.Join(dir, "dataset")
	for _, f := range []string{
		filepath.Join(root, "almond", "train.tsv"),
		filepath.Join(root, "paraphrasing", "train.tsv"),
		filepath.Join(root, "paraphrasing", "dev.tsv"),
	} {
		if err := os.MkdirAll(filepath.Dir(f), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(f, []byte("id\tutterance\tprogram\n"), 0600); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func writeEmbeddings(t *testing.T, dir string, sets []string) string {
	t.Helper()
	root := filepath.Join(dir, "embeddings")
	if err := os.MkdirAll(root, 0755); err != nil {
		t.Fatal(err)
	}
	for _, set := range sets {
		for _, f := range embeddingFiles(set) {
			if err := os.WriteFile(filepath.Join(root, f), []byte("NUMPY"), 0600); err != nil {
				t.Fatal(err)
			}
		}
	}
	return root
}

func newTestConfig(t *testing.T, dir string, stubBody string) *genieconfig.Config {
	t.Helper()
	cfg := genieconfig.NewDefault()
	cfg.ConfigPath = filepath.Join(dir, "genienlp-tester.yaml")
	cfg.LogColor = false
	cfg.LogOutputs = []string{filepath.Join(dir, "genienlp-tester.log")}
	cfg.GenienlpPath = writeStub(t, dir, "genienlp", stubBody)
	cfg.FineTune.Path = writeStub(t, dir, "genienlp-finetune", stubFineTune)
	cfg.DatasetDir = writeDataset(t, dir)
	cfg.EmbeddingsDir = writeEmbeddings(t, dir, cfg.EmbeddingSets)
	cfg.WorkDirParent = filepath.Join(dir, "work")
	if err := os.MkdirAll(cfg.WorkDirParent, 0755); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestTesterUpDown(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(t, dir, stubGenienlp)

	ts, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	// pre-plant a leaked shared-memory temp file for the sweep
	shmDir := filepath.Join(dir, "shm")
	if err = os.MkdirAll(shmDir, 0755); err != nil {
		t.Fatal(err)
	}
	leaked := filepath.Join(shmDir, "torch_shm_manager_1234")
	if err = os.WriteFile(leaked, []byte(""), 0600); err != nil {
		t.Fatal(err)
	}
	ts.shmGlob = filepath.Join(shmDir, "torch_shm_*")

	if err = ts.Up(context.Background()); err != nil {
		t.Fatal(err)
	}

	if cfg.WorkDir == "" || !fileutil.Exist(cfg.WorkDir) {
		t.Fatalf("work directory %q expected to exist before Down", cfg.WorkDir)
	}
	// 4 single-task cases + 2 multilingual cases
	if cfg.CaseCounter != 6 {
		t.Fatalf("expected 6 cases, got %d", cfg.CaseCounter)
	}
	if cfg.StatusCurrent != "matrix complete" {
		t.Fatalf("unexpected status %q", cfg.StatusCurrent)
	}
	if !fileutil.ExistNonEmpty(filepath.Join(cfg.WorkDir, "generated.tsv")) {
		t.Fatal("expected non-empty generated.tsv")
	}
	if !fileutil.Exist(filepath.Join(cfg.WorkDir, "finetuned", "checkpointepoch=00.ckpt")) {
		t.Fatal("expected fine-tune checkpoint")
	}
	if !fileutil.Exist(filepath.Join(cfg.WorkDir, "model_0", "eval_results", "test", "almond.tsv")) {
		t.Fatal("expected model_0 result file")
	}
	for _, name := range []string{
		"almond_multilingual_fa+en.tsv",
		"almond_multilingual_fa.tsv",
		"almond_multilingual_en.tsv",
	} {
		if !fileutil.Exist(filepath.Join(cfg.WorkDir, "model_4", "eval_results", "test", name)) {
			t.Fatalf("expected multilingual result file %q", name)
		}
	}

	if err = ts.Down(); err != nil {
		t.Fatal(err)
	}
	if fileutil.Exist(cfg.WorkDir) {
		t.Fatalf("work directory %q expected to be removed", cfg.WorkDir)
	}
	if fileutil.Exist(leaked) {
		t.Fatalf("leaked shared-memory file %q expected to be swept", leaked)
	}
	// populated embedding cache is shared state; it must survive
	if !fileutil.Exist(cfg.EmbeddingsDir) {
		t.Fatal("embedding cache expected to survive teardown")
	}
}

func TestTesterMissingArtifact(t *testing.T) {
	dir := t.TempDir()
	// predict succeeds but fabricates nothing
	stub := strings.Replace(stubGenienlp, `touch "$d/$tasks.tsv"`, `true`, 1)
	cfg := newTestConfig(t, dir, stub)

	ts, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer ts.Down()

	err = ts.Up(context.Background())
	if err == nil {
		t.Fatal("expected missing artifact error")
	}
	if !errors.Is(err, ErrMissingArtifact) {
		t.Fatalf("expected ErrMissingArtifact, got %v", err)
	}
	if !strings.Contains(err.Error(), "almond.tsv") {
		t.Fatalf("expected error to name the missing file, got %v", err)
	}

	if err = ts.Down(); err != nil {
		t.Fatal(err)
	}
	if fileutil.Exist(cfg.WorkDir) {
		t.Fatalf("work directory %q expected to be removed after failure", cfg.WorkDir)
	}
}

func TestTesterCommandFailure(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(t, dir, "#!/bin/sh\nexit 3\n")

	ts, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer ts.Down()

	err = ts.Up(context.Background())
	if err == nil {
		t.Fatal("expected subprocess failure")
	}
	if errors.Is(err, ErrMissingArtifact) {
		t.Fatalf("subprocess failure must not be reported as a missing artifact, got %v", err)
	}
	if !strings.Contains(err.Error(), "train") {
		t.Fatalf("expected error to name the failing step, got %v", err)
	}
}

func TestTesterCanceled(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(t, dir, stubGenienlp)

	ts, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer ts.Down()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err = ts.Up(ctx); err == nil {
		t.Fatal("expected error for canceled context")
	}
}
