package matrix

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/lgtm-migrator/genienlp-tester/genie"
	"github.com/lgtm-migrator/genienlp-tester/genieconfig"
	"github.com/lgtm-migrator/genienlp-tester/pkg/fileutil"
	"github.com/lgtm-migrator/genienlp-tester/pkg/randutil"
)

func newRun() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Runs the genienlp test matrix",
		Long:  "Configuration values are overwritten by environment variables.",
		Run:   runFunc,
	}
}

func runFunc(cmd *cobra.Command, args []string) {
	if path == "" && !autoPath {
		fmt.Fprintln(os.Stderr, "'--path' flag is not specified")
		os.Exit(1)
	}
	if path == "" {
		path = filepath.Join(os.TempDir(), "genienlp-tester-"+randutil.String(8)+".yaml")
		fmt.Fprintf(os.Stderr, "auto-generated configuration file path %q\n", path)
	}

	var cfg *genieconfig.Config
	var err error
	if fileutil.Exist(path) {
		cfg, err = genieconfig.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load configuration %q (%v)\n", path, err)
			os.Exit(1)
		}
	} else {
		fmt.Fprintf(os.Stderr, "cannot find configuration %q; writing...\n", path)
		cfg = genieconfig.NewDefault()
		cfg.ConfigPath = path
	}

	fmt.Printf("\n*********************************\n")
	fmt.Printf("overwriting config file from environment variables...\n")
	if err = cfg.UpdateFromEnvs(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from environment variables: %v\n", err)
		os.Exit(1)
	}
	if err = cfg.ValidateAndSetDefaults(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to validate configuration %q (%v)\n", path, err)
		os.Exit(1)
	}
	if err = cfg.Sync(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write configuration %q (%v)\n", path, err)
		os.Exit(1)
	}

	txt, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read configuration %q (%v)\n", path, err)
		os.Exit(1)
	}
	println()
	fmt.Println(string(txt))
	println()

	if enablePrompt {
		prompt := promptui.Select{
			Label: "Ready to run the genienlp test matrix, should we continue?",
			Items: []string{
				"No, cancel it!",
				"Yes, let's run!",
			},
		}
		idx, answer, perr := prompt.Run()
		if perr != nil {
			panic(perr)
		}
		if idx != 1 {
			fmt.Printf("returning 'run' [index %d, answer %q]\n", idx, answer)
			return
		}
	}

	ts, err := genie.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create genienlp tester %v\n", err)
		os.Exit(1)
	}

	// cancel in-flight subprocesses on SIGINT/SIGTERM; teardown still runs
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	errUp := ts.Up(ctx)
	stop()
	errDown := ts.Down()

	if errUp != nil {
		fmt.Fprint(ts.LogWriter(), cfg.Colorize("\n\n[yellow]*********************************\n"))
		fmt.Fprintf(ts.LogWriter(), cfg.Colorize("[red]'genienlp-tester matrix run' fail %v\n"), errUp)
		os.Exit(1)
	}
	if errDown != nil {
		fmt.Fprint(ts.LogWriter(), cfg.Colorize("\n\n[yellow]*********************************\n"))
		fmt.Fprintf(ts.LogWriter(), cfg.Colorize("[red]'genienlp-tester matrix run' teardown fail %v\n"), errDown)
		os.Exit(1)
	}

	fmt.Fprint(ts.LogWriter(), cfg.Colorize("\n\n[yellow]*********************************\n"))
	fmt.Fprint(ts.LogWriter(), cfg.Colorize("[light_green]'genienlp-tester matrix run' success\n"))
}
