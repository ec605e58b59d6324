package genie

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/lgtm-migrator/genienlp-tester/pkg/spinner"
)

// runCommand invokes one external command, streaming its output to the
// harness log writer. The command is a black box; a non-zero exit is
// fatal to the whole run and is returned wrapped with the step name.
func (ts *Tester) runCommand(ctx context.Context, step string, cmdPath string, args ...string) error {
	ts.lg.Info("running command",
		zap.String("step", step),
		zap.String("cmd-path", cmdPath),
		zap.Strings("args", args),
	)

	sp := spinner.New(ts.logWriter, step)
	sp.Restart()
	defer sp.Stop()

	cmd := ts.exec.CommandContext(ctx, cmdPath, args...)
	cmd.SetStdout(ts.logWriter)
	cmd.SetStderr(ts.logWriter)
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "%q failed", step)
	}

	ts.lg.Info("command succeeded", zap.String("step", step))
	return nil
}
