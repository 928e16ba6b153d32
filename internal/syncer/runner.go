package syncer

import (
	"context"
	"fmt"

	"github.com/Ofunrein/n8n-workflows/internal/executor"
)

// CommandRunner runs a rebuild command in a working directory and returns
// its combined output. Implementations are injected so tests can record
// invocations without spawning processes.
type CommandRunner interface {
	Run(ctx context.Context, dir string, argv []string) (string, error)
}

// execRunner is the production CommandRunner backed by the executor package.
type execRunner struct{}

// NewExecRunner returns a CommandRunner that spawns real processes.
func NewExecRunner() CommandRunner {
	return execRunner{}
}

func (execRunner) Run(ctx context.Context, dir string, argv []string) (string, error) {
	if len(argv) == 0 {
		return "", fmt.Errorf("empty command")
	}

	res, err := executor.New(argv[0], argv[1:]...).Execute(ctx,
		executor.WithWorkingDir(dir),
		executor.WithCapture(false, false, true),
	)

	combined := ""
	if res != nil {
		combined = res.Combined
	}

	if err != nil {
		return combined, fmt.Errorf("command %q failed: %w", argv[0], err)
	}
	return combined, nil
}
