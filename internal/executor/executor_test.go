package executor_test

import (
	"context"
	"strings"
	"testing"

	"github.com/Ofunrein/n8n-workflows/internal/executor"
)

func TestBasicExecution(t *testing.T) {
	cmd := executor.New("echo", "hello", "world")
	result, err := cmd.Execute(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(result.Stdout, "hello world") {
		t.Errorf("expected stdout to contain 'hello world', got: %s", result.Stdout)
	}

	if result.ExitCode != 0 {
		t.Errorf("expected exit code 0, got: %d", result.ExitCode)
	}
}

func TestCombinedOutput(t *testing.T) {
	cmd := executor.New("sh", "-c", "echo stdout && echo stderr >&2")
	result, err := cmd.Execute(
		context.Background(),
		executor.WithCapture(false, false, true),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(result.Combined, "stdout") {
		t.Errorf("expected combined output to contain stdout, got: %s", result.Combined)
	}
	if !strings.Contains(result.Combined, "stderr") {
		t.Errorf("expected combined output to contain stderr, got: %s", result.Combined)
	}
}

func TestExitCode(t *testing.T) {
	cmd := executor.New("sh", "-c", "exit 3")
	result, err := cmd.Execute(context.Background())
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}

	if result.ExitCode != 3 {
		t.Errorf("expected exit code 3, got: %d", result.ExitCode)
	}
}

func TestWorkingDir(t *testing.T) {
	dir := t.TempDir()

	cmd := executor.New("pwd")
	result, err := cmd.Execute(context.Background(), executor.WithWorkingDir(dir))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Resolve through symlinks (macOS tempdirs live under /private).
	if !strings.Contains(result.Stdout, dir) && !strings.Contains(result.Stdout, "/private"+dir) {
		t.Errorf("expected pwd output %q to contain %q", result.Stdout, dir)
	}
}

func TestEnvironmentVariables(t *testing.T) {
	cmd := executor.New("sh", "-c", "echo $UPSYNC_TEST_VAR")
	result, err := cmd.Execute(
		context.Background(),
		executor.WithEnvVar("UPSYNC_TEST_VAR", "expected-value"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(result.Stdout, "expected-value") {
		t.Errorf("expected env var in output, got: %s", result.Stdout)
	}
}

func TestStdinInput(t *testing.T) {
	cmd := executor.New("cat")
	result, err := cmd.ExecuteWithInput(context.Background(), "piped input")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(result.Stdout, "piped input") {
		t.Errorf("expected stdin echoed back, got: %s", result.Stdout)
	}
}

func TestContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := executor.New("sleep", "10")
	_, err := cmd.Execute(ctx)
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
