package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shInvocation(t *testing.T, script string) Invocation {
	t.Helper()
	return Invocation{
		ID:          "000",
		Args:        []string{"sh", "-c", script},
		ConsolePath: filepath.Join(t.TempDir(), "consoleTEST000"),
	}
}

// TestExecute_StdoutGoesToConsoleFile verifies output capture into the
// per-run console file.
func TestExecute_StdoutGoesToConsoleFile(t *testing.T) {
	inv := shInvocation(t, `echo "fit done"; echo "best 1.5"`)

	res, err := NewExecutor(nil).Execute(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, "000", res.ID)
	assert.Equal(t, 0, res.ExitCode)
	assert.True(t, res.Succeeded())
	assert.Greater(t, res.Duration, time.Duration(0))

	got, err := os.ReadFile(inv.ConsolePath)
	require.NoError(t, err)
	assert.Equal(t, "fit done\nbest 1.5\n", string(got))
}

// TestExecute_NonZeroExitIsSurfaced verifies exit status is reported rather
// than dropped.
func TestExecute_NonZeroExitIsSurfaced(t *testing.T) {
	inv := shInvocation(t, `echo partial; echo "bad isochrone" >&2; exit 3`)

	res, err := NewExecutor(nil).Execute(context.Background(), inv)
	require.NoError(t, err, "non-zero exit must not be an error return")
	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, res.Succeeded())
	assert.Equal(t, "bad isochrone\n", string(res.Stderr))

	got, err := os.ReadFile(inv.ConsolePath)
	require.NoError(t, err)
	assert.Equal(t, "partial\n", string(got))
}

func TestExecute_TruncatesExistingConsoleFile(t *testing.T) {
	inv := shInvocation(t, `echo new`)
	require.NoError(t, os.WriteFile(inv.ConsolePath, []byte("stale output from an earlier sweep\n"), 0o644))

	_, err := NewExecutor(nil).Execute(context.Background(), inv)
	require.NoError(t, err)

	got, err := os.ReadFile(inv.ConsolePath)
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(got))
}

func TestExecute_MissingExecutable(t *testing.T) {
	inv := Invocation{
		ID:          "001",
		Args:        []string{"calcsfh-does-not-exist-" + strings.ReplaceAll(t.Name(), "/", "_")},
		ConsolePath: filepath.Join(t.TempDir(), "consoleTEST001"),
	}

	res, err := NewExecutor(nil).Execute(context.Background(), inv)
	require.Error(t, err)
	assert.Nil(t, res)
	var se *StartError
	assert.True(t, errors.As(err, &se), "expected StartError, got %T: %v", err, err)
}

func TestExecute_ConsoleFileUncreatable(t *testing.T) {
	inv := Invocation{
		ID:          "002",
		Args:        []string{"sh", "-c", "true"},
		ConsolePath: filepath.Join(t.TempDir(), "missing-dir", "consoleTEST002"),
	}

	_, err := NewExecutor(nil).Execute(context.Background(), inv)
	var ce *ConsoleError
	require.True(t, errors.As(err, &ce), "expected ConsoleError, got %v", err)
	assert.Equal(t, inv.ConsolePath, ce.Path)
}

func TestExecute_InvalidInvocation(t *testing.T) {
	_, err := NewExecutor(nil).Execute(context.Background(), Invocation{ID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command is required")
	assert.Contains(t, err.Error(), "console path is required")
}

func TestExecute_CancellationKillsProcess(t *testing.T) {
	inv := shInvocation(t, `sleep 30`)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := NewExecutor(nil).Execute(ctx, inv)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestExecute_Timeout(t *testing.T) {
	inv := shInvocation(t, `sleep 30`)
	ex := &Executor{Timeout: 100 * time.Millisecond}

	_, err := ex.Execute(context.Background(), inv)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestExecute_ExtraEnvIsVisible(t *testing.T) {
	inv := shInvocation(t, `echo "ISO=$SFH_ISOCHRONES"`)
	inv.Env = map[string]string{"SFH_ISOCHRONES": "PARSEC"}

	_, err := NewExecutor(nil).Execute(context.Background(), inv)
	require.NoError(t, err)

	got, err := os.ReadFile(inv.ConsolePath)
	require.NoError(t, err)
	assert.Equal(t, "ISO=PARSEC\n", string(got))
}

func TestBuildEnv_SortedExtras(t *testing.T) {
	got := buildEnv([]string{"PATH=/bin"}, map[string]string{"B": "2", "A": "1"})
	assert.Equal(t, []string{"PATH=/bin", "A=1", "B=2"}, got)
	assert.Equal(t, []string{"PATH=/bin"}, buildEnv([]string{"PATH=/bin"}, nil))
}
