package process

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewapps-dev/wfpack/internal/env"
)

func TestCommandUsesExplicitEnv(t *testing.T) {
	dir := t.TempDir()
	vars := env.FromPairs(
		"WILDFLY_VERSION", "16.0.0.Final",
		"PORT", "8080",
		"PATH", "/opt/jdk/bin:$PATH",
	)

	cmd := Command(dir, `echo "$WILDFLY_VERSION $PORT"; pwd; echo "$PATH"`, vars)
	var out bytes.Buffer
	cmd.Stdout = &out
	require.NoError(t, cmd.Run())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "16.0.0.Final 8080", lines[0])
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Equal(t, resolved, lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "/opt/jdk/bin:"))

	_, set := os.LookupEnv("WILDFLY_VERSION")
	assert.False(t, set, "caller environment must not change")
}

func TestStartStop(t *testing.T) {
	cmd := Command(t.TempDir(), "sleep 30", &env.Map{})
	info, err := Start(cmd)
	require.NoError(t, err)
	assert.NotZero(t, info.PID)

	start := time.Now()
	require.NoError(t, Stop(info, 5*time.Second))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestStopEscalates(t *testing.T) {
	cmd := Command(t.TempDir(), "trap '' TERM; sleep 30", &env.Map{})
	info, err := Start(cmd)
	require.NoError(t, err)

	// Give bash a moment to install the trap.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, Stop(info, 300*time.Millisecond))
}

func TestDoneReportsExit(t *testing.T) {
	info, err := Start(Command(t.TempDir(), "exit 3", &env.Map{}))
	require.NoError(t, err)

	select {
	case <-info.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
	var ee *exec.ExitError
	require.ErrorAs(t, info.Err(), &ee)
	assert.Equal(t, 3, ee.ExitCode())
}
