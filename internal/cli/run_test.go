package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStopsWhenContextCancelled(t *testing.T) {
	dbPath := testDB(t)
	t.Setenv("REMOTE_BASE_URL", "http://127.0.0.1:1")
	t.Setenv("NET_PROBE_TIMEOUT", "100ms")
	t.Setenv("METRICS_ADDR", "")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"run", "--db", dbPath})

	err := cmd.ExecuteContext(ctx)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Sync core running")
}

func TestRunRejectsExtraArgs(t *testing.T) {
	_, err := execute(t, "run", "unexpected")
	require.Error(t, err)
}
