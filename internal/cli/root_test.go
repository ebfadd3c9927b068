package cli

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"burn.note/internal/models"
	"burn.note/internal/store"
)

func writeConfig(t *testing.T, dbPath string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "store:\n  type: sqlite\n  sqlite:\n    path: " + dbPath + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestPurgeCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "burn.db")

	st, err := store.OpenSQLite(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Create(context.Background(), &models.Message{
		Text:      "ancient",
		Token:     "stale-token",
		TTLUnit:   models.TTLMinutes,
		TTLValue:  15,
		CreatedAt: time.Now().Add(-40 * 24 * time.Hour),
	}))
	require.NoError(t, st.Close())

	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"purge", "--config", writeConfig(t, dbPath)})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "removed 1 expired messages\n", out.String())

	out.Reset()
	cmd = NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"purge", "--config", writeConfig(t, dbPath)})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "removed 0 expired messages\n", out.String())
}

func TestRootCommand_InvalidConfig(t *testing.T) {
	t.Setenv("STORE_TYPE", "cassandra")

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"purge"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid store type")
}

func TestServe_StopsOnCancel(t *testing.T) {
	t.Setenv("STORE_TYPE", "memory")
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	t.Setenv("PORT", strconv.Itoa(port))
	t.Setenv("HOST", "127.0.0.1")

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"serve"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}
