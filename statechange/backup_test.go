package statechange

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// stubClient writes an executable shell script that ignores its
// arguments (the mysql client's -h/-u/-p flags aren't valid argv for
// any of the real test-double commands below) and exits with the
// given status.
func stubClient(t *testing.T, exitStatus int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mysql-stub.sh")
	script := "#!/bin/sh\ncat >/dev/null\nexit " + string(rune('0'+exitStatus)) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestRestoreDumpSuccess(t *testing.T) {
	orig := MySQLClientPath
	MySQLClientPath = stubClient(t, 0)
	t.Cleanup(func() { MySQLClientPath = orig })

	dumpPath := filepath.Join(t.TempDir(), "dump.sql")
	require.NoError(t, os.WriteFile(dumpPath, []byte("SELECT 1;\n"), 0o644))

	plan := &StateChangePlan{DBHost: "127.0.0.1", DBUser: "root", DBName: "intermediate"}
	require.NoError(t, RestoreDump(context.Background(), plan, dumpPath))
}

func TestRestoreDumpPropagatesCommandFailure(t *testing.T) {
	orig := MySQLClientPath
	MySQLClientPath = stubClient(t, 1)
	t.Cleanup(func() { MySQLClientPath = orig })

	dumpPath := filepath.Join(t.TempDir(), "dump.sql")
	require.NoError(t, os.WriteFile(dumpPath, []byte("SELECT 1;\n"), 0o644))

	plan := &StateChangePlan{DBHost: "127.0.0.1", DBUser: "root", DBName: "intermediate"}
	err := RestoreDump(context.Background(), plan, dumpPath)
	require.Error(t, err)
}

func TestRestoreDumpMissingFile(t *testing.T) {
	plan := &StateChangePlan{DBHost: "127.0.0.1", DBUser: "root", DBName: "intermediate"}
	err := RestoreDump(context.Background(), plan, filepath.Join(t.TempDir(), "missing.sql"))
	require.Error(t, err)
}
