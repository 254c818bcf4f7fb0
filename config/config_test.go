package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"stateLog": {"name": "mylog"},
		"keyColumns": ["orders.id"],
		"database": {"name": "mydb", "host": "dbhost"}
	}`)
	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ".", c.StateLog.Path)
	require.Equal(t, 3306, c.Database.Port)
	require.Equal(t, "/var/lib/mysql", c.Binlog.Path)
	require.Equal(t, "mysql-bin.index", c.Binlog.IndexName)
	require.Equal(t, "eqonly", c.StateChange.RangeComparisonMethod)
}

func TestLoadRejectsMissingStateLogName(t *testing.T) {
	path := writeConfig(t, `{"keyColumns": ["a"], "database": {"name": "d", "host": "h"}}`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsEmptyKeyColumns(t *testing.T) {
	path := writeConfig(t, `{"stateLog": {"name": "n"}, "database": {"name": "d", "host": "h"}}`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsMissingDatabaseName(t *testing.T) {
	path := writeConfig(t, `{"stateLog": {"name": "n"}, "keyColumns": ["a"], "database": {"host": "h"}}`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsBadRangeComparisonMethod(t *testing.T) {
	path := writeConfig(t, `{
		"stateLog": {"name": "n"}, "keyColumns": ["a"],
		"database": {"name": "d", "host": "h"},
		"stateChange": {"rangeComparisonMethod": "bogus"}
	}`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestApplyEnvFallbacksOnlyFillsAbsentFields(t *testing.T) {
	c := &Config{}
	env := map[string]string{
		"BINLOG_PATH":            "/env/binlog",
		"DB_HOST":                "envhost",
		"DB_PORT":                "9999",
		"DB_USER":                "envuser",
		"DB_PASS":                "envpass",
		"ULTRAVERSE_REPORT_NAME": "nightly",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	c.applyEnvFallbacks(lookup)
	require.Equal(t, "/env/binlog", c.Binlog.Path)
	require.Equal(t, "envhost", c.Database.Host)
	require.Equal(t, 9999, c.Database.Port)
	require.Equal(t, "envuser", c.Database.Username)
	require.Equal(t, "envpass", c.Database.Password)
	require.Equal(t, "nightly", c.ReportName)
}

func TestApplyEnvFallbacksDoesNotOverrideExplicitValues(t *testing.T) {
	c := &Config{Database: Database{Host: "configured", Port: 3307}}
	env := map[string]string{"DB_HOST": "envhost", "DB_PORT": "9999"}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	c.applyEnvFallbacks(lookup)
	require.Equal(t, "configured", c.Database.Host)
	require.Equal(t, 3307, c.Database.Port)
}

func TestLoadPropagatesColumnAliasesAndStatelogdBlock(t *testing.T) {
	path := writeConfig(t, `{
		"stateLog": {"name": "n"},
		"keyColumns": ["a"],
		"database": {"name": "d", "host": "h"},
		"columnAliases": {"users.uid_str": ["000042"]},
		"statelogd": {"threadCount": 4, "oneshotMode": true, "developmentFlags": ["binlog"]}
	}`)
	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"000042"}, c.ColumnAliases["users.uid_str"])
	require.Equal(t, 4, c.Statelogd.ThreadCount)
	require.True(t, c.Statelogd.OneshotMode)
	require.Equal(t, []string{"binlog"}, c.Statelogd.DevelopmentFlags)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
