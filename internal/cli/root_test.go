package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeRoot(t *testing.T, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "hubtest", cmd.Use)
	assert.Contains(t, cmd.Long, "Context Hub")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()

	for _, cmdName := range []string{"test", "trace", "version"} {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	levelFlag := cmd.PersistentFlags().Lookup("log-level")
	require.NotNil(t, levelFlag)
	assert.Equal(t, "warn", levelFlag.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	updateFlag := testCmd.Flags().Lookup("update")
	require.NotNil(t, updateFlag)
	assert.Equal(t, "false", updateFlag.DefValue)

	parallelFlag := testCmd.Flags().Lookup("parallel")
	require.NotNil(t, parallelFlag)
	assert.Equal(t, "4", parallelFlag.DefValue)

	require.NotNil(t, testCmd.Flags().Lookup("filter"))
	require.NotNil(t, testCmd.Flags().Lookup("db"))
	require.NotNil(t, testCmd.Flags().Lookup("metrics-file"))
	require.NotNil(t, testCmd.Flags().Lookup("exclude"))
	require.NotNil(t, testCmd.Flags().Lookup("scenario-timeout"))
}

func TestTraceCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	traceCmd, _, err := cmd.Find([]string{"trace"})
	require.NoError(t, err)

	for _, name := range []string{"db", "run", "kind", "reason", "limit"} {
		assert.NotNil(t, traceCmd.Flags().Lookup(name), name)
	}
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	_, err := executeRoot(t, "--format", "invalid", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestLogLevelValidation(t *testing.T) {
	_, err := executeRoot(t, "--log-level", "loud", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestFormatFromEnvironment(t *testing.T) {
	t.Setenv("HUBTEST_FORMAT", "json")

	buf, err := executeRoot(t, "version")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestFlagOverridesEnvironment(t *testing.T) {
	t.Setenv("HUBTEST_FORMAT", "json")

	buf, err := executeRoot(t, "--format", "text", "version")
	require.NoError(t, err)
	assert.Equal(t, "hubtest dev\n", buf.String())
}

func TestLoadConfigDecodesEnvironmentStrings(t *testing.T) {
	t.Setenv("HUBTEST_EXCLUDE", "hub_*,unload_*")
	t.Setenv("HUBTEST_SCENARIO_TIMEOUT", "45s")

	flags := NewTestCommand(&RootOptions{}).Flags()
	cfg, err := loadConfig(viper.New(), "", flags)
	require.NoError(t, err)
	assert.Equal(t, []string{"hub_*", "unload_*"}, cfg.Exclude)
	assert.Equal(t, 45*time.Second, cfg.ScenarioTimeout)
}

func TestLoadConfigDecodesFlagDuration(t *testing.T) {
	flags := NewTestCommand(&RootOptions{}).Flags()
	require.NoError(t, flags.Parse([]string{"--scenario-timeout", "1m30s", "--exclude", "a,b"}))

	cfg, err := loadConfig(viper.New(), "", flags)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.ScenarioTimeout)
	assert.Equal(t, []string{"a", "b"}, cfg.Exclude)
}

func TestExcludeFromEnvironment(t *testing.T) {
	t.Setenv("HUBTEST_EXCLUDE", "hub_*,unload_*")

	buf, err := executeRoot(t, "--format", "json", "test", repoScenarios)
	require.NoError(t, err, buf.String())

	var resp struct {
		Data TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, 3, resp.Data.Total)
	for _, r := range resp.Data.Scenarios {
		assert.NotContains(t, []string{"hub_misbehavior", "unload_timeout"}, r.Name)
	}
}

func TestScenarioTimeoutFromEnvironment(t *testing.T) {
	t.Setenv("HUBTEST_SCENARIO_TIMEOUT", "1ns")

	buf, err := executeRoot(t, "test", repoScenarios, "--filter", "load_success")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "context deadline exceeded")
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	dbPath := seedTraceDB(t)
	cfgPath := filepath.Join(dir, "hubtest.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("format: json\ndb: "+dbPath+"\n"), 0644))

	buf, err := executeRoot(t, "--config", cfgPath, "trace", "--run", "beta")
	require.NoError(t, err)

	var resp struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Len(t, resp.Data.Timeline, 1)
	assert.Equal(t, "txn-0004", resp.Data.Timeline[0].TransactionID)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := executeRoot(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "version")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestVersionCommand(t *testing.T) {
	buf, err := executeRoot(t, "--format", "json", "version")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   VersionInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, Version, resp.Data.Version)
}
