package commands

import (
	"bytes"
	"context"
	stderrors "errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/systmms/landdsync/internal/config"
	"github.com/systmms/landdsync/internal/engine"
	dserrors "github.com/systmms/landdsync/internal/errors"
	"github.com/systmms/landdsync/internal/identity"
	"github.com/systmms/landdsync/tests/fakes"
	"github.com/systmms/landdsync/tests/testutil"
)

func writeDefinition(t *testing.T, def *config.Definition) string {
	t.Helper()
	data, err := def.Marshal()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "landdsync.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func newConfig(t *testing.T, path string) (*config.Config, *testutil.TestLogger) {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	return &config.Config{Path: path, Logger: logger.Logger}, logger
}

func TestInitCommand_CreatesConfig(t *testing.T) {
	t.Parallel()

	configPath := filepath.Join(t.TempDir(), "etc", "landdsync.yaml")
	cfg, logger := newConfig(t, configPath)

	cmd := NewInitCommand(cfg)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	content, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "key_vault:")
	assert.Contains(t, string(content), "edx_access_token")
	assert.Contains(t, string(content), "retention_delay: 30m0s")
	logger.AssertContains(t, "landdsync validate")

	require.NoError(t, cfg.Load(), "generated file loads")
	for _, mode := range config.Modes {
		assert.NoError(t, cfg.Definition.Validate(mode))
	}
}

func TestInitCommand_ExistingConfigError(t *testing.T) {
	t.Parallel()

	configPath := filepath.Join(t.TempDir(), "landdsync.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("existing config"), 0o600))
	cfg, _ := newConfig(t, configPath)

	cmd := NewInitCommand(cfg)
	cmd.SetArgs([]string{})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	cmd = NewInitCommand(cfg)
	cmd.SetArgs([]string{"--force"})
	require.NoError(t, cmd.Execute())

	content, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "existing config")
}

func TestValidateCommand(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		cfg, logger := newConfig(t, writeDefinition(t, config.Sample()))

		cmd := NewValidateCommand(cfg)
		cmd.SetArgs([]string{})
		require.NoError(t, cmd.Execute())
		logger.AssertContains(t, "valid for course_catalog")
		logger.AssertContains(t, "valid for course_consumption")
	})

	t.Run("invalid for one mode", func(t *testing.T) {
		t.Parallel()
		def := config.Sample()
		def.LandD.SubmittedBy = ""
		cfg, _ := newConfig(t, writeDefinition(t, def))

		cmd := NewValidateCommand(cfg)
		cmd.SetArgs([]string{"course_catalog"})
		require.NoError(t, cmd.Execute())

		cmd = NewValidateCommand(cfg)
		cmd.SetArgs([]string{"course_consumption"})
		err := cmd.Execute()
		var configErr dserrors.ConfigError
		require.True(t, stderrors.As(err, &configErr))
		assert.Equal(t, "landd.submitted_by", configErr.Field)
	})

	t.Run("unknown mode", func(t *testing.T) {
		t.Parallel()
		cfg, _ := newConfig(t, writeDefinition(t, config.Sample()))

		cmd := NewValidateCommand(cfg)
		cmd.SetArgs([]string{"course_grades"})
		assert.Error(t, cmd.Execute())
	})
}

func TestCheckpointCommands(t *testing.T) {
	t.Parallel()

	def := config.Sample()
	def.Consumption.CheckpointFile = filepath.Join(t.TempDir(), "state", "consumption.checkpoint")
	cfg, logger := newConfig(t, writeDefinition(t, def))

	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		cmd := NewCheckpointCommand(cfg)
		cmd.SetOut(&out)
		cmd.SetArgs(args)
		err := cmd.Execute()
		return out.String(), err
	}

	out, err := run("show")
	require.NoError(t, err)
	assert.Empty(t, out)
	logger.AssertContains(t, "No checkpoint stored")

	_, err = run("set", "2024-03-01T08:30:00")
	require.NoError(t, err)

	out, err = run("show")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T08:30:00\n", out)

	data, err := os.ReadFile(def.Consumption.CheckpointFile)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T08:30:00", string(data))

	_, err = run("set", "March 1st")
	assert.Error(t, err)

	_, err = run("reset")
	require.NoError(t, err)
	data, err = os.ReadFile(def.Consumption.CheckpointFile)
	require.NoError(t, err)
	assert.Empty(t, data)
}

type syncFixture struct {
	msi   *fakes.MSIServer
	vault *fakes.VaultServer
	edx   *fakes.EdXServer
	landd *fakes.LandDServer
	cred  *fakes.CredentialFactory
	def   *config.Definition
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()

	f := &syncFixture{
		msi: fakes.NewMSIServer("msi-token", time.Now().Add(time.Hour)),
		vault: fakes.NewVaultServer("msi-token", map[string]string{
			"edx-access-token":       "edx-token",
			"edx-api-key":            "edx-key",
			"landd-subscription-key": "sub-key",
			"landd-client-id":        "client-id",
			"landd-client-secret":    "s3cr3t-client-value",
		}),
		edx: fakes.NewEdXServer([]map[string]any{{
			"course_id":    "course-v1:Contoso+AZ101+2024",
			"name":         "Azure",
			"org":          "Contoso",
			"blocks_url":   "https://lms.example.com/api/courses/v1/blocks/",
			"media":        map[string]any{"image": map[string]any{"large": "l.png", "small": "s.png"}},
			"course_key":   "course-v1:Contoso+AZ101+2024",
			"email":        "learner@contoso.com",
			"username":     "learner",
			"letter_grade": "Pass",
		}}),
		landd: fakes.NewLandDServer(),
		cred: &fakes.CredentialFactory{
			Credential: &fakes.FakeTokenCredential{Token: "landd-token", ExpiresOn: time.Now().Add(time.Hour)},
		},
	}
	t.Cleanup(func() {
		f.msi.Close()
		f.vault.Close()
		f.edx.Close()
		f.landd.Close()
	})

	def := config.Sample()
	def.General.RetryAttempts = 1
	def.Identity.Endpoint = f.msi.Endpoint()
	def.KeyVault.URL = f.vault.URL
	def.EdX.CatalogURL = f.edx.CatalogURL()
	def.EdX.ConsumptionURL = f.edx.GradesURL()
	def.LandD.CatalogURL = f.landd.CatalogURL()
	def.LandD.ConsumptionURL = f.landd.ConsumptionURL()
	def.Consumption.CheckpointFile = filepath.Join(t.TempDir(), "consumption.checkpoint")
	f.def = def
	return f
}

func (f *syncFixture) deps() engine.Deps {
	client := &http.Client{Timeout: 5 * time.Second}
	return engine.Deps{
		Client:      client,
		Destination: identity.NewDestination(client, identity.WithCredentialFactory(f.cred.New)),
		Sleep:       func(context.Context, time.Duration) error { return nil },
	}
}

func TestRootRunsCatalogSync(t *testing.T) {
	t.Parallel()

	f := newSyncFixture(t)
	cfg, logger := newConfig(t, "")
	metricsPath := filepath.Join(t.TempDir(), "landdsync.prom")

	root := NewRootCommand(cfg, WithEngineDeps(f.deps()))
	root.SetArgs([]string{"--config", writeDefinition(t, f.def), "--metrics-file", metricsPath, "course_catalog"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	assert.Equal(t, 1, f.landd.Calls())
	logger.AssertContains(t, "course_catalog sync completed")
	logger.AssertNotContains(t, "s3cr3t-client-value")

	metrics, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `landdsync_runs_total{mode="course_catalog",status="completed"} 1`)
}

func TestRootWritesLogFile(t *testing.T) {
	t.Parallel()

	f := newSyncFixture(t)
	cfg, _ := newConfig(t, "")
	logPath := filepath.Join(t.TempDir(), "logs", "course_consumption.log")

	root := NewRootCommand(cfg, WithEngineDeps(f.deps()))
	root.SetArgs([]string{"--config", writeDefinition(t, f.def), "--log-file", logPath, "course_consumption"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "INFO Checkpoint moved to")

	stored, err := os.ReadFile(f.def.Consumption.CheckpointFile)
	require.NoError(t, err)
	assert.NotEmpty(t, stored)
}

func TestRootSecretFailureExitsWithError(t *testing.T) {
	t.Parallel()

	f := newSyncFixture(t)
	f.vault.SetStatus("landd-client-secret", http.StatusNotFound)
	cfg, _ := newConfig(t, "")

	root := NewRootCommand(cfg, WithEngineDeps(f.deps()))
	root.SetArgs([]string{"--config", writeDefinition(t, f.def), "course_catalog"})
	err := root.ExecuteContext(context.Background())

	var secretErr dserrors.SecretError
	require.True(t, stderrors.As(err, &secretErr))
	assert.Empty(t, f.edx.Requests())
	assert.Zero(t, f.landd.Calls())
	assert.Equal(t, "landd-client-secret", secretErr.Key)
}

func TestRootRejectsUnknownMode(t *testing.T) {
	t.Parallel()

	cfg, _ := newConfig(t, "")
	root := NewRootCommand(cfg)
	root.SetArgs([]string{"course_grades"})
	assert.Error(t, root.Execute())

	root = NewRootCommand(cfg)
	root.SetArgs([]string{})
	assert.Error(t, root.Execute())
}

func TestRootMissingConfig(t *testing.T) {
	t.Parallel()

	cfg, _ := newConfig(t, "")
	root := NewRootCommand(cfg)
	root.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml"), "course_catalog"})

	var configErr dserrors.ConfigError
	require.True(t, stderrors.As(root.Execute(), &configErr))
	assert.Equal(t, "path", configErr.Field)
}

func TestKeyringSet(t *testing.T) {
	keyring.MockInit()

	def := config.Sample()
	def.KeyVault.KeyringService = "landdsync-cli-test"
	cfg, logger := newConfig(t, writeDefinition(t, def))

	cmd := NewKeyringCommand(cfg)
	cmd.SetIn(strings.NewReader("s3cr3t-value\n"))
	cmd.SetArgs([]string{"set", "edx-api-key"})
	require.NoError(t, cmd.Execute())

	value, err := keyring.Get("landdsync-cli-test", "edx-api-key")
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t-value", value)
	logger.AssertNotContains(t, "s3cr3t-value")

	cmd = NewKeyringCommand(cfg)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs([]string{"set", "edx-api-key"})
	assert.Error(t, cmd.Execute())
}

func TestCompletionCommand(t *testing.T) {
	t.Parallel()

	cfg, _ := newConfig(t, "")
	root := NewRootCommand(cfg)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"completion", "bash"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "landdsync")
}
