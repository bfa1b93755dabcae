package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/migration-runner/internal/config"
	"github.com/aqasim81/migration-runner/internal/prompt"
)

// fakePrompter answers prompts from fixed values and counts calls.
type fakePrompter struct {
	selected    int
	selectErr   error
	confirmed   bool
	confirmErr  error
	password    string
	passwordErr error

	selectCalls   int
	confirmCalls  int
	passwordCalls int
}

func (f *fakePrompter) SelectEnvironment(envs []config.Environment) (config.Environment, error) {
	f.selectCalls++

	if f.selectErr != nil {
		return config.Environment{}, f.selectErr
	}

	return envs[f.selected], nil
}

func (f *fakePrompter) ConfirmEnvironment(_ config.Environment) (bool, error) {
	f.confirmCalls++

	return f.confirmed, f.confirmErr
}

func (f *fakePrompter) Password(_ config.Environment) (string, error) {
	f.passwordCalls++

	return f.password, f.passwordErr
}

func testConfig() *config.Config {
	cfg := config.New()
	cfg.Environments = []config.Environment{
		{Name: "dev", Host: "localhost", Port: 5432, Database: "app", User: "app", SSLMode: "disable", Color: "green"},
		{Name: "stage", Host: "stage.db", Port: 5432, Database: "app", User: "app", SSLMode: "require", Color: "yellow", Confirm: true},
		{Name: "prod", Host: "prod.db", Port: 5432, Database: "app", User: "app", SSLMode: "require", Color: "red", Confirm: true},
	}

	return cfg
}

func TestResolveTarget_databaseURL_skipsPrompts(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.DatabaseURL = "postgres://ci@localhost/app"
	p := &fakePrompter{}

	dsn, ok, err := resolveTarget(cfg, p, new(bytes.Buffer))

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "postgres://ci@localhost/app", dsn)
	assert.Zero(t, p.selectCalls+p.confirmCalls+p.passwordCalls)
}

func TestResolveTarget_devNeedsNoConfirmation(t *testing.T) {
	t.Parallel()

	p := &fakePrompter{selected: 0, password: "pw"}

	dsn, ok, err := resolveTarget(testConfig(), p, new(bytes.Buffer))

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "postgres://app:pw@localhost:5432/app?sslmode=disable", dsn)
	assert.Zero(t, p.confirmCalls)
}

func TestResolveTarget_prodConfirmed(t *testing.T) {
	t.Parallel()

	p := &fakePrompter{selected: 2, confirmed: true, password: "pw"}

	dsn, ok, err := resolveTarget(testConfig(), p, new(bytes.Buffer))

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "postgres://app:pw@prod.db:5432/app?sslmode=require", dsn)
	assert.Equal(t, 1, p.confirmCalls)
}

func TestResolveTarget_confirmationMismatch_aborts(t *testing.T) {
	t.Parallel()

	out := new(bytes.Buffer)
	p := &fakePrompter{selected: 1, confirmed: false, password: "pw"}

	_, ok, err := resolveTarget(testConfig(), p, out)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, out.String(), "Confirmation failed. Aborting.")
	assert.Zero(t, p.passwordCalls, "no password prompt after a failed confirmation")
}

func TestResolveTarget_emptyPassword_aborts(t *testing.T) {
	t.Parallel()

	out := new(bytes.Buffer)
	p := &fakePrompter{selected: 0}

	_, ok, err := resolveTarget(testConfig(), p, out)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, out.String(), "No password provided. Aborting.")
}

func TestResolveTarget_cancelled_aborts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		p    *fakePrompter
	}{
		{name: "at select", p: &fakePrompter{selectErr: prompt.ErrCancelled}},
		{name: "at confirmation", p: &fakePrompter{selected: 2, confirmErr: prompt.ErrCancelled}},
		{name: "at password", p: &fakePrompter{selected: 0, passwordErr: prompt.ErrCancelled}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out := new(bytes.Buffer)

			_, ok, err := resolveTarget(testConfig(), tt.p, out)

			require.NoError(t, err)
			assert.False(t, ok)
			assert.Contains(t, out.String(), "Cancelled.")
		})
	}
}

func TestResolveTarget_promptFailure_returnsError(t *testing.T) {
	t.Parallel()

	cause := errors.New("not a terminal")
	p := &fakePrompter{selectErr: cause}

	_, ok, err := resolveTarget(testConfig(), p, new(bytes.Buffer))

	require.ErrorIs(t, err, cause)
	assert.False(t, ok)
}

func TestResolveTarget_envAndPasswordFromConfig_skipPrompts(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Env = "dev"
	cfg.Password = "from-env"
	p := &fakePrompter{}

	dsn, ok, err := resolveTarget(cfg, p, new(bytes.Buffer))

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, dsn, "app:from-env@localhost")
	assert.Zero(t, p.selectCalls+p.passwordCalls)
}

func TestResolveTarget_presetEnvStillConfirms(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Env = "prod"
	cfg.Password = "pw"
	p := &fakePrompter{confirmed: false}

	_, ok, err := resolveTarget(cfg, p, new(bytes.Buffer))

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, p.confirmCalls)
}

func TestResolveTarget_unknownEnv_returnsError(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Env = "qa"

	_, _, err := resolveTarget(cfg, &fakePrompter{}, new(bytes.Buffer))

	require.ErrorIs(t, err, config.ErrUnknownEnvironment)
}

func TestResolveTarget_nothingConfigured_returnsError(t *testing.T) {
	t.Parallel()

	_, _, err := resolveTarget(config.New(), &fakePrompter{}, new(bytes.Buffer))

	require.ErrorIs(t, err, errDatabaseURLRequired)
}
