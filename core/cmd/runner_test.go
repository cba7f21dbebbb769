package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/flowbot/core/config"
	coretelegram "github.com/m3rciful/flowbot/core/telegram"
)

type stubConfig struct{ core coreconfig.Config }

func (s *stubConfig) CoreConfig() *coreconfig.Config { return &s.core }

type stubApp struct {
	closed bool
}

func (a *stubApp) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{}, nil
}

func (a *stubApp) Close() error {
	a.closed = true
	return nil
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("FLOWBOT_TEST_CONFIG", "from-env.yaml")
	assert.Equal(t, "flag.yaml", ResolveConfigPath("flag.yaml", "FLOWBOT_TEST_CONFIG", "def.yaml"))
	assert.Equal(t, "from-env.yaml", ResolveConfigPath("", "FLOWBOT_TEST_CONFIG", "def.yaml"))
	assert.Equal(t, "def.yaml", ResolveConfigPath("", "FLOWBOT_TEST_UNSET", "def.yaml"))
}

func TestRunWiresLifecycle(t *testing.T) {
	var loaded string
	app := &stubApp{}
	var ran bool
	err := Run(Options{
		ConfigPath: "explicit.yaml",
		LoadConfig: func(path string) (ConfigCarrier, error) {
			loaded = path
			return &stubConfig{}, nil
		},
		Bootstrap:      func(ConfigCarrier) (TelegramApp, error) { return app, nil },
		ShutdownLogger: func() error { return nil },
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			ran = true
			require.NotNil(t, opts.OnStart)
			require.NotNil(t, opts.OnStop)
			require.NoError(t, opts.OnStart(ctx, coretelegram.Runtime{}))
			return opts.OnStop(ctx, coretelegram.Runtime{})
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "explicit.yaml", loaded)
	assert.True(t, ran)
	assert.True(t, app.closed)
}

func TestRunBootstrapError(t *testing.T) {
	boom := errors.New("boom")
	err := Run(Options{
		DefaultConfigPath: "c.yaml",
		LoadConfig:        func(string) (ConfigCarrier, error) { return &stubConfig{}, nil },
		Bootstrap:         func(ConfigCarrier) (TelegramApp, error) { return nil, boom },
	})
	require.ErrorIs(t, err, boom)
}

func TestRunRequiresLoaders(t *testing.T) {
	require.Error(t, Run(Options{}))
}
