package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cliFlows = `
flows:
  welcome:
    steps:
      - type: message
        text: Hi
      - type: dynamic
        handler: summary
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestFlowsValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flows.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cliFlows), 0o600))

	out, err := execute(t, "flows", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "1 flows ok")
}

func TestFlowsValidateUnknownHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flows.yaml")
	body := "flows:\n  x:\n    steps:\n      - type: handler\n        handler: ghost\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	_, err := execute(t, "flows", "validate", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestFlowsValidateFromConfig(t *testing.T) {
	dir := t.TempDir()
	flows := filepath.Join(dir, "flows.yaml")
	require.NoError(t, os.WriteFile(flows, []byte(cliFlows), 0o600))
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("telegram:\n  token: t\nflows:\n  path: "+flows+"\n"), 0o600))

	out, err := execute(t, "--config", cfg, "flows", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, flows)
}

func TestMigrateRejectsMemoryStore(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("telegram:\n  token: t\nstore:\n  driver: memory\nflows:\n  path: f.yaml\n"), 0o600))

	_, err := execute(t, "-c", cfg, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no migrations")
}
