// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "keycabinet "+Version)
}

func TestCheck_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	out, err := execute(t, "check", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "configuration valid")
	assert.Contains(t, out, "main_idle")
	assert.Contains(t, out, "Admin second factor")
}

func TestCheck_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[security]\npin_length = 99\n"), 0o600))

	out, err := execute(t, "check", "--config", path)
	require.Error(t, err)
	assert.Contains(t, out, "configuration invalid")
	assert.Contains(t, out, "security.pin_length")
}

func TestCheck_LogLevelOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	_, err := execute(t, "check", "--config", path, "--log-level", "loud")
	assert.Error(t, err)
}

func TestInit_WritesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kc", "config.toml")

	out, err := execute(t, "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote")
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	_, err = execute(t, "init", "--config", path)
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, "init", "--config", path, "--force")
	assert.NoError(t, err)
}

func TestTOTPSecret(t *testing.T) {
	out, err := execute(t, "totp-secret", "--account", "ops")
	require.NoError(t, err)
	assert.Contains(t, out, "otpauth://totp/")
	assert.Contains(t, out, "ops")
}

func TestRun_RequiresTerminal(t *testing.T) {
	if IsTTY() && IsStdoutTTY() {
		t.Skip("running on a terminal")
	}
	_, err := execute(t, "run")
	var tty *TTYRequiredError
	assert.ErrorAs(t, err, &tty)
}

func TestColorsEnabled_Env(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	t.Setenv("FORCE_COLOR", "1")
	assert.False(t, ColorsEnabled())

	t.Setenv("NO_COLOR", "")
	assert.True(t, ColorsEnabled())
}
