package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/livemodel/internal/config"
	lmerrors "github.com/vango-dev/livemodel/internal/errors"
	"github.com/vango-dev/livemodel/pkg/loader"
)

func execute(t *testing.T, args ...string) ([]byte, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.Bytes(), err
}

func golden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestDemoGolden(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{name: "demo_counter", args: []string{"demo", "counter"}},
		{name: "demo_counter_one_step", args: []string{"demo", "counter", "--steps", "1"}},
		{name: "demo_todos", args: []string{"demo", "todos"}},
		{
			name: "demo_todos_strict",
			args: []string{"demo", "todos"},
			env:  map[string]string{"LIVEMODEL_ENGINE_KEY_COMPARE": "strict"},
		},
		{name: "demo_load", args: []string{"demo", "load", "app.yaml", "--dir", "testdata"}},
		{
			name: "demo_load",
			args: []string{"demo", "load", "app.yaml"},
			env:  map[string]string{"LIVEMODEL_LOADER_DIR": "testdata", "LIVEMODEL_ENGINE_SCHEDULER": "sync"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			out, err := execute(t, tt.args...)
			require.NoError(t, err)
			golden(t).Assert(t, tt.name, out)
		})
	}
}

func TestDemoLoadMissing(t *testing.T) {
	_, err := execute(t, "demo", "load", "missing.yaml", "--dir", "testdata")
	require.Error(t, err)
	assert.ErrorIs(t, err, loader.ErrNotFound)
}

func TestUnknownDemo(t *testing.T) {
	_, err := execute(t, "demo", "dice")
	require.Error(t, err)
	assert.Equal(t, "E310", lmerrors.Code(err))
}

func TestInvalidConfig(t *testing.T) {
	t.Setenv("LIVEMODEL_LOG_LEVEL", "loud")
	_, err := execute(t, "demo", "counter")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
}

func TestMissingConfigFile(t *testing.T) {
	_, err := execute(t, "demo", "counter", "--config", filepath.Join(t.TempDir(), "livemodel.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E301")
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.ConfigFileName)

	out, err := execute(t, "config", "init", "--path", path)
	require.NoError(t, err)
	assert.Contains(t, string(out), path)

	_, err = execute(t, "config", "init", "--path", path)
	require.Error(t, err)

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultDevtoolsAddr, cfg.Devtools.Addr)

	t.Setenv("LIVEMODEL_DEVTOOLS_ADDR", ":9000")
	out, err = execute(t, "config", "show", "--config", path)
	require.NoError(t, err)

	shown := filepath.Join(t.TempDir(), "shown.yaml")
	require.NoError(t, os.WriteFile(shown, out, 0o644))
	cfg, err = config.LoadFile(shown)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Devtools.Addr)
	assert.Equal(t, "shallow", cfg.Engine.KeyCompare)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", string(out))
}
