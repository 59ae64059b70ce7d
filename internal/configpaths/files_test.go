package configpaths_test

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/Alia5/airmouse/internal/configpaths"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigCandidatePathsRoutesUserPath(t *testing.T) {
	testCases := []struct {
		name  string
		path  string
		jsonP bool
		yamlP bool
		tomlP bool
	}{
		{"json", "/tmp/custom.json", true, false, false},
		{"yaml", "/tmp/custom.yaml", false, true, false},
		{"yml", "/tmp/custom.yml", false, true, false},
		{"toml", "/tmp/custom.toml", false, false, true},
		{"no extension", "/tmp/custom", true, false, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			j, y, to := configpaths.ConfigCandidatePaths(tc.path)
			assert.Equal(t, tc.jsonP, j[0] == tc.path)
			assert.Equal(t, tc.yamlP, y[0] == tc.path)
			assert.Equal(t, tc.tomlP, to[0] == tc.path)
		})
	}
}

func TestDirsFollowXDG(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("XDG variables are not used on windows")
	}
	cfg, data := t.TempDir(), t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", cfg)
	t.Setenv("XDG_DATA_HOME", data)

	dir, err := configpaths.DefaultConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg, "airmouse"), dir)

	dir, err = configpaths.DefaultDataDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(data, "airmouse"), dir)

	j, _, _ := configpaths.ConfigCandidatePaths("")
	assert.Contains(t, j, filepath.Join(cfg, "airmouse", "run.json"))
	assert.Contains(t, j, "/etc/airmouse/config.json")
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "yaml", configpaths.Extension("yml"))
	assert.Equal(t, "toml", configpaths.Extension("toml"))
	assert.Equal(t, "json", configpaths.Extension("anything"))
}
