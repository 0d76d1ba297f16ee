package launch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tomlLaunch = `
[defaults]
stopOnEntry = true
maxDepth = 5

[[configurations]]
name = "api"
kind = "delve"
request = "launch"
program = "./cmd/api"
buildFlags = "-tags=dev"

[[configurations]]
name = "worker"
kind = "python"
request = "launch"
module = "worker"
stopOnEntry = false
`

func TestParseTOML(t *testing.T) {
	file, err := Parse("launch.toml", []byte(tomlLaunch))
	require.NoError(t, err)
	require.Len(t, file.Configurations, 2)

	api := file.Configurations[0]
	assert.Equal(t, "api", api.Name)
	assert.Equal(t, "delve", api.Kind)
	assert.Equal(t, "./cmd/api", api.Program)
	assert.True(t, api.StopOnEntry, "defaults should apply")
	assert.Equal(t, 5, api.MaxDepth, "defaults should apply")
	assert.Equal(t, "-tags=dev", api.Extra["buildFlags"], "unknown keys go to Extra")

	worker := file.Configurations[1]
	assert.Equal(t, "worker", worker.Module)
	assert.False(t, worker.StopOnEntry, "configuration overrides default")
}

func TestParseYAML(t *testing.T) {
	content := `
defaults:
  maxDepth: 3
configurations:
  - name: app
    kind: nodejs
    request: launch
    program: ./index.js
    port: 8123
    skipFiles:
      - "<node_internals>/**"
`
	file, err := Parse("launch.yaml", []byte(content))
	require.NoError(t, err)
	require.Len(t, file.Configurations, 1)

	app := file.Configurations[0]
	assert.Equal(t, "nodejs", app.Kind)
	assert.Equal(t, 8123, app.Port)
	assert.Equal(t, 3, app.MaxDepth)
	assert.Contains(t, app.Extra, "skipFiles")
}

func TestParseJSON(t *testing.T) {
	content := `{
  "configurations": [
    {"name": "jvm", "kind": "java", "request": "attach", "port": 5005, "projectName": "demo"}
  ]
}`
	file, err := Parse("launch.json", []byte(content))
	require.NoError(t, err)
	require.Len(t, file.Configurations, 1)
	assert.Equal(t, "java", file.Configurations[0].Kind)
	assert.Equal(t, "demo", file.Configurations[0].Extra["projectName"])
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse("launch.toml", []byte("configurations = ["))
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "launch.toml", perr.Path)
}

func TestParseRejectsUnnamed(t *testing.T) {
	_, err := Parse("launch.toml", []byte("[[configurations]]\nkind = \"delve\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no name")
}

func TestLoadMissingFile(t *testing.T) {
	file, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Nil(t, file)
}

func TestLoadFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "launch.toml")
	require.NoError(t, os.WriteFile(path, []byte(tomlLaunch), 0o644))

	file, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, file)
	assert.Equal(t, path, file.Path)
	assert.Equal(t, []string{"api", "worker"}, file.Names())
}

func TestSelect(t *testing.T) {
	file, err := Parse("launch.toml", []byte(tomlLaunch))
	require.NoError(t, err)

	spec, err := file.Select("worker")
	require.NoError(t, err)
	assert.Equal(t, "worker", spec.Name)

	_, err = file.Select("missing")
	assert.Error(t, err)

	_, err = file.Select("")
	assert.Error(t, err, "empty name is ambiguous with two configurations")

	single, err := Parse("launch.toml", []byte("[[configurations]]\nname = \"only\"\nkind = \"delve\"\n"))
	require.NoError(t, err)
	spec, err = single.Select("")
	require.NoError(t, err)
	assert.Equal(t, "only", spec.Name)
}
