package main

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphogm/internal/config"
	"graphogm/internal/driver"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(args...)
	require.NoError(t, err)
	return out
}

// execute runs the root command against a fresh in-memory store
func execute(args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--uri", "memory:", "--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

const fixtureYAML = `
nodes:
  - key: baikonur
    labels: [Location]
    properties:
      ref: BAI
      name: Baikonur
  - key: sputnik1
    labels: [Satellite]
    properties:
      ref: SPU1
      name: Sputnik 1
relationships:
  - from: sputnik1
    to: baikonur
    type: LOCATION
`

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	write := func(name, data string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(data), 0644))
		return path
	}
	fixturePath := write("sample.yaml", fixtureYAML)
	scriptPath := write("init.cql", "CREATE (:Program {name: 'Sputnik'});\nCREATE (:Program {name: 'Vostok'});\n")

	tests := []struct {
		name    string
		args    []string
		want    []string
		wantErr bool
		errIs   error
	}{
		{
			name: "import fixture",
			args: []string{"import", fixturePath},
			want: []string{"Imported 2 nodes and 1 relationships"},
		},
		{
			name:    "import missing fixture",
			args:    []string{"import", filepath.Join(dir, "missing.yaml")},
			wantErr: true,
			errIs:   fs.ErrNotExist,
		},
		{
			name:    "import cypher script needs a server",
			args:    []string{"import", scriptPath},
			wantErr: true,
			errIs:   driver.ErrUnsupportedStatement,
		},
		{
			name:    "query needs a server",
			args:    []string{"query", "MATCH (n) RETURN count(n)", "-p", "name=Vostok"},
			wantErr: true,
			errIs:   driver.ErrUnsupportedStatement,
		},
		{
			name:    "query rejects malformed parameters",
			args:    []string{"query", "RETURN $x", "-p", "novalue"},
			wantErr: true,
		},
		{
			name: "constraints on an empty store",
			args: []string{"constraints"},
			want: []string{"LABEL", "PROPERTY"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(tt.args...)
			if !tt.wantErr {
				require.NoError(t, err)
			} else if tt.errIs != nil {
				require.ErrorIs(t, err, tt.errIs)
			} else {
				require.Error(t, err)
			}
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestImportThenExportSeesFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.db")
	fixturePath := filepath.Join(t.TempDir(), "sample.yaml")
	require.NoError(t, os.WriteFile(fixturePath, []byte(fixtureYAML), 0644))

	run(t, "--uri", "file:"+path, "import", fixturePath)
	out := run(t, "--uri", "file:"+path, "export", "--label", "Satellite", "--format", "json")
	assert.Contains(t, out, `"Sputnik 1"`)
	assert.NotContains(t, out, `"Baikonur"`)
}

func TestSatellitesCommand(t *testing.T) {
	out := run(t, "--seed", "satellites", "--manned")
	lines := strings.Split(strings.TrimSpace(out), "\n")

	require.Len(t, lines, 6)
	assert.Contains(t, lines[0], "PROGRAM")
	assert.Contains(t, lines[1], "Aurora 7")
	assert.Contains(t, lines[1], "Mercury")
	assert.Contains(t, lines[5], "Vostok 6")
}

func TestProgramsCommandDescending(t *testing.T) {
	out := run(t, "--seed", "programs", "--desc")
	lines := strings.Split(strings.TrimSpace(out), "\n")

	require.Len(t, lines, 5)
	assert.Contains(t, lines[1], "Vostok")
	assert.Contains(t, lines[1], "Vostok 1, Vostok 2, Vostok 6")
	assert.Contains(t, lines[4], "Explorer")
}

func TestExportCommand(t *testing.T) {
	out := run(t, "--seed", "export", "--label", "Program", "--format", "json")
	assert.Contains(t, out, `"Sputnik"`)
	assert.NotContains(t, out, `"Sputnik 1"`)
}

func TestConfigCommand(t *testing.T) {
	t.Setenv(config.EnvConfigPath, "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	chdir(t, t.TempDir())

	out := run(t, "config")
	assert.Contains(t, out, "Driver: memory (memory:)")
	assert.Contains(t, out, "Config: (defaults)")
	assert.Contains(t, out, "Searched:")
	assert.Contains(t, out, filepath.Join("graphogm", "config.yaml"))
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"name=Vostok 1", "ref=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Vostok 1", "ref": "a=b"}, params)

	_, err = parseParams([]string{"novalue"})
	assert.Error(t, err)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ogm", "graphogm.yaml")
	out := run(t, "config", "init", path)
	assert.Contains(t, out, "Wrote "+path)

	cfg, _, err := config.LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "memory:", cfg.Driver.URI)
	assert.Equal(t, "error", cfg.Logging.Level)

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"config", "init", path})
	assert.Error(t, cmd.Execute())
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
