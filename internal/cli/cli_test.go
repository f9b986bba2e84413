package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cliFixture = `
packages:
  - name: bug-versions
    tags:
      latest: 1.0.0
    versions:
      - manifest:
          version: 1.0.0
          config:
            bug-versions:
              colors:
                1.4.1:
                  version: 1.4.0
                  reason: sabotaged release
  - name: colors
    tags:
      latest: 1.4.1
    block: maintainer sabotage
    versions:
      - manifest:
          version: 1.4.0
      - manifest:
          version: 1.4.1
proxy_caches:
  - fullname: colors
    file_type: package.json
    file_path: colors/package.json
`

func writeCLIFixture(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "registry.yaml")
	require.NoError(t, os.WriteFile(snapshot, []byte(cliFixture), 0o644))
	distDir := filepath.Join(dir, "dists")
	require.NoError(t, os.MkdirAll(filepath.Join(distDir, "colors"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(distDir, "colors", "package.json"), []byte("{}"), 0o644))
	return snapshot, distDir
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// ---------- Command tree tests ----------

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCommand()
	names := make([]string, 0, len(root.Commands()))
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	expected := []string{
		"resolve", "manifest", "manifests",
		"block-info", "fix-bug-versions", "import",
	}
	for _, name := range expected {
		assert.Contains(t, names, name, "missing subcommand: %s", name)
	}
}

func TestRootCommandVersion(t *testing.T) {
	root := newRootCommand()
	assert.Equal(t, "dev", root.Version)
}

func TestRootCommandBackendFlags(t *testing.T) {
	root := newRootCommand()
	flags := []string{
		"config", "log-level", "backend", "snapshot", "dist-dir",
		"mysql-addr", "mysql-port", "mysql-user", "mysql-password", "mysql-db",
	}
	for _, name := range flags {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), "missing flag: %s", name)
	}
}

func TestReadCommandFlags(t *testing.T) {
	backend := &backendOptions{}
	resolve := newResolveCommand(backend)
	assert.NotNil(t, resolve.Flags().Lookup("with-bug-version"))
	assert.Nil(t, resolve.Flags().Lookup("full"))

	for _, cmd := range []*cobra.Command{newManifestCommand(backend), newManifestsCommand(backend)} {
		assert.NotNil(t, cmd.Flags().Lookup("with-bug-version"), cmd.Name())
		assert.NotNil(t, cmd.Flags().Lookup("full"), cmd.Name())
	}

	fix := newFixBugVersionsCommand(backend)
	flag := fix.Flags().Lookup("package")
	require.NotNil(t, flag)
	assert.Equal(t, "bug-versions", flag.DefValue)
}

// ---------- Command runs ----------

func TestResolveCommand(t *testing.T) {
	snapshot, _ := writeCLIFixture(t)

	out, err := runRoot(t, "resolve", "colors", "--snapshot", snapshot)
	require.NoError(t, err)
	assert.Equal(t, "1.4.0\n", out)

	out, err = runRoot(t, "resolve", "colors@latest", "--snapshot", snapshot, "--with-bug-version=false")
	require.NoError(t, err)
	assert.Equal(t, "1.4.1\n", out)

	_, err = runRoot(t, "resolve", "colors@^2.0.0", "--snapshot", snapshot)
	require.Error(t, err)
	assert.Equal(t, 4, exitCodeForError(err))
}

func TestManifestCommand(t *testing.T) {
	snapshot, _ := writeCLIFixture(t)

	out, err := runRoot(t, "manifest", "colors@1.4.1", "--snapshot", snapshot, "--full")
	require.NoError(t, err)
	var manifest map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &manifest))
	assert.Equal(t, "colors", manifest["name"])
	assert.Equal(t, "1.4.0", manifest["version"])
	assert.Equal(t, "[WARNING] Use 1.4.0 instead of 1.4.1, reason: sabotaged release", manifest["deprecated"])
}

func TestManifestsCommand(t *testing.T) {
	snapshot, _ := writeCLIFixture(t)

	out, err := runRoot(t, "manifests", "colors", "--snapshot", snapshot)
	require.NoError(t, err)
	var manifests map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &manifests))
	require.Len(t, manifests, 2)
	assert.Equal(t, "1.4.0", manifests["1.4.1"]["version"])
}

func TestBlockInfoCommand(t *testing.T) {
	snapshot, _ := writeCLIFixture(t)

	out, err := runRoot(t, "block-info", "colors", "--snapshot", snapshot)
	require.NoError(t, err)
	assert.Equal(t, "colors: blocked, reason: maintainer sabotage\n", out)

	out, err = runRoot(t, "block-info", "bug-versions", "--snapshot", snapshot)
	require.NoError(t, err)
	assert.Equal(t, "bug-versions: not blocked\n", out)
}

func TestFixBugVersionsCommand(t *testing.T) {
	snapshot, distDir := writeCLIFixture(t)

	out, err := runRoot(t, "fix-bug-versions", "--snapshot", snapshot, "--dist-dir", distDir)
	require.NoError(t, err)
	assert.Equal(t, "cleaned 1 package caches (0 failed)\n", out)
	_, err = os.Stat(filepath.Join(distDir, "colors", "package.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	out, err = runRoot(t, "fix-bug-versions", "--snapshot", snapshot, "--package", "colors")
	require.NoError(t, err)
	assert.Equal(t, "nothing to do for colors\n", out)
}

func TestCommandArgs(t *testing.T) {
	_, err := runRoot(t, "resolve")
	require.Error(t, err)
	_, err = runRoot(t, "block-info", "a", "b")
	require.Error(t, err)
}

// ---------- Helper function tests ----------

func TestResolveString(t *testing.T) {
	tests := []struct {
		name     string
		cmd      *cobra.Command
		value    string
		expected string
	}{
		{
			name:     "nil cmd with value returns value",
			cmd:      nil,
			value:    "explicit",
			expected: "explicit",
		},
		{
			name:     "nil cmd empty value returns empty",
			cmd:      nil,
			value:    "",
			expected: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveString(tt.cmd, tt.value, "test_key", "test-flag")
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolveBool(t *testing.T) {
	got := resolveBool(nil, true, "test_key", "test-flag")
	assert.True(t, got)

	got = resolveBool(nil, false, "test_key", "test-flag")
	assert.False(t, got)
}

func TestResolveInt(t *testing.T) {
	got := resolveInt(nil, 42, "test_key", "test-flag")
	assert.Equal(t, 42, got)
}

func TestFlagChanged(t *testing.T) {
	assert.False(t, flagChanged(nil, "anything"), "nil cmd should return false")
	assert.False(t, flagChanged(nil, ""), "nil cmd with empty name")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("myflag", "", "test flag")
	assert.False(t, flagChanged(cmd, "myflag"), "unchanged flag")
	assert.False(t, flagChanged(cmd, "nonexistent"), "nonexistent flag")
}

func TestFlagChangedAfterSet(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("myflag", "", "test flag")
	require.NoError(t, cmd.Flags().Set("myflag", "val"))
	assert.True(t, flagChanged(cmd, "myflag"))
}

func TestMySQLConfigFromFlags(t *testing.T) {
	opts := &backendOptions{}
	cmd := &cobra.Command{Use: "test"}
	addBackendFlags(cmd, opts)
	require.NoError(t, cmd.PersistentFlags().Set("mysql-addr", "db.internal"))
	require.NoError(t, cmd.PersistentFlags().Set("mysql-port", "3307"))

	cfg := mysqlConfig(cmd, opts)
	assert.Equal(t, "db.internal", cfg.Addr)
	assert.Equal(t, uint(3307), cfg.Port)
}

// ---------- Exit code tests ----------

func TestExitCodeForError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name: "invalid argument",
			err: errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("registry does not support spec: a@github:x/y"),
			expected: 2,
		},
		{
			name: "already exists",
			err: errbuilder.New().
				WithCode(errbuilder.CodeAlreadyExists).
				WithMsg("dup"),
			expected: 2,
		},
		{
			name: "failed precondition",
			err: errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("mysql is not reachable"),
			expected: 3,
		},
		{
			name: "permission denied",
			err: errbuilder.New().
				WithCode(errbuilder.CodePermissionDenied).
				WithMsg("nope"),
			expected: 3,
		},
		{
			name: "not found",
			err: errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg("no matching version for a@^9.0.0"),
			expected: 4,
		},
		{
			name: "internal error",
			err: errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("boom"),
			expected: 5,
		},
		{
			name:     "unknown error",
			err:      assert.AnError,
			expected: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := exitCodeForError(tt.err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name: "errbuilder with msg",
			err: errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("something broke"),
			expected: "something broke",
		},
		{
			name:     "plain error",
			err:      assert.AnError,
			expected: assert.AnError.Error(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errorMessage(tt.err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
