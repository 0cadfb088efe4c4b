package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMember struct {
	name string
	deps []string
}

func (f fakeMember) CallableName() string  { return f.name }
func (f fakeMember) Dependencies() []string { return f.deps }

func TestTupleIDIsOrderIndependent(t *testing.T) {
	a := fakeMember{name: "assess"}
	b := fakeMember{name: "load_data"}

	t1 := FormTuple(a, b)
	t2 := FormTuple(b, a)

	assert.Equal(t, t1.ID(), t2.ID())
	assert.Equal(t, "assess-load_data", t1.ID())
}

func TestFormTupleDeduplicates(t *testing.T) {
	a := fakeMember{name: "assess"}
	tup := FormTuple(a, a, nil)
	assert.Len(t, tup.Members, 1)
}

func TestCombinedDependenciesUnionSorted(t *testing.T) {
	a := fakeMember{name: "assess", deps: []string{"github.com/z/z", "github.com/a/a"}}
	b := fakeMember{name: "load_data", deps: []string{"github.com/a/a", "github.com/m/m"}}
	tup := FormTuple(a, b)

	assert.Equal(t, []string{"github.com/a/a", "github.com/m/m", "github.com/z/z"}, tup.CombinedDependencies())
}

func TestManifestIdempotence(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "assess-load_data.txt")

	require.NoError(t, writeManifest(manifestPath, "assess-load_data", []string{"github.com/a/a"}))

	id, ok, err := readManifestID(manifestPath)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "assess-load_data", id)
}

func TestReadManifestIDMissingFile(t *testing.T) {
	_, ok, err := readManifestID(filepath.Join(t.TempDir(), "nope.txt"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReadManifestIDUnrecognizedPrefixTreatedAsAbsent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stale.txt")
	require.NoError(t, os.WriteFile(path, []byte("not a manifest\n"), 0o644))

	_, ok, err := readManifestID(path)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveReusesExistingSandboxWithoutReinstall(t *testing.T) {
	workDir := t.TempDir()
	p := NewProvisioner(workDir, noopLogger{})
	p.InstallOutput = os.Stdout

	manifestPath := filepath.Join(workDir, "assess-load_data.txt")
	require.NoError(t, writeManifest(manifestPath, "assess-load_data", nil))

	tup := FormTuple(fakeMember{name: "assess"}, fakeMember{name: "load_data"})
	id, dir, err := p.Resolve(t.Context(), tup)
	require.NoError(t, err)
	assert.Equal(t, "assess-load_data", id)
	assert.Equal(t, filepath.Join(workDir, "assess-load_data"), dir)

	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr), "Resolve must not materialize a sandbox whose manifest already exists")
}

type noopLogger struct{}

func (noopLogger) Info(string)        {}
func (noopLogger) OK(string)          {}
func (noopLogger) Warn(string)        {}
func (noopLogger) Error(s string) error { return assertErr(s) }

type assertErr string

func (e assertErr) Error() string { return string(e) }
