package version

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func (f *fakeRunner) Run(_ context.Context, _ string, name string, args ...string) ([]byte, error) {
	cmd := strings.Join(append([]string{name}, args...), " ")
	f.calls = append(f.calls, cmd)
	if err := f.errs[cmd]; err != nil {
		return nil, err
	}
	return []byte(f.outputs[cmd]), nil
}

const (
	describeCmd  = "git describe --tags --match [0-9]*"
	statusCmd    = "git status"
	diffIndexCmd = "git diff-index --name-only HEAD"
)

func gitDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	return dir
}

func TestFoldDescribe(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.2.0", "1.2.0"},
		{"1.2.0-3-gabc123", "1.2.0.post3"},
		{"0.1-12-g0123456", "0.1.post12"},
		{"1.0-rc1", "1.0.postrc1"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FoldDescribe(tt.in))
		})
	}
}

func TestDescribe_Git(t *testing.T) {
	t.Run("ExactTag", func(t *testing.T) {
		r := &fakeRunner{outputs: map[string]string{describeCmd: "1.2.0\n"}}
		v, err := Describe(context.Background(), WithDir(gitDir(t)), WithRunner(r))
		require.NoError(t, err)
		assert.Equal(t, "1.2.0", v)
		assert.Equal(t, []string{describeCmd, statusCmd, diffIndexCmd}, r.calls)
	})

	t.Run("CommitsAfterTag", func(t *testing.T) {
		r := &fakeRunner{outputs: map[string]string{describeCmd: "1.2.0-3-gabc123\n"}}
		v, err := Describe(context.Background(), WithDir(gitDir(t)), WithRunner(r))
		require.NoError(t, err)
		assert.Equal(t, "1.2.0.post3", v)
	})

	t.Run("DirtyTree", func(t *testing.T) {
		r := &fakeRunner{outputs: map[string]string{
			describeCmd:  "1.2.0-3-gabc123\n",
			diffIndexCmd: "setup.py\n",
		}}
		v, err := Describe(context.Background(), WithDir(gitDir(t)), WithRunner(r))
		require.NoError(t, err)
		assert.Equal(t, "1.2.0.post3.dev1", v)
	})

	t.Run("StatusFailureIgnored", func(t *testing.T) {
		r := &fakeRunner{
			outputs: map[string]string{describeCmd: "2.0.0"},
			errs:    map[string]error{statusCmd: errors.New("index.lock exists")},
		}
		v, err := Describe(context.Background(), WithDir(gitDir(t)), WithRunner(r))
		require.NoError(t, err)
		assert.Equal(t, "2.0.0", v)
	})

	t.Run("DescribeFails", func(t *testing.T) {
		errNoTags := errors.New("no names found")
		r := &fakeRunner{errs: map[string]error{describeCmd: errNoTags}}
		_, err := Describe(context.Background(), WithDir(gitDir(t)), WithRunner(r))
		require.Error(t, err)
		assert.ErrorIs(t, err, errNoTags)
		assert.Contains(t, err.Error(), "unable to get version number from git tags")
		assert.Equal(t, []string{describeCmd}, r.calls)
	})

	t.Run("DiffIndexFails", func(t *testing.T) {
		errBadHead := errors.New("bad revision 'HEAD'")
		r := &fakeRunner{
			outputs: map[string]string{describeCmd: "1.0.0"},
			errs:    map[string]error{diffIndexCmd: errBadHead},
		}
		_, err := Describe(context.Background(), WithDir(gitDir(t)), WithRunner(r))
		assert.ErrorIs(t, err, errBadHead)
		assert.Contains(t, err.Error(), "unable to get git index status")
	})
}

func TestDescribe_PkgInfo(t *testing.T) {
	t.Run("ReadsVersion", func(t *testing.T) {
		dir := t.TempDir()
		pkgInfo := "Metadata-Version: 2.1\nName: pyrefactoring\nVersion: 0.3.1.post2\nLicense: GNU AGPL v3.0\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "PKG-INFO"), []byte(pkgInfo), 0o644))

		r := &fakeRunner{}
		v, err := Describe(context.Background(), WithDir(dir), WithRunner(r))
		require.NoError(t, err)
		assert.Equal(t, "0.3.1.post2", v)
		assert.Empty(t, r.calls)
	})

	t.Run("GitFileIsNotARepository", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".git"), []byte("gitdir: ../x"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "PKG-INFO"), []byte("Version: 1.0\n"), 0o644))

		v, err := Describe(context.Background(), WithDir(dir), WithRunner(&fakeRunner{}))
		require.NoError(t, err)
		assert.Equal(t, "1.0", v)
	})

	t.Run("MissingVersionLine", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "PKG-INFO"), []byte("Name: x\n"), 0o644))

		_, err := Describe(context.Background(), WithDir(dir))
		assert.ErrorIs(t, err, ErrNoVersion)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := Describe(context.Background(), WithDir(t.TempDir()))
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}
