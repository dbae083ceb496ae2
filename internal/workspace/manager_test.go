package workspace

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/werkraum/internal/logger"
)

func newTestManager(t *testing.T, opts Options) *Manager {
	t.Helper()

	if opts.Root == "" {
		opts.Root = t.TempDir()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewWriter(logger.LevelError, io.Discard, "")
	}

	m, err := NewManager(context.Background(), opts)
	require.NoError(t, err)
	return m
}

func TestWriteReadRoundTrip(t *testing.T) {
	m := newTestManager(t, Options{})
	ctx := context.Background()

	ok, err := m.WriteFile(ctx, "notes/a.txt", []byte("hello"), WriteOptions{})
	require.NoError(t, err)
	require.True(t, ok)

	data, err := m.ReadFile(ctx, "notes/a.txt", false)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestWriteRejectsDeniedContent(t *testing.T) {
	m := newTestManager(t, Options{})
	ctx := context.Background()

	ok, err := m.WriteFile(ctx, "script.py", []byte("import subprocess\n"), WriteOptions{})
	require.ErrorIs(t, err, ErrContentRejected)
	assert.False(t, ok)

	// The rejected write must leave nothing behind
	exists, err := m.FileExists(ctx, "script.py")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWriteSkipContentCheck(t *testing.T) {
	m := newTestManager(t, Options{})
	ctx := context.Background()

	ok, err := m.WriteFile(ctx, "script.py", []byte("import subprocess\n"), WriteOptions{SkipContentCheck: true})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWriteBinaryPayloadSkipsContentScan(t *testing.T) {
	m := newTestManager(t, Options{})
	ctx := context.Background()

	payload := append([]byte("eval("), 0x00, 0x01, 0x02)
	ok, err := m.WriteFile(ctx, "blob.bin", payload, WriteOptions{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWriteToDirectoryFails(t *testing.T) {
	m := newTestManager(t, Options{})
	ctx := context.Background()

	_, err := m.CreateDirectory(ctx, "dir", MutateOptions{})
	require.NoError(t, err)

	_, err = m.WriteFile(ctx, "dir", []byte("x"), WriteOptions{})
	assert.ErrorIs(t, err, ErrIsADirectory)
}

func TestAppend(t *testing.T) {
	m := newTestManager(t, Options{})
	ctx := context.Background()

	_, err := m.WriteFile(ctx, "log.txt", []byte("one\n"), WriteOptions{})
	require.NoError(t, err)

	ok, err := m.WriteFile(ctx, "log.txt", []byte("two\n"), WriteOptions{Append: true})
	require.NoError(t, err)
	require.True(t, ok)

	data, err := m.ReadFile(ctx, "log.txt", false)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(data))

	// Appending to a missing file creates it
	ok, err = m.WriteFile(ctx, "fresh.txt", []byte("start"), WriteOptions{Append: true})
	require.NoError(t, err)
	require.True(t, ok)

	data, err = m.ReadFile(ctx, "fresh.txt", false)
	require.NoError(t, err)
	assert.Equal(t, "start", string(data))
}

func TestConfirmationGateDeclines(t *testing.T) {
	var asked []string
	m := newTestManager(t, Options{
		RequireConfirmation: true,
		Confirm: func(operation, path, detail string) bool {
			asked = append(asked, operation)
			return false
		},
	})
	ctx := context.Background()

	ok, err := m.WriteFile(ctx, "a.txt", []byte("x"), WriteOptions{})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"write"}, asked)

	exists, err := m.FileExists(ctx, "a.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestConfirmationGateAccepts(t *testing.T) {
	m := newTestManager(t, Options{
		RequireConfirmation: true,
		Confirm:             func(operation, path, detail string) bool { return true },
	})
	ctx := context.Background()

	ok, err := m.WriteFile(ctx, "a.txt", []byte("x"), WriteOptions{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNilGateDeniesWhenRequired(t *testing.T) {
	m := newTestManager(t, Options{RequireConfirmation: true})
	ctx := context.Background()

	ok, err := m.WriteFile(ctx, "a.txt", []byte("x"), WriteOptions{})
	require.NoError(t, err)
	assert.False(t, ok)

	// Per-call override skips the gate entirely
	ok, err = m.WriteFile(ctx, "a.txt", []byte("x"), WriteOptions{Confirm: ConfirmNever})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConfirmAlwaysOverridesDefault(t *testing.T) {
	denied := false
	m := newTestManager(t, Options{
		RequireConfirmation: false,
		Confirm: func(operation, path, detail string) bool {
			denied = true
			return false
		},
	})
	ctx := context.Background()

	ok, err := m.DeleteFile(ctx, "missing.txt", MutateOptions{Confirm: ConfirmAlways})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, ok)
	assert.False(t, denied, "gate must not run before existence checks")

	_, err = m.WriteFile(ctx, "a.txt", []byte("x"), WriteOptions{Confirm: ConfirmNever})
	require.NoError(t, err)

	ok, err = m.DeleteFile(ctx, "a.txt", MutateOptions{Confirm: ConfirmAlways})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, denied)
}

func TestDeleteFile(t *testing.T) {
	m := newTestManager(t, Options{})
	ctx := context.Background()

	_, err := m.WriteFile(ctx, "a.txt", []byte("x"), WriteOptions{})
	require.NoError(t, err)

	ok, err := m.DeleteFile(ctx, "a.txt", MutateOptions{})
	require.NoError(t, err)
	require.True(t, ok)

	exists, err := m.FileExists(ctx, "a.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = m.DeleteFile(ctx, "a.txt", MutateOptions{})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.CreateDirectory(ctx, "d", MutateOptions{})
	require.NoError(t, err)
	_, err = m.DeleteFile(ctx, "d", MutateOptions{})
	assert.ErrorIs(t, err, ErrIsADirectory)
}

func TestRenameFile(t *testing.T) {
	m := newTestManager(t, Options{})
	ctx := context.Background()

	_, err := m.WriteFile(ctx, "a.txt", []byte("content"), WriteOptions{})
	require.NoError(t, err)

	ok, err := m.RenameFile(ctx, "a.txt", "sub/b.txt", MutateOptions{})
	require.NoError(t, err)
	require.True(t, ok)

	data, err := m.ReadFile(ctx, "sub/b.txt", false)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))

	exists, err := m.FileExists(ctx, "a.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRenameRefusesOverwrite(t *testing.T) {
	m := newTestManager(t, Options{})
	ctx := context.Background()

	_, err := m.WriteFile(ctx, "a.txt", []byte("aaa"), WriteOptions{})
	require.NoError(t, err)
	_, err = m.WriteFile(ctx, "b.txt", []byte("bbb"), WriteOptions{})
	require.NoError(t, err)

	_, err = m.RenameFile(ctx, "a.txt", "b.txt", MutateOptions{})
	require.ErrorIs(t, err, ErrAlreadyExists)

	// Both files untouched
	data, err := m.ReadFile(ctx, "a.txt", false)
	require.NoError(t, err)
	assert.Equal(t, "aaa", string(data))
	data, err = m.ReadFile(ctx, "b.txt", false)
	require.NoError(t, err)
	assert.Equal(t, "bbb", string(data))
}

func TestRenameMissingSource(t *testing.T) {
	m := newTestManager(t, Options{})

	_, err := m.RenameFile(context.Background(), "ghost.txt", "b.txt", MutateOptions{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateDirectory(t *testing.T) {
	m := newTestManager(t, Options{})
	ctx := context.Background()

	ok, err := m.CreateDirectory(ctx, "a/b/c", MutateOptions{})
	require.NoError(t, err)
	require.True(t, ok)

	// Existing directory is a no-op success
	ok, err = m.CreateDirectory(ctx, "a/b/c", MutateOptions{})
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = m.WriteFile(ctx, "file.txt", []byte("x"), WriteOptions{})
	require.NoError(t, err)
	_, err = m.CreateDirectory(ctx, "file.txt", MutateOptions{})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestListDirectory(t *testing.T) {
	m := newTestManager(t, Options{})
	ctx := context.Background()

	for _, name := range []string{"b.md", "a.txt", ".hidden", "c.txt"} {
		_, err := m.WriteFile(ctx, name, []byte("x"), WriteOptions{})
		require.NoError(t, err)
	}
	_, err := m.CreateDirectory(ctx, "sub", MutateOptions{})
	require.NoError(t, err)

	entries, err := m.ListDirectory(ctx, ".", "", false)
	require.NoError(t, err)
	names := entryNames(entries)
	assert.Equal(t, []string{"a.txt", "b.md", "c.txt", "sub"}, names)

	entries, err = m.ListDirectory(ctx, ".", "", true)
	require.NoError(t, err)
	assert.Equal(t, []string{".hidden", "a.txt", "b.md", "c.txt", "sub"}, entryNames(entries))

	entries, err = m.ListDirectory(ctx, ".", "*.txt", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "c.txt"}, entryNames(entries))

	_, err = m.ListDirectory(ctx, "a.txt", "", false)
	assert.ErrorIs(t, err, ErrNotADirectory)

	_, err = m.ListDirectory(ctx, "ghost", "", false)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.ListDirectory(ctx, ".", "[", false)
	assert.Error(t, err)
}

func entryNames(entries []FileInfo) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

func TestFileExistsBoundary(t *testing.T) {
	m := newTestManager(t, Options{})
	ctx := context.Background()

	exists, err := m.FileExists(ctx, "nope.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = m.FileExists(ctx, "/etc/passwd")
	assert.ErrorIs(t, err, ErrBoundaryViolation)
}

func TestGetFileInfo(t *testing.T) {
	m := newTestManager(t, Options{})
	ctx := context.Background()

	_, err := m.WriteFile(ctx, "docs/readme.md", []byte("# hi\n"), WriteOptions{})
	require.NoError(t, err)

	info, err := m.GetFileInfo(ctx, "docs/readme.md")
	require.NoError(t, err)
	assert.Equal(t, "readme.md", info.Name)
	assert.Equal(t, KindFile, info.Kind)
	assert.Equal(t, ".md", info.Extension)
	assert.Equal(t, int64(5), info.Size)
	assert.Equal(t, "docs/readme.md", info.RelativePath)
	assert.False(t, info.IsBinary)
	assert.False(t, info.IsHidden)

	info, err = m.GetFileInfo(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, KindDirectory, info.Kind)

	_, err = m.GetFileInfo(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetFileInfoSniffsBinaryContent(t *testing.T) {
	m := newTestManager(t, Options{})
	ctx := context.Background()

	// Text extension, binary bytes
	_, err := m.WriteFile(ctx, "data.txt", []byte{0x01, 0x00, 0xff}, WriteOptions{})
	require.NoError(t, err)

	info, err := m.GetFileInfo(ctx, "data.txt")
	require.NoError(t, err)
	assert.True(t, info.IsBinary)
}

func TestReadTextRefusesBinary(t *testing.T) {
	m := newTestManager(t, Options{})
	ctx := context.Background()

	payload := []byte{0x7f, 0x45, 0x4c, 0x46, 0x00, 0x01}
	_, err := m.WriteFile(ctx, "prog.bin", payload, WriteOptions{})
	require.NoError(t, err)

	_, err = m.ReadFile(ctx, "prog.bin", false)
	assert.Error(t, err)

	data, err := m.ReadFile(ctx, "prog.bin", true)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestReadErrors(t *testing.T) {
	m := newTestManager(t, Options{})
	ctx := context.Background()

	_, err := m.ReadFile(ctx, "ghost.txt", false)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.CreateDirectory(ctx, "d", MutateOptions{})
	require.NoError(t, err)
	_, err = m.ReadFile(ctx, "d", false)
	assert.ErrorIs(t, err, ErrIsADirectory)

	_, err = m.ReadFile(ctx, "../elsewhere.txt", false)
	assert.ErrorIs(t, err, ErrBoundaryViolation)
}

func TestAllowedPaths(t *testing.T) {
	extra := t.TempDir()
	m := newTestManager(t, Options{AllowedPaths: []string{extra}})
	ctx := context.Background()

	ok, err := m.WriteFile(ctx, filepath.Join(extra, "shared.txt"), []byte("x"), WriteOptions{})
	require.NoError(t, err)
	assert.True(t, ok)

	assert.True(t, m.IsWithinWorkspace(filepath.Join(extra, "anything")))
	assert.False(t, m.IsWithinWorkspace(filepath.Dir(extra)+"/outside-all"))
}

func TestRelativePath(t *testing.T) {
	m := newTestManager(t, Options{})

	rel, err := m.RelativePath(filepath.Join(m.Root(), "a", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "a/b.txt", rel)

	_, err = m.RelativePath("/definitely/not/inside")
	assert.ErrorIs(t, err, ErrBoundaryViolation)
}

func TestManagerCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "workspace")
	m := newTestManager(t, Options{Root: root})

	st, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, st.IsDir())

	resolved, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	assert.Equal(t, resolved, m.Root())
}
