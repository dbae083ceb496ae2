package workspace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDiff(t *testing.T) {
	m := newTestManager(t, Options{})
	ctx := context.Background()

	_, err := m.WriteFile(ctx, "main.go", []byte("package main\n\nfunc main() {\n\tprintln(\"old\")\n}\n"), WriteOptions{})
	require.NoError(t, err)

	diffText := `--- a/main.go
+++ b/main.go
@@ -1,5 +1,5 @@
 package main

 func main() {
-	println("old")
+	println("new")
 }
`

	ok, err := m.ApplyDiff(ctx, "main.go", diffText, MutateOptions{})
	require.NoError(t, err)
	require.True(t, ok)

	data, err := m.ReadFile(ctx, "main.go", false)
	require.NoError(t, err)
	assert.Equal(t, "package main\n\nfunc main() {\n\tprintln(\"new\")\n}\n", string(data))
}

func TestApplyDiffWithoutFileHeader(t *testing.T) {
	m := newTestManager(t, Options{})
	ctx := context.Background()

	_, err := m.WriteFile(ctx, "notes.txt", []byte("alpha\nbeta\ngamma\n"), WriteOptions{})
	require.NoError(t, err)

	diffText := `@@ -1,3 +1,3 @@
 alpha
-beta
+BETA
 gamma
`

	ok, err := m.ApplyDiff(ctx, "notes.txt", diffText, MutateOptions{})
	require.NoError(t, err)
	require.True(t, ok)

	data, err := m.ReadFile(ctx, "notes.txt", false)
	require.NoError(t, err)
	assert.Equal(t, "alpha\nBETA\ngamma\n", string(data))
}

func TestApplyDiffErrors(t *testing.T) {
	m := newTestManager(t, Options{})
	ctx := context.Background()

	_, err := m.ApplyDiff(ctx, "ghost.txt", "@@ -1 +1 @@\n-a\n+b\n", MutateOptions{})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.CreateDirectory(ctx, "d", MutateOptions{})
	require.NoError(t, err)
	_, err = m.ApplyDiff(ctx, "d", "@@ -1 +1 @@\n-a\n+b\n", MutateOptions{})
	assert.ErrorIs(t, err, ErrIsADirectory)

	_, err = m.WriteFile(ctx, "blob.bin", []byte{0x00, 0x01}, WriteOptions{})
	require.NoError(t, err)
	_, err = m.ApplyDiff(ctx, "blob.bin", "@@ -1 +1 @@\n-a\n+b\n", MutateOptions{})
	assert.Error(t, err)

	_, err = m.WriteFile(ctx, "a.txt", []byte("x\n"), WriteOptions{})
	require.NoError(t, err)
	_, err = m.ApplyDiff(ctx, "a.txt", "not a diff at all", MutateOptions{})
	assert.Error(t, err)
}

func TestApplyDiffResultPassesContentCheck(t *testing.T) {
	m := newTestManager(t, Options{})
	ctx := context.Background()

	_, err := m.WriteFile(ctx, "script.py", []byte("print('hi')\n"), WriteOptions{})
	require.NoError(t, err)

	diffText := `@@ -1,1 +1,2 @@
+import subprocess
 print('hi')
`

	_, err = m.ApplyDiff(ctx, "script.py", diffText, MutateOptions{})
	require.ErrorIs(t, err, ErrContentRejected)

	// Untouched on rejection
	data, err := m.ReadFile(ctx, "script.py", false)
	require.NoError(t, err)
	assert.Equal(t, "print('hi')\n", string(data))
}

func TestApplyUnifiedDiffInsertion(t *testing.T) {
	out, err := applyUnifiedDiff("one\ntwo\n", "@@ -1,2 +1,3 @@\n one\n+one and a half\n two\n")
	require.NoError(t, err)
	assert.Equal(t, "one\none and a half\ntwo\n", out)
}
