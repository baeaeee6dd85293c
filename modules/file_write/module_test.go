package file_write

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_WritesArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "artifact.txt")

	out, err := run(context.Background(), &Input{Path: path, Content: "hello"})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, path, out.GetAttr("path").AsString())
}

func TestRun_ReexecutionOverwrites(t *testing.T) {
	// Re-running the same task must overwrite the artifact, not duplicate it.
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact.txt")

	_, err := run(context.Background(), &Input{Path: path, Content: "first"})
	require.NoError(t, err)
	_, err = run(context.Background(), &Input{Path: path, Content: "second"})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files or duplicates left behind")
}
