package helpers

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFiles writes fixture files into a temporary directory that is removed
// with the test
type TestFiles struct {
	t   *testing.T
	dir string
}

// NewTestFiles creates a new fixture directory
func NewTestFiles(t *testing.T) *TestFiles {
	return &TestFiles{t: t, dir: t.TempDir()}
}

// Dir returns the fixture directory
func (tf *TestFiles) Dir() string {
	return tf.dir
}

// Write writes lines to name and returns the full path
func (tf *TestFiles) Write(name string, lines ...string) string {
	tf.t.Helper()

	path := filepath.Join(tf.dir, name)
	require.NoError(tf.t, os.MkdirAll(filepath.Dir(path), 0o755))
	content := strings.Join(lines, "\n") + "\n"
	require.NoError(tf.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
