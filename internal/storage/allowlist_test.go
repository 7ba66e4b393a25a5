package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAllowlist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols_allowlist.txt")
	content := "AAPL\nmsft\n\n# index funds\nVOO\n  TSLA  \n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	allow, err := LoadAllowlist(path)
	require.NoError(t, err)

	assert.Len(t, allow, 4)
	assert.True(t, allow.Contains("AAPL"))
	assert.True(t, allow.Contains("MSFT"), "entries are upper-cased")
	assert.True(t, allow.Contains("VOO"))
	assert.True(t, allow.Contains("TSLA"), "surrounding whitespace is trimmed")
	assert.False(t, allow.Contains("ZZZZ"))
}

func TestLoadAllowlist_MissingFile(t *testing.T) {
	_, err := LoadAllowlist(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}
