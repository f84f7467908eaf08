package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureFileDir(t *testing.T) {
	tests := []struct {
		name     string
		filePath func(t *testing.T) string
	}{
		{
			name:     "creates parent directory",
			filePath: func(t *testing.T) string { return filepath.Join(t.TempDir(), "preload", "config.yaml") },
		},
		{
			name:     "creates nested parents",
			filePath: func(t *testing.T) string { return filepath.Join(t.TempDir(), "a", "b", "c", "config.yaml") },
		},
		{
			name:     "parent exists",
			filePath: func(t *testing.T) string { return filepath.Join(t.TempDir(), "config.yaml") },
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			filePath := testCase.filePath(t)
			dir := filepath.Dir(filePath)

			require.NoError(t, EnsureFileDir(filePath))
			assert.DirExists(t, dir)

			if runtime.GOOS != "windows" {
				info, err := os.Stat(dir)
				require.NoError(t, err)
				assert.Equal(t, os.FileMode(DirModeDefault), info.Mode().Perm()&os.FileMode(DirModeDefault))
			}
		})
	}
}

func TestEnsureDir_FileInTheWay(t *testing.T) {
	file := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(file, []byte("x"), FileModeDefault))

	assert.Error(t, EnsureDir(filepath.Join(file, "child")))
}
