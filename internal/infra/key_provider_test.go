package infra

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileKeyProvider(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T, dataDir string)
		testFn func(t *testing.T, provider *FileKeyProvider)
	}{
		{
			name: "no key file",
			testFn: func(t *testing.T, provider *FileKeyProvider) {
				assert.False(t, provider.KeyExists())
				_, err := provider.GetKey()
				assert.Error(t, err)
			},
		},
		{
			name: "stored key round trips with owner-only permissions",
			testFn: func(t *testing.T, provider *FileKeyProvider) {
				key, err := GenerateKey()
				require.NoError(t, err)
				require.NoError(t, provider.StoreKey(key))

				retrieved, err := provider.GetKey()
				require.NoError(t, err)
				assert.Equal(t, key, retrieved)

				info, err := os.Stat(provider.keyPath)
				require.NoError(t, err)
				assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

				raw, err := os.ReadFile(provider.keyPath)
				require.NoError(t, err)
				assert.Equal(t, hex.EncodeToString(key), string(raw))
			},
		},
		{
			name: "existing key is never replaced",
			testFn: func(t *testing.T, provider *FileKeyProvider) {
				first, err := GenerateKey()
				require.NoError(t, err)
				require.NoError(t, provider.StoreKey(first))

				second, err := GenerateKey()
				require.NoError(t, err)
				assert.ErrorIs(t, provider.StoreKey(second), errKeyExists)

				kept, err := provider.GetKey()
				require.NoError(t, err)
				assert.Equal(t, first, kept)
			},
		},
		{
			name: "trailing newline in key file is tolerated",
			setup: func(t *testing.T, dataDir string) {
				key, err := GenerateKey()
				require.NoError(t, err)
				provider := NewFileKeyProvider(dataDir)
				require.NoError(t, provider.StoreKey(key))
				f, err := os.OpenFile(provider.keyPath, os.O_APPEND|os.O_WRONLY, 0600)
				require.NoError(t, err)
				_, err = f.WriteString("\n")
				require.NoError(t, err)
				require.NoError(t, f.Close())
			},
			testFn: func(t *testing.T, provider *FileKeyProvider) {
				key, err := provider.GetKey()
				require.NoError(t, err)
				assert.Len(t, key, keySize)
			},
		},
		{
			name: "corrupt key file",
			setup: func(t *testing.T, dataDir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dataDir, keyFileName), []byte("zz-not-hex"), 0600))
			},
			testFn: func(t *testing.T, provider *FileKeyProvider) {
				_, err := provider.GetKey()
				assert.Error(t, err)
			},
		},
		{
			name: "wrong key size rejected",
			testFn: func(t *testing.T, provider *FileKeyProvider) {
				err := provider.StoreKey([]byte("tooshort"))
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid key size")
				assert.False(t, provider.KeyExists())
			},
		},
		{
			name: "missing directory is created",
			testFn: func(t *testing.T, provider *FileKeyProvider) {
				provider.keyPath = filepath.Join(provider.keyPath+"_nested", "sub", keyFileName)

				key, err := GenerateKey()
				require.NoError(t, err)
				require.NoError(t, provider.StoreKey(key))
				assert.True(t, provider.KeyExists())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dataDir := t.TempDir()
			if tt.setup != nil {
				tt.setup(t, dataDir)
			}
			tt.testFn(t, NewFileKeyProvider(dataDir))
		})
	}
}

func TestGenerateKey_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		key, err := GenerateKey()
		require.NoError(t, err)
		assert.Len(t, key, keySize)
		assert.False(t, seen[string(key)], "duplicate key generated")
		seen[string(key)] = true
	}
}

func TestEnsureKey(t *testing.T) {
	dataDir := t.TempDir()
	provider := NewFileKeyProvider(dataDir)

	first, err := EnsureKey(provider)
	require.NoError(t, err)
	assert.Len(t, first, keySize)

	second, err := EnsureKey(provider)
	require.NoError(t, err)
	assert.Equal(t, first, second, "existing key must be reused")
}

func TestEnsureKey_ConcurrentFirstRunAgrees(t *testing.T) {
	dataDir := t.TempDir()

	const starters = 8
	keys := make([][]byte, starters)
	errs := make([]error, starters)
	var wg sync.WaitGroup
	for i := 0; i < starters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			keys[i], errs[i] = EnsureKey(NewFileKeyProvider(dataDir))
		}(i)
	}
	wg.Wait()

	for i := 0; i < starters; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, keys[0], keys[i])
	}

	entries, err := os.ReadDir(dataDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.Contains(e.Name(), keyFileName+"."), "temporary key file left behind: %s", e.Name())
	}
}
