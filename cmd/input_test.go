package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/blockcheck/internal/config"
)

func withConfig(t *testing.T, c *config.Config) {
	t.Helper()
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

func writeList(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "domains.txt")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDomains_FileAndInlineMerged(t *testing.T) {
	withConfig(t, &config.Config{})
	path := writeList(t, "# list\nexample.com\nhttps://Example.org/path\n")

	list, err := loadDomains(path, []string{"example.com, new.example"})
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com", "example.org", "new.example"}, list)
}

func TestLoadDomains_ConfigFallback(t *testing.T) {
	path := writeList(t, "from-file.example\n")
	withConfig(t, &config.Config{Input: config.InputConfig{File: path, Domains: []string{"from-config.example"}}})

	list, err := loadDomains("", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"from-file.example", "from-config.example"}, list)
}

func TestLoadDomains_MissingDefaultFileWithInline(t *testing.T) {
	withConfig(t, &config.Config{Input: config.InputConfig{File: filepath.Join(t.TempDir(), "nope.txt")}})

	list, err := loadDomains("", []string{"example.com"})
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com"}, list)
}

func TestLoadDomains_MissingExplicitFile(t *testing.T) {
	withConfig(t, &config.Config{})

	_, err := loadDomains(filepath.Join(t.TempDir(), "nope.txt"), []string{"example.com"})
	assert.Error(t, err)
}

func TestLoadDomains_SkipsInvalid(t *testing.T) {
	withConfig(t, &config.Config{})

	list, err := loadDomains("", []string{"example!.com, ok.example"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ok.example"}, list)
}

func TestLoadDomains_NothingValid(t *testing.T) {
	withConfig(t, &config.Config{})

	_, err := loadDomains("", []string{"example!.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no valid domains")
}
