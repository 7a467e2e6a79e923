package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Empty(t, cfg.Accounts)
	assert.Equal(t, "gpt-3.5-turbo", cfg.OpenAI.ChatModel)
	assert.Equal(t, "http://localhost:9200", cfg.Elasticsearch.URL)
	assert.Equal(t, "emails", cfg.Elasticsearch.Index)
	assert.Equal(t, 30, cfg.Sync.BackfillDays)
	assert.Equal(t, 30, cfg.Sync.KeepAliveSec)
	assert.Equal(t, 90, cfg.Sync.RetentionDays)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
accounts:
  - name: Work
    host: imap.example.com
    username: me@example.com
    password: secret
    tls: true
  - host: imap.other.com
    username: other@example.com
elasticsearch:
  index: mail
sync:
  backfill_days: 7
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Len(t, cfg.Accounts, 2)
	assert.Equal(t, "Work", cfg.Accounts[0].Name)
	assert.Equal(t, 993, cfg.Accounts[0].Port)
	assert.True(t, cfg.Accounts[0].TLS)

	// Unnamed accounts get positional labels and the default port.
	assert.Equal(t, "Account 2", cfg.Accounts[1].Name)
	assert.Equal(t, 993, cfg.Accounts[1].Port)

	assert.Equal(t, "mail", cfg.Elasticsearch.Index)
	assert.Equal(t, 7, cfg.Sync.BackfillDays)
	assert.Equal(t, 30, cfg.Sync.KeepAliveSec)
}

func TestCategoryValid(t *testing.T) {
	for _, c := range Categories {
		assert.True(t, c.Valid(), "category %s", c)
	}
	assert.False(t, Category("").Valid())
	assert.False(t, Category("interested").Valid())
	assert.False(t, Category("Unknown").Valid())
}
