package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conversation-service.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":9000"
database:
  driver: sqlite
  source: "file:test.db"
llm:
  api_key: file-key
  summary_threshold_tokens: 5000
auth:
  jwt_secret: file-secret
  admin_emails: ["root@example.com"]
`)

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", config.Server.HTTPAddr)
	assert.Equal(t, "sqlite", config.Database.Driver)
	assert.Equal(t, "file-key", config.LLM.APIKey)
	assert.Equal(t, 5000, config.LLM.SummaryThresholdTokens)
	assert.Equal(t, "gpt-oss-120b", config.LLM.Model)
	assert.Equal(t, 120*time.Second, config.LLM.Timeout)
	assert.Equal(t, []string{"root@example.com"}, config.Auth.AdminEmails)
	assert.Equal(t, []string{"/api/health", "/metrics"}, config.Auth.SkipPaths)
	assert.Equal(t, "conversation-events", config.Kafka.Topic)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
llm:
  api_key: file-key
auth:
  jwt_secret: file-secret
`)
	t.Setenv("API_KEY", "env-key")
	t.Setenv("LLM_API_BASE", "https://llm.internal/v1/chat/completions")
	t.Setenv("DATABASE_URL", "postgres://u:p@db/chat")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("PORT", "3001")

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-key", config.LLM.APIKey)
	assert.Equal(t, "https://llm.internal/v1/chat/completions", config.LLM.APIBase)
	assert.Equal(t, "postgres://u:p@db/chat", config.Database.Source)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, config.Kafka.Brokers)
	assert.Equal(t, ":3001", config.Server.HTTPAddr)
}

func TestLoad_MissingAPIKey(t *testing.T) {
	path := writeConfig(t, `
auth:
  jwt_secret: s
`)
	t.Setenv("API_KEY", "")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
