package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  addr: ":9200"
  heartbeat_interval: 2s
  heartbeat_timeout: 15s
  rate_limit:
    enabled: true
    max_burst: 200
    per_second: 80
dashboard:
  enabled: true
  addr: ":9201"
storage:
  data_dir: /var/lib/exchange
kafka:
  enabled: true
  brokers: ["localhost:9092"]
  topic: executions
users:
  - username: alice
    password: s3cret
  - username: bob
    password: hunter2
logging:
  level: debug
`

func TestParseFullConfig(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, ":9200", cfg.Server.Addr)
	assert.Equal(t, 2*time.Second, cfg.Server.HeartbeatInterval)
	assert.Equal(t, 15*time.Second, cfg.Server.HeartbeatTimeout)
	assert.True(t, cfg.Server.RateLimit.Enabled)
	assert.Equal(t, 200, cfg.Server.RateLimit.MaxBurst)
	assert.Equal(t, "/var/lib/exchange", cfg.Storage.DataDir)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "executions", cfg.Kafka.Topic)
	require.Len(t, cfg.Users, 2)
	assert.Equal(t, "alice", cfg.Users[0].Username)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Server.Addr)
	assert.Equal(t, 1*time.Second, cfg.Server.HeartbeatInterval)
	assert.Equal(t, 10*time.Second, cfg.Server.HeartbeatTimeout)
	assert.Equal(t, 5, cfg.Server.ErrorThreshold)
	assert.Equal(t, "data", cfg.Storage.DataDir)
	assert.Equal(t, "trades", cfg.Kafka.Topic)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestValidateRejectsBadHeartbeat(t *testing.T) {
	_, err := Parse([]byte(`
server:
  heartbeat_interval: 10s
  heartbeat_timeout: 5s
`))
	require.ErrorContains(t, err, "heartbeat timeout")
}

func TestValidateRejectsKafkaWithoutBrokers(t *testing.T) {
	_, err := Parse([]byte(`
kafka:
  enabled: true
`))
	require.ErrorContains(t, err, "no brokers")
}

func TestValidateRejectsDuplicateUsers(t *testing.T) {
	_, err := Parse([]byte(`
users:
  - username: alice
    password: a
  - username: alice
    password: b
`))
	require.ErrorContains(t, err, "duplicate user")
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	_, err := Parse([]byte(`
logging:
  level: verbose
`))
	require.ErrorContains(t, err, "unknown log level")
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9200", cfg.Server.Addr)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
