package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-donations/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "donations.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.Equal(t, core.DefaultWebhookPath, cfg.HTTP.WebhookPath)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, time.Minute, cfg.Cache.SummaryTTL)
	assert.Empty(t, cfg.Donations)
}

func TestLoadConfig_FileSectionsAndDonationSettings(t *testing.T) {
	path := writeConfig(t, `
service_name: church-roof
paypal:
  environment: live
  client_id: file-client
  webhook_id: WH-123
fees:
  percentage: 3.4
campaign:
  goal: 5000
http:
  address: "127.0.0.1:9000"
  max_body_bytes: 2048
database:
  driver: postgres
  dsn: postgres://donations@localhost/donations?sslmode=disable
  ping_timeout: 2s
log:
  level: debug
  format: json
`)
	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.HTTP.Address)
	assert.Equal(t, int64(2048), cfg.HTTP.MaxBodyBytes)
	assert.Equal(t, core.DefaultWebhookPath, cfg.HTTP.WebhookPath, "unset keys keep defaults")
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 2*time.Second, cfg.Database.PingTimeout)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.Equal(t, "church-roof", cfg.Donations["service_name"])
	assert.NotContains(t, cfg.Donations, "http")
	assert.NotContains(t, cfg.Donations, "database")
	paypal, ok := cfg.Donations["paypal"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "file-client", paypal["client_id"])
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `
paypal:
  client_id: file-client
`)
	cfg, err := LoadConfig(path, []string{
		"DONATIONS_PAYPAL__CLIENT_ID=env-client",
		"DONATIONS_PAYPAL__CLIENT_SECRET=s3cr3t",
		"DONATIONS_HTTP__ADDRESS=:9090",
		"DONATIONS_DATABASE__DEBUG=true",
		"DONATIONS_CACHE__SUMMARY_TTL=0s",
		"DONATIONS_SERVICE_NAME=env-service",
		"UNRELATED=1",
	})
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Address)
	assert.True(t, cfg.Database.Debug)
	assert.Equal(t, time.Duration(0), cfg.Cache.SummaryTTL)
	assert.Equal(t, "env-service", cfg.Donations["service_name"])

	paypal, ok := cfg.Donations["paypal"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "env-client", paypal["client_id"])
	assert.Equal(t, "s3cr3t", paypal["client_secret"])
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "http: [not, a, map"), nil)
	require.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "http:\n  webhook_path: hooks\n"), nil)
	require.ErrorContains(t, err, "webhook_path")

	_, err = LoadConfig(writeConfig(t, "paypal: sandbox\n"), []string{"DONATIONS_PAYPAL__CLIENT_ID=x"})
	require.ErrorContains(t, err, "not a section")
}

func TestParseScalar(t *testing.T) {
	assert.Equal(t, 8080, parseScalar("8080"))
	assert.Equal(t, true, parseScalar("true"))
	assert.Equal(t, "30s", parseScalar("30s"))
	assert.Equal(t, "a: b", parseScalar("a: b"))
	assert.Equal(t, "", parseScalar(""))
}
