package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresDatabasePassword(t *testing.T) {
	t.Setenv("POSTGRES_PASSWORD", "")
	_, err := Load()
	assert.EqualError(t, err, "POSTGRES_PASSWORD is required")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("ADMIN_PHONES", " +15550001111, ,+15550002222")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Worker.PollInterval)
	assert.Equal(t, 100, cfg.Worker.BatchSize)
	assert.Equal(t, 15*time.Minute, cfg.Worker.StaleAfter)
	assert.Equal(t, []string{"+15550001111", "+15550002222"}, cfg.SMS.AdminPhones)
	assert.False(t, cfg.UseTwilio())
}

func TestLoad_TwilioNeedsFullCredentials(t *testing.T) {
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")
	t.Setenv("TWILIO_AUTH_TOKEN", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadAdmins_MergesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admins.yaml")
	doc := "admins:\n  - name: Ops Lead\n    phone: \"+15550003333\"\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg := &Config{SMS: SMSConfig{AdminPhones: []string{"+15550001111"}, AllowlistFile: path}}
	admins, err := cfg.LoadAdmins()
	require.NoError(t, err)
	require.Len(t, admins, 2)
	assert.Equal(t, "Ops Lead", admins[1].Name)
	assert.Equal(t, "+15550003333", admins[1].Phone)
}

func TestParseAdmins_RejectsMissingPhone(t *testing.T) {
	_, err := ParseAdmins([]byte("admins:\n  - name: nobody\n"))
	assert.Error(t, err)
}
