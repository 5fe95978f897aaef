package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func setRequired(t *testing.T) {
	t.Setenv("AIRTABLE_API_KEY", "key")
	t.Setenv("AIRTABLE_BASE_ID", "appBase")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, "8090", cfg.Port)
	assert.Equal(t, "song_requests_tbl", cfg.RequestsTable)
	assert.Equal(t, "gigs_tbl", cfg.GigsTable)
	assert.Equal(t, "Accepted", cfg.AcceptedView)
	assert.Equal(t, time.Minute, cfg.PollInterval)
	assert.Equal(t, int64(50), cfg.RequestFeeCents)
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	t.Setenv("AIRTABLE_API_KEY", "")
	t.Setenv("AIRTABLE_BASE_ID", "appBase")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_PollIntervalOverride(t *testing.T) {
	setRequired(t)
	t.Setenv("POLL_INTERVAL", "2m")

	cfg, err := LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.PollInterval)
}

func TestLoadConfig_BadPollIntervalFallsBack(t *testing.T) {
	setRequired(t)
	t.Setenv("POLL_INTERVAL", "soon")

	cfg, err := LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.PollInterval)
}
