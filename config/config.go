package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	AirtableAPIKey    string
	AirtableBaseID    string
	RequestsTable     string
	GigsTable         string
	AcceptedView      string
	StripeSecretKey   string
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioFromNumber  string
	PollInterval      time.Duration
	RequestFeeCents   int64 // flat fee charged at payment-method setup

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("PORT", "8090"),
		AirtableAPIKey:   os.Getenv("AIRTABLE_API_KEY"),
		AirtableBaseID:   os.Getenv("AIRTABLE_BASE_ID"),
		RequestsTable:    getEnv("AIRTABLE_REQUESTS_TABLE", "song_requests_tbl"),
		GigsTable:        getEnv("AIRTABLE_GIGS_TABLE", "gigs_tbl"),
		AcceptedView:     getEnv("AIRTABLE_ACCEPTED_VIEW", "Accepted"),
		StripeSecretKey:  os.Getenv("STRIPE_SECRET_KEY"),
		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber: os.Getenv("TWILIO_FROM_NUMBER"),
		PollInterval:     getEnvAsDuration("POLL_INTERVAL", time.Minute),
		RequestFeeCents:  getEnvAsInt64("REQUEST_FEE_CENTS", 50),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
	}

	if cfg.AirtableAPIKey == "" || cfg.AirtableBaseID == "" || cfg.StripeSecretKey == "" {
		return nil, fmt.Errorf("missing required environment variables (AIRTABLE_API_KEY, AIRTABLE_BASE_ID, STRIPE_SECRET_KEY)")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
