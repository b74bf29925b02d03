package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	c := Config{
		App: AppConfig{Env: "local", Port: 7100, PublicBaseURL: "https://ivr.example.com"},
		Exotel: ExotelConfig{
			SID:      "acct1",
			APIKey:   "key",
			APIToken: "token",
			CallerID: "02048556923",
			FlowAppID: "1145356",
		},
		Dialog:  DialogConfig{Dialect: DialectExoML, MaxRetries: 2, InputTimeoutSeconds: 15},
		Session: SessionConfig{Store: "memory", TTL: 5 * time.Minute},
		Auth:    AuthConfig{Secret: "secret", TokenTTL: time.Hour},
	}
	c.normalize()
	return c
}

func TestLoad_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_AcceptsMinimalConfig(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidate_RejectsUnknownDialect(t *testing.T) {
	c := validConfig()
	c.Dialog.Dialect = "twiml"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for unknown dialect")
	}
}

func TestValidate_RedisSessionStoreRequiresRedisHost(t *testing.T) {
	c := validConfig()
	c.Session.Store = "redis"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for redis store without REDIS_HOST")
	}
	c.Redis = RedisConfig{Host: "localhost", Port: 6379}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidate_LiveCallCapRequiresRedis(t *testing.T) {
	c := validConfig()
	c.Exotel.MaxLiveCalls = 5
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for live call cap without REDIS_HOST")
	}
	c.Redis = RedisConfig{Host: "localhost", Port: 6379}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidate_ProductionRequiresReportURL(t *testing.T) {
	c := validConfig()
	c.App.Env = "production"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without REPORT_URL")
	}
	c.Report.URL = "https://orders.example.com/api/voice-calls/result"
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestCallbackURLs(t *testing.T) {
	c := validConfig()
	if got := c.FlowCallbackURL(); got != "https://ivr.example.com/webhooks/exotel/flow" {
		t.Fatalf("unexpected flow callback url: %q", got)
	}
	if got := c.ExotelBaseURL(); got != "https://api.exotel.com/v1/Accounts/acct1" {
		t.Fatalf("unexpected exotel base url: %q", got)
	}
}
