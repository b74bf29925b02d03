package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App      AppConfig
	Exotel   ExotelConfig
	Dialog   DialogConfig
	Session  SessionConfig
	Delegate DelegateConfig
	TTS      TTSConfig
	Report   ReportConfig
	DB       DBConfig
	Redis    RedisConfig
	Auth     AuthConfig
}

type AppConfig struct {
	Env  string
	Port int

	// PublicBaseURL is the externally reachable base URL of this service.
	// Webhook gather actions and audio URLs are built from it, so it must be
	// the address the telephony provider can reach.
	PublicBaseURL string
}

type ExotelConfig struct {
	SID       string
	APIKey    string
	APIToken  string
	Subdomain string
	CallerID  string

	// FlowAppID is the provider-side flow applet that forwards callbacks here.
	// The provider only accepts its own applet URLs in the connect request.
	FlowAppID string

	// CallTimeLimitSeconds bounds total call duration at the provider.
	CallTimeLimitSeconds int
	// AnswerTimeoutSeconds is how long the provider rings before giving up.
	AnswerTimeoutSeconds int

	// MaxLiveCalls caps simultaneous outbound calls across instances.
	// Zero disables the cap. Requires Redis.
	MaxLiveCalls int
}

// Dialect selects the wire format rendered to the provider's flow applet.
// It is a deployment decision; inbound requests are never inspected for it.
type Dialect string

const (
	DialectExoML  Dialect = "exoml"
	DialectGather Dialect = "gather"
)

type DialogConfig struct {
	Dialect             Dialect
	MaxRetries          int
	InputTimeoutSeconds int
}

type SessionConfig struct {
	// Store is "memory" or "redis".
	Store string
	TTL   time.Duration
}

type DelegateConfig struct {
	// URL empty disables delegation; the static engine is used alone.
	URL     string
	Timeout time.Duration
}

type TTSConfig struct {
	// URL empty disables local synthesis; prompts fall back to provider TTS.
	URL     string
	Timeout time.Duration
	Voice   string
}

type ReportConfig struct {
	// URL of the order backend's call-result endpoint.
	URL     string
	Token   string
	Timeout time.Duration
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}
	c.App.PublicBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL")), "/")

	c.Exotel.SID = strings.TrimSpace(os.Getenv("EXOTEL_SID"))
	c.Exotel.APIKey = strings.TrimSpace(os.Getenv("EXOTEL_API_KEY"))
	c.Exotel.APIToken = os.Getenv("EXOTEL_API_TOKEN")
	c.Exotel.Subdomain = strings.TrimSpace(os.Getenv("EXOTEL_SUBDOMAIN"))
	c.Exotel.CallerID = strings.TrimSpace(os.Getenv("EXOTEL_CALLER_ID"))
	c.Exotel.FlowAppID = strings.TrimSpace(os.Getenv("EXOTEL_FLOW_APP_ID"))
	c.Exotel.CallTimeLimitSeconds = optionalInt("EXOTEL_TIME_LIMIT", 300)
	c.Exotel.AnswerTimeoutSeconds = optionalInt("EXOTEL_ANSWER_TIMEOUT", 30)
	c.Exotel.MaxLiveCalls = optionalInt("MAX_LIVE_CALLS", 0)

	c.Dialog.Dialect = Dialect(strings.TrimSpace(os.Getenv("IVR_DIALECT")))
	c.Dialog.MaxRetries = optionalInt("DIALOG_MAX_RETRIES", 2)
	c.Dialog.InputTimeoutSeconds = optionalInt("DIALOG_INPUT_TIMEOUT", 15)

	c.Session.Store = strings.TrimSpace(os.Getenv("SESSION_STORE"))
	c.Session.TTL = optionalDuration("SESSION_TTL", 5*time.Minute)

	c.Delegate.URL = strings.TrimSpace(os.Getenv("DELEGATE_URL"))
	c.Delegate.Timeout = optionalDuration("DELEGATE_TIMEOUT", 2*time.Second)

	c.TTS.URL = strings.TrimSpace(os.Getenv("TTS_URL"))
	c.TTS.Timeout = optionalDuration("TTS_TIMEOUT", 10*time.Second)
	c.TTS.Voice = strings.TrimSpace(os.Getenv("TTS_VOICE"))

	c.Report.URL = strings.TrimSpace(os.Getenv("REPORT_URL"))
	c.Report.Token = os.Getenv("REPORT_TOKEN")
	c.Report.Timeout = optionalDuration("REPORT_TIMEOUT", 10*time.Second)

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	if c.DB.Host != "" {
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
		c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
		c.DB.Password = os.Getenv("DB_PASSWORD")
		c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
		c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))
	}

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	if c.Redis.Host != "" {
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.Secret = os.Getenv("AUTH_SECRET")
	c.Auth.Issuer = strings.TrimSpace(os.Getenv("AUTH_ISSUER"))
	c.Auth.TokenTTL = optionalDuration("AUTH_TOKEN_TTL", 24*time.Hour)

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	c.normalize()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) normalize() {
	if c.Dialog.Dialect == "" {
		c.Dialog.Dialect = DialectExoML
	}
	if c.Session.Store == "" {
		c.Session.Store = "memory"
	}
	if c.Exotel.Subdomain == "" {
		c.Exotel.Subdomain = "api"
	}
	if c.TTS.Voice == "" {
		c.TTS.Voice = "hindi_female"
	}
}

func (c Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}
	if c.App.PublicBaseURL == "" {
		errs = append(errs, errors.New("PUBLIC_BASE_URL is required"))
	}

	if c.Exotel.SID == "" {
		errs = append(errs, errors.New("EXOTEL_SID is required"))
	}
	if c.Exotel.APIKey == "" {
		errs = append(errs, errors.New("EXOTEL_API_KEY is required"))
	}
	if c.Exotel.APIToken == "" {
		errs = append(errs, errors.New("EXOTEL_API_TOKEN is required"))
	}
	if c.Exotel.CallerID == "" {
		errs = append(errs, errors.New("EXOTEL_CALLER_ID is required"))
	}
	if c.Exotel.FlowAppID == "" {
		errs = append(errs, errors.New("EXOTEL_FLOW_APP_ID is required"))
	}

	switch c.Dialog.Dialect {
	case DialectExoML, DialectGather:
	default:
		errs = append(errs, fmt.Errorf("IVR_DIALECT must be exoml or gather, got %q", c.Dialog.Dialect))
	}
	if c.Dialog.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("DIALOG_MAX_RETRIES must be >= 0, got %d", c.Dialog.MaxRetries))
	}
	if c.Dialog.InputTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("DIALOG_INPUT_TIMEOUT must be > 0, got %d", c.Dialog.InputTimeoutSeconds))
	}

	switch c.Session.Store {
	case "memory":
	case "redis":
		if c.Redis.Host == "" {
			errs = append(errs, errors.New("REDIS_HOST is required when SESSION_STORE=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("SESSION_STORE must be memory or redis, got %q", c.Session.Store))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be > 0"))
	}

	if c.Redis.Host != "" && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}
	if c.Exotel.MaxLiveCalls > 0 && c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required when MAX_LIVE_CALLS is set"))
	}

	if c.DB.Host != "" {
		if c.DB.Port <= 0 || c.DB.Port > 65535 {
			errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
		}
		if c.DB.User == "" {
			errs = append(errs, errors.New("DB_USER is required when DB_HOST is set"))
		}
		if c.DB.Name == "" {
			errs = append(errs, errors.New("DB_NAME is required when DB_HOST is set"))
		}
		if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
		}
		if c.DB.SSLMode == "" && c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		}
	}

	if c.Auth.Secret == "" {
		errs = append(errs, errors.New("AUTH_SECRET is required"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("AUTH_TOKEN_TTL must be > 0"))
	}

	if c.Report.URL == "" && c.IsProduction() {
		errs = append(errs, errors.New("REPORT_URL is required in production"))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

// ExotelBaseURL is the account-scoped REST base for outbound call control.
func (c Config) ExotelBaseURL() string {
	return fmt.Sprintf("https://%s.exotel.com/v1/Accounts/%s", c.Exotel.Subdomain, c.Exotel.SID)
}

// FlowAppURL is the provider-internal applet URL the connect request points at.
func (c Config) FlowAppURL() string {
	return fmt.Sprintf("http://my.exotel.com/%s/exoml/start_voice/%s", c.Exotel.SID, c.Exotel.FlowAppID)
}

func (c Config) FlowCallbackURL() string {
	return c.App.PublicBaseURL + "/webhooks/exotel/flow"
}

func (c Config) StatusCallbackURL() string {
	return c.App.PublicBaseURL + "/webhooks/exotel/status"
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	sslMode := c.DB.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		sslMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func optionalDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
