package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"ticketshop/entity"
)

const (
	StoreFile     = "file"
	StorePostgres = "postgres"

	EmailDisabled = "disabled"
	EmailSMTP     = "smtp"
)

type Flutterwave struct {
	WebhookSecret string
	PublicKey     string
	SecretKey     string
	BaseURL       string
}

type SMTP struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type Config struct {
	Flutterwave Flutterwave

	PublicBaseURL string
	HTTPAddr      string

	Store       string
	TicketsFile string
	TicketsDir  string
	PostgresURL string
	RedisAddr   string

	Currency string
	Prices   entity.PriceList

	EmailDelivery string
	SMTP          SMTP
	AdminEmail    string

	JaegerEndpoint string
	LogLevel       logrus.Level
}

type MissingError struct {
	Vars []string
}

func (e MissingError) Error() string {
	return "missing required environment variables: " + strings.Join(e.Vars, ", ")
}

// Load reads the configuration from the environment. It fails when any
// required variable is unset, naming all of them.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	get := func(key, defaultValue string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return defaultValue
	}

	cfg := Config{
		Flutterwave: Flutterwave{
			WebhookSecret: get("FLUTTERWAVE_WEBHOOK_SECRET", ""),
			PublicKey:     get("FLUTTERWAVE_PUBLIC_KEY", ""),
			SecretKey:     get("FLUTTERWAVE_SECRET_KEY", ""),
			BaseURL:       strings.TrimSuffix(get("FLUTTERWAVE_BASE_URL", "https://api.flutterwave.com/v3"), "/"),
		},
		PublicBaseURL:  strings.TrimSuffix(get("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		HTTPAddr:       get("HTTP_ADDR", ":8080"),
		Store:          get("STORE", StoreFile),
		TicketsFile:    get("TICKETS_FILE", "tickets.json"),
		TicketsDir:     get("TICKETS_DIR", "tickets"),
		PostgresURL:    get("POSTGRES_URL", ""),
		RedisAddr:      get("REDIS_ADDR", ""),
		Currency:       strings.ToUpper(get("CURRENCY", "NGN")),
		Prices:         entity.PriceList{},
		EmailDelivery:  get("EMAIL_DELIVERY", EmailDisabled),
		AdminEmail:     get("ADMIN_EMAIL", ""),
		JaegerEndpoint: get("JAEGER_ENDPOINT", ""),
		SMTP: SMTP{
			Host:     get("SMTP_HOST", ""),
			Username: get("SMTP_USER", ""),
			Password: get("SMTP_PASS", ""),
			From:     get("SMTP_FROM", ""),
		},
	}

	var missing []string
	for key, value := range map[string]string{
		"FLUTTERWAVE_WEBHOOK_SECRET": cfg.Flutterwave.WebhookSecret,
		"FLUTTERWAVE_PUBLIC_KEY":     cfg.Flutterwave.PublicKey,
		"FLUTTERWAVE_SECRET_KEY":     cfg.Flutterwave.SecretKey,
	} {
		if value == "" {
			missing = append(missing, key)
		}
	}

	switch cfg.Store {
	case StoreFile:
	case StorePostgres:
		if cfg.PostgresURL == "" {
			missing = append(missing, "POSTGRES_URL")
		}
	default:
		return Config{}, fmt.Errorf("unknown STORE %q", cfg.Store)
	}

	switch cfg.EmailDelivery {
	case EmailDisabled:
	case EmailSMTP:
		for key, value := range map[string]string{
			"SMTP_HOST": cfg.SMTP.Host,
			"SMTP_FROM": cfg.SMTP.From,
		} {
			if value == "" {
				missing = append(missing, key)
			}
		}
	default:
		return Config{}, fmt.Errorf("unknown EMAIL_DELIVERY %q", cfg.EmailDelivery)
	}

	if len(missing) > 0 {
		slices.Sort(missing)
		return Config{}, MissingError{Vars: missing}
	}

	port, err := strconv.Atoi(get("SMTP_PORT", "587"))
	if err != nil {
		return Config{}, fmt.Errorf("parsing SMTP_PORT: %w", err)
	}
	cfg.SMTP.Port = port

	for key, gender := range map[string]entity.Gender{
		"TICKET_PRICE_MALE":   entity.GenderMale,
		"TICKET_PRICE_FEMALE": entity.GenderFemale,
	} {
		v := get(key, "")
		if v == "" {
			continue
		}
		price, err := strconv.ParseInt(v, 10, 64)
		if err != nil || price <= 0 {
			return Config{}, fmt.Errorf("parsing %s: must be a positive integer, got %q", key, v)
		}
		cfg.Prices[gender] = price
	}

	cfg.LogLevel, err = logrus.ParseLevel(get("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, fmt.Errorf("parsing LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

// Mask hides all but the first 6 and last 4 characters of a secret.
func Mask(secret string) string {
	if len(secret) <= 10 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:6] + "..." + secret[len(secret)-4:]
}

func (c Config) LogFields() logrus.Fields {
	return logrus.Fields{
		"store":            c.Store,
		"redis":            c.RedisAddr != "",
		"email_delivery":   c.EmailDelivery,
		"currency":         c.Currency,
		"flw_public_key":   Mask(c.Flutterwave.PublicKey),
		"flw_secret_key":   Mask(c.Flutterwave.SecretKey),
		"flw_webhook_hash": Mask(c.Flutterwave.WebhookSecret),
		"tracing":          c.JaegerEndpoint != "",
	}
}
