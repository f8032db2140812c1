// Package config reads the service configuration from the environment and
// an optional .env file. Nothing else in the module reads the environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreSheets = "sheets"
)

type Config struct {
	HTTPAddr  string
	GRPCAddr  string
	LogFormat string
	LogLevel  string

	// AllowedActors are the only actor ids the API serves.
	AllowedActors []string

	LLMAPIKey        string
	LLMBaseURL       string
	LLMModel         string
	LLMTimeout       time.Duration
	LLMMaxConcurrent int

	StoreDriver       string
	SQLitePath        string
	SheetID           string
	GoogleJSONKey     string
	ExpensesTable     string
	GoalsTable        string
	ReportingCurrency string
	Rates             map[string]decimal.Decimal
	Location          *time.Location

	CategoryThreshold float64
	RetryAttempts     int
	RetryBase         time.Duration
	RetryMax          time.Duration

	MaxImageBytes     int
	MaxImageDimension int
}

// Load reads .env when present, then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("could not read .env file")
	}

	cfg := Config{
		HTTPAddr:  env("HTTP_ADDR", ":8080"),
		GRPCAddr:  env("GRPC_ADDR", ":50051"),
		LogFormat: env("LOG_FORMAT", "json"),
		LogLevel:  env("LOG_LEVEL", "info"),

		LLMAPIKey:  env("LLM_API_KEY", ""),
		LLMBaseURL: env("LLM_BASE_URL", ""),
		LLMModel:   env("LLM_MODEL", "meta-llama/llama-4-scout-17b-16e-instruct"),

		StoreDriver:       env("STORE_DRIVER", StoreMemory),
		SQLitePath:        env("SQLITE_PATH", "data/ledger.db"),
		SheetID:           env("GOOGLE_SHEET_ID", ""),
		GoogleJSONKey:     env("GOOGLE_JSON_KEY", ""),
		ExpensesTable:     env("EXPENSES_TABLE", "Expenses"),
		GoalsTable:        env("GOALS_TABLE", "Goals"),
		ReportingCurrency: strings.ToUpper(env("REPORTING_CURRENCY", "EUR")),
	}

	var err error
	if cfg.AllowedActors, err = actors(env("ALLOWED_ACTORS", "[]")); err != nil {
		return Config{}, err
	}
	if cfg.Rates, err = rates(env("CURRENCY_RATES", "")); err != nil {
		return Config{}, err
	}
	if cfg.Location, err = time.LoadLocation(env("TIMEZONE", "Europe/Berlin")); err != nil {
		return Config{}, fmt.Errorf("TIMEZONE: %w", err)
	}

	if cfg.LLMTimeout, err = duration("LLM_TIMEOUT", "60s"); err != nil {
		return Config{}, err
	}
	if cfg.RetryBase, err = duration("RETRY_BASE", "25ms"); err != nil {
		return Config{}, err
	}
	if cfg.RetryMax, err = duration("RETRY_MAX", "400ms"); err != nil {
		return Config{}, err
	}
	if cfg.LLMMaxConcurrent, err = integer("LLM_MAX_CONCURRENT", 3); err != nil {
		return Config{}, err
	}
	if cfg.RetryAttempts, err = integer("RETRY_ATTEMPTS", 5); err != nil {
		return Config{}, err
	}
	if cfg.MaxImageBytes, err = integer("MAX_IMAGE_BYTES", 4<<20); err != nil {
		return Config{}, err
	}
	if cfg.MaxImageDimension, err = integer("MAX_IMAGE_DIMENSION", 2048); err != nil {
		return Config{}, err
	}
	if cfg.CategoryThreshold, err = strconv.ParseFloat(env("CATEGORY_THRESHOLD", "0.5"), 64); err != nil {
		return Config{}, fmt.Errorf("CATEGORY_THRESHOLD: %w", err)
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.StoreDriver {
	case StoreMemory, StoreSQLite:
	case StoreSheets:
		if c.SheetID == "" || c.GoogleJSONKey == "" {
			return fmt.Errorf("STORE_DRIVER=sheets needs GOOGLE_SHEET_ID and GOOGLE_JSON_KEY")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if len(c.AllowedActors) == 0 {
		log.Warn().Msg("ALLOWED_ACTORS is empty, every request will be refused")
	}
	return nil
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func duration(k, def string) (time.Duration, error) {
	d, err := time.ParseDuration(env(k, def))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}

func integer(k string, def int) (int, error) {
	n, err := strconv.Atoi(env(k, strconv.Itoa(def)))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

// actors reads a JSON array of ids. Numbers are accepted, chat platforms
// hand out numeric user ids.
func actors(s string) ([]string, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("ALLOWED_ACTORS must be a JSON array: %w", err)
	}

	out := make([]string, 0, len(raw))
	for _, r := range raw {
		var id string
		if err := json.Unmarshal(r, &id); err != nil {
			id = string(r)
		}
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out, nil
}

// rates reads "USD=1.08,GBP=0.85". An empty string keeps the defaults.
func rates(s string) (map[string]decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	out := map[string]decimal.Decimal{}
	for _, pair := range strings.Split(s, ",") {
		code, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("CURRENCY_RATES: %q is not CODE=rate", pair)
		}
		v, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil || !v.IsPositive() {
			return nil, fmt.Errorf("CURRENCY_RATES: invalid rate for %s", code)
		}
		out[strings.ToUpper(strings.TrimSpace(code))] = v
	}
	return out, nil
}
