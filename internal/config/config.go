package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains runtime configuration required by the service.
type Config struct {
	Addr    string
	APIKeys map[string]string // apiKey -> source name

	DBURL       string // optional Postgres mirror
	OutputFile  string
	HydrateFrom string // "file" or "postgres"

	ExactWindow    time.Duration
	ExactRefresh   bool
	RepostWindow   time.Duration
	RepostRefresh  bool
	RepostHashMode string // "normalized" or "compact"
	IDWindow       time.Duration
	SweepInterval  time.Duration

	UnknownAuthorName string

	MQTTBroker   string // empty disables the MQTT input
	MQTTTopic    string
	MQTTClientID string

	LogLevel  string
	LogFormat string
}

// Load reads values from environment variables.
// API_KEYS format: "source1:key1,source2:key2"
func Load() (Config, error) {
	cfg := Config{
		Addr:              getenv("ADDR", ":8080"),
		DBURL:             strings.TrimSpace(os.Getenv("DB_URL")),
		OutputFile:        getenv("OUTPUT_FILE", "messages.jsonl"),
		HydrateFrom:       strings.ToLower(getenv("HYDRATE_FROM", "file")),
		RepostHashMode:    strings.ToLower(getenv("REPOST_HASH_MODE", "normalized")),
		UnknownAuthorName: getenv("UNKNOWN_AUTHOR_NAME", "Unknown"),
		MQTTBroker:        strings.TrimSpace(os.Getenv("MQTT_BROKER")),
		MQTTTopic:         getenv("MQTT_TOPIC", "collector/+/messages"),
		MQTTClientID:      strings.TrimSpace(os.Getenv("MQTT_CLIENT_ID")),
		LogLevel:          getenv("LOG_LEVEL", "info"),
		LogFormat:         getenv("LOG_FORMAT", "json"),
	}

	var err error
	if cfg.ExactWindow, err = windowEnv("EXACT_WINDOW", 120*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.RepostWindow, err = windowEnv("REPOST_WINDOW", 90*24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.IDWindow, err = windowEnv("ID_WINDOW", 90*24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.SweepInterval, err = durEnv("SWEEP_INTERVAL", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.ExactRefresh, err = boolEnv("EXACT_REFRESH", true); err != nil {
		return Config{}, err
	}
	if cfg.RepostRefresh, err = boolEnv("REPOST_REFRESH", false); err != nil {
		return Config{}, err
	}

	switch cfg.RepostHashMode {
	case "normalized", "compact":
	default:
		return Config{}, errors.New(`REPOST_HASH_MODE must be "normalized" or "compact"`)
	}
	switch cfg.HydrateFrom {
	case "file":
	case "postgres":
		if cfg.DBURL == "" {
			return Config{}, errors.New("HYDRATE_FROM=postgres requires DB_URL")
		}
	default:
		return Config{}, errors.New(`HYDRATE_FROM must be "file" or "postgres"`)
	}

	if cfg.APIKeys, err = parseAPIKeys(os.Getenv("API_KEYS")); err != nil {
		return Config{}, err
	}
	// Local dev fallback so the service runs out-of-the-box.
	if len(cfg.APIKeys) == 0 {
		cfg.APIKeys["bridge-key-123"] = "bridge"
	}

	return cfg, nil
}

func parseAPIKeys(raw string) (map[string]string, error) {
	apiKeys := map[string]string{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return apiKeys, nil
	}

	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		parts := strings.SplitN(p, ":", 2)
		if len(parts) != 2 {
			return nil, errors.New(`API_KEYS must be "source:key,source:key"`)
		}
		source := strings.TrimSpace(parts[0])
		key := strings.TrimSpace(parts[1])
		if source == "" || key == "" {
			return nil, errors.New(`API_KEYS must be "source:key,source:key"`)
		}
		apiKeys[key] = source
	}
	return apiKeys, nil
}

// ---------- helpers ----------

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// durEnv accepts Go durations ("90s", "2160h") or "0" to disable.
func durEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}

// windowEnv is durEnv for dedup windows, which are kept in whole seconds.
// A non-zero window under a second would round down to "disabled".
func windowEnv(key string, def time.Duration) (time.Duration, error) {
	d, err := durEnv(key, def)
	if err != nil {
		return 0, err
	}
	if d > 0 && d < time.Second {
		return 0, fmt.Errorf("%s must be 0 or at least 1s", key)
	}
	return d, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
