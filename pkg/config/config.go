// Package config loads run settings from the environment and an optional
// .env file.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/Sternrassler/swapi-etl/pkg/client"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Sink kinds.
const (
	SinkHTTP   = "http"
	SinkRedis  = "redis"
	SinkStdout = "stdout"
)

// Config holds every setting of a pipeline run.
type Config struct {
	// API
	APIURLBase        string
	APIMaxPageResults int

	// Client
	MaxSimultaneousRequests int
	MaxRequestRetries       int
	MaxBackoff              time.Duration
	RequestsPerSecond       float64
	RequestTimeout          time.Duration
	UserAgent               string

	// Ranking
	MaxPersonFilter int

	// Sink
	Sink          string
	SinkURL       string
	SinkRedisAddr string
	SinkRedisKey  string
	SinkRedisTTL  time.Duration

	// Observability
	LogLevel    string
	LogPretty   bool
	MetricsAddr string
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		APIURLBase:              "https://swapi.dev/api/",
		APIMaxPageResults:       10,
		MaxSimultaneousRequests: 10,
		MaxRequestRetries:       3,
		MaxBackoff:              3 * time.Second,
		RequestsPerSecond:       0,
		RequestTimeout:          30 * time.Second,
		UserAgent:               "swapi-etl/0.1.0",
		MaxPersonFilter:         10,
		Sink:                    SinkHTTP,
		SinkURL:                 "https://httpbin.org/post",
		SinkRedisAddr:           "localhost:6379",
		SinkRedisKey:            "swapi-etl:people.csv",
		SinkRedisTTL:            0,
		LogLevel:                "info",
		LogPretty:               false,
		MetricsAddr:             "",
	}
}

// Load reads a .env file from the working directory when present, then
// the environment. Unparseable values fall back to their defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}

	d := Default()
	return Config{
		APIURLBase:              getEnv("API_URL_BASE", d.APIURLBase),
		APIMaxPageResults:       getEnvAsInt("API_MAX_PAGE_RESULTS", d.APIMaxPageResults),
		MaxSimultaneousRequests: getEnvAsInt("MAX_SIMULTANEOUS_REQUESTS", d.MaxSimultaneousRequests),
		MaxRequestRetries:       getEnvAsInt("MAX_REQUEST_RETRIES", d.MaxRequestRetries),
		MaxBackoff:              getEnvAsDuration("MAX_BACKOFF", d.MaxBackoff),
		RequestsPerSecond:       getEnvAsFloat("REQUESTS_PER_SECOND", d.RequestsPerSecond),
		RequestTimeout:          getEnvAsDuration("REQUEST_TIMEOUT", d.RequestTimeout),
		UserAgent:               getEnv("USER_AGENT", d.UserAgent),
		MaxPersonFilter:         getEnvAsInt("MAX_PERSON_FILTER", d.MaxPersonFilter),
		Sink:                    getEnv("SINK", d.Sink),
		SinkURL:                 getEnv("SINK_URL", d.SinkURL),
		SinkRedisAddr:           getEnv("SINK_REDIS_ADDR", d.SinkRedisAddr),
		SinkRedisKey:            getEnv("SINK_REDIS_KEY", d.SinkRedisKey),
		SinkRedisTTL:            getEnvAsDuration("SINK_REDIS_TTL", d.SinkRedisTTL),
		LogLevel:                getEnv("LOG_LEVEL", d.LogLevel),
		LogPretty:               getEnvAsBool("LOG_PRETTY", d.LogPretty),
		MetricsAddr:             getEnv("METRICS_ADDR", d.MetricsAddr),
	}
}

// Validate reports the first setting that cannot drive a run.
func (c Config) Validate() error {
	u, err := url.Parse(c.APIURLBase)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api_url_base must be an absolute URL (got %q)", c.APIURLBase)
	}
	if c.APIMaxPageResults < 1 {
		return fmt.Errorf("api_max_page_results must be >= 1 (got %d)", c.APIMaxPageResults)
	}
	if c.MaxSimultaneousRequests < 1 {
		return fmt.Errorf("max_simultaneous_requests must be >= 1 (got %d)", c.MaxSimultaneousRequests)
	}
	if c.MaxRequestRetries < 1 {
		return fmt.Errorf("max_request_retries must be >= 1 (got %d)", c.MaxRequestRetries)
	}
	if c.MaxPersonFilter < 0 {
		return fmt.Errorf("max_person_filter must be >= 0 (got %d)", c.MaxPersonFilter)
	}
	if c.MaxBackoff < 0 {
		return fmt.Errorf("max_backoff must be >= 0 (got %s)", c.MaxBackoff)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must be >= 0 (got %v)", c.RequestsPerSecond)
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user_agent is required")
	}

	switch c.Sink {
	case SinkHTTP:
		if c.SinkURL == "" {
			return fmt.Errorf("sink_url is required for the http sink")
		}
	case SinkRedis:
		if c.SinkRedisAddr == "" || c.SinkRedisKey == "" {
			return fmt.Errorf("sink_redis_addr and sink_redis_key are required for the redis sink")
		}
	case SinkStdout:
	default:
		return fmt.Errorf("unknown sink %q (want %s, %s or %s)", c.Sink, SinkHTTP, SinkRedis, SinkStdout)
	}

	return nil
}

// ClientConfig derives the HTTP client configuration.
func (c Config) ClientConfig() client.Config {
	cfg := client.DefaultConfig(c.UserAgent)
	cfg.MaxConcurrency = c.MaxSimultaneousRequests
	cfg.RequestsPerSecond = c.RequestsPerSecond
	cfg.Timeout = c.RequestTimeout
	cfg.Retry.MaxAttempts = c.MaxRequestRetries
	cfg.Retry.MaxBackoff = c.MaxBackoff
	if cfg.Retry.InitialBackoff > c.MaxBackoff {
		cfg.Retry.InitialBackoff = c.MaxBackoff
	}
	return cfg
}

// PeopleURL returns the people collection URL under the API base.
func (c Config) PeopleURL() string {
	return resolve(c.APIURLBase, "people/")
}

func resolve(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return base + ref
	}
	if len(b.Path) == 0 || b.Path[len(b.Path)-1] != '/' {
		b.Path += "/"
	}
	r, _ := url.Parse(ref)
	return b.ResolveReference(r).String()
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(name string, defaultVal int) int {
	valStr := getEnv(name, "")
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		log.Warn().Str("key", name).Str("value", valStr).Int("default", defaultVal).
			Msg("Invalid integer in environment, using default")
		return defaultVal
	}
	return val
}

func getEnvAsFloat(name string, defaultVal float64) float64 {
	valStr := getEnv(name, "")
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil {
		log.Warn().Str("key", name).Str("value", valStr).Float64("default", defaultVal).
			Msg("Invalid number in environment, using default")
		return defaultVal
	}
	return val
}

func getEnvAsBool(name string, defaultVal bool) bool {
	valStr := getEnv(name, "")
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Warn().Str("key", name).Str("value", valStr).Bool("default", defaultVal).
			Msg("Invalid boolean in environment, using default")
		return defaultVal
	}
	return val
}

// getEnvAsDuration accepts Go durations ("3s") and plain seconds ("3").
func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valStr := getEnv(name, "")
	if valStr == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(valStr); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(valStr, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	log.Warn().Str("key", name).Str("value", valStr).Dur("default", defaultVal).
		Msg("Invalid duration in environment, using default")
	return defaultVal
}
