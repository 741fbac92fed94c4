// Package config reads server settings from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ironsheep/grade-overlay-mcp/internal/grading"
	"github.com/ironsheep/grade-overlay-mcp/internal/imaging"
	"github.com/ironsheep/grade-overlay-mcp/internal/session"
)

type Config struct {
	GeminiAPIKey string
	GeminiModel  string
	Language     string
	GradeTimeout time.Duration

	LogLevel zerolog.Level

	HistoryPath string
	DatabaseURL string
	HTTPAddr    string

	UploadWidth   int
	UploadQuality float64
	Concurrency   int
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	n, err := strconv.Atoi(getEnv(k, ""))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func getFloat(k string, def float64) float64 {
	f, err := strconv.ParseFloat(getEnv(k, ""), 64)
	if err != nil || !(f > 0 && f <= 1) {
		return def
	}
	return f
}

func getDuration(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(k, ""))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Load reads the configuration. Malformed values fall back to their
// defaults. A missing API key is allowed; it can be supplied later.
func Load() *Config {
	level, err := zerolog.ParseLevel(strings.ToLower(getEnv("GRADE_MCP_LOG_LEVEL", "info")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	return &Config{
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", grading.DefaultModel),
		Language:     getEnv("GRADE_MCP_LANGUAGE", grading.DefaultLanguage),
		GradeTimeout: getDuration("GRADE_MCP_GRADING_TIMEOUT", grading.DefaultTimeout),

		LogLevel: level,

		HistoryPath: getEnv("GRADE_MCP_HISTORY_PATH", "grade-history.json"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		HTTPAddr:    getEnv("GRADE_MCP_HTTP_ADDR", ""),

		UploadWidth:   getInt("GRADE_MCP_UPLOAD_WIDTH", imaging.UploadMaxWidth),
		UploadQuality: getFloat("GRADE_MCP_UPLOAD_QUALITY", imaging.UploadQuality),
		Concurrency:   getInt("GRADE_MCP_CONCURRENCY", 4),
	}
}

// Grading returns the grading client settings.
func (c *Config) Grading() grading.Config {
	return grading.Config{
		APIKey:   c.GeminiAPIKey,
		Model:    c.GeminiModel,
		Language: c.Language,
		Timeout:  c.GradeTimeout,
	}
}

// Session returns the submission flow settings.
func (c *Config) Session() session.Options {
	return session.Options{
		UploadWidth:   c.UploadWidth,
		UploadQuality: c.UploadQuality,
		Concurrency:   c.Concurrency,
	}
}
