package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string

	// Gemini
	GeminiAPIKey  string
	GeminiModel   string
	VideoFPS      int
	GeminiTimeout time.Duration
	GeminiRetries int

	// Storage
	UploadDir string
	OutputDir string

	// Shorts
	MinShortDuration    time.Duration
	MaxShortDuration    time.Duration
	MaxShortsToGenerate int
	RefineLookback      time.Duration

	// Clip generation
	ClipWorkers    int
	ClipRetries    int
	ClipStreamCopy bool

	// Tools
	FFmpegPath  string
	FFprobePath string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		Port: getEnvOrDefault("PORT", "8080"),

		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiModel:   getEnvOrDefault("GEMINI_MODEL", "gemini-3-flash-preview"),
		VideoFPS:      getEnvAsIntOrDefault("VIDEO_FPS", 2),
		GeminiTimeout: getEnvAsDurationOrDefault("GEMINI_TIMEOUT_SECONDS", 90*time.Second),
		GeminiRetries: getEnvAsIntOrDefault("GEMINI_RETRIES", 3),

		UploadDir: getEnvOrDefault("UPLOAD_DIR", "./uploads"),
		OutputDir: getEnvOrDefault("OUTPUT_DIR", "./outputs"),

		MinShortDuration:    getEnvAsDurationOrDefault("MIN_SHORT_DURATION", 15*time.Second),
		MaxShortDuration:    getEnvAsDurationOrDefault("MAX_SHORT_DURATION", 60*time.Second),
		MaxShortsToGenerate: getEnvAsIntOrDefault("MAX_SHORTS_TO_GENERATE", 5),
		RefineLookback:      getEnvAsDurationOrDefault("REFINE_LOOKBACK_SECONDS", 8*time.Second),

		ClipWorkers:    getEnvAsIntOrDefault("CLIP_WORKERS", 3),
		ClipRetries:    getEnvAsIntOrDefault("CLIP_RETRIES", 2),
		ClipStreamCopy: getEnvAsBoolOrDefault("CLIP_STREAM_COPY", false),

		FFmpegPath:  getEnvOrDefault("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: getEnvOrDefault("FFPROBE_PATH", "ffprobe"),
	}
}

func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required (set it in .env)")
	}
	if c.MinShortDuration <= 0 {
		return fmt.Errorf("min short duration must be > 0")
	}
	if c.MaxShortDuration <= 0 {
		return fmt.Errorf("max short duration must be > 0")
	}
	if c.MinShortDuration > c.MaxShortDuration {
		return fmt.Errorf("min short duration must be <= max short duration")
	}
	if c.ClipWorkers <= 0 {
		return fmt.Errorf("clip workers must be > 0")
	}
	if c.RefineLookback <= 0 {
		return fmt.Errorf("refine look-back must be > 0")
	}
	return nil
}

// EnsureDirectories creates the upload/output directories if missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.UploadDir, c.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Constraints builds the default identification constraints from config.
func (c *Config) Constraints() (min, max time.Duration, maxShorts int) {
	return c.MinShortDuration, c.MaxShortDuration, c.MaxShortsToGenerate
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return time.Duration(n) * time.Second
}
