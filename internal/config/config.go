// Package config loads handglow settings from the environment.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting. Flags in cmd/handglow override the
// environment-derived values.
type Config struct {
	Addr         string
	StaticDir    string
	DBPath       string
	CameraID     int
	CaptureW     int
	CaptureH     int
	ViewportW    int
	ViewportH    int
	Mirror       bool
	ScriptPath   string
	LogLevel     string
	LogFile      string
	Tray         bool
	AutoStart    bool
	UseMockHands bool
}

// Load reads an optional .env file and then the environment. A missing .env
// file is not an error.
func Load(envFiles ...string) *Config {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}

	return &Config{
		Addr:         getEnv("HANDGLOW_ADDR", ":8080"),
		StaticDir:    getEnv("HANDGLOW_STATIC_DIR", ""),
		DBPath:       getEnv("HANDGLOW_DB", ""),
		CameraID:     getEnvAsInt("HANDGLOW_CAMERA", 0),
		CaptureW:     getEnvAsInt("HANDGLOW_CAPTURE_WIDTH", 1280),
		CaptureH:     getEnvAsInt("HANDGLOW_CAPTURE_HEIGHT", 720),
		ViewportW:    getEnvAsInt("HANDGLOW_VIEWPORT_WIDTH", 1280),
		ViewportH:    getEnvAsInt("HANDGLOW_VIEWPORT_HEIGHT", 720),
		Mirror:       getEnvAsBool("HANDGLOW_MIRROR", true),
		ScriptPath:   getEnv("HANDGLOW_MEDIAPIPE_SCRIPT", ""),
		LogLevel:     getEnv("HANDGLOW_LOG_LEVEL", "info"),
		LogFile:      getEnv("HANDGLOW_LOG_FILE", ""),
		Tray:         getEnvAsBool("HANDGLOW_TRAY", false),
		AutoStart:    getEnvAsBool("HANDGLOW_AUTOSTART", false),
		UseMockHands: getEnvAsBool("HANDGLOW_MOCK_HANDS", false),
	}
}

// DefaultDataDir returns ~/.handglow, or "." when the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".handglow")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
