package config

import (
	"os"
	"strconv"
	"strings"

	"dupfinder/descriptorcache"
	"dupfinder/signalhandler"
)

type Config struct {
	Analysis AnalysisConfig
	Report   ReportConfig
	Metrics  MetricsConfig
	Log      LogConfig
}

type AnalysisConfig struct {
	Algorithm     string // histogram or feature, defaults to histogram
	MaxThreads    int    // defaults to the logical CPU count
	Tuning        string // profile name, empty selects the file's default
	TuningFile    string // external YAML replacing the embedded profiles
	CacheCapacity int    // descriptor cache entries per algorithm
}

type ReportConfig struct {
	DatabasePath string // SQLite report; empty disables the export
}

type MetricsConfig struct {
	Addr string // listen address for /metrics, empty disables it
}

type LogConfig struct {
	Level string
	File  string
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	level := envString("LOG_LEVEL", "info")
	if strings.EqualFold(os.Getenv("DEBUG"), "true") {
		level = "debug"
	}

	return &Config{
		Analysis: AnalysisConfig{
			Algorithm:     envString("DUPFINDER_ALGORITHM", "histogram"),
			MaxThreads:    envInt("DUPFINDER_MAX_THREADS", signalhandler.GetOptimalProcs()),
			Tuning:        os.Getenv("DUPFINDER_TUNING"),
			TuningFile:    os.Getenv("DUPFINDER_TUNING_FILE"),
			CacheCapacity: envInt("DUPFINDER_CACHE_CAPACITY", descriptorcache.DefaultCapacity),
		},
		Report: ReportConfig{
			DatabasePath: os.Getenv("DUPFINDER_REPORT_DB"),
		},
		Metrics: MetricsConfig{
			Addr: os.Getenv("DUPFINDER_METRICS_ADDR"),
		},
		Log: LogConfig{
			Level: level,
			File:  os.Getenv("DUPFINDER_LOG_FILE"),
		},
	}
}
