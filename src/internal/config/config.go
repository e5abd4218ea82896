package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
)

// Config 一次编译调用所需的全部配置。按值传递，编译入口处做快照。
type Config struct {
	TargetVersion  string `yaml:"target_version"`
	Optimize       bool   `yaml:"optimize"`
	GasOptimize    bool   `yaml:"gas_optimize"`
	SecurityChecks bool   `yaml:"security_checks"`
	License        string `yaml:"license"`

	// 以下字段只被 batch / cli 使用，核心流水线忽略
	Concurrency int         `yaml:"concurrency"`
	OutputDir   string      `yaml:"output_dir"`
	Store       StoreConfig `yaml:"store"`
}

// StoreConfig selects the artifact database. Driver is sqlite, postgres or mysql.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

const (
	DefaultTargetVersion = "0.8.20"
	DefaultLicense       = "MIT"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		TargetVersion:  DefaultTargetVersion,
		Optimize:       true,
		GasOptimize:    true,
		SecurityChecks: true,
		License:        DefaultLicense,
		Concurrency:    5, // 默认并发数
		OutputDir:      "build",
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    "data/rubisol.db",
		},
	}
}

// Validate checks that the version is a usable constraint and numeric fields are sane.
func (c Config) Validate() error {
	if _, err := semver.NewConstraint(c.Constraint()); err != nil {
		return fmt.Errorf("invalid target version %q: %w", c.TargetVersion, err)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency)
	}
	switch c.Store.Driver {
	case "", "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
	return nil
}

// Constraint returns the pragma constraint for TargetVersion: a bare version gets a caret.
func (c Config) Constraint() string {
	v := strings.TrimSpace(c.TargetVersion)
	if v == "" {
		v = DefaultTargetVersion
	}
	if v[0] >= '0' && v[0] <= '9' {
		return "^" + v
	}
	return v
}

// Fingerprint identifies the settings that change generated code. Two configs
// with the same fingerprint produce the same output for the same source.
func (c Config) Fingerprint() string {
	return fmt.Sprintf("%s;%s;optimize=%t;gas=%t;security=%t",
		c.Constraint(), c.License, c.Optimize, c.GasOptimize, c.SecurityChecks)
}

// ---- 进程级默认配置 ----

var (
	mu      sync.RWMutex
	current = Default()
)

// Init replaces the process default. The value is validated first.
func Init(c Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	mu.Lock()
	current = c
	mu.Unlock()
	return nil
}

// Reset restores the built-in default.
func Reset() {
	mu.Lock()
	current = Default()
	mu.Unlock()
}

// Current returns a snapshot of the process default. Later Init calls do not
// affect the returned value.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// ApplyEnv overrides fields from RUBISOL_* environment variables.
func ApplyEnv(c Config) Config {
	c.TargetVersion = getEnv("RUBISOL_TARGET_VERSION", c.TargetVersion)
	c.License = getEnv("RUBISOL_LICENSE", c.License)
	c.Optimize = getEnvAsBool("RUBISOL_OPTIMIZE", c.Optimize)
	c.GasOptimize = getEnvAsBool("RUBISOL_GAS_OPTIMIZE", c.GasOptimize)
	c.SecurityChecks = getEnvAsBool("RUBISOL_SECURITY_CHECKS", c.SecurityChecks)
	c.Concurrency = getEnvAsInt("RUBISOL_CONCURRENCY", c.Concurrency)
	c.Store.Driver = getEnv("RUBISOL_STORE_DRIVER", c.Store.Driver)
	c.Store.DSN = getEnv("RUBISOL_STORE_DSN", c.Store.DSN)
	return c
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
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
