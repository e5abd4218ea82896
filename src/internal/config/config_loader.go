package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config with pointers so that keys absent from the
// YAML file keep their default.
type fileConfig struct {
	TargetVersion  *string `yaml:"target_version"`
	Optimize       *bool   `yaml:"optimize"`
	GasOptimize    *bool   `yaml:"gas_optimize"`
	SecurityChecks *bool   `yaml:"security_checks"`
	License        *string `yaml:"license"`
	Concurrency    *int    `yaml:"concurrency"`
	OutputDir      *string `yaml:"output_dir"`
	Store          *struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"store"`
}

// helloq LoadConfig 加载 YAML 配置并叠加到默认值上。
// path 为空时按 findConfigFile 的候选路径查找；找不到文件不是错误，返回默认值和空路径。
func LoadConfig(path string) (Config, string, error) {
	cfg := Default()
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return cfg, "", nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, path, fmt.Errorf("failed to read configuration file: %w", err)
	}
	cfg, err = Parse(data, cfg)
	if err != nil {
		return cfg, path, fmt.Errorf("failed to parse configuration file %s: %w", path, err)
	}
	return cfg, path, nil
}

// Parse overlays YAML data on base.
func Parse(data []byte, base Config) (Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return base, err
	}
	cfg := base
	if fc.TargetVersion != nil {
		cfg.TargetVersion = *fc.TargetVersion
	}
	if fc.Optimize != nil {
		cfg.Optimize = *fc.Optimize
	}
	if fc.GasOptimize != nil {
		cfg.GasOptimize = *fc.GasOptimize
	}
	if fc.SecurityChecks != nil {
		cfg.SecurityChecks = *fc.SecurityChecks
	}
	if fc.License != nil {
		cfg.License = *fc.License
	}
	if fc.Concurrency != nil {
		cfg.Concurrency = *fc.Concurrency
	}
	if fc.OutputDir != nil {
		cfg.OutputDir = *fc.OutputDir
	}
	if fc.Store != nil {
		if fc.Store.Driver != "" {
			cfg.Store.Driver = fc.Store.Driver
		}
		if fc.Store.DSN != "" {
			cfg.Store.DSN = fc.Store.DSN
		}
	}
	if err := cfg.Validate(); err != nil {
		return base, err
	}
	return cfg, nil
}

// Marshal renders cfg as YAML, used by `rubisol config`.
func Marshal(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

func findConfigFile() string {
	possiblePaths := []string{
		"rubisol.yaml",
		"config/rubisol.yaml",
		"config/settings.yaml",
		"src/config/rubisol.yaml",
		"../config/rubisol.yaml",
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

func GetConfigPath() string {
	return findConfigFile()
}

func GetConfigDir() string {
	configPath := findConfigFile()
	if configPath == "" {
		return "config"
	}
	return filepath.Dir(configPath)
}
