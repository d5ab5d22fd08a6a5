package config

import (
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Host string `mapstructure:"host"`
}

type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

type K8SConfig struct {
	KubeConfigPath string `mapstructure:"kube_config_path"`
	IsInCluster    bool   `mapstructure:"in_cluster"`
	// Source selects the metrics backend: "live" or "synthetic".
	Source string `mapstructure:"source"`
}

type MonitorConfig struct {
	IntervalSeconds int  `mapstructure:"interval_seconds"`
	EventCapacity   int  `mapstructure:"event_capacity"`
	HistoryCapacity int  `mapstructure:"history_capacity"`
	AuditCapacity   int  `mapstructure:"audit_capacity"`
	Autostart       bool `mapstructure:"autostart"`
}

type ModelConfig struct {
	RiskThreshold float64 `mapstructure:"risk_threshold"`
}

type WardenConfig struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	K8S     K8SConfig     `mapstructure:"k8s"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Model   ModelConfig   `mapstructure:"model"`
}

const (
	SourceLive      = "live"
	SourceSynthetic = "synthetic"
)

var wardenCfg *WardenConfig

func GetWardenConfig() *WardenConfig {
	return wardenCfg
}

func InitWardenConfig(configName string, configPath string) (WardenConfig, error) {
	var cfg WardenConfig
	if configPath != "" {
		viper.AddConfigPath(configPath)
	}
	if configName == "" {
		configName = "warden_config"
	}
	viper.AddConfigPath(GetAbsPath("config"))
	viper.SetConfigName(configName)
	viper.SetConfigType("toml")
	viper.SetEnvPrefix("WARDEN")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	err := viper.ReadInConfig()
	if err != nil {
		return cfg, err
	}

	err = viper.Unmarshal(&cfg)
	if err != nil {
		return cfg, err
	}
	cfg.applyDefaults()
	wardenCfg = &cfg
	return cfg, nil
}

func (cfg *WardenConfig) applyDefaults() {
	if cfg.K8S.Source == "" {
		cfg.K8S.Source = SourceSynthetic
	}
	if cfg.Monitor.IntervalSeconds <= 0 {
		cfg.Monitor.IntervalSeconds = 3
	}
	if cfg.Monitor.EventCapacity <= 0 {
		cfg.Monitor.EventCapacity = 200
	}
	if cfg.Monitor.HistoryCapacity <= 0 {
		cfg.Monitor.HistoryCapacity = 1000
	}
	if cfg.Monitor.AuditCapacity <= 0 {
		cfg.Monitor.AuditCapacity = 1000
	}
	if cfg.Model.RiskThreshold <= 0 || cfg.Model.RiskThreshold >= 1 {
		cfg.Model.RiskThreshold = 0.65
	}
}

// GetAbsPath returns the absolute path by joining the given paths with the project root directory
func GetAbsPath(paths ...string) string {
	_, filePath, _, _ := runtime.Caller(1)
	basePath := filepath.Dir(filePath)
	rootPath := filepath.Join(basePath, "..")
	return filepath.Join(rootPath, filepath.Join(paths...))
}
