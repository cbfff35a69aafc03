package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig 服务配置
type ServerConfig struct {
	Listen      string `yaml:"listen"`       // HTTP 监听地址，默认 :8080
	MarketDB    string `yaml:"market_db"`    // Badger 市场状态库目录
	JournalDB   string `yaml:"journal_db"`   // SQLite 事件日志文件
	LogFile     string `yaml:"log_file"`     // 日志文件路径（可选）
	LogLevel    string `yaml:"log_level"`    // 日志级别，默认 info
	ChainID     int64  `yaml:"chain_id"`     // 链 ID（仅用于事件标注）
	EnableWS    bool   `yaml:"enable_ws"`    // 是否启用 /ws 事件推送
	EnableAdmin bool   `yaml:"enable_admin"` // 是否启用沙盒 admin 接口（mint/deposit/approve）
}

// PlatformConfig 平台参数（部署时确定，运行期不可变）
type PlatformConfig struct {
	Owner             string `yaml:"owner"`               // 平台手续费收款地址
	FeeBps            uint64 `yaml:"fee_bps"`             // 平台手续费率（bps）
	BidBufferBps      uint64 `yaml:"bid_buffer_bps"`      // 最小加价比例（bps）
	TimeBufferSeconds uint64 `yaml:"time_buffer_seconds"` // 反狙击时间缓冲（秒）
	MaxBps            uint64 `yaml:"max_bps"`             // 比例分母，默认 10000
}

// RoyaltyConfig 版税查询配置
type RoyaltyConfig struct {
	OracleURL       string `yaml:"oracle_url"`        // 版税查询服务地址（可选，为空则只用注册表内置版税）
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"` // 查询结果缓存时间（秒），默认 60
	TimeoutSeconds  int    `yaml:"timeout_seconds"`   // 单次查询超时（秒），默认 5
}

// Config 顶层配置
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Platform PlatformConfig `yaml:"platform"`
	Royalty  RoyaltyConfig  `yaml:"royalty"`
}

// TimeBuffer 返回反狙击缓冲时长
func (p PlatformConfig) TimeBuffer() time.Duration {
	return time.Duration(p.TimeBufferSeconds) * time.Second
}

// Validate 校验平台参数
func (p PlatformConfig) Validate() error {
	if p.MaxBps == 0 {
		return fmt.Errorf("platform.max_bps must be non-zero")
	}
	if p.FeeBps > p.MaxBps {
		return fmt.Errorf("platform.fee_bps %d exceeds max_bps %d", p.FeeBps, p.MaxBps)
	}
	if p.BidBufferBps > p.MaxBps {
		return fmt.Errorf("platform.bid_buffer_bps %d exceeds max_bps %d", p.BidBufferBps, p.MaxBps)
	}
	if strings.TrimSpace(p.Owner) == "" {
		return fmt.Errorf("platform.owner is required")
	}
	return nil
}

// Default 返回默认配置
func Default() Config {
	return Config{
		Server: ServerConfig{
			Listen:      ":8080",
			MarketDB:    "data/marketdb",
			JournalDB:   "data/journal.db",
			LogLevel:    "info",
			EnableWS:    true,
			EnableAdmin: true,
		},
		Platform: PlatformConfig{
			FeeBps:            250, // 2.5%
			BidBufferBps:      500, // 5%
			TimeBufferSeconds: 900, // 15 分钟
			MaxBps:            10000,
		},
		Royalty: RoyaltyConfig{
			CacheTTLSeconds: 60,
			TimeoutSeconds:  5,
		},
	}
}

// Load 从 YAML 文件加载配置（缺省项回落到 Default）
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	if cfg.Platform.MaxBps == 0 {
		cfg.Platform.MaxBps = 10000
	}
	if cfg.Royalty.CacheTTLSeconds <= 0 {
		cfg.Royalty.CacheTTLSeconds = 60
	}
	if cfg.Royalty.TimeoutSeconds <= 0 {
		cfg.Royalty.TimeoutSeconds = 5
	}
	return cfg, nil
}
