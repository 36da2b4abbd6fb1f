package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"2h" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// ServerConfig 描述监听地址与对外暴露的根目录。
type ServerConfig struct {
	ListenPort  int    `mapstructure:"ListenPort"`
	BindAddress string `mapstructure:"BindAddress"`
	RootDir     string `mapstructure:"RootDir"`
	EnableCORS  bool   `mapstructure:"EnableCORS"`
}

// LogConfig 控制日志级别与输出位置，LogFilePath 为空时输出到 stdout。
type LogConfig struct {
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`
}

// DeliveryConfig 是文件交付引擎消费的全部参数。
type DeliveryConfig struct {
	// CacheCapacity 按条目数限制内存缓存，而非字节数。
	CacheCapacity int64 `mapstructure:"CacheCapacity"`
	// CacheTTL 是条目自写入起的最长寿命。
	CacheTTL Duration `mapstructure:"CacheTTL"`
	// CacheSizeThreshold 以内（含）的非空文件才会进入缓存。
	CacheSizeThreshold int64 `mapstructure:"CacheSizeThreshold"`
	// RateLimit 为单连接稳态限速，单位字节/秒。
	RateLimit int64 `mapstructure:"RateLimit"`
	// BurstRatio 为突发额度占速率的比例，0 表示关闭。
	BurstRatio float64 `mapstructure:"BurstRatio"`
}

// Config 是 TOML 文件映射的整体结构，所有字段位于顶层。
type Config struct {
	Server   ServerConfig   `mapstructure:",squash"`
	Log      LogConfig      `mapstructure:",squash"`
	Delivery DeliveryConfig `mapstructure:",squash"`
}

// ListenAddr 返回 fiber 监听地址。
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.ListenPort)
}
