package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/any-hub/file-hub/internal/cache"
	"github.com/any-hub/file-hub/internal/throttle"
)

// EnvPrefix 是环境变量覆盖的前缀，例如 FILE_HUB_LISTENPORT=9000。
const EnvPrefix = "FILE_HUB"

// DefaultPath 为未显式指定时尝试读取的配置文件，不存在则只使用默认值。
const DefaultPath = "file-hub.toml"

// Load 读取 TOML 配置（可选）、环境变量与默认值，完成解析与校验。
// path 为空时回退到 DefaultPath，显式给出的路径必须存在。
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	if explicit || fileExists(path) {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Finalize 校验配置并把 RootDir 规范为绝对路径；CLI 覆盖字段后需重新调用。
func (c *Config) Finalize() error {
	if err := c.Validate(); err != nil {
		return err
	}
	absRoot, err := filepath.Abs(c.Server.RootDir)
	if err != nil {
		return fmt.Errorf("无法解析根目录: %w", err)
	}
	c.Server.RootDir = absRoot
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 8000)
	v.SetDefault("BindAddress", "0.0.0.0")
	v.SetDefault("RootDir", ".")
	v.SetDefault("EnableCORS", true)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("CacheCapacity", cache.DefaultCapacity)
	v.SetDefault("CacheTTL", cache.DefaultTTL.String())
	v.SetDefault("CacheSizeThreshold", cache.DefaultSizeThreshold)
	v.SetDefault("RateLimit", throttle.DefaultRate)
	v.SetDefault("BurstRatio", 0.0)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return !errors.Is(err, os.ErrNotExist)
	}
	return !info.IsDir()
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
