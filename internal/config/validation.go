package config

import (
	"errors"
	"strings"
)

// maxBurstRatio 与限速器的突发上限保持一致。
const maxBurstRatio = 0.2

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	s := c.Server
	if s.ListenPort <= 0 || s.ListenPort > 65535 {
		return newFieldError("ListenPort", s.ListenPort, "必须在 1-65535")
	}
	if err := validateBindAddress(s.BindAddress); err != nil {
		return newFieldError("BindAddress", s.BindAddress, err.Error())
	}
	if strings.TrimSpace(s.RootDir) == "" {
		return newFieldError("RootDir", s.RootDir, "不能为空")
	}

	d := c.Delivery
	if d.CacheCapacity <= 0 {
		return newFieldError("CacheCapacity", d.CacheCapacity, "必须大于 0")
	}
	if d.CacheTTL.DurationValue() <= 0 {
		return newFieldError("CacheTTL", d.CacheTTL.DurationValue(), "必须大于 0")
	}
	if d.CacheSizeThreshold <= 0 {
		return newFieldError("CacheSizeThreshold", d.CacheSizeThreshold, "必须大于 0")
	}
	if d.RateLimit <= 0 {
		return newFieldError("RateLimit", d.RateLimit, "必须大于 0")
	}
	if d.BurstRatio < 0 || d.BurstRatio > maxBurstRatio {
		return newFieldError("BurstRatio", d.BurstRatio, "必须在 0-0.2")
	}

	if c.Log.LogMaxSize < 0 {
		return newFieldError("LogMaxSize", c.Log.LogMaxSize, "不能为负数")
	}
	if c.Log.LogMaxBackups < 0 {
		return newFieldError("LogMaxBackups", c.Log.LogMaxBackups, "不能为负数")
	}
	return nil
}

func validateBindAddress(addr string) error {
	if addr == "" {
		return errors.New("不能为空")
	}
	if strings.Contains(addr, " ") {
		return errors.New("不允许包含空格")
	}
	if strings.Contains(addr, "://") {
		return errors.New("不应包含协议头")
	}
	if strings.Contains(addr, "/") {
		return errors.New("不允许包含路径")
	}
	return nil
}
