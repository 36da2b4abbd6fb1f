package routes

import (
	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/file-hub/internal/cache"
	"github.com/any-hub/file-hub/internal/delivery"
	"github.com/any-hub/file-hub/internal/version"
)

// RegisterStatusRoutes 暴露 /-/status 诊断接口，供运维查看根目录、缓存命中与限速配置。
func RegisterStatusRoutes(app *fiber.App, engine *delivery.Engine) {
	if app == nil || engine == nil {
		return
	}

	app.Get("/-/status", func(c fiber.Ctx) error {
		return c.JSON(encodeStatus(engine))
	})
}

type statusPayload struct {
	Version  string          `json:"version"`
	Root     string          `json:"root"`
	Cache    cachePayload    `json:"cache"`
	Throttle throttlePayload `json:"throttle"`
}

type cachePayload struct {
	Capacity      int64       `json:"capacity"`
	TTLSeconds    int64       `json:"ttl_seconds"`
	SizeThreshold int64       `json:"size_threshold"`
	Stats         cache.Stats `json:"stats"`
}

type throttlePayload struct {
	RateBytesPerSecond int64   `json:"rate_bytes_per_second"`
	BurstRatio         float64 `json:"burst_ratio"`
}

func encodeStatus(engine *delivery.Engine) statusPayload {
	c := engine.Cache()
	t := engine.Throttle()
	return statusPayload{
		Version: version.Full(),
		Root:    engine.Root(),
		Cache: cachePayload{
			Capacity:      c.Capacity(),
			TTLSeconds:    int64(c.TTL().Seconds()),
			SizeThreshold: c.Threshold(),
			Stats:         c.Stats(),
		},
		Throttle: throttlePayload{
			RateBytesPerSecond: t.Rate(),
			BurstRatio:         t.BurstRatio(),
		},
	}
}
