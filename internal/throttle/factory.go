package throttle

import (
	"context"
	"errors"
	"fmt"
	"io"

	"k8s.io/utils/clock"
)

// DefaultRate 为单连接默认限速 100MiB/s，避免下行过快把 CPU 打满。
const DefaultRate int64 = 100 * 1024 * 1024

// ErrInvalidRate 表示限速配置不合法（速率必须为正），属于启动期错误。
var ErrInvalidRate = errors.New("rate limit must be positive")

// Factory 根据统一配置为每个大文件传输创建独立的限速流；限速是按连接计算的，
// 不同传输之间不共享 Limiter。
type Factory struct {
	rate       int64
	burstRatio float64
	clock      clock.Clock
}

// NewFactory 校验速率与突发比例。clk 为 nil 时使用真实时钟。
func NewFactory(rate int64, burstRatio float64, clk clock.Clock) (*Factory, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRate, rate)
	}
	if burstRatio < 0 || burstRatio > burstCeilingRatio {
		return nil, fmt.Errorf("burst ratio must be within [0, %.1f]: %v", burstCeilingRatio, burstRatio)
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Factory{rate: rate, burstRatio: burstRatio, clock: clk}, nil
}

// Rate 返回稳态速率。
func (f *Factory) Rate() int64 {
	return f.rate
}

// BurstRatio 返回突发比例，0 表示关闭。
func (f *Factory) BurstRatio() float64 {
	return f.burstRatio
}

// NewLimiter 创建一个新的限速状态。
func (f *Factory) NewLimiter() *Limiter {
	burst := int64(float64(f.rate) * f.burstRatio)
	return NewLimiter(f.rate, burst, f.clock.Now())
}

// Wrap 为一次传输创建限速流，缓冲区大小按文件大小选择。
func (f *Factory) Wrap(ctx context.Context, src io.Reader, size int64) *Reader {
	return NewReader(ctx, src, f.NewLimiter(), f.clock, BufferSize(size))
}

// BufferSize 在系统调用次数与内存占用之间折中：文件越大，单次拉取的块越大。
func BufferSize(size int64) int {
	switch {
	case size <= 16*1024*1024:
		return 256 * 1024
	case size <= 64*1024*1024:
		return 512 * 1024
	case size <= 1024*1024*1024:
		return 1024 * 1024
	default:
		return 2 * 1024 * 1024
	}
}
