package throttle

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// ErrClosed 表示读取过程中流已被关闭（通常是客户端断开后传输层回收了 body）。
var ErrClosed = errors.New("throttled reader closed")

// Reader 把底层文件流包装成限速流。每次 Read 先询问 Limiter，满额时挂起在
// 时钟定时器上，不做轮询；定时器在 Close 或 ctx 取消时立即释放。
type Reader struct {
	ctx     context.Context
	src     *bufio.Reader
	closer  io.Closer
	limiter *Limiter
	clock   clock.Clock

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

// NewReader 以 bufSize 作为单次拉取的块大小包装 src；src 若实现 io.Closer 会随 Close 关闭。
func NewReader(ctx context.Context, src io.Reader, limiter *Limiter, clk clock.Clock, bufSize int) *Reader {
	if ctx == nil {
		ctx = context.Background()
	}
	r := &Reader{
		ctx:     ctx,
		src:     bufio.NewReaderSize(src, bufSize),
		limiter: limiter,
		clock:   clk,
		closed:  make(chan struct{}),
	}
	if c, ok := src.(io.Closer); ok {
		r.closer = c
	}
	return r
}

// Read 实现 io.Reader。底层 EOF 或错误原样返回，不再进入限速等待。
func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		select {
		case <-r.closed:
			return 0, ErrClosed
		default:
		}

		now := r.clock.Now()
		decision := r.limiter.Next(now)
		if decision.Proceed {
			break
		}
		if err := r.wait(decision.WaitUntil.Sub(now)); err != nil {
			return 0, err
		}
	}

	if allowance := r.limiter.Allowance(); allowance < int64(len(p)) {
		p = p[:allowance]
	}
	n, err := r.src.Read(p)
	if n > 0 {
		r.limiter.Consume(n, r.clock.Now())
	}
	return n, err
}

func (r *Reader) wait(d time.Duration) error {
	timer := r.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C():
		return nil
	case <-r.ctx.Done():
		return r.ctx.Err()
	case <-r.closed:
		return ErrClosed
	}
}

// Close 唤醒挂起中的 Read 并关闭底层文件，可重复调用。
func (r *Reader) Close() error {
	r.closeOnce.Do(func() {
		close(r.closed)
		if r.closer != nil {
			r.closeErr = r.closer.Close()
		}
	})
	return r.closeErr
}
