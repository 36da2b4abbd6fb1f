package throttle

import "time"

const (
	window = time.Second
	// 突发额度每秒恢复速率的 1/10，上限为速率的 1/5。
	burstRefillDivisor = 10
	burstCeilingRatio  = 0.2
	// 已发送量超过速率 2 倍后，每倍额外等待 100ms。
	severeOverrunRatio = 2.0
	overrunPenaltyUnit = 100 * time.Millisecond
)

// Decision 是 Limiter.Next 的结果：要么立即继续，要么等待到 WaitUntil。
type Decision struct {
	Proceed   bool
	WaitUntil time.Time
}

// Limiter 实现按 1 秒窗口计数的字节限速。状态只属于一个传输流，不做并发保护。
type Limiter struct {
	rate        int64
	consumed    int64
	windowStart time.Time

	burst      int64
	burstCap   int64
	lastRefill time.Time
}

// NewLimiter 创建限速器；burst 为 0 时关闭突发额度。burst 会被截断到速率的 20%。
func NewLimiter(rate, burst int64, now time.Time) *Limiter {
	burstCap := int64(float64(rate) * burstCeilingRatio)
	if burst > burstCap {
		burst = burstCap
	}
	if burst < 0 {
		burst = 0
	}
	if burst == 0 {
		burstCap = 0
	}
	return &Limiter{
		rate:        rate,
		windowStart: now,
		burst:       burst,
		burstCap:    burstCap,
		lastRefill:  now,
	}
}

// Next 判断 now 时刻能否继续发送。窗口满额时返回到窗口边界的等待时间点，
// 严重超发时额外延长，避免“大块突发 + 极短等待”的循环。
func (l *Limiter) Next(now time.Time) Decision {
	if now.Sub(l.windowStart) >= window {
		l.resetWindow(now)
		return Decision{Proceed: true}
	}
	if l.consumed < l.limit() {
		return Decision{Proceed: true}
	}
	return Decision{WaitUntil: now.Add(l.waitDuration(now))}
}

// Consume 记录已经交给传输层的字节数，只能在 Next 返回 Proceed 之后调用。
func (l *Limiter) Consume(n int, now time.Time) {
	if n <= 0 {
		return
	}
	l.consumed += int64(n)
	l.refillBurst(now)
}

// Allowance 返回当前窗口剩余的可发送字节数。
func (l *Limiter) Allowance() int64 {
	remaining := l.limit() - l.consumed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Rate 返回稳态速率（字节/秒）。
func (l *Limiter) Rate() int64 {
	return l.rate
}

func (l *Limiter) limit() int64 {
	return l.rate + l.burst
}

func (l *Limiter) resetWindow(now time.Time) {
	// 超出稳态速率的部分由突发额度承担，下一个窗口开始前结算。
	if over := l.consumed - l.rate; over > 0 && l.burst > 0 {
		l.burst -= over
		if l.burst < 0 {
			l.burst = 0
		}
	}
	l.refillBurst(now)
	l.consumed = 0
	l.windowStart = now
}

func (l *Limiter) refillBurst(now time.Time) {
	if l.burstCap == 0 {
		return
	}
	elapsed := now.Sub(l.lastRefill)
	if elapsed <= 0 {
		return
	}
	l.lastRefill = now
	if l.burst >= l.burstCap {
		return
	}
	recovered := int64(float64(l.rate/burstRefillDivisor) * elapsed.Seconds())
	l.burst += recovered
	if l.burst > l.burstCap {
		l.burst = l.burstCap
	}
}

func (l *Limiter) waitDuration(now time.Time) time.Duration {
	remaining := l.windowStart.Add(window).Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	ratio := float64(l.consumed) / float64(l.rate)
	if ratio > severeOverrunRatio {
		remaining += time.Duration(ratio * float64(overrunPenaltyUnit))
	}
	return remaining
}
