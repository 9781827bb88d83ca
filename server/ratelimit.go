package server

import (
	"net"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 5 * time.Minute

// peerLimiter 每个对端一个令牌桶，长时间不活跃的对端自动清理
type peerLimiter struct {
	limiters *gocache.Cache
	limit    rate.Limit
	burst    int
}

// newPeerLimiter perSecond <= 0 时返回 nil，表示不限流
func newPeerLimiter(perSecond float64, burst int) *peerLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &peerLimiter{
		limiters: gocache.New(limiterIdleTTL, time.Minute),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

func (p *peerLimiter) get(key string) *rate.Limiter {
	if v, ok := p.limiters.Get(key); ok {
		return v.(*rate.Limiter)
	}
	l := rate.NewLimiter(p.limit, p.burst)
	if err := p.limiters.Add(key, l, gocache.DefaultExpiration); err != nil {
		// 并发读协程抢先创建了
		if v, ok := p.limiters.Get(key); ok {
			return v.(*rate.Limiter)
		}
	}
	return l
}

// Allow 报告该对端此刻是否还能发送一条消息
func (p *peerLimiter) Allow(addr net.Addr) bool {
	if p == nil {
		return true
	}
	return p.get(string(IdentityOf(addr))).Allow()
}
