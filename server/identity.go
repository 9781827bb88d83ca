package server

import (
	"net"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// PlayerID 表示玩家唯一标识（由首次出现的对端地址派生）
type PlayerID string

// IdentityOf 由传输层地址派生玩家标识，纯函数，同一地址永远得到同一标识
func IdentityOf(addr net.Addr) PlayerID {
	return PlayerID(addr.Network() + "://" + addr.String())
}

// SameAddr 网络类型与地址都相同
func SameAddr(a, b net.Addr) bool {
	return a.Network() == b.Network() && a.String() == b.String()
}

// TokenStore 保存重连令牌 -> 玩家标识，条目按 TTL 过期。
// 地址变化（NAT 重绑定、客户端重启）时客户端凭令牌找回原身份。
type TokenStore struct {
	cache *gocache.Cache
	ttl   time.Duration
}

func NewTokenStore(ttl time.Duration) *TokenStore {
	cleanup := ttl
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	return &TokenStore{cache: gocache.New(ttl, cleanup), ttl: ttl}
}

// Issue 为玩家签发新令牌
func (s *TokenStore) Issue(id PlayerID) string {
	token := uuid.NewString()
	s.cache.Set(token, id, gocache.DefaultExpiration)
	return token
}

// Resolve 查找令牌对应的玩家，并顺延有效期
func (s *TokenStore) Resolve(token string) (PlayerID, bool) {
	v, ok := s.cache.Get(token)
	if !ok {
		return "", false
	}
	id := v.(PlayerID)
	s.cache.Set(token, id, gocache.DefaultExpiration)
	return id, true
}

// Refresh 玩家仍在活动时顺延令牌有效期，TTL 只在玩家沉默后开始计时
func (s *TokenStore) Refresh(token string, id PlayerID) {
	if token != "" {
		s.cache.Set(token, id, gocache.DefaultExpiration)
	}
}

// Revoke 作废令牌（玩家离开时）
func (s *TokenStore) Revoke(token string) {
	if token != "" {
		s.cache.Delete(token)
	}
}
