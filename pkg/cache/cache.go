package cache

import (
	"sync"
	"time"
)

// TTLCache 带过期时间的内存缓存
// 用于缓存外部查询结果（例如版税查询），减少重复的远程调用
type TTLCache[K comparable, V any] struct {
	items      map[K]entry[V]
	mu         sync.RWMutex
	defaultTTL time.Duration
}

// entry 缓存项
type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// NewTTLCache 创建新的 TTL 缓存
// defaultTTL <= 0 表示不过期
func NewTTLCache[K comparable, V any](defaultTTL time.Duration) *TTLCache[K, V] {
	return &TTLCache[K, V]{
		items:      make(map[K]entry[V]),
		defaultTTL: defaultTTL,
	}
}

// Get 获取缓存值；过期的条目视为不存在并被惰性删除
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if !item.expiresAt.IsZero() && time.Now().After(item.expiresAt) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return zero, false
	}
	return item.value, true
}

// Set 写入缓存值，使用默认 TTL
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL 写入缓存值并指定 TTL
func (c *TTLCache[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.items[key] = entry[V]{value: value, expiresAt: expiresAt}
	c.mu.Unlock()
}

// Delete 删除缓存项
func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Size 返回缓存项数量（包含未被惰性清理的过期项）
func (c *TTLCache[K, V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
