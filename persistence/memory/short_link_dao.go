package memory

import (
	"context"
	"time"

	c "github.com/patrickmn/go-cache"

	"github.com/luximus/flowbot/persistence"
)

var _ persistence.ShortLinkDao = new(memoryShortLinkDao)

type memoryShortLinkDao struct {
	cache *c.Cache
}

func NewMemoryShortLinkDao() *memoryShortLinkDao {
	return &memoryShortLinkDao{
		cache: c.New(c.NoExpiration, 10*time.Minute),
	}
}

func (m *memoryShortLinkDao) SaveLink(ctx context.Context, code string, url string, ttl time.Duration) error {
	m.cache.Set(code, url, ttl)
	return nil
}

func (m *memoryShortLinkDao) GetLink(ctx context.Context, code string) (string, error) {
	url, found := m.cache.Get(code)
	if !found {
		return "", persistence.ErrNotFound
	}
	return url.(string), nil
}
