package redis

import (
	"context"
	"errors"
	"time"

	rd "github.com/redis/go-redis/v9"

	"github.com/luximus/flowbot/persistence"
)

var _ persistence.ShortLinkDao = new(redisShortLinkDao)

type redisShortLinkDao struct {
	*baseDao
}

func NewRedisShortLinkDao(conf Config) *redisShortLinkDao {
	return &redisShortLinkDao{
		baseDao: newBaseDao(conf),
	}
}

func (rs *redisShortLinkDao) SaveLink(ctx context.Context, code string, url string, ttl time.Duration) error {
	key := rs.getNamespaceKey(persistence.SHORT_LINK_KEY, code)
	if err := rs.redisClient.Set(ctx, key, url, ttl).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rs *redisShortLinkDao) GetLink(ctx context.Context, code string) (string, error) {
	key := rs.getNamespaceKey(persistence.SHORT_LINK_KEY, code)
	url, err := rs.redisClient.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return "", persistence.ErrNotFound
		}
		return "", persistence.StorageLayerError{Message: err.Error()}
	}
	return url, nil
}
