package redis

import (
	"context"

	rd "github.com/redis/go-redis/v9"

	"github.com/luximus/flowbot/persistence"
)

type baseDao struct {
	redisClient rd.UniversalClient
	namespace   string
}

func newBaseDao(conf Config) *baseDao {
	redisClient := rd.NewUniversalClient(&rd.UniversalOptions{
		Addrs:    conf.Addrs,
		Password: conf.Password,
		DB:       conf.DB,
		PoolSize: conf.PoolSize,
	})
	return &baseDao{
		redisClient: redisClient,
		namespace:   conf.Namespace,
	}
}

func (bs *baseDao) getNamespaceKey(args ...string) string {
	return persistence.Key(bs.namespace, args...)
}

func (bs *baseDao) Ping(ctx context.Context) error {
	if err := bs.redisClient.Ping(ctx).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (bs *baseDao) Close() error {
	return bs.redisClient.Close()
}
