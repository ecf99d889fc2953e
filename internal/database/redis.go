package database

import (
	"context"
	"fmt"

	"event-checkin/config"

	"github.com/redis/go-redis/v9"
)

func InitRedis(config *config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     RedisAddr(config),
		Password: config.Password,
		DB:       config.DB,
	})

	ctx := context.Background()
	err := rdb.Ping(ctx).Err()
	if err != nil {
		return nil, err
	}

	return rdb, nil
}

func RedisAddr(config *config.RedisConfig) string {
	return fmt.Sprintf("%s:%s", config.Host, config.Port)
}
