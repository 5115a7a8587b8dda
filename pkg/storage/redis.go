package storage

/*
Settings for the redis cache (all optional):

addr = "localhost:6379"
password = ""
db = "0"
prefix = "locsync:"
ttl = "0"        # seconds, 0 keeps keys forever
*/

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func getOptionValue(name, def string, params map[string]string) string {
	v := params[name]
	if v == "" {
		log.Debugf("cache option '%s' not set, using '%s'", name, def)
		return def
	}
	return v
}

func (c *RedisCache) Init(params map[string]string) error {
	if params == nil {
		params = map[string]string{}
	}

	db, err := strconv.Atoi(getOptionValue("db", "0", params))
	if err != nil {
		return fmt.Errorf("invalid redis db: %v", err)
	}
	ttl, err := strconv.Atoi(getOptionValue("ttl", "0", params))
	if err != nil {
		return fmt.Errorf("invalid redis ttl: %v", err)
	}

	c.client = redis.NewClient(&redis.Options{
		Addr:     getOptionValue("addr", "localhost:6379", params),
		Password: params["password"],
		DB:       db,
	})
	c.prefix = getOptionValue("prefix", "locsync:", params)
	c.ttl = time.Duration(ttl) * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.client.Ping(ctx).Err(); err != nil {
		c.client.Close()
		return fmt.Errorf("redis is unavailable: %v", err)
	}
	return nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.client.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string) error {
	return c.client.Set(ctx, c.prefix+key, value, c.ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+key).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
