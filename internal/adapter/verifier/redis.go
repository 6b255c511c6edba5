// Package verifier holds the verification oracles risk rules can reference.
package verifier

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/gabrieltemtsen/clenja/pkg/address"
)

const (
	NameRedis  = "redis"
	NameStatic = "static"

	DefaultRedisKey = "clenja:verified"
)

// Redis reports a principal verified when it is a member of a set. Members
// are stored lowercased.
type Redis struct {
	rdb *redis.Client
	key string
}

func NewRedis(rdb *redis.Client, key string) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	return &Redis{rdb: rdb, key: key}
}

func (v *Redis) IsVerified(ctx context.Context, principal string) (bool, error) {
	p, err := address.Normalize(principal)
	if err != nil {
		return false, nil
	}
	return v.rdb.SIsMember(ctx, v.key, strings.ToLower(p)).Result()
}

// Mark adds principals to the verified set.
func (v *Redis) Mark(ctx context.Context, principals ...string) error {
	members := make([]any, 0, len(principals))
	for _, p := range principals {
		n, err := address.Normalize(p)
		if err != nil {
			return err
		}
		members = append(members, strings.ToLower(n))
	}
	if len(members) == 0 {
		return nil
	}
	return v.rdb.SAdd(ctx, v.key, members...).Err()
}

func (v *Redis) Revoke(ctx context.Context, principal string) error {
	p, err := address.Normalize(principal)
	if err != nil {
		return err
	}
	return v.rdb.SRem(ctx, v.key, strings.ToLower(p)).Err()
}
