// Package rediscache caches the latest study plans of students in redis.
package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/studyplan"
)

const keyPrefix = "ushauri:plan:"

type PlanCache struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ studyplan.Cache = (*PlanCache)(nil) // interface compliance check

// Connect opens a client on conf.Redis.Addr and pings it.
func Connect(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        conf.Redis.Addr,
		Password:    conf.Redis.Password,
		DB:          conf.Redis.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return rdb, nil
}

// NewPlanCache caches plans for `ttl`; 0 keeps them until they are replaced.
func NewPlanCache(rdb *redis.Client, ttl time.Duration) *PlanCache {
	return &PlanCache{rdb: rdb, ttl: ttl}
}

func (c *PlanCache) GetPlan(ctx context.Context, studentID string) (studyplan.Plan, bool, error) {
	raw, err := c.rdb.Get(ctx, keyPrefix+studentID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return studyplan.Plan{}, false, nil
		}
		return studyplan.Plan{}, false, errors.Wrap(err, "getting cached plan")
	}

	var plan studyplan.Plan
	if err = json.Unmarshal(raw, &plan); err != nil {
		return studyplan.Plan{}, false, errors.Wrap(err, "decoding cached plan")
	}
	return plan, true, nil
}

func (c *PlanCache) SetPlan(ctx context.Context, plan studyplan.Plan) error {
	raw, err := json.Marshal(plan)
	if err != nil {
		return errors.Wrap(err, "encoding plan")
	}
	return errors.Wrap(c.rdb.Set(ctx, keyPrefix+plan.StudentID, raw, c.ttl).Err(), "caching plan")
}

func (c *PlanCache) Invalidate(ctx context.Context, studentID string) error {
	return errors.Wrap(c.rdb.Del(ctx, keyPrefix+studentID).Err(), "invalidating cached plan")
}
