package store

import (
	"context"
	"encoding/json"
	"strconv"

	"main/internal/schema"
	"main/pkg/exception"

	"github.com/redis/go-redis/v9"
	"github.com/yanun0323/errors"
)

const (
	// counterKey matches the identifier counter of the original deployment
	// so an existing dataset keeps allocating from where it left off.
	counterKey = "orderIdCounter"
	keyPrefix  = "order:"
)

// Store persists full order snapshots in Redis and owns the identifier
// counter. Every Put replaces the whole record; there is no field merge.
type Store struct {
	rdb *redis.Client
}

// New builds a store on top of an established Redis client.
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// AllocateID atomically increments the store-wide counter and returns the
// new value. Values are monotonically increasing and never reused; gaps
// are acceptable.
func (s *Store) AllocateID(ctx context.Context) (uint64, error) {
	id, err := s.rdb.Incr(ctx, counterKey).Result()
	if err != nil {
		return 0, errors.Wrap(exception.ErrStoreUnavailable, err.Error())
	}
	return uint64(id), nil
}

// Put writes the full snapshot of an order under its identifier,
// replacing any prior value.
func (s *Store) Put(ctx context.Context, id uint64, order schema.Order) error {
	payload, err := json.Marshal(order)
	if err != nil {
		return errors.Wrap(exception.ErrSerialization, err.Error())
	}
	if err := s.rdb.Set(ctx, orderKey(id), payload, 0).Err(); err != nil {
		return errors.Wrap(exception.ErrStoreUnavailable, err.Error())
	}
	return nil
}

// Get reads an order snapshot back by identifier.
func (s *Store) Get(ctx context.Context, id uint64) (schema.Order, error) {
	payload, err := s.rdb.Get(ctx, orderKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return schema.Order{}, exception.ErrOrderNotFound
		}
		return schema.Order{}, errors.Wrap(exception.ErrStoreUnavailable, err.Error())
	}

	var order schema.Order
	if err := json.Unmarshal(payload, &order); err != nil {
		return schema.Order{}, errors.Wrap(exception.ErrSerialization, err.Error())
	}
	return order, nil
}

func orderKey(id uint64) string {
	return keyPrefix + strconv.FormatUint(id, 10)
}
