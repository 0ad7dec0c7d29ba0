package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrCacheMiss = errors.New("cache: key not found")

// Service is the key/value cache shared by the history source and the
// artifact persister. Values are stored JSON encoded, except strings and
// byte slices which are stored as-is.
type Service interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Key joins parts with ':' ("history", "finnhub", "AAPL", 180 -> "history:finnhub:AAPL:180").
func Key(parts ...interface{}) string {
	s := make([]string, 0, len(parts))
	for _, p := range parts {
		s = append(s, fmt.Sprint(p))
	}
	return strings.Join(s, ":")
}

// GetOrLoad reads key into a T; on a miss it calls load and caches the
// result when keep reports it worth caching. Cache errors other than a miss
// are returned alongside the loaded value so callers can log them.
func GetOrLoad[T any](ctx context.Context, c Service, key string, ttl time.Duration,
	load func(context.Context) (T, error), keep func(T) bool) (T, bool, error) {
	var v T
	err := c.Get(ctx, key, &v)
	if err == nil {
		return v, true, nil
	}
	var cacheErr error
	if !errors.Is(err, ErrCacheMiss) {
		cacheErr = err
	}

	v, err = load(ctx)
	if err != nil {
		return v, false, err
	}
	if keep == nil || keep(v) {
		if err := c.Set(ctx, key, v, ttl); err != nil {
			cacheErr = errors.Join(cacheErr, err)
		}
	}
	if cacheErr != nil {
		return v, false, &Error{Key: key, Err: cacheErr}
	}
	return v, false, nil
}

// Error reports a cache failure that did not stop the load itself.
type Error struct {
	Key string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("cache %s: %v", e.Key, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

func encode(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		out := make([]byte, len(v))
		copy(out, v)
		return out, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("cache: encode: %w", err)
	}
	return data, nil
}

func decode(data []byte, dest interface{}) error {
	switch d := dest.(type) {
	case *string:
		*d = string(data)
		return nil
	case *[]byte:
		*d = append((*d)[:0], data...)
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache: decode: %w", err)
	}
	return nil
}
