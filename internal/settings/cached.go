package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"genfity-floor-services/internal/geofence"
	"genfity-floor-services/internal/preorder"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "genfity:floor:settings:"

// CachedStore reads through Redis in front of a durable Store. Cache errors
// fall through to the underlying store.
type CachedStore struct {
	Store  Store
	Redis  *redis.Client
	TTL    time.Duration
	Logger *zap.Logger
}

func geofenceKey(merchantID int64) string {
	return fmt.Sprintf("%sgeofence:%d", cacheKeyPrefix, merchantID)
}

func preorderKey(merchantID int64) string {
	return fmt.Sprintf("%spreorder:%d", cacheKeyPrefix, merchantID)
}

func (s *CachedStore) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *CachedStore) get(ctx context.Context, key string, dest any) bool {
	body, err := s.Redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger().Warn("settings cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(body, dest); err != nil {
		s.logger().Warn("settings cache entry corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *CachedStore) put(ctx context.Context, key string, value any) {
	body, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.Redis.Set(ctx, key, body, s.TTL).Err(); err != nil {
		s.logger().Warn("settings cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *CachedStore) invalidate(ctx context.Context, key string) {
	if err := s.Redis.Del(ctx, key).Err(); err != nil {
		s.logger().Warn("settings cache invalidate failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *CachedStore) Geofence(ctx context.Context, merchantID int64) (geofence.Fence, error) {
	var fence geofence.Fence
	if s.get(ctx, geofenceKey(merchantID), &fence) {
		return fence, nil
	}
	fence, err := s.Store.Geofence(ctx, merchantID)
	if err != nil {
		return geofence.Fence{}, err
	}
	s.put(ctx, geofenceKey(merchantID), fence)
	return fence, nil
}

func (s *CachedStore) SaveGeofence(ctx context.Context, merchantID int64, fence geofence.Fence) error {
	if err := s.Store.SaveGeofence(ctx, merchantID, fence); err != nil {
		return err
	}
	s.invalidate(ctx, geofenceKey(merchantID))
	return nil
}

func (s *CachedStore) ClearGeofence(ctx context.Context, merchantID int64) error {
	if err := s.Store.ClearGeofence(ctx, merchantID); err != nil {
		return err
	}
	s.invalidate(ctx, geofenceKey(merchantID))
	return nil
}

func (s *CachedStore) PreOrderWindow(ctx context.Context, merchantID int64) (preorder.Window, error) {
	var w preorder.Window
	if s.get(ctx, preorderKey(merchantID), &w) {
		return w, nil
	}
	w, err := s.Store.PreOrderWindow(ctx, merchantID)
	if err != nil {
		return preorder.Window{}, err
	}
	s.put(ctx, preorderKey(merchantID), w)
	return w, nil
}

func (s *CachedStore) SavePreOrderWindow(ctx context.Context, merchantID int64, w preorder.Window) error {
	if err := s.Store.SavePreOrderWindow(ctx, merchantID, w); err != nil {
		return err
	}
	s.invalidate(ctx, preorderKey(merchantID))
	return nil
}
