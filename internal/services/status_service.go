package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"realtime-service/internal/database"
)

// StatusService mirrors register/unregister transitions into Redis so other
// services can query who is online without reaching into the gateway. All
// state here is advisory; the gateway's registry stays the live source.
type StatusService struct {
	client *database.RedisClient
}

func NewStatusService(client *database.RedisClient) *StatusService {
	return &StatusService{client: client}
}

func (s *StatusService) SetUserOnline(ctx context.Context, userID string) error {
	pipe := s.client.GetClient().Pipeline()

	pipe.SAdd(ctx, "online_users", userID)
	pipe.HSet(ctx, fmt.Sprintf("user:%s:status", userID), map[string]interface{}{
		"status":     "online",
		"last_seen":  time.Now().Unix(),
		"updated_at": time.Now().Unix(),
	})
	pipe.Expire(ctx, fmt.Sprintf("user:%s:status", userID), 5*time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	slog.Debug("User mirrored online", "userID", userID)
	return nil
}

func (s *StatusService) SetUserOffline(ctx context.Context, userID string) error {
	pipe := s.client.GetClient().Pipeline()

	pipe.SRem(ctx, "online_users", userID)
	pipe.HSet(ctx, fmt.Sprintf("user:%s:status", userID), map[string]interface{}{
		"status":     "offline",
		"last_seen":  time.Now().Unix(),
		"updated_at": time.Now().Unix(),
	})
	pipe.Expire(ctx, fmt.Sprintf("user:%s:status", userID), 24*time.Hour)

	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	slog.Debug("User mirrored offline", "userID", userID)
	return nil
}

func (s *StatusService) IsUserOnline(ctx context.Context, userID string) (bool, error) {
	return s.client.GetClient().SIsMember(ctx, "online_users", userID).Result()
}

func (s *StatusService) GetOnlineUsers(ctx context.Context) ([]string, error) {
	return s.client.GetClient().SMembers(ctx, "online_users").Result()
}
