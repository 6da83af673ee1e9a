package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	ProfileKeyPrefix = "profile:%s"
	PostsListKey     = "posts:list"
	MoodCurrentKey   = "mood:current"
)

const (
	ProfileTTL     = 5 * time.Minute
	PostsListTTL   = 1 * time.Minute
	MoodCurrentTTL = 30 * time.Second
)

func ProfileKey(publicID string) string {
	return fmt.Sprintf(ProfileKeyPrefix, publicID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateProfile(ctx context.Context, publicID string) {
	Invalidate(ctx, ProfileKey(publicID))
}

func InvalidatePostsList(ctx context.Context) {
	Invalidate(ctx, PostsListKey)
}

func InvalidateMoodCurrent(ctx context.Context) {
	Invalidate(ctx, MoodCurrentKey)
}
