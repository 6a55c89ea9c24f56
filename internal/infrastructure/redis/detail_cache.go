package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/wellnest/survey-api/internal/metrics"
	"github.com/wellnest/survey-api/internal/survey/application"
)

const (
	defaultKeyPrefix = "survey:detail:"
	// invalidationFence は削除後に読み込み中のリクエストが古い詳細を書き戻せない期間。
	invalidationFence = 5 * time.Second
	tombstone         = "-"
)

type store interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.BoolCmd
}

// DetailCache はアンケート詳細を JSON で Redis に保持する。Redis の障害は読み書きとも握りつぶしてログに残す。
// 保存は SETNX のみで、無効化は墓標を置くため、更新と競合した読み込みが古い詳細を再保存することはない。
type DetailCache struct {
	client    store
	ttl       time.Duration
	keyPrefix string
	logger    *log.Logger
}

func NewDetailCache(client *goredis.Client, ttl time.Duration, logger *log.Logger) *DetailCache {
	return newDetailCache(client, ttl, logger)
}

func newDetailCache(client store, ttl time.Duration, logger *log.Logger) *DetailCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DetailCache{client: client, ttl: ttl, keyPrefix: defaultKeyPrefix, logger: logger}
}

var _ application.DetailCache = (*DetailCache)(nil)

func (c *DetailCache) Get(ctx context.Context, id string) (*application.SurveyDetail, bool) {
	raw, err := c.client.Get(ctx, c.keyPrefix+id).Bytes()
	if errors.Is(err, goredis.Nil) {
		metrics.IncCacheLookup("miss")
		return nil, false
	}
	if err != nil {
		metrics.IncCacheLookup("error")
		c.logf("キャッシュ取得に失敗 id=%s: %v", id, err)
		return nil, false
	}
	if string(raw) == tombstone {
		metrics.IncCacheLookup("miss")
		return nil, false
	}
	var detail application.SurveyDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		metrics.IncCacheLookup("error")
		c.logf("キャッシュの復元に失敗 id=%s: %v", id, err)
		return nil, false
	}
	metrics.IncCacheLookup("hit")
	return &detail, true
}

func (c *DetailCache) Set(ctx context.Context, detail *application.SurveyDetail) {
	if detail == nil || detail.ID == "" {
		return
	}
	data, err := json.Marshal(detail)
	if err != nil {
		c.logf("キャッシュ用シリアライズに失敗 id=%s: %v", detail.ID, err)
		return
	}
	if err := c.client.SetNX(ctx, c.keyPrefix+detail.ID, data, c.ttl).Err(); err != nil {
		c.logf("キャッシュ保存に失敗 id=%s: %v", detail.ID, err)
	}
}

func (c *DetailCache) Invalidate(ctx context.Context, id string) {
	if id == "" {
		return
	}
	if err := c.client.Set(ctx, c.keyPrefix+id, tombstone, invalidationFence).Err(); err != nil {
		c.logf("キャッシュ削除に失敗 id=%s: %v", id, err)
	}
}

func (c *DetailCache) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
