package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/synaptica-ai/formrelay/pkg/common/logger"
	"github.com/synaptica-ai/formrelay/pkg/common/models"
)

// RecentList keeps the newest records in a capped Redis list, newest first.
type RecentList struct {
	client *redis.Client
	key    string
	limit  int64
}

func NewRecentList(client *redis.Client, key string, limit int64) *RecentList {
	if limit <= 0 {
		limit = 100
	}
	return &RecentList{client: client, key: key, limit: limit}
}

func (r *RecentList) Push(ctx context.Context, rec models.Record) error {
	data, err := encodeRecent(rec)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, r.key, data)
	pipe.LTrim(ctx, r.key, 0, r.limit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pushing record to %s: %w", r.key, err)
	}

	logger.WithFields(map[string]interface{}{
		"key":       r.key,
		"timestamp": rec.Timestamp,
		"size":      len(data),
	}).Debug("Cached recent record")
	return nil
}

// encodeRecent is the list entry for rec: {"timestamp": ..., "fields": {...}}.
func encodeRecent(rec models.Record) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshalling record: %w", err)
	}
	return data, nil
}
