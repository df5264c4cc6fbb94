package repository

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/stemsi/exstem-assess/internal/config"
)

// DraftRepository keeps autosaved answers of in-flight sessions in Redis.
// Each session owns one hash: field = question id, value = JSON array of
// the submitted values.
type DraftRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewDraftRepository creates a new DraftRepository.
func NewDraftRepository(rdb *redis.Client, ttl time.Duration) *DraftRepository {
	return &DraftRepository{rdb: rdb, ttl: ttl}
}

// Save stores the latest answer for one question and refreshes the hash TTL.
func (r *DraftRepository) Save(ctx context.Context, sessionID uuid.UUID, questionID int64, answer []string) error {
	if answer == nil {
		answer = []string{}
	}
	payload, err := json.Marshal(answer)
	if err != nil {
		return err
	}

	key := config.CacheKey.SessionDraftsKey(sessionID)
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, key, strconv.FormatInt(questionID, 10), payload)
	pipe.Expire(ctx, key, r.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// Load returns every autosaved answer of a session. Entries that fail to
// parse are skipped.
func (r *DraftRepository) Load(ctx context.Context, sessionID uuid.UUID) (map[int64][]string, error) {
	raw, err := r.rdb.HGetAll(ctx, config.CacheKey.SessionDraftsKey(sessionID)).Result()
	if err != nil {
		return nil, err
	}

	drafts := make(map[int64][]string, len(raw))
	for field, value := range raw {
		questionID, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			log.Warn().Str("session_id", sessionID.String()).Str("field", field).Msg("Skipping malformed draft field")
			continue
		}
		var answer []string
		if err := json.Unmarshal([]byte(value), &answer); err != nil {
			log.Warn().Str("session_id", sessionID.String()).Int64("question_id", questionID).Msg("Skipping malformed draft value")
			continue
		}
		drafts[questionID] = answer
	}
	return drafts, nil
}

// Clear drops the drafts of a session.
func (r *DraftRepository) Clear(ctx context.Context, sessionID uuid.UUID) error {
	return r.rdb.Del(ctx, config.CacheKey.SessionDraftsKey(sessionID)).Err()
}
