package study

import (
	"context"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	statsSubmissionsPrefix = "qstats:submissions:"
	statsOptionsPrefix     = "qstats:options:" // hash: option_id -> picks
)

// RedisStatsStore keeps the pick counters in Redis. Counters are hot on the
// answering path, so increments go through one pipeline round trip.
type RedisStatsStore struct {
	client *redis.Client
}

func NewRedisStatsStore(client *redis.Client) *RedisStatsStore {
	return &RedisStatsStore{client: client}
}

func (r *RedisStatsStore) RecordSubmission(ctx context.Context, questionID string, selected []string) error {
	pipe := r.client.TxPipeline()
	pipe.Incr(ctx, statsSubmissionsPrefix+questionID)
	for _, opt := range selected {
		pipe.HIncrBy(ctx, statsOptionsPrefix+questionID, opt, 1)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisStatsStore) Get(ctx context.Context, questionID string) (QuestionStats, error) {
	st := QuestionStats{QuestionID: questionID}

	subs, err := r.client.Get(ctx, statsSubmissionsPrefix+questionID).Result()
	if err == redis.Nil {
		return st, nil
	}
	if err != nil {
		return QuestionStats{}, err
	}
	st.Submissions, _ = strconv.ParseInt(subs, 10, 64)

	fields, err := r.client.HGetAll(ctx, statsOptionsPrefix+questionID).Result()
	if err != nil && err != redis.Nil {
		return QuestionStats{}, err
	}
	for opt, raw := range fields {
		picks, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		st.Options = append(st.Options, OptionCount{OptionID: opt, Picks: picks})
	}
	sort.Slice(st.Options, func(i, j int) bool { return st.Options[i].OptionID < st.Options[j].OptionID })
	return st, nil
}
