package ranking

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	leaderboardKey = "satquiz:leaderboard"
	userKeyPrefix  = "satquiz:user:"
)

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisCache keeps stats in a hash per user and a sorted set by total correct.
type RedisCache struct {
	client redis.UniversalClient
}

// NewRedisCache connects and pings Redis.
func NewRedisCache(opts RedisOptions) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisCache{client: client}, nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

// Close releases the connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// RecordQuiz adds one quiz to the learner's hash and leaderboard score.
func (c *RedisCache) RecordQuiz(ctx context.Context, s Stat) error {
	key := userKeyPrefix + s.UserID
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, key, "quizzes", 1)
		pipe.HIncrBy(ctx, key, "correct", int64(s.Correct))
		pipe.HIncrBy(ctx, key, "questions", int64(s.Questions))
		pipe.HSet(ctx, key, "last_score", s.Score, "last_quiz", s.QuizID)
		pipe.ZIncrBy(ctx, leaderboardKey, float64(s.Correct), s.UserID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record quiz stats: %w", err)
	}
	return nil
}

// Top returns the n learners with the most correct answers.
func (c *RedisCache) Top(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	zs, err := c.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}
	out := make([]Entry, 0, len(zs))
	for i, z := range zs {
		member, _ := z.Member.(string)
		out = append(out, Entry{UserID: member, CorrectTotal: int64(z.Score), Rank: i + 1})
	}
	return out, nil
}

// Stats returns the cached hash for userID.
func (c *RedisCache) Stats(ctx context.Context, userID string) (*UserStats, error) {
	m, err := c.client.HGetAll(ctx, userKeyPrefix+userID).Result()
	if err != nil {
		return nil, fmt.Errorf("read user stats: %w", err)
	}
	return &UserStats{
		Quizzes:   parseInt(m["quizzes"]),
		Correct:   parseInt(m["correct"]),
		Questions: parseInt(m["questions"]),
		LastScore: parseInt(m["last_score"]),
	}, nil
}

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
