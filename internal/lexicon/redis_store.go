// Package lexicon stores the author's dictionary exemption word lists:
// one global list shared by every project and one list per project. The
// two merge into a single set when a project opens.
package lexicon

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps word lists in Redis sets.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: "lexicon:"}, nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "lexicon:"}
}

func (s *RedisStore) globalKey() string {
	return s.prefix + "global"
}

func (s *RedisStore) projectKey(projectID string) string {
	return s.prefix + "project:" + projectID
}

// normalize lowercases and trims a word. Empty results are rejected by
// the callers.
func normalize(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}

// AddGlobalWord adds a word to the global list. Duplicates are a no-op.
func (s *RedisStore) AddGlobalWord(ctx context.Context, word string) error {
	w := normalize(word)
	if w == "" {
		return fmt.Errorf("empty word")
	}
	if err := s.client.SAdd(ctx, s.globalKey(), w).Err(); err != nil {
		return fmt.Errorf("add global word: %w", err)
	}
	return nil
}

// AddProjectWord adds a word to one project's list.
func (s *RedisStore) AddProjectWord(ctx context.Context, projectID, word string) error {
	w := normalize(word)
	if w == "" {
		return fmt.Errorf("empty word")
	}
	if err := s.client.SAdd(ctx, s.projectKey(projectID), w).Err(); err != nil {
		return fmt.Errorf("add project word: %w", err)
	}
	return nil
}

// RemoveGlobalWord deletes a word from the global list. Removing an
// absent word is not an error.
func (s *RedisStore) RemoveGlobalWord(ctx context.Context, word string) error {
	if err := s.client.SRem(ctx, s.globalKey(), normalize(word)).Err(); err != nil {
		return fmt.Errorf("remove global word: %w", err)
	}
	return nil
}

// RemoveProjectWord deletes a word from one project's list.
func (s *RedisStore) RemoveProjectWord(ctx context.Context, projectID, word string) error {
	if err := s.client.SRem(ctx, s.projectKey(projectID), normalize(word)).Err(); err != nil {
		return fmt.Errorf("remove project word: %w", err)
	}
	return nil
}

// GlobalWords returns the global list, sorted.
func (s *RedisStore) GlobalWords(ctx context.Context) ([]string, error) {
	words, err := s.client.SMembers(ctx, s.globalKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("load global words: %w", err)
	}
	sort.Strings(words)
	return words, nil
}

// ProjectWords returns one project's list, sorted.
func (s *RedisStore) ProjectWords(ctx context.Context, projectID string) ([]string, error) {
	words, err := s.client.SMembers(ctx, s.projectKey(projectID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load project words: %w", err)
	}
	sort.Strings(words)
	return words, nil
}

// MergedWords returns the union of the global list and one project's
// list, deduplicated and sorted. This is what the decoration engine
// loads when a project opens.
func (s *RedisStore) MergedWords(ctx context.Context, projectID string) ([]string, error) {
	words, err := s.client.SUnion(ctx, s.globalKey(), s.projectKey(projectID)).Result()
	if err != nil {
		return nil, fmt.Errorf("merge word lists: %w", err)
	}
	sort.Strings(words)
	return words, nil
}

// DeleteProjectWords removes a project's entire list, for project delete.
func (s *RedisStore) DeleteProjectWords(ctx context.Context, projectID string) error {
	if err := s.client.Del(ctx, s.projectKey(projectID)).Err(); err != nil {
		return fmt.Errorf("delete project words: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
