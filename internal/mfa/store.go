package mfa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrChallengeNotFound = errors.New("mfa: no active challenge")

// Challenge is the single live WebAuthn challenge for a user.
type Challenge struct {
	Value     string    `json:"challenge"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// keys outlive the challenge so an expired challenge is still observable
const keyGrace = time.Minute

type ChallengeStore struct {
	client *redis.Client
}

func NewChallengeStore(client *redis.Client) *ChallengeStore {
	return &ChallengeStore{client: client}
}

// Put replaces any existing challenge for the user and resets its attempts.
func (s *ChallengeStore) Put(ctx context.Context, userID uuid.UUID, c Challenge, ttl time.Duration) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding challenge: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, challengeKey(userID), payload, ttl+keyGrace)
	pipe.Del(ctx, attemptsKey(userID))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *ChallengeStore) Get(ctx context.Context, userID uuid.UUID) (*Challenge, error) {
	raw, err := s.client.Get(ctx, challengeKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrChallengeNotFound
		}
		return nil, err
	}

	var c Challenge
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decoding challenge: %w", err)
	}
	return &c, nil
}

func (s *ChallengeStore) Delete(ctx context.Context, userID uuid.UUID) error {
	return s.client.Del(ctx, challengeKey(userID), attemptsKey(userID)).Err()
}

// IncrAttempts counts a verification attempt against the live challenge.
func (s *ChallengeStore) IncrAttempts(ctx context.Context, userID uuid.UUID, ttl time.Duration) (int64, error) {
	pipe := s.client.Pipeline()
	incrCmd := pipe.Incr(ctx, attemptsKey(userID))
	pipe.ExpireNX(ctx, attemptsKey(userID), ttl+keyGrace)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incrCmd.Val(), nil
}

// Pending TOTP enrollment: the provider factor id awaiting its first code.

func (s *ChallengeStore) SetPendingFactor(ctx context.Context, userID uuid.UUID, factorID string, ttl time.Duration) error {
	return s.client.Set(ctx, pendingFactorKey(userID), factorID, ttl).Err()
}

func (s *ChallengeStore) PendingFactor(ctx context.Context, userID uuid.UUID) (string, error) {
	val, err := s.client.Get(ctx, pendingFactorKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

func (s *ChallengeStore) ClearPendingFactor(ctx context.Context, userID uuid.UUID) error {
	return s.client.Del(ctx, pendingFactorKey(userID)).Err()
}

func challengeKey(userID uuid.UUID) string {
	return fmt.Sprintf("mfa:webauthn:challenge:%s", userID)
}

func attemptsKey(userID uuid.UUID) string {
	return fmt.Sprintf("mfa:webauthn:attempts:%s", userID)
}

func pendingFactorKey(userID uuid.UUID) string {
	return fmt.Sprintf("mfa:totp:pending:%s", userID)
}
