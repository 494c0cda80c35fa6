// Package otp issues and checks one-time login codes. Codes are stored in
// Redis as bcrypt hashes keyed by phone number and expire after a TTL.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	codePrefix     = "otp:v1:code:"
	attemptsPrefix = "otp:v1:attempts:"
	ratePrefix     = "otp:v1:rl:"

	maxVerifyAttempts = 5
)

var (
	ErrRateLimited     = errors.New("too many OTP requests, try again in a minute")
	ErrExpired         = errors.New("OTP expired or not requested")
	ErrInvalidCode     = errors.New("invalid OTP")
	ErrTooManyAttempts = errors.New("too many incorrect attempts, request a new OTP")
)

// Store keeps pending codes in Redis.
type Store struct {
	Client       *redis.Client
	TTL          time.Duration
	MaxPerMinute int
	// Cost is the bcrypt cost; zero means bcrypt.DefaultCost.
	Cost int
	// Generate overrides code generation (tests).
	Generate func() (string, error)
}

// Issue creates a fresh code for phone, replacing any pending one.
func (s Store) Issue(ctx context.Context, phone string) (string, error) {
	if err := s.checkRate(ctx, phone); err != nil {
		return "", err
	}

	gen := s.Generate
	if gen == nil {
		gen = randomCode
	}
	code, err := gen()
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}

	cost := s.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), cost)
	if err != nil {
		return "", fmt.Errorf("hash otp: %w", err)
	}

	pipe := s.Client.TxPipeline()
	pipe.Set(ctx, codePrefix+phone, hash, s.ttl())
	pipe.Del(ctx, attemptsPrefix+phone)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}
	return code, nil
}

// Verify checks code against the pending one for phone. A successful check
// consumes the code.
func (s Store) Verify(ctx context.Context, phone, code string) error {
	hash, err := s.Client.Get(ctx, codePrefix+phone).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrExpired
	}
	if err != nil {
		return fmt.Errorf("load otp: %w", err)
	}

	attempts, err := s.Client.Incr(ctx, attemptsPrefix+phone).Result()
	if err != nil {
		return fmt.Errorf("count otp attempts: %w", err)
	}
	if attempts == 1 {
		s.Client.Expire(ctx, attemptsPrefix+phone, s.ttl())
	}
	if attempts > maxVerifyAttempts {
		s.Client.Del(ctx, codePrefix+phone, attemptsPrefix+phone)
		return ErrTooManyAttempts
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(code)); err != nil {
		return ErrInvalidCode
	}
	s.Client.Del(ctx, codePrefix+phone, attemptsPrefix+phone)
	return nil
}

func (s Store) checkRate(ctx context.Context, phone string) error {
	limit := s.MaxPerMinute
	if limit <= 0 {
		limit = 5
	}
	key := ratePrefix + phone
	cnt, err := s.Client.Incr(ctx, key).Result()
	if err != nil {
		// fail open; the code itself is still short-lived
		return nil
	}
	if cnt == 1 {
		s.Client.Expire(ctx, key, time.Minute)
	}
	if cnt > int64(limit) {
		return ErrRateLimited
	}
	return nil
}

func (s Store) ttl() time.Duration {
	if s.TTL <= 0 {
		return 5 * time.Minute
	}
	return s.TTL
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
