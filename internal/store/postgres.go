// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

// Package store provides database connection and schema plumbing.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// RetryConfig controls how long NewPool keeps trying to reach the database.
type RetryConfig struct {
	// Attempts is the number of retries after the first ping. Zero means no retries.
	Attempts uint64
	// BaseDelay is the first backoff interval; it doubles each retry.
	BaseDelay time.Duration
	// MaxDelay caps a single backoff interval.
	MaxDelay time.Duration
}

// DefaultRetryConfig retries for roughly half a minute.
var DefaultRetryConfig = RetryConfig{
	Attempts:  6,
	BaseDelay: 500 * time.Millisecond,
	MaxDelay:  8 * time.Second,
}

func (c RetryConfig) backoff() retry.Backoff {
	base := c.BaseDelay
	if base <= 0 {
		base = DefaultRetryConfig.BaseDelay
	}
	b := retry.NewExponential(base)
	if c.MaxDelay > 0 {
		b = retry.WithCappedDuration(c.MaxDelay, b)
	}
	return retry.WithMaxRetries(c.Attempts, b)
}

// NewPool opens a pgx pool for dsn and pings it, retrying with exponential
// backoff while the database is unreachable.
func NewPool(ctx context.Context, dsn string, cfg RetryConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").Wrap(err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}

	if err := pingWithRetry(ctx, pool.Ping, cfg, logger); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// pingWithRetry calls ping until it succeeds, the retry budget runs out or
// ctx ends.
func pingWithRetry(ctx context.Context, ping func(context.Context) error, cfg RetryConfig, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	attempt := 0
	err := retry.Do(ctx, cfg.backoff(), func(ctx context.Context) error {
		attempt++
		if err := ping(ctx); err != nil {
			logger.WarnContext(ctx, "database not reachable", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("attempts", attempt).Wrap(err)
	}
	return nil
}
