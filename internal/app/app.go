// Package app assembles the routing, approval and activity stack from
// configuration. The daemon and the local CLI commands share it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/harunnryd/hearth/internal/activity"
	"github.com/harunnryd/hearth/internal/approval"
	"github.com/harunnryd/hearth/internal/config"
	"github.com/harunnryd/hearth/internal/executor"
	"github.com/harunnryd/hearth/internal/skill"
	"github.com/harunnryd/hearth/internal/skill/builtin"
	"github.com/harunnryd/hearth/internal/store"
	"github.com/harunnryd/hearth/internal/wellness"

	"github.com/redis/go-redis/v9"
)

const redisPingTimeout = 3 * time.Second

type Components struct {
	Registry  *skill.Registry
	Router    *skill.Router
	Embedder  activity.Embedder
	Bridge    activity.Bridge
	Gate      *approval.Gate
	Audit     approval.AuditLogger
	Executor  *executor.Executor
	Wellness  *wellness.Checker
	Retention time.Duration

	redis *redis.Client
}

// Build wires every component on top of pool. Skills load from the builtin
// set followed by SKILL.md manifests; broken manifests are logged and
// skipped.
func Build(ctx context.Context, cfg *config.Config, pool *store.Pool) (*Components, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if pool == nil {
		return nil, fmt.Errorf("store pool cannot be nil")
	}

	registry, err := BuildRegistry(cfg.Skills)
	if err != nil {
		return nil, err
	}

	embedder, err := activity.NewEmbedder(ctx, cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("build embedder: %w", err)
	}

	sinks := activity.MultiSink{activity.NewLogSink(pool)}
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = connectRedis(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("Redis event stream disabled", "addr", cfg.Redis.Addr, "error", err)
		} else {
			sinks = append(sinks, activity.NewRedisSink(rdb, cfg.Redis.StreamPrefix, cfg.Redis.StreamMaxLen))
		}
	}
	bridge := activity.NewService(pool, embedder, sinks)

	ttl, err := config.OptionalDuration(cfg.Approval.TTL, config.DefaultApprovalTTL)
	if err != nil {
		return nil, fmt.Errorf("parse approval ttl: %w", err)
	}
	retention, err := config.DurationOrDefault(cfg.Approval.Retention, config.DefaultApprovalRetention)
	if err != nil {
		return nil, fmt.Errorf("parse approval retention: %w", err)
	}

	var audit approval.AuditLogger
	if cfg.Approval.AuditLog {
		audit = approval.NewFileAuditLogger(cfg.Daemon.WorkspacePath, cfg.Approval.RedactPatterns)
	}

	gate := approval.NewGate(approval.Options{
		QuietHours: cfg.QuietHours,
		TTL:        ttl,
		Audit:      audit,
	})
	router := skill.NewRouter(registry)
	exec := executor.New(router, gate, bridge, executor.Options{ResultsBuffer: cfg.Approval.ResultsBuffer})

	slog.Info("Runtime assembled",
		"skills", registry.Len(),
		"embedder", embedder.Name(),
		"sinks", len(sinks),
		"approval_ttl", ttl,
	)

	return &Components{
		Registry:  registry,
		Router:    router,
		Embedder:  embedder,
		Bridge:    bridge,
		Gate:      gate,
		Audit:     audit,
		Executor:  exec,
		Wellness:  wellness.NewChecker(bridge, cfg.Wellness.RecallLimit),
		Retention: retention,
		redis:     rdb,
	}, nil
}

// BuildRegistry registers the builtin skills and the manifests found under
// cfg.Path, then seals the registry.
func BuildRegistry(cfg config.SkillsConfig) (*skill.Registry, error) {
	registry := skill.NewRegistry()
	if err := builtin.RegisterAll(registry, cfg.Disabled...); err != nil {
		return nil, fmt.Errorf("register builtin skills: %w", err)
	}

	manifests, err := skill.LoadManifests(cfg.Path, cfg.Disabled)
	if err != nil {
		slog.Warn("Some skill manifests failed to load", "path", cfg.Path, "error", err)
	}
	for _, s := range manifests {
		if err := registry.Register(s); err != nil {
			slog.Warn("Skipping skill manifest", "name", s.Name(), "error", err)
		}
	}

	registry.Seal()
	return registry, nil
}

// Maintain releases deferred approvals whose quiet hours ended, expires
// stale ones and prunes decided approvals older than the retention window.
func (c *Components) Maintain(ctx context.Context, now time.Time) {
	if released := c.Gate.Release(ctx, now); len(released) > 0 {
		slog.Info("Released deferred approvals", "count", len(released))
	}
	if expired := c.Gate.Expire(ctx, now); len(expired) > 0 {
		slog.Info("Expired stale approvals", "count", len(expired))
	}
	if pruned := c.Gate.Prune(now.Add(-c.Retention)); pruned > 0 {
		slog.Debug("Pruned decided approvals", "count", pruned)
	}
}

func (c *Components) Close() error {
	if c.redis != nil {
		return c.redis.Close()
	}
	return nil
}

func connectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
