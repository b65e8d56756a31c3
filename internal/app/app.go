// Package app assembles the storage, queue and services shared by the binaries.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"membership/internal/attendance"
	"membership/internal/cache"
	"membership/internal/config"
	"membership/internal/insights"
	"membership/internal/member"
	"membership/internal/queue"
	"membership/internal/roster"
	"membership/internal/store"
)

// App is a wired set of services. Redis is nil when no backend uses it.
type App struct {
	Config config.App
	Log    *zap.Logger
	DB     *store.DB
	Redis  *store.Redis
	Queue  queue.Queue

	Members    *member.Service
	Roster     *roster.Service
	Attendance *attendance.Service
	Insights   *insights.Service
}

// relay forwards change notifications to insights, which is built after the writers.
type relay struct{ target *insights.Service }

// Changed forwards to insights once it is wired.
func (r *relay) Changed(ctx context.Context, reason string) {
	if r.target != nil {
		r.target.Changed(ctx, reason)
	}
}

// Build opens the database (migrating it) and wires every service.
func Build(ctx context.Context, cfg config.App, log *zap.Logger) (*App, error) {
	db, err := store.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a := &App{Config: cfg, Log: log, DB: db}

	if cfg.QueueBackend == "redis" || cfg.StateBackend == "redis" {
		a.Redis = store.NewRedis(cfg.RedisAddr)
		if !a.Redis.Healthy(ctx) {
			log.Warn("redis not reachable yet", zap.String("addr", cfg.RedisAddr))
		}
	}

	if cfg.QueueBackend == "memory" {
		a.Queue = queue.NewInMemory(256)
	} else {
		a.Queue = queue.NewRedisQueue(a.Redis.Client, "membership:insights", log)
	}

	var snapshots cache.Snapshots = cache.NewMemory()
	if cfg.StateBackend == "redis" {
		snapshots = cache.NewRedis(a.Redis.Client, "")
	}

	notify := &relay{}
	a.Members = member.NewService(member.NewRepository(db), notify, log)
	a.Roster = roster.NewService(a.Members, log)
	a.Attendance = attendance.NewService(attendance.NewRepository(db), a.Members, notify, log)
	a.Insights = insights.NewService(a.Members, a.Attendance, snapshots, insights.Options{
		TTL:  cfg.InsightsCacheTTL,
		Top:  cfg.TopAttenders,
		Log:  log,
		Feed: a.Queue,
	})
	notify.target = a.Insights
	return a, nil
}

// Health lists the dependency checks for /healthz.
func (a *App) Health() map[string]func(context.Context) bool {
	checks := map[string]func(context.Context) bool{"db": a.DB.Healthy}
	if a.Redis != nil {
		checks["redis"] = a.Redis.Healthy
	}
	return checks
}

// Close releases the database and redis connections.
func (a *App) Close() error {
	return errors.Join(a.DB.Close(), a.Redis.Close())
}
