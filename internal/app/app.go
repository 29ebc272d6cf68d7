// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, репозитории, сервисы,
// HTTP-сервер и планировщик, и собирает всё в один объект App.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jinjinsansan/tensei-sub001/internal/cache"
	"github.com/jinjinsansan/tensei-sub001/internal/config"
	"github.com/jinjinsansan/tensei-sub001/internal/db/postgres"
	"github.com/jinjinsansan/tensei-sub001/internal/features/admin"
	"github.com/jinjinsansan/tensei-sub001/internal/features/award"
	"github.com/jinjinsansan/tensei-sub001/internal/features/catalog"
	"github.com/jinjinsansan/tensei-sub001/internal/features/gacha"
	"github.com/jinjinsansan/tensei-sub001/internal/features/tickets"
	"github.com/jinjinsansan/tensei-sub001/internal/features/users"
	"github.com/jinjinsansan/tensei-sub001/internal/jobs"
	"github.com/jinjinsansan/tensei-sub001/internal/notify"
	"github.com/jinjinsansan/tensei-sub001/internal/server"
)

// App содержит все компоненты приложения.
type App struct {
	Server    *server.Server
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool
	Emitter   *cache.CollectionEmitter
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	// Запускаем миграции
	if err := runMigrations(ctx, pool); err != nil {
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Внешние каналы ===
	notifier, err := notify.New(cfg.TelegramBotToken, cfg.TelegramOpsChatID)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания нотификатора: %w", err)
	}
	emitter := cache.NewCollectionEmitter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisChannel)

	// === 3. Репозитории ===
	userRepo := users.NewRepository(pool)
	ticketRepo := tickets.NewRepository(pool)
	catalogRepo := catalog.NewRepository(pool, catalog.GlobalConfig{
		LossRate:      cfg.GachaDefaultLossRate,
		TitleHintRate: int(cfg.GachaTitleHintRate),
	})
	gachaRepo := gacha.NewRepository(pool)
	awardRepo := award.NewRepository(pool)
	adminRepo := admin.NewRepository(pool)

	// === 4. Сервисы ===
	ticketService := tickets.NewService(ticketRepo, cfg.TicketsInitialGrant)
	userService := users.NewService(userRepo, ticketService)
	gachaService := gacha.NewService(gachaRepo, catalogRepo, ticketService, cfg.GachaTenfoldPulls, nil)
	awardService := award.NewService(awardRepo, gachaRepo, emitter, cfg.GachaDrawsPerTicket, tickets.TypeBasic)
	adminService := admin.NewService(adminRepo, awardService, cfg.AdminPasswordHash, cfg.AdminBulkLimit)

	// === 5. Планировщик задач ===
	scheduler := jobs.NewScheduler(
		awardService, notifier,
		time.Duration(cfg.AutoAwardAfterHours)*time.Hour,
		cfg.AutoAwardBatchLimit,
	)

	// === 6. HTTP-сервер ===
	srv := server.New(
		cfg.HTTPPort, cfg.CronSecret, cfg.AppEnv,
		gachaService, awardService, ticketService, adminService, userService,
		scheduler,
	)

	return &App{
		Server:    srv,
		Scheduler: scheduler,
		DB:        pool,
		Emitter:   emitter,
	}, nil
}

// runMigrations выполняет все SQL-миграции.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if err := postgres.EnsureMigrationsTable(ctx, pool); err != nil {
		return err
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001Users},
		{2, migration002Tickets},
		{3, migration003Catalog},
		{4, migration004Scenarios},
		{5, migration005GachaConfig},
		{6, migration006GachaResults},
		{7, migration007Inventory},
		{8, migration008Admin},
	}

	for _, m := range migrations {
		if err := postgres.ExecMigrationSQL(ctx, pool, m.version, m.sql); err != nil {
			return err
		}
	}
	return nil
}
