// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: ежечасный добор зависших круток.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/jinjinsansan/tensei-sub001/internal/features/award"
)

// OpsNotifier шлёт сводки в операционный чат.
type OpsNotifier interface {
	Send(text string)
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron         *cron.Cron
	awardService *award.Service
	notifier     OpsNotifier
	cutoffAge    time.Duration
	batchLimit   int
}

// NewScheduler создаёт планировщик задач с токийским часовым поясом.
func NewScheduler(awardService *award.Service, notifier OpsNotifier, cutoffAge time.Duration, batchLimit int) *Scheduler {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		log.WithError(err).Warn("Не удалось загрузить Asia/Tokyo, используем UTC+9")
		loc = time.FixedZone("JST", 9*60*60)
	}

	c := cron.New(cron.WithLocation(loc))

	return &Scheduler{
		cron:         c,
		awardService: awardService,
		notifier:     notifier,
		cutoffAge:    cutoffAge,
		batchLimit:   batchLimit,
	}
}

// Start запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) error {
	// Добор зависших круток каждый час
	_, err := s.cron.AddFunc("0 * * * *", func() {
		log.Info("[CRON] Добор зависших круток")
		if _, err := s.RunSweep(ctx); err != nil {
			log.WithError(err).Error("[CRON] Ошибка добора")
		}
	})
	if err != nil {
		return fmt.Errorf("регистрация cron-задачи: %w", err)
	}

	s.cron.Start()
	log.Info("Планировщик задач запущен (Asia/Tokyo)")
	return nil
}

// RunSweep выполняет один проход добора. Вынесен отдельно, чтобы его
// мог дёргать и внешний триггер через HTTP.
func (s *Scheduler) RunSweep(ctx context.Context) (*award.SweepReport, error) {
	cutoff := time.Now().Add(-s.cutoffAge)
	report, err := s.awardService.SweepStale(ctx, cutoff, s.batchLimit)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil && (report.Awarded > 0 || report.Failed > 0) {
		s.notifier.Send(fmt.Sprintf(
			"Добор круток: найдено %d, начислено %d, пропущено %d, ошибок %d",
			report.Scanned, report.Awarded, report.Skipped, report.Failed,
		))
	}
	return report, nil
}

// Stop останавливает планировщик, дожидаясь активных задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
