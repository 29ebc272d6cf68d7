// Package award — service.go: идемпотентная воронка начисления.
// Все четыре пути завершения (клиент, cron-добор, одиночный и массовый
// админ-оверрайд) проходят через Settle; выигрывает первый, остальные
// получают безобидный {didAward: false}.
package award

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jinjinsansan/tensei-sub001/internal/common"
	"github.com/jinjinsansan/tensei-sub001/internal/features/gacha"
)

// Store — операции хранилища, нужные движку начисления.
type Store interface {
	ResolveCardAndUser(ctx context.Context, cardID, userID string) error
	CreateAward(ctx context.Context, draw *gacha.DrawRecord) (*InventoryEntry, bool, error)
	GetEntryByDraw(ctx context.Context, drawID string) (*InventoryEntry, error)
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]gacha.DrawRecord, error)
	CancelPendingByUser(ctx context.Context, userID, ticketType string, drawsPerTicket int) (cancelled, refunded, balance int, err error)
	CountPendingByUser(ctx context.Context, userID string) (int, error)
	PendingSummary(ctx context.Context, cutoff time.Time, suspiciousMin int) (*PendingSummary, error)
}

// Пороги операторской сводки: просрочка совпадает с cutoff добора,
// подозрительным считается хвост от десяти круток.
const (
	summaryOverdueAge    = 24 * time.Hour
	summarySuspiciousMin = 10
)

// DrawStore отдаёт записи круток.
type DrawStore interface {
	GetDraw(ctx context.Context, drawID string) (*gacha.DrawRecord, error)
	ListPendingByUser(ctx context.Context, userID string, limit int) ([]gacha.DrawRecord, error)
}

// EventEmitter публикует событие о выданной карте во внешний кэш.
// Доставка fire-and-forget: сбой эмиттера не откатывает начисление.
type EventEmitter interface {
	EmitCardAdded(ctx context.Context, entry *InventoryEntry, firstCopy bool)
}

// Service — движок начисления наград.
type Service struct {
	store          Store
	draws          DrawStore
	emitter        EventEmitter
	drawsPerTicket int
	basicTicket    string
}

// NewService создаёт движок начисления. emitter может быть nil.
func NewService(store Store, draws DrawStore, emitter EventEmitter, drawsPerTicket int, basicTicket string) *Service {
	return &Service{
		store:          store,
		draws:          draws,
		emitter:        emitter,
		drawsPerTicket: drawsPerTicket,
		basicTicket:    basicTicket,
	}
}

// Settle начисляет награду за крутку ровно один раз.
// Повторные и конкурентные вызовы получают DidAward == false.
func (s *Service) Settle(ctx context.Context, drawID string) (*Outcome, error) {
	draw, err := s.draws.GetDraw(ctx, drawID)
	if err != nil {
		return nil, err
	}

	// Быстрый путь: флаг уже стоит. Гонку он не закрывает — это делают
	// уникальный индекс и условный UPDATE внутри CreateAward.
	if draw.Settled {
		entry, err := s.store.GetEntryByDraw(ctx, drawID)
		if err != nil {
			return nil, err
		}
		return &Outcome{DidAward: false, Entry: entry}, nil
	}

	if err := s.store.ResolveCardAndUser(ctx, draw.CardID, draw.UserID); err != nil {
		return nil, err
	}

	entry, ownedBefore, err := s.store.CreateAward(ctx, draw)
	if errors.Is(err, common.ErrConcurrencyConflict) {
		// Конкурент успел первым: карта выдана, просто не нами
		existing, lookupErr := s.store.GetEntryByDraw(ctx, drawID)
		if lookupErr != nil {
			return nil, lookupErr
		}
		return &Outcome{DidAward: false, Entry: existing}, nil
	}
	if err != nil {
		return nil, err
	}

	if s.emitter != nil {
		s.emitter.EmitCardAdded(ctx, entry, !ownedBefore)
	}

	log.WithFields(log.Fields{
		"draw_id": drawID,
		"user_id": entry.UserID,
		"card_id": entry.CardID,
		"serial":  entry.SerialNumber,
	}).Info("Награда начислена")

	return &Outcome{DidAward: true, Entry: entry, AlreadyOwnedBefore: ownedBefore}, nil
}

// SweepStale добирает крутки, зависшие дольше cutoff, пачкой не больше
// limit. Ошибка одной крутки логируется и не прерывает проход:
// запись останется pending и попадёт в следующий.
func (s *Service) SweepStale(ctx context.Context, cutoff time.Time, limit int) (*SweepReport, error) {
	stale, err := s.store.ListStalePending(ctx, cutoff, limit)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{Scanned: len(stale)}
	for _, draw := range stale {
		outcome, err := s.Settle(ctx, draw.ID)
		if err != nil {
			report.Failed++
			log.WithError(err).WithField("draw_id", draw.ID).Warn("Добор крутки не удался")
			continue
		}
		if outcome.DidAward {
			report.Awarded++
		} else {
			report.Skipped++
		}
	}

	log.WithFields(log.Fields{
		"scanned": report.Scanned,
		"awarded": report.Awarded,
		"skipped": report.Skipped,
		"failed":  report.Failed,
	}).Info("Проход добора завершён")
	return report, nil
}

// BulkSettleUser начисляет до limit незавершённых круток пользователя.
// Ошибки изолируются по одной крутке, как и в доборе.
func (s *Service) BulkSettleUser(ctx context.Context, userID string, limit int) (*BulkReport, error) {
	pending, err := s.draws.ListPendingByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	report := &BulkReport{}
	for _, draw := range pending {
		outcome, err := s.Settle(ctx, draw.ID)
		if err != nil {
			report.Failed++
			log.WithError(err).WithField("draw_id", draw.ID).Warn("Массовое начисление: крутка не прошла")
			continue
		}
		if outcome.DidAward {
			report.Awarded++
		} else {
			report.Skipped++
		}
	}
	return report, nil
}

// CancelPendingUser терминально отменяет незавершённые крутки
// пользователя и возвращает билеты одной транзакцией хранилища:
// при сбое возврата отмена откатывается целиком и повтор безопасен.
// Возврат считается от фактически отменённых строк: если конкурентное
// начисление выиграло гонку за часть круток, за них билеты не
// возвращаются.
func (s *Service) CancelPendingUser(ctx context.Context, userID string) (*CancelReport, error) {
	cancelled, refunded, balance, err := s.store.CancelPendingByUser(ctx, userID, s.basicTicket, s.drawsPerTicket)
	if err != nil {
		return nil, err
	}

	report := &CancelReport{Cancelled: cancelled, Refunded: refunded, TicketBalance: balance}

	log.WithFields(log.Fields{
		"user_id":   userID,
		"cancelled": report.Cancelled,
		"refunded":  report.Refunded,
	}).Info("Незавершённые крутки отменены")
	return report, nil
}

// CountPending возвращает число незавершённых круток пользователя.
func (s *Service) CountPending(ctx context.Context, userID string) (int, error) {
	return s.store.CountPendingByUser(ctx, userID)
}

// PendingSummary строит глобальную сводку незавершённых круток для
// операторской панели.
func (s *Service) PendingSummary(ctx context.Context) (*PendingSummary, error) {
	return s.store.PendingSummary(ctx, time.Now().Add(-summaryOverdueAge), summarySuspiciousMin)
}
