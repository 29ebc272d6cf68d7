// Package gacha — service.go: оркестратор сессии крутки.
// Порядок жёсткий: сначала атомарное списание билетов, затем генерация
// и сохранение круток. Если каталог сломан посреди пачки, списанные
// билеты НЕ возвращаются автоматически — восстановление делается
// админской отменой с возвратом (операционный ранбук, не баг).
package gacha

import (
	"context"
	"math/rand"

	log "github.com/sirupsen/logrus"

	"github.com/jinjinsansan/tensei-sub001/internal/common"
	"github.com/jinjinsansan/tensei-sub001/internal/features/catalog"
	"github.com/jinjinsansan/tensei-sub001/internal/features/tickets"
)

// Store — хранилище круток, нужное оркестратору.
type Store interface {
	CreatePull(ctx context.Context, userID, sessionID string, multiSessionID *string, result DrawResult, story StoryPayload, gachaType string) (*DrawRecord, error)
	GetDraw(ctx context.Context, drawID string) (*DrawRecord, error)
	ListPendingByUser(ctx context.Context, userID string, limit int) ([]DrawRecord, error)
	CreateMultiSession(ctx context.Context, userID string, totalPulls int) (*MultiSession, error)
	UpdateMultiSession(ctx context.Context, sessionID string, pullsCompleted int, status string) error
}

// CatalogLoader отдаёт снимок каталога.
type CatalogLoader interface {
	LoadSnapshot(ctx context.Context, configSlug string) (*catalog.Snapshot, error)
}

// TicketLedger — операции с билетами, нужные оркестратору.
type TicketLedger interface {
	Consume(ctx context.Context, userID, ticketType string, n int) (int, error)
	GetBalance(ctx context.Context, userID, ticketType string) (int, error)
}

// Service — оркестратор круток.
type Service struct {
	store    Store
	catalog  CatalogLoader
	ledger   TicketLedger
	rng      RNG
	maxPulls int
}

// NewService создаёт оркестратор. rng == nil означает rand.Float64.
func NewService(store Store, catalogLoader CatalogLoader, ledger TicketLedger, maxPulls int, rng RNG) *Service {
	if rng == nil {
		rng = rand.Float64
	}
	return &Service{
		store:    store,
		catalog:  catalogLoader,
		ledger:   ledger,
		rng:      rng,
		maxPulls: maxPulls,
	}
}

// PlayOptions — параметры одной сессии крутки.
type PlayOptions struct {
	DrawCount  int
	ConfigSlug string
	// Unlimited пропускает списание билетов (админская проверка гачи).
	Unlimited bool
}

// Play выполняет одну сессию: валидация, списание билетов, генерация
// drawCount круток и их сохранение со статусом pending.
func (s *Service) Play(ctx context.Context, userID, sessionID string, opts PlayOptions) (*PlayResponse, error) {
	if userID == "" || sessionID == "" {
		return nil, common.ErrValidation
	}
	if opts.DrawCount <= 0 || opts.DrawCount > s.maxPulls {
		return nil, common.ErrInvalidDrawCount
	}
	slug := opts.ConfigSlug
	if slug == "" {
		slug = "default"
	}

	balance := 0
	if opts.Unlimited {
		var err error
		balance, err = s.ledger.GetBalance(ctx, userID, tickets.TypeBasic)
		if err != nil {
			return nil, err
		}
	} else {
		// Билеты списываются до генерации, одним условным UPDATE
		var err error
		balance, err = s.ledger.Consume(ctx, userID, tickets.TypeBasic, opts.DrawCount)
		if err != nil {
			return nil, err
		}
	}

	snap, err := s.catalog.LoadSnapshot(ctx, slug)
	if err != nil {
		log.WithError(err).Error("Каталог не загрузился после списания билетов")
		return nil, err
	}

	var multiSession *MultiSession
	gachaType := GachaTypeSingle
	var multiSessionID *string
	if opts.DrawCount > 1 {
		gachaType = GachaTypeTenfold
		multiSession, err = s.store.CreateMultiSession(ctx, userID, opts.DrawCount)
		if err != nil {
			return nil, err
		}
		multiSessionID = &multiSession.ID
	}

	pulls := make([]Pull, 0, opts.DrawCount)
	for i := 0; i < opts.DrawCount; i++ {
		result, story, err := Compose(snap, s.rng, ComposeOptions{})
		if err == nil {
			var record *DrawRecord
			record, err = s.store.CreatePull(ctx, userID, sessionID, multiSessionID, result, story, gachaType)
			if err == nil {
				pulls = append(pulls, Pull{Record: record, Result: result, Story: story})
				continue
			}
		}

		// Билеты уже списаны; их вернёт админская отмена
		log.WithError(err).WithFields(log.Fields{
			"user_id":   userID,
			"pull":      i,
			"drawCount": opts.DrawCount,
		}).Error("Крутка оборвалась посреди пачки")
		if multiSession != nil {
			if updateErr := s.store.UpdateMultiSession(ctx, multiSession.ID, len(pulls), MultiError); updateErr != nil {
				log.WithError(updateErr).Error("Не удалось пометить мульти-сессию как ошибочную")
			}
		}
		return nil, err
	}

	if multiSession != nil {
		if err := s.store.UpdateMultiSession(ctx, multiSession.ID, len(pulls), MultiCompleted); err != nil {
			return nil, err
		}
		multiSession.PullsCompleted = len(pulls)
		multiSession.Status = MultiCompleted
	}

	log.WithFields(log.Fields{
		"user_id":   userID,
		"drawCount": opts.DrawCount,
		"balance":   balance,
	}).Info("Сессия крутки завершена")

	return &PlayResponse{
		Pulls:         pulls,
		MultiSession:  multiSession,
		TicketBalance: balance,
	}, nil
}

// GetDraw возвращает запись крутки.
func (s *Service) GetDraw(ctx context.Context, drawID string) (*DrawRecord, error) {
	return s.store.GetDraw(ctx, drawID)
}

// ListPending возвращает незавершённые крутки пользователя.
func (s *Service) ListPending(ctx context.Context, userID string, limit int) ([]DrawRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListPendingByUser(ctx, userID, limit)
}
