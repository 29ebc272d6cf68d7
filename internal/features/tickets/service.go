// Package tickets — service.go: бизнес-логика билетного леджера.
package tickets

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/jinjinsansan/tensei-sub001/internal/common"
)

// Store — операции хранилища, нужные сервису.
// Интерфейс объявлен на стороне потребителя, чтобы в тестах
// подставлять двойники.
type Store interface {
	Consume(ctx context.Context, userID, ticketType string, n int) (int, error)
	Refund(ctx context.Context, userID, ticketType string, n int) (int, error)
	GetBalance(ctx context.Context, userID, ticketType string) (int, error)
	GrantInitial(ctx context.Context, userID, ticketType string, n int) error
}

// Service — билетный леджер.
type Service struct {
	store        Store
	initialGrant int
}

// NewService создаёт сервис билетов.
func NewService(store Store, initialGrant int) *Service {
	return &Service{store: store, initialGrant: initialGrant}
}

// Consume списывает n билетов и возвращает новый баланс.
func (s *Service) Consume(ctx context.Context, userID, ticketType string, n int) (int, error) {
	if userID == "" || n <= 0 {
		return 0, common.ErrValidation
	}
	balance, err := s.store.Consume(ctx, userID, ticketType, n)
	if err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{
		"user_id": userID,
		"type":    ticketType,
		"n":       n,
		"balance": balance,
	}).Info("Билеты списаны")
	return balance, nil
}

// Refund возвращает n билетов и возвращает новый баланс.
func (s *Service) Refund(ctx context.Context, userID, ticketType string, n int) (int, error) {
	if userID == "" || n <= 0 {
		return 0, common.ErrValidation
	}
	balance, err := s.store.Refund(ctx, userID, ticketType, n)
	if err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{
		"user_id": userID,
		"type":    ticketType,
		"n":       n,
		"balance": balance,
	}).Info("Билеты возвращены")
	return balance, nil
}

// GetBalance возвращает текущий баланс пользователя.
func (s *Service) GetBalance(ctx context.Context, userID, ticketType string) (int, error) {
	return s.store.GetBalance(ctx, userID, ticketType)
}

// EnsureInitialGrant выдаёт стартовый пакет билетов, если его ещё не было.
func (s *Service) EnsureInitialGrant(ctx context.Context, userID string) error {
	return s.store.GrantInitial(ctx, userID, TypeBasic, s.initialGrant)
}
