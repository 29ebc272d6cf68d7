// Package users — service.go: регистрация и стартовый пакет билетов.
package users

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Store — операции хранилища пользователей.
type Store interface {
	Upsert(ctx context.Context, id, externalID, nickname string) (*User, bool, error)
	GetByID(ctx context.Context, id string) (*User, error)
}

// TicketGranter выдаёт стартовый пакет билетов новому игроку.
type TicketGranter interface {
	EnsureInitialGrant(ctx context.Context, userID string) error
}

// Service — учёт игроков.
type Service struct {
	store   Store
	tickets TicketGranter
}

// NewService создаёт сервис пользователей.
func NewService(store Store, tickets TicketGranter) *Service {
	return &Service{store: store, tickets: tickets}
}

// EnsureUser регистрирует игрока при первом обращении и выдаёт
// стартовые билеты. Повторные обращения только обновляют активность.
func (s *Service) EnsureUser(ctx context.Context, id, externalID, nickname string) (*User, error) {
	user, created, err := s.store.Upsert(ctx, id, externalID, nickname)
	if err != nil {
		return nil, err
	}
	if created {
		if err := s.tickets.EnsureInitialGrant(ctx, user.ID); err != nil {
			return nil, err
		}
		log.WithField("user_id", user.ID).Info("Зарегистрирован новый игрок")
	}
	return user, nil
}

// GetByID возвращает игрока.
func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	return s.store.GetByID(ctx, id)
}
