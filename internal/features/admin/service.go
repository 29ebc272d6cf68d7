// Package admin — service.go содержит аутентификацию операторов
// и ручные оверрайды начисления. Все оверрайды идут через общий
// движок начисления, поэтому идемпотентность сохраняется: ручное
// завершение не может выдать карту второй раз.
package admin

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"

	"github.com/jinjinsansan/tensei-sub001/internal/common"
	"github.com/jinjinsansan/tensei-sub001/internal/features/award"
)

// Settler — операции движка начисления, доступные оператору.
type Settler interface {
	Settle(ctx context.Context, drawID string) (*award.Outcome, error)
	BulkSettleUser(ctx context.Context, userID string, limit int) (*award.BulkReport, error)
	CancelPendingUser(ctx context.Context, userID string) (*award.CancelReport, error)
	PendingSummary(ctx context.Context) (*award.PendingSummary, error)
}

// Service управляет операторской поверхностью.
type Service struct {
	repo         *Repository
	settler      Settler
	passwordHash string
	bulkLimit    int
}

// NewService создаёт сервис операторской поверхности.
func NewService(repo *Repository, settler Settler, passwordHash string, bulkLimit int) *Service {
	return &Service{
		repo:         repo,
		settler:      settler,
		passwordHash: passwordHash,
		bulkLimit:    bulkLimit,
	}
}

// Login проверяет пароль оператора с использованием Argon2id.
// Защита от brute-force: 3 неудачные попытки = блокировка на 1 час.
// При успехе возвращает токен сессии на 24 часа.
func (s *Service) Login(ctx context.Context, operator, password string) (string, error) {
	attempts, err := s.repo.GetRecentAttempts(ctx, operator, 1*time.Hour)
	if err != nil {
		return "", err
	}
	if attempts >= 3 {
		return "", common.ErrTooManyAttempts
	}

	match := verifyArgon2id(password, s.passwordHash)
	if err := s.repo.LogAttempt(ctx, operator, match); err != nil {
		log.WithError(err).Warn("Не удалось записать попытку входа")
	}
	if !match {
		return "", common.ErrWrongPassword
	}

	token := generateSecureToken()
	session := &Session{
		Operator:     operator,
		SessionToken: token,
		ExpiresAt:    time.Now().Add(24 * time.Hour),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return "", err
	}

	log.WithField("operator", operator).Info("Оператор вошёл в систему")
	return token, nil
}

// CheckSession проверяет токен и продлевает отметку активности.
func (s *Service) CheckSession(ctx context.Context, token string) (*Session, error) {
	session, err := s.repo.GetSessionByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, common.ErrSessionExpired
	}
	if err := s.repo.UpdateActivity(ctx, token); err != nil {
		log.WithError(err).Warn("Не удалось обновить активность сессии")
	}
	return session, nil
}

// Logout деактивирует сессию.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.repo.DeactivateSession(ctx, token)
}

// ForceSettle вручную завершает одну крутку.
// DidAward == false в ответе означает «уже была завершена».
func (s *Service) ForceSettle(ctx context.Context, operator, drawID string) (*award.Outcome, error) {
	outcome, err := s.settler.Settle(ctx, drawID)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"operator": operator,
		"draw_id":  drawID,
		"awarded":  outcome.DidAward,
	}).Info("Ручное завершение крутки")
	return outcome, nil
}

// BulkSettle завершает незавершённые крутки пользователя пачкой.
func (s *Service) BulkSettle(ctx context.Context, operator, userID string) (*award.BulkReport, error) {
	report, err := s.settler.BulkSettleUser(ctx, userID, s.bulkLimit)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"operator": operator,
		"user_id":  userID,
		"awarded":  report.Awarded,
		"skipped":  report.Skipped,
		"failed":   report.Failed,
	}).Info("Массовое завершение круток")
	return report, nil
}

// CancelPending отменяет незавершённые крутки пользователя
// и возвращает билеты.
func (s *Service) CancelPending(ctx context.Context, operator, userID string) (*award.CancelReport, error) {
	report, err := s.settler.CancelPendingUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"operator":  operator,
		"user_id":   userID,
		"cancelled": report.Cancelled,
		"refunded":  report.Refunded,
	}).Info("Отмена круток с возвратом")
	return report, nil
}

// GetPendingSummary возвращает глобальную сводку незавершённых круток:
// общий хвост, просроченные и пользователей с аномальным числом
// незавершённых круток.
func (s *Service) GetPendingSummary(ctx context.Context) (*award.PendingSummary, error) {
	return s.settler.PendingSummary(ctx)
}

// --- Криптографические утилиты ---

// verifyArgon2id проверяет пароль по хешу Argon2id.
// Формат хеша: $argon2id$v=19$m=65536,t=3,p=2$<salt_base64>$<hash_base64>
func verifyArgon2id(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		log.Error("Некорректный формат хеша Argon2id")
		return false
	}

	var memory uint32
	var iterations uint32
	var parallelism uint8
	_, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism)
	if err != nil {
		log.WithError(err).Error("Ошибка парсинга параметров Argon2id")
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования соли")
		return false
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования хеша")
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expectedHash)))

	// Сравнение в постоянном времени (защита от timing attack)
	return subtle.ConstantTimeCompare(computedHash, expectedHash) == 1
}

// generateSecureToken генерирует криптографически безопасный токен сессии.
func generateSecureToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return base64.URLEncoding.EncodeToString(b)
}
