// Package notify отправляет служебные уведомления команде в Telegram.
// Канал строго fire-and-forget: гача не должна падать из-за того,
// что бот недоступен.
package notify

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// Notifier шлёт сообщения в операционный чат.
// Нулевой Notifier (без токена) молча игнорирует все вызовы.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// New создаёт нотификатор. При пустом токене возвращается выключенный
// экземпляр — это валидная конфигурация для локальной разработки.
func New(token string, chatID int64) (*Notifier, error) {
	if token == "" || chatID == 0 {
		log.Info("Telegram-уведомления отключены")
		return &Notifier{}, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	log.WithField("bot", bot.Self.UserName).Info("Telegram-уведомления включены")
	return &Notifier{bot: bot, chatID: chatID}, nil
}

// Send отправляет текстовое сообщение в операционный чат.
// Ошибка отправки логируется и не возвращается.
func (n *Notifier) Send(text string) {
	if n == nil || n.bot == nil {
		return
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		log.WithError(err).Warn("Не удалось отправить уведомление в Telegram")
	}
}
