// Package cache публикует события коллекции в Redis для read-модели.
// Доставка fire-and-forget: сбой публикации логируется, но не
// откатывает начисление.
package cache

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/jinjinsansan/tensei-sub001/internal/features/award"
)

// CollectionEmitter публикует события о выданных картах.
// Нулевой эмиттер (без адреса Redis) молча игнорирует вызовы.
type CollectionEmitter struct {
	client  *redis.Client
	channel string
}

// NewCollectionEmitter создаёт эмиттер. При пустом адресе возвращается
// выключенный экземпляр.
func NewCollectionEmitter(addr, password, channel string) *CollectionEmitter {
	if addr == "" {
		log.Info("Публикация событий коллекции отключена")
		return &CollectionEmitter{}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	return &CollectionEmitter{client: client, channel: channel}
}

// collectionEvent — полезная нагрузка события add.
type collectionEvent struct {
	Type               string                `json:"type"`
	Entry              *award.InventoryEntry `json:"inventoryEntry"`
	TotalOwnedDelta    int                   `json:"totalOwnedDelta"`
	DistinctOwnedDelta int                   `json:"distinctOwnedDelta"`
}

// EmitCardAdded публикует событие о новой карте в инвентаре.
// firstCopy == true даёт дельту уникальных карт, дубликат — нет.
func (e *CollectionEmitter) EmitCardAdded(ctx context.Context, entry *award.InventoryEntry, firstCopy bool) {
	if e == nil || e.client == nil {
		return
	}
	distinctDelta := 0
	if firstCopy {
		distinctDelta = 1
	}
	payload, err := json.Marshal(collectionEvent{
		Type:               "add",
		Entry:              entry,
		TotalOwnedDelta:    1,
		DistinctOwnedDelta: distinctDelta,
	})
	if err != nil {
		log.WithError(err).Warn("Не удалось сериализовать событие коллекции")
		return
	}
	if err := e.client.Publish(ctx, e.channel, payload).Err(); err != nil {
		log.WithError(err).Warn("Не удалось опубликовать событие коллекции")
	}
}

// Close закрывает соединение с Redis.
func (e *CollectionEmitter) Close() error {
	if e == nil || e.client == nil {
		return nil
	}
	return e.client.Close()
}
