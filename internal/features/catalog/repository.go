// Package catalog — repository.go загружает справочник из PostgreSQL.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// Repository читает справочные таблицы каталога.
type Repository struct {
	db       *pgxpool.Pool
	defaults GlobalConfig
}

// NewRepository создаёт репозиторий каталога. defaults используется,
// когда запрошенного slug нет в gacha_config: гача продолжает работать
// на значениях из окружения вместо отказа.
func NewRepository(db *pgxpool.Pool, defaults GlobalConfig) *Repository {
	return &Repository{db: db, defaults: defaults}
}

// fallbackGlobal возвращает конфиг по умолчанию под запрошенным slug.
func (r *Repository) fallbackGlobal(slug string) GlobalConfig {
	g := r.defaults
	g.Slug = slug
	return g
}

// LoadSnapshot читает весь каталог и возвращает провалидированный снимок.
// Вызывается на каждую крутку: каталог небольшой, а свежесть тиражей
// (current_supply) важнее экономии запросов.
func (r *Repository) LoadSnapshot(ctx context.Context, configSlug string) (*Snapshot, error) {
	characters, err := r.loadCharacters(ctx)
	if err != nil {
		return nil, err
	}
	cards, err := r.loadCards(ctx)
	if err != nil {
		return nil, err
	}
	preStories, err := r.loadPreStories(ctx)
	if err != nil {
		return nil, err
	}
	chance, err := r.loadChanceScenes(ctx)
	if err != nil {
		return nil, err
	}
	scenarios, err := r.loadScenarios(ctx)
	if err != nil {
		return nil, err
	}
	routes, err := r.loadDondenRoutes(ctx)
	if err != nil {
		return nil, err
	}
	global, err := r.loadGlobalConfig(ctx, configSlug)
	if err != nil {
		return nil, err
	}
	rtp, err := r.loadRTPConfigs(ctx)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(characters, cards, preStories, chance, scenarios, routes, global, rtp)
}

func (r *Repository) loadCharacters(ctx context.Context) ([]Character, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, slug, name, weight, is_active, created_at
		FROM characters
		ORDER BY slug
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки персонажей: %w", err)
	}
	defer rows.Close()

	var out []Character
	for rows.Next() {
		var c Character
		if err := rows.Scan(&c.ID, &c.Slug, &c.Name, &c.Weight, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка чтения персонажа: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) loadCards(ctx context.Context) ([]Card, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, character_id, slug, card_name, title, rarity, star_level,
		       card_image_url, is_loss_card, max_supply, current_supply,
		       main_scene_steps, created_at
		FROM cards
		ORDER BY slug
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки карт: %w", err)
	}
	defer rows.Close()

	var out []Card
	for rows.Next() {
		var c Card
		if err := rows.Scan(
			&c.ID, &c.CharacterID, &c.Slug, &c.Name, &c.Title, &c.Rarity,
			&c.StarLevel, &c.ImageURL, &c.IsLossCard, &c.MaxSupply,
			&c.CurrentSupply, &c.MainSceneSteps, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка чтения карты: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) loadPreStories(ctx context.Context) ([]PreStoryScene, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, character_id, pattern, scene_order, video_url, duration_seconds
		FROM pre_stories
		ORDER BY character_id, pattern, scene_order
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки пре-историй: %w", err)
	}
	defer rows.Close()

	var out []PreStoryScene
	for rows.Next() {
		var s PreStoryScene
		if err := rows.Scan(&s.ID, &s.CharacterID, &s.Pattern, &s.SceneOrder, &s.VideoURL, &s.DurationSeconds); err != nil {
			return nil, fmt.Errorf("ошибка чтения пре-истории: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) loadChanceScenes(ctx context.Context) ([]ChanceScene, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, character_id, pattern, video_url, duration_seconds
		FROM chance_scenes
		ORDER BY character_id, pattern
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки chance-сцен: %w", err)
	}
	defer rows.Close()

	var out []ChanceScene
	for rows.Next() {
		var s ChanceScene
		if err := rows.Scan(&s.ID, &s.CharacterID, &s.Pattern, &s.VideoURL, &s.DurationSeconds); err != nil {
			return nil, fmt.Errorf("ошибка чтения chance-сцены: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) loadScenarios(ctx context.Context) ([]ScenarioScene, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, card_id, phase, scene_order, video_url, duration_seconds,
		       telop_text, telop_type
		FROM scenarios
		ORDER BY card_id, phase, scene_order
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки сценариев: %w", err)
	}
	defer rows.Close()

	var out []ScenarioScene
	for rows.Next() {
		var s ScenarioScene
		if err := rows.Scan(
			&s.ID, &s.CardID, &s.Phase, &s.SceneOrder, &s.VideoURL,
			&s.DurationSeconds, &s.TelopText, &s.TelopType,
		); err != nil {
			return nil, fmt.Errorf("ошибка чтения сценария: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) loadDondenRoutes(ctx context.Context) ([]DondenRoute, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, character_id, from_card_id, to_card_id, steps
		FROM donden_routes
		ORDER BY character_id, from_card_id, to_card_id
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки донден-маршрутов: %w", err)
	}
	defer rows.Close()

	var out []DondenRoute
	for rows.Next() {
		var d DondenRoute
		if err := rows.Scan(&d.ID, &d.CharacterID, &d.FromCardID, &d.ToCardID, &d.Steps); err != nil {
			return nil, fmt.Errorf("ошибка чтения донден-маршрута: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *Repository) loadGlobalConfig(ctx context.Context, slug string) (GlobalConfig, error) {
	var g GlobalConfig
	err := r.db.QueryRow(ctx, `
		SELECT slug, loss_rate, title_hint_rate
		FROM gacha_config
		WHERE slug = $1
	`, slug).Scan(&g.Slug, &g.LossRate, &g.TitleHintRate)
	if errors.Is(err, pgx.ErrNoRows) {
		log.WithField("slug", slug).Warn("Конфиг гачи не найден в БД, используются значения из окружения")
		return r.fallbackGlobal(slug), nil
	}
	if err != nil {
		return GlobalConfig{}, fmt.Errorf("ошибка загрузки конфига гачи: %w", err)
	}
	return g, nil
}

// loadRTPConfigs читает RTP-настройки; JSON-колонки разбираются в типизированные
// структуры здесь, чтобы дальше по движку не гуляли сырые map-ы.
func (r *Repository) loadRTPConfigs(ctx context.Context) ([]*RTPConfig, error) {
	rows, err := r.db.Query(ctx, `
		SELECT character_id, star_distribution, donden_rate, reversal_rates
		FROM character_rtp_config
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки RTP-конфигов: %w", err)
	}
	defer rows.Close()

	var out []*RTPConfig
	for rows.Next() {
		var (
			cfg          RTPConfig
			starsJSON    []byte
			reversalJSON []byte
		)
		if err := rows.Scan(&cfg.CharacterID, &starsJSON, &cfg.DondenRate, &reversalJSON); err != nil {
			return nil, fmt.Errorf("ошибка чтения RTP-конфига: %w", err)
		}
		if err := json.Unmarshal(starsJSON, &cfg.StarSlots); err != nil {
			return nil, fmt.Errorf("RTP персонажа %s: битый star_distribution: %w", cfg.CharacterID, err)
		}
		cfg.ReversalRates = make(map[int]float64)
		if len(reversalJSON) > 0 {
			raw := make(map[string]float64)
			if err := json.Unmarshal(reversalJSON, &raw); err != nil {
				return nil, fmt.Errorf("RTP персонажа %s: битый reversal_rates: %w", cfg.CharacterID, err)
			}
			for key, rate := range raw {
				var star int
				if _, err := fmt.Sscanf(key, "%d", &star); err != nil {
					return nil, fmt.Errorf("RTP персонажа %s: нечисловой ключ reversal_rates %q", cfg.CharacterID, key)
				}
				cfg.ReversalRates[star] = rate
			}
		}
		out = append(out, &cfg)
	}
	return out, rows.Err()
}
