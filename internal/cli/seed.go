package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"quiniela-service/internal/config"
	"quiniela-service/internal/domain"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// NewSeedCmd upserts the default question catalog and the configured brand.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the question catalog and default brand",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runSeed(cmd.Context(), cfg)
		},
	}
}

func runSeed(ctx context.Context, cfg config.Config) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	for _, q := range defaultCatalog() {
		var options any
		if len(q.Options) > 0 {
			data, err := json.Marshal(q.Options)
			if err != nil {
				return fmt.Errorf("marshal options for %s: %w", q.Key, err)
			}
			options = string(data)
		}
		_, err := db.ExecContext(ctx,
			`INSERT INTO questions (question_key, category, text, type, options, difficulty, sort_order, is_active)
			 VALUES (?, ?, ?, ?, ?::jsonb, ?, ?, TRUE)
			 ON CONFLICT (question_key) DO UPDATE SET
			   category=EXCLUDED.category, text=EXCLUDED.text, type=EXCLUDED.type,
			   options=EXCLUDED.options, difficulty=EXCLUDED.difficulty, sort_order=EXCLUDED.sort_order,
			   is_active=TRUE`,
			q.Key, q.Category, q.Text, string(q.Type), options, string(q.Difficulty), q.SortOrder)
		if err != nil {
			return fmt.Errorf("seed question %s: %w", q.Key, err)
		}
		log.Printf("seeded question %s", q.Key)
	}

	brand := demoBrand(cfg)
	var lockAt any
	if !brand.PredictionsLockAt.IsZero() {
		lockAt = brand.PredictionsLockAt
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO brands (id, slug, name, admin_secret, predictions_lock_at, is_active)
		 VALUES (?, ?, ?, ?, ?, TRUE)
		 ON CONFLICT (slug) DO UPDATE SET
		   name=EXCLUDED.name, admin_secret=EXCLUDED.admin_secret,
		   predictions_lock_at=EXCLUDED.predictions_lock_at, is_active=TRUE`,
		uuid.NewString(), brand.Slug, brand.Name, brand.AdminSecret, lockAt)
	if err != nil {
		return fmt.Errorf("seed brand %s: %w", brand.Slug, err)
	}
	log.Printf("seeded brand %s", brand.Slug)
	return nil
}

// defaultCatalog is the stock Super Bowl question set: four categories,
// mixed answer types and difficulties.
func defaultCatalog() []domain.Question {
	return []domain.Question{
		{
			Key:        "winner",
			Category:   "deportivas",
			Text:       "¿Quién ganará el Super Bowl LX?",
			Type:       domain.QuestionSelect,
			Options:    []string{"Seattle Seahawks", "New England Patriots"},
			Difficulty: domain.DifficultyMedium,
			SortOrder:  1,
			Active:     true,
		},
		{
			Key:        "score",
			Category:   "deportivas",
			Text:       "¿Cuál será el marcador final?",
			Type:       domain.QuestionScore,
			Difficulty: domain.DifficultyHard,
			SortOrder:  2,
			Active:     true,
		},
		{
			Key:        "mvp",
			Category:   "deportivas",
			Text:       "¿Quién será el MVP del partido?",
			Type:       domain.QuestionText,
			Difficulty: domain.DifficultyHard,
			SortOrder:  3,
			Active:     true,
		},
		{
			Key:        "first_score",
			Category:   "deportivas",
			Text:       "¿Qué equipo anotará primero?",
			Type:       domain.QuestionSelect,
			Options:    []string{"Seattle Seahawks", "New England Patriots"},
			Difficulty: domain.DifficultyEasy,
			SortOrder:  4,
			Active:     true,
		},
		{
			Key:        "halftime_guest",
			Category:   "entretenimiento",
			Text:       "¿Habrá artista invitado en el show de medio tiempo?",
			Type:       domain.QuestionSelect,
			Options:    []string{"Sí", "No"},
			Difficulty: domain.DifficultyMedium,
			SortOrder:  5,
			Active:     true,
		},
		{
			Key:        "first_song",
			Category:   "entretenimiento",
			Text:       "¿Cuál será la primera canción del show de medio tiempo?",
			Type:       domain.QuestionText,
			Difficulty: domain.DifficultyHard,
			SortOrder:  6,
			Active:     true,
		},
		{
			Key:        "best_commercial",
			Category:   "comerciales",
			Text:       "¿Qué marca tendrá el mejor comercial según USA Today Ad Meter?",
			Type:       domain.QuestionText,
			Difficulty: domain.DifficultyHard,
			SortOrder:  7,
			Active:     true,
		},
		{
			Key:        "most_commercials",
			Category:   "comerciales",
			Text:       "¿Qué categoría tendrá más comerciales?",
			Type:       domain.QuestionSelect,
			Options:    []string{"Cervezas", "Autos", "Tecnología", "Comida rápida", "Streaming"},
			Difficulty: domain.DifficultyMedium,
			SortOrder:  8,
			Active:     true,
		},
		{
			Key:        "anthem_duration",
			Category:   "curiosidades",
			Text:       "¿Cuánto durará el himno nacional? (en segundos)",
			Type:       domain.QuestionNumber,
			Difficulty: domain.DifficultyHard,
			SortOrder:  9,
			Active:     true,
		},
		{
			Key:        "gatorade_color",
			Category:   "curiosidades",
			Text:       "¿De qué color será el Gatorade que le tiren al coach ganador?",
			Type:       domain.QuestionSelect,
			Options:    []string{"Naranja", "Azul", "Amarillo", "Verde", "Morado", "Transparente"},
			Difficulty: domain.DifficultyEasy,
			SortOrder:  10,
			Active:     true,
		},
	}
}
