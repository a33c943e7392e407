package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"quiniela-service/internal/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Store implements the app repositories on Postgres via pgx. Answers live in
// jsonb columns using the legacy shape (string or {team1, team2} object);
// domain.Answer re-establishes the union on scan.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) GetBySlug(ctx context.Context, slug string) (domain.Brand, error) {
	var (
		brand  domain.Brand
		lockAt *time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, slug, name, admin_secret, predictions_lock_at, is_active FROM brands WHERE slug=$1`,
		slug,
	).Scan(&brand.ID, &brand.Slug, &brand.Name, &brand.AdminSecret, &lockAt, &brand.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Brand{}, domain.ErrBrandNotFound
	}
	if err != nil {
		return domain.Brand{}, fmt.Errorf("load brand: %w", err)
	}
	if lockAt != nil {
		brand.PredictionsLockAt = *lockAt
	}
	return brand, nil
}

// LoadCatalog returns the active questions in display order. It satisfies
// memory.CatalogLoader so the TTL cache fronts it.
func (s *Store) LoadCatalog(ctx context.Context) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT question_key, category, text, type, options, difficulty, sort_order
		 FROM questions WHERE is_active ORDER BY sort_order`)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var (
			q       domain.Question
			options []byte
		)
		if err := rows.Scan(&q.Key, &q.Category, &q.Text, &q.Type, &options, &q.Difficulty, &q.SortOrder); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if len(options) > 0 {
			if err := json.Unmarshal(options, &q.Options); err != nil {
				return nil, fmt.Errorf("unmarshal question options: %w", err)
			}
		}
		q.Active = true
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (s *Store) List(ctx context.Context, brandID string) ([]domain.Participant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, brand_id, name, email, avatar, score, correct_predictions, category_scores, created_at
		 FROM participants WHERE brand_id=$1 ORDER BY created_at`, brandID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var participants []domain.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (s *Store) GetByID(ctx context.Context, brandID, id string) (domain.Participant, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, brand_id, name, email, avatar, score, correct_predictions, category_scores, created_at
		 FROM participants WHERE brand_id=$1 AND id=$2`, brandID, id)
	p, err := scanParticipant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return p, err
}

func (s *Store) GetByEmail(ctx context.Context, brandID, email string) (domain.Participant, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, brand_id, name, email, avatar, score, correct_predictions, category_scores, created_at
		 FROM participants WHERE brand_id=$1 AND lower(email)=lower($2)`, brandID, email)
	p, err := scanParticipant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return p, err
}

func (s *Store) Create(ctx context.Context, p domain.Participant) error {
	scores, err := json.Marshal(p.CategoryScores)
	if err != nil {
		return fmt.Errorf("marshal category scores: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO participants (id, brand_id, name, email, avatar, score, correct_predictions, category_scores, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.BrandID, p.Name, p.Email, p.Avatar, p.Score, p.CorrectPredictions, scores, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("create participant: %w", err)
	}
	return nil
}

func (s *Store) UpdateScore(ctx context.Context, brandID, id string, summary domain.ScoreSummary) error {
	scores, err := json.Marshal(summary.CategoryScores)
	if err != nil {
		return fmt.Errorf("marshal category scores: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE participants SET score=$1, correct_predictions=$2, category_scores=$3 WHERE brand_id=$4 AND id=$5`,
		summary.Score, summary.CorrectPredictions, scores, brandID, id)
	if err != nil {
		return fmt.Errorf("update score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrParticipantNotFound
	}
	return nil
}

func (s *Store) GetByParticipant(ctx context.Context, brandID, participantID string) (map[string]domain.Answer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT q.question_key, p.answer
		 FROM predictions p JOIN questions q ON q.id = p.question_id
		 WHERE p.brand_id=$1 AND p.participant_id=$2`, brandID, participantID)
	if err != nil {
		return nil, fmt.Errorf("load predictions: %w", err)
	}
	defer rows.Close()
	return scanAnswers(rows)
}

func (s *Store) Save(ctx context.Context, brandID, participantID string, answers map[string]domain.Answer) error {
	return s.upsertAnswers(ctx, answers,
		`INSERT INTO predictions (brand_id, participant_id, question_id, answer, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (participant_id, question_id) DO UPDATE SET answer=EXCLUDED.answer, updated_at=now()`,
		brandID, participantID)
}

// Results returns the result-store view backed by the same pool.
func (s *Store) Results() *ResultStore {
	return &ResultStore{store: s}
}

// ResultStore implements app.ResultRepository on the results table.
type ResultStore struct {
	store *Store
}

func (r *ResultStore) Get(ctx context.Context, brandID string) (map[string]domain.Answer, error) {
	rows, err := r.store.pool.Query(ctx,
		`SELECT q.question_key, res.answer
		 FROM results res JOIN questions q ON q.id = res.question_id
		 WHERE res.brand_id=$1`, brandID)
	if err != nil {
		return nil, fmt.Errorf("load results: %w", err)
	}
	defer rows.Close()
	return scanAnswers(rows)
}

func (r *ResultStore) Save(ctx context.Context, brandID string, answers map[string]domain.Answer) error {
	return r.store.upsertAnswers(ctx, answers,
		`INSERT INTO results (brand_id, question_id, answer, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (brand_id, question_id) DO UPDATE SET answer=EXCLUDED.answer, updated_at=now()`,
		brandID)
}

// upsertAnswers maps question keys to question IDs and writes each answer in
// one transaction. extraArgs precede the question ID and answer payload.
func (s *Store) upsertAnswers(ctx context.Context, answers map[string]domain.Answer, query string, extraArgs ...any) error {
	idByKey, err := s.questionIDs(ctx)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for key, answer := range answers {
		questionID, ok := idByKey[key]
		if !ok {
			// key was validated upstream; a miss here means the question
			// was deactivated mid-write
			continue
		}
		payload, err := json.Marshal(answer)
		if err != nil {
			return fmt.Errorf("marshal answer %s: %w", key, err)
		}
		args := append(append([]any{}, extraArgs...), questionID, payload)
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert answer %s: %w", key, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) questionIDs(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, question_key FROM questions WHERE is_active`)
	if err != nil {
		return nil, fmt.Errorf("load question ids: %w", err)
	}
	defer rows.Close()

	idByKey := make(map[string]string)
	for rows.Next() {
		var id, key string
		if err := rows.Scan(&id, &key); err != nil {
			return nil, fmt.Errorf("scan question id: %w", err)
		}
		idByKey[key] = id
	}
	return idByKey, rows.Err()
}

func scanAnswers(rows pgx.Rows) (map[string]domain.Answer, error) {
	answers := make(map[string]domain.Answer)
	for rows.Next() {
		var (
			key string
			raw []byte
		)
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		var answer domain.Answer
		if err := json.Unmarshal(raw, &answer); err != nil {
			return nil, fmt.Errorf("unmarshal answer %s: %w", key, err)
		}
		answers[key] = answer
	}
	return answers, rows.Err()
}

func scanParticipant(row pgx.Row) (domain.Participant, error) {
	var (
		p      domain.Participant
		scores []byte
	)
	if err := row.Scan(&p.ID, &p.BrandID, &p.Name, &p.Email, &p.Avatar, &p.Score, &p.CorrectPredictions, &scores, &p.CreatedAt); err != nil {
		return domain.Participant{}, err
	}
	if len(scores) > 0 {
		if err := json.Unmarshal(scores, &p.CategoryScores); err != nil {
			return domain.Participant{}, fmt.Errorf("unmarshal category scores: %w", err)
		}
	}
	return p, nil
}
