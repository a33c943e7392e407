package app

import (
	"context"
	"crypto/subtle"
	"log"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"quiniela-service/internal/domain"
	"quiniela-service/internal/scoring"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// recomputeWorkers bounds concurrent per-participant scoring during a batch
// recompute. Participants are independent, so order does not matter.
const recomputeWorkers = 8

// BrandRepository resolves tenants by slug.
type BrandRepository interface {
	GetBySlug(ctx context.Context, slug string) (domain.Brand, error)
}

// CatalogRepository returns the active question catalog in display order
// (typically a cached view over a backing store).
type CatalogRepository interface {
	Questions(ctx context.Context) ([]domain.Question, error)
}

// ParticipantRepository stores participants scoped to a brand.
type ParticipantRepository interface {
	List(ctx context.Context, brandID string) ([]domain.Participant, error)
	GetByID(ctx context.Context, brandID, id string) (domain.Participant, error)
	GetByEmail(ctx context.Context, brandID, email string) (domain.Participant, error)
	Create(ctx context.Context, p domain.Participant) error
	UpdateScore(ctx context.Context, brandID, id string, summary domain.ScoreSummary) error
}

// PredictionRepository stores each participant's answers keyed by question key.
type PredictionRepository interface {
	GetByParticipant(ctx context.Context, brandID, participantID string) (map[string]domain.Answer, error)
	Save(ctx context.Context, brandID, participantID string, answers map[string]domain.Answer) error
}

// ResultRepository stores the official answers per brand, keyed by question key.
type ResultRepository interface {
	Get(ctx context.Context, brandID string) (map[string]domain.Answer, error)
	Save(ctx context.Context, brandID string, answers map[string]domain.Answer) error
}

// Repositories bundles everything the service needs from the infrastructure.
type Repositories struct {
	Brands       BrandRepository
	Catalog      CatalogRepository
	Participants ParticipantRepository
	Predictions  PredictionRepository
	Results      ResultRepository
}

// ContestService contains the contest use cases: registration, prediction
// submission, result entry, batch recompute, and the leaderboard projection.
type ContestService struct {
	repos Repositories
	now   func() time.Time
	hub   *leaderboardHub
}

func NewContestService(repos Repositories) *ContestService {
	return NewContestServiceWithClock(repos, time.Now)
}

// NewContestServiceWithClock allows a fixed clock in tests; the prediction
// lock check depends on it.
func NewContestServiceWithClock(repos Repositories, now func() time.Time) *ContestService {
	return &ContestService{repos: repos, now: now, hub: newLeaderboardHub()}
}

func (s *ContestService) resolveBrand(ctx context.Context, slug string) (domain.Brand, error) {
	brand, err := s.repos.Brands.GetBySlug(ctx, slug)
	if err != nil {
		return domain.Brand{}, err
	}
	if !brand.Active {
		return domain.Brand{}, domain.ErrBrandInactive
	}
	return brand, nil
}

// AuthorizeAdmin checks the per-brand admin secret. Transport layers call
// this before result entry and recompute.
func (s *ContestService) AuthorizeAdmin(ctx context.Context, slug, secret string) error {
	brand, err := s.resolveBrand(ctx, slug)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(brand.AdminSecret), []byte(secret)) != 1 {
		return domain.ErrNotAuthorized
	}
	return nil
}

// Register creates a participant. Emails are unique per brand,
// case-insensitively.
func (s *ContestService) Register(ctx context.Context, slug, name, email, avatar string) (domain.Participant, error) {
	brand, err := s.resolveBrand(ctx, slug)
	if err != nil {
		return domain.Participant{}, err
	}

	email = strings.TrimSpace(email)
	if _, err := s.repos.Participants.GetByEmail(ctx, brand.ID, email); err == nil {
		return domain.Participant{}, domain.ErrEmailTaken
	} else if err != domain.ErrParticipantNotFound {
		return domain.Participant{}, err
	}

	participant := domain.Participant{
		ID:             uuid.NewString(),
		BrandID:        brand.ID,
		Name:           strings.TrimSpace(name),
		Email:          email,
		Avatar:         avatar,
		CategoryScores: map[string]int{},
		CreatedAt:      s.now(),
	}
	if err := s.repos.Participants.Create(ctx, participant); err != nil {
		return domain.Participant{}, err
	}
	return participant, nil
}

// Participants returns the brand's participants ordered by registration time.
func (s *ContestService) Participants(ctx context.Context, slug string) ([]domain.Participant, error) {
	brand, err := s.resolveBrand(ctx, slug)
	if err != nil {
		return nil, err
	}
	participants, err := s.repos.Participants.List(ctx, brand.ID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(participants, func(i, j int) bool {
		return participants[i].CreatedAt.Before(participants[j].CreatedAt)
	})
	return participants, nil
}

// SubmitPredictions stores a participant's answers. The lock check happens
// here, against the service clock, at the moment of persistence; callers'
// views of the lock state are irrelevant. Unknown question keys reject the
// whole submission.
func (s *ContestService) SubmitPredictions(ctx context.Context, slug, participantID string, answers map[string]domain.Answer) error {
	brand, err := s.resolveBrand(ctx, slug)
	if err != nil {
		return err
	}
	if brand.Locked(s.now()) {
		log.Printf("[SECURITY] prediction write blocked, lock passed: brand=%s participant=%s", brand.Slug, participantID)
		return domain.ErrPredictionsLocked
	}
	if _, err := s.repos.Participants.GetByID(ctx, brand.ID, participantID); err != nil {
		return err
	}

	questions, err := s.repos.Catalog.Questions(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(questions))
	for _, q := range questions {
		known[q.Key] = struct{}{}
	}
	for key := range answers {
		if _, ok := known[key]; !ok {
			log.Printf("[SECURITY] prediction with unknown question key rejected: brand=%s key=%s", brand.Slug, key)
			return domain.ErrQuestionNotFound
		}
	}

	return s.repos.Predictions.Save(ctx, brand.ID, participantID, answers)
}

// Predictions returns one participant's stored answers.
func (s *ContestService) Predictions(ctx context.Context, slug, participantID string) (map[string]domain.Answer, error) {
	brand, err := s.resolveBrand(ctx, slug)
	if err != nil {
		return nil, err
	}
	if _, err := s.repos.Participants.GetByID(ctx, brand.ID, participantID); err != nil {
		return nil, err
	}
	return s.repos.Predictions.GetByParticipant(ctx, brand.ID, participantID)
}

// SubmitResults overwrites official answers for the brand. Unknown question
// keys are skipped with a log line rather than failing the submission; no
// scoring happens here, recompute is a separate explicit step.
func (s *ContestService) SubmitResults(ctx context.Context, slug string, answers map[string]domain.Answer) error {
	brand, err := s.resolveBrand(ctx, slug)
	if err != nil {
		return err
	}

	questions, err := s.repos.Catalog.Questions(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(questions))
	for _, q := range questions {
		known[q.Key] = struct{}{}
	}
	accepted := make(map[string]domain.Answer, len(answers))
	for key, answer := range answers {
		if _, ok := known[key]; !ok {
			log.Printf("result for unknown question key skipped: brand=%s key=%s", brand.Slug, key)
			continue
		}
		accepted[key] = answer
	}

	log.Printf("[ADMIN AUDIT] SUBMIT_RESULTS brand=%s questions=%d", brand.Slug, len(accepted))
	return s.repos.Results.Save(ctx, brand.ID, accepted)
}

// Results returns the brand's current official answers.
func (s *ContestService) Results(ctx context.Context, slug string) (map[string]domain.Answer, error) {
	brand, err := s.resolveBrand(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.repos.Results.Get(ctx, brand.ID)
}

// Recompute re-derives and persists every participant's score for the brand
// and returns how many were updated. A failure on one participant is logged
// and skipped; the rest of the batch still runs. Running it twice with
// unchanged results converges to identical stored scores.
func (s *ContestService) Recompute(ctx context.Context, slug string) (int, error) {
	brand, err := s.resolveBrand(ctx, slug)
	if err != nil {
		return 0, err
	}

	questions, err := s.repos.Catalog.Questions(ctx)
	if err != nil {
		return 0, err
	}
	results, err := s.repos.Results.Get(ctx, brand.ID)
	if err != nil {
		return 0, err
	}
	participants, err := s.repos.Participants.List(ctx, brand.ID)
	if err != nil {
		return 0, err
	}

	log.Printf("[ADMIN AUDIT] CALCULATE_SCORES brand=%s participants=%d", brand.Slug, len(participants))

	var updated atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(recomputeWorkers)
	for _, participant := range participants {
		participant := participant
		g.Go(func() error {
			predictions, err := s.repos.Predictions.GetByParticipant(gctx, brand.ID, participant.ID)
			if err != nil {
				log.Printf("recompute: skipping participant %s: load predictions: %v", participant.ID, err)
				return nil
			}
			summary := scoring.Score(questions, predictions, results)
			if err := s.repos.Participants.UpdateScore(gctx, brand.ID, participant.ID, summary); err != nil {
				log.Printf("recompute: skipping participant %s: persist score: %v", participant.ID, err)
				return nil
			}
			updated.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	if lb, err := s.Leaderboard(ctx, slug); err == nil {
		s.hub.broadcast(brand.Slug, lb)
	} else {
		log.Printf("recompute: leaderboard broadcast skipped: %v", err)
	}

	return int(updated.Load()), nil
}

// Leaderboard projects the brand's participants ordered by stored score,
// descending. Ties break by earliest registration, then name, so the order
// is stable across recomputes. Always reflects the last completed recompute,
// not live predictions.
func (s *ContestService) Leaderboard(ctx context.Context, slug string) (domain.Leaderboard, error) {
	brand, err := s.resolveBrand(ctx, slug)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	participants, err := s.repos.Participants.List(ctx, brand.ID)
	if err != nil {
		return domain.Leaderboard{}, err
	}

	sort.SliceStable(participants, func(i, j int) bool {
		if participants[i].Score != participants[j].Score {
			return participants[i].Score > participants[j].Score
		}
		if !participants[i].CreatedAt.Equal(participants[j].CreatedAt) {
			return participants[i].CreatedAt.Before(participants[j].CreatedAt)
		}
		return participants[i].Name < participants[j].Name
	})

	entries := make([]domain.LeaderboardEntry, 0, len(participants))
	for _, p := range participants {
		scores := p.CategoryScores
		if scores == nil {
			scores = map[string]int{}
		}
		entries = append(entries, domain.LeaderboardEntry{
			ID:                 p.ID,
			Name:               p.Name,
			Avatar:             p.Avatar,
			Score:              p.Score,
			CorrectPredictions: p.CorrectPredictions,
			CategoryScores:     scores,
		})
	}

	return domain.Leaderboard{
		BrandSlug: brand.Slug,
		Entries:   entries,
		UpdatedAt: s.now(),
	}, nil
}

// CheckPrediction compares one stored prediction against the official result.
func (s *ContestService) CheckPrediction(ctx context.Context, slug, participantID, questionKey string) (domain.PredictionCheck, error) {
	brand, err := s.resolveBrand(ctx, slug)
	if err != nil {
		return domain.PredictionCheck{}, err
	}

	questions, err := s.repos.Catalog.Questions(ctx)
	if err != nil {
		return domain.PredictionCheck{}, err
	}
	var question *domain.Question
	for i := range questions {
		if questions[i].Key == questionKey {
			question = &questions[i]
			break
		}
	}
	if question == nil {
		return domain.PredictionCheck{}, domain.ErrQuestionNotFound
	}

	predictions, err := s.repos.Predictions.GetByParticipant(ctx, brand.ID, participantID)
	if err != nil {
		return domain.PredictionCheck{}, err
	}
	results, err := s.repos.Results.Get(ctx, brand.ID)
	if err != nil {
		return domain.PredictionCheck{}, err
	}

	prediction, ok := predictions[questionKey]
	if !ok {
		return domain.PredictionCheck{}, domain.ErrNoAnswer
	}
	actual, ok := results[questionKey]
	if !ok || actual.IsZero() {
		return domain.PredictionCheck{}, domain.ErrNoAnswer
	}

	return domain.PredictionCheck{
		QuestionKey: questionKey,
		Correct:     scoring.Exact(*question, prediction, actual),
		Prediction:  prediction,
		Actual:      actual,
	}, nil
}

// Subscribe returns a channel that receives leaderboard snapshots for a
// brand, starting with the current standings. The caller must invoke the
// returned cancel function to avoid leaks.
func (s *ContestService) Subscribe(ctx context.Context, slug string) (<-chan domain.Leaderboard, func(), error) {
	initial, err := s.Leaderboard(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.hub.subscribe(slug)
	ch <- initial
	return ch, cancel, nil
}
