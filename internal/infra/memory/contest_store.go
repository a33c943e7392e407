package memory

import (
	"context"
	"strings"
	"sync"

	"quiniela-service/internal/domain"
)

// ContestStore is an in-memory implementation of every app repository,
// used for demos and tests. Values are copied on the way in and out so
// callers never alias store state.
type ContestStore struct {
	mu           sync.RWMutex
	brands       map[string]domain.Brand                        // by slug
	participants map[string]map[string]domain.Participant       // by brand ID, then participant ID
	predictions  map[string]map[string]map[string]domain.Answer // by brand ID, participant ID, question key
	results      map[string]map[string]domain.Answer            // by brand ID, then question key
}

func NewContestStore() *ContestStore {
	return &ContestStore{
		brands:       make(map[string]domain.Brand),
		participants: make(map[string]map[string]domain.Participant),
		predictions:  make(map[string]map[string]map[string]domain.Answer),
		results:      make(map[string]map[string]domain.Answer),
	}
}

// AddBrand registers a tenant. Brands are created by an operator, not by the
// service, so this is plain setup API rather than a repository method.
func (s *ContestStore) AddBrand(b domain.Brand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brands[b.Slug] = b
}

func (s *ContestStore) GetBySlug(_ context.Context, slug string) (domain.Brand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	brand, ok := s.brands[slug]
	if !ok {
		return domain.Brand{}, domain.ErrBrandNotFound
	}
	return brand, nil
}

func (s *ContestStore) List(_ context.Context, brandID string) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Participant, 0, len(s.participants[brandID]))
	for _, p := range s.participants[brandID] {
		out = append(out, cloneParticipant(p))
	}
	return out, nil
}

func (s *ContestStore) GetByID(_ context.Context, brandID, id string) (domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[brandID][id]
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return cloneParticipant(p), nil
}

func (s *ContestStore) GetByEmail(_ context.Context, brandID, email string) (domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.participants[brandID] {
		if strings.EqualFold(p.Email, email) {
			return cloneParticipant(p), nil
		}
	}
	return domain.Participant{}, domain.ErrParticipantNotFound
}

func (s *ContestStore) Create(_ context.Context, p domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.participants[p.BrandID] == nil {
		s.participants[p.BrandID] = make(map[string]domain.Participant)
	}
	s.participants[p.BrandID][p.ID] = cloneParticipant(p)
	return nil
}

func (s *ContestStore) UpdateScore(_ context.Context, brandID, id string, summary domain.ScoreSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[brandID][id]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	p.Score = summary.Score
	p.CorrectPredictions = summary.CorrectPredictions
	p.CategoryScores = cloneScores(summary.CategoryScores)
	s.participants[brandID][id] = p
	return nil
}

func (s *ContestStore) GetByParticipant(_ context.Context, brandID, participantID string) (map[string]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAnswers(s.predictions[brandID][participantID]), nil
}

func (s *ContestStore) Save(_ context.Context, brandID, participantID string, answers map[string]domain.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.predictions[brandID] == nil {
		s.predictions[brandID] = make(map[string]map[string]domain.Answer)
	}
	existing := s.predictions[brandID][participantID]
	if existing == nil {
		existing = make(map[string]domain.Answer)
		s.predictions[brandID][participantID] = existing
	}
	// last write wins per question; untouched answers survive
	for key, answer := range answers {
		existing[key] = answer
	}
	return nil
}

// ResultStore adapts the results slice of the contest store to the
// app.ResultRepository interface. Predictions and results share the same
// save semantics but different keying, so the store exposes them separately.
type ResultStore struct {
	store *ContestStore
}

func (s *ContestStore) Results() *ResultStore {
	return &ResultStore{store: s}
}

func (r *ResultStore) Get(_ context.Context, brandID string) (map[string]domain.Answer, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return cloneAnswers(r.store.results[brandID]), nil
}

func (r *ResultStore) Save(_ context.Context, brandID string, answers map[string]domain.Answer) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	existing := r.store.results[brandID]
	if existing == nil {
		existing = make(map[string]domain.Answer)
		r.store.results[brandID] = existing
	}
	for key, answer := range answers {
		existing[key] = answer
	}
	return nil
}

func cloneParticipant(p domain.Participant) domain.Participant {
	p.CategoryScores = cloneScores(p.CategoryScores)
	return p
}

func cloneScores(scores map[string]int) map[string]int {
	if scores == nil {
		return nil
	}
	out := make(map[string]int, len(scores))
	for k, v := range scores {
		out[k] = v
	}
	return out
}

func cloneAnswers(answers map[string]domain.Answer) map[string]domain.Answer {
	out := make(map[string]domain.Answer, len(answers))
	for k, v := range answers {
		out[k] = v
	}
	return out
}
