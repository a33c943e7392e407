package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiniela-service/internal/app"
	"quiniela-service/internal/domain"
	"quiniela-service/internal/infra/memory"
)

var testCatalog = []domain.Question{
	{Key: "winner", Category: "deportivas", Type: domain.QuestionSelect, Difficulty: domain.DifficultyEasy, Active: true},
	{Key: "score", Category: "deportivas", Type: domain.QuestionScore, Difficulty: domain.DifficultyMedium, Active: true},
}

type fixture struct {
	store   *memory.ContestStore
	service *app.ContestService
	now     *time.Time
}

func newFixture(brands ...domain.Brand) *fixture {
	store := memory.NewContestStore()
	for _, b := range brands {
		store.AddBrand(b)
	}
	now := time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)
	f := &fixture{store: store, now: &now}
	f.service = app.NewContestServiceWithClock(app.Repositories{
		Brands:       store,
		Catalog:      memory.NewCatalogRepository(memory.NewStaticCatalogLoader(testCatalog), time.Minute),
		Participants: store,
		Predictions:  store,
		Results:      store.Results(),
	}, func() time.Time { return now })
	return f
}

func activeBrand(id, slug string) domain.Brand {
	return domain.Brand{ID: id, Slug: slug, Name: slug, AdminSecret: "s3cret", Active: true}
}

func TestRecomputeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(activeBrand("b1", "acme"))

	p, err := f.service.Register(ctx, "acme", "Alice", "alice@example.com", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := f.service.SubmitPredictions(ctx, "acme", p.ID, map[string]domain.Answer{
		"winner": domain.TextAnswer("TeamA"),
		"score":  domain.ScoreAnswer("3", "1"),
	}); err != nil {
		t.Fatalf("submit predictions: %v", err)
	}
	if err := f.service.SubmitResults(ctx, "acme", map[string]domain.Answer{
		"winner": domain.TextAnswer("teamA"),
		"score":  domain.ScoreAnswer("4", "1"),
	}); err != nil {
		t.Fatalf("submit results: %v", err)
	}

	updated, err := f.service.Recompute(ctx, "acme")
	if err != nil || updated != 1 {
		t.Fatalf("recompute: updated=%d err=%v", updated, err)
	}
	first, err := f.service.Leaderboard(ctx, "acme")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}

	if _, err := f.service.Recompute(ctx, "acme"); err != nil {
		t.Fatalf("second recompute: %v", err)
	}
	second, err := f.service.Leaderboard(ctx, "acme")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}

	if len(first.Entries) != 1 || len(second.Entries) != 1 {
		t.Fatalf("expected single entry, got %d and %d", len(first.Entries), len(second.Entries))
	}
	if first.Entries[0].Score != second.Entries[0].Score ||
		first.Entries[0].CorrectPredictions != second.Entries[0].CorrectPredictions {
		t.Fatalf("recompute not idempotent: %+v vs %+v", first.Entries[0], second.Entries[0])
	}
	// winner exact (10) + score partial 80% of 15 (12): no bonuses.
	if first.Entries[0].Score != 22 {
		t.Fatalf("expected 22 points, got %d", first.Entries[0].Score)
	}
}

func TestBrandIsolation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(activeBrand("b1", "acme"), activeBrand("b2", "globex"))

	for _, slug := range []string{"acme", "globex"} {
		p, err := f.service.Register(ctx, slug, "Alice", "alice@example.com", "")
		if err != nil {
			t.Fatalf("register in %s: %v", slug, err)
		}
		if err := f.service.SubmitPredictions(ctx, slug, p.ID, map[string]domain.Answer{
			"winner": domain.TextAnswer("TeamA"),
		}); err != nil {
			t.Fatalf("predict in %s: %v", slug, err)
		}
	}

	// Same prediction, different official results per brand.
	if err := f.service.SubmitResults(ctx, "acme", map[string]domain.Answer{"winner": domain.TextAnswer("TeamA")}); err != nil {
		t.Fatalf("results acme: %v", err)
	}
	if err := f.service.SubmitResults(ctx, "globex", map[string]domain.Answer{"winner": domain.TextAnswer("TeamB")}); err != nil {
		t.Fatalf("results globex: %v", err)
	}
	if _, err := f.service.Recompute(ctx, "acme"); err != nil {
		t.Fatalf("recompute acme: %v", err)
	}
	if _, err := f.service.Recompute(ctx, "globex"); err != nil {
		t.Fatalf("recompute globex: %v", err)
	}

	acme, _ := f.service.Leaderboard(ctx, "acme")
	globex, _ := f.service.Leaderboard(ctx, "globex")
	if acme.Entries[0].Score != 10 {
		t.Fatalf("expected acme Alice to score 10, got %d", acme.Entries[0].Score)
	}
	if globex.Entries[0].Score != 0 {
		t.Fatalf("expected globex Alice to score 0, got %d", globex.Entries[0].Score)
	}
}

func TestPredictionLockEnforcedAtWriteTime(t *testing.T) {
	ctx := context.Background()
	brand := activeBrand("b1", "acme")
	brand.PredictionsLockAt = time.Date(2026, 2, 8, 18, 30, 0, 0, time.UTC)
	f := newFixture(brand)

	p, err := f.service.Register(ctx, "acme", "Alice", "alice@example.com", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	answers := map[string]domain.Answer{"winner": domain.TextAnswer("TeamA")}
	if err := f.service.SubmitPredictions(ctx, "acme", p.ID, answers); err != nil {
		t.Fatalf("submit before lock: %v", err)
	}

	*f.now = brand.PredictionsLockAt.Add(time.Second)
	if err := f.service.SubmitPredictions(ctx, "acme", p.ID, answers); !errors.Is(err, domain.ErrPredictionsLocked) {
		t.Fatalf("expected lock error, got %v", err)
	}
}

func TestSubmitPredictionsRejectsUnknownQuestion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(activeBrand("b1", "acme"))
	p, _ := f.service.Register(ctx, "acme", "Alice", "alice@example.com", "")

	err := f.service.SubmitPredictions(ctx, "acme", p.ID, map[string]domain.Answer{
		"no_such_question": domain.TextAnswer("x"),
	})
	if !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question error, got %v", err)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(activeBrand("b1", "acme"))

	if _, err := f.service.Register(ctx, "acme", "Alice", "alice@example.com", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := f.service.Register(ctx, "acme", "Impostor", "ALICE@Example.COM", ""); !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected duplicate email error, got %v", err)
	}
}

func TestLeaderboardTieBreaksByRegistrationOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(activeBrand("b1", "acme"))

	first, _ := f.service.Register(ctx, "acme", "Zoe", "zoe@example.com", "")
	*f.now = f.now.Add(time.Minute)
	second, _ := f.service.Register(ctx, "acme", "Adam", "adam@example.com", "")

	lb, err := f.service.Leaderboard(ctx, "acme")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if lb.Entries[0].ID != first.ID || lb.Entries[1].ID != second.ID {
		t.Fatalf("expected earlier registration to lead ties, got %+v", lb.Entries)
	}
}

// flakyPredictions simulates one participant's prediction rows being
// unreadable.
type flakyPredictions struct {
	app.PredictionRepository
	failFor string
}

func (f *flakyPredictions) GetByParticipant(ctx context.Context, brandID, participantID string) (map[string]domain.Answer, error) {
	if participantID == f.failFor {
		return nil, errors.New("corrupt prediction row")
	}
	return f.PredictionRepository.GetByParticipant(ctx, brandID, participantID)
}

// One participant's unreadable rows must not fail the whole batch.
func TestRecomputeSkipsCorruptParticipant(t *testing.T) {
	ctx := context.Background()
	store := memory.NewContestStore()
	store.AddBrand(activeBrand("b1", "acme"))
	now := time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)

	flaky := &flakyPredictions{PredictionRepository: store}
	service := app.NewContestServiceWithClock(app.Repositories{
		Brands:       store,
		Catalog:      memory.NewCatalogRepository(memory.NewStaticCatalogLoader(testCatalog), time.Minute),
		Participants: store,
		Predictions:  flaky,
		Results:      store.Results(),
	}, func() time.Time { return now })

	good, _ := service.Register(ctx, "acme", "Alice", "alice@example.com", "")
	bad, _ := service.Register(ctx, "acme", "Bob", "bob@example.com", "")
	flaky.failFor = bad.ID

	for _, id := range []string{good.ID, bad.ID} {
		if err := service.SubmitPredictions(ctx, "acme", id, map[string]domain.Answer{
			"winner": domain.TextAnswer("TeamA"),
		}); err != nil {
			t.Fatalf("predict: %v", err)
		}
	}
	if err := service.SubmitResults(ctx, "acme", map[string]domain.Answer{"winner": domain.TextAnswer("TeamA")}); err != nil {
		t.Fatalf("results: %v", err)
	}

	updated, err := service.Recompute(ctx, "acme")
	if err != nil {
		t.Fatalf("recompute must not fail the batch: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected 1 participant updated, got %d", updated)
	}

	lb, _ := service.Leaderboard(ctx, "acme")
	if lb.Entries[0].ID != good.ID || lb.Entries[0].Score != 10 {
		t.Fatalf("expected Alice scored despite Bob's corrupt rows, got %+v", lb.Entries)
	}
}

func TestSubscribeReceivesRecomputedLeaderboard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(activeBrand("b1", "acme"))

	p, _ := f.service.Register(ctx, "acme", "Alice", "alice@example.com", "")
	if err := f.service.SubmitPredictions(ctx, "acme", p.ID, map[string]domain.Answer{
		"winner": domain.TextAnswer("TeamA"),
	}); err != nil {
		t.Fatalf("predict: %v", err)
	}

	updates, cancel, err := f.service.Subscribe(ctx, "acme")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	<-updates // initial snapshot

	if err := f.service.SubmitResults(ctx, "acme", map[string]domain.Answer{"winner": domain.TextAnswer("TeamA")}); err != nil {
		t.Fatalf("results: %v", err)
	}
	if _, err := f.service.Recompute(ctx, "acme"); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	update := <-updates
	if len(update.Entries) != 1 || update.Entries[0].Score != 10 {
		t.Fatalf("expected pushed leaderboard with score 10, got %+v", update.Entries)
	}
}

func TestAuthorizeAdmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(activeBrand("b1", "acme"))

	if err := f.service.AuthorizeAdmin(ctx, "acme", "s3cret"); err != nil {
		t.Fatalf("expected secret to match: %v", err)
	}
	if err := f.service.AuthorizeAdmin(ctx, "acme", "wrong"); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	if err := f.service.AuthorizeAdmin(ctx, "nope", "s3cret"); !errors.Is(err, domain.ErrBrandNotFound) {
		t.Fatalf("expected brand error, got %v", err)
	}
}

func TestInactiveBrandRejected(t *testing.T) {
	ctx := context.Background()
	brand := activeBrand("b1", "acme")
	brand.Active = false
	f := newFixture(brand)

	if _, err := f.service.Leaderboard(ctx, "acme"); !errors.Is(err, domain.ErrBrandInactive) {
		t.Fatalf("expected inactive brand error, got %v", err)
	}
}
