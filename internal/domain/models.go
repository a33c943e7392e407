package domain

import "time"

// Brand is the tenant boundary. Every participant, prediction, and result
// belongs to exactly one brand; there is no cross-brand visibility.
type Brand struct {
	ID          string
	Slug        string
	Name        string
	AdminSecret string
	// PredictionsLockAt is the cutover after which predictions become
	// immutable. Zero means the brand never locks.
	PredictionsLockAt time.Time
	Active            bool
}

// Locked reports whether predictions are closed at the given instant.
func (b Brand) Locked(now time.Time) bool {
	return !b.PredictionsLockAt.IsZero() && !now.Before(b.PredictionsLockAt)
}

// QuestionType selects the answer shape and the comparison rule at scoring time.
type QuestionType string

const (
	QuestionSelect QuestionType = "select"
	QuestionText   QuestionType = "text"
	QuestionNumber QuestionType = "number"
	QuestionScore  QuestionType = "score"
)

// Difficulty scales a question's base points.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Question is global, shared by all brands, and referenced by Key from
// predictions and results. Keys are never reused.
type Question struct {
	Key        string       `json:"id"`
	Category   string       `json:"category"`
	Text       string       `json:"text"`
	Type       QuestionType `json:"type"`
	Options    []string     `json:"options,omitempty"`
	Difficulty Difficulty   `json:"difficulty"`
	SortOrder  int          `json:"-"`
	Active     bool         `json:"-"`
}

// Participant belongs to one brand. Score, CorrectPredictions, and
// CategoryScores are derived fields owned by the scoring engine; they are
// stale between a result change and the next recompute.
type Participant struct {
	ID                 string
	BrandID            string
	Name               string
	Email              string
	Avatar             string
	Score              int
	CorrectPredictions int
	CategoryScores     map[string]int
	CreatedAt          time.Time
}

// ScoreSummary is the scoring engine's output, persisted onto a participant.
type ScoreSummary struct {
	Score              int            `json:"score"`
	CorrectPredictions int            `json:"correctPredictions"`
	CategoryScores     map[string]int `json:"categoryScores"`
}

// LeaderboardEntry is the public view of a participant. Emails and raw
// predictions are never exposed here.
type LeaderboardEntry struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Avatar             string         `json:"avatar"`
	Score              int            `json:"score"`
	CorrectPredictions int            `json:"correctPredictions"`
	CategoryScores     map[string]int `json:"categoryScores"`
}

// Leaderboard captures the ordered standings for one brand.
type Leaderboard struct {
	BrandSlug string             `json:"brandSlug"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// PredictionCheck reports how one stored prediction compares to the official
// result, for the admin transparency view.
type PredictionCheck struct {
	QuestionKey string `json:"questionKey"`
	Correct     bool   `json:"correct"`
	Prediction  Answer `json:"prediction"`
	Actual      Answer `json:"actual"`
}
