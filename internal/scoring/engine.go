// Package scoring implements the contest scoring rules: base points scaled by
// question difficulty, banded partial credit for paired-score predictions,
// and category/all-perfect bonuses. Everything here is a pure computation
// over already-loaded data; I/O happens in the caller.
package scoring

import (
	"math"
	"strconv"
	"strings"

	"quiniela-service/internal/domain"
)

const (
	basePoints           = 10.0
	categoryPerfectBonus = 15.0
	allPerfectBonus      = 50.0
)

var difficultyMultipliers = map[domain.Difficulty]float64{
	domain.DifficultyEasy:   1.0,
	domain.DifficultyMedium: 1.5,
	domain.DifficultyHard:   2.0,
}

// scoreBands award partial credit for paired-score predictions that name the
// right winner, by total absolute error across both sides. Evaluated in
// order; the first band that fits wins.
var scoreBands = []struct {
	maxDiff  int
	fraction float64
}{
	{maxDiff: 2, fraction: 0.8},
	{maxDiff: 6, fraction: 0.6},
	{maxDiff: 14, fraction: 0.3},
}

type categoryTally struct {
	score   float64
	correct int
	total   int
}

// Score computes one participant's standing from their predictions, the
// question catalog, and the brand's official results. Questions without a
// result contribute nothing. Malformed or missing predictions are
// non-matches, never errors: one bad value must not blank out the rest.
// Point totals accumulate as reals and are rounded once at the end.
func Score(questions []domain.Question, predictions, results map[string]domain.Answer) domain.ScoreSummary {
	if len(predictions) == 0 {
		return domain.ScoreSummary{CategoryScores: map[string]int{}}
	}

	var total float64
	correct := 0
	tallies := make(map[string]*categoryTally)

	for _, q := range questions {
		tally := tallies[q.Category]
		if tally == nil {
			tally = &categoryTally{}
			tallies[q.Category] = tally
		}
		tally.total++

		actual, ok := results[q.Key]
		if !ok || actual.IsZero() {
			continue
		}

		points := basePoints * multiplierFor(q.Difficulty)
		prediction, ok := predictions[q.Key]
		if !ok {
			continue
		}

		if q.Type == domain.QuestionScore {
			awarded, exact := scorePair(prediction, actual, points)
			total += awarded
			tally.score += awarded
			if exact {
				correct++
				tally.correct++
			}
			continue
		}

		if matches(prediction, actual, q.Type) {
			total += points
			tally.score += points
			correct++
			tally.correct++
		}
	}

	categoryScores := make(map[string]int, len(tallies))
	for category, tally := range tallies {
		if tally.total > 0 && tally.correct == tally.total {
			total += categoryPerfectBonus
			tally.score += categoryPerfectBonus
		}
		categoryScores[category] = int(math.Round(tally.score))
	}

	if len(questions) > 0 && correct == len(questions) {
		total += allPerfectBonus
	}

	return domain.ScoreSummary{
		Score:              int(math.Round(total)),
		CorrectPredictions: correct,
		CategoryScores:     categoryScores,
	}
}

// Exact reports whether a prediction matches the result exactly under the
// question's comparison rule, i.e. whether it would count as fully correct.
func Exact(q domain.Question, prediction, actual domain.Answer) bool {
	if actual.IsZero() {
		return false
	}
	if q.Type == domain.QuestionScore {
		_, exact := scorePair(prediction, actual, basePoints)
		return exact
	}
	return matches(prediction, actual, q.Type)
}

func multiplierFor(d domain.Difficulty) float64 {
	if m, ok := difficultyMultipliers[d]; ok {
		return m
	}
	return 1
}

// scorePair awards full points for an exact match on both sides, banded
// partial credit when the predicted winner is right, and nothing when it is
// wrong, regardless of numeric closeness.
func scorePair(prediction, actual domain.Answer, points float64) (awarded float64, exact bool) {
	if prediction.Kind != domain.AnswerScore || actual.Kind != domain.AnswerScore {
		return 0, false
	}

	p1, p2 := intOrZero(prediction.Team1), intOrZero(prediction.Team2)
	a1, a2 := intOrZero(actual.Team1), intOrZero(actual.Team2)

	if p1 == a1 && p2 == a2 {
		return points, true
	}
	if winner(p1, p2) != winner(a1, a2) {
		return 0, false
	}

	diff := abs(p1-a1) + abs(p2-a2)
	for _, band := range scoreBands {
		if diff <= band.maxDiff {
			return points * band.fraction, false
		}
	}
	return 0, false
}

func matches(prediction, actual domain.Answer, qt domain.QuestionType) bool {
	if prediction.Kind != domain.AnswerText || actual.Kind != domain.AnswerText {
		return false
	}
	if qt == domain.QuestionNumber {
		return intOrZero(prediction.Text) == intOrZero(actual.Text)
	}
	return strings.EqualFold(strings.TrimSpace(prediction.Text), strings.TrimSpace(actual.Text))
}

func winner(team1, team2 int) string {
	switch {
	case team1 > team2:
		return "team1"
	case team1 < team2:
		return "team2"
	default:
		return "tie"
	}
}

func intOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
