package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// AnswerKind discriminates the two persisted answer shapes.
type AnswerKind int

const (
	// AnswerText covers select, free-text, and number questions. The raw
	// string is kept as entered and parsed at scoring time.
	AnswerText AnswerKind = iota
	// AnswerScore is a paired final-score answer, two sides kept as raw
	// strings (e.g. {"team1": "24", "team2": "17"}).
	AnswerScore
)

// Answer is a tagged union over the answer shapes a question can take.
// Team1/Team2 are meaningful only when Kind is AnswerScore, Text only
// otherwise. Stored data arrives untyped (a jsonb column that holds either a
// JSON string or a {team1, team2} object), so the union is re-established by
// UnmarshalJSON at the storage boundary.
type Answer struct {
	Kind  AnswerKind
	Text  string
	Team1 string
	Team2 string
}

// TextAnswer builds an answer for select, text, and number questions.
func TextAnswer(s string) Answer {
	return Answer{Kind: AnswerText, Text: s}
}

// ScoreAnswer builds a paired-score answer.
func ScoreAnswer(team1, team2 string) Answer {
	return Answer{Kind: AnswerScore, Team1: team1, Team2: team2}
}

// IsZero reports whether the answer carries no value at all. Zero answers in
// the result store mean "not yet known" and contribute nothing to any score.
func (a Answer) IsZero() bool {
	if a.Kind == AnswerScore {
		return a.Team1 == "" && a.Team2 == ""
	}
	return strings.TrimSpace(a.Text) == ""
}

type scorePayload struct {
	Team1 any `json:"team1"`
	Team2 any `json:"team2"`
}

// MarshalJSON writes the legacy column shape: a bare JSON string for text
// answers, a {team1, team2} object for score answers.
func (a Answer) MarshalJSON() ([]byte, error) {
	if a.Kind == AnswerScore {
		return json.Marshal(map[string]string{"team1": a.Team1, "team2": a.Team2})
	}
	return json.Marshal(a.Text)
}

// UnmarshalJSON accepts either persisted shape. Bare numbers and numeric
// team values are tolerated; hand-entered data has contained both.
func (a *Answer) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty answer value")
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return fmt.Errorf("decode answer string: %w", err)
		}
		*a = TextAnswer(s)
		return nil
	case '{':
		var payload scorePayload
		if err := json.Unmarshal(trimmed, &payload); err != nil {
			return fmt.Errorf("decode score answer: %w", err)
		}
		*a = ScoreAnswer(stringifyTeam(payload.Team1), stringifyTeam(payload.Team2))
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return fmt.Errorf("decode answer: %w", err)
		}
		*a = TextAnswer(n.String())
		return nil
	}
}

func stringifyTeam(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
