package score

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// PlayerScoreRow is one leaderboard entry as served by the score backend.
// The backend spreads best values over one field per game; Scores keeps
// them in a single map keyed by Kind. A missing key means "never played".
type PlayerScoreRow struct {
	Username string
	Scores   map[Kind]any
}

// Score returns the raw best value for k, or nil.
func (r PlayerScoreRow) Score(k Kind) any {
	if r.Scores == nil {
		return nil
	}
	return r.Scores[k]
}

// UnmarshalJSON reads the backend shape:
// {"username": "...", "emojiGameHighScore": 31, "cardFlipGameHighScore": "1:05", ...}.
func (r *PlayerScoreRow) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decode score row: %w", err)
	}
	r.Username = ""
	r.Scores = make(map[Kind]any, len(kinds))
	for key, v := range raw {
		if key == "username" {
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("decode score row: username is %T", v)
			}
			r.Username = s
			continue
		}
		if k, ok := kindForField(key); ok && v != nil {
			r.Scores[k] = v
		}
	}
	return nil
}

// MarshalJSON writes the backend shape back out, omitting unplayed games.
func (r PlayerScoreRow) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Scores)+1)
	out["username"] = r.Username
	for k, v := range r.Scores {
		if v != nil && k.Valid() {
			out[k.Field()] = v
		}
	}
	return json.Marshal(out)
}

// UserScores is the data payload of GET /users/{username}.
type UserScores struct {
	Scores map[Kind]any
}

// UnmarshalJSON accepts the four optional backend fields; unknown keys are ignored.
func (u *UserScores) UnmarshalJSON(b []byte) error {
	var row PlayerScoreRow
	if err := row.UnmarshalJSON(b); err != nil {
		return err
	}
	u.Scores = row.Scores
	return nil
}

// Best returns the normalized best value for k.
func (u UserScores) Best(k Kind) (float64, bool) {
	if u.Scores == nil {
		return 0, false
	}
	return Normalize(u.Scores[k])
}
