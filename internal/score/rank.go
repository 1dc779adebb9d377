// apps/go-server/internal/score/rank.go
//
// Leaderboard ordering. Rows are compared on their normalized score in the
// game's direction; rows without a parseable score always sink below rows
// that have one, and equal scores fall back to username order so the
// result is identical for identical input.

package score

import (
	"sort"
	"strconv"
)

// RankedRow is a PlayerScoreRow placed on a leaderboard.
type RankedRow struct {
	Rank     int      `json:"rank"`
	Username string   `json:"username"`
	Score    *float64 `json:"score"`
	Display  string   `json:"display"`
}

type keyed struct {
	username string
	value    float64
	ok       bool
}

// Rank orders rows best-first for kind k. Empty input yields an empty,
// non-nil slice.
func Rank(rows []PlayerScoreRow, k Kind) []RankedRow {
	keys := make([]keyed, len(rows))
	for i, r := range rows {
		v, ok := Normalize(r.Score(k))
		keys[i] = keyed{username: r.Username, value: v, ok: ok}
	}

	dir := k.Direction()
	sort.SliceStable(keys, func(i, j int) bool {
		return less(keys[i], keys[j], dir)
	})

	out := make([]RankedRow, len(keys))
	for i, kv := range keys {
		rr := RankedRow{Rank: i + 1, Username: kv.username, Display: Display(k, kv.value, kv.ok)}
		if kv.ok {
			v := kv.value
			rr.Score = &v
		}
		out[i] = rr
	}
	return out
}

func less(a, b keyed, dir Direction) bool {
	if a.ok != b.ok {
		return a.ok
	}
	if a.ok && a.value != b.value {
		if dir == HigherIsBetter {
			return a.value > b.value
		}
		return a.value < b.value
	}
	return a.username < b.username
}

// Display formats a normalized value for k: clock time for time-based
// games, a plain number otherwise, and "-" when there is no data.
func Display(k Kind, v float64, ok bool) string {
	if !ok {
		return "-"
	}
	if k.TimeBased() && v >= 0 && v == float64(int(v)) {
		return FormatClock(int(v))
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
