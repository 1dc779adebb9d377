package leaderboard

import (
	"context"

	"github.com/robalobadob/minigames/apps/go-server/internal/score"
)

// Board is one game's ranking inside an All result.
type Board struct {
	Game  score.Kind        `json:"game"`
	Title string            `json:"title"`
	Rows  []score.RankedRow `json:"rows"`
}

// All fetches every player's row once and ranks it for each game, in
// home-screen order.
func All(ctx context.Context, src Source) ([]Board, error) {
	rows, err := src.Leaderboard(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Board, 0, len(score.Kinds()))
	for _, k := range score.Kinds() {
		out = append(out, Board{Game: k, Title: k.Title(), Rows: score.Rank(rows, k)})
	}
	return out, nil
}
