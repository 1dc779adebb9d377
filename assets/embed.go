package assets

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/goccy/go-json"
)

//go:embed catalog.json
var catalogJSON []byte

//go:embed sql/*.sql
var migrations embed.FS

// Item is a single picture used by a game deck.
type Item struct {
	ID    string `json:"id"`
	Image string `json:"image"`
}

// GameEntry is one tile of the home list with its rules page.
type GameEntry struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Path  string   `json:"path"`
	Rules []string `json:"rules"`
}

// Catalog is the static content shipped with the server.
type Catalog struct {
	Games []GameEntry `json:"games"`
	Emoji []Item      `json:"emoji"`
	Cards []Item      `json:"cards"`
}

// LoadCatalog parses the embedded catalog.
func LoadCatalog() (*Catalog, error) {
	var c Catalog
	if err := json.Unmarshal(catalogJSON, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(c.Emoji) == 0 || len(c.Cards) == 0 {
		return nil, fmt.Errorf("catalog: empty deck")
	}
	return &c, nil
}

// Migrations exposes the dev score backend's SQL files rooted at "sql".
func Migrations() fs.FS {
	sub, err := fs.Sub(migrations, "sql")
	if err != nil {
		panic(err)
	}
	return sub
}
