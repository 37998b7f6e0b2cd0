package dbview

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	DefaultCardWidth = 30
	galleryFields    = 4
)

// Gallery renders rows as a wrapping grid of cards.
type Gallery struct {
	Collapsed CollapseSet
	CardWidth int
}

func NewGallery() *Gallery {
	return &Gallery{Collapsed: CollapseSet{}, CardWidth: DefaultCardWidth}
}

func (g *Gallery) Mode() ViewMode { return ViewGallery }

// Columns is the number of cards per grid row for a terminal width.
func (g *Gallery) Columns(width int) int {
	cw := g.CardWidth
	if cw <= 0 {
		cw = DefaultCardWidth
	}
	if width <= 0 {
		return 3
	}
	if n := width / cw; n > 1 {
		return n
	}
	return 1
}

// Sections returns the cards of f, grouped when grouping is on. Each card
// carries the title and up to four other non-empty fields.
func (g *Gallery) Sections(f Frame) []CardSection {
	return cardSections(f, g.Collapsed, func(r Row) Card {
		return newCard(r, f, galleryFields, nil)
	})
}

func (g *Gallery) Render(f Frame) string {
	if len(f.Rows) == 0 {
		return dimStyle.Render("No rows")
	}
	cw := g.CardWidth
	if cw <= 0 {
		cw = DefaultCardWidth
	}
	per := g.Columns(f.Width)

	var blocks []string
	for _, s := range g.Sections(f) {
		if s.Label != "" {
			blocks = append(blocks, groupHeader(Group{Label: s.Label, Color: s.Color, Rows: make([]Row, len(s.Cards))}, s.Collapsed))
			if s.Collapsed {
				continue
			}
		}
		for i := 0; i < len(s.Cards); i += per {
			end := i + per
			if end > len(s.Cards) {
				end = len(s.Cards)
			}
			row := make([]string, 0, per)
			for _, c := range s.Cards[i:end] {
				row = append(row, renderCard(c, cw, c.RowID == f.Cursor.RowID, true))
			}
			blocks = append(blocks, lipgloss.JoinHorizontal(lipgloss.Top, row...))
		}
	}
	return strings.Join(blocks, "\n")
}
