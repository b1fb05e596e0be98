package timezone

import (
	"iter"
	"time"
)

// Day is one cell of a calendar month grid.
type Day struct {
	// Date is local midnight of the day in the grid's zone.
	Date    time.Time `json:"date"`
	InMonth bool      `json:"in_month"`
	IsToday bool      `json:"is_today"`
}

// Grid covers the full Sunday-start weeks spanning one month in one zone.
// It is immutable; All may be ranged over any number of times.
type Grid struct {
	loc   *time.Location
	month time.Month
	year  int
	first time.Time // local midnight of the first Sunday shown
	days  int
	today time.Time // local midnight of "now" in loc
}

// MonthGrid builds the grid for the month containing anchor, as seen in the
// zone. now decides which cell is today.
func MonthGrid(anchor time.Time, zoneID string, now time.Time) (Grid, error) {
	loc, err := Load(zoneID)
	if err != nil {
		return Grid{}, err
	}
	a := anchor.In(loc)
	y, m, _ := a.Date()

	monthStart := time.Date(y, m, 1, 0, 0, 0, 0, loc)
	lastDay := time.Date(y, m+1, 0, 0, 0, 0, 0, loc)

	lead := int(monthStart.Weekday())
	trail := 6 - int(lastDay.Weekday())

	n := now.In(loc)
	ny, nm, nd := n.Date()

	return Grid{
		loc:   loc,
		month: m,
		year:  y,
		first: time.Date(y, m, 1-lead, 0, 0, 0, 0, loc),
		days:  lead + lastDay.Day() + trail,
		today: time.Date(ny, nm, nd, 0, 0, 0, 0, loc),
	}, nil
}

// Len is the number of cells, always a multiple of 7.
func (g Grid) Len() int { return g.days }

// Month returns the anchor month and year.
func (g Grid) Month() (int, time.Month) { return g.year, g.month }

// Location is the zone the grid was built in.
func (g Grid) Location() *time.Location { return g.loc }

// All yields every cell in order. Cells are computed on demand.
func (g Grid) All() iter.Seq[Day] {
	return func(yield func(Day) bool) {
		y, m, d := g.first.Date()
		for i := 0; i < g.days; i++ {
			// time.Date per cell rather than adding 24h keeps midnight stable
			// across DST transitions.
			date := time.Date(y, m, d+i, 0, 0, 0, 0, g.loc)
			day := Day{
				Date:    date,
				InMonth: date.Month() == g.month && date.Year() == g.year,
				IsToday: date.Equal(g.today),
			}
			if !yield(day) {
				return
			}
		}
	}
}

// Days collects All into a slice.
func (g Grid) Days() []Day {
	out := make([]Day, 0, g.days)
	for d := range g.All() {
		out = append(out, d)
	}
	return out
}
