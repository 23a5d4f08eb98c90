// Package coverage computes the per-day data-completeness rollup over the
// three derived series.
package coverage

import (
	"context"
	"math"
	"sort"

	"example.com/insights/internal/domain"
)

// Store exposes the per-day row counts and rollups the aggregator reads.
type Store interface {
	WindowActivityCountsByDay(ctx context.Context) (map[string]int, error)
	UserInputCountsByDay(ctx context.Context) (map[string]int, error)
	SessionCountsByDay(ctx context.Context) (map[string]int, error)
	FocusTimeByDay(ctx context.Context, fromDay, toDay string) ([]FocusTime, error)
}

// FocusTime is the summed foreground time for one activity class on one day.
type FocusTime struct {
	Day          string `json:"day"`
	Activity     string `json:"activity"`
	TotalSeconds int    `json:"total_seconds"`
}

// Aggregator merges the three series into coverage scores.
type Aggregator struct {
	store Store
}

// New constructs an Aggregator.
func New(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// Compute returns one score per calendar day that has at least one underlying
// record, sorted by descending score. Sessions are weighted 10x: they are
// rarer, higher-value signals of coverage than individual raw events. Days
// are pre-sorted before the stable score sort, so tie order is deterministic
// within one invocation.
func (a *Aggregator) Compute(ctx context.Context) ([]domain.CoverageScore, error) {
	windowActivity, err := a.store.WindowActivityCountsByDay(ctx)
	if err != nil {
		return nil, err
	}
	userInput, err := a.store.UserInputCountsByDay(ctx)
	if err != nil {
		return nil, err
	}
	sessions, err := a.store.SessionCountsByDay(ctx)
	if err != nil {
		return nil, err
	}

	days := make(map[string]struct{})
	for day := range windowActivity {
		days[day] = struct{}{}
	}
	for day := range userInput {
		days[day] = struct{}{}
	}
	for day := range sessions {
		days[day] = struct{}{}
	}

	ordered := make([]string, 0, len(days))
	for day := range days {
		ordered = append(ordered, day)
	}
	sort.Strings(ordered)

	scores := make([]domain.CoverageScore, 0, len(ordered))
	for _, day := range ordered {
		raw := float64(windowActivity[day]+userInput[day]+sessions[day]*10) / 100
		scores = append(scores, domain.CoverageScore{
			Day:   day,
			Score: int(math.Round(raw)),
		})
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})
	return scores, nil
}

// FocusTime returns the per-day foreground-time rollup for the inclusive day
// range. Empty bounds mean unbounded.
func (a *Aggregator) FocusTime(ctx context.Context, fromDay, toDay string) ([]FocusTime, error) {
	return a.store.FocusTimeByDay(ctx, fromDay, toDay)
}
