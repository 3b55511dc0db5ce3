package analysis

import (
	"fmt"

	"github.com/mp3fbf/finance-analyzer/internal/model"
)

const (
	dominantDayShare = 0.5
	monthHalfShare   = 0.7
	earlyMonthEnd    = 10
	lateMonthStart   = 21
)

// Temporal pattern descriptions.
const (
	PatternEarlyMonth  = "concentrated early in the month (days 1-10)"
	PatternLateMonth   = "concentrated late in the month (days 21-31)"
	PatternDistributed = "distributed throughout the month"
	PatternNone        = "no occurrences"
)

func temporalPattern(group []model.Transaction) model.TemporalPattern {
	var p model.TemporalPattern
	if len(group) == 0 {
		p.Description = PatternNone
		return p
	}

	for _, txn := range group {
		p.DayOfMonth[txn.Date.Day()-1]++
		p.DayOfWeek[int(txn.Date.Weekday())]++
	}

	n := float64(len(group))

	bestDay, bestCount := 0, 0
	for i, c := range p.DayOfMonth {
		if c > bestCount {
			bestDay, bestCount = i+1, c
		}
	}
	if share := float64(bestCount) / n; share > dominantDayShare {
		day := bestDay
		p.DominantDay = &day
		p.Description = fmt.Sprintf("concentrated on day %d of the month (%.0f%% of occurrences)", day, share*100)
		return p
	}

	var early, late int
	for i, c := range p.DayOfMonth {
		day := i + 1
		switch {
		case day <= earlyMonthEnd:
			early += c
		case day >= lateMonthStart:
			late += c
		}
	}

	switch {
	case float64(early)/n > monthHalfShare:
		p.Description = PatternEarlyMonth
	case float64(late)/n > monthHalfShare:
		p.Description = PatternLateMonth
	default:
		p.Description = PatternDistributed
	}
	return p
}
