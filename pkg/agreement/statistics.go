package agreement

import (
	"sort"

	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/rollcall"
)

// PartyStatistics summarizes one party's stances across a set of votes.
type PartyStatistics struct {
	PartyID string `json:"-" yaml:"-"`

	// Participated counts votes on which the party had a defined stance.
	Participated   int     `json:"votes_participated" yaml:"votes_participated"`
	ForCount       int     `json:"for_count" yaml:"for_count"`
	AgainstCount   int     `json:"against_count" yaml:"against_count"`
	WinningCount   int     `json:"winning_side_count" yaml:"winning_side_count"`
	ForPercent     float64 `json:"for_percent" yaml:"for_percent"`
	WinningPercent float64 `json:"winning_side_percent" yaml:"winning_side_percent"`
}

// ComputePartyStatistics aggregates stances per party. Votes without
// ballots are ignored and parties that never took a stance are omitted.
// The winning side of a vote comes from its recorded totals.
func ComputePartyStatistics(votes []rollcall.Vote) map[string]PartyStatistics {
	stats := make(map[string]*PartyStatistics)

	for _, vote := range votes {
		if !vote.HasBallots() {
			continue
		}

		winner := vote.WinningSide()
		for _, s := range ResolveStances(vote.Ballots) {
			ps, ok := stats[s.PartyID]
			if !ok {
				ps = &PartyStatistics{PartyID: s.PartyID}
				stats[s.PartyID] = ps
			}

			ps.Participated++
			if s.Stance == rollcall.StanceFor {
				ps.ForCount++
			} else {
				ps.AgainstCount++
			}
			if s.Stance == winner {
				ps.WinningCount++
			}
		}
	}

	out := make(map[string]PartyStatistics, len(stats))
	for party, ps := range stats {
		ps.ForPercent = Percent(ps.ForCount, ps.Participated)
		ps.WinningPercent = Percent(ps.WinningCount, ps.Participated)
		out[party] = *ps
	}
	return out
}

// SortedStatistics returns the statistics ordered by party id.
func SortedStatistics(stats map[string]PartyStatistics) []PartyStatistics {
	out := make([]PartyStatistics, 0, len(stats))
	for party, ps := range stats {
		ps.PartyID = party
		out = append(out, ps)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PartyID < out[j].PartyID
	})
	return out
}
