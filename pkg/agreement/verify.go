package agreement

import (
	"sort"

	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/rollcall"
)

// TallyPosition is the outcome of a party's ballot count on one vote,
// including the outcomes that yield no stance.
type TallyPosition string

const (
	PositionFor     TallyPosition = "for"
	PositionAgainst TallyPosition = "against"
	PositionSplit   TallyPosition = "split"
	PositionAbsent  TallyPosition = "absent"
)

// PartyTally shows how one party's ballots on a vote resolved.
type PartyTally struct {
	PartyID  string        `json:"party_id" yaml:"party_id"`
	For      int           `json:"for" yaml:"for"`
	Against  int           `json:"against" yaml:"against"`
	Other    int           `json:"other" yaml:"other"`
	Position TallyPosition `json:"position" yaml:"position"`
}

// HasStance reports whether the tally produced a stance.
func (t PartyTally) HasStance() bool {
	return t.Position == PositionFor || t.Position == PositionAgainst
}

// ExplainVote returns every party's ballot tally on the vote, sorted by
// party id. Parties whose tally yields no stance are included and marked
// split or absent.
func ExplainVote(vote rollcall.Vote) []PartyTally {
	order, tallies := tallyBallots(vote.Ballots)

	out := make([]PartyTally, 0, len(order))
	for _, party := range order {
		t := tallies[party]
		pt := PartyTally{
			PartyID: party,
			For:     t.forCount,
			Against: t.againstCount,
			Other:   t.otherCount,
		}
		switch {
		case t.forCount == 0 && t.againstCount == 0:
			pt.Position = PositionAbsent
		case t.forCount > t.againstCount:
			pt.Position = PositionFor
		case t.againstCount > t.forCount:
			pt.Position = PositionAgainst
		default:
			pt.Position = PositionSplit
		}
		out = append(out, pt)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].PartyID < out[j].PartyID
	})
	return out
}

// maxTopicLength bounds the topic text carried in pair examples.
const maxTopicLength = 50

// PairExample is one vote on which both parties of a pair took a stance.
type PairExample struct {
	VoteID  string          `json:"vote_id" yaml:"vote_id"`
	Topic   string          `json:"topic" yaml:"topic"`
	StanceA rollcall.Stance `json:"stance_a" yaml:"stance_a"`
	StanceB rollcall.Stance `json:"stance_b" yaml:"stance_b"`
}

// PairVerification recomputes the agreement of two parties vote by vote.
type PairVerification struct {
	PartyA   string `json:"party_a" yaml:"party_a"`
	PartyB   string `json:"party_b" yaml:"party_b"`
	Agree    int    `json:"agree_count" yaml:"agree_count"`
	Disagree int    `json:"disagree_count" yaml:"disagree_count"`
	Total    int    `json:"total" yaml:"total"`
	// Percent is nil when the parties never both took a stance.
	Percent          *float64      `json:"agreement_percent" yaml:"agreement_percent"`
	AgreeExamples    []PairExample `json:"agree_examples" yaml:"agree_examples"`
	DisagreeExamples []PairExample `json:"disagree_examples" yaml:"disagree_examples"`
}

// VerifyPair recounts the agreement between a and b over votes, keeping up
// to maxExamples votes of each kind. The counts match the matrix record for
// the same pair and votes.
func VerifyPair(a, b string, votes []rollcall.Vote, maxExamples int) PairVerification {
	v := PairVerification{
		PartyA:           a,
		PartyB:           b,
		AgreeExamples:    make([]PairExample, 0),
		DisagreeExamples: make([]PairExample, 0),
	}

	for _, vote := range votes {
		stances := ResolveStances(vote.Ballots)
		sa, okA := stances.Get(a)
		sb, okB := stances.Get(b)
		if !okA || !okB {
			continue
		}

		example := PairExample{
			VoteID:  vote.ID,
			Topic:   truncateRunes(vote.Topic, maxTopicLength),
			StanceA: sa,
			StanceB: sb,
		}

		v.Total++
		if sa == sb {
			v.Agree++
			if len(v.AgreeExamples) < maxExamples {
				v.AgreeExamples = append(v.AgreeExamples, example)
			}
		} else {
			v.Disagree++
			if len(v.DisagreeExamples) < maxExamples {
				v.DisagreeExamples = append(v.DisagreeExamples, example)
			}
		}
	}

	if v.Total > 0 {
		pct := Percent(v.Agree, v.Total)
		v.Percent = &pct
	}
	return v
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// SpotCheck compares a pair's stored percentage with one recounted from
// the raw votes.
type SpotCheck struct {
	Pair       PartyPair `json:"pair" yaml:"pair"`
	Stored     float64   `json:"stored_percent" yaml:"stored_percent"`
	Recomputed *float64  `json:"recomputed_percent" yaml:"recomputed_percent"`
	Match      bool      `json:"match" yaml:"match"`
}

// SpotCheckPairs recounts each of the given pairs from votes and compares
// the result with the analysis. Pairs absent from the analysis are skipped.
func SpotCheckPairs(analysis *SessionAnalysis, votes []rollcall.Vote, pairs []PartyPair) []SpotCheck {
	checks := make([]SpotCheck, 0, len(pairs))
	for _, pair := range pairs {
		stored, ok := analysis.Percent(pair.A, pair.B)
		if !ok {
			continue
		}
		v := VerifyPair(pair.A, pair.B, votes, 0)
		checks = append(checks, SpotCheck{
			Pair:       pair,
			Stored:     stored,
			Recomputed: v.Percent,
			Match:      v.Percent != nil && *v.Percent == stored,
		})
	}
	return checks
}
