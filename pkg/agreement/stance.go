// Package agreement computes inter-party alignment from roll-call records:
// per-vote party stances, a pairwise agreement matrix, per-party voting
// statistics and the per-session analysis built from them.
//
// Everything in this package is a pure function of its input. Malformed
// ballots are skipped, degenerate aggregates are omitted, and nothing here
// performs I/O or logs.
package agreement

import (
	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/rollcall"
)

// PartyStance is one party's stance on one vote.
type PartyStance struct {
	PartyID string
	Stance  rollcall.Stance
}

// PartyStances holds the parties with a defined stance on a vote, in the
// order each party first appears in the ballot list.
type PartyStances []PartyStance

// Get returns the stance of party, if it has one.
func (ps PartyStances) Get(party string) (rollcall.Stance, bool) {
	for _, s := range ps {
		if s.PartyID == party {
			return s.Stance, true
		}
	}
	return "", false
}

// Len returns the number of parties with a stance.
func (ps PartyStances) Len() int {
	return len(ps)
}

// Map returns the stances keyed by party.
func (ps PartyStances) Map() map[string]rollcall.Stance {
	out := make(map[string]rollcall.Stance, len(ps))
	for _, s := range ps {
		out[s.PartyID] = s.Stance
	}
	return out
}

// tally counts one party's for and against ballots on a vote.
type tally struct {
	forCount     int
	againstCount int
	otherCount   int
}

// tallyBallots counts ballots per party, skipping ballots without a valid
// party id.
// The returned order lists parties by first appearance.
func tallyBallots(ballots []rollcall.Ballot) ([]string, map[string]*tally) {
	order := make([]string, 0)
	tallies := make(map[string]*tally)

	for _, ballot := range ballots {
		if !ValidPartyID(ballot.PartyID) {
			continue
		}

		t, ok := tallies[ballot.PartyID]
		if !ok {
			t = &tally{}
			tallies[ballot.PartyID] = t
			order = append(order, ballot.PartyID)
		}

		switch ballot.Value {
		case rollcall.VoteFor:
			t.forCount++
		case rollcall.VoteAgainst:
			t.againstCount++
		default:
			t.otherCount++
		}
	}

	return order, tallies
}

// ResolveStances derives each party's stance from the ballots of one vote.
//
// A party is for when its for-ballots strictly outnumber its against-ballots,
// against in the reverse case. Ties, including parties whose members were all
// absent or abstaining, leave the party out of the result.
func ResolveStances(ballots []rollcall.Ballot) PartyStances {
	order, tallies := tallyBallots(ballots)

	stances := make(PartyStances, 0, len(order))
	for _, party := range order {
		t := tallies[party]
		switch {
		case t.forCount > t.againstCount:
			stances = append(stances, PartyStance{PartyID: party, Stance: rollcall.StanceFor})
		case t.againstCount > t.forCount:
			stances = append(stances, PartyStance{PartyID: party, Stance: rollcall.StanceAgainst})
		}
	}

	return stances
}
