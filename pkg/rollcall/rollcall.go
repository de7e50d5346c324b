// Package rollcall defines the normalized roll-call records consumed by the
// agreement analysis: ballots, votes and the closed set of ballot values.
package rollcall

import (
	"strconv"
	"strings"
	"time"
)

// VoteValue is the value of one representative's ballot.
type VoteValue string

const (
	VoteFor     VoteValue = "for"
	VoteAgainst VoteValue = "against"
	VoteAbsent  VoteValue = "absent"
	VoteAbstain VoteValue = "abstain"
	VoteNotCast VoteValue = "not_cast"
)

// NormalizeCode converts a numeric source code (1-5) to a VoteValue.
// Codes outside that range are not resolvable.
func NormalizeCode(code int) (VoteValue, bool) {
	switch code {
	case 1:
		return VoteFor, true
	case 2:
		return VoteAgainst, true
	case 3:
		return VoteAbsent, true
	case 4:
		return VoteAbstain, true
	case 5:
		return VoteNotCast, true
	default:
		return "", false
	}
}

// ParseVoteValue converts a textual ballot value to a VoteValue. It accepts
// the enumeration names, the upstream Norwegian names and numeric strings.
func ParseVoteValue(s string) (VoteValue, bool) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, " ", "_")

	if code, err := strconv.Atoi(normalized); err == nil {
		return NormalizeCode(code)
	}

	switch normalized {
	case "for":
		return VoteFor, true
	case "against", "mot":
		return VoteAgainst, true
	case "absent", "ikke_tilstede":
		return VoteAbsent, true
	case "abstain", "avstar", "avstår":
		return VoteAbstain, true
	case "not_cast", "ikke_avgitt", "ikke_avgitt_stemme":
		return VoteNotCast, true
	default:
		return "", false
	}
}

// Valid reports whether v is one of the five defined values.
func (v VoteValue) Valid() bool {
	switch v {
	case VoteFor, VoteAgainst, VoteAbsent, VoteAbstain, VoteNotCast:
		return true
	}
	return false
}

// String returns the string representation of a VoteValue.
func (v VoteValue) String() string {
	return string(v)
}

// Stance is a party's inferred position on a single vote.
type Stance string

const (
	StanceFor     Stance = "for"
	StanceAgainst Stance = "against"
)

// String returns the string representation of a Stance.
func (s Stance) String() string {
	return string(s)
}

// Party is a party registered for a session.
type Party struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Ballot is one representative's recorded value in one roll call.
type Ballot struct {
	RepresentativeID string    `json:"representative_id,omitempty" yaml:"representative_id,omitempty"`
	PartyID          string    `json:"party_id" yaml:"party_id"`
	Value            VoteValue `json:"value" yaml:"value"`
}

// Vote is one roll-call event with its recorded totals and ballots.
//
// RecordedFor and RecordedAgainst come from the source record and decide the
// winning side independently of any stance derived from Ballots.
type Vote struct {
	ID              string    `json:"vote_id" yaml:"vote_id"`
	CaseID          string    `json:"case_id" yaml:"case_id"`
	CaseTitle       string    `json:"case_title,omitempty" yaml:"case_title,omitempty"`
	Topic           string    `json:"topic" yaml:"topic"`
	Date            time.Time `json:"date" yaml:"date"`
	RecordedFor     int       `json:"recorded_for" yaml:"recorded_for"`
	RecordedAgainst int       `json:"recorded_against" yaml:"recorded_against"`
	Adopted         bool      `json:"outcome" yaml:"outcome"`
	Ballots         []Ballot  `json:"ballots" yaml:"ballots"`
}

// WinningSide returns the side implied by the recorded totals: for when
// recorded-for exceeds recorded-against, against otherwise.
func (v Vote) WinningSide() Stance {
	if v.RecordedFor > v.RecordedAgainst {
		return StanceFor
	}
	return StanceAgainst
}

// HasBallots reports whether the vote carries any ballots.
func (v Vote) HasBallots() bool {
	return len(v.Ballots) > 0
}

// SessionRecords is the set of votes successfully collected for one session.
type SessionRecords struct {
	SessionID string `json:"session_id" yaml:"session_id"`
	// CaseCount is the number of cases listed upstream for the session.
	CaseCount int    `json:"case_count" yaml:"case_count"`
	Votes     []Vote `json:"votes" yaml:"votes"`
}

// FindVote returns the vote with the given id.
func (r *SessionRecords) FindVote(voteID string) (Vote, bool) {
	for _, vote := range r.Votes {
		if vote.ID == voteID {
			return vote, true
		}
	}
	return Vote{}, false
}

// WithBallots returns the votes that carry at least one ballot.
func (r *SessionRecords) WithBallots() []Vote {
	out := make([]Vote, 0, len(r.Votes))
	for _, vote := range r.Votes {
		if vote.HasBallots() {
			out = append(out, vote)
		}
	}
	return out
}
