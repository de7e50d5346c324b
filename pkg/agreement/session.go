package agreement

import (
	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/errors"
	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/rollcall"
)

// DefaultTopN is the length of the most and least agreeing lists.
const DefaultTopN = 10

// Options control AnalyzeSession.
type Options struct {
	// TopN bounds the most and least agreeing lists.
	TopN int
}

// DefaultOptions returns the standard analysis options.
func DefaultOptions() Options {
	return Options{TopN: DefaultTopN}
}

// SessionAnalysis is the per-session aggregate. It contains no run-specific
// data, so analysing the same records twice gives identical output.
type SessionAnalysis struct {
	SessionID  string                        `json:"session_id" yaml:"session_id"`
	VoteCount  int                           `json:"vote_count" yaml:"vote_count"`
	PartyCount int                           `json:"party_count" yaml:"party_count"`
	Matrix     map[string]map[string]float64 `json:"agreement_matrix" yaml:"agreement_matrix"`
	Top        []PairRecord                  `json:"top_10_agreeing" yaml:"top_10_agreeing"`
	Bottom     []PairRecord                  `json:"bottom_10_agreeing" yaml:"bottom_10_agreeing"`
	Statistics map[string]PartyStatistics    `json:"party_statistics" yaml:"party_statistics"`
	AllPairs   []PairRecord                  `json:"all_pairs" yaml:"all_pairs"`
}

// AnalyzeSession builds the matrix, rankings and party statistics for one
// session. Only votes carrying ballots count. A session with no such votes
// returns an error matching errors.ErrNoVotes.
func AnalyzeSession(sessionID string, votes []rollcall.Vote, opts Options) (*SessionAnalysis, error) {
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}

	withBallots := make([]rollcall.Vote, 0, len(votes))
	for _, vote := range votes {
		if vote.HasBallots() {
			withBallots = append(withBallots, vote)
		}
	}
	if len(withBallots) == 0 {
		return nil, errors.Wrapf(errors.ErrNoVotes, "session %s", sessionID)
	}

	report := BuildMatrix(withBallots)
	stats := ComputePartyStatistics(withBallots)

	return &SessionAnalysis{
		SessionID:  sessionID,
		VoteCount:  len(withBallots),
		PartyCount: len(stats),
		Matrix:     report.Matrix,
		Top:        report.MostAgreeing(opts.TopN),
		Bottom:     report.LeastAgreeing(opts.TopN),
		Statistics: stats,
		AllPairs:   report.Ranked(),
	}, nil
}

// RestorePartyIDs sets PartyID on every statistics entry from its map key.
// The id is not part of the encoded form, so loaders call this after
// decoding.
func (a *SessionAnalysis) RestorePartyIDs() {
	for party, ps := range a.Statistics {
		ps.PartyID = party
		a.Statistics[party] = ps
	}
}

// Report rebuilds the matrix report from the analysis, with pairs in
// ranked order.
func (a *SessionAnalysis) Report() *Report {
	return &Report{
		Matrix:    a.Matrix,
		Records:   a.AllPairs,
		VoteCount: a.VoteCount,
	}
}

// Percent returns the agreement percentage recorded for a and b.
func (a *SessionAnalysis) Percent(x, y string) (float64, bool) {
	return a.Report().Lookup(x, y)
}
