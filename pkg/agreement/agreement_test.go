package agreement

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/errors"
	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/rollcall"
)

// ballots returns n ballots for party with the given value.
func ballots(party string, value rollcall.VoteValue, n int) []rollcall.Ballot {
	out := make([]rollcall.Ballot, n)
	for i := range out {
		out[i] = rollcall.Ballot{PartyID: party, Value: value}
	}
	return out
}

// vote builds a vote where each party votes as a bloc.
func vote(id string, stances map[string]rollcall.VoteValue, order ...string) rollcall.Vote {
	v := rollcall.Vote{ID: id, Topic: "Sak " + id, RecordedFor: 60, RecordedAgainst: 40}
	for _, party := range order {
		v.Ballots = append(v.Ballots, ballots(party, stances[party], 2)...)
	}
	return v
}

func TestResolveStances_Majority(t *testing.T) {
	b := append(ballots("A", rollcall.VoteFor, 25), ballots("A", rollcall.VoteAgainst, 3)...)
	b = append(b, ballots("H", rollcall.VoteAgainst, 10)...)

	stances := ResolveStances(b)
	require.Equal(t, 2, stances.Len())

	s, ok := stances.Get("A")
	require.True(t, ok)
	assert.Equal(t, rollcall.StanceFor, s)

	s, ok = stances.Get("H")
	require.True(t, ok)
	assert.Equal(t, rollcall.StanceAgainst, s)
}

func TestResolveStances_TiesAndAbsenceOmitted(t *testing.T) {
	b := append(ballots("SV", rollcall.VoteFor, 4), ballots("SV", rollcall.VoteAgainst, 4)...)
	b = append(b, ballots("KrF", rollcall.VoteAbsent, 3)...)
	b = append(b, ballots("V", rollcall.VoteAbstain, 1)...)
	b = append(b, ballots("MDG", rollcall.VoteNotCast, 1)...)

	stances := ResolveStances(b)
	assert.Equal(t, 0, stances.Len())
	assert.Empty(t, stances.Map())
}

func TestResolveStances_SkipsBallotsWithoutParty(t *testing.T) {
	b := []rollcall.Ballot{
		{PartyID: "", Value: rollcall.VoteAgainst},
		{PartyID: "", Value: rollcall.VoteAgainst},
		{PartyID: "Sp", Value: rollcall.VoteFor},
	}

	stances := ResolveStances(b)
	require.Equal(t, 1, stances.Len())
	assert.Equal(t, "Sp", stances[0].PartyID)
}

func TestResolveStances_FirstAppearanceOrder(t *testing.T) {
	b := []rollcall.Ballot{
		{PartyID: "V", Value: rollcall.VoteFor},
		{PartyID: "A", Value: rollcall.VoteFor},
		{PartyID: "V", Value: rollcall.VoteFor},
		{PartyID: "FrP", Value: rollcall.VoteAgainst},
	}

	stances := ResolveStances(b)
	got := make([]string, 0, stances.Len())
	for _, s := range stances {
		got = append(got, s.PartyID)
	}
	assert.Equal(t, []string{"V", "A", "FrP"}, got)
}

func TestPartyPair(t *testing.T) {
	assert.Equal(t, NewPartyPair("H", "A"), NewPartyPair("A", "H"))
	assert.Equal(t, "A-H", NewPartyPair("H", "A").String())
	assert.True(t, NewPartyPair("A", "H").Contains("H"))
	assert.False(t, NewPartyPair("A", "H").Contains("V"))

	pair, err := ParsePartyPair("SV-KrF")
	require.NoError(t, err)
	assert.Equal(t, PartyPair{A: "KrF", B: "SV"}, pair)

	for _, bad := range []string{"", "A", "-H", "A-", "A-B-C"} {
		_, err := ParsePartyPair(bad)
		assert.Error(t, err, "ParsePartyPair(%q)", bad)
	}
}

func TestBuildMatrix_SkipsPartyIDsWithSeparator(t *testing.T) {
	f := rollcall.VoteFor
	votes := []rollcall.Vote{
		vote("1", map[string]rollcall.VoteValue{"A-B": f, "C": f, "A": f, "B-C": f}, "A-B", "C", "A", "B-C"),
	}

	report := BuildMatrix(votes)
	require.Len(t, report.Records, 1)
	assert.Equal(t, NewPartyPair("A", "C"), report.Records[0].PartyPair)
	assert.Equal(t, []string{"A", "C"}, report.Parties())

	assert.False(t, ValidPartyID("A-B"))
	assert.False(t, ValidPartyID(""))
	assert.True(t, ValidPartyID("KrF"))
	assert.False(t, PartyPair{A: "A", B: "A"}.Valid())
}

func TestPercent(t *testing.T) {
	tests := []struct {
		part, whole int
		want        float64
	}{
		{3, 4, 75.0},
		{1, 3, 33.3},
		{2, 3, 66.7},
		{1, 8, 12.5},
		{1, 16, 6.2},
		{49, 400, 12.2},
		{0, 5, 0},
		{5, 5, 100},
		{1, 0, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Percent(tt.part, tt.whole), "Percent(%d, %d)", tt.part, tt.whole)
	}
}

func TestBuildMatrix_Empty(t *testing.T) {
	report := BuildMatrix(nil)
	assert.Empty(t, report.Matrix)
	assert.Empty(t, report.Records)
	assert.Equal(t, 0, report.VoteCount)
	assert.Empty(t, report.MostAgreeing(10))
	assert.Equal(t, "No party pairs found.\n", report.ToASCII())
	csvOut, err := report.ToCSV()
	require.NoError(t, err)
	assert.Equal(t, "", csvOut)
}

func TestBuildMatrix_FourVotes(t *testing.T) {
	f, a := rollcall.VoteFor, rollcall.VoteAgainst
	votes := []rollcall.Vote{
		vote("1", map[string]rollcall.VoteValue{"A": f, "H": f}, "A", "H"),
		vote("2", map[string]rollcall.VoteValue{"A": a, "H": a}, "A", "H"),
		vote("3", map[string]rollcall.VoteValue{"A": f, "H": a}, "A", "H"),
		vote("4", map[string]rollcall.VoteValue{"A": f, "H": f}, "A", "H"),
	}

	report := BuildMatrix(votes)
	require.Len(t, report.Records, 1)

	rec := report.Records[0]
	assert.Equal(t, NewPartyPair("A", "H"), rec.PartyPair)
	assert.Equal(t, 3, rec.Agree)
	assert.Equal(t, 1, rec.Disagree)
	assert.Equal(t, 4, rec.Total)
	assert.Equal(t, 75.0, rec.Percent)

	ah, ok := report.Lookup("A", "H")
	require.True(t, ok)
	ha, ok := report.Lookup("H", "A")
	require.True(t, ok)
	assert.Equal(t, ah, ha)
	assert.Equal(t, 75.0, report.Matrix["H"]["A"])
	assert.Equal(t, 75.0, report.Matrix["A"]["H"])
}

func TestBuildMatrix_OnlyCommonVotesCount(t *testing.T) {
	f, a := rollcall.VoteFor, rollcall.VoteAgainst
	votes := []rollcall.Vote{
		vote("1", map[string]rollcall.VoteValue{"A": f, "H": f, "SV": a}, "A", "H", "SV"),
		vote("2", map[string]rollcall.VoteValue{"A": f, "H": a}, "A", "H"),
		vote("3", map[string]rollcall.VoteValue{"A": a, "SV": rollcall.VoteAbsent}, "A", "SV"),
	}

	report := BuildMatrix(votes)

	rec, ok := report.Record("SV", "A")
	require.True(t, ok)
	assert.Equal(t, 1, rec.Total)
	assert.Equal(t, 0.0, rec.Percent)

	rec, ok = report.Record("H", "A")
	require.True(t, ok)
	assert.Equal(t, 2, rec.Total)
	assert.Equal(t, 50.0, rec.Percent)

	for _, rec := range report.Records {
		assert.Equal(t, rec.Total, rec.Agree+rec.Disagree)
		assert.Positive(t, rec.Total)
		assert.GreaterOrEqual(t, rec.Percent, 0.0)
		assert.LessOrEqual(t, rec.Percent, 100.0)
	}
}

func TestBuildMatrix_NeverCoOccurringPairOmitted(t *testing.T) {
	f := rollcall.VoteFor
	votes := []rollcall.Vote{
		vote("1", map[string]rollcall.VoteValue{"A": f, "H": f}, "A", "H"),
		vote("2", map[string]rollcall.VoteValue{"A": f, "V": f}, "A", "V"),
	}

	report := BuildMatrix(votes)
	_, ok := report.Lookup("H", "V")
	assert.False(t, ok)
	_, ok = report.Record("V", "H")
	assert.False(t, ok)
	assert.Equal(t, []string{"A", "H", "V"}, report.Parties())
}

func TestRankings_StableTies(t *testing.T) {
	f, a := rollcall.VoteFor, rollcall.VoteAgainst
	// Encounter order: A-H, A-SV, H-SV, then A-V, H-V, SV-V.
	votes := []rollcall.Vote{
		vote("1", map[string]rollcall.VoteValue{"A": f, "H": f, "SV": f}, "A", "H", "SV"),
		vote("2", map[string]rollcall.VoteValue{"A": f, "H": a, "SV": a, "V": f}, "A", "H", "SV", "V"),
	}

	report := BuildMatrix(votes)
	order := make([]string, 0, len(report.Records))
	for _, rec := range report.Records {
		order = append(order, rec.String())
	}
	assert.Equal(t, []string{"A-H", "A-SV", "H-SV", "A-V", "H-V", "SV-V"}, order)

	// A-H 50, A-SV 50, H-SV 100, A-V 100, H-V 0, SV-V 0.
	top := report.MostAgreeing(3)
	require.Len(t, top, 3)
	assert.Equal(t, "H-SV", top[0].String())
	assert.Equal(t, "A-V", top[1].String())
	assert.Equal(t, "A-H", top[2].String())

	bottom := report.LeastAgreeing(3)
	require.Len(t, bottom, 3)
	assert.Equal(t, "H-V", bottom[0].String())
	assert.Equal(t, "SV-V", bottom[1].String())
	assert.Equal(t, "A-H", bottom[2].String())

	assert.Len(t, report.MostAgreeing(0), 6)
	assert.Len(t, report.LeastAgreeing(100), 6)

	ranked := report.Ranked()
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Percent, ranked[i].Percent)
	}
}

func TestComputePartyStatistics(t *testing.T) {
	f, a := rollcall.VoteFor, rollcall.VoteAgainst
	votes := []rollcall.Vote{
		vote("1", map[string]rollcall.VoteValue{"A": f, "H": a}, "A", "H"),
		vote("2", map[string]rollcall.VoteValue{"A": f, "H": f}, "A", "H"),
		vote("3", map[string]rollcall.VoteValue{"A": a, "H": rollcall.VoteAbsent}, "A", "H"),
		{ID: "4", RecordedFor: 90, RecordedAgainst: 0},
	}
	// Vote 3 was rejected.
	votes[2].RecordedFor, votes[2].RecordedAgainst = 30, 70

	stats := ComputePartyStatistics(votes)
	require.Len(t, stats, 2)

	ap := stats["A"]
	assert.Equal(t, 3, ap.Participated)
	assert.Equal(t, 2, ap.ForCount)
	assert.Equal(t, 1, ap.AgainstCount)
	assert.Equal(t, 3, ap.WinningCount)
	assert.Equal(t, 66.7, ap.ForPercent)
	assert.Equal(t, 100.0, ap.WinningPercent)

	hp := stats["H"]
	assert.Equal(t, 2, hp.Participated)
	assert.Equal(t, 1, hp.WinningCount)
	assert.Equal(t, 50.0, hp.WinningPercent)

	sorted := SortedStatistics(stats)
	require.Len(t, sorted, 2)
	assert.Equal(t, "A", sorted[0].PartyID)
	assert.Equal(t, "H", sorted[1].PartyID)
}

func TestSessionAnalysis_RestorePartyIDs(t *testing.T) {
	a := &SessionAnalysis{Statistics: map[string]PartyStatistics{
		"A": {Participated: 3},
		"H": {Participated: 2},
	}}
	a.RestorePartyIDs()

	assert.Equal(t, "A", a.Statistics["A"].PartyID)
	assert.Equal(t, "H", a.Statistics["H"].PartyID)
	assert.Equal(t, 3, a.Statistics["A"].Participated)
}

func TestComputePartyStatistics_TiedTotalsGoAgainst(t *testing.T) {
	v := vote("1", map[string]rollcall.VoteValue{"A": rollcall.VoteAgainst}, "A")
	v.RecordedFor, v.RecordedAgainst = 50, 50

	stats := ComputePartyStatistics([]rollcall.Vote{v})
	assert.Equal(t, 1, stats["A"].WinningCount)
}

func TestAnalyzeSession(t *testing.T) {
	f, a := rollcall.VoteFor, rollcall.VoteAgainst
	votes := []rollcall.Vote{
		vote("1", map[string]rollcall.VoteValue{"A": f, "H": f, "SV": a}, "A", "H", "SV"),
		vote("2", map[string]rollcall.VoteValue{"A": a, "H": f, "SV": a}, "A", "H", "SV"),
		{ID: "3"},
	}

	analysis, err := AnalyzeSession("2023-2024", votes, Options{TopN: 2})
	require.NoError(t, err)

	assert.Equal(t, "2023-2024", analysis.SessionID)
	assert.Equal(t, 2, analysis.VoteCount)
	assert.Equal(t, 3, analysis.PartyCount)
	assert.Len(t, analysis.Top, 2)
	assert.Len(t, analysis.Bottom, 2)
	assert.Len(t, analysis.AllPairs, 3)
	assert.Len(t, analysis.Statistics, 3)

	pct, ok := analysis.Percent("SV", "A")
	require.True(t, ok)
	assert.Equal(t, 50.0, pct)
}

func TestAnalyzeSession_NoBallots(t *testing.T) {
	_, err := AnalyzeSession("2011-2012", []rollcall.Vote{{ID: "1"}}, DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNoVotes))
	assert.True(t, errors.IsMissingInput(err))
	assert.Contains(t, err.Error(), "2011-2012")
}

func TestAnalyzeSession_Idempotent(t *testing.T) {
	f, a := rollcall.VoteFor, rollcall.VoteAgainst
	votes := []rollcall.Vote{
		vote("1", map[string]rollcall.VoteValue{"A": f, "H": a, "SV": f, "V": a}, "A", "H", "SV", "V"),
		vote("2", map[string]rollcall.VoteValue{"V": f, "SV": f, "A": a}, "V", "SV", "A"),
	}

	first, err := AnalyzeSession("2020-2021", votes, DefaultOptions())
	require.NoError(t, err)
	second, err := AnalyzeSession("2020-2021", votes, DefaultOptions())
	require.NoError(t, err)

	b1, err := json.Marshal(first)
	require.NoError(t, err)
	b2, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(b1), string(b2))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b1, &decoded))
	for _, key := range []string{"session_id", "vote_count", "party_count", "agreement_matrix",
		"top_10_agreeing", "bottom_10_agreeing", "party_statistics", "all_pairs"} {
		assert.Contains(t, decoded, key)
	}
}

func TestExplainVote(t *testing.T) {
	b := append(ballots("SV", rollcall.VoteFor, 2), ballots("SV", rollcall.VoteAgainst, 2)...)
	b = append(b, ballots("A", rollcall.VoteFor, 25)...)
	b = append(b, ballots("A", rollcall.VoteAgainst, 3)...)
	b = append(b, ballots("KrF", rollcall.VoteAbsent, 3)...)
	b = append(b, ballots("H", rollcall.VoteAgainst, 1)...)

	tallies := ExplainVote(rollcall.Vote{ID: "42", Ballots: b})
	require.Len(t, tallies, 4)

	assert.Equal(t, PartyTally{PartyID: "A", For: 25, Against: 3, Position: PositionFor}, tallies[0])
	assert.Equal(t, PartyTally{PartyID: "H", Against: 1, Position: PositionAgainst}, tallies[1])
	assert.Equal(t, PartyTally{PartyID: "KrF", Other: 3, Position: PositionAbsent}, tallies[2])
	assert.Equal(t, PartyTally{PartyID: "SV", For: 2, Against: 2, Position: PositionSplit}, tallies[3])

	assert.True(t, tallies[0].HasStance())
	assert.False(t, tallies[3].HasStance())
}

func TestVerifyPair_MatchesMatrix(t *testing.T) {
	f, a := rollcall.VoteFor, rollcall.VoteAgainst
	votes := []rollcall.Vote{
		vote("1", map[string]rollcall.VoteValue{"A": f, "H": f}, "A", "H"),
		vote("2", map[string]rollcall.VoteValue{"A": a, "H": a}, "H", "A"),
		vote("3", map[string]rollcall.VoteValue{"A": f, "H": a}, "A", "H"),
		vote("4", map[string]rollcall.VoteValue{"A": f, "H": f}, "A", "H"),
		vote("5", map[string]rollcall.VoteValue{"A": f}, "A"),
	}

	v := VerifyPair("H", "A", votes, 2)
	assert.Equal(t, 3, v.Agree)
	assert.Equal(t, 1, v.Disagree)
	assert.Equal(t, 4, v.Total)
	require.NotNil(t, v.Percent)
	assert.Equal(t, 75.0, *v.Percent)
	assert.Len(t, v.AgreeExamples, 2)
	require.Len(t, v.DisagreeExamples, 1)
	assert.Equal(t, "3", v.DisagreeExamples[0].VoteID)
	assert.Equal(t, rollcall.StanceAgainst, v.DisagreeExamples[0].StanceA)
	assert.Equal(t, rollcall.StanceFor, v.DisagreeExamples[0].StanceB)

	rec, ok := BuildMatrix(votes).Record("A", "H")
	require.True(t, ok)
	assert.Equal(t, rec.Agree, v.Agree)
	assert.Equal(t, rec.Percent, *v.Percent)
}

func TestVerifyPair_NoCommonVotes(t *testing.T) {
	votes := []rollcall.Vote{
		vote("1", map[string]rollcall.VoteValue{"A": rollcall.VoteFor}, "A"),
	}

	v := VerifyPair("A", "MDG", votes, 3)
	assert.Equal(t, 0, v.Total)
	assert.Nil(t, v.Percent)
	assert.Empty(t, v.AgreeExamples)
}

func TestVerifyPair_TruncatesTopic(t *testing.T) {
	f := rollcall.VoteFor
	v := vote("1", map[string]rollcall.VoteValue{"A": f, "H": f}, "A", "H")
	v.Topic = strings.Repeat("æ", 80)

	got := VerifyPair("A", "H", []rollcall.Vote{v}, 1)
	require.Len(t, got.AgreeExamples, 1)
	assert.Equal(t, strings.Repeat("æ", 50), got.AgreeExamples[0].Topic)
}

func TestReportRendering(t *testing.T) {
	f, a := rollcall.VoteFor, rollcall.VoteAgainst
	votes := []rollcall.Vote{
		vote("1", map[string]rollcall.VoteValue{"A": f, "H": f, "V": f}, "A", "H"),
		vote("2", map[string]rollcall.VoteValue{"A": f, "H": a}, "A", "H"),
	}
	report := BuildMatrix(votes)

	ascii := report.ToASCII()
	assert.Contains(t, ascii, "50.0")
	assert.Contains(t, ascii, "-")

	csvOut, err := report.ToCSV()
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(csvOut), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Party,A,H", lines[0])
	assert.Equal(t, "A,-,50.0", lines[1])
	assert.Equal(t, "H,50.0,-", lines[2])

	svg := report.ToSVGHeatmap()
	assert.True(t, strings.HasPrefix(svg, "<svg"))
	assert.Contains(t, svg, ">50<")

	assert.Contains(t, report.String(), "Votes analysed: 2")
}

func TestReportRendering_EscapesPartyIDs(t *testing.T) {
	f := rollcall.VoteFor
	report := BuildMatrix([]rollcall.Vote{
		vote("1", map[string]rollcall.VoteValue{"A": f, "S&V": f}, "A", "S&V"),
	})

	svg := report.ToSVGHeatmap()
	assert.Contains(t, svg, ">S&amp;V</text>")
	assert.NotContains(t, svg, ">S&V<")

	csvOut, err := report.ToCSV()
	require.NoError(t, err)
	assert.Contains(t, csvOut, "Party,A,S&V")
}

func TestSpotCheckPairs(t *testing.T) {
	f, a := rollcall.VoteFor, rollcall.VoteAgainst
	votes := []rollcall.Vote{
		vote("1", map[string]rollcall.VoteValue{"A": f, "H": f, "SV": a}, "A", "H", "SV"),
		vote("2", map[string]rollcall.VoteValue{"A": f, "H": a, "SV": f}, "A", "H", "SV"),
	}
	analysis, err := AnalyzeSession("2023-2024", votes, DefaultOptions())
	require.NoError(t, err)

	// Tamper with one stored value so the check can detect it.
	analysis.Matrix["A"]["SV"] = 99.0

	checks := SpotCheckPairs(analysis, votes, []PartyPair{
		NewPartyPair("A", "H"),
		NewPartyPair("A", "SV"),
		NewPartyPair("A", "KrF"),
	})
	require.Len(t, checks, 2)
	assert.True(t, checks[0].Match)
	assert.Equal(t, 50.0, checks[0].Stored)
	assert.False(t, checks[1].Match)
	require.NotNil(t, checks[1].Recomputed)
	assert.Equal(t, 50.0, *checks[1].Recomputed)
}
