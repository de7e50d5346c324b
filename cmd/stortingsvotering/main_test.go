package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/rollcall"
	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/store"
)

func bloc(party string, value rollcall.VoteValue, n int) []rollcall.Ballot {
	out := make([]rollcall.Ballot, n)
	for i := range out {
		out[i] = rollcall.Ballot{PartyID: party, Value: value}
	}
	return out
}

func seedSession(t *testing.T, dir, session string, hAgrees bool) {
	t.Helper()
	fs, err := store.NewFileStore(dir, store.FormatJSON)
	require.NoError(t, err)

	hValue := rollcall.VoteAgainst
	if hAgrees {
		hValue = rollcall.VoteFor
	}
	first := append(bloc("A", rollcall.VoteFor, 3), bloc("H", hValue, 2)...)
	first = append(first, bloc("SV", rollcall.VoteFor, 1)...)
	second := append(bloc("A", rollcall.VoteAgainst, 3), bloc("H", rollcall.VoteAgainst, 2)...)
	second = append(second, bloc("SV", rollcall.VoteFor, 1)...)

	require.NoError(t, fs.SaveVotes(&rollcall.SessionRecords{
		SessionID: session,
		CaseCount: 1,
		Votes: []rollcall.Vote{
			{ID: "1", CaseID: "10", Topic: "Statsbudsjettet", RecordedFor: 6, RecordedAgainst: 2, Ballots: first},
			{ID: "2", CaseID: "10", Topic: "Endringsforslag", RecordedFor: 1, RecordedAgainst: 5, Ballots: second},
		},
	}))
}

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--data-dir", dir, "--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestAnalyzeCommand(t *testing.T) {
	dir := t.TempDir()
	seedSession(t, dir, "2023-2024", true)

	out, err := run(t, dir, "analyze", "2023-2024", "--matrix", "csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, "Party,A,H,SV", lines[0])
	assert.Equal(t, "A,-,100.0,50.0", lines[1])

	assert.FileExists(t, filepath.Join(dir, "analyse_2023-2024.json"))

	out, err = run(t, dir, "analyze", "2023-2024")
	require.NoError(t, err)
	assert.Contains(t, out, "Session 2023-2024: 2 votes, 3 parties")
	assert.Contains(t, out, "Most agreeing")
}

func TestAnalyzeCommand_MissingSession(t *testing.T) {
	_, err := run(t, t.TempDir(), "analyze", "2011-2012")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session not found")
}

func TestTimeseriesAndHistoryCommands(t *testing.T) {
	dir := t.TempDir()
	seedSession(t, dir, "2022-2023", false)
	seedSession(t, dir, "2023-2024", true)

	out, err := run(t, dir, "timeseries", "--archive")
	require.NoError(t, err)
	assert.Contains(t, out, "2 sessions: 2022-2023, 2023-2024")
	assert.Contains(t, out, "Converging")
	assert.FileExists(t, filepath.Join(dir, "analyse_tidsserie.json"))
	assert.FileExists(t, filepath.Join(dir, "tidsserie_frontend.json"))

	out, err = run(t, dir, "history", "H", "A")
	require.NoError(t, err)
	assert.Contains(t, out, "A-H")
	assert.Contains(t, out, "2022-2023")
	assert.Contains(t, out, "50.0")
	assert.Contains(t, out, "100.0")
}

func TestVerifyCommands(t *testing.T) {
	dir := t.TempDir()
	seedSession(t, dir, "2023-2024", false)

	out, err := run(t, dir, "verify", "vote", "2023-2024", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Statsbudsjettet")
	assert.Contains(t, out, "for")

	out, err = run(t, dir, "verify", "pair", "2023-2024", "A", "H")
	require.NoError(t, err)
	assert.Contains(t, out, "Common votes: 2")
	assert.Contains(t, out, "Agreement: 50.0%")

	_, err = run(t, dir, "verify", "vote", "2023-2024", "999")
	assert.Error(t, err)

	_, err = run(t, dir, "analyze", "2023-2024")
	require.NoError(t, err)
	out, err = run(t, dir, "verify", "sample", "2023-2024", "--seed", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "Seed: 7")
	assert.NotContains(t, out, "NO")
}

func TestSessionsCommand(t *testing.T) {
	dir := t.TempDir()
	seedSession(t, dir, "2023-2024", true)

	out, err := run(t, dir, "sessions")
	require.NoError(t, err)
	assert.Contains(t, out, "2011-2012")
	assert.Contains(t, out, "1 of 14 sessions stored")
}

func TestMethodologyCommand(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "METHODOLOGY.md")

	out, err := run(t, dir, "methodology", "--output", output)
	require.NoError(t, err)
	assert.Contains(t, out, "https://data.stortinget.no")
	assert.Contains(t, out, "at least 3 sessions")
	assert.FileExists(t, output)
}
