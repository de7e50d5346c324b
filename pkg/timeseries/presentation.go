package timeseries

import (
	"sort"
	"strconv"
	"strings"

	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/agreement"
)

// Presentation is the chart-oriented projection of a Series.
type Presentation struct {
	Sessions []string             `json:"sessions" yaml:"sessions"`
	Series   []PresentationSeries `json:"series" yaml:"series"`
	Metadata PresentationMetadata `json:"metadata" yaml:"metadata"`
}

// PresentationSeries is one pair's line in the chart.
type PresentationSeries struct {
	Pair    string              `json:"pair" yaml:"pair"`
	PartyA  string              `json:"party_a" yaml:"party_a"`
	PartyB  string              `json:"party_b" yaml:"party_b"`
	Average float64             `json:"average" yaml:"average"`
	Points  []PresentationPoint `json:"points" yaml:"points"`
}

// PresentationPoint is a pair's value in one session. Value is nil when
// the pair was absent from the session. Year is the session's starting
// year, nil when the session id does not begin with one.
type PresentationPoint struct {
	Session string   `json:"session" yaml:"session"`
	Year    *int     `json:"year" yaml:"year"`
	Value   *float64 `json:"value" yaml:"value"`
}

// PresentationMetadata summarizes the projection.
type PresentationMetadata struct {
	SessionCount int    `json:"session_count" yaml:"session_count"`
	PairCount    int    `json:"pair_count" yaml:"pair_count"`
	FirstSession string `json:"first_session" yaml:"first_session"`
	LastSession  string `json:"last_session" yaml:"last_session"`
	Period       string `json:"period" yaml:"period"`
}

// Presentation projects the series into one line per pair, with a point
// for every session that has at least one pair, sorted by descending
// average.
func (s *Series) Presentation() *Presentation {
	sessions := make([]string, 0, len(s.Sessions))
	for _, session := range s.Sessions {
		for _, values := range s.ByPair {
			if _, ok := values[session]; ok {
				sessions = append(sessions, session)
				break
			}
		}
	}

	years := make([]*int, len(sessions))
	for i, session := range sessions {
		years[i] = sessionYear(session)
	}

	lines := make([]PresentationSeries, 0, len(s.ByPair))
	for _, pair := range s.Pairs() {
		line := PresentationSeries{
			Pair:    pair,
			PartyA:  pair,
			Average: s.Averages[pair],
			Points:  make([]PresentationPoint, 0, len(sessions)),
		}
		if pp, err := agreement.ParsePartyPair(pair); err == nil {
			line.PartyA, line.PartyB = pp.A, pp.B
		}

		values := s.ByPair[pair]
		for i, session := range sessions {
			point := PresentationPoint{Session: session, Year: years[i]}
			if v, ok := values[session]; ok {
				point.Value = &v
			}
			line.Points = append(line.Points, point)
		}
		lines = append(lines, line)
	}

	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Average > lines[j].Average
	})

	meta := PresentationMetadata{
		SessionCount: len(sessions),
		PairCount:    len(lines),
	}
	if len(sessions) > 0 {
		meta.FirstSession = sessions[0]
		meta.LastSession = sessions[len(sessions)-1]
		meta.Period = meta.FirstSession + " to " + meta.LastSession
	}

	return &Presentation{
		Sessions: sessions,
		Series:   lines,
		Metadata: meta,
	}
}

// sessionYear parses the leading year of a session id such as "2023-2024".
func sessionYear(session string) *int {
	prefix, _, _ := strings.Cut(session, "-")
	year, err := strconv.Atoi(prefix)
	if err != nil {
		return nil
	}
	return &year
}
