// Package timeseries assembles per-session agreement analyses into a
// cross-session series: per-pair history, averages, trends and stability.
package timeseries

import (
	"sort"

	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/agreement"
)

// DefaultMinStableSessions is the number of sessions a pair needs before it
// is ranked for stability.
const DefaultMinStableSessions = 3

// DefaultSummaryN is the number of top and bottom pairs kept per session in
// the summary.
const DefaultSummaryN = 3

// SessionInput is one analysed session. Inputs are supplied in chronological
// order; a nil Analysis marks a session with no data.
type SessionInput struct {
	SessionID string
	Analysis  *agreement.SessionAnalysis
}

// Options control Build.
type Options struct {
	MinStableSessions int
	SummaryN          int
}

// DefaultOptions returns the standard series options.
func DefaultOptions() Options {
	return Options{
		MinStableSessions: DefaultMinStableSessions,
		SummaryN:          DefaultSummaryN,
	}
}

// SessionSummary is the condensed view of one session kept in the series.
type SessionSummary struct {
	VoteCount int                    `json:"vote_count" yaml:"vote_count"`
	Top       []agreement.PairRecord `json:"top" yaml:"top"`
	Bottom    []agreement.PairRecord `json:"bottom" yaml:"bottom"`
}

// Trend is the change in a pair's agreement between the first and last
// sessions in which the pair was present.
type Trend struct {
	Pair         string  `json:"pair" yaml:"pair"`
	FirstSession string  `json:"first_session" yaml:"first_session"`
	LastSession  string  `json:"last_session" yaml:"last_session"`
	First        float64 `json:"first" yaml:"first"`
	Last         float64 `json:"last" yaml:"last"`
	Delta        float64 `json:"delta" yaml:"delta"`
}

// Stability describes how much a pair's agreement varied across sessions.
type Stability struct {
	Pair     string  `json:"pair" yaml:"pair"`
	Range    float64 `json:"range" yaml:"range"`
	Average  float64 `json:"average" yaml:"average"`
	Sessions int     `json:"sessions" yaml:"sessions"`
}

// Series is the cross-session aggregate.
type Series struct {
	SessionCount int `json:"session_count" yaml:"session_count"`
	// Sessions lists the analysed sessions in chronological order.
	Sessions []string `json:"sessions" yaml:"sessions"`
	// ByPair maps a pair key to its percentage per session. Sessions in
	// which the pair had no common vote are absent.
	ByPair     map[string]map[string]float64 `json:"series_by_pair" yaml:"series_by_pair"`
	Averages   map[string]float64            `json:"average_by_pair" yaml:"average_by_pair"`
	PerSession map[string]SessionSummary     `json:"per_session_summary" yaml:"per_session_summary"`
	Converging []Trend                       `json:"converging" yaml:"converging"`
	Diverging  []Trend                       `json:"diverging" yaml:"diverging"`
	MostStable []Stability                   `json:"most_stable" yaml:"most_stable"`
}

// Point is one session's value in a pair's history.
type Point struct {
	Session string
	Value   float64
}

// Build assembles the series. The result depends only on the inputs and
// their order, never on how or when the analyses were computed. Duplicate
// session ids keep the first occurrence.
func Build(inputs []SessionInput, opts Options) *Series {
	if opts.MinStableSessions <= 0 {
		opts.MinStableSessions = DefaultMinStableSessions
	}
	if opts.SummaryN <= 0 {
		opts.SummaryN = DefaultSummaryN
	}

	s := &Series{
		Sessions:   make([]string, 0, len(inputs)),
		ByPair:     make(map[string]map[string]float64),
		Averages:   make(map[string]float64),
		PerSession: make(map[string]SessionSummary),
		Converging: make([]Trend, 0),
		Diverging:  make([]Trend, 0),
		MostStable: make([]Stability, 0),
	}

	seen := make(map[string]bool)
	for _, in := range inputs {
		if in.Analysis == nil || seen[in.SessionID] {
			continue
		}
		seen[in.SessionID] = true
		s.Sessions = append(s.Sessions, in.SessionID)

		for _, rec := range in.Analysis.AllPairs {
			if !rec.PartyPair.Valid() {
				continue
			}
			key := rec.PartyPair.String()
			if s.ByPair[key] == nil {
				s.ByPair[key] = make(map[string]float64)
			}
			s.ByPair[key][in.SessionID] = rec.Percent
		}

		s.PerSession[in.SessionID] = SessionSummary{
			VoteCount: in.Analysis.VoteCount,
			Top:       head(in.Analysis.Top, opts.SummaryN),
			Bottom:    head(in.Analysis.Bottom, opts.SummaryN),
		}
	}
	s.SessionCount = len(s.Sessions)

	var trends []Trend
	for _, pair := range s.Pairs() {
		points := s.History(pair)
		s.Averages[pair] = average(points)

		if len(points) >= 2 {
			first, last := points[0], points[len(points)-1]
			trends = append(trends, Trend{
				Pair:         pair,
				FirstSession: first.Session,
				LastSession:  last.Session,
				First:        first.Value,
				Last:         last.Value,
				Delta:        agreement.RoundTenth(last.Value - first.Value),
			})
		}

		if len(points) >= opts.MinStableSessions {
			s.MostStable = append(s.MostStable, Stability{
				Pair:     pair,
				Range:    agreement.RoundTenth(spread(points)),
				Average:  s.Averages[pair],
				Sessions: len(points),
			})
		}
	}

	s.Converging = append(s.Converging, trends...)
	sort.SliceStable(s.Converging, func(i, j int) bool {
		return s.Converging[i].Delta > s.Converging[j].Delta
	})
	s.Diverging = append(s.Diverging, trends...)
	sort.SliceStable(s.Diverging, func(i, j int) bool {
		return s.Diverging[i].Delta < s.Diverging[j].Delta
	})
	sort.SliceStable(s.MostStable, func(i, j int) bool {
		return s.MostStable[i].Range < s.MostStable[j].Range
	})

	return s
}

// Pairs returns every pair key in the series, sorted.
func (s *Series) Pairs() []string {
	pairs := make([]string, 0, len(s.ByPair))
	for pair := range s.ByPair {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)
	return pairs
}

// History returns the sessions in which pair was present, in session order.
func (s *Series) History(pair string) []Point {
	values := s.ByPair[pair]
	points := make([]Point, 0, len(values))
	for _, session := range s.Sessions {
		if v, ok := values[session]; ok {
			points = append(points, Point{Session: session, Value: v})
		}
	}
	return points
}

func average(points []Point) float64 {
	if len(points) == 0 {
		return 0
	}
	var sum float64
	for _, p := range points {
		sum += p.Value
	}
	return agreement.RoundTenth(sum / float64(len(points)))
}

func spread(points []Point) float64 {
	lo, hi := points[0].Value, points[0].Value
	for _, p := range points[1:] {
		lo = min(lo, p.Value)
		hi = max(hi, p.Value)
	}
	return hi - lo
}

func head(records []agreement.PairRecord, n int) []agreement.PairRecord {
	if len(records) > n {
		records = records[:n]
	}
	out := make([]agreement.PairRecord, len(records))
	copy(out, records)
	return out
}
