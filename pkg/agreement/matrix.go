package agreement

import (
	"sort"
	"strconv"

	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/rollcall"
)

// PairRecord holds the agreement counts for one party pair. Only votes on
// which both parties had a defined stance are counted.
type PairRecord struct {
	PartyPair `yaml:",inline"`

	Agree    int     `json:"agree_count" yaml:"agree_count"`
	Disagree int     `json:"disagree_count" yaml:"disagree_count"`
	Total    int     `json:"total" yaml:"total"`
	Percent  float64 `json:"agreement_percent" yaml:"agreement_percent"`
}

// Report is the agreement matrix for a set of votes.
type Report struct {
	// Matrix[a][b] is the agreement percentage of a and b. Both orderings
	// of every pair are present.
	Matrix map[string]map[string]float64 `json:"agreement_matrix" yaml:"agreement_matrix"`

	// Records lists the pairs in the order they were first encountered.
	Records []PairRecord `json:"pairs" yaml:"pairs"`

	// VoteCount is the number of votes the report was built from.
	VoteCount int `json:"vote_count" yaml:"vote_count"`
}

// BuildMatrix counts, for every pair of parties that took a stance on the
// same vote, how often they agreed. A pair that never co-occurs has no
// record and no matrix entry. An empty vote list yields an empty report.
func BuildMatrix(votes []rollcall.Vote) *Report {
	records := make([]PairRecord, 0)
	index := make(map[PartyPair]int)

	for _, vote := range votes {
		stances := ResolveStances(vote.Ballots)
		for i := 0; i < len(stances); i++ {
			for j := i + 1; j < len(stances); j++ {
				pair := NewPartyPair(stances[i].PartyID, stances[j].PartyID)

				idx, ok := index[pair]
				if !ok {
					idx = len(records)
					index[pair] = idx
					records = append(records, PairRecord{PartyPair: pair})
				}

				if stances[i].Stance == stances[j].Stance {
					records[idx].Agree++
				} else {
					records[idx].Disagree++
				}
				records[idx].Total++
			}
		}
	}

	matrix := make(map[string]map[string]float64)
	for i := range records {
		rec := &records[i]
		rec.Percent = Percent(rec.Agree, rec.Total)

		setCell(matrix, rec.A, rec.B, rec.Percent)
		setCell(matrix, rec.B, rec.A, rec.Percent)
	}

	return &Report{
		Matrix:    matrix,
		Records:   records,
		VoteCount: len(votes),
	}
}

func setCell(matrix map[string]map[string]float64, row, col string, value float64) {
	if matrix[row] == nil {
		matrix[row] = make(map[string]float64)
	}
	matrix[row][col] = value
}

// Percent returns part/whole as a percentage rounded to one decimal.
// A zero whole yields zero.
func Percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return RoundTenth(float64(part) / float64(whole) * 100)
}

// RoundTenth rounds x to one decimal place. Values exactly halfway between
// two tenths, as represented in binary, round to the even tenth.
func RoundTenth(x float64) float64 {
	v, err := strconv.ParseFloat(strconv.FormatFloat(x, 'f', 1, 64), 64)
	if err != nil {
		return x
	}
	return v
}

// Lookup returns the agreement percentage of a and b in either order.
func (r *Report) Lookup(a, b string) (float64, bool) {
	pair := NewPartyPair(a, b)
	row, ok := r.Matrix[pair.A]
	if !ok {
		return 0, false
	}
	v, ok := row[pair.B]
	return v, ok
}

// Record returns the counts for a and b in either order.
func (r *Report) Record(a, b string) (PairRecord, bool) {
	pair := NewPartyPair(a, b)
	for _, rec := range r.Records {
		if rec.PartyPair == pair {
			return rec, true
		}
	}
	return PairRecord{}, false
}

// Parties returns every party that appears in at least one pair, sorted.
func (r *Report) Parties() []string {
	parties := make([]string, 0, len(r.Matrix))
	for party := range r.Matrix {
		parties = append(parties, party)
	}
	sort.Strings(parties)
	return parties
}

// Ranked returns all pair records by descending agreement. Ties keep
// encounter order.
func (r *Report) Ranked() []PairRecord {
	ranked := make([]PairRecord, len(r.Records))
	copy(ranked, r.Records)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Percent > ranked[j].Percent
	})
	return ranked
}

// MostAgreeing returns the limit pairs with the highest agreement. A
// non-positive limit returns every pair.
func (r *Report) MostAgreeing(limit int) []PairRecord {
	return truncate(r.Ranked(), limit)
}

// LeastAgreeing returns the limit pairs with the lowest agreement, lowest
// first. Ties keep encounter order.
func (r *Report) LeastAgreeing(limit int) []PairRecord {
	ranked := make([]PairRecord, len(r.Records))
	copy(ranked, r.Records)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Percent < ranked[j].Percent
	})
	return truncate(ranked, limit)
}

func truncate(records []PairRecord, limit int) []PairRecord {
	if limit > 0 && limit < len(records) {
		return records[:limit]
	}
	return records
}
