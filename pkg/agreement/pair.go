package agreement

import (
	"strings"

	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/errors"
)

// PairSeparator joins the two party ids in a pair's string form.
const PairSeparator = "-"

// ValidPartyID reports whether id can take part in a pair. Ids containing
// PairSeparator would make pair keys ambiguous.
func ValidPartyID(id string) bool {
	return id != "" && !strings.Contains(id, PairSeparator)
}

// PartyPair is an unordered pair of parties in canonical form: A sorts
// before B. Always build pairs with NewPartyPair.
type PartyPair struct {
	A string `json:"party_a" yaml:"party_a"`
	B string `json:"party_b" yaml:"party_b"`
}

// NewPartyPair returns the canonical pair for x and y, so that
// NewPartyPair(x, y) == NewPartyPair(y, x).
func NewPartyPair(x, y string) PartyPair {
	if y < x {
		x, y = y, x
	}
	return PartyPair{A: x, B: y}
}

// String returns the pair as "A-B".
func (p PartyPair) String() string {
	return p.A + PairSeparator + p.B
}

// Valid reports whether both sides are valid, distinct party ids.
func (p PartyPair) Valid() bool {
	return ValidPartyID(p.A) && ValidPartyID(p.B) && p.A != p.B
}

// Contains reports whether party is one side of the pair.
func (p PartyPair) Contains(party string) bool {
	return p.A == party || p.B == party
}

// ParsePartyPair parses "A-B" (in either order) into a canonical pair.
func ParsePartyPair(s string) (PartyPair, error) {
	a, b, ok := strings.Cut(s, PairSeparator)
	if !ok || !ValidPartyID(a) || !ValidPartyID(b) {
		return PartyPair{}, errors.Newf("invalid party pair %q", s)
	}
	return NewPartyPair(a, b), nil
}
