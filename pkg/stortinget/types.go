package stortinget

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/rollcall"
)

// Case is one parliamentary case (sak) in a session.
type Case struct {
	ID         string
	Title      string
	ShortTitle string
}

// VoteHeader is one vote listed for a case, before ballots are fetched.
type VoteHeader struct {
	ID      string
	CaseID  string
	Topic   string
	For     int
	Against int
	Adopted bool
	Time    string
}

// JSON envelopes of the export API.

type partiesResponse struct {
	Parties []wireParty `json:"partier_liste"`
}

type wireParty struct {
	ID   flexString `json:"id"`
	Name string     `json:"navn"`
}

type casesResponse struct {
	Cases []wireCase `json:"saker_liste"`
}

type wireCase struct {
	ID         flexString `json:"id"`
	Title      string     `json:"tittel"`
	ShortTitle string     `json:"korttittel"`
}

type votesResponse struct {
	Votes []wireVote `json:"votering_liste"`
}

type wireVote struct {
	ID      flexString `json:"votering_id"`
	Topic   string     `json:"votering_tema"`
	For     flexInt    `json:"antall_for"`
	Against flexInt    `json:"antall_mot"`
	Adopted bool       `json:"vedtatt"`
	Time    string     `json:"votering_tid"`
}

type resultsResponse struct {
	Results []wireResult `json:"voteringsresultat_liste"`
}

type wireResult struct {
	Representative wireRepresentative `json:"representant"`
	Value          voteCode           `json:"votering"`
}

type wireRepresentative struct {
	ID        flexString `json:"id"`
	FirstName string     `json:"fornavn"`
	LastName  string     `json:"etternavn"`
	Party     *wireParty `json:"parti"`
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(data)
	return nil
}

// flexInt accepts a JSON number or numeric string. Anything else is zero.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(s)))
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(n)
	return nil
}

// voteCode is a ballot value sent either as a numeric code or as text.
type voteCode struct {
	value rollcall.VoteValue
	ok    bool
}

func (v *voteCode) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	v.value, v.ok = rollcall.ParseVoteValue(string(s))
	return nil
}

// ballot converts a result row into a ballot. Rows with an unresolvable
// value are dropped; rows without a party keep an empty party id.
func (r wireResult) ballot() (rollcall.Ballot, bool) {
	if !r.Value.ok {
		return rollcall.Ballot{}, false
	}
	b := rollcall.Ballot{
		RepresentativeID: string(r.Representative.ID),
		Value:            r.Value.value,
	}
	if r.Representative.Party != nil {
		b.PartyID = strings.TrimSpace(string(r.Representative.Party.ID))
	}
	return b, true
}
