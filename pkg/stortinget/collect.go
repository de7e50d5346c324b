package stortinget

import (
	"context"
	"net/url"
	"strings"

	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/errors"
	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/logger"
	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/rollcall"
)

// Parties fetches the parties registered for a session.
func (c *Client) Parties(ctx context.Context, sessionID string) ([]rollcall.Party, error) {
	var resp partiesResponse
	if err := c.getJSON(ctx, "partier", url.Values{"sesjonid": {sessionID}}, &resp); err != nil {
		return nil, errors.Wrapf(err, "fetch parties for %s", sessionID)
	}

	parties := make([]rollcall.Party, 0, len(resp.Parties))
	for _, p := range resp.Parties {
		if p.ID == "" {
			continue
		}
		parties = append(parties, rollcall.Party{ID: string(p.ID), Name: p.Name})
	}
	return parties, nil
}

// Cases fetches the cases of a session.
func (c *Client) Cases(ctx context.Context, sessionID string) ([]Case, error) {
	var resp casesResponse
	if err := c.getJSON(ctx, "saker", url.Values{"sesjonid": {sessionID}}, &resp); err != nil {
		return nil, errors.Wrapf(err, "fetch cases for %s", sessionID)
	}

	cases := make([]Case, 0, len(resp.Cases))
	for _, wc := range resp.Cases {
		if wc.ID == "" {
			continue
		}
		cases = append(cases, Case{
			ID:         string(wc.ID),
			Title:      strings.TrimSpace(wc.Title),
			ShortTitle: strings.TrimSpace(wc.ShortTitle),
		})
	}
	return cases, nil
}

// Votes fetches the votes held on a case.
func (c *Client) Votes(ctx context.Context, caseID string) ([]VoteHeader, error) {
	var resp votesResponse
	if err := c.getJSON(ctx, "voteringer", url.Values{"sakid": {caseID}}, &resp); err != nil {
		return nil, errors.Wrapf(err, "fetch votes for case %s", caseID)
	}

	votes := make([]VoteHeader, 0, len(resp.Votes))
	for _, wv := range resp.Votes {
		if wv.ID == "" {
			continue
		}
		votes = append(votes, VoteHeader{
			ID:      string(wv.ID),
			CaseID:  caseID,
			Topic:   strings.TrimSpace(wv.Topic),
			For:     int(wv.For),
			Against: int(wv.Against),
			Adopted: wv.Adopted,
			Time:    wv.Time,
		})
	}
	return votes, nil
}

// Ballots fetches the individual ballots of a vote. Rows whose value
// cannot be resolved are dropped and counted.
func (c *Client) Ballots(ctx context.Context, voteID string) ([]rollcall.Ballot, int, error) {
	var resp resultsResponse
	if err := c.getJSON(ctx, "voteringsresultat", url.Values{"voteringid": {voteID}}, &resp); err != nil {
		return nil, 0, errors.Wrapf(err, "fetch results for vote %s", voteID)
	}

	ballots := make([]rollcall.Ballot, 0, len(resp.Results))
	dropped := 0
	for _, r := range resp.Results {
		b, ok := r.ballot()
		if !ok {
			dropped++
			continue
		}
		ballots = append(ballots, b)
	}
	return ballots, dropped, nil
}

// CollectOptions control CollectSession.
type CollectOptions struct {
	// MaxCases limits the number of cases fetched. Zero fetches all.
	MaxCases int

	// OnCase, when set, is called before each case is fetched.
	OnCase func(index, total int, c Case)
}

// CollectStats counts what CollectSession fetched and skipped.
type CollectStats struct {
	Cases          int `json:"cases"`
	CasesFailed    int `json:"cases_failed"`
	Votes          int `json:"votes"`
	BallotsFailed  int `json:"ballots_failed"`
	BallotsDropped int `json:"ballots_dropped"`
}

// CollectSession fetches every case, vote and ballot of a session. Cases
// whose vote listing fails are skipped; votes whose ballots fail are kept
// without ballots. A session with no cases returns ErrSessionNotFound.
func (c *Client) CollectSession(ctx context.Context, sessionID string, opts CollectOptions) (*rollcall.SessionRecords, CollectStats, error) {
	log := c.logger.With(logger.FieldSession, sessionID)
	var stats CollectStats

	cases, err := c.Cases(ctx, sessionID)
	if err != nil {
		return nil, stats, err
	}
	if len(cases) == 0 {
		return nil, stats, errors.WithHint(errors.NewSessionNotFound(sessionID),
			"the export API lists no cases for this session")
	}

	records := &rollcall.SessionRecords{
		SessionID: sessionID,
		CaseCount: len(cases),
		Votes:     make([]rollcall.Vote, 0),
	}

	if opts.MaxCases > 0 && opts.MaxCases < len(cases) {
		cases = cases[:opts.MaxCases]
	}
	stats.Cases = len(cases)

	for i, sc := range cases {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		if opts.OnCase != nil {
			opts.OnCase(i, len(cases), sc)
		}

		headers, err := c.Votes(ctx, sc.ID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, stats, ctxErr
			}
			stats.CasesFailed++
			log.Warnw("Skipping case", logger.FieldCaseID, sc.ID, logger.FieldError, err)
			continue
		}

		for _, h := range headers {
			ballots, dropped, err := c.Ballots(ctx, h.ID)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, stats, ctxErr
				}
				stats.BallotsFailed++
				log.Warnw("Ballots unavailable", logger.FieldVoteID, h.ID, logger.FieldError, err)
			}
			stats.BallotsDropped += dropped

			records.Votes = append(records.Votes, rollcall.Vote{
				ID:              h.ID,
				CaseID:          sc.ID,
				CaseTitle:       sc.Title,
				Topic:           h.Topic,
				Date:            rollcall.ParseDate(h.Time),
				RecordedFor:     h.For,
				RecordedAgainst: h.Against,
				Adopted:         h.Adopted,
				Ballots:         ballots,
			})
		}
	}

	stats.Votes = len(records.Votes)
	log.Infow("Collected session",
		logger.FieldCount, stats.Votes,
		logger.FieldTotal, stats.Cases,
		logger.FieldSkipped, stats.CasesFailed)

	return records, stats, nil
}
