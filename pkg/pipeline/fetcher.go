package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/errors"
	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/logger"
	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/rollcall"
	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/store"
	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/stortinget"
)

// SessionSource collects the records of a session from upstream.
type SessionSource interface {
	CollectSession(ctx context.Context, sessionID string, opts stortinget.CollectOptions) (*rollcall.SessionRecords, stortinget.CollectStats, error)
	Parties(ctx context.Context, sessionID string) ([]rollcall.Party, error)
}

// Sink stores fetched records and the fetch manifest.
type Sink interface {
	SaveVotes(records *rollcall.SessionRecords) error
	SaveParties(sessionID string, parties []rollcall.Party) error
	LoadManifest() (*store.Manifest, error)
	SaveManifest(m *store.Manifest) error
}

// FetchReport summarizes a FetchSessions call.
type FetchReport struct {
	Fetched []string
	Failed  map[string]error
	Votes   int
}

// Fetcher downloads sessions one at a time and records each outcome in the
// manifest.
type Fetcher struct {
	Source SessionSource
	Sink   Sink
	Logger *zap.SugaredLogger

	// OnCase, when set, is passed to the source for progress reporting.
	OnCase func(sessionID string, index, total int)
}

// FetchSessions fetches each session in order. A session that fails is
// recorded as failed and the loop continues; cancellation stops it and
// returns the context error together with the report so far.
func (f *Fetcher) FetchSessions(ctx context.Context, ids []string, maxCases int) (*FetchReport, error) {
	if f.Source == nil || f.Sink == nil {
		return nil, errors.New("fetcher requires a source and a sink")
	}
	log := logger.OrDefault(f.Logger, "fetch")

	manifest, err := f.Sink.LoadManifest()
	if err != nil {
		return nil, err
	}

	report := &FetchReport{Failed: make(map[string]error)}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		started := time.Now()
		records, stats, err := f.fetchOne(ctx, id, maxCases)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			log.Errorw("Session fetch failed", logger.FieldSession, id, logger.FieldError, err.Error())
			report.Failed[id] = err
			manifest.Record(id, store.SessionFetch{Status: store.FetchFailed, Error: err.Error()})
		} else {
			report.Fetched = append(report.Fetched, id)
			report.Votes += len(records.Votes)
			manifest.Record(id, store.SessionFetch{
				Status:    store.FetchOK,
				VoteCount: len(records.Votes),
				CaseCount: records.CaseCount,
			})
			log.Infow("Session fetched",
				logger.FieldSession, id,
				logger.FieldCount, len(records.Votes),
				logger.FieldSkipped, stats.CasesFailed,
				logger.FieldDurationMS, time.Since(started).Milliseconds())
		}

		if err := f.Sink.SaveManifest(manifest); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, sessionID string, maxCases int) (*rollcall.SessionRecords, stortinget.CollectStats, error) {
	opts := stortinget.CollectOptions{MaxCases: maxCases}
	if f.OnCase != nil {
		opts.OnCase = func(index, total int, _ stortinget.Case) {
			f.OnCase(sessionID, index, total)
		}
	}

	records, stats, err := f.Source.CollectSession(ctx, sessionID, opts)
	if err != nil {
		return nil, stats, err
	}
	if err := f.Sink.SaveVotes(records); err != nil {
		return nil, stats, err
	}

	// The party list is auxiliary; a failure here does not fail the session.
	parties, err := f.Source.Parties(ctx, sessionID)
	if err == nil {
		err = f.Sink.SaveParties(sessionID, parties)
	}
	if err != nil && ctx.Err() == nil {
		logger.OrDefault(f.Logger, "fetch").Warnw("Party list not stored",
			logger.FieldSession, sessionID, logger.FieldError, err.Error())
	}
	return records, stats, nil
}
