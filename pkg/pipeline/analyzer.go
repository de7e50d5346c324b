// Package pipeline wires ingestion, storage and the agreement core into the
// fetch and analysis workflows the CLI runs.
package pipeline

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/agreement"
	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/errors"
	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/logger"
	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/rollcall"
	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/timeseries"
)

// DefaultWorkers bounds concurrent session analyses when Analyzer.Workers is unset.
const DefaultWorkers = 4

// VoteLoader supplies the stored records of one session.
type VoteLoader interface {
	LoadVotes(sessionID string) (*rollcall.SessionRecords, error)
}

// Options groups the tuning of both analysis stages.
type Options struct {
	Agreement agreement.Options
	Series    timeseries.Options
}

// DefaultOptions returns the default tuning.
func DefaultOptions() Options {
	return Options{
		Agreement: agreement.DefaultOptions(),
		Series:    timeseries.DefaultOptions(),
	}
}

// Analyzer runs per-session analyses over stored records.
type Analyzer struct {
	Loader  VoteLoader
	Workers int
	Options Options
	Logger  *zap.SugaredLogger
}

// Result is the output of a full analysis run.
type Result struct {
	Analyses     []*agreement.SessionAnalysis
	Series       *timeseries.Series
	Presentation *timeseries.Presentation
}

// AnalyzeSessions analyses each session concurrently and returns the
// results in the order of ids. Sessions without stored records or without
// any vote carrying ballots are skipped with a warning; any other failure
// aborts the run.
func (a *Analyzer) AnalyzeSessions(ctx context.Context, ids []string) ([]timeseries.SessionInput, error) {
	if a.Loader == nil {
		return nil, errors.New("analyzer has no vote loader")
	}
	log := logger.OrDefault(a.Logger, "pipeline")

	workers := a.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	results := make([]*agreement.SessionAnalysis, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, id := range ids {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			analysis, err := a.analyze(id)
			if errors.IsMissingInput(err) {
				log.Warnw("Skipping session", logger.FieldSession, id, logger.FieldError, err.Error())
				return nil
			}
			if err != nil {
				return err
			}
			results[i] = analysis
			log.Debugw("Analysed session",
				logger.FieldSession, id,
				logger.FieldCount, analysis.VoteCount,
				"pairs", len(analysis.AllPairs))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inputs := make([]timeseries.SessionInput, 0, len(ids))
	for i, analysis := range results {
		if analysis != nil {
			inputs = append(inputs, timeseries.SessionInput{SessionID: ids[i], Analysis: analysis})
		}
	}
	return inputs, nil
}

func (a *Analyzer) analyze(sessionID string) (*agreement.SessionAnalysis, error) {
	records, err := a.Loader.LoadVotes(sessionID)
	if err != nil {
		return nil, errors.Wrapf(err, "load session %s", sessionID)
	}
	return agreement.AnalyzeSession(sessionID, records.Votes, a.Options.Agreement)
}

// Run analyses the sessions and builds the cross-session series. It fails
// with errors.ErrNoVotes when no session could be analysed.
func (a *Analyzer) Run(ctx context.Context, ids []string) (*Result, error) {
	inputs, err := a.AnalyzeSessions(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, errors.WithHint(
			errors.Wrapf(errors.ErrNoVotes, "none of %d sessions could be analysed", len(ids)),
			"fetch the sessions first")
	}

	analyses := make([]*agreement.SessionAnalysis, len(inputs))
	for i, in := range inputs {
		analyses[i] = in.Analysis
	}
	series := timeseries.Build(inputs, a.Options.Series)

	logger.OrDefault(a.Logger, "pipeline").Infow("Analysis complete",
		logger.FieldCount, len(inputs),
		logger.FieldSkipped, len(ids)-len(inputs),
		"pairs", len(series.ByPair))

	return &Result{
		Analyses:     analyses,
		Series:       series,
		Presentation: series.Presentation(),
	}, nil
}
