package main

import (
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/agreement"
	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/errors"
)

func verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Recount computed figures from the stored votes",
		Long: `Recount stances and agreement figures vote by vote so they can be
compared with the Storting's own records.

Example:
  stortingsvotering verify vote 2023-2024 17001
  stortingsvotering verify pair 2023-2024 A H
  stortingsvotering verify sample 2023-2024 --count 5`,
	}

	cmd.AddCommand(verifyVoteCmd())
	cmd.AddCommand(verifyPairCmd())
	cmd.AddCommand(verifySampleCmd())

	return cmd
}

func verifyVoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vote <session> <vote-id>",
		Short: "Show per-party tallies and stances for one vote",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := fileStore.LoadVotes(args[0])
			if err != nil {
				return err
			}
			vote, ok := records.FindVote(args[1])
			if !ok {
				return errors.WithHint(
					errors.Newf("vote %s not found in session %s", args[1], args[0]),
					"vote ids are listed in the stored voteringer file")
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Vote %s: %s\n", vote.ID, vote.Topic)
			if !vote.Date.IsZero() {
				fmt.Fprintf(out, "Date: %s\n", vote.Date.Format("2006-01-02 15:04"))
			}
			fmt.Fprintf(out, "Recorded: %d for, %d against, adopted: %t\n\n",
				vote.RecordedFor, vote.RecordedAgainst, vote.Adopted)

			data := pterm.TableData{{"PARTY", "FOR", "AGAINST", "OTHER", "POSITION"}}
			for _, t := range agreement.ExplainVote(vote) {
				data = append(data, []string{
					t.PartyID,
					fmt.Sprint(t.For),
					fmt.Sprint(t.Against),
					fmt.Sprint(t.Other),
					string(t.Position),
				})
			}
			return renderTable(out, data)
		},
	}
}

func verifyPairCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pair <session> <party-a> <party-b>",
		Short: "Recount the agreement of two parties with example votes",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			examples, _ := cmd.Flags().GetInt("examples")
			formatStr, _ := cmd.Flags().GetString("format")

			records, err := fileStore.LoadVotes(args[0])
			if err != nil {
				return err
			}
			v := agreement.VerifyPair(args[1], args[2], records.WithBallots(), examples)

			out := cmd.OutOrStdout()
			if formatStr == "json" {
				return writeJSON(out, v)
			}
			renderVerification(out, v)

			// Compare with the stored analysis when there is one.
			if analysis, err := fileStore.LoadAnalysis(args[0]); err == nil {
				if stored, ok := analysis.Percent(v.PartyA, v.PartyB); ok {
					fmt.Fprintf(out, "\nStored analysis: %.1f%%\n", stored)
				}
			}
			return nil
		},
	}

	cmd.Flags().Int("examples", 5, "Example votes to show of each kind")
	cmd.Flags().StringP("format", "f", "text", "Output format (text, json)")

	return cmd
}

func renderVerification(out io.Writer, v agreement.PairVerification) {
	fmt.Fprintf(out, "%s and %s\n", v.PartyA, v.PartyB)
	fmt.Fprintf(out, "Common votes: %d\n", v.Total)
	if v.Percent == nil {
		fmt.Fprintln(out, "The parties never both took a stance.")
		return
	}
	fmt.Fprintf(out, "Agree: %d  Disagree: %d  Agreement: %.1f%%\n", v.Agree, v.Disagree, *v.Percent)

	printExamples := func(title string, examples []agreement.PairExample) {
		if len(examples) == 0 {
			return
		}
		fmt.Fprintf(out, "\n%s:\n", title)
		for _, ex := range examples {
			fmt.Fprintf(out, "  %-8s %s/%s  %s\n", ex.VoteID, ex.StanceA, ex.StanceB, ex.Topic)
		}
	}
	printExamples("Agreed", v.AgreeExamples)
	printExamples("Disagreed", v.DisagreeExamples)
}

func verifySampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample <session>",
		Short: "Recount a random sample of pairs and compare with the stored analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, _ := cmd.Flags().GetInt("count")
			seed, _ := cmd.Flags().GetUint64("seed")

			analysis, err := fileStore.LoadAnalysis(args[0])
			if err != nil {
				return errors.WithHint(err, "run the analyze command for this session first")
			}
			records, err := fileStore.LoadVotes(args[0])
			if err != nil {
				return err
			}

			if seed == 0 {
				seed = uint64(time.Now().UnixNano())
			}
			pairs := samplePairs(analysis.AllPairs, count, rand.New(rand.NewPCG(seed, seed)))
			checks := agreement.SpotCheckPairs(analysis, records.WithBallots(), pairs)

			out := cmd.OutOrStdout()
			data := pterm.TableData{{"PAIR", "STORED", "RECOUNTED", "MATCH"}}
			mismatches := 0
			for _, c := range checks {
				recounted := "-"
				if c.Recomputed != nil {
					recounted = fmt.Sprintf("%.1f", *c.Recomputed)
				}
				match := "yes"
				if !c.Match {
					match = "NO"
					mismatches++
				}
				data = append(data, []string{c.Pair.String(), fmt.Sprintf("%.1f", c.Stored), recounted, match})
			}
			if err := renderTable(out, data); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nSeed: %d\n", seed)

			if mismatches > 0 {
				return errors.WithHint(
					errors.Newf("%d of %d pairs differ from the stored analysis", mismatches, len(checks)),
					"re-run the analyze command; the stored analysis may predate the votes")
			}
			return nil
		},
	}

	cmd.Flags().Int("count", 5, "Number of pairs to check")
	cmd.Flags().Uint64("seed", 0, "Random seed (0 = time based)")

	return cmd
}

// samplePairs picks up to n distinct pairs from records.
func samplePairs(records []agreement.PairRecord, n int, r *rand.Rand) []agreement.PartyPair {
	pairs := make([]agreement.PartyPair, len(records))
	for i, rec := range records {
		pairs[i] = rec.PartyPair
	}
	r.Shuffle(len(pairs), func(i, j int) {
		pairs[i], pairs[j] = pairs[j], pairs[i]
	})
	if n >= 0 && n < len(pairs) {
		pairs = pairs[:n]
	}
	return pairs
}
