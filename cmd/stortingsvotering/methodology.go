package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/errors"
)

const methodologyTemplate = `# Methodology: Storting roll-call agreement

## Data source

All data comes from the Storting's open data API:
- URL: %s
- Licence: open data, free to use
- Requirement: the Storting must be credited as the source

Roll-call results are available from session %s onwards.

## Definitions

### A party's stance on a vote

For each vote the stance of a party is determined as follows:

1. Count the party's representatives who voted FOR.
2. Count the party's representatives who voted AGAINST.
3. The party's stance is the side with more votes.

Example: 25 representatives voted FOR and 3 voted AGAINST, so the
party's stance is FOR.

Special cases:
- Equal numbers FOR and AGAINST: the party is split and left out of the
  agreement calculation for that vote.
- Every representative absent or abstaining: the party is left out of that
  vote.

### Agreement between two parties

Two parties AGREE on a vote when both are FOR or both are AGAINST. They
DISAGREE when one is FOR and the other AGAINST. Votes where either party
has no stance are not counted for the pair.

### Agreement percentage

    agreement_percent = agree_count / total * 100

where total is the number of votes on which both parties took a stance.
Percentages are rounded to one decimal.

### Party statistics

- for_percent: share of the party's stances that were FOR.
- winning_side_percent: share of the party's stances that matched the
  recorded outcome. The outcome is FOR when more representatives were
  recorded for than against, and AGAINST otherwise.

### Changes across sessions

- Average: mean of a pair's percentages over the sessions where it exists.
- Change: the last session's percentage minus the first.
- Stability: the spread between the highest and lowest percentage,
  computed for pairs present in at least %d sessions.

## Limitations

1. Party discipline. Most votes follow party lines. Representatives who
   break with their party do not change the stance as long as they are
   in the minority.
2. Absence. Absent representatives are not counted. High absence in a
   party can affect the figures.

## Verification

Every figure can be recounted from the stored votes:

    stortingsvotering verify vote <session> <vote-id>
    stortingsvotering verify pair <session> <party-a> <party-b>
    stortingsvotering verify sample <session>
`

func methodologyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "methodology",
		Short: "Write a document explaining every calculation",
		Long: `Print the methodology document and write it to a file, for publishing
alongside the results.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")

			doc := renderMethodology()
			fmt.Fprint(cmd.OutOrStdout(), doc)

			if output == "" {
				return nil
			}
			if err := os.WriteFile(output, []byte(doc), 0o644); err != nil {
				return errors.Wrapf(err, "write %s", output)
			}
			pterm.Success.Printf("Methodology written to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "METHODOLOGY.md", "File to write (empty to only print)")

	return cmd
}

func renderMethodology() string {
	first := "2011-2012"
	if len(cfg.Sessions) > 0 {
		first = cfg.Sessions[0]
	}
	baseURL := strings.TrimSuffix(cfg.API.BaseURL, "/eksport")
	return fmt.Sprintf(methodologyTemplate, baseURL, first, cfg.Analysis.MinStableSessions)
}
