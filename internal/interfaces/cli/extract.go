package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/MedRx-Intelligence/internal/config"
	"github.com/turtacn/MedRx-Intelligence/internal/intelligence/rxextractor"
)

// newExtractCmd builds the one-shot extraction command.  It runs the full
// pipeline on a single text without any backing infrastructure, which makes
// it the fastest way to debug lexicon or pattern changes.
func newExtractCmd() *cobra.Command {
	var text string

	cmd := &cobra.Command{
		Use:   "extract [file]",
		Short: "Extract medication records from prescription text",
		Long: "Runs the extraction pipeline on a single prescription text and prints\n" +
			"the structured result.  Reads the named file, stdin when the file is\n" +
			"\"-\", or the --text flag.",
		Example: "  medrx extract prescription.txt\n" +
			"  cat prescription.txt | medrx extract -\n" +
			"  medrx extract --text \"Amoxicillin 500mg three times daily for 7 days\" -o json",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			input, err := readExtractInput(cmd, args, text)
			if err != nil {
				return err
			}

			// Extraction needs no external services, so a missing config
			// file is fine: fall back to built-in extractor defaults.
			var ecfg config.ExtractorConfig
			if cliCtx.Config != nil {
				ecfg = cliCtx.Config.Extractor
			}
			extractor, err := newExtractor(ecfg, nil, cliCtx.Logger)
			if err != nil {
				return fmt.Errorf("extractor: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cliCtx.Options.Timeout)
			defer cancel()

			result, err := extractor.Extract(ctx, input)
			if err != nil {
				return fmt.Errorf("extract: %w", err)
			}
			return PrintResult(cmd, extractionReport{result})
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "prescription text to extract (instead of a file)")
	return cmd
}

// readExtractInput resolves the prescription text from, in priority order,
// the --text flag, stdin ("-"), or the named file.
func readExtractInput(cmd *cobra.Command, args []string, text string) (string, error) {
	if text != "" {
		return text, nil
	}
	if len(args) == 0 {
		return "", fmt.Errorf("nothing to extract: pass a file, \"-\" for stdin, or --text")
	}
	if args[0] == "-" {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(raw), nil
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read %s: %w", args[0], err)
	}
	return string(raw), nil
}

// extractionReport adapts an ExtractionResult for the shared output
// helpers.
type extractionReport struct {
	*rxextractor.ExtractionResult
}

func (r extractionReport) String() string {
	var b strings.Builder
	if r.Degraded {
		fmt.Fprintf(&b, "degraded: %s\n", r.DegradedReason)
	}
	fmt.Fprintf(&b, "%d record(s), quality %.0f, %dms\n", r.RecordCount, r.QualityScore, r.ProcessingTimeMs)
	for _, rec := range r.Records {
		fmt.Fprintf(&b, "  - %s", rec.Name)
		if rec.Dosage != "" {
			fmt.Fprintf(&b, " | %s", rec.Dosage)
		}
		if rec.Frequency != "" {
			fmt.Fprintf(&b, " | %s", rec.Frequency)
		}
		if rec.Duration != "" {
			fmt.Fprintf(&b, " | %s", rec.Duration)
		}
		fmt.Fprintf(&b, " (%.2f)\n", rec.Confidence)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r extractionReport) TableHeaders() []string {
	return []string{"NAME", "DOSAGE", "FREQUENCY", "DURATION", "CONFIDENCE"}
}

func (r extractionReport) TableRows() [][]string {
	rows := make([][]string, 0, len(r.Records))
	for _, rec := range r.Records {
		rows = append(rows, []string{
			rec.Name,
			rec.Dosage,
			rec.Frequency,
			rec.Duration,
			fmt.Sprintf("%.2f", rec.Confidence),
		})
	}
	return rows
}
