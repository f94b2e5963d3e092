package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/scrypster/chronicle/internal/engine"
	"github.com/scrypster/chronicle/pkg/types"
)

func newIngestCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ingest <chapter> <file.json>",
		Short: "Apply a chapter's extraction batch",
		Long: `Apply one chapter's extraction batch atomically.

The batch is the JSON document produced by the extractor. Pass "-" to read
it from stdin. If any part of the batch is invalid nothing is applied and
every problem is listed.

Examples:
  chronicle ingest 12 ch12.json
  extractor ch12.txt | chronicle ingest 12 -`,
		Args: cobra.ExactArgs(2),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")

	cmd.RunE = a.withEngine(func(cmd *cobra.Command, args []string, eng *engine.Engine) error {
		chapter, err := parseChapter(args[0])
		if err != nil {
			return err
		}
		batch, err := readBatch(cmd.InOrStdin(), args[1])
		if err != nil {
			return err
		}

		report, err := eng.Ingest(cmd.Context(), chapter, batch)
		var verr *types.ValidationError
		if errors.As(err, &verr) {
			if asJSON {
				_ = printJSON(cmd.OutOrStdout(), verr)
			} else {
				printIssues(cmd.ErrOrStderr(), verr)
			}
			return fmt.Errorf("chapter %d rejected with %d issue(s)", chapter, len(verr.Issues))
		}
		if err != nil {
			return err
		}

		if asJSON {
			return printJSON(cmd.OutOrStdout(), report)
		}
		printReport(cmd.OutOrStdout(), report)
		return nil
	})
	return cmd
}

func readBatch(stdin io.Reader, path string) (*types.ExtractionResult, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening batch: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	var batch types.ExtractionResult
	dec := json.NewDecoder(r)
	if err := dec.Decode(&batch); err != nil {
		return nil, fmt.Errorf("decoding batch %s: %w", path, err)
	}
	return &batch, nil
}

func printIssues(w io.Writer, verr *types.ValidationError) {
	fmt.Fprintf(w, "Chapter %d rejected:\n", verr.Chapter)
	for _, is := range verr.Issues {
		fmt.Fprintf(w, "  - %s\n", is)
		for _, c := range is.Candidates {
			fmt.Fprintf(w, "      candidate: %s\n", c)
		}
	}
}

func printReport(w io.Writer, r *engine.IngestReport) {
	fmt.Fprintf(w, "Chapter %d ingested (run %s) in %s\n", r.Chapter, r.RunID, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  created:       %d\n", len(r.Created))
	fmt.Fprintf(w, "  appeared:      %d\n", len(r.Appeared))
	fmt.Fprintf(w, "  changes:       %d\n", r.Changes)
	fmt.Fprintf(w, "  relationships: %d\n", r.Relationships)
	fmt.Fprintf(w, "  scenes:        %d\n", r.Scenes)
	fmt.Fprintf(w, "  mentions:      %d adopted, %d warned, %d pending\n", r.Adopted, r.Warned, r.Pending)
	if r.Archived > 0 {
		fmt.Fprintf(w, "  archived:      %d\n", r.Archived)
	}
	for _, ref := range r.Created {
		fmt.Fprintf(w, "  + %s\n", ref)
	}
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn)
	}
}
