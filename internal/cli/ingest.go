package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/cd8875/clinical-ai-assistant/internal/adapter/parser"
	"github.com/cd8875/clinical-ai-assistant/internal/port"
	"github.com/cd8875/clinical-ai-assistant/internal/usecase"
)

var (
	ingestID   string
	ingestText string
	ingestMeta []string
	ingestJSON bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path...]",
	Short: "Index report files or inline text",
	Long: `Parse, chunk and embed reports into the index. Directories are walked
with the ingest include/exclude globs; .txt and .md files are supported.

Each document gets a random UUID unless --id is given for a single file or
for --text.

Examples:
  clinrag ingest reports/
  clinrag ingest echo.txt --id echo-2024-03 --meta ward=cardiology
  clinrag ingest --text "BP 150/95, started lisinopril 10mg" --id note-1`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&ingestID, "id", "", "document id (single file or --text only)")
	ingestCmd.Flags().StringVar(&ingestText, "text", "", "index this text instead of files")
	ingestCmd.Flags().StringArrayVar(&ingestMeta, "meta", nil, "metadata key=value (repeatable)")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output as JSON")
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestText == "" && len(args) == 0 {
		return fmt.Errorf("nothing to ingest: pass paths or --text")
	}
	extra, err := parseKeyValues(ingestMeta)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	if ingestText != "" {
		id := ingestID
		if id == "" {
			id = uuid.NewString()
		}
		parsed := parser.ParseText(ingestText)
		for k, v := range extra {
			parsed.Metadata[k] = v
		}
		res, err := a.index.Insert(ctx, id, parsed.Text, parsed.Metadata)
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
		if ingestJSON {
			return printJSON(out, res)
		}
		fmt.Fprintf(out, "Indexed %s (%d chunks)\n", res.DocumentID, res.ChunksAdded)
		return nil
	}

	files, err := a.ingest.Collect(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(out, "No report files found.")
		return nil
	}

	var result *usecase.IngestResult
	if ingestID != "" {
		if len(files) != 1 {
			return fmt.Errorf("--id needs exactly one file, found %d", len(files))
		}
		res, err := a.ingest.IngestFile(ctx, files[0], ingestID, extra)
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
		result = &usecase.IngestResult{Inserted: []usecase.InsertResult{*res}}
	} else {
		bar := newProgressBar(len(files), "Ingesting", ingestJSON)
		start := time.Now()
		processed := 0
		result, err = a.ingest.IngestAll(ctx, files, extra, func(f port.FileInfo) {
			processed++
			_ = bar.Add(1)
			if remaining := len(files) - processed; remaining > 0 {
				eta := time.Since(start) / time.Duration(processed) * time.Duration(remaining)
				bar.Describe(fmt.Sprintf("[cyan]Ingesting[reset] %s ETA: %s", filepath.Base(f.Path), formatDuration(eta)))
			}
		})
		if err != nil {
			return fmt.Errorf("ingest interrupted: %w", err)
		}
	}

	if ingestJSON {
		return printJSON(out, result)
	}

	chunks := 0
	for _, r := range result.Inserted {
		chunks += r.ChunksAdded
	}
	fmt.Fprintf(out, "\nIngest complete:\n")
	fmt.Fprintf(out, "  Documents indexed: %d\n", len(result.Inserted))
	fmt.Fprintf(out, "  Chunks created:    %d\n", chunks)
	for _, r := range result.Inserted {
		fmt.Fprintf(out, "  - %s (%d chunks)\n", r.DocumentID, r.ChunksAdded)
	}
	if len(result.Failed) > 0 {
		fmt.Fprintf(out, "\nWarnings:\n")
		for _, f := range result.Failed {
			fmt.Fprintf(out, "  - %s: %s\n", f.Path, f.Error)
		}
	}
	return nil
}

func newProgressBar(total int, label string, silent bool) *progressbar.ProgressBar {
	if silent {
		return progressbar.DefaultSilent(int64(total))
	}
	return progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWriter(progressWriter()),
		progressbar.OptionSetDescription("[cyan]"+label+"[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(progressWriter())
		}),
	)
}

// Progress goes to stderr so --json output stays parseable.
func progressWriter() *os.File {
	return os.Stderr
}
