package cli

import (
	"fmt"
	"strings"

	"rag-chatbot/internal/app"
	"rag-chatbot/internal/services/ingest"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func newIngestCommand(r *runner) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "ingest <path|s3://bucket/key>...",
		Short: "Load documents into the vector store",
		Long: `Load documents from files, directories or S3. JSON files hold ready-made
documents ({"documents":[{"id","content","metadata"}]} or a bare array);
text, markdown and PDF files are chunked first. Directories and S3 prefixes
are filtered by ingest.include.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd.Context(), func(a *app.App) error {
				out := cmd.OutOrStdout()
				total := ingest.Report{}
				for _, uri := range args {
					var progress ingest.Progress
					if !quiet {
						progress = newProgress(cmd, uri)
					}
					report, err := a.Ingest.IngestURI(cmd.Context(), uri, progress)
					total.Files += report.Files
					total.Documents += report.Documents
					total.Written += report.Written
					total.Skipped = append(total.Skipped, report.Skipped...)
					if err != nil {
						return fmt.Errorf("ingest %s: %w", uri, err)
					}
				}

				fmt.Fprintf(out, "Ingestion complete:\n")
				fmt.Fprintf(out, "  Files:     %d\n", total.Files)
				fmt.Fprintf(out, "  Documents: %d\n", total.Documents)
				fmt.Fprintf(out, "  Written:   %d\n", total.Written)
				if len(total.Skipped) > 0 {
					fmt.Fprintf(out, "  Skipped:   %s\n", strings.Join(total.Skipped, ", "))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "disable the progress bar")
	return cmd
}

// newProgress returns a callback that draws a bar once the total is known.
func newProgress(cmd *cobra.Command, uri string) ingest.Progress {
	var bar *progressbar.ProgressBar
	return func(embedded, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription(fmt.Sprintf("[cyan]Ingesting[reset] %s", uri)),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(cmd.ErrOrStderr())
				}),
			)
		}
		_ = bar.Set(embedded)
	}
}
