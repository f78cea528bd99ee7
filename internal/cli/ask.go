package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"rag-chatbot/internal/app"
	"rag-chatbot/internal/core/chat"

	"github.com/spf13/cobra"
)

func newAskCommand(r *runner) *cobra.Command {
	var (
		asJSON         bool
		conversationID string
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return fmt.Errorf("question is empty")
			}
			req := chat.Request{Message: question}
			if conversationID != "" {
				req.ConversationID = &conversationID
			}

			return r.withApp(cmd.Context(), func(a *app.App) error {
				reply := a.Chat.Chat(cmd.Context(), req)
				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(reply)
				}

				fmt.Fprintln(out, reply.Response)
				meta := reply.SearchMetadata
				fmt.Fprintf(out, "\nSources: %s\n", strings.Join(reply.Sources, ", "))
				fmt.Fprintf(out, "Documents: %d of %d (highest %.3f, avg %.3f, threshold %v)\n",
					meta.DocumentsFound, meta.TotalDocumentsSearched, meta.HighestScore, meta.AvgScore, meta.SimilarityThreshold)
				if meta.Reason != "" {
					fmt.Fprintf(out, "Reason: %s\n", meta.Reason)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the reply as JSON")
	cmd.Flags().StringVar(&conversationID, "conversation", "", "conversation id to record the exchange under")
	return cmd
}
