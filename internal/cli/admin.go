package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"rag-chatbot/internal/app"

	"github.com/spf13/cobra"
)

func newCollectionCommand(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Manage the vector collection",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "ensure",
		Short: "Create the collection and its index when missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd.Context(), func(a *app.App) error {
				if err := a.Store.EnsureCollection(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Collection %s is ready\n", a.Config.Milvus.Collection)
				return nil
			})
		},
	})
	return cmd
}

var errUnhealthy = errors.New("service is unhealthy")

func newHealthCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Print the health report; exits non-zero when unhealthy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd.Context(), func(a *app.App) error {
				report := a.Health.Check(cmd.Context())
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
				if !report.Healthy() {
					return errUnhealthy
				}
				return nil
			})
		},
	}
}
