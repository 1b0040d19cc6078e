package history

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iscle/haven-go/internal/app"
)

// Command creates the history parent command
func Command(env *app.Env) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or clear the list of shown photos",
	}

	historyCmd.AddCommand(listCommand(env), clearCommand(env))

	return historyCmd
}

func listCommand(env *app.Env) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List shown photos, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.Open()
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.Service.History(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return app.WriteJSON(cmd.OutOrStdout(), records)
			}
			return app.WriteHistory(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")

	return cmd
}

func clearCommand(env *app.Env) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the whole history, favorites included",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.Open()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Service.ClearHistory(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "history cleared")
			return nil
		},
	}
}
