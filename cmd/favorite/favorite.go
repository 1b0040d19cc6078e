package favorite

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iscle/haven-go/internal/app"
)

// Command creates the favorite parent command
func Command(env *app.Env) *cobra.Command {
	favoriteCmd := &cobra.Command{
		Use:   "favorite",
		Short: "Manage favorite photos",
	}

	favoriteCmd.AddCommand(toggleCommand(env), checkCommand(env), listCommand(env))

	return favoriteCmd
}

func toggleCommand(env *app.Env) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <photo-id>",
		Short: "Flip the favorite flag of a photo from the history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.Open()
			if err != nil {
				return err
			}
			defer a.Close()

			favorite, err := a.Service.ToggleFavorite(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s favorite=%t\n", args[0], favorite)
			return nil
		},
	}
}

func checkCommand(env *app.Env) *cobra.Command {
	return &cobra.Command{
		Use:   "check <photo-id>",
		Short: "Report whether a photo is a favorite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.Open()
			if err != nil {
				return err
			}
			defer a.Close()

			favorite, err := a.Service.IsFavorite(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s favorite=%t\n", args[0], favorite)
			return nil
		},
	}
}

func listCommand(env *app.Env) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List favorite photos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.Open()
			if err != nil {
				return err
			}
			defer a.Close()

			photos, err := a.Service.GetFavorites(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return app.WriteJSON(cmd.OutOrStdout(), photos)
			}
			return app.WritePhotos(cmd.OutOrStdout(), photos)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print photos as JSON")

	return cmd
}
