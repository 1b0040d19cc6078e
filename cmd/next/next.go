package next

import (
	"github.com/spf13/cobra"

	"github.com/iscle/haven-go/internal/app"
)

// Command creates the command that picks the next wallpaper.
func Command(env *app.Env) *cobra.Command {
	var favorites, record, asJSON bool

	cmd := &cobra.Command{
		Use:   "next [query]",
		Short: "Pick the next wallpaper",
		Long:  "Returns a random landscape photo for the query, fetching from the search API when the cache is empty.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.Open()
			if err != nil {
				return err
			}
			defer a.Close()

			var query string
			if len(args) == 1 {
				query = args[0]
			}

			ctx := cmd.Context()
			photo, err := a.Service.GetRandomPhoto(ctx, query, favorites)
			if err != nil {
				return err
			}
			if record {
				if err := a.Service.RecordShown(ctx, photo); err != nil {
					return err
				}
			}

			if asJSON {
				return app.WriteJSON(cmd.OutOrStdout(), photo)
			}
			return app.WritePhoto(cmd.OutOrStdout(), photo)
		},
	}

	cmd.Flags().BoolVar(&favorites, "favorites", false, "Occasionally return a favorite instead")
	cmd.Flags().BoolVar(&record, "record", true, "Record the photo in the history")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the photo as JSON")

	return cmd
}
