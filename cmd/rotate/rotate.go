package rotate

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iscle/haven-go/internal/app"
	"github.com/iscle/haven-go/internal/model"
	"github.com/iscle/haven-go/internal/wallpaper"
)

// Command creates the command that rotates wallpapers until interrupted.
func Command(env *app.Env) *cobra.Command {
	var (
		interval  time.Duration
		favorites bool
		count     int
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "rotate [query]",
		Short: "Rotate wallpapers on an interval",
		Long:  "Shows a new photo immediately and then every interval, recording each one in the history. Stops on interrupt.",
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
			if !cmd.Flags().Changed("interval") {
				interval = a.Settings.RotationInterval()
			}
			if !cmd.Flags().Changed("favorites") {
				favorites = a.Settings.Photos.IncludeFavorites
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			out := cmd.OutOrStdout()
			shown := 0
			rotator := wallpaper.NewRotator(a.Service, query, favorites, interval, func(photo *model.Photo, err error) {
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "rotation failed: %v\n", err)
					return
				}
				if asJSON {
					_ = app.WriteJSON(out, photo)
				} else {
					fmt.Fprintf(out, "%s\t%s\t%s\n", time.Now().Format(time.TimeOnly), photo.ID, photo.FullImageURL)
				}
				shown++
				if count > 0 && shown >= count {
					cancel()
				}
			})

			return rotator.Run(ctx)
		},
	}

	cmd.Flags().DurationVarP(&interval, "interval", "i", 0, "Rotation interval (default: photos.interval from the config)")
	cmd.Flags().BoolVar(&favorites, "favorites", false, "Occasionally show a favorite (default: photos.includefavorites)")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Stop after this many photos, 0 runs until interrupted")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print each photo as JSON")

	return cmd
}
