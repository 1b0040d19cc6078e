package serve

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iscle/haven-go/internal/api"
	"github.com/iscle/haven-go/internal/app"
	"github.com/iscle/haven-go/internal/wallpaper"
)

// Command creates the command that serves the HTTP API.
func Command(env *app.Env) *cobra.Command {
	var (
		listen string
		rotate bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long:  "Serves photos, history, favorites and cache over HTTP, with a live history stream and Prometheus metrics.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.Open()
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := api.ConfigFromSettings(a.Settings)
			if listen != "" {
				cfg.Listen = listen
			}

			srv, err := api.New(cfg, a.Service,
				api.WithLogger(a.Logger("api")),
				api.WithMetrics(a.Metrics),
				api.WithBuildInfo(a.Build),
			)
			if err != nil {
				return err
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error { return srv.Run(ctx) })
			if rotate {
				rotator := wallpaper.NewRotator(a.Service, "", a.Settings.Photos.IncludeFavorites, a.Settings.RotationInterval(), nil)
				g.Go(func() error { return rotator.Run(ctx) })
			}
			return g.Wait()
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address (default: webserver.listen from the config)")
	cmd.Flags().BoolVar(&rotate, "rotate", false, "Also rotate wallpapers in the background")

	return cmd
}
