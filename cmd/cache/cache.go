package cache

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iscle/haven-go/internal/app"
)

// Command creates the cache parent command
func Command(env *app.Env) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the photo cache",
	}

	cacheCmd.AddCommand(clearCommand(env), statsCommand(env), warmCommand(env))

	return cacheCmd
}

func clearCommand(env *app.Env) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached photo; the history is kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.Open()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Service.ClearPhotoCache(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "photo cache cleared")
			return nil
		},
	}
}

func statsCommand(env *app.Env) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats [query]",
		Short: "Show the cache entry of a query",
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
			stats, err := a.Service.CacheStats(cmd.Context(), query)
			if err != nil {
				return err
			}
			if asJSON {
				return app.WriteJSON(cmd.OutOrStdout(), stats)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "key:     %s\n", stats.Key)
			if !stats.Exists {
				fmt.Fprintln(out, "cached:  no")
				return nil
			}
			fmt.Fprintf(out, "cached:  %s\n", stats.CachedAt.Local().Format(time.DateTime))
			fmt.Fprintf(out, "expired: %t\n", stats.Expired)
			fmt.Fprintf(out, "photos:  %d (%d shown)\n", stats.Total, stats.Shown)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print stats as JSON")

	return cmd
}

func warmCommand(env *app.Env) *cobra.Command {
	return &cobra.Command{
		Use:   "warm [query...]",
		Short: "Fetch photos for queries whose cache is empty",
		Long:  "Fills the cache for each query, two at a time. Without arguments the default query is warmed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.Open()
			if err != nil {
				return err
			}
			defer a.Close()

			queries := args
			if len(queries) == 0 {
				queries = []string{""}
			}

			results, err := a.Service.Warm(cmd.Context(), queries)
			out := cmd.OutOrStdout()
			for _, r := range results {
				switch {
				case r.Err != nil:
					fmt.Fprintf(out, "%s\tfailed: %v\n", r.Query, r.Err)
				case r.Fetched:
					fmt.Fprintf(out, "%s\tfetched\n", r.Query)
				default:
					fmt.Fprintf(out, "%s\talready cached\n", r.Query)
				}
			}
			return err
		},
	}
}
