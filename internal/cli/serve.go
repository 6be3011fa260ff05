package cli

import (
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/sourcehub/internal/app"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: `Runs the source registry daemon. Configuration comes from SOURCEHUB_* environment
variables; see SOURCEHUB_LOCAL_URL and SOURCEHUB_REDIS_ADDR for the required ones.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			return a.Run()
		},
	}
}
