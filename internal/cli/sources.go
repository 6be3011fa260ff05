package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MrSnakeDoc/sourcehub/internal/app"
	"github.com/MrSnakeDoc/sourcehub/internal/auth"
	"github.com/MrSnakeDoc/sourcehub/internal/credentials"
	"github.com/MrSnakeDoc/sourcehub/internal/domain"
)

func newSourcesCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Inspect and probe sources",
	}
	cmd.AddCommand(newSourcesListCmd(v), newSourcesTestCmd(v))
	return cmd
}

func newSourcesListCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat(v)
			if err != nil {
				return err
			}
			return withCore(cmd.Context(), v, func(core *app.Core) error {
				return renderSources(cmd.OutOrStdout(), format, core.Manager.Sources(), core.Manager.ActiveSource().ID)
			})
		},
	}
}

func newSourcesTestCmd(v *viper.Viper) *cobra.Command {
	var (
		baseURL    string
		scheme     string
		credential string
	)
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test a connection without registering it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat(v)
			if err != nil {
				return err
			}
			s := domain.AuthScheme(scheme)
			if _, err := s.HeaderName(); err != nil {
				return err
			}

			// the candidate's credential is used once and never stored
			adapter := auth.NewAdapter(credentials.NewMemoryStore(), auth.StaticPlatform{}, nil, oneShotLogger(v))
			res := adapter.TestConnection(cmd.Context(), baseURL, s, credential)
			if err := renderTestResult(cmd.OutOrStdout(), format, baseURL, res); err != nil {
				return err
			}
			if res.Err != nil {
				return fmt.Errorf("connection test failed: %w", res.Err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "", "Base URL of the source")
	cmd.Flags().StringVar(&scheme, "scheme", string(domain.AuthSchemeAPIKey), "Auth scheme (api-key|secret-key)")
	cmd.Flags().StringVar(&credential, "credential", "", "API key or secret key")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func newHealthCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check every registered source once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat(v)
			if err != nil {
				return err
			}
			return withCore(cmd.Context(), v, func(core *app.Core) error {
				results := core.Manager.CheckAllHealth(cmd.Context())
				return renderHealth(cmd.OutOrStdout(), format, core.Manager.Sources(), results)
			})
		},
	}
}

func withCore(ctx context.Context, v *viper.Viper, fn func(*app.Core) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	core, err := app.NewCore(ctx, cfg, oneShotLogger(v))
	if err != nil {
		return err
	}
	defer core.Close()
	return fn(core)
}
