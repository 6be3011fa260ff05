// Package cli holds the sourcehub command tree.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MrSnakeDoc/sourcehub/internal/config"
	"github.com/MrSnakeDoc/sourcehub/internal/logger"
)

const (
	keyLogLevel = "log-level"
	keyOutput   = "output"

	outputTable = "table"
	outputJSON  = "json"
)

// NewRootCmd builds the command tree. Each call returns fresh commands, so tests can run
// them in isolation.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("SOURCEHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "sourcehub",
		Short:         "Registry and aggregator for team resource sources",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().String(keyLogLevel, "warn", "Log level for one-shot commands (debug|info|warn|error)")
	root.PersistentFlags().StringP(keyOutput, "o", outputTable, "Output format (table|json)")
	_ = v.BindPFlag(keyLogLevel, root.PersistentFlags().Lookup(keyLogLevel))
	_ = v.BindPFlag(keyOutput, root.PersistentFlags().Lookup(keyOutput))

	root.AddCommand(
		newServeCmd(),
		newSourcesCmd(v),
		newHealthCmd(v),
		newVersionCmd(v),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func outputFormat(v *viper.Viper) (string, error) {
	switch f := strings.ToLower(v.GetString(keyOutput)); f {
	case outputTable, outputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", f)
	}
}

// oneShotLogger logs to stderr at the --log-level, without colors.
func oneShotLogger(v *viper.Viper) logger.Logger {
	return logger.New(v.GetString(keyLogLevel), false)
}

// loadConfig turns the config loader's panics into errors for one-shot commands.
func loadConfig() (cfg *config.Config, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return config.Load(), nil
}
