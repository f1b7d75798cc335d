package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"catalog-feed-miner/config"
	"catalog-feed-miner/internal/envutil"
	"catalog-feed-miner/internal/logs"
)

type rootFlags struct {
	configFile string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:           "feedminer",
		Short:         "Scrape the shop catalog and write Google/Meta product feeds",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errUsage
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.configFile, "config", envutil.String(os.Getenv, "CONFIG_FILE", ""), "Optional config file (yaml/json/toml)")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", envutil.Bool(os.Getenv, "FEEDMINER_VERBOSE", false), "Log progress to stderr")

	rootCmd.AddCommand(
		newRunCmd(flags),
		newLinksCmd(flags),
		newExtractCmd(flags),
		newImageCmd(flags),
	)
	return rootCmd
}

func (f *rootFlags) viper() *viper.Viper {
	v := config.NewViper()
	if path := strings.TrimSpace(f.configFile); path != "" {
		v.SetConfigFile(path)
	}
	if !f.verbose {
		v.Set("LOG_LEVEL", "error")
	}
	return v
}

func (f *rootFlags) load() (*config.Config, *zap.SugaredLogger, error) {
	cfg, err := config.NewConfig(f.viper())
	if err != nil {
		return nil, nil, err
	}
	l, err := logs.NewLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, l.Sugar(), nil
}

// usagef prints the command help and returns errUsage when cond holds.
func usagef(cmd *cobra.Command, cond bool) error {
	if !cond {
		return nil
	}
	_ = cmd.Help()
	return errUsage
}
