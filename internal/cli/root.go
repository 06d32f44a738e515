// Package cli is the gymtrack client command line.
package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/msomdec/gymtrack/internal/config"
)

// options holds the persistent flags and the configuration they resolve to.
type options struct {
	configFile string
	verbose    bool
	json       bool

	v   *viper.Viper
	cfg *config.Config
}

// NewRootCommand builds the gymtrack command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "gymtrack",
		Short:         "Offline-first workout tracker client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (default gymtrack.yaml in . or the data dir)")
	flags.String("server", "", "server base URL")
	flags.String("data-dir", "", "directory for the local mirror and logs")
	flags.String("persistence", "", "local persistence strategy: snapshot or journal")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr at the configured level")
	flags.BoolVar(&opts.json, "json", false, "print results as JSON")

	root.AddCommand(
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newInitCmd(opts),
		newStatusCmd(opts),
		newPullCmd(opts),
		newPushCmd(opts),
		newSyncCmd(opts),
		newRunCmd(opts),
		newResetCmd(opts),
		newTodayCmd(opts),
		newHistoryCmd(opts),
		newSessionCmd(opts),
		newSetCmd(opts),
		newDayCmd(opts),
		newSelectCmd(opts),
	)
	return root
}

var flagKeys = map[string]string{
	"server":      config.KeyServerURL,
	"data-dir":    config.KeyDataDir,
	"persistence": config.KeyPersistence,
	"log-level":   config.KeyLogLevel,
}

func (o *options) load(cmd *cobra.Command) error {
	v, err := config.New(o.configFile)
	if err != nil {
		return err
	}
	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, cmd.Root().PersistentFlags().Lookup(flag)); err != nil {
			return err
		}
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	o.v, o.cfg = v, cfg
	return nil
}
