package main

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/longplay/lpvc/codec"
)

type globalOptions struct {
	ConfigFile string
	Verbose    bool
	LogFormat  string
}

// app carries the state shared by all subcommands.
type app struct {
	opts globalOptions
	v    *viper.Viper
	log  *logrus.Logger
}

func NewRootCommand() *cobra.Command {
	a := &app{
		v:   viper.New(),
		log: logrus.New(),
	}

	cmd := &cobra.Command{
		Use:           "lpvc",
		Short:         "LPVC lossless screen video codec",
		Long:          `lpvc compresses sequences of RGB images into LPVC stream files and restores them bit-exactly.`,
		Version:       fmt.Sprintf("%d", codec.Version),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	cmd.SetVersionTemplate("lpvc version {{.Version}}\n")

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.opts.ConfigFile, "config", "", "YAML file with encoder options")
	flags.BoolVar(&a.opts.Verbose, "verbose", false, "Log per-frame detail")
	flags.StringVar(&a.opts.LogFormat, "log-format", "text", "Log format (text or json)")

	cmd.RegisterFlagCompletionFunc("log-format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	cmd.AddCommand(newEncodeCommand(a))
	cmd.AddCommand(newDecodeCommand(a))
	cmd.AddCommand(newInfoCommand(a))

	return cmd
}

// setup configures logging and loads the optional config file.
func (a *app) setup(cmd *cobra.Command) error {
	a.log.SetOutput(cmd.ErrOrStderr())
	a.log.SetLevel(logrus.InfoLevel)
	if a.opts.Verbose {
		a.log.SetLevel(logrus.DebugLevel)
	}
	switch strings.ToLower(a.opts.LogFormat) {
	case "text":
		a.log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	case "json":
		a.log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return errors.Errorf("unknown log format %q", a.opts.LogFormat)
	}

	if a.opts.ConfigFile != "" {
		a.v.SetConfigFile(a.opts.ConfigFile)
		a.v.SetConfigType("yaml")
		if err := a.v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "cannot read config %s", a.opts.ConfigFile)
		}
		a.log.WithField("file", a.v.ConfigFileUsed()).Debug("Loaded config")
	}
	return nil
}
