package main

import (
	"strings"

	"github.com/iottrends-tech/dvb-s2-SDR/internal/app"
	"github.com/iottrends-tech/dvb-s2-SDR/internal/config"
	"github.com/iottrends-tech/dvb-s2-SDR/internal/dvbs2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type rootOptions struct {
	configPath string
	debug      bool
	dryRun     bool
	metrics    string

	// Set once a subcommand passed flag and argument validation
	started bool
}

func newRootCmd() (*cobra.Command, *rootOptions) {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           config.ProductName,
		Short:         "DVB-S2 transmit and receive with an SDR",
		Long:          `Configure a DVB-S2 flowgraph for the first attached SDR and run it until interrupted`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "TOML config file (default "+config.DefaultConfigPath+" if present)")
	pf.BoolVar(&opts.debug, "debug", false, "log the resolved configuration and enable debug output")
	pf.BoolVar(&opts.dryRun, "dry-run", false, "print the assembled flowgraph and exit")
	pf.StringVar(&opts.metrics, "metrics", "", "serve Prometheus metrics on this address, e.g. :9100")

	root.AddCommand(
		newDirectionCmd(config.Receive, opts),
		newDirectionCmd(config.Transmit, opts),
	)

	return root, opts
}

func newDirectionCmd(direction config.Direction, opts *rootOptions) *cobra.Command {
	defaults := config.Default().Receive
	cmd := &cobra.Command{
		Use:   "rx",
		Short: "Receive a DVB-S2 stream and play it",
		Args:  cobra.NoArgs,
	}

	if direction == config.Transmit {
		defaults = config.Default().Transmit
		cmd.Use = "tx"
		cmd.Short = "Transmit a transport stream as DVB-S2, stop with Enter"
	}

	flags := cmd.Flags()
	flags.Float64("freq", defaults.Freq, "center frequency in Hz")
	flags.Float64("rate", defaults.Rate, "sample rate in samples per second")
	flags.Float64("gain", defaults.Gain, "gain in dB")
	flags.String("modcod", defaults.ModCod, "modulation and coding, one of "+modCodList())
	flags.Float64("rolloff", defaults.RollOff, "roll-off factor, one of 0.2, 0.25, 0.35")
	flags.Int("port", defaults.Port, "UDP port of the transport stream")
	if direction == config.Transmit {
		flags.Bool("pilots", defaults.Pilots, "insert pilot symbols")
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		opts.started = true

		a, err := app.Setup(app.Flags{ConfigPath: opts.configPath, Debug: opts.debug, Metrics: opts.metrics})
		if err != nil {
			return err
		}
		defer a.Shutdown()

		params, err := parameters(cmd.Flags(), a.Conf.Defaults(direction))
		if err != nil {
			return err
		}
		params.Debug = a.Debug(opts.debug)

		if opts.dryRun {
			return a.DryRun(cmd.Context(), direction, params, cmd.OutOrStdout())
		}
		return a.Run(cmd.Context(), direction, params)
	}

	return cmd
}

func modCodList() string {
	names := make([]string, 0, len(dvbs2.ModCods()))
	for _, m := range dvbs2.ModCods() {
		names = append(names, string(m))
	}
	return strings.Join(names, ", ")
}

// parameters starts from the file defaults, only flags given on the command line override them
func parameters(flags *pflag.FlagSet, defaults config.DirectionConfig) (config.Parameters, error) {
	p := defaults.Parameters()

	for _, f := range []struct {
		name string
		set  func() error
	}{
		{"freq", func() (err error) { p.Freq, err = flags.GetFloat64("freq"); return }},
		{"rate", func() (err error) { p.Rate, err = flags.GetFloat64("rate"); return }},
		{"gain", func() (err error) { p.Gain, err = flags.GetFloat64("gain"); return }},
		{"modcod", func() (err error) { p.ModCod, err = flags.GetString("modcod"); return }},
		{"rolloff", func() (err error) { p.RollOff, err = flags.GetFloat64("rolloff"); return }},
		{"port", func() (err error) { p.Port, err = flags.GetInt("port"); return }},
		{"pilots", func() (err error) { p.Pilots, err = flags.GetBool("pilots"); return }},
	} {
		if flags.Lookup(f.name) == nil || !flags.Changed(f.name) {
			continue
		}
		if err := f.set(); err != nil {
			return p, err
		}
	}

	return p, nil
}
