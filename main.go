package main

import (
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"rcptr_go/pkg/config"
	"rcptr_go/pkg/memory"
	"rcptr_go/pkg/scenario"
)

func main() {
	if err := NewRootCommand(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

// Options holds the flags shared by every command
type Options struct {
	// ConfigPath is the configuration file; empty means rcptr.yaml if present
	ConfigPath string
	LogLevel   string
	LogFormat  string
	Metrics    bool
	FailFast   bool

	cfg      *config.Config
	log      logr.Logger
	registry *prometheus.Registry
	in       io.Reader
	out      io.Writer
	errOut   io.Writer
}

// AddFlags adds flags for the options to a flagset
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	if fs == nil {
		fs = pflag.CommandLine
	}
	fs.StringVarP(&o.ConfigPath, "config", "c", "", "path to the configuration file (default "+config.DefaultFile+" if present)")
	fs.StringVar(&o.LogLevel, "log-level", config.INFO.String(), "log level: ERROR, INFO or DEBUG")
	fs.StringVar(&o.LogFormat, "log-format", config.TEXT.String(), "log format: TEXT or JSON")
	fs.BoolVar(&o.Metrics, "metrics", false, "print block lifecycle counters after each run")
	fs.BoolVar(&o.FailFast, "fail-fast", false, "stop a script at its first failed expectation")
}

// Complete loads the configuration file, applies the flags that were set
// explicitly and sets up logging and metrics.
func (o *Options) Complete(fs *pflag.FlagSet) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return err
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = o.LogLevel
	}
	if fs.Changed("log-format") {
		cfg.LogFormat = o.LogFormat
	}
	if fs.Changed("metrics") {
		cfg.Metrics = o.Metrics
	}
	if fs.Changed("fail-fast") {
		cfg.FailFast = o.FailFast
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg

	log, err := cfg.Logger(o.errOut)
	if err != nil {
		return err
	}
	o.log = log.WithValues("run", uuid.New().String())
	memory.SetLogger(o.log)

	if cfg.Metrics && o.registry == nil {
		o.registry = prometheus.NewRegistry()
		if err := memory.RegisterMetrics(o.registry); err != nil {
			return err
		}
	}
	return nil
}

func (o *Options) newRunner(name string) *scenario.Runner {
	return scenario.NewRunner(
		scenario.WithLogger(o.log.WithValues("script", name)),
		scenario.WithOutput(o.out),
		scenario.WithFailFast(o.cfg.FailFast),
	)
}

// runScript executes one script and prints its summary. Failed
// expectations are returned as an error.
func (o *Options) runScript(name, src string) error {
	report, err := o.newRunner(name).Run(src)
	if err != nil {
		return errors.Wrap(err, name)
	}
	o.printReport(name, report)
	if err := report.Err(); err != nil {
		return errors.Wrapf(err, "%s: expectations failed", name)
	}
	return nil
}

func (o *Options) printReport(name string, report *scenario.Report) {
	failed := 0
	if report.Failures != nil {
		failed = len(report.Failures.Errors)
	}
	fmt.Fprintf(o.out, "%s: %d statements, %d objects destroyed, %d expectations failed\n",
		name, report.Statements, len(report.Destroyed), failed)
	if o.cfg.Metrics {
		s := report.Stats
		fmt.Fprintf(o.out, "%s: blocks created=%d released=%d live=%d, objects destroyed=%d\n",
			name, s.BlocksCreated, s.BlocksReleased, s.LiveBlocks(), s.ObjectsDestroyed)
	}
}

// writeMetrics dumps the registry in the Prometheus text format
func (o *Options) writeMetrics() error {
	if o.registry == nil {
		return nil
	}
	families, err := o.registry.Gather()
	if err != nil {
		return errors.Wrap(err, "gather metrics")
	}
	enc := expfmt.NewEncoder(o.out, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return errors.Wrap(err, "encode metrics")
		}
	}
	return nil
}

// NewRootCommand builds the rcptr command tree
func NewRootCommand(in io.Reader, out, errOut io.Writer) *cobra.Command {
	opts := &Options{in: in, out: out, errOut: errOut}
	cmd := &cobra.Command{
		Use:          "rcptr",
		Short:        "runs reference-counting ownership scripts",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.Complete(cmd.Root().PersistentFlags())
		},
	}
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	opts.AddFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newRunCommand(opts),
		newEvalCommand(opts),
		newREPLCommand(opts),
	)
	return cmd
}

func newRunCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "run FILE...",
		Short: "runs script files one after another",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result *multierror.Error
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					result = multierror.Append(result, errors.Wrapf(err, "unable to read %s", path))
					continue
				}
				if err := opts.runScript(path, string(data)); err != nil {
					result = multierror.Append(result, err)
					if opts.cfg.FailFast {
						break
					}
				}
			}
			if err := opts.writeMetrics(); err != nil {
				result = multierror.Append(result, err)
			}
			return result.ErrorOrNil()
		},
	}
}

func newEvalCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "eval SCRIPT",
		Short: "runs a script given on the command line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := opts.runScript("eval", args[0])
			if merr := opts.writeMetrics(); merr != nil {
				return multierror.Append(err, merr)
			}
			return err
		},
	}
}

func newREPLCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "executes statements interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(opts)
		},
	}
}
