package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/reconcile/common/output"
	"github.com/telhawk-systems/reconcile/internal/metrics"
	"github.com/telhawk-systems/reconcile/internal/pipeline"
)

// sinkFlags are the output options shared by run and correlate.
type sinkFlags struct {
	out         string
	format      string
	preview     int
	metricsFile string
}

func (s *sinkFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&s.out, "out", "o", "", "write the reconciled table to this file (default: output.path, stdout when empty)")
	cmd.Flags().StringVarP(&s.format, "format", "f", "", "table format: csv, json, yaml (default: output.format)")
	cmd.Flags().IntVar(&s.preview, "preview", 0, "print the first N rows to stderr")
	cmd.Flags().StringVar(&s.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile (default: metrics.textfile_path)")
}

func newRunCommand(a *app) *cobra.Command {
	var sink sinkFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Retrieve, correlate and derive the configured datasets",
		Example: `  reconcile run --out reconciled.csv
  reconcile run --format json --preview 5
  RECONCILE_CORRELATION_ORDER=chronological reconcile run -o out.yaml -f yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pipeline.FromConfig(a.cfg, a.logger)
			if err != nil {
				return err
			}
			res, err := p.Run(cmd.Context())
			if err != nil {
				return err
			}
			return a.emit(cmd, res, sink)
		},
	}
	sink.register(cmd)
	return cmd
}

// emit writes the table, the human summary and the metrics textfile.
func (a *app) emit(cmd *cobra.Command, res *pipeline.Result, sink sinkFlags) error {
	format := sink.format
	if format == "" {
		format = a.cfg.Output.Format
	}
	f, err := output.ParseFormat(format)
	if err != nil {
		return err
	}
	path := sink.out
	if path == "" {
		path = a.cfg.Output.Path
	}

	if err := writeTo(cmd.OutOrStdout(), path, func(w io.Writer) error {
		return output.WriteTable(w, res.Table, f, a.cfg.Output.TimeLayout)
	}); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	printer := output.NewPrinter(cmd.ErrOrStderr())
	for _, failure := range res.Failures {
		printer.Warn("%s", failure.Error())
	}
	s := res.Stats
	printer.Success("Reconciled %d intake rows: %d matched, %d unmatched, %d outcome rows dropped",
		s.IntakeRows, s.Matched, s.Unmatched, s.DroppedOutcomes)
	printer.Info("Run %s finished in %s", res.RunID, res.Elapsed.Round(time.Millisecond))
	if path != "" && path != "-" {
		printer.Info("Wrote %s (%s)", path, f)
	}
	output.Preview(cmd.ErrOrStderr(), res.Table, sink.preview, a.cfg.Output.TimeLayout)

	metricsFile := sink.metricsFile
	if metricsFile == "" {
		metricsFile = a.cfg.Metrics.TextfilePath
	}
	if metricsFile != "" {
		if err := metrics.WriteTextfile(metricsFile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

// writeTo runs write against stdout when path is "" or "-", else against a
// freshly created file.
func writeTo(stdout io.Writer, path string, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
