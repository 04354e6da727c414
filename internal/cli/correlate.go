package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/reconcile/common/table"
	"github.com/telhawk-systems/reconcile/internal/pipeline"
)

func newCorrelateCommand(a *app) *cobra.Command {
	var (
		sink        sinkFlags
		intakePath  string
		outcomePath string
	)
	cmd := &cobra.Command{
		Use:   "correlate",
		Short: "Correlate two local CSV files",
		Long: `Correlate runs normalization, correlation and derivation on local intake
and outcome CSV files instead of retrieving the configured sources.`,
		Example: `  reconcile correlate --intake intakes.csv --outcome outcomes.csv -o joined.csv`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			intake, err := readCSVFile(intakePath)
			if err != nil {
				return fmt.Errorf("intake: %w", err)
			}
			outcome, err := readCSVFile(outcomePath)
			if err != nil {
				return fmt.Errorf("outcome: %w", err)
			}

			p, err := pipeline.FromConfig(a.cfg, a.logger)
			if err != nil {
				return err
			}
			res, err := p.Process(cmd.Context(), intake, outcome)
			if err != nil {
				return err
			}
			return a.emit(cmd, res, sink)
		},
	}
	cmd.Flags().StringVar(&intakePath, "intake", "", "intake CSV file")
	cmd.Flags().StringVar(&outcomePath, "outcome", "", "outcome CSV file")
	_ = cmd.MarkFlagRequired("intake")
	_ = cmd.MarkFlagRequired("outcome")
	sink.register(cmd)
	return cmd
}

func readCSVFile(path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return table.ReadCSV(f)
}
