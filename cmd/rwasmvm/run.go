package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/rwasm-go/rwasmvm"
	"github.com/rwasm-go/rwasmvm/internal/runtime/constants"
	"github.com/rwasm-go/rwasmvm/types"
)

type runResult struct {
	ExitCode     int32  `json:"exit_code"`
	Status       string `json:"status"`
	FuelConsumed uint64 `json:"fuel_consumed"`
	FuelRefunded int64  `json:"fuel_refunded"`
	Output       string `json:"output"`
	StorageRoot  string `json:"storage_root,omitempty"`
}

func newRunCmd(c *cli) *cobra.Command {
	var input string
	var deploy, commit bool

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Execute a contract as a root call and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readCode(args[0])
			if err != nil {
				return err
			}
			in, err := hex.DecodeString(strings.TrimPrefix(input, "0x"))
			if err != nil {
				return fmt.Errorf("decode --input: %w", err)
			}

			reg := prometheus.NewRegistry()
			vm, err := rwasmvm.NewVM(c.cfg, c.logger, reg)
			if err != nil {
				return err
			}
			defer func() {
				if err := vm.Cleanup(); err != nil {
					c.logger.Error().Err(err).Msg("cleanup")
				}
			}()

			hash, err := vm.StoreCode(code)
			if err != nil {
				return err
			}
			state := constants.StateMain
			if deploy {
				state = constants.StateDeploy
			}
			res := vm.Execute(rwasmvm.Call{Code: types.CodeHash(hash), Input: in, State: state}).IntoExecutionResult()

			out := runResult{
				ExitCode:     res.ExitCode.Int32(),
				Status:       res.ExitCode.String(),
				FuelConsumed: res.FuelConsumed,
				FuelRefunded: res.FuelRefunded,
				Output:       "0x" + hex.EncodeToString(res.Output),
			}
			if commit {
				root, err := vm.Commit()
				if err != nil {
					return err
				}
				out.StorageRoot = root.String()
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return err
			}
			if c.cfg.Metrics.Enabled {
				return printMetrics(cmd, reg)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "hex encoded call input")
	cmd.Flags().BoolVar(&deploy, "deploy", false, "run the deploy entrypoint")
	cmd.Flags().BoolVar(&commit, "commit", false, "commit storage and print its root")
	return cmd
}

func printMetrics(cmd *cobra.Command, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	for _, f := range families {
		for _, m := range f.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			var value float64
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				value = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				value = float64(m.GetHistogram().GetSampleCount())
			}
			fmt.Fprintf(w, "%s{%s} %g\n", f.GetName(), strings.Join(labels, ","), value)
		}
	}
	return nil
}
