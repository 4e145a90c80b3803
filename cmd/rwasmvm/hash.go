package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rwasm-go/rwasmvm/internal/runtime/crypto"
	"github.com/rwasm-go/rwasmvm/types"
)

func newHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <file>",
		Short: "Print the keccak256 code hash contracts are stored under",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readCode(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), types.B256(crypto.Keccak256(code)))
			return nil
		},
	}
}
