package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rwasm-go/rwasmvm/internal/runtime/constants"
	"github.com/rwasm-go/rwasmvm/internal/runtime/host"
	"github.com/rwasm-go/rwasmvm/internal/runtime/rwasm"
	"github.com/rwasm-go/rwasmvm/internal/runtime/wasm"
)

func newInspectCmd(c *cli) *cobra.Command {
	var disasm bool

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Decode a contract and print its layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readCode(args[0])
			if err != nil {
				return err
			}
			if rwasm.IsWasm(code) {
				return inspectWasm(cmd, c, code)
			}
			m, err := rwasm.Decode(code)
			if err != nil {
				return err
			}
			return inspectRwasm(cmd, m, disasm)
		},
	}
	cmd.Flags().BoolVar(&disasm, "disasm", false, "print every instruction")
	return cmd
}

func inspectRwasm(cmd *cobra.Command, m *rwasm.Module, disasm bool) error {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "format:       rwasm v%d\n", rwasm.Version)
	fmt.Fprintf(w, "instructions: %d\n", len(m.Code))
	fmt.Fprintf(w, "functions:    %d\n", len(m.Funcs))
	fmt.Fprintf(w, "memory:       %d pages initial, %d maximum\n", m.Memory.Initial, m.Memory.Maximum)
	fmt.Fprintf(w, "data:         %d segments\n", len(m.Data))
	fmt.Fprintf(w, "globals:      %d\n", len(m.Globals))
	fmt.Fprintf(w, "table:        %d slots\n", len(m.Table))

	names := make([]string, 0, len(m.Entrypoints))
	for name := range m.Entrypoints {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "entrypoint:   %s -> func %d\n", name, m.Entrypoints[name])
	}
	for i, name := range m.Imports {
		fmt.Fprintf(w, "import %d:     %s.%s\n", i, constants.ImportModule, name)
	}

	if disasm {
		for pc, instr := range m.Code {
			fmt.Fprintf(w, "%6d  %s\n", pc, instr)
		}
	}
	return nil
}

func inspectWasm(cmd *cobra.Command, c *cli, code []byte) error {
	ctx := context.Background()
	rt, err := wasm.NewRuntime(ctx, host.DefaultSyscallTable(), c.cfg.Limits.MaxMemoryPages, c.logger)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	m, err := rt.Compile(ctx, code)
	if err != nil {
		return err
	}
	defer m.Close(ctx)

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "format:       wasm")
	for _, entry := range []string{constants.EntrypointMain, constants.EntrypointDeploy} {
		fmt.Fprintf(w, "entrypoint:   %s exported=%t\n", entry, m.Exports(entry))
	}
	if err := m.Validate(); err != nil {
		fmt.Fprintf(w, "invalid:      %v\n", err)
		return nil
	}
	fmt.Fprintln(w, "valid:        true")
	return nil
}
