package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ubi/internal/ir"
)

// NewABICommand creates the abi command.
func NewABICommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "abi",
		Short: "List the actions the ledger accepts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rootOpts.Format == "json" {
				return rootOpts.formatter(cmd).Success(ir.ABI)
			}
			w := cmd.OutOrStdout()
			for _, sig := range ir.ABI {
				fmt.Fprintf(w, "%s(%s)\n", sig.Name, formatSig(sig.Args))
			}
			return nil
		},
	}
}

func formatSig(args []ir.NamedArg) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.Name + " " + a.Type
		if a.Optional {
			parts[i] += "?"
		}
	}
	return strings.Join(parts, ", ")
}
