package cli

import (
	"github.com/spf13/cobra"

	internalcli "github.com/SmitUplenchwar2687/jobpacer/internal/cli"
)

// NewRootCmd creates the public jobpacer root command for embedding.
func NewRootCmd() *cobra.Command {
	return internalcli.NewRootCmd()
}
