package cmds

import (
	"github.com/spf13/cobra"
)

func AddCommands(root *cobra.Command) error {
	root.AddCommand(newRunCmd())
	root.AddCommand(newSimCmd())
	root.AddCommand(newCheckCmd())
	root.AddCommand(newChannelsCmd())
	root.AddCommand(newDeployCmd())
	return nil
}
