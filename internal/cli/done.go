package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tempohq/tempo/internal/domain"
)

func init() {
	rootCmd.AddCommand(doneCmd)
	rootCmd.AddCommand(startCmd)
}

var doneCmd = &cobra.Command{
	Use:   "done <task-id>",
	Short: "Mark a task completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var t domain.Task
		if err := newClient().postJSON("/v1/tasks/"+args[0]+"/complete", nil, &t); err != nil {
			return err
		}
		fmt.Printf("Completed %s\n", t.Title)
		return nil
	},
}

var startCmd = &cobra.Command{
	Use:   "start <task-id>",
	Short: "Mark a scheduled task as in progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var t domain.Task
		if err := newClient().postJSON("/v1/tasks/"+args[0]+"/start", nil, &t); err != nil {
			return err
		}
		fmt.Printf("Started %s\n", t.Title)
		return nil
	},
}
