package cli

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tempohq/tempo/internal/domain"
)

func init() {
	addCmd.Flags().IntVar(&addPriority, "priority", 2, "Priority class 0-3 (0 = most urgent)")
	addCmd.Flags().IntVar(&addMinutes, "minutes", 30, "Estimated duration in minutes")
	addCmd.Flags().IntVar(&addEnergy, "energy", 3, "Energy cost 1-5")
	addCmd.Flags().StringVar(&addDeadline, "deadline", "", "Deadline (RFC 3339, optional)")
	addCmd.Flags().StringVar(&addType, "type", "general", "Task type (delegation routing)")
	addCmd.Flags().BoolVar(&addDelegable, "delegable", false, "Eligible for autonomous delegation")
	rootCmd.AddCommand(addCmd)
}

var (
	addPriority  int
	addMinutes   int
	addEnergy    int
	addDeadline  string
	addType      string
	addDelegable bool
)

var addCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a task to the backlog",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdd,
}

func runAdd(cmd *cobra.Command, args []string) error {
	t := domain.Task{
		ID:              uuid.NewString(),
		Title:           args[0],
		Type:            addType,
		Priority:        domain.Priority(addPriority),
		DurationMinutes: addMinutes,
		EnergyCost:      addEnergy,
		Delegable:       addDelegable,
	}
	if addDeadline != "" {
		deadline, err := time.Parse(time.RFC3339, addDeadline)
		if err != nil {
			return fmt.Errorf("parse deadline: %w", err)
		}
		t.Deadline = deadline
	}

	var saved domain.Task
	if err := newClient().postJSON("/v1/tasks", t, &saved); err != nil {
		return err
	}
	fmt.Printf("Added %s [%s] (%s)\n", saved.Title, saved.Priority.Label(), saved.ID)
	return nil
}
