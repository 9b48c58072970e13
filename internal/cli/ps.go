package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tempohq/tempo/internal/domain"
)

func init() {
	rootCmd.AddCommand(psCmd)
}

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "Show the current schedule",
	Long:  `Show the active set in execution order, plus backlog and energy summary.`,
	RunE:  runPs,
}

func runPs(cmd *cobra.Command, args []string) error {
	var snap domain.ScheduleSnapshot
	if err := newClient().getJSON("/v1/snapshot", &snap); err != nil {
		return err
	}

	fmt.Printf("Schedule v%d — %d/%d min committed, %d in backlog, energy %d (%s)\n",
		snap.Version, snap.CommittedMinutes, snap.CapacityMinutes,
		snap.BacklogCount, snap.Energy.Level, snap.Energy.Provenance)

	if len(snap.Active) == 0 {
		fmt.Println("  (nothing scheduled)")
		return nil
	}
	for i, t := range snap.Active {
		deadline := "no deadline"
		if t.HasDeadline() {
			deadline = "due " + t.Deadline.Local().Format(time.Kitchen)
		}
		marker := " "
		if t.Status == domain.TaskInProgress {
			marker = "*"
		}
		fmt.Printf(" %s%2d. [%s] %s — %dmin, E%d, %s\n",
			marker, i+1, t.Priority.Label(), t.Title, t.DurationMinutes, t.EnergyCost, deadline)
	}
	return nil
}
