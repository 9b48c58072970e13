package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tempohq/tempo/internal/domain"
)

func init() {
	planCmd.Flags().IntVar(&planMinutes, "minutes", 480, "Free minutes in the horizon")
	rootCmd.AddCommand(planCmd)
}

var planMinutes int

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Run a daily planning pass",
	Long:  `Admit backlog tasks into today's schedule, bin-packed into the given free minutes.`,
	RunE:  runPlan,
}

func runPlan(cmd *cobra.Command, args []string) error {
	var res domain.AdmissionResult
	err := newClient().postJSON("/v1/plan", map[string]int{"available_minutes": planMinutes}, &res)
	if err != nil {
		return err
	}

	fmt.Printf("Admitted %d task(s), %d/%d minutes committed\n",
		len(res.Admitted), res.UsedMinutes, res.CapacityMinutes)
	for _, t := range res.Admitted {
		fmt.Printf("  + [%s] %s (%dmin, E%d)\n", t.Priority.Label(), t.Title, t.DurationMinutes, t.EnergyCost)
	}
	for _, s := range res.Skipped {
		fmt.Printf("  - skipped %s: %s\n", s.TaskID, s.Reason)
	}
	return nil
}
