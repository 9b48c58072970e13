package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tempohq/tempo/internal/domain"
)

func init() {
	rootCmd.AddCommand(energyCmd)
}

var energyCmd = &cobra.Command{
	Use:   "energy [level]",
	Short: "Show or report the current energy level",
	Long: `With no argument, show the engine's current energy estimate.
With a level (1-5), report it; the value decays back toward the
circadian baseline over two hours.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEnergy,
}

func runEnergy(cmd *cobra.Command, args []string) error {
	client := newClient()

	if len(args) == 0 {
		var e domain.EnergyLevel
		if err := client.getJSON("/v1/energy", &e); err != nil {
			return err
		}
		fmt.Printf("Energy %d/5 (%.0f%% confidence, %s)\n",
			e.Level, e.Confidence*100, e.Provenance)
		return nil
	}

	level, err := strconv.Atoi(args[0])
	if err != nil || level < 1 || level > 5 {
		return fmt.Errorf("energy level must be 1-5")
	}

	var resp struct {
		Energy    domain.EnergyLevel         `json:"energy"`
		Delegated []domain.DelegationRequest `json:"delegated"`
	}
	body := domain.EnergyLevel{Level: level, Provenance: domain.EnergyUserReported}
	if err := client.postJSON("/v1/energy", body, &resp); err != nil {
		return err
	}

	fmt.Printf("Reported energy %d/5\n", resp.Energy.Level)
	for _, req := range resp.Delegated {
		fmt.Printf("  → delegated task %s (%s)\n", req.TaskID, req.TaskType)
	}
	return nil
}
