package cli

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tempohq/tempo/internal/domain"
)

func init() {
	eventCmd.Flags().StringVar(&eventSource, "source", "calendar", "Event source (calendar, mail, chat)")
	eventCmd.Flags().StringVar(&eventType, "type", "", "Change type (meeting_overrun, cancelled_meeting, ...)")
	eventCmd.Flags().IntVar(&eventDelta, "delta", 0, "Signed time impact in minutes (negative = time lost)")
	eventCmd.Flags().StringSliceVar(&eventAffected, "affected", nil, "Affected task ids")
	eventCmd.MarkFlagRequired("type")
	rootCmd.AddCommand(eventCmd)
}

var (
	eventSource   string
	eventType     string
	eventDelta    int
	eventAffected []string
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Inject a context change event",
	Long: `Feed a translated external signal into the disruption pipeline, the
same way an integration adapter would.`,
	RunE: runEvent,
}

func runEvent(cmd *cobra.Command, args []string) error {
	ev := domain.ContextChangeEvent{
		ID:              uuid.NewString(),
		Source:          eventSource,
		ChangeType:      eventType,
		DeltaMinutes:    eventDelta,
		AffectedTaskIDs: eventAffected,
		Timestamp:       time.Now(),
	}

	var resp struct {
		Dropped    bool                    `json:"dropped"`
		Disruption *domain.DisruptionEvent `json:"disruption"`
		Swaps      []domain.SwapOperation  `json:"swaps"`
	}
	if err := newClient().postJSON("/v1/events", ev, &resp); err != nil {
		return err
	}

	if resp.Dropped {
		fmt.Println("Event dropped (benign)")
		return nil
	}
	fmt.Printf("Classified %s: %s\n", resp.Disruption.Severity, resp.Disruption.Cause)
	for _, op := range resp.Swaps {
		fmt.Printf("  %s %s — %s\n", op.Action, op.TaskID, op.Reason)
	}
	return nil
}
