package app

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/autopeer-io/roverpilot/internal/autonomy/gateway"
	missionapi "github.com/autopeer-io/roverpilot/internal/autonomy/server/http"
)

const maxColWidth = 80

func newStatusCommand(root *rootOptions) *cobra.Command {
	var showReport bool

	cmd := &cobra.Command{
		Use:   "status [ID]",
		Short: "Show a mission and its feedback, the running one by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := "current"
			if len(args) == 1 {
				id = args[0]
			}

			c := root.client()
			snap, err := c.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			fb, err := c.Feedback(cmd.Context(), snap.ID, 0)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printSnapshot(out, snap)
			fmt.Fprintln(out)
			printFeedback(out, fb)

			if showReport && !snap.Running {
				url, err := c.Report(cmd.Context(), snap.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "\nReport: %s\n", url)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showReport, "report", false, "Print a download link for the archived report.")
	return cmd
}

func printSnapshot(out io.Writer, s gateway.Snapshot) {
	t := uitable.New()
	t.MaxColWidth = maxColWidth
	t.Wrap = true

	t.AddRow("ID:", s.ID)
	t.AddRow("Running:", s.Running)
	t.AddRow("Started:", s.Started.Format("2006-01-02 15:04:05"))
	if s.Finished != nil {
		t.AddRow("Finished:", s.Finished.Format("2006-01-02 15:04:05"))
	}
	if len(s.State.Order) > 0 {
		t.AddRow("Order:", strings.Join(s.State.Order, " -> "))
	}
	if s.State.CurrentLeg != "" {
		t.AddRow("Leg:", fmt.Sprintf("%s (%s)", s.State.CurrentLeg, s.State.LegState))
	}
	if s.NavGoal != nil {
		goal := fmt.Sprintf("%s %s", s.NavGoal.Action, s.NavGoal.Status)
		if s.NavGoal.Feedback != nil {
			goal += fmt.Sprintf(", %.1f m remaining", s.NavGoal.Feedback.DistanceRemaining)
		}
		t.AddRow("Nav goal:", goal)
	}
	if s.Result != nil {
		t.AddRow("Outcome:", s.Result.Outcome)
		t.AddRow("Message:", s.Result.Message)
	}
	fmt.Fprintln(out, t)

	if len(s.State.Legs) == 0 {
		return
	}
	legs := uitable.New()
	legs.MaxColWidth = maxColWidth
	legs.AddRow("LEG", "KIND", "OUTCOME", "DURATION")
	for _, l := range s.State.Legs {
		legs.AddRow(l.Name, l.Kind, l.Outcome, l.Finished.Sub(l.Started).Round(time.Second))
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, legs)
}

func printFeedback(out io.Writer, fb missionapi.FeedbackResponse) {
	t := uitable.New()
	t.MaxColWidth = maxColWidth
	t.Wrap = true
	t.AddRow("TIME", "LEG", "SEVERITY", "TEXT")
	for _, f := range fb.Feedback {
		t.AddRow(f.Time.Format("15:04:05"), f.Leg, f.Severity, f.Text)
	}
	fmt.Fprintln(out, t)
}
