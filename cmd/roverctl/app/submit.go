package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/autopeer-io/roverpilot/internal/autonomy/core"
	"github.com/autopeer-io/roverpilot/internal/autonomy/gateway"
)

const followInterval = 500 * time.Millisecond

var errMissionAborted = errors.New("mission aborted")

func newSubmitCommand(root *rootOptions) *cobra.Command {
	var (
		file string
		wait bool
	)

	cmd := &cobra.Command{
		Use:   "submit -f LEGS",
		Short: "Submit a mission from a YAML or JSON leg file",
		Example: `  # legs.yaml
  legs:
    - {name: start, type: gps, latitude: 38.4063, longitude: -110.7918}
    - {name: post1, type: aruco, latitude: 38.4071, longitude: -110.7915, tag_id: 1}
    - {name: tool, type: obj, latitude: 38.4069, longitude: -110.7925, object: mallet}

  roverctl submit -f legs.yaml --wait`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := loadRequest(file)
			if err != nil {
				return err
			}

			c := root.client()
			id, err := c.Submit(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)

			if !wait {
				return nil
			}
			return follow(cmd.Context(), c, id, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Leg file; - reads stdin.")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Stream feedback until the mission terminates.")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// loadRequest reads a leg file. YAML is a superset of JSON, so one decoder covers both.
func loadRequest(file string) (gateway.Request, error) {
	var (
		raw []byte
		err error
	)
	if file == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(file)
	}
	if err != nil {
		return gateway.Request{}, err
	}

	var req gateway.Request
	if err := yaml.UnmarshalStrict(raw, &req); err != nil {
		return gateway.Request{}, fmt.Errorf("parse %s: %w", file, err)
	}
	return req, nil
}

// follow prints feedback as it arrives and returns errMissionAborted if the mission did not succeed.
func follow(ctx context.Context, c *client, id string, out io.Writer) error {
	ticker := time.NewTicker(followInterval)
	defer ticker.Stop()

	since := 0
	for {
		resp, err := c.Feedback(ctx, id, since)
		if err != nil {
			return err
		}
		for _, f := range resp.Feedback {
			fmt.Fprintln(out, f.String())
		}
		since = resp.Next

		if resp.Done {
			snap, err := c.Get(ctx, id)
			if err != nil {
				return err
			}
			if snap.Result == nil {
				return fmt.Errorf("mission %s finished without a result", id)
			}
			fmt.Fprintf(out, "%s: %s\n", snap.Result.Outcome, snap.Result.Message)
			if snap.Result.Outcome != core.OutcomeSucceeded {
				return errMissionAborted
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
