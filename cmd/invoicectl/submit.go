package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-tracker/constants"
)

var submitCmd = &cobra.Command{
	Use:   "submit [file...]",
	Short: "Extract and store documents, streaming job progress",
	Long:  `Submits each file as a background job, prints every progress event as a JSON line and waits until all jobs finish.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSubmit,
}

var submitTimeout time.Duration

func init() {
	submitCmd.Flags().DurationVar(&submitTimeout, "wait", 5*time.Minute, "maximum time to wait for all jobs")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, closeApp, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp()

	evs, unsubscribe := app.Bus.Subscribe(256)
	defer unsubscribe()

	pending := map[string]bool{}
	for _, path := range args {
		res, err := app.Ingestor.IngestPath(ctx, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			continue
		}
		if !res.Skipped {
			pending[res.JobID] = true
		}
	}

	failed := 0
	deadline := time.After(submitTimeout)
	for len(pending) > 0 {
		select {
		case ev := <-evs:
			if !pending[ev.JobID] {
				continue
			}
			if err := printJSON(ev); err != nil {
				return err
			}
			if ev.Status.Terminal() {
				delete(pending, ev.JobID)
				if ev.Status != constants.JobStatusCompleted {
					failed++
				}
			}
		case <-deadline:
			return fmt.Errorf("%d job(s) still running after %s", len(pending), submitTimeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d job(s) failed", failed)
	}
	return nil
}
