package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"media-viewer-engine/internal/memory"
	"media-viewer-engine/internal/session"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Load every reference and print the resulting slots",
	Long: `Open a session, wait until every slot has loaded (or failed) and its
thumbnail has been generated, then print one row per slot.`,
	RunE: runPreview,
}

func init() {
	rootCmd.AddCommand(previewCmd)
	addSourceFlags(previewCmd)
	previewCmd.Flags().Bool("json", false, "Print the session snapshot as JSON")
	previewCmd.Flags().Duration("timeout", 2*time.Minute, "Give up waiting after this long")
}

func runPreview(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	var bar *progressbar.ProgressBar
	if !jsonOutput {
		fmt.Fprintf(out, "Loading %d references\n\n", a.sess.Len())
		bar = progressbar.NewOptions(settledTarget(a.sess.Progress()),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSetDescription("Loading"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("steps"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	waitErr := waitSettled(ctx, a.sess, func(p session.Progress) {
		if bar != nil {
			bar.ChangeMax(settledTarget(p))
			_ = bar.Set(settled(p))
		}
	})
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(out)
	}
	if waitErr != nil {
		return fmt.Errorf("waiting for slots: %w", waitErr)
	}

	if jsonOutput {
		return outputJSON(out, a.sess.Snapshot())
	}
	printSlots(out, a.sess.Slots())
	printProgress(out, a.sess.Progress())
	return nil
}

// settled counts finished load and thumbnail steps.
func settled(p session.Progress) int {
	return p.Loaded + p.Failed + p.Invalid + p.Thumbnails + p.ThumbnailsFailed
}

// settledTarget is the step count at which p is complete: one load per
// slot and one thumbnail per loaded slot.
func settledTarget(p session.Progress) int {
	return p.Total + p.Loaded
}

func isSettled(p session.Progress) bool {
	return p.Done() && p.Thumbnails+p.ThumbnailsFailed >= p.Loaded
}

// waitSettled polls sess until every slot is settled, calling report on
// each change.
func waitSettled(ctx context.Context, sess *session.Session, report func(session.Progress)) error {
	changed := make(chan struct{}, 1)
	remove := sess.OnStateChanged(func(int) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer remove()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		p := sess.Progress()
		report(p)
		if isSettled(p) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		case <-ticker.C:
		}
	}
}

func printSlots(w io.Writer, slots []session.Slot) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tSTATE\tVARIANT\tSIZE\tCAMERA\tERROR")
	fmt.Fprintln(tw, "-\t----\t-----\t-------\t----\t------\t-----")
	for _, s := range slots {
		size := ""
		if s.Size != nil {
			size = memory.FormatBytes(s.Size.OriginalSizeBytes)
		}
		camera := ""
		if s.Exif != nil {
			camera = s.Exif.Camera()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.Index, s.Name, s.Load, s.Variant, size, camera, s.Error)
	}
	_ = tw.Flush()
}

func printProgress(w io.Writer, p session.Progress) {
	fmt.Fprintf(w, "\n%d loaded, %d failed, %d invalid, %d thumbnails (%d failed)\n",
		p.Loaded, p.Failed, p.Invalid, p.Thumbnails, p.ThumbnailsFailed)
}

func outputJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
