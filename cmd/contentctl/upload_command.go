package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/spf13/cobra"

	"github.com/lyzr/cookbook/common/uploader"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var optimize bool
	var quiet bool

	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload images to every configured destination",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files := make([]uploader.File, 0, len(args))
			for _, path := range args {
				f, err := uploader.ReadFile(path)
				if err != nil {
					return err
				}
				files = append(files, f)
			}

			var pw progress.Writer
			if !quiet {
				pw = newProgressWriter(cmd.ErrOrStderr())
				go pw.Render()
			}

			client := ctx.uploader()
			reqCtx := ctx.requestContext(cmd.Context())
			uploads := make([]*uploader.Upload, len(files))
			for i, f := range files {
				opts := []uploader.UploadOption{}
				if optimize {
					opts = append(opts, uploader.WithOptimize())
				}
				if pw != nil {
					opts = append(opts, uploader.WithProgress(trackProgress(pw, f)))
				}
				uploads[i] = client.Start(reqCtx, f, opts...)
			}

			rows := make([][]string, 0, len(files))
			var errs []error
			for i, u := range uploads {
				result, err := u.Wait()
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", files[i].Name, err))
					rows = append(rows, []string{files[i].Name, "failed", "", ""})
					continue
				}
				rows = append(rows, uploadRow(files[i].Name, result))
			}

			if pw != nil {
				stopProgress(pw)
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"File", "URL", "WebP", "AVIF", "Saved"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
			))

			return errors.Join(errs...)
		},
	}

	cmd.Flags().BoolVar(&optimize, "optimize", false, "Also store resized WebP and AVIF variants")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not render progress bars")

	return cmd
}

func uploadRow(name string, result *uploader.UploadResult) []string {
	saved := ""
	if result.Optimization != nil {
		saved = fmt.Sprintf("%.1f%%", result.Optimization.SavedPercent)
	}
	return []string{name, result.URL, result.WebPURL, result.AVIFURL, saved}
}

func newProgressWriter(out io.Writer) progress.Writer {
	pw := progress.NewWriter()
	pw.SetOutputWriter(out)
	pw.SetAutoStop(false)
	pw.SetTrackerLength(25)
	pw.SetStyle(progress.StyleDefault)
	pw.SetUpdateFrequency(100 * time.Millisecond)
	pw.Style().Visibility.ETA = true
	pw.Style().Visibility.Value = true
	return pw
}

// trackProgress mirrors upload events onto a progress bar
func trackProgress(pw progress.Writer, f uploader.File) uploader.Observer {
	tracker := &progress.Tracker{
		Message: f.Name,
		Total:   int64(len(f.Data)),
		Units:   progress.UnitsBytes,
	}
	pw.AppendTracker(tracker)

	return func(ev uploader.ProgressEvent) {
		if ev.TotalBytes > 0 && ev.TotalBytes != tracker.Total {
			tracker.UpdateTotal(ev.TotalBytes)
		}
		tracker.SetValue(ev.BytesTransferred)

		switch ev.State {
		case uploader.StateSuccess:
			tracker.MarkAsDone()
		case uploader.StateError, uploader.StateCanceled:
			tracker.MarkAsErrored()
		}
	}
}

func stopProgress(pw progress.Writer) {
	// one more tick so finished trackers render as done
	time.Sleep(150 * time.Millisecond)
	pw.Stop()
	for pw.IsRenderInProgress() {
		time.Sleep(10 * time.Millisecond)
	}
}
