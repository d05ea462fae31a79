package roofctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/okian/roofline/internal/domain/job"
	"github.com/okian/roofline/internal/domain/model"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const jobPollInterval = time.Second

// BatchResult is the outcome of one item.
type BatchResult struct {
	Item     job.Item            `json:"item"`
	Estimate *model.RoofEstimate `json:"estimate,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// BatchStats summarizes a batch run.
type BatchStats struct {
	Submitted     int            `json:"submitted"`
	Succeeded     int            `json:"succeeded"`
	Failed        int            `json:"failed"`
	ByMethod      map[string]int `json:"by_method"`
	TotalAreaSqFt float64        `json:"total_area_sq_ft"`
	Duration      time.Duration  `json:"duration"`
}

// ReadItems decodes a JSON array of items, or an object with an items key.
func ReadItems(r io.Reader) ([]job.Item, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}
	var items []job.Item
	if err := json.Unmarshal(data, &items); err == nil {
		return items, nil
	}
	var wrapped struct {
		Items []job.Item `json:"items"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return wrapped.Items, nil
}

// RunBatch estimates every item with at most workers requests in flight.
// Item failures are recorded, never returned; only ctx ends a run early.
func RunBatch(ctx context.Context, c *Client, items []job.Item, workers int) ([]BatchResult, BatchStats, error) {
	if workers < 1 {
		workers = 1
	}
	start := time.Now()
	results := make([]BatchResult, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, it := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := BatchResult{Item: it}
			est, err := c.Estimate(gctx, EstimateRequest{
				Latitude:  it.Latitude,
				Longitude: it.Longitude,
				Property:  it.Property,
			})
			if err != nil {
				res.Error = err.Error()
			} else {
				res.Estimate = &est
			}
			results[i] = res
			return nil
		})
	}
	err := g.Wait()

	stats := summarize(results)
	stats.Duration = time.Since(start)
	return results, stats, err
}

func summarize(results []BatchResult) BatchStats {
	stats := BatchStats{ByMethod: make(map[string]int)}
	for _, r := range results {
		if r.Estimate == nil && r.Error == "" {
			continue
		}
		stats.Submitted++
		if r.Estimate == nil {
			stats.Failed++
			continue
		}
		stats.Succeeded++
		stats.ByMethod[string(r.Estimate.Method)]++
		stats.TotalAreaSqFt += r.Estimate.AreaSqFt
	}
	return stats
}

func jobStats(j job.Job) ([]BatchResult, BatchStats) {
	results := make([]BatchResult, len(j.Items))
	for i, it := range j.Items {
		results[i] = BatchResult{Item: it, Estimate: it.Estimate, Error: it.Error}
	}
	stats := summarize(results)
	stats.Duration = j.UpdatedAt.Sub(j.CreatedAt)
	return results, stats
}

// NewBatchCommand creates the batch command.
func NewBatchCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		workers int
		asJob   bool
		jobID   string
		wait    bool
	)

	cmd := &cobra.Command{
		Use:   "batch <items.json>",
		Short: "Estimate many locations from a JSON file",
		Long: `Estimate every item in a JSON file of {latitude, longitude, property?} objects.

By default items are sent concurrently to the estimate endpoint. With --job the
file is submitted as one server-side batch job instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open items: %w", err)
			}
			items, err := ReadItems(f)
			_ = f.Close()
			if err != nil {
				return err
			}
			if len(items) == 0 {
				return fmt.Errorf("no items in %s", args[0])
			}

			client := rootOpts.client()
			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			if asJob {
				return runJob(ctx, w, rootOpts, client, jobID, items, wait)
			}

			if rootOpts.Verbose {
				fmt.Fprintf(cmd.ErrOrStderr(), "estimating %d items with %d workers\n", len(items), workers)
			}
			results, stats, err := RunBatch(ctx, client, items, workers)
			if err != nil {
				return err
			}
			return report(w, rootOpts.Format, results, stats)
		},
	}

	cmd.Flags().IntVar(&workers, "workers", runtime.NumCPU()*2, "concurrent requests")
	cmd.Flags().BoolVar(&asJob, "job", false, "submit as a server-side batch job")
	cmd.Flags().StringVar(&jobID, "job-id", "", "job ID for --job; generated by the server when empty")
	cmd.Flags().BoolVar(&wait, "wait", true, "with --job, wait for the job to finish")

	return cmd
}

func runJob(ctx context.Context, w io.Writer, opts *RootOptions, c *Client, id string, items []job.Item, wait bool) error {
	ack, err := c.SubmitJob(ctx, id, items)
	switch {
	case errors.Is(err, ErrDuplicate):
		fmt.Fprintf(w, "job %s was already submitted (%s)\n", ack.JobID, ack.Status)
	case err != nil:
		return err
	default:
		fmt.Fprintf(w, "job %s %s\n", ack.JobID, ack.Status)
	}
	if !wait {
		return nil
	}
	j, err := c.WaitJob(ctx, ack.JobID, jobPollInterval)
	if err != nil {
		return err
	}
	results, stats := jobStats(j)
	return report(w, opts.Format, results, stats)
}

// report prints results in the chosen format.
func report(w io.Writer, format string, results []BatchResult, stats BatchStats) error {
	if format == "json" {
		return printJSON(w, struct {
			Stats   BatchStats    `json:"stats"`
			Results []BatchResult `json:"results"`
		}{stats, results})
	}

	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(w, "FAIL %s: %s\n", r.Item.Coordinate().Key(), r.Error)
		}
	}
	methods := make([]string, 0, len(stats.ByMethod))
	for m := range stats.ByMethod {
		methods = append(methods, m)
	}
	sort.Strings(methods)

	fmt.Fprintf(w, "submitted: %d  succeeded: %d  failed: %d  in %s\n",
		stats.Submitted, stats.Succeeded, stats.Failed, stats.Duration.Round(time.Millisecond))
	for _, m := range methods {
		fmt.Fprintf(w, "  %-17s %d\n", m, stats.ByMethod[m])
	}
	fmt.Fprintf(w, "total area: %.0f sq ft\n", stats.TotalAreaSqFt)
	return nil
}
