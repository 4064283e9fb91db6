package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/batonhq/baton/internal/planner"
	"github.com/batonhq/baton/internal/render"
	"github.com/batonhq/baton/pkg/models"
)

var (
	runManifest string
	runPipeline string
	runSimulate bool
	runStrict   bool
	runWatch    bool
	runNoSave   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a pipeline from a manifest",
	Long: `Run builds an execution plan for a pipeline declared in the manifest
and executes it: independent items run concurrently, cacheable results
are reused, and transient failures retry with backoff.

By default items are simulated from their declared estimates. Pass
--simulate=false to dispatch each item to its declared shell command.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if runWatch {
			return watchAndRun()
		}
		result, err := runOnce()
		if err != nil {
			return err
		}
		if !result.Success {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runManifest, "manifest", "f", "baton.yaml", "manifest file to load")
	runCmd.Flags().StringVarP(&runPipeline, "pipeline", "p", "", "pipeline to run (optional when the manifest declares one)")
	runCmd.Flags().BoolVar(&runSimulate, "simulate", true, "simulate items instead of running their commands")
	runCmd.Flags().BoolVar(&runStrict, "strict", false, "reject duplicate item names in the manifest")
	runCmd.Flags().BoolVarP(&runWatch, "watch", "w", false, "re-run the pipeline when the manifest changes")
	runCmd.Flags().BoolVar(&runNoSave, "no-save", false, "skip persisting run history and profiles")
}

func runOnce() (*models.ExecutionResult, error) {
	s, err := newSession(runManifest, runSimulate, runStrict, !runNoSave)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	plan, err := buildPlan(s, runPipeline)
	if err != nil {
		return nil, err
	}

	fmt.Println(render.Plan(plan))
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), plan.Timeout)
	defer cancel()

	result, err := s.coord.ExecutePlan(ctx, plan)
	if result != nil {
		render.Result(result)
	}
	return result, err
}

// buildPlan resolves the pipeline and asks the coordinator for a plan.
func buildPlan(s *session, name string) (*models.ExecutionPlan, error) {
	pipe, err := s.man.Pipeline(name)
	if err != nil {
		return nil, err
	}

	opts, err := pipe.PlanOptions()
	if err != nil {
		return nil, err
	}
	if opts.MaxConcurrent == 0 {
		opts.MaxConcurrent = s.cfg.Engine.MaxConcurrent
	}

	constraints, err := pipe.PlanConstraints()
	if err != nil {
		return nil, err
	}

	requests := make([]planner.ItemRequest, 0, len(pipe.Items))
	for _, item := range pipe.Items {
		requests = append(requests, planner.ItemRequest{Name: item.Name, Input: item.Input})
	}

	return s.coord.CreatePlan(pipe.Name, pipe.Description, requests, opts, constraints)
}

// watchAndRun executes once, then re-runs on every manifest write.
func watchAndRun() error {
	if _, err := runOnce(); err != nil {
		fmt.Fprintf(os.Stderr, "run: %v\n", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory rather than the file; editors replace files
	// on save and break inode-level watches.
	dir := filepath.Dir(runManifest)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	target, err := filepath.Abs(runManifest)
	if err != nil {
		return err
	}

	fmt.Printf("\nwatching %s for changes (ctrl-c to stop)\n", runManifest)

	var debounce <-chan time.Time
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			abs, _ := filepath.Abs(event.Name)
			if abs != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			debounce = time.After(250 * time.Millisecond)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		case <-debounce:
			debounce = nil
			fmt.Printf("\nmanifest changed, re-running\n\n")
			if _, err := runOnce(); err != nil {
				fmt.Fprintf(os.Stderr, "run: %v\n", err)
			}
		}
	}
}
