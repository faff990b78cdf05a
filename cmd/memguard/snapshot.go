package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitriimaksimovdevelop/memguard/internal/model"
	"github.com/dmitriimaksimovdevelop/memguard/internal/output"
	"github.com/dmitriimaksimovdevelop/memguard/internal/probe"
	"github.com/dmitriimaksimovdevelop/memguard/internal/snapshot"
	"github.com/dmitriimaksimovdevelop/memguard/internal/telemetry"
)

const snapshotCollectTimeout = 10 * time.Second

// snapshotFile is the on-disk shape a `snapshot` save produces and `diff`
// reads back; it omits the raw pprof profile bytes since a heap profile
// taken by a CLI one-shot is rarely still interesting once the process
// that produced it has exited.
type snapshotFile struct {
	ID         string       `json:"id"`
	CapturedAt time.Time    `json:"capturedAt"`
	Sample     model.Sample `json:"sample"`
}

func newSnapshotCmd() *cobra.Command {
	var outputPath string
	var gcBeforeCapture bool

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture a heap profile and sample, and print its analysis",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), snapshotCollectTimeout)
			defer cancel()

			p := probe.NewDefaultProbe(telemetry.Noop{})
			defer p.Close()

			sample, err := p.Collect(ctx)
			if err != nil {
				return fmt.Errorf("collect sample: %w", err)
			}

			h, err := snapshot.TakeSnapshot(sample, snapshot.Options{GCBeforeCapture: gcBeforeCapture})
			if err != nil {
				return fmt.Errorf("take snapshot: %w", err)
			}

			if outputPath != "" {
				sf := snapshotFile{ID: h.ID, CapturedAt: h.CapturedAt, Sample: h.Sample}
				data, err := json.MarshalIndent(sf, "", "  ")
				if err != nil {
					return fmt.Errorf("encode snapshot: %w", err)
				}
				if err := os.WriteFile(outputPath, data, 0644); err != nil {
					return fmt.Errorf("write %q: %w", outputPath, err)
				}
			}

			ctx, span := telemetry.NewTracer("memguard").StartAnalysis(ctx, "analyze")
			a := snapshot.Analyze(ctx, h, snapshot.AnalysisOptions{IncludeRecommendations: true})
			span.End()
			return output.WriteJSON(a, "-")
		},
	}

	cmd.Flags().StringVarP(&outputPath, "save", "s", "", "Also persist the snapshot's sample to this path, for later use with 'diff'")
	cmd.Flags().BoolVar(&gcBeforeCapture, "gc", false, "Run a GC cycle immediately before capturing the heap profile")
	return cmd
}

func newDiffCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "diff <baseline.json> <current.json>",
		Short: "Compare two saved snapshots",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadSnapshotFile(args[0])
			if err != nil {
				return fmt.Errorf("load baseline: %w", err)
			}
			b, err := loadSnapshotFile(args[1])
			if err != nil {
				return fmt.Errorf("load current: %w", err)
			}

			_, span := telemetry.NewTracer("memguard").StartAnalysis(context.Background(), "compare")
			report := snapshot.Compare(
				snapshot.Handle{ID: a.ID, CapturedAt: a.CapturedAt, Sample: a.Sample},
				snapshot.Handle{ID: b.ID, CapturedAt: b.CapturedAt, Sample: b.Sample},
			)
			span.End()

			if outputPath == "-" || outputPath == "" {
				fmt.Print(snapshot.Format(report))
				return nil
			}
			return output.WriteJSON(report, outputPath)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "-", "Output path for the JSON diff report (- for the human-readable summary on stdout)")
	return cmd
}

func loadSnapshotFile(path string) (snapshotFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return snapshotFile{}, err
	}
	var sf snapshotFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return snapshotFile{}, err
	}
	return sf, nil
}
