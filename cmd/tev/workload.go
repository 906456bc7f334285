package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/tevtrace/tev"
)

// newDemoSource builds the category table the synthetic workload traces
// against. "io" is tagged slow, so it records only when a session config
// enables it explicitly.
func newDemoSource() (*tev.Source, error) {
	registry, err := tev.NewRegistry(
		tev.Category{Name: "net", Description: "connection lifecycle"},
		tev.Category{Name: "render", Description: "frame production"},
		tev.Category{Name: "io", Tags: []string{tev.TagSlow}, Description: "disk reads and writes"},
	)
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}

	src, err := tev.NewSource(registry)
	if err != nil {
		return nil, fmt.Errorf("build source: %w", err)
	}

	return src, nil
}

// runWorkload drives count worker goroutines against the source, each with
// its own sequence and track, until the context is canceled.
func runWorkload(ctx context.Context, src *tev.Source, w tev.Writer, count int, debug *log.Logger) error {
	process := tev.ProcessTrack()
	if err := src.SetTrackDescriptor(process, tev.TrackDescriptor{
		UUID:      process.UUID,
		Name:      "tev workload",
		ProcessID: os.Getpid(),
	}); err != nil {
		return fmt.Errorf("process track: %w", err)
	}

	errc := make(chan error, count)
	for id := 0; id < count; id++ {
		go func(id int) {
			errc <- worker(ctx, src, w, process, id, debug)
		}(id)
	}

	var first error
	for i := 0; i < count; i++ {
		if err := <-errc; err != nil && first == nil {
			first = err
		}
	}
	return first
}

func worker(ctx context.Context, src *tev.Source, w tev.Writer, process tev.Track, id int, debug *log.Logger) error {
	seq := src.NewSequence(w)

	track := tev.ChildTrack(process, fmt.Sprintf("worker/%d", id))
	if err := seq.SetTrackDescriptor(track, tev.TrackDescriptor{
		UUID:       track.UUID,
		ParentUUID: process.UUID,
		Name:       fmt.Sprintf("worker %d", id),
	}); err != nil {
		return fmt.Errorf("worker %d track: %w", id, err)
	}

	catNet, _ := src.Registry().IndexOf("net")
	catRender, _ := src.Registry().IndexOf("render")
	catIO, _ := src.Registry().IndexOf("io")

	rng := rand.New(rand.NewSource(int64(id)))
	frames := 0
	for {
		select {
		case <-ctx.Done():
			debug.Printf("worker %d: %d frames", id, frames)
			return nil
		case <-time.After(time.Duration(5+rng.Intn(20)) * time.Millisecond):
			// continue
		}
		frames++

		addr := fmt.Sprintf("10.0.0.%d:443", rng.Intn(255))
		src.CallIfCategoryEnabled(catNet, func(instances uint8) {
			seq.TraceForCategory(instances, catNet, "connect", tev.TypeBegin,
				tev.WithTrack(track),
				tev.WithAnnotation("addr", addr))
		})
		src.CallIfCategoryEnabled(catNet, func(instances uint8) {
			seq.TraceForCategory(instances, catNet, "connect", tev.TypeEnd,
				tev.WithTrack(track))
		})

		src.CallIfCategoryEnabled(catRender, func(instances uint8) {
			seq.TraceForCategory(instances, catRender, "frame", tev.TypeInstant,
				tev.WithTrack(track),
				tev.WithAnnotation("frame", frames))
		})

		src.CallIfCategoryEnabled(catIO, func(instances uint8) {
			seq.TraceForCategory(instances, catIO, "bytes_written", tev.TypeCounter,
				tev.WithTrack(track),
				tev.WithValue(rng.Intn(1<<16)))
		})

		// One dynamic category in the mix, to exercise the any-session path.
		if frames%10 == 0 {
			src.CallIfEnabled(func(instances uint8) {
				seq.TraceForCategory(instances, tev.DynamicCategory{Name: "custom.heartbeat"}, "tick", tev.TypeInstant,
					tev.WithTrack(track))
			})
		}
	}
}
