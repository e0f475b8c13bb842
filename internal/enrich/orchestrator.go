package enrich

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/minrelay/minrelay/internal/observe"
	"github.com/minrelay/minrelay/internal/speaker"
	"github.com/minrelay/minrelay/pkg/provider/stt"
)

// Orchestrator is the enrichment entry point: given a finalized transcript
// chunk it runs the key-point and speaker pipelines concurrently, isolates
// their failures from each other, and exposes a direct manual-correction
// path that bypasses the consumers entirely.
//
// It holds no per-call state: each Process call is independent except for the
// pipelines' serialization semaphores and the cumulative repository contents.
// All exported methods are safe for concurrent use.
type Orchestrator struct {
	keypoints *KeypointPipeline
	speakers  *SpeakerPipeline
	directory speaker.Directory
	opts      options
}

// New creates an Orchestrator over the two pipelines. directory is the same
// speaker directory the speaker pipeline writes to; the orchestrator uses it
// for manual identity corrections.
func New(keypoints *KeypointPipeline, speakers *SpeakerPipeline, directory speaker.Directory, opts ...Option) *Orchestrator {
	return &Orchestrator{
		keypoints: keypoints,
		speakers:  speakers,
		directory: directory,
		opts:      applyOptions(opts),
	}
}

// Process runs both enrichment pipelines for chunk and returns once both
// have finished.
//
// Only finalized chunks with non-blank text are processed; everything else
// is a counted no-op. Any error surfaced by either pipeline — transport
// fault, persistence fault, cancellation — is logged as a warning and
// absorbed here: Process never fails from the caller's perspective, and one
// pipeline's fault never prevents the other's outcome. Transcription must
// not stall because enrichment misbehaved.
func (o *Orchestrator) Process(ctx context.Context, chunk stt.Chunk) {
	if !chunk.IsFinal || strings.TrimSpace(chunk.Text) == "" {
		o.opts.metrics.ChunksSkipped.Add(ctx, 1)
		return
	}
	o.opts.metrics.ChunksProcessed.Add(ctx, 1)

	ctx, span := observe.StartSpan(ctx, "enrich.process")
	defer span.End()

	// Deliberately not an errgroup: the first pipeline's failure must not
	// cancel or mask the sibling's run.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := o.keypoints.Process(ctx, chunk); err != nil {
			observe.Logger(ctx).Warn("key-point pipeline failed", "speaker", chunk.SpeakerTag, "err", err)
			o.opts.metrics.RecordPipelineError(ctx, observe.PipelineKeypoints)
		}
	}()
	go func() {
		defer wg.Done()
		if err := o.speakers.Process(ctx, chunk); err != nil {
			observe.Logger(ctx).Warn("speaker pipeline failed", "speaker", chunk.SpeakerTag, "err", err)
			o.opts.metrics.RecordPipelineError(ctx, observe.PipelineSpeakers)
		}
	}()
	wg.Wait()
}

// UpdateSpeakerManually writes an operator-supplied identity directly to the
// speaker directory, bypassing the consumer and the pipeline semaphore. An
// empty or blank tag is a no-op.
//
// Unlike Process, persistence faults are returned: the operator issuing the
// correction is a caller who can and should see them.
func (o *Orchestrator) UpdateSpeakerManually(ctx context.Context, tag, displayName, jobTitle string) error {
	if strings.TrimSpace(tag) == "" {
		return nil
	}
	if err := o.directory.Upsert(ctx, tag, displayName, jobTitle); err != nil {
		return fmt.Errorf("enrich: manual speaker update: %w", err)
	}
	o.opts.metrics.RecordSpeakerResolution(ctx, "manual")
	return nil
}
