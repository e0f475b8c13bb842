package enrich

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/minrelay/minrelay/internal/observe"
	"github.com/minrelay/minrelay/internal/speaker"
	"github.com/minrelay/minrelay/pkg/provider/stt"
)

// SpeakerPipeline drives the speaker-identity consumer for one chunk at a
// time and upserts accepted resolutions into the speaker directory.
//
// Its semaphore is fully independent of the key-point pipeline's: the two
// enrichment concerns must never block each other.
type SpeakerPipeline struct {
	sem       *semaphore.Weighted
	consumer  Consumer
	directory speaker.Directory
	opts      options
}

// NewSpeakerPipeline returns a ready [SpeakerPipeline].
func NewSpeakerPipeline(consumer Consumer, directory speaker.Directory, opts ...Option) *SpeakerPipeline {
	return &SpeakerPipeline{
		sem:       semaphore.NewWeighted(1),
		consumer:  consumer,
		directory: directory,
		opts:      applyOptions(opts),
	}
}

// Process sends chunk to the speaker consumer and upserts the resolved
// identity.
//
// A resolution is rejected silently — no persistence, no error, not even a
// warning — when the speaker tag is empty or when both the display name and
// the job title are empty: that outcome is "nothing new learned", not a
// fault. Unparseable replies are swallowed like in the key-point pipeline.
// Transport and persistence faults return as errors for the orchestrator.
//
// The response's confidence score is logged but deliberately not used as a
// gate; see the directory's documentation for the tag-collision caveat.
func (p *SpeakerPipeline) Process(ctx context.Context, chunk stt.Chunk) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("enrich: speakers: acquire: %w", err)
	}
	defer p.sem.Release(1)

	ctx, span := observe.StartSpan(ctx, "enrich.speakers")
	defer span.End()

	payload := ChunkPayload{
		Transcript: chunk.Text,
		SpeakerTag: chunk.SpeakerTag,
		Timestamp:  chunk.Timestamp,
	}

	start := time.Now()
	reply, err := p.consumer.Send(ctx, payload)
	p.opts.metrics.RecordConsumerDuration(ctx, observe.PipelineSpeakers, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("enrich: speakers: %w", err)
	}

	resp, parseErr := parseSpeakerResponse(reply)
	if parseErr != nil {
		observe.Logger(ctx).Debug("discarding unparseable speaker response", "err", parseErr)
		p.opts.metrics.RecordParseFailure(ctx, observe.PipelineSpeakers)
		return nil
	}

	if resp.GuestID == "" || (resp.GuestName == "" && resp.JobTitle == "") {
		// A resolution carrying no new information is not written.
		return nil
	}

	p.logNearDuplicates(ctx, resp)

	if err := p.directory.Upsert(ctx, resp.GuestID, resp.GuestName, resp.JobTitle); err != nil {
		return fmt.Errorf("enrich: speakers: %w", err)
	}

	observe.Logger(ctx).Debug("speaker identity resolved",
		"tag", resp.GuestID,
		"name", resp.GuestName,
		"title", resp.JobTitle,
		"confidence", resp.Confidence,
	)
	p.opts.metrics.RecordSpeakerResolution(ctx, "consumer")
	return nil
}

// logNearDuplicates flags resolutions whose display name is phonetically
// close to a different tag's existing name, so an operator can merge tags.
// Purely diagnostic: failures here never affect the upsert.
func (p *SpeakerPipeline) logNearDuplicates(ctx context.Context, resp *speakerResponse) {
	existing, err := p.directory.List(ctx)
	if err != nil {
		return
	}
	for _, dup := range speaker.SimilarNames(resp.GuestID, resp.GuestName, existing) {
		observe.Logger(ctx).Debug("resolved name is close to an existing identity",
			"tag", resp.GuestID,
			"name", resp.GuestName,
			"existing_tag", dup.SpeakerTag,
			"existing_name", dup.DisplayName,
		)
	}
}
