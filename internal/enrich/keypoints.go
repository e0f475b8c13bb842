package enrich

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/minrelay/minrelay/internal/keypoint"
	"github.com/minrelay/minrelay/internal/observe"
	"github.com/minrelay/minrelay/pkg/provider/stt"
)

// options holds the shared optional configuration for pipelines and the
// orchestrator.
type options struct {
	metrics   *observe.Metrics
	sessionID string
}

// Option configures a pipeline or the [Orchestrator] during construction.
type Option func(*options)

// WithMetrics overrides the metrics instance. The default is
// [observe.DefaultMetrics], which records against the global meter provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithSessionID stamps persisted key points with the given meeting session ID.
func WithSessionID(id string) Option {
	return func(o *options) { o.sessionID = id }
}

func applyOptions(opts []Option) options {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o
}

// KeypointPipeline drives the key-point extraction consumer for one chunk at
// a time and appends each extracted item to the key-point log.
//
// A weight-1 semaphore serializes the whole consumer-call-and-persist
// sequence: no matter how many chunks arrive concurrently, at most one
// key-point consumer request is ever in flight. The semaphore is independent
// of the speaker pipeline's, so the two never block each other.
type KeypointPipeline struct {
	sem      *semaphore.Weighted
	consumer Consumer
	log      keypoint.Log
	opts     options
}

// NewKeypointPipeline returns a ready [KeypointPipeline].
func NewKeypointPipeline(consumer Consumer, log keypoint.Log, opts ...Option) *KeypointPipeline {
	return &KeypointPipeline{
		sem:      semaphore.NewWeighted(1),
		consumer: consumer,
		log:      log,
		opts:     applyOptions(opts),
	}
}

// Process sends chunk to the key-point consumer, parses the reply, and
// persists every item with non-empty point text.
//
// Unparseable replies are an expected outcome and are swallowed: logged at
// debug, counted, nothing persisted, nil returned. Transport and persistence
// faults return as errors for the orchestrator to absorb. Persistence is
// per-item and non-transactional; a fault on item N leaves items 1..N-1
// stored.
func (p *KeypointPipeline) Process(ctx context.Context, chunk stt.Chunk) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("enrich: keypoints: acquire: %w", err)
	}
	defer p.sem.Release(1)

	ctx, span := observe.StartSpan(ctx, "enrich.keypoints")
	defer span.End()

	payload := ChunkPayload{
		Transcript: chunk.Text,
		SpeakerTag: chunk.SpeakerTag,
		Timestamp:  chunk.Timestamp,
	}

	start := time.Now()
	reply, err := p.consumer.Send(ctx, payload)
	p.opts.metrics.RecordConsumerDuration(ctx, observe.PipelineKeypoints, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("enrich: keypoints: %w", err)
	}

	resp, parseErr := parseKeypointResponse(reply)
	if parseErr != nil {
		observe.Logger(ctx).Debug("discarding unparseable keypoint response", "err", parseErr)
		p.opts.metrics.RecordParseFailure(ctx, observe.PipelineKeypoints)
		return nil
	}

	arrival := chunk.Timestamp
	if arrival.IsZero() {
		arrival = time.Now().UTC()
	}

	for _, it := range resp.Items {
		if strings.TrimSpace(it.Point) == "" {
			continue
		}
		item := mapKeypointItem(it, arrival, p.opts.sessionID)
		if err := p.log.Add(ctx, item); err != nil {
			return fmt.Errorf("enrich: keypoints: persist item: %w", err)
		}
		p.opts.metrics.KeypointsPersisted.Add(ctx, 1)
	}
	return nil
}

// mapKeypointItem converts one response item into a [keypoint.Item], filling
// the documented defaults: missing speaker tags become "Unknown", a missing
// suggestedBy falls back to the item's speaker tag, and a missing or
// unparseable timestamp falls back to the chunk arrival time.
func mapKeypointItem(it keypointItem, arrival time.Time, sessionID string) keypoint.Item {
	tag := it.GuestID
	if tag == "" {
		tag = "Unknown"
	}
	suggestedBy := it.SuggestedBy
	if suggestedBy == "" {
		suggestedBy = tag
	}
	ts := parseItemTimestamp(it.Timestamp)
	if ts.IsZero() {
		ts = arrival
	}

	return keypoint.Item{
		SessionID:     sessionID,
		Timestamp:     ts,
		SpeakerTag:    tag,
		IsActionItem:  it.Todo,
		Text:          it.Point,
		SuggestedBy:   suggestedBy,
		NeedsFollowUp: it.NeedsFollowUp,
	}
}
