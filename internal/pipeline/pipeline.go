// Package pipeline runs segmentation, recognition and correction as
// concurrent stages connected by bounded queues.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/chaz8081/gostt-stream/internal/audio"
	"github.com/chaz8081/gostt-stream/internal/correct"
	"github.com/chaz8081/gostt-stream/internal/metrics"
	"github.com/chaz8081/gostt-stream/internal/punctuate"
	"github.com/chaz8081/gostt-stream/internal/segment"
	"github.com/chaz8081/gostt-stream/internal/transcribe"
	"github.com/chaz8081/gostt-stream/internal/vad"
)

// ErrRecognitionEmpty is returned by Run when the whole session produced no
// text. The partial Result is still returned with it.
var ErrRecognitionEmpty = errors.New("pipeline: no speech recognized")

// DefaultQueueSize is used when Options.QueueSize is zero.
const DefaultQueueSize = 16

// Options configures a Pipeline.
type Options struct {
	Source     audio.Source
	Detector   vad.Detector
	Recognizer *transcribe.Stage
	Corrector  *correct.Stage

	// SampleRate is the rate the source must deliver.
	SampleRate    int
	FrameDuration time.Duration
	Segmenter     segment.Config
	// Multiplier scales the deviation in the pause distance threshold.
	Multiplier float64

	QueueSize int
	// SilenceLimit ends the run when no corrected text arrives for this
	// long. Zero disables it.
	SilenceLimit time.Duration
	// SegmentDir, when set, receives every segment as a WAV file.
	SegmentDir string
	// Name labels the source in the Result.
	Name string

	Log zerolog.Logger
}

// Pipeline runs one session. It must not be reused after Run returns.
type Pipeline struct {
	opts       Options
	classifier punctuate.Classifier
	mapper     punctuate.Mapper
	log        zerolog.Logger

	canceled atomic.Bool
	timedOut atomic.Bool
}

type segmentItem struct {
	index int
	seg   *segment.Segment
}

// New validates opts and returns a Pipeline.
func New(opts Options) (*Pipeline, error) {
	switch {
	case opts.Source == nil:
		return nil, fmt.Errorf("pipeline: source is required")
	case opts.Detector == nil:
		return nil, fmt.Errorf("pipeline: voice-activity detector is required")
	case opts.Recognizer == nil:
		return nil, fmt.Errorf("pipeline: recognizer is required")
	case opts.Corrector == nil:
		return nil, fmt.Errorf("pipeline: corrector is required")
	case opts.SampleRate <= 0:
		return nil, fmt.Errorf("pipeline: sample rate must be > 0")
	case opts.FrameDuration <= 0:
		return nil, fmt.Errorf("pipeline: frame duration must be > 0")
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}

	classifier := punctuate.NewClassifier(opts.FrameDuration, opts.Multiplier)
	classifier.MinOffset = opts.Segmenter.MinPauseOffset
	classifier.Log = opts.Log

	return &Pipeline{
		opts:       opts,
		classifier: classifier,
		mapper:     punctuate.Mapper{FrameDuration: opts.FrameDuration},
		log:        opts.Log,
	}, nil
}

// Cancel stops the segmenter from reading further frames. Buffered speech
// is still flushed and processed. Safe to call repeatedly from any goroutine.
func (p *Pipeline) Cancel() {
	if p.canceled.CompareAndSwap(false, true) {
		p.log.Debug().Msg("cancellation requested")
	}
}

// Canceled reports whether Cancel was called or a stage failed.
func (p *Pipeline) Canceled() bool { return p.canceled.Load() }

// Run processes the source until it is exhausted, Cancel is called or the
// silence limit expires, and returns the result. A source in the wrong
// format fails before any frame is read. The first stage error aborts the
// run and is returned.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if err := audio.CheckFormat(audio.Mono16(p.opts.SampleRate), p.opts.Source.Format()); err != nil {
		metrics.RunsTotal.WithLabelValues("format_mismatch").Inc()
		return nil, err
	}
	if p.opts.SegmentDir != "" {
		if err := os.MkdirAll(p.opts.SegmentDir, 0755); err != nil {
			return nil, fmt.Errorf("pipeline: create segment dir: %w", err)
		}
	}

	res := &Result{ID: xid.New().String(), Source: p.opts.Name, StartedAt: time.Now()}
	log := p.log.With().Str("run", res.ID).Logger()
	log.Info().Str("source", p.opts.Name).Msg("pipeline started")

	qs := p.opts.QueueSize
	segments := make(chan Message[segmentItem], qs)
	raw := make(chan Message[SegmentResult], qs)
	corrected := make(chan Message[SegmentResult], qs)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.fail(p.segmentStage(gctx, segments)) })
	g.Go(func() error { return p.fail(p.recognizeStage(gctx, segments, raw)) })
	g.Go(func() error { return p.fail(p.correctStage(gctx, raw, corrected)) })

	var transcript Transcript
	readErr := p.read(gctx, corrected, &transcript, res)
	err := g.Wait()
	if err == nil {
		err = readErr
	}

	res.Sentences = transcript.Sentences()
	res.Transcript = transcript.String()
	res.Elapsed = time.Since(res.StartedAt)
	res.TimedOut = p.timedOut.Load()

	if err != nil {
		metrics.RunsTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("pipeline aborted")
		return res, err
	}
	if transcript.Len() == 0 {
		metrics.RunsTotal.WithLabelValues("empty").Inc()
		log.Warn().Int("segments", len(res.Segments)).Msg("no speech recognized")
		return res, ErrRecognitionEmpty
	}

	metrics.RunsTotal.WithLabelValues("ok").Inc()
	log.Info().
		Int("segments", len(res.Segments)).
		Int("sentences", len(res.Sentences)).
		Dur("elapsed", res.Elapsed).
		Msg("pipeline finished")
	return res, nil
}

// fail sets the cancel flag when err is non-nil and returns err.
func (p *Pipeline) fail(err error) error {
	if err != nil {
		p.canceled.Store(true)
	}
	return err
}

// segmentStage reads frames, segments them and queues each segment.
func (p *Pipeline) segmentStage(ctx context.Context, out chan<- Message[segmentItem]) error {
	seg := segment.New(p.opts.Segmenter)
	index := 0
	emit := func(s *segment.Segment) error {
		metrics.SegmentsTotal.Inc()
		p.log.Debug().
			Str("segment", s.ID).
			Int("start_frame", s.StartFrame).
			Int("frames", s.Frames).
			Dur("duration", s.Duration(p.opts.FrameDuration)).
			Int("pauses", len(s.Pauses)).
			Msg("segment emitted")
		if p.opts.SegmentDir != "" {
			name := filepath.Join(p.opts.SegmentDir, fmt.Sprintf("%03d-%s.wav", index, s.ID))
			if err := audio.WriteWAV(name, p.opts.SampleRate, s.Samples); err != nil {
				return fmt.Errorf("pipeline: dump segment: %w", err)
			}
		}
		item := segmentItem{index: index, seg: s}
		index++
		return send(ctx, out, Data(item))
	}

	for !p.canceled.Load() {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := p.opts.Source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("pipeline: read frame: %w", err)
		}

		speech, err := p.opts.Detector.IsSpeech(f.Samples, p.opts.SampleRate)
		if err != nil {
			return fmt.Errorf("pipeline: frame %d: %w", f.Index, err)
		}
		metrics.FramesTotal.WithLabelValues(strconv.FormatBool(speech)).Inc()

		if s, ok := seg.Push(f, speech); ok {
			if err := emit(s); err != nil {
				return err
			}
		}
	}

	if s, ok := seg.Flush(); ok {
		if err := emit(s); err != nil {
			return err
		}
	}
	return send(ctx, out, Close[segmentItem]())
}

// recognizeStage turns segments into punctuated text.
func (p *Pipeline) recognizeStage(ctx context.Context, in <-chan Message[segmentItem], out chan<- Message[SegmentResult]) error {
	for {
		msg, err := recv(ctx, in)
		if err != nil {
			return err
		}
		if msg.IsClose() {
			return send(ctx, out, Close[SegmentResult]())
		}
		item := msg.Value()

		start := time.Now()
		rec, err := p.opts.Recognizer.Recognize(ctx, item.seg)
		metrics.ObserveStage(metrics.StageRecognize, start)
		if err != nil {
			if errors.Is(err, transcribe.ErrAlignment) {
				metrics.AlignmentErrorsTotal.Inc()
			}
			return err
		}

		r := SegmentResult{
			Index:      item.index,
			ID:         item.seg.ID,
			StartFrame: item.seg.StartFrame,
			Frames:     item.seg.Frames,
			Raw:        rec.Text,
			Words:      rec.Words,
		}
		if rec.Empty() {
			metrics.EmptySegmentsTotal.Inc()
		} else {
			start = time.Now()
			r.Punctuated, r.Pauses = p.punctuate(item.seg, rec)
			metrics.ObserveStage(metrics.StagePunctuate, start)
		}

		if err := send(ctx, out, Data(r)); err != nil {
			return err
		}
	}
}

// punctuate classifies the segment's pauses and maps them onto the words.
func (p *Pipeline) punctuate(seg *segment.Segment, rec transcribe.Recognition) (string, []PauseResult) {
	durations := seg.PauseDurations(p.opts.FrameDuration)
	classes := p.classifier.Classify(durations)

	pauses := make([]PauseResult, 0, len(classes))
	for off, cls := range classes {
		metrics.PausesTotal.WithLabelValues(cls.String()).Inc()
		pauses = append(pauses, PauseResult{Offset: off, Duration: durations[off], Class: cls.String()})
	}
	sort.Slice(pauses, func(i, j int) bool { return pauses[i].Offset < pauses[j].Offset })

	return p.mapper.Map(rec.Words, classes), pauses
}

// correctStage runs punctuated text through the corrector.
func (p *Pipeline) correctStage(ctx context.Context, in <-chan Message[SegmentResult], out chan<- Message[SegmentResult]) error {
	for {
		msg, err := recv(ctx, in)
		if err != nil {
			return err
		}
		if msg.IsClose() {
			return send(ctx, out, Close[SegmentResult]())
		}
		r := msg.Value()

		start := time.Now()
		r.Corrected, err = p.opts.Corrector.Correct(ctx, r.Punctuated)
		metrics.ObserveStage(metrics.StageCorrect, start)
		if err != nil {
			return fmt.Errorf("pipeline: segment %s: %w", r.ID, err)
		}

		if err := send(ctx, out, Data(r)); err != nil {
			return err
		}
	}
}

// read drains corrected text into the transcript until the close message.
// If no text arrives within the silence limit the pipeline is cancelled and
// draining continues without a limit. Segments that produced no text do not
// count as arrivals.
func (p *Pipeline) read(ctx context.Context, in <-chan Message[SegmentResult], t *Transcript, res *Result) error {
	limit := p.opts.SilenceLimit
	var timer *time.Timer
	var expired <-chan time.Time
	if limit > 0 {
		timer = time.NewTimer(limit)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-expired:
			p.log.Info().Dur("silence_limit", limit).Msg("silence limit reached, finishing")
			p.timedOut.Store(true)
			p.Cancel()
			expired = nil
		case msg := <-in:
			if msg.IsClose() {
				return nil
			}
			r := msg.Value()
			res.Segments = append(res.Segments, r)
			if strings.TrimSpace(r.Corrected) == "" {
				continue
			}
			t.Append(r.Corrected)
			if expired != nil {
				timer.Reset(limit)
			}
		}
	}
}
