package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/chaz8081/gostt-stream/internal/audio"
	"github.com/chaz8081/gostt-stream/internal/config"
	"github.com/chaz8081/gostt-stream/internal/correct"
	"github.com/chaz8081/gostt-stream/internal/metrics"
	"github.com/chaz8081/gostt-stream/internal/models"
	"github.com/chaz8081/gostt-stream/internal/pipeline"
	"github.com/chaz8081/gostt-stream/internal/segment"
	"github.com/chaz8081/gostt-stream/internal/transcribe"
	"github.com/chaz8081/gostt-stream/internal/vad"
	"github.com/chaz8081/gostt-stream/internal/watch"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/gostt-stream/config.yaml)")
	envFile := flag.String("env-file", ".env", "load environment overrides from this file if it exists")
	file := flag.String("file", "", "transcribe a 16-bit mono WAV file")
	live := flag.Bool("live", false, "transcribe from the capture device until silence or Ctrl+C")
	watchDir := flag.String("watch", "", "transcribe every new WAV file that appears in this directory")
	out := flag.String("out", "", "write the result as CBOR to this path")
	reference := flag.String("reference", "", "score the transcript against the text in this file")
	show := flag.String("show", "", "print a saved CBOR result and exit")
	segmentDir := flag.String("segment-dir", "", "write every detected segment as a WAV file to this directory")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	logLevel := flag.String("log-level", "", "debug, info, warn or error (overrides config)")
	downloadVocab := flag.Bool("download-vocab", false, "download the recognizer vocabulary and exit")
	initConfig := flag.Bool("init-config", false, "write the default config file and exit")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger()

	if *initConfig {
		path, err := config.WriteDefault()
		if err != nil {
			log.Fatal().Err(err).Msg("writing default config")
		}
		if path == "" {
			fmt.Printf("Config already exists at %s\n", config.DefaultConfigPath())
			return
		}
		fmt.Printf("Wrote default config to %s\n", path)
		return
	}

	if *show != "" {
		res, err := pipeline.LoadResult(*show)
		if err != nil {
			log.Fatal().Err(err).Msg("reading result")
		}
		printResult(res)
		return
	}

	// Load configuration: flags > env > file > defaults
	if err := config.LoadDotEnv(*envFile); err != nil {
		log.Fatal().Err(err).Msg("env file")
	}
	cfg, err := loadConfig(*configPath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if err := cfg.ApplyEnv(); err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}
	if *segmentDir != "" {
		cfg.Pipeline.SegmentDir = *segmentDir
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}
	log = log.Level(config.ParseLogLevel(cfg.LogLevel))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *downloadVocab {
		if err := models.DownloadVocabulary(ctx, cfg.Recognizer.VocabURL, cfg.Recognizer.VocabPath, os.Stdout); err != nil {
			log.Fatal().Err(err).Msg("vocabulary download failed")
		}
		return
	}

	modes := 0
	for _, set := range []bool{*file != "", *live, *watchDir != ""} {
		if set {
			modes++
		}
	}
	if modes != 1 {
		fmt.Fprintln(os.Stderr, "exactly one of -file, -live or -watch is required")
		flag.Usage()
		os.Exit(2)
	}

	printBanner(cfg)

	vocab, err := loadVocabulary(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msgf("Failed to load vocabulary from %s. Run with -download-vocab to fetch it.", cfg.Recognizer.VocabPath)
	}
	rec, err := transcribe.New(&cfg.Recognizer, cfg.Audio.SampleRate, vocab)
	if err != nil {
		log.Fatal().Err(err).Msg("recognizer")
	}
	cor, err := correct.New(&cfg.Corrector)
	if err != nil {
		log.Fatal().Err(err).Msg("corrector")
	}
	log.Info().
		Str("recognizer", cfg.Recognizer.URL).
		Str("corrector", cfg.Corrector.Backend).
		Int("vocab_size", vocab.Len()).
		Msg("backends ready")

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, log); err != nil {
				log.Error().Err(err).Msg("metrics listener failed")
			}
		}()
	}

	a := &app{cfg: cfg, vocab: vocab, rec: rec, cor: cor, log: log}

	// Signal handling: the first signal drains the current run, the second aborts it.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	switch {
	case *watchDir != "":
		go func() {
			sig := <-sigCh
			log.Info().Str("signal", sig.String()).Msg("shutting down")
			cancel()
		}()
		w := watch.New(*watchDir, cfg.Watch.Debounce, a.processFile, log)
		if err := w.Run(ctx); err != nil {
			log.Fatal().Err(err).Msg("watch failed")
		}
		processed, failed := w.Stats()
		fmt.Printf("Processed %d files (%d failed)\n", processed, failed)

	case *live:
		src, err := audio.NewCaptureSource(cfg.Audio.SampleRate, cfg.Audio.FrameDuration, cfg.Audio.Device)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open capture device. Check that microphone access is granted.")
		}
		log.Info().Msg("Listening... Press Ctrl+C to stop.")
		res, err := a.run(ctx, cancel, sigCh, src, "live", cfg.Pipeline.SilenceLimit)
		src.Close()
		if dropped := src.Dropped(); dropped > 0 {
			log.Warn().Int64("frames", dropped).Msg("capture frames dropped")
		}
		finish(res, err, *out, log)

	default:
		src, err := audio.OpenWAV(*file, cfg.Audio.FrameDuration)
		if err != nil {
			log.Fatal().Err(err).Msg("open input")
		}
		res, err := a.run(ctx, cancel, sigCh, src, filepath.Base(*file), 0)
		src.Close()
		if res != nil && *reference != "" {
			if err := scoreResult(res, *reference, log); err != nil {
				log.Error().Err(err).Msg("scoring failed")
			}
		}
		finish(res, err, *out, log)
	}
}

// app holds the components shared by every run.
type app struct {
	cfg   *config.Config
	vocab *transcribe.Vocabulary
	rec   transcribe.Recognizer
	cor   correct.Corrector
	log   zerolog.Logger
}

func (a *app) newPipeline(src audio.Source, name string, silenceLimit time.Duration) (*pipeline.Pipeline, error) {
	detector, err := vad.NewEnergyDetector(a.cfg.VAD.Mode)
	if err != nil {
		return nil, err
	}
	a.log.Debug().Int("vad_mode", detector.Mode()).Str("source", name).Msg("creating pipeline")
	return pipeline.New(pipeline.Options{
		Source:        src,
		Detector:      detector,
		Recognizer:    transcribe.NewStage(a.rec, a.vocab, a.cfg.Audio.SampleRate, a.log.With().Str("component", "recognizer").Logger()),
		Corrector:     correct.NewStage(a.cor, a.cfg.Corrector.MaxLength, a.log.With().Str("component", "corrector").Logger()),
		SampleRate:    a.cfg.Audio.SampleRate,
		FrameDuration: a.cfg.Audio.FrameDuration,
		Segmenter: segment.Config{
			MaxPauseFrames: a.cfg.MaxPauseFrames(),
			MinPauseOffset: a.cfg.Segmenter.MinPauseOffset,
		},
		Multiplier:   a.cfg.Punctuation.ThresholdMultiplier,
		QueueSize:    a.cfg.Pipeline.QueueSize,
		SilenceLimit: silenceLimit,
		SegmentDir:   a.cfg.Pipeline.SegmentDir,
		Name:         name,
		Log:          a.log.With().Str("component", "pipeline").Logger(),
	})
}

// run executes one pipeline over src. The first signal on sigCh cancels the
// pipeline so buffered speech is still transcribed; a second one cancels ctx.
func (a *app) run(ctx context.Context, cancel context.CancelFunc, sigCh <-chan os.Signal, src audio.Source, name string, silenceLimit time.Duration) (*pipeline.Result, error) {
	p, err := a.newPipeline(src, name, silenceLimit)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case sig := <-sigCh:
			a.log.Info().Str("signal", sig.String()).Msg("finishing current speech, press Ctrl+C again to abort")
			p.Cancel()
		case <-done:
			return
		}
		select {
		case <-sigCh:
			cancel()
		case <-done:
		}
	}()

	return p.Run(ctx)
}

// processFile transcribes one WAV file and writes its result next to it.
func (a *app) processFile(ctx context.Context, path string) error {
	src, err := audio.OpenWAV(path, a.cfg.Audio.FrameDuration)
	if err != nil {
		return err
	}
	defer src.Close()

	p, err := a.newPipeline(src, filepath.Base(path), 0)
	if err != nil {
		return err
	}
	res, err := p.Run(ctx)
	if err != nil && !errors.Is(err, pipeline.ErrRecognitionEmpty) {
		return err
	}
	return res.Save(watch.ResultPath(path))
}

// finish prints the transcript, saves the result and exits non-zero on failure.
func finish(res *pipeline.Result, err error, out string, log zerolog.Logger) {
	switch {
	case errors.Is(err, pipeline.ErrRecognitionEmpty):
		log.Warn().Msg("No speech recognized")
	case errors.Is(err, audio.ErrFormatMismatch):
		log.Fatal().Err(err).Msg("Input must be 16-bit mono PCM at the configured sample rate")
	case err != nil:
		log.Error().Err(err).Msg("transcription failed")
	}
	if res == nil {
		os.Exit(1)
	}

	if res.Transcript != "" {
		fmt.Println(res.Transcript)
	}
	log.Info().
		Int("segments", len(res.Segments)).
		Dur("elapsed", res.Elapsed.Round(time.Millisecond)).
		Bool("timed_out", res.TimedOut).
		Msg("done")

	if out != "" {
		if err := res.Save(out); err != nil {
			log.Fatal().Err(err).Msg("saving result")
		}
		log.Info().Str("path", out).Msg("result saved")
	}
	if err != nil && !errors.Is(err, pipeline.ErrRecognitionEmpty) {
		os.Exit(1)
	}
}

// scoreResult compares the transcript with the reference text at path.
func scoreResult(res *pipeline.Result, path string, log zerolog.Logger) error {
	ref, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading reference: %w", err)
	}
	score := transcribe.Compare(string(ref), res.Transcript)
	res.Score = &score
	log.Info().
		Str("wer", fmt.Sprintf("%.1f%%", score.WER*100)).
		Int("substitutions", score.Substitutions).
		Int("insertions", score.Insertions).
		Int("deletions", score.Deletions).
		Int("ref_words", score.RefWords).
		Msg("transcript scored")
	return nil
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string, log zerolog.Logger) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Info().Str("path", defaultPath).Msg("config loaded")
		return cfg, nil
	}

	log.Info().Msg("No config file found, using defaults")
	return config.Default(), nil
}

// loadVocabulary reads the recognizer vocabulary, downloading it first
// when the file does not exist yet.
func loadVocabulary(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*transcribe.Vocabulary, error) {
	path := cfg.Recognizer.VocabPath
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && cfg.Recognizer.VocabURL != "" {
		log.Info().Str("url", cfg.Recognizer.VocabURL).Msg("vocabulary not found, downloading")
		if err := models.DownloadVocabulary(ctx, cfg.Recognizer.VocabURL, path, os.Stderr); err != nil {
			return nil, err
		}
	}
	return transcribe.LoadVocabulary(path)
}

// printResult displays a saved result segment by segment.
func printResult(res *pipeline.Result) {
	fmt.Printf("=== %s (%s) ===\n", res.Source, res.ID)
	fmt.Printf("  Started: %s, took %s\n", res.StartedAt.Format(time.RFC3339), res.Elapsed.Round(time.Millisecond))
	for _, seg := range res.Segments {
		fmt.Printf("  [%03d] frames %d+%d, %d pauses: %s\n", seg.Index, seg.StartFrame, seg.Frames, len(seg.Pauses), seg.Corrected)
	}
	if res.Score != nil {
		fmt.Printf("  WER: %.1f%% (%d ref words)\n", res.Score.WER*100, res.Score.RefWords)
	}
	fmt.Println(res.Transcript)
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	fmt.Println("=== gostt-stream ===")
	fmt.Printf("  Audio:      %dHz, %s frames\n", cfg.Audio.SampleRate, cfg.Audio.FrameDuration)
	fmt.Printf("  VAD:        mode %d, max pause %s\n", cfg.VAD.Mode, cfg.Segmenter.MaxPause)
	fmt.Printf("  Recognizer: %s (%s)\n", cfg.Recognizer.Backend, cfg.Recognizer.URL)
	fmt.Printf("  Corrector:  %s\n", cfg.Corrector.Backend)
	fmt.Printf("  Log:        %s\n", cfg.LogLevel)
	fmt.Println("====================")
}
