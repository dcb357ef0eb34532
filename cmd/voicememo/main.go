package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/voicememo/voicememo/internal/capture"
	"github.com/voicememo/voicememo/internal/config"
	"github.com/voicememo/voicememo/internal/device"
	"github.com/voicememo/voicememo/internal/logging"
	"github.com/voicememo/voicememo/internal/memo"
	"github.com/voicememo/voicememo/internal/models"
	"github.com/voicememo/voicememo/internal/store"
	"github.com/voicememo/voicememo/internal/transcribe"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/voicememo/config.yaml)")
	downloadModel := flag.Bool("download-model", false, "download a whisper model and exit")
	flag.Parse()

	if *downloadModel {
		if err := models.RunInteractiveDownload(); err != nil {
			fmt.Fprintf(os.Stderr, "model download: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config validation: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	printBanner(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A broken store degrades to in-memory: the app starts with an
	// empty memo list instead of crashing.
	st, err := store.Open(cfg.Store.Dir, logger)
	if err != nil {
		logger.Error().Err(err).Str("dir", cfg.Store.Dir).
			Msg("persistent storage unavailable, memos will not survive restart")
		st, err = store.OpenInMemory(cfg.Store.Dir, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("opening fallback store")
		}
	}
	defer st.Close()

	backend, err := transcribe.New(&cfg.Transcribe, logger, func(p transcribe.Progress) {
		logger.Debug().Str("stage", string(p.Stage)).Int("percent", p.Percent).Msg("transcription progress")
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("creating transcription backend")
	}
	defer backend.Close()

	agg := memo.NewAggregator(st, backend, cfg.Memo.MaxCount, logger)

	enum, err := device.NewMalgoEnumerator()
	if err != nil {
		logger.Fatal().Err(err).Msg("initializing device enumeration")
	}
	defer enum.Close()

	detector := device.NewDetector(enum, logger)
	go detector.Watch(ctx, 10*time.Second)

	opener, err := capture.NewMalgoOpener(enum)
	if err != nil {
		logger.Fatal().Err(err).Msg("initializing audio capture")
	}
	defer opener.Close()

	session := capture.NewSession(opener, capture.Constraints{
		SampleRate:       uint32(cfg.Audio.SampleRate),
		Channels:         uint32(cfg.Audio.Channels),
		EchoCancellation: cfg.Audio.EchoCancellation,
		NoiseSuppression: cfg.Audio.NoiseSuppression,
		AutoGainControl:  cfg.Audio.AutoGainControl,
	}, time.Duration(cfg.Audio.ChunkIntervalMs)*time.Millisecond, logger)
	defer session.Close()

	go drainSessionEvents(session, logger)

	sizeTicker := time.NewTicker(time.Duration(cfg.Memo.SizeRefreshMinutes) * time.Minute)
	defer sizeTicker.Stop()

	lines := make(chan string)
	go readLines(lines)

	// Recording id of the most recently submitted transcription, so
	// 'cancel' without an argument aborts it.
	var lastAudioID string

	fmt.Println("Ready. Type 'help' for commands.")
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down")
			if rec, err := session.Stop(); err == nil && rec != nil {
				if err := st.PutRecording(rec); err != nil {
					logger.Warn().Err(err).Msg("saving final recording")
				}
			}
			return
		case <-sizeTicker.C:
			agg.UpdateSizes()
		case line, ok := <-lines:
			if !ok {
				stop()
				continue
			}
			runCommand(ctx, line, session, detector, agg, st, &lastAudioID, logger)
		}
	}
}

func runCommand(ctx context.Context, line string, session *capture.Session, detector *device.Detector, agg *memo.Aggregator, st *store.Store, lastAudioID *string, logger zerolog.Logger) {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "":
	case "help":
		printHelp()
	case "record", "r":
		if err := session.Start(detector.PreferredDeviceID()); err != nil {
			logger.Error().Err(err).Msg("starting capture")
			return
		}
		fmt.Println("Recording... type 'stop' to finish.")
	case "stop", "s":
		rec, err := session.Stop()
		if err != nil {
			logger.Error().Err(err).Msg("stopping capture")
			return
		}
		if rec == nil {
			fmt.Println("Nothing recorded.")
			return
		}
		*lastAudioID = rec.ID
		fmt.Printf("Captured %.1fs, transcribing... ('cancel' to abort)\n", float64(rec.DurationMs)/1000)
		go func(text string, rec *store.AudioRecording) {
			var m *store.Memo
			var err error
			if text != "" {
				m, err = agg.AddMixedMemo(ctx, text, rec)
			} else {
				m, err = agg.AddAudioMemo(ctx, rec)
			}
			if err != nil {
				logger.Error().Err(err).Msg("creating memo")
				return
			}
			fmt.Printf("Memo %s: %s\n", shortID(m.ID), m.Text)
		}(rest, rec)
	case "cancel":
		id := rest
		if id == "" {
			id = *lastAudioID
		}
		if id == "" {
			fmt.Println("Nothing to cancel.")
			return
		}
		if agg.Cancel(id) {
			fmt.Println("Transcription cancelled.")
		} else {
			fmt.Println("No transcription in flight for that recording.")
		}
	case "text", "t":
		if rest == "" {
			fmt.Println("Usage: text <memo text>")
			return
		}
		m, err := agg.AddTextMemo(rest)
		if err != nil {
			logger.Error().Err(err).Msg("creating memo")
			return
		}
		fmt.Printf("Memo %s created.\n", shortID(m.ID))
	case "list", "ls":
		agg.UpdateSizes()
		printMemos(agg.Sorted(parseOrder(rest)))
	case "search":
		printMemos(agg.Search(rest))
	case "type":
		printMemos(agg.ByType(store.MemoType(rest)))
	case "edit":
		id, text, _ := strings.Cut(rest, " ")
		if err := agg.Edit(id, strings.TrimSpace(text)); err != nil {
			logger.Error().Err(err).Msg("editing memo")
			return
		}
		fmt.Println("Updated.")
	case "delete", "rm":
		if err := agg.Delete(rest); err != nil {
			logger.Error().Err(err).Msg("deleting memo")
			return
		}
		fmt.Println("Deleted.")
	case "clear":
		if err := agg.ClearAll(); err != nil {
			logger.Error().Err(err).Msg("clearing memos")
			return
		}
		fmt.Println("All memos cleared.")
	case "url":
		m := agg.Get(rest)
		if m == nil || m.AudioID == "" {
			fmt.Println("No audio for that memo.")
			return
		}
		url, err := st.ResolveURL(m.AudioID)
		if err != nil {
			logger.Error().Err(err).Msg("resolving audio url")
			return
		}
		fmt.Println(url)
	case "stats":
		s := agg.Stats()
		fmt.Printf("%d memos (%d text, %d audio, %d mixed), %.1fs of audio\n",
			s.Total, s.Text, s.Audio, s.Mixed, float64(s.AudioDurationMs)/1000)
	case "devices":
		info := detector.Detect("")
		fmt.Printf("hands-free active: %v, preferred device: %s\n",
			info.IsBluetoothHFPActive, orDefault(info.PreferredDeviceID))
	case "quit", "exit", "q":
		// EOF on the line channel triggers shutdown; mirror that here.
		p, _ := os.FindProcess(os.Getpid())
		p.Signal(syscall.SIGTERM)
	default:
		fmt.Printf("Unknown command %q. Type 'help' for commands.\n", cmd)
	}
}

func drainSessionEvents(session *capture.Session, logger zerolog.Logger) {
	for ev := range session.Events() {
		switch ev.Kind {
		case capture.EventStateChanged:
			logger.Debug().Str("state", string(ev.State)).Msg("capture state")
		case capture.EventLevel:
			logger.Trace().Float64("level", ev.Level).Msg("input level")
		case capture.EventError:
			logger.Error().Err(ev.Err).Msg("capture error")
		}
	}
}

func readLines(out chan<- string) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		out <- scanner.Text()
	}
	close(out)
}

func parseOrder(s string) store.SortOrder {
	switch s {
	case "oldest":
		return store.SortOldestFirst
	case "alpha":
		return store.SortAlphabetical
	case "type":
		return store.SortByType
	case "size":
		return store.SortBySize
	default:
		return store.SortNewestFirst
	}
}

func printMemos(memos []*store.Memo) {
	if len(memos) == 0 {
		fmt.Println("No memos.")
		return
	}
	for _, m := range memos {
		fmt.Printf("  %s  [%s]  size %.2f  %s  %s\n",
			shortID(m.ID), m.Type, m.CurrentSize,
			m.CreatedAt.Format("Jan 02 15:04"), m.Text)
	}
}

func printHelp() {
	fmt.Println(`Commands:
  record            start recording
  stop [text]       stop recording and create a memo (text makes it mixed)
  cancel [rec-id]   abort an in-flight transcription (default: latest)
  text <text>       create a text memo
  list [order]      list memos (order: newest, oldest, alpha, type, size)
  search <query>    search memo text
  type <t>          list memos of one type (text, audio, mixed)
  edit <id> <text>  replace a memo's text
  delete <id>       delete a memo and its audio
  url <id>          print a memo's playable audio reference
  clear             delete all memos
  stats             memo counts by type
  devices           show device detection state
  quit              exit`)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orDefault(id string) string {
	if id == "" {
		return "(system default)"
	}
	return id
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		return cfg, nil
	}

	return config.Default(), nil
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	fmt.Println("=== voicememo ===")
	fmt.Printf("  Backend: %s\n", cfg.Transcribe.Backend)
	if cfg.Transcribe.Backend == "remote" {
		fmt.Printf("  Remote:  %s\n", cfg.Transcribe.Endpoint)
	} else {
		fmt.Printf("  Model:   %s\n", cfg.Transcribe.ModelPath)
	}
	fmt.Printf("  Audio:   %dHz, %dch\n", cfg.Audio.SampleRate, cfg.Audio.Channels)
	fmt.Printf("  Store:   %s\n", cfg.Store.Dir)
	fmt.Printf("  Log:     %s\n", cfg.LogLevel)
	fmt.Println("=================")
}
