package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"firetunnel/app"
	"firetunnel/capture"
	"firetunnel/feed"
	"firetunnel/filter"
	"firetunnel/relay"
	"firetunnel/storage"
	"firetunnel/typedef"

	// hideconsole
	_ "github.com/ebitengine/hideconsole"
	"github.com/hajimehoshi/ebiten/v2"
)

type options struct {
	relayMode  bool
	listen     string
	upstream   string
	feedURL    string
	recordPath string
	replayPath string
	replayLoop bool
	filterPath string
	discard    float64
	focal      float64
	speed      float64
	pprofAddr  string
	seed       uint64
}

func main() {
	var opts options
	flag.BoolVar(&opts.relayMode, "relay", false, "Run the relay server instead of the visualizer")
	flag.StringVar(&opts.listen, "listen", ":8080", "Relay listen address")
	flag.StringVar(&opts.upstream, "upstream", relay.DefaultUpstream, "Relay upstream websocket URL")
	flag.StringVar(&opts.feedURL, "feed", "", "Feed websocket URL (overrides settings)")
	flag.StringVar(&opts.recordPath, "record", "", "Record raw feed messages to this capture file")
	flag.StringVar(&opts.replayPath, "replay", "", "Play a capture file instead of connecting to a feed")
	flag.BoolVar(&opts.replayLoop, "loop", false, "Loop the replayed capture")
	flag.StringVar(&opts.filterPath, "filter", "", "JavaScript filter script")
	flag.Float64Var(&opts.discard, "discard", math.NaN(), "Discard fraction for wall messages (0-1)")
	flag.Float64Var(&opts.focal, "focal", math.NaN(), "Special frequency (0-0.2)")
	flag.Float64Var(&opts.speed, "speed", math.NaN(), "Global speed multiplier")
	flag.StringVar(&opts.pprofAddr, "pprof", "", "Serve pprof on this address")
	flag.Uint64Var(&opts.seed, "seed", 0, "Random seed, 0 picks one from the clock")
	flag.Parse()

	if opts.pprofAddr != "" {
		go func() {
			log.Printf("pprof listening on %s", opts.pprofAddr)
			if err := http.ListenAndServe(opts.pprofAddr, nil); err != nil {
				log.Printf("pprof: %v", err)
			}
		}()
	}

	if opts.relayMode {
		if err := runRelay(opts); err != nil {
			log.Fatalf("relay: %v", err)
		}
		return
	}
	if err := runWithGUI(opts); err != nil {
		log.Fatalf("firetunnel: %v", err)
	}
}

func runRelay(opts options) error {
	fmt.Printf("Starting relay on %s, upstream %s\n", opts.listen, opts.upstream)
	srv, err := relay.NewServer(relay.Config{
		Listen:      opts.listen,
		UpstreamURL: opts.upstream,
		RecordPath:  opts.recordPath,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = srv.Run(ctx)
	fmt.Println("Shutdown complete.")
	return err
}

func loadConfig(opts options) (typedef.Settings, typedef.Keybinds) {
	settings, err := storage.LoadSettings()
	if err != nil {
		log.Printf("settings: %v, using defaults", err)
	}
	keybinds, err := storage.LoadKeybinds()
	if err != nil {
		log.Printf("keybinds: %v, using defaults", err)
	}

	if !math.IsNaN(opts.discard) {
		settings.DiscardFraction = opts.discard
	}
	if !math.IsNaN(opts.focal) {
		settings.SpecialFrequency = opts.focal
	}
	if !math.IsNaN(opts.speed) {
		settings.GlobalSpeed = opts.speed
	}
	if opts.feedURL != "" {
		settings.FeedURL = opts.feedURL
	}
	typedef.NormalizeSettings(&settings)
	return settings, keybinds
}

func runWithGUI(opts options) error {
	settings, keybinds := loadConfig(opts)

	var textFilter feed.TextFilter
	if opts.filterPath != "" {
		script, err := filter.Load(opts.filterPath)
		if err != nil {
			return err
		}
		textFilter = script
	}

	if runtime.GOARCH != "wasm" && runtime.GOOS != "js" {
		_ = app.InitClipboard()
	}

	queue := feed.NewQueue(feed.DefaultQueueSize)
	var source feed.Source
	var recorder *capture.Writer
	if opts.replayPath != "" {
		source = feed.NewReplayer(feed.ReplayOptions{
			Path:   opts.replayPath,
			Queue:  queue,
			Filter: textFilter,
			Loop:   opts.replayLoop,
		})
	} else {
		if opts.recordPath != "" {
			w, err := capture.Create(opts.recordPath)
			if err != nil {
				return err
			}
			recorder = w
		}
		source = feed.NewClient(feed.ClientOptions{
			URL:      settings.FeedURL,
			Queue:    queue,
			Filter:   textFilter,
			Recorder: recorder,
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feedDone := make(chan struct{})
	go func() {
		defer close(feedDone)
		if err := source.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[FEED] stopped: %v", err)
		}
	}()

	seed := opts.seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	ebiten.SetWindowTitle("FireTunnel")
	ebiten.SetTPS(ebiten.SyncWithFPS)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowClosingHandled(true)
	ebiten.SetWindowSize(1600, 900)

	game := app.New(app.Options{
		Settings: &settings,
		Keybinds: keybinds,
		Queue:    queue,
		Source:   source,
		Cancel:   cancel,
		Seed:     seed,
	})

	// Signals stop the loop like the quit key, so the teardown below still runs
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signalChan)
	go func() {
		select {
		case <-signalChan:
			fmt.Println("Received shutdown signal. Cleaning up...")
			cancel()
			game.RequestQuit()
		case <-ctx.Done():
		}
	}()

	runErr := ebiten.RunGameWithOptions(game, &ebiten.RunGameOptions{
		X11ClassName:    "FireTunnel",
		X11InstanceName: "firetunnel",
	})
	game.Dispose()

	cancel()
	<-feedDone
	if recorder != nil {
		if err := recorder.Close(); err != nil {
			log.Printf("close capture: %v", err)
		}
	}
	return runErr
}
