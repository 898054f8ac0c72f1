// Command snakecore is the CLI entrypoint for the time-tag-to-voxel
// reconstruction core. It loads an AppConfig from a TOML file, wires
// the tagger bridge, renderer, and serializer collaborators, and runs
// the stream driver until a signal or the source's end-of-stream.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/snakecore/tagimage/internal/diagnostics"
	"github.com/snakecore/tagimage/internal/monitoring"
	"github.com/snakecore/tagimage/internal/renderer/stream"
	sqlitestore "github.com/snakecore/tagimage/internal/serializer/sqlite"
	"github.com/snakecore/tagimage/internal/snake"
	"github.com/snakecore/tagimage/internal/taggerbridge"
	"github.com/snakecore/tagimage/internal/timeutil"
	"github.com/snakecore/tagimage/internal/tomlconfig"
	"github.com/snakecore/tagimage/internal/version"
)

var (
	dbPath           = flag.String("db", "snakecore_frames.db", "path to the SQLite frame-serializer database")
	replay           = flag.Bool("replay", false, "replay recorded event records instead of reading a serial tagger bridge")
	replayFile       = flag.String("replay-file", "", "fixed-width event record file to replay (required with -replay)")
	replayPace       = flag.Duration("replay-pace", 0, "sleep this long between batches in -replay mode (0 disables pacing)")
	serialPort       = flag.String("serial-port", "", "serial device path for the tagger bridge (required unless -replay)")
	serialBaud       = flag.Int("serial-baud", 3_000_000, "serial baud rate for the tagger bridge")
	grpcAddr         = flag.String("grpc-addr", "", "optional address to republish finished frames over gRPC")
	diagnosticsAddr  = flag.String("diagnostics-addr", "", "optional address for a debug-only heatmap HTTP endpoint")
	sinkDepth        = flag.Int("sink-depth", 4, "bounded channel depth between the driver and the renderer sink")
	replayExisting   = flag.Bool("replay-existing-frame", false, "treat photons before the first frame marker as belonging to frame zero")
	rollingAvgMerged = flag.Bool("rolling-avg", false, "retain the merged display map across frame boundaries")
	versionFlag      = flag.Bool("version", false, "print the build version and exit")
)

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Printf("snakecore %s\n", version.String())
		os.Exit(0)
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: snakecore [flags] <config.toml>")
		os.Exit(2)
	}
	configPath := flag.Arg(0)

	monitoring.Logf("snakecore %s starting with config %s", version.String(), configPath)

	tomlconfig.RootDir = filepath.Dir(configPath)
	cfg, err := tomlconfig.Load(configPath)
	if err != nil {
		log.Fatalf("snakecore: %v", err)
	}
	sessionLogf := monitoring.WithSession(cfg.SessionID)
	sessionLogf("config loaded: %dx%d grid, %d planes", cfg.Rows, cfg.Columns, cfg.Planes)

	store, err := sqlitestore.Open(*dbPath)
	if err != nil {
		log.Fatalf("snakecore: failed to open frame store: %v", err)
	}
	defer store.Close()

	renderSink := stream.NewSink(*sinkDepth)
	defer renderSink.Close()

	var republisher *stream.GRPCRepublisher
	if *grpcAddr != "" {
		republisher = stream.NewGRPCRepublisher(renderSink)
		if err := republisher.Start(*grpcAddr); err != nil {
			log.Fatalf("snakecore: failed to start gRPC republisher: %v", err)
		}
		defer republisher.Stop()
	}

	source, err := buildEventSource()
	if err != nil {
		log.Fatalf("snakecore: %v", err)
	}
	defer source.Close()

	lastFrame := &frameTracker{}
	driver := snake.NewDriver(cfg, taggerbridge.ToBatchSource(source), []snake.FrameSink{store, renderSink, lastFrame},
		*replayExisting, *rollingAvgMerged)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	if *diagnosticsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/debug/heatmap", diagnostics.Handler(lastFrame))
		mux.Handle("/debug/heatmap/export", diagnostics.ExportHandler(lastFrame))
		srv := &http.Server{Addr: *diagnosticsAddr, Handler: mux}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("snakecore: diagnostics server error: %v", err)
			}
		}()
		go func() {
			<-ctx.Done()
			_ = srv.Close()
		}()
	}

	// Drain the renderer sink so backpressure never deadlocks the
	// driver when no GPU point renderer is attached to pull frames.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range renderSink.Frames() {
		}
	}()

	if err := driver.Run(ctx); err != nil && err != context.Canceled {
		log.Printf("snakecore: driver stopped: %v", err)
	}

	// The driver has stopped: stop the diagnostics server and close the
	// renderer sink so the goroutines waited on below can return.
	stop()
	renderSink.Close()
	wg.Wait()
	sessionLogf("dropped %d events over this run (rolling rate %.4f)", driver.Dropped(), driver.DroppedRate())
}

func buildEventSource() (taggerbridge.EventSource, error) {
	if *replay {
		if *replayFile == "" {
			return nil, fmt.Errorf("-replay-file is required with -replay")
		}
		f, err := os.Open(*replayFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open replay file: %w", err)
		}
		// A record file carries the same fixed-width framing as the
		// serial transport; only the byte source differs.
		batches, err := taggerbridge.LoadRecordBatches(f, 4096)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to load replay file: %w", err)
		}
		src := taggerbridge.NewReplaySource(batches)
		if *replayPace > 0 {
			src.WithPacing(*replayPace, timeutil.RealClock{})
		}
		return src, nil
	}
	if *serialPort == "" {
		return nil, fmt.Errorf("-serial-port is required unless -replay is set")
	}
	port, err := taggerbridge.OpenSerialPort(*serialPort, *serialBaud)
	if err != nil {
		return nil, err
	}
	return taggerbridge.NewSerialEventSource(port, 4096), nil
}

// frameTracker implements both snake.FrameSink and
// diagnostics.FrameProvider, retaining only the most recently flushed
// frame for the debug HTTP endpoint.
type frameTracker struct {
	mu    sync.Mutex
	frame snake.FinishedFrame
	have  bool
}

func (t *frameTracker) Submit(_ context.Context, frame snake.FinishedFrame) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frame = frame
	t.have = true
	return nil
}

func (t *frameTracker) LastFrame() (snake.FinishedFrame, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frame, t.have
}
