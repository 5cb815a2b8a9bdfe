// Command directpipe-host runs the DirectPipe audio engine, its
// shared-memory IPC writer, and its WebSocket/REST control surfaces as a
// single long-lived process. It has no GUI of its own; the frontend (or
// any other controller) drives it entirely through the control plane.
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
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/directpipe/host/internal/catalog"
	"github.com/directpipe/host/internal/config"
	"github.com/directpipe/host/internal/control"
	"github.com/directpipe/host/internal/engine"
	"github.com/directpipe/host/internal/httpapi"
	"github.com/directpipe/host/internal/ipcwriter"
	"github.com/directpipe/host/internal/latency"
	"github.com/directpipe/host/internal/notify"
	"github.com/directpipe/host/internal/plugin"
	"github.com/directpipe/host/internal/preset"
	"github.com/directpipe/host/internal/recorder"
	"github.com/directpipe/host/internal/router"
	"github.com/directpipe/host/internal/wsapi"
)

// unimplementedLoader stands in for the out-of-process plugin host: this
// module only speaks the wire contract such a scanner/host would use, it
// does not launch or sandbox third-party plugin binaries itself.
func unimplementedLoader(d plugin.Descriptor) (plugin.Processor, error) {
	return nil, fmt.Errorf("main: no plugin host configured, cannot load %q", d.Name)
}

func main() {
	httpAddr := flag.String("http-addr", "", "REST/WebSocket listen address (overrides saved config)")
	catalogPath := flag.String("catalog", "", "scanned-plugin catalog SQLite path (default: next to config file)")
	presetDir := flag.String("preset-dir", "", "directory holding slot_*.dppreset files (default: next to config file)")
	actionsPerSecond := flag.Float64("action-rate", 50, "maximum POST /api/action requests per second")
	actionBurst := flag.Int("action-burst", 10, "burst allowance for POST /api/action")
	flag.Parse()

	cfg := config.Load()
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}

	configDir, err := configDirOrFallback()
	if err != nil {
		log.Fatalf("[main] resolve config dir: %v", err)
	}
	if *catalogPath == "" {
		*catalogPath = filepath.Join(configDir, "catalog.db")
	}
	if *presetDir == "" {
		*presetDir = configDir
	}
	if err := os.MkdirAll(*presetDir, 0o755); err != nil {
		log.Fatalf("[main] create preset dir: %v", err)
	}
	recordDir := filepath.Join(configDir, "recordings")
	if err := os.MkdirAll(recordDir, 0o755); err != nil {
		log.Fatalf("[main] create recordings dir: %v", err)
	}

	cat, err := catalog.Open(*catalogPath)
	if err != nil {
		log.Fatalf("[catalog] %v", err)
	}
	defer cat.Close()

	if err := portaudio.Initialize(); err != nil {
		log.Fatalf("[audio] portaudio init: %v", err)
	}
	defer portaudio.Terminate()

	graph := plugin.New(unimplementedLoader)
	notif := notify.New()
	monitor := latency.New()
	rec := recorder.New()
	writer := ipcwriter.New()

	rt := router.New(rec)
	rt.SetVolume(float32(cfg.MonitorVolume))
	rt.SetEnabled(cfg.MonitorEnabled)

	eng := engine.New(graph, rt, rec, writer, monitor, notif)
	eng.SetInputGain(float32(cfg.InputGain))
	eng.SetChannelMode(cfg.ChannelMode)

	broadcaster := control.NewBroadcaster()
	dispatcher := control.NewDispatcher()
	applier := preset.New(graph, notif)

	deps := actionDeps{
		engine:      eng,
		graph:       graph,
		router:      rt,
		applier:     applier,
		catalog:     cat,
		recorder:    rec,
		presetDir:   *presetDir,
		recordDir:   recordDir,
		broadcaster: broadcaster,
		cfg:         &cfg,
	}
	dispatcher.AddListener(control.ActionListenerFunc(deps.onAction))

	if err := eng.Start(cfg.InputDeviceID, cfg.OutputDeviceID); err != nil {
		log.Fatalf("[engine] start: %v", err)
	}
	defer eng.Stop()

	if cfg.IPCEnabled {
		if err := eng.SetIPCEnabled(true); err != nil {
			log.Printf("[engine] ipc enable at startup: %v", err)
		}
	}

	ws := wsapi.New(broadcaster, dispatcher)
	api := httpapi.New(broadcaster, dispatcher, *actionsPerSecond, *actionBurst)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		log.Println("[main] shutting down...")
		cancel()
	}()

	go runStatePoller(ctx, eng, rt, rec, broadcaster, &cfg)
	go runNotificationDrain(ctx, eng)

	log.Printf("[main] listening on %s", cfg.HTTPAddr)
	runServer(ctx, cfg.HTTPAddr, api, ws)

	cfg.InputGain = float64(eng.InputGain())
	cfg.MonitorVolume = float64(rt.Volume())
	cfg.MonitorEnabled = rt.Enabled()
	cfg.IPCEnabled = eng.IPCEnabled()
	if err := config.Save(cfg); err != nil {
		log.Printf("[main] save config: %v", err)
	}
}

func configDirOrFallback() (string, error) {
	path, err := config.Path()
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// runServer mounts the REST API and the WebSocket upgrade endpoint under
// one listener and blocks until ctx is cancelled.
func runServer(ctx context.Context, addr string, api *httpapi.Server, ws *wsapi.Server) {
	mux := http.NewServeMux()
	mux.Handle("/", api.Handler())
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.HandleUpgrade(r.Context(), w, r)
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[main] server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Printf("[main] shutdown: %v", err)
	}
}

// runStatePoller periodically snapshots engine/recorder telemetry into
// the broadcaster so subscribers see live level/latency/CPU readings
// even when nothing else changed.
func runStatePoller(ctx context.Context, eng *engine.Engine, rt *router.Router, rec *recorder.Recorder, broadcaster *control.Broadcaster, cfg *config.Config) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			broadcaster.Update(func(s *control.AppState) {
				s.InputLevelDb = float64(eng.InputLevel())
				s.MasterBypassed = eng.MasterMuted()
				s.OutputMuted = eng.OutputMuted()
				s.Recording = rec.Recording()
				s.MonitorEnabled = rt.Enabled()
				s.SampleRate = float64(cfg.SampleRate)
				s.BufferSize = cfg.BufferSize
				s.ChannelMode = cfg.ChannelMode
				s.ActiveSlot = cfg.ActiveSlot
				s.MonitorVolume = float64(rt.Volume())
				s.InputGain = float64(eng.InputGain())
			})
		}
	}
}

func runNotificationDrain(ctx context.Context, eng *engine.Engine) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				n, ok := eng.PopNotification()
				if !ok {
					break
				}
				log.Printf("[notify] level=%d %s", n.Level, n.Message)
			}
		}
	}
}
