package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"soundscript/internal/cache"
	"soundscript/internal/catalog"
	"soundscript/internal/config"
	"soundscript/internal/database"
	"soundscript/internal/events"
	"soundscript/internal/loop"
	"soundscript/internal/media"
	"soundscript/internal/metadata"
	"soundscript/internal/player"
	"soundscript/internal/ranking"
	"soundscript/internal/stats"

	"github.com/sirupsen/logrus"
)

var (
	_ player.Media  = (*media.Remote)(nil)
	_ media.Handler = (*player.Player)(nil)
)

// Bus names used on the SSE stream.
const (
	PlaybackBus   = "playback"
	NavigationBus = "navigation"
	MediaBus      = "media"
)

// intents are consumed by the player and not streamed to renderers.
var intents = map[string]bool{
	events.SelectTrack: true,
	events.PlayAll:     true,
	events.Replay:      true,
}

// Deps are the collaborators built by the caller.
type Deps struct {
	Config    *config.Config
	Logger    *logrus.Logger
	Catalog   *catalog.Catalog
	Store     *stats.Store
	DB        *database.Database  // optional, used by /health
	Extractor *metadata.Extractor // optional, serves embedded artwork
}

// MusicServer exposes the player to browser renderers over HTTP and SSE.
type MusicServer struct {
	config    *config.Config
	logger    *logrus.Logger
	catalog   *catalog.Catalog
	store     *stats.Store
	db        *database.Database
	extractor *metadata.Extractor

	rankings *ranking.Rankings
	player   *player.Player
	remote   *media.Remote
	loop     *loop.Loop
	stopLoop context.CancelFunc

	playback   *events.Bus
	navigation *events.Bus
	mediaBus   *events.Bus

	clients   *ClientRegistry
	responses *cache.ResponseCache
	watcher   *catalog.Watcher
	handler   http.Handler
	startedAt time.Time
	closeOnce sync.Once
}

// NewMusicServer wires buses, player and routes and starts the event loop.
// Call Shutdown to release it.
func NewMusicServer(deps Deps) *MusicServer {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	ms := &MusicServer{
		config:     cfg,
		logger:     logger,
		catalog:    deps.Catalog,
		store:      deps.Store,
		db:         deps.DB,
		extractor:  deps.Extractor,
		loop:       loop.New(256, logger),
		playback:   events.NewBus(PlaybackBus, logger),
		navigation: events.NewBus(NavigationBus, logger),
		mediaBus:   events.NewBus(MediaBus, logger),
		clients:    NewClientRegistry(logger),
		responses:  cache.NewResponseCache(time.Hour),
		startedAt:  time.Now(),
	}

	for _, bus := range []*events.Bus{ms.playback, ms.navigation, ms.mediaBus} {
		name := bus.Name()
		bus.Tap(func(channel string, payload any) {
			if intents[channel] {
				return
			}
			ms.clients.Publish(name, channel, payload)
		})
	}

	// Stale until restart.
	ms.rankings = ranking.Compute(ms.store.Snapshot(), cfg.Ranking.Size)
	ms.remote = media.NewRemote(ms.mediaBus)
	ms.player = player.New(player.Config{
		Bus:      ms.playback,
		Media:    ms.remote,
		Store:    ms.store,
		Catalog:  ms.catalog,
		Rankings: ms.rankings,
		Rule: player.Rule{
			LongTrack:    cfg.Player.LongTrackSeconds,
			Ceiling:      cfg.Player.CountCeilingSeconds,
			Ratio:        cfg.Player.CountRatio,
			SampleWindow: cfg.Player.SampleWindowSeconds,
		},
		Volume: cfg.Player.InitialVolume,
		Logger: logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	ms.stopLoop = cancel
	go ms.loop.Run(ctx)

	ms.handler = ms.setupRoutes()
	return ms
}

// Handler returns the root HTTP handler with middleware applied.
func (ms *MusicServer) Handler() http.Handler {
	return ms.handler
}

func (ms *MusicServer) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", ms.handleHome)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(ms.config.Server.StaticDir))))
	mux.HandleFunc("GET /health", ms.handleHealthCheck)

	// Catalog routes
	mux.HandleFunc("GET /api/songs", ms.handleGetSongs)
	mux.HandleFunc("GET /api/albums", ms.handleGetAlbums)
	mux.HandleFunc("GET /api/rankings", ms.handleGetRankings)
	mux.HandleFunc("GET "+ms.mediaPrefix(), ms.handleMedia)

	// Renderer routes
	mux.HandleFunc("GET /api/events", ms.handleEvents)
	mux.HandleFunc("GET /api/clients", ms.handleGetClients)
	mux.HandleFunc("POST /api/clients/audio", ms.handleSetAudioClient)
	mux.HandleFunc("POST /api/lifecycle", ms.handleLifecycle)

	// Player routes
	mux.HandleFunc("POST /api/player/select", ms.handleSelect)
	mux.HandleFunc("POST /api/player/play-all", ms.handlePlayAll)
	mux.HandleFunc("POST /api/player/seek", ms.handleSeek)
	mux.HandleFunc("POST /api/player/volume", ms.handleVolume)
	mux.HandleFunc("POST /api/player/like", ms.handleLike)
	mux.HandleFunc("POST /api/player/dislike", ms.handleDislike)
	mux.HandleFunc("POST /api/player/report", ms.handleReport)
	for name, action := range ms.transportActions() {
		mux.HandleFunc("POST /api/player/"+name, ms.handleTransport(action))
	}

	var handler http.Handler = mux
	handler = ms.corsMiddleware(handler)
	handler = ms.requestLoggingMiddleware(handler)
	handler = ms.panicRecoveryMiddleware(handler)
	return handler
}

// Start serves HTTP until ctx is cancelled, then shuts down.
func (ms *MusicServer) Start(ctx context.Context) error {
	if ms.config.Library.WatchForChanges {
		ms.startWatcher()
	}

	server := &http.Server{
		Addr:        ms.config.GetAddress(),
		Handler:     ms.handler,
		ReadTimeout: time.Duration(ms.config.Server.ReadTimeout) * time.Second,
	}

	ms.logger.WithFields(logrus.Fields{
		"address": "http://" + ms.config.GetAddress(),
		"songs":   ms.catalog.Size(),
		"albums":  ms.catalog.AlbumCount(),
	}).Info("Soundscript server starting")

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		ms.Shutdown()
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Close streams first so Shutdown does not wait on them.
	ms.clients.CloseAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		ms.logger.WithError(err).Warn("HTTP server shutdown incomplete")
	}
	ms.Shutdown()
	return nil
}

func (ms *MusicServer) startWatcher() {
	if _, err := os.Stat(ms.config.Library.Path); err != nil {
		ms.logger.WithError(err).Warn("Library watcher disabled")
		return
	}

	ms.watcher = catalog.NewWatcher(ms.config.Library.Path, ms.navigation, catalog.WatcherOptions{
		Relevant: func(path string) bool {
			return catalog.IsManifest(path) || (ms.extractor != nil && ms.extractor.IsAudioFile(path))
		},
		Dispatch: func(fn func()) { ms.loop.Post(fn) },
		Logger:   ms.logger,
	})
	if err := ms.watcher.Start(); err != nil {
		ms.logger.WithError(err).Warn("Could not start library watcher")
		ms.watcher = nil
	}
}

// Shutdown stops the watcher and the loop, disconnects clients and flushes
// the stats store.
func (ms *MusicServer) Shutdown() {
	ms.closeOnce.Do(ms.shutdown)
}

func (ms *MusicServer) shutdown() {
	ms.logger.Info("Shutting down music server...")

	if ms.watcher != nil {
		ms.watcher.Stop()
	}
	ms.stopLoop()
	<-ms.loop.Done()

	ms.player.Close()
	ms.clients.CloseAll()
	ms.responses.Close()

	if err := ms.store.Close(); err != nil {
		ms.logger.WithError(err).Warn("Final stats flush failed")
	}

	ms.logger.Info("Music server shutdown complete")
}

// onLoop runs fn on the event loop and waits for it.
func (ms *MusicServer) onLoop(ctx context.Context, fn func()) error {
	return ms.loop.Do(ctx, fn)
}

func (ms *MusicServer) mediaPrefix() string {
	return ms.config.Library.MediaBase
}
