package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/enisar25/SocialApp/internal/chat"
	"github.com/enisar25/SocialApp/internal/httpapi"
	"github.com/enisar25/SocialApp/internal/metrics"
	"github.com/enisar25/SocialApp/internal/router"
	"github.com/enisar25/SocialApp/internal/server/middleware"
	"github.com/enisar25/SocialApp/pkg/config"
	"github.com/enisar25/SocialApp/pkg/presence"
	"github.com/enisar25/SocialApp/pkg/rooms"
	"github.com/enisar25/SocialApp/pkg/transport"
)

// App owns the listening socket, the handshake sequence and the lifecycle of
// every live connection.
type App struct {
	logger      *slog.Logger
	presence    *presence.Registry
	rooms       *rooms.Manager
	eventRouter *router.Router
	wg          sync.WaitGroup
	http        *http.Server
	mux         *chi.Mux
	config      *config.Config

	ctx context.Context
}

func NewApp(rootCtx context.Context, logger *slog.Logger, cfg *config.Config, store chat.Store, directory chat.Directory) *App {
	reg := presence.NewRegistry(logger)
	roomSets := rooms.NewManager(logger)
	resolver := chat.NewResolver(store, directory, logger)
	eventRouter := router.New(resolver, store, directory, reg, roomSets, logger)
	authenticator := chat.NewAuthenticator(cfg.Server.Auth.JWTSecret, directory, logger)

	app := &App{
		logger:      logger,
		presence:    reg,
		rooms:       roomSets,
		eventRouter: eventRouter,
		config:      cfg,
		ctx:         rootCtx,
	}

	// Cycle mode frees capacity by closing the user's oldest connection.
	connCycler := func(userID string) {
		oldest, found := reg.Oldest(userID)
		if found {
			logger.Info("cycling connection: closing oldest",
				slog.String("userID", userID),
				slog.String("connID", oldest.ID().String()),
			)
			oldest.Close(errors.New("connection cycled by new connection"))
		}
	}

	authMW := middleware.NewAuthMiddleware(logger, authenticator, cfg.Server.HandshakeTimeout)

	mux := chi.NewRouter()
	mux.Handle("/ws",
		middleware.Chain(http.HandlerFunc(app.upgradeHandler),
			middleware.RequestMetadataMiddleware(),
			middleware.NewRequestLogger(logger),
			authMW,
			middleware.NewConnectionLimiter(logger, reg.Count, connCycler, cfg.Server.ConnectionLimit),
		),
	)

	api := httpapi.New(resolver, store, directory, logger)
	mux.Route("/api/chats", func(r chi.Router) {
		r.Use(middleware.RequestMetadataMiddleware(), authMW)
		api.Register(r)
	})

	mux.Handle("/metrics", promhttp.Handler())
	mux.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	app.mux = mux
	app.http = &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           mux,
		ReadHeaderTimeout: cfg.Server.HandshakeTimeout,
		BaseContext: func(l net.Listener) context.Context {
			return app.ctx
		},
	}

	return app
}

// Handler exposes the mux; server-level tests mount it on httptest.
func (a *App) Handler() http.Handler {
	return a.mux
}

func (a *App) Run() error {
	go func() {
		a.logger.Info("server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

// upgradeHandler runs after the middleware chain, so the request metadata
// carries an authenticated user. It upgrades, registers presence, wires the
// router and blocks until the connection dies.
func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, ok := middleware.ReqMetadataFrom(r.Context())
	if !ok || reqMeta.User == nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	user := reqMeta.User
	connLogger := a.logger.With(
		slog.String("remoteAddr", reqMeta.IP),
		slog.String("userID", user.ID),
	)

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		connLogger.Error("failed to accept websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.Config{ReadTimeout: a.config.Transport.ReadTimeout},
		a.logger,
	)
	a.bindConnection(conn, user, connLogger)

	connLogger.Info("user connection fully established")
	conn.Run()
	<-conn.Done()
}

// bindConnection attaches identity and lifecycle hooks, then publishes the
// connection through the presence registry. Both hooks must be installed
// before Register: once registered, the connection is reachable by the
// limiter's cycler and by shutdown, and a Close from either must always run
// the cleanup hook.
func (a *App) bindConnection(conn *transport.Connection, user *chat.User, connLogger *slog.Logger) {
	sess := &router.Session{Conn: conn, UserID: user.ID}
	conn.SetOnMessageHandler(func(ctx context.Context, _ uuid.UUID, msg []byte) {
		a.eventRouter.HandleMessage(ctx, sess, msg)
	})
	conn.SetOnCloseHandler(func(id uuid.UUID, err error) {
		a.presence.Unregister(user.ID, id)
		a.rooms.LeaveAll(id)
		metrics.ActiveConnections.Dec()
		connLogger.Info("connection deregistered", slog.Any("reason", err))
	})

	// Inc before Register for the same reason: the close hook decrements.
	metrics.ActiveConnections.Inc()
	a.presence.Register(user.ID, conn)
}

// Shutdown runs the graceful shutdown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	a.logger.Info("closing all active connections...")
	for _, conn := range a.presence.All() {
		conn.Close(errors.New("graceful shutdown"))
	}

	// wait for all connection goroutines to finish their cleanup.
	a.wg.Wait()
	a.logger.Info("server shut down gracefully")
	return nil
}
