package chatapp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/cors"

	"github.com/ngophuc29/sockettuBuild/core"
	"github.com/ngophuc29/sockettuBuild/pkg/router"
)

// App wires the chat server together: the SQLite stores, the websocket hub
// with its event handlers and the account HTTP surface.
type App struct {
	config      *Config
	db          *core.SQLiteDB
	context     context.Context
	server      *http.Server
	logger      *slog.Logger
	router      *router.Router
	eventRouter *core.EventRouter
	hub         *core.Hub
	calls       *core.CallTable

	exit chan int

	accounts  core.AccountStore
	otps      core.OTPStore
	friends   core.FriendStore
	groups    core.GroupStore
	messages  core.MessageStore
	reactions core.ReactionStore

	lastMessages *core.LastMessageCache

	accountHandler *AccountHandler
	mailer         Mailer

	cleanupFuncs []func(context.Context)

	wg sync.WaitGroup
}

func New(ctx context.Context, config *Config) *App {
	var err error
	app := &App{
		exit: make(chan int),
	}
	if ctx == nil {
		ctx, _ = signal.NotifyContext(
			context.Background(),
			syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	}
	app.context = ctx

	if config == nil {
		config, err = LoadConfig()
		if err != nil {
			failed(1, "failed to load config: %v\n", err)
		}
	}
	if err := config.Validate(); err != nil {
		failed(1, FormatValidationErrors(err))
	}
	app.config = config

	app.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug,
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.SourceKey {
				source, _ := a.Value.Any().(*slog.Source)
				if source != nil {
					source.File = filepath.Base(source.File)
				}
			}
			return a
		},
	}))

	sqliteOptions := &core.SQLiteDBOption{
		Mode:        "rwc",
		Cache:       "shared",
		JournalMode: "WAL",
	}
	app.db, err = core.NewSQLiteDB(app.config.SQLite.File, app.config.SQLite.Migrations, sqliteOptions)
	if err != nil {
		failed(1, "failed to open database: %v\n", err)
	}
	app.AddCleanupFunc(func(ctx context.Context) {
		app.db.Close()
	})
	if err := app.db.Migrate(); err != nil {
		failed(1, "failed to migrate database: %v\n", err)
	}

	app.accounts = core.NewSQLiteAccountStore(app.db.DB)
	app.otps = core.NewSQLiteOTPStore(app.db.DB)
	app.friends = core.NewSQLiteFriendStore(app.db.DB)
	app.groups = core.NewSQLiteGroupStore(app.db.DB)
	app.messages = core.NewSQLiteMessageStore(app.db.DB)
	app.reactions = core.NewSQLiteReactionStore(app.db.DB)

	app.lastMessages = core.NewLastMessageCache(app.messages, app.config.Cache.LastMessageTTL)
	app.lastMessages.StartSweeper(app.context, app.config.Cache.SweepInterval)

	app.calls = core.NewCallTable()
	app.hub = core.NewHub(app.context, &app.wg, app.calls, app.logger)

	app.eventRouter = core.NewEventRouter(app.context, app.logger)
	app.eventRouter.On(RegisterUserEvent, app.RegisterUserHandler)
	app.eventRouter.On(JoinEvent, app.JoinHandler)
	app.eventRouter.On(LeaveEvent, app.LeaveHandler)
	app.eventRouter.On(MessageEvent, app.MessageHandler)
	app.eventRouter.On(DeleteMessageEvent, app.DeleteMessageHandler)
	app.eventRouter.On(EmotionEvent, app.EmotionHandler)
	app.eventRouter.On(GetLastMessageEvent, app.GetLastMessageHandler)
	app.eventRouter.On(GetOlderMessagesEvent, app.GetOlderMessagesHandler)
	app.eventRouter.On(GetUserConversationsEvent, app.GetUserConversationsHandler)

	app.eventRouter.On(AddFriendEvent, app.AddFriendHandler)
	app.eventRouter.On(WithdrawFriendEvent, app.WithdrawFriendHandler)
	app.eventRouter.On(RespondFriendRequestEvent, app.RespondFriendRequestHandler)
	app.eventRouter.On(CancelFriendEvent, app.CancelFriendHandler)
	app.eventRouter.On(GetFriendRequestsEvent, app.GetFriendRequestsHandler)
	app.eventRouter.On(GetFriendsEvent, app.GetFriendsHandler)

	app.eventRouter.On(CreateGroupChatEvent, app.CreateGroupChatHandler)
	app.eventRouter.On(GetGroupDetailsEvent, app.GetGroupDetailsHandler)
	app.eventRouter.On(AddGroupMemberEvent, app.AddGroupMemberHandler)
	app.eventRouter.On(RemoveGroupMemberEvent, app.RemoveGroupMemberHandler)
	app.eventRouter.On(TransferGroupOwnerEvent, app.TransferGroupOwnerHandler)
	app.eventRouter.On(AssignDeputyEvent, app.AssignDeputyHandler)
	app.eventRouter.On(CancelDeputyEvent, app.CancelDeputyHandler)
	app.eventRouter.On(LeaveGroupEvent, app.LeaveGroupHandler)
	app.eventRouter.On(DisbandGroupEvent, app.DisbandGroupHandler)

	app.eventRouter.On(CallUserEvent, app.CallUserHandler)
	app.eventRouter.On(AcceptCallEvent, app.AcceptCallHandler)
	app.eventRouter.On(RejectCallEvent, app.RejectCallHandler)
	app.eventRouter.On(IceCandidateEvent, app.IceCandidateHandler)
	app.eventRouter.On(EndCallEvent, app.EndCallHandler)

	app.hub.SetRouter(app.eventRouter)

	app.mailer = NewLogMailer(app.logger)
	app.accountHandler = NewAccountHandler(
		app.accounts, app.otps, app.mailer,
		app.config.Auth.Secret, app.config.Auth.TokenTTL, app.config.Auth.OTPTTL)
	authMiddleware := JWTMiddleware(app.config.Auth.Secret)

	app.router = router.New(router.WithLogger(app.logger))
	app.router.MapError(core.ErrConflictedAccount, http.StatusConflict)
	app.router.MapError(core.ErrAccountNotFound, http.StatusNotFound)
	app.router.MapError(core.ErrInvalidOTP, http.StatusBadRequest)
	app.router.MapError(core.ErrExpiredOTP, http.StatusBadRequest)

	app.router.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   app.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	app.router.Router.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		if err := app.hub.ServeWS(w, r); err != nil {
			app.logger.Error(fmt.Sprintf("websocket upgrade: %v", err))
		}
	})

	api := router.New(router.WithLogger(app.logger))
	api.MapError(core.ErrConflictedAccount, http.StatusConflict)
	api.MapError(core.ErrAccountNotFound, http.StatusNotFound)
	api.MapError(core.ErrInvalidOTP, http.StatusBadRequest)
	api.MapError(core.ErrExpiredOTP, http.StatusBadRequest)

	api.Route("/accounts", func(r *router.Router) {
		r.Post("/otp", app.accountHandler.RequestOTPHandler)
		r.Post("/", app.accountHandler.RegisterHandler)
		r.Post("/login", app.accountHandler.LoginHandler)
		r.Post("/forgot-password", app.accountHandler.ForgotPasswordHandler)
		r.Post("/reset-password", app.accountHandler.ResetPasswordHandler)
		r.Get("/availability", app.accountHandler.AvailabilityHandler)
		r.With(authMiddleware).Get("/me", app.accountHandler.MeHandler)
		r.With(authMiddleware).Put("/me", app.accountHandler.UpdateProfileHandler)
		r.With(authMiddleware).Post("/change-password", app.accountHandler.ChangePasswordHandler)
		r.Get("/{username}", app.accountHandler.GetAccountHandler)
	})

	app.router.Mount("/api", api)

	app.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", app.config.Hostname, app.config.Port),
		Handler: app.router.Router,
		BaseContext: func(listener net.Listener) context.Context {
			return app.context
		},
	}

	return app
}

func (app *App) Start() {
	// listen for shutdown signal
	go func() {
		<-app.context.Done()
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		var wg sync.WaitGroup

		for _, f := range app.cleanupFuncs {
			wg.Add(1)
			func(wg *sync.WaitGroup) {
				defer wg.Done()
				f(closeCtx)
			}(&wg)
		}

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			app.logger.Info("app shutdown gracefully")
			app.exit <- 0
		case <-closeCtx.Done():
			app.logger.Info("app shutdown timed out")
			app.exit <- 1
		}
	}()

	app.AddCleanupFunc(func(ctx context.Context) {
		app.server.Shutdown(ctx)
	})
	app.logger.Info(fmt.Sprintf("app running on: %s:%d",
		app.config.Hostname, app.config.Port))

	err := app.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		failed(1, "server error: %v\n", err)
	}

	code := <-app.exit
	os.Exit(code)
}

func (app *App) AddCleanupFunc(f func(context.Context)) {
	app.cleanupFuncs = append(app.cleanupFuncs, f)
}

func failed(code int, s string, args ...interface{}) {
	fmt.Printf(s, args...)
	os.Exit(code)
}
