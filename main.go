package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/yashrajoria/restaurant-storefront/auth"
	awspkg "github.com/yashrajoria/restaurant-storefront/aws"
	"github.com/yashrajoria/restaurant-storefront/cart"
	"github.com/yashrajoria/restaurant-storefront/clients"
	"github.com/yashrajoria/restaurant-storefront/config"
	"github.com/yashrajoria/restaurant-storefront/confirmation"
	"github.com/yashrajoria/restaurant-storefront/controllers"
	"github.com/yashrajoria/restaurant-storefront/database"
	"github.com/yashrajoria/restaurant-storefront/envfile"
	apperrors "github.com/yashrajoria/restaurant-storefront/errors"
	"github.com/yashrajoria/restaurant-storefront/logger"
	"github.com/yashrajoria/restaurant-storefront/metrics"
	"github.com/yashrajoria/restaurant-storefront/middleware"
	"github.com/yashrajoria/restaurant-storefront/models"
	"github.com/yashrajoria/restaurant-storefront/routes"
	"github.com/yashrajoria/restaurant-storefront/services"
	"github.com/yashrajoria/restaurant-storefront/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const usage = `usage: storefront [command]

commands:
  (none)                       open the terminal storefront
  cart add|list|remove|clear   edit the saved cart (needs REDIS_URL)
  confirm -session <id>        confirm a payment session without the UI
  init-env                     write a .env.development template
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, apperrors.UserMessage(err))
		var appErr *apperrors.Error
		if !errors.As(err, &appErr) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	cmd := ""
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "init-env":
		return runInitEnv(args)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	case "", "cart", "confirm":
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	switch cmd {
	case "cart":
		return a.runCart(ctx, args)
	case "confirm":
		return a.runConfirm(args)
	default:
		return a.runStorefront(ctx)
	}
}

// app carries the wiring shared by every command.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	logFile  *os.File
	metrics  *metrics.CheckoutMetrics
	creds    *auth.TokenStore
	store    *cart.Store
	api      *clients.APIClient
	redis    *redis.Client
	cartSync *database.CartSync
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logFile, err := logger.OpenFile(cfg.LogFile)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Env, logFile)
	if err != nil {
		_ = logFile.Close()
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &app{
		cfg:     cfg,
		logger:  log,
		logFile: logFile,
		metrics: metrics.New(prometheus.NewRegistry()),
		creds:   auth.NewTokenStore(cfg.AccessToken),
		store:   cart.NewStore(),
		api:     clients.NewAPIClient(cfg.APIURL, cfg.RequestTimeout),
	}

	if cfg.RedisURL != "" {
		client, err := database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			// the cart still works in memory
			log.Warn("Redis unavailable, cart will not be saved", zap.Error(err))
		} else {
			a.redis = client
			a.cartSync = database.NewCartSync(database.NewRedisCartRepository(client, cfg.CartTTL), cfg.UserID, log)
			if err := a.cartSync.Hydrate(ctx, a.store); err != nil {
				log.Warn("Failed to load saved cart", zap.Error(err))
			}
		}
	}

	log.Info("Storefront starting",
		zap.String("env", cfg.Env),
		zap.String("api_url", cfg.APIURL),
		zap.Bool("cart_persistence", a.cartSync != nil),
	)
	return a, nil
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	_ = a.logger.Sync()
	_ = a.logFile.Close()
}

// stripeLookupKey returns STRIPE_RESTRICTED_KEY or, failing that, the
// secret STRIPE_KEY_SECRET_ID names. Neither being set is not an error:
// the redirect then relies on the URL of the create-session response.
func (a *app) stripeLookupKey(ctx context.Context) (string, error) {
	if a.cfg.StripeLookupKey != "" || a.cfg.StripeKeySecretID == "" {
		return a.cfg.StripeLookupKey, nil
	}
	awsCfg, endpoint, err := awspkg.LoadAWSConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("load aws config: %w", err)
	}
	return awspkg.NewSecretsClient(awsCfg, endpoint).GetSecret(ctx, a.cfg.StripeKeySecretID)
}

// unavailableRedirector reports why the gateway could not be initialised
// every time a checkout reaches it.
type unavailableRedirector struct{ err error }

func (r unavailableRedirector) Redirect(context.Context, models.CheckoutSession) error {
	return r.err
}

func (a *app) redirector(ctx context.Context) services.Redirector {
	lookupKey, err := a.stripeLookupKey(ctx)
	if err != nil {
		a.logger.Error("Failed to resolve Stripe lookup key", zap.Error(err))
		return unavailableRedirector{err: apperrors.GatewayInitFailed(err)}
	}
	r, err := services.NewStripeRedirector(a.cfg.StripeKey, lookupKey, services.SystemBrowser{}, a.metrics, a.logger)
	if err != nil {
		a.logger.Error("Failed to initialise Stripe", zap.Error(err))
		return unavailableRedirector{err: err}
	}
	return r
}

func (a *app) runStorefront(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	syncDone := make(chan struct{})
	if a.cartSync != nil {
		unsubscribe := a.store.Subscribe(a.cartSync.Listener())
		defer unsubscribe()
		go func() {
			defer close(syncDone)
			a.cartSync.Run(ctx)
		}()
	} else {
		close(syncDone)
	}

	bridge := &tui.Bridge{}
	flow := services.NewCheckoutFlow(
		services.NewCheckoutService(a.api, a.metrics, a.logger),
		a.redirector(ctx),
		a.creds,
	)
	view := confirmation.NewView(
		services.NewSessionFetcher(a.api, a.cfg.RequirePaidStatus, a.metrics, a.logger),
		a.creds,
		a.store,
		bridge,
		confirmation.Options{HomeDelay: a.cfg.HomeRedirectDelay, Metrics: a.metrics, Logger: a.logger},
	)
	view.OnChange(bridge.ConfirmationChanged)
	defer a.store.Subscribe(bridge.CartChanged)()

	p := tea.NewProgram(tui.NewModel(a.store, flow, view, a.cfg.RequestTimeout, a.cfg.HomeRedirectDelay), tea.WithAltScreen())
	bridge.Attach(p)

	srv := a.returnListener(ctx, bridge)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Return listener failed", zap.String("addr", a.cfg.ReturnAddr), zap.Error(err))
		}
	}()
	a.logger.Info("Return listener started", zap.String("addr", a.cfg.ReturnAddr))

	_, runErr := p.Run()

	view.Teardown()
	view.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("Return listener forced to shutdown", zap.Error(err))
	}

	cancel()
	<-syncDone
	a.logger.Info("Storefront exited")
	return runErr
}

func (a *app) returnListener(ctx context.Context, sink controllers.ReturnSink) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	limiter := middleware.NewRateLimiter(rate.Every(time.Second), 20, 5*time.Minute)
	go limiter.Run(ctx)

	return &http.Server{
		Addr:              a.cfg.ReturnAddr,
		Handler:           routes.NewRouter(controllers.NewReturnController(sink, a.logger), a.metrics, limiter, a.logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func runInitEnv(args []string) error {
	path := envfile.DefaultName
	if len(args) > 0 {
		path = args[0]
	}
	if err := envfile.Write(path); err != nil {
		if errors.Is(err, envfile.ErrExists) {
			fmt.Printf("The file %s already exists. It will not be overwritten.\n", path)
			fmt.Println("If you need to update it, delete it and run init-env again.")
			return nil
		}
		return err
	}
	fmt.Printf("File %s generated. Fill in API_URL, STRIPE_KEY and ACCESS_TOKEN before starting.\n", path)
	return nil
}
