package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dtroode/memberpass/internal/api/http/handler"
	"github.com/dtroode/memberpass/internal/api/http/middleware"
	"github.com/dtroode/memberpass/internal/logger"
	"github.com/dtroode/memberpass/internal/model"
)

const requestTimeout = 30 * time.Second

// Router wires the member-facing and operational HTTP routes.
type Router struct {
	cards          handler.CardService
	photos         handler.PhotoService
	sender         handler.LinkSender
	checkers       map[string]model.HealthChecker
	gatherer       prometheus.Gatherer
	contextManager model.ContextManager
	trustProxy     bool
	logger         *logger.Logger
}

// New creates a new Router instance.
func New(
	cards handler.CardService,
	photos handler.PhotoService,
	sender handler.LinkSender,
	checkers map[string]model.HealthChecker,
	gatherer prometheus.Gatherer,
	contextManager model.ContextManager,
	logger *logger.Logger,
) *Router {
	return &Router{
		cards:          cards,
		photos:         photos,
		sender:         sender,
		checkers:       checkers,
		gatherer:       gatherer,
		contextManager: contextManager,
		logger:         logger,
	}
}

// TrustProxy makes the router take the client address from forwarding
// headers. Enable it only behind a reverse proxy that overwrites them;
// otherwise clients choose their own magic-link rate limit key.
func (r *Router) TrustProxy(enabled bool) *Router {
	r.trustProxy = enabled
	return r
}

// Register builds the handler tree. Card routes require a card token;
// photo and login routes carry their own tokens in the request.
func (r *Router) Register() http.Handler {
	logging := middleware.NewLogging(r.logger)
	authenticate := middleware.NewAuthenticate(r.cards, r.contextManager, r.logger)

	health := handler.NewHealth(r.checkers, r.logger)
	card := handler.NewCard(r.cards, r.contextManager, r.logger)
	photo := handler.NewPhoto(r.photos, r.logger)
	login := handler.NewLogin(r.cards, r.sender, r.logger)

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	if r.trustProxy {
		mux.Use(chimw.RealIP)
	}
	mux.Use(logging.Handle)
	mux.Use(chimw.Recoverer)

	mux.Get("/healthz", health.Check)
	mux.Handle("/metrics", promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{}))

	mux.Group(func(api chi.Router) {
		api.Use(chimw.Timeout(requestTimeout))

		api.Route("/card", func(cr chi.Router) {
			cr.Use(authenticate.Handle)
			cr.Get("/", card.Show)
			cr.Get("/photo-token", card.PhotoToken)
		})
		api.Get("/photos/{photoID}", photo.Show)
		api.Post("/login/magic", login.RequestLink)
		api.Get("/login/magic/{token}", login.Consume)
	})

	return mux
}
