package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"stageportal/internal/common"
	"stageportal/internal/domain/user"
	"stageportal/internal/http/handlers"
	"stageportal/internal/http/metrics"
	httpmw "stageportal/internal/http/middleware"
	"stageportal/internal/http/response"
)

// apiPrefix mirrors every route for clients built against the /api base URL.
const apiPrefix = "/api"

const (
	defaultMaxBodyBytes = 11 << 20
	rateWindow          = time.Minute
)

type RouterDependencies struct {
	AuthHandler        *handlers.AuthHandler
	ApplicationHandler *handlers.ApplicationHandler
	ReviewHandler      *handlers.ReviewHandler
	DocumentHandler    *handlers.DocumentHandler
	HealthHandler      *handlers.HealthHandler
	MetricsHandler     *handlers.MetricsHandler
	AuthMiddleware     *httpmw.AuthMiddleware
	Metrics            *metrics.Collector
	Logger             logrus.FieldLogger
	Limiter            httpmw.Limiter
	LoginPerMinute     int
	RegisterPerMinute  int
	SubmitPerMinute    int
	RequestTimeout     time.Duration
	MaxBodyBytes       int64
	TrustProxyHeaders  bool
}

type Router struct {
	deps    RouterDependencies
	handler http.Handler
}

func NewRouter(deps RouterDependencies) http.Handler {
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = defaultMaxBodyBytes
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	r := &Router{deps: deps}
	r.handler = httpmw.Chain(r.baseHandler(),
		httpmw.RequestID,
		httpmw.Logging(deps.Logger),
		httpmw.BodyLimit(deps.MaxBodyBytes),
		httpmw.Recover(deps.Logger),
		httpmw.Metrics(deps.Metrics),
		httpmw.Timeout(deps.RequestTimeout),
	)
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

func (r *Router) baseHandler() http.Handler {
	root := mux.NewRouter()
	root.NotFoundHandler = http.HandlerFunc(notFound)
	root.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	if r.deps.HealthHandler != nil {
		root.HandleFunc("/health", r.deps.HealthHandler.Get).Methods(http.MethodGet)
	}
	if r.deps.MetricsHandler != nil {
		root.HandleFunc("/metrics", r.deps.MetricsHandler.Get).Methods(http.MethodGet)
	}

	api := root.PathPrefix(apiPrefix).Subrouter()
	api.NotFoundHandler = root.NotFoundHandler
	api.MethodNotAllowedHandler = root.MethodNotAllowedHandler
	r.register(api)
	r.register(root)
	return root
}

func (r *Router) register(m *mux.Router) {
	d := r.deps
	byIP := func(scope string) func(*http.Request) string {
		return func(req *http.Request) string {
			return scope + ":" + httpmw.ClientIP(req, d.TrustProxyHeaders)
		}
	}
	bySubject := func(scope string) func(*http.Request) string {
		return func(req *http.Request) string {
			if profile, ok := httpmw.ProfileFromContext(req.Context()); ok {
				return scope + ":" + strconv.FormatInt(profile.ID, 10)
			}
			return scope + ":" + httpmw.ClientIP(req, d.TrustProxyHeaders)
		}
	}
	limited := func(key func(*http.Request) string, perMinute int, h http.HandlerFunc) http.Handler {
		if perMinute <= 0 {
			return h
		}
		return httpmw.RateLimit(d.Limiter, key, perMinute, rateWindow)(h)
	}

	m.Handle("/candidat/inscription", limited(byIP("register"), d.RegisterPerMinute, d.AuthHandler.Register)).Methods(http.MethodPost)
	m.Handle("/candidat/login", limited(byIP("login"), d.LoginPerMinute, d.AuthHandler.LoginCandidate)).Methods(http.MethodPost)
	m.Handle("/admin/login", limited(byIP("login"), d.LoginPerMinute, d.AuthHandler.LoginAdmin)).Methods(http.MethodPost)

	submit := limited(bySubject("submit"), d.SubmitPerMinute, d.ApplicationHandler.Submit)
	m.Handle("/demande", d.AuthMiddleware.Protect(user.RoleCandidate, submit.ServeHTTP)).Methods(http.MethodPost)
	m.Handle("/candidat/demandes", d.AuthMiddleware.Protect(user.RoleCandidate, d.ApplicationHandler.ListMine)).Methods(http.MethodGet)

	m.Handle("/admin/demandes", d.AuthMiddleware.Protect(user.RoleAdmin, d.ReviewHandler.List)).Methods(http.MethodGet)
	m.Handle("/admin/demandes/{id}", d.AuthMiddleware.Protect(user.RoleAdmin, d.ReviewHandler.Decide)).Methods(http.MethodPut)

	m.HandleFunc("/uploads/{filename}", d.DocumentHandler.Get).Methods(http.MethodGet)
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	response.Error(w, common.NewError(common.CodeNotFound, "route not found", nil))
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error":   "method_not_allowed",
		"message": "method not allowed",
	})
}
