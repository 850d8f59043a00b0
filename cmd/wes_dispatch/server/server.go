package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wes-dispatch/wes-dispatch/internal/abstractions"
	"github.com/wes-dispatch/wes-dispatch/internal/config"
	"github.com/wes-dispatch/wes-dispatch/internal/constants"
	"github.com/wes-dispatch/wes-dispatch/internal/dispatcher"
	"github.com/wes-dispatch/wes-dispatch/internal/executioncontext"
	"github.com/wes-dispatch/wes-dispatch/internal/handlers"
	"github.com/wes-dispatch/wes-dispatch/internal/http_wrappers"
	"github.com/wes-dispatch/wes-dispatch/internal/logging"
	"github.com/wes-dispatch/wes-dispatch/internal/messages"
)

type ServerClosedError struct{}

func (e *ServerClosedError) Error() string {
	return "server closed"
}

func (e *ServerClosedError) Is(target error) bool {
	_, ok := target.(*ServerClosedError)
	return ok
}

type Server struct {
	httpServer    *http.Server
	port          int
	logger        *slog.Logger
	serviceConfig *config.Config
	storage       abstractions.Storage
	validate      *validator.Validate
	dispatcher    *dispatcher.Dispatcher
}

// NewServer creates the HTTP server. Routing uses net/http.ServeMux, each route
// switches on the HTTP method and builds an ExecutionContext before calling the
// handler.
//
// All routes are wrapped with the Prometheus metrics middleware and the
// OpenTelemetry HTTP instrumentation.
func NewServer(logger *slog.Logger,
	serviceConfig *config.Config,
	storage abstractions.Storage,
	validate *validator.Validate,
	dispatcher *dispatcher.Dispatcher) (*Server, error) {

	if logger == nil {
		return nil, fmt.Errorf("logger is required for the server")
	}
	if (serviceConfig == nil) || (serviceConfig.Service == nil) {
		return nil, fmt.Errorf("service config is required for the server")
	}
	if storage == nil {
		return nil, fmt.Errorf("storage is required for the server")
	}
	if validate == nil {
		return nil, fmt.Errorf("validator is required for the server")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required for the server")
	}

	return &Server{
		port:          serviceConfig.Service.Port,
		logger:        logger,
		serviceConfig: serviceConfig,
		storage:       storage,
		validate:      validate,
		dispatcher:    dispatcher,
	}, nil
}

func (s *Server) GetPort() int {
	return s.port
}

// loggerWithRequest returns the request ID and a logger enriched with the request
// fields that are present: request_id (from X-Global-Transaction-Id, generated when
// missing), method, uri, user_agent, remote_addr, remote_user and referer.
func (s *Server) loggerWithRequest(r *http.Request) (string, *slog.Logger) {
	requestID := r.Header.Get(constants.HEADER_TRANSACTION_ID)
	if requestID == "" {
		requestID = uuid.New().String() // generate a UUID if not present
	}

	enhancedLogger := s.logger.With(constants.LOG_REQUEST_ID, requestID)

	if r.Method != "" {
		enhancedLogger = enhancedLogger.With(constants.LOG_METHOD, r.Method)
	}

	uri := ""
	if r.URL != nil {
		uri = r.URL.Path
	}
	if uri == "" {
		uri = r.RequestURI
	}
	if uri != "" {
		enhancedLogger = enhancedLogger.With(constants.LOG_URI, uri)
	}

	if userAgent := r.Header.Get("User-Agent"); userAgent != "" {
		enhancedLogger = enhancedLogger.With(constants.LOG_USER_AGENT, userAgent)
	}

	if r.RemoteAddr != "" {
		enhancedLogger = enhancedLogger.With(constants.LOG_REMOTE_ADR, r.RemoteAddr)
	}

	// remote_user comes from the URL user info or the Remote-User header
	remoteUser := ""
	if r.URL != nil && r.URL.User != nil {
		remoteUser = r.URL.User.Username()
	}
	if remoteUser == "" {
		remoteUser = r.Header.Get("Remote-User")
	}
	if remoteUser != "" {
		enhancedLogger = enhancedLogger.With(constants.LOG_USER, remoteUser)
	}

	if referer := r.Header.Get("Referer"); referer != "" {
		enhancedLogger = enhancedLogger.With(constants.LOG_REFERER, referer)
	}

	return requestID, enhancedLogger
}

type handlerFunc func(ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper, w http_wrappers.ResponseWrapper)

// route dispatches on the HTTP method, anything not in methods is rejected.
func (s *Server) route(methods map[string]handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := s.newExecutionContext(r)
		resp := NewRespWrapper(w, ctx)
		req := NewRequestWrapper(r, w)
		logging.LogRequestStarted(ctx)
		handler, ok := methods[req.Method()]
		if !ok {
			resp.ErrorWithMessageCode(ctx.RequestID, messages.MethodNotAllowed, "Method", req.Method(), "Api", req.URI())
			return
		}
		handler(ctx, req, resp)
	}
}

func (s *Server) setupRoutes() (http.Handler, error) {
	router := http.NewServeMux()
	h := handlers.New(s.storage, s.validate, s.dispatcher, s.serviceConfig)

	// Health and service description
	router.HandleFunc("/api/v1/health", s.route(map[string]handlerFunc{
		http.MethodGet: h.HandleHealth,
	}))
	router.HandleFunc("/api/v1/service-info", s.route(map[string]handlerFunc{
		http.MethodGet: h.HandleServiceInfo,
	}))

	// Runs
	router.HandleFunc("/api/v1/runs", s.route(map[string]handlerFunc{
		http.MethodPost: h.HandleCreateRun,
		http.MethodGet:  h.HandleListRuns,
	}))
	router.HandleFunc(fmt.Sprintf("/api/v1/runs/{%s}", constants.PATH_PARAMETER_RUN_ID), s.route(map[string]handlerFunc{
		http.MethodGet: h.HandleGetRun,
	}))

	// OpenAPI documentation
	router.HandleFunc("/openapi.yaml", s.route(map[string]handlerFunc{
		http.MethodGet: h.HandleOpenAPI,
	}))

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	handler := RecoverMiddleware(s.logger, router)
	// metrics wrap the router directly so the route pattern is known
	handler = Middleware(handler)
	handler = otelhttp.NewHandler(handler, "wes-dispatch")

	return handler, nil
}

// SetupRoutes exposes the route setup for testing
func (s *Server) SetupRoutes() (http.Handler, error) {
	return s.setupRoutes()
}

func (s *Server) Start() error {
	handler, err := s.setupRoutes()
	if err != nil {
		return err
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: requestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Writing the server ready message", "file", s.serviceConfig.Service.ReadyFile)
	if err := SetReady(s.serviceConfig, s.logger); err != nil {
		return err
	}

	s.logger.Info("Server starting", "port", s.port)
	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return &ServerClosedError{}
		}
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Shutting down server gracefully...")
	return s.httpServer.Shutdown(ctx)
}
