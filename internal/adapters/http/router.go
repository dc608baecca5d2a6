package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
	"github.com/kirillkom/regulation-rag/internal/core/ports"
	"github.com/kirillkom/regulation-rag/internal/core/retrieval"
	"github.com/kirillkom/regulation-rag/internal/observability/metrics"
)

const (
	defaultMaxK           = 50
	defaultMaxUploadBytes = 64 << 20
	degradedConfidence    = 0.3
)

// RouteService resolves a query to chunks together with its routing trace.
type RouteService interface {
	Route(ctx context.Context, query string, k int) retrieval.Resolution
}

// CorpusInfo exposes the active corpus snapshot.
type CorpusInfo interface {
	Current() *retrieval.Snapshot
}

type HealthCheck = func(ctx context.Context) error

type Options struct {
	Service         string
	DefaultK        int
	MaxK            int
	MaxQueryLength  int
	MaxUploadBytes  int64
	RateLimitRPS    float64
	RateLimitBurst  int
	MaxInFlight     int
	InFlightWait    time.Duration
	ValidateOpenAPI bool
	Metrics         *metrics.HTTPServerMetrics
	HealthChecks    map[string]HealthCheck
	Logger          *slog.Logger
}

type Router struct {
	opts     Options
	analyzer ports.QueryAnalyzer
	routes   RouteService
	chat     ports.ChatService
	ingest   ports.DocumentIngestor
	docs     ports.DocumentReader
	corpus   CorpusInfo
	logger   *slog.Logger
	validate func(http.Handler) http.Handler
}

func NewRouter(
	opts Options,
	analyzer ports.QueryAnalyzer,
	routes RouteService,
	chat ports.ChatService,
	ingest ports.DocumentIngestor,
	docs ports.DocumentReader,
	corpus CorpusInfo,
) (*Router, error) {
	if opts.Service == "" {
		opts.Service = "api"
	}
	if opts.DefaultK <= 0 {
		opts.DefaultK = retrieval.DefaultFinalK
	}
	if opts.MaxK <= 0 {
		opts.MaxK = defaultMaxK
	}
	if opts.MaxQueryLength <= 0 {
		opts.MaxQueryLength = 1000
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.InFlightWait <= 0 {
		opts.InFlightWait = 100 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rt := &Router{
		opts:     opts,
		analyzer: analyzer,
		routes:   routes,
		chat:     chat,
		ingest:   ingest,
		docs:     docs,
		corpus:   corpus,
		logger:   logger,
		validate: func(next http.Handler) http.Handler { return next },
	}
	if opts.ValidateOpenAPI {
		_, router, err := loadOpenAPI(context.Background())
		if err != nil {
			return nil, err
		}
		rt.validate = func(next http.Handler) http.Handler {
			return openAPIValidationMiddleware(next, router)
		}
	}
	return rt, nil
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.yaml", rt.openAPI)
	mux.HandleFunc("POST /v1/analyze", rt.analyzeQuery)
	mux.HandleFunc("POST /v1/retrieve", rt.retrieve)
	mux.HandleFunc("POST /v1/chat", rt.chatAnswer)
	mux.HandleFunc("POST /v1/documents", rt.uploadDocument)
	mux.HandleFunc("GET /v1/documents/{document_id}", rt.getDocumentByID)
	if rt.opts.Metrics != nil {
		mux.Handle("GET /metrics", rt.opts.Metrics.Handler())
	}

	onReject := func(reason string) {
		if rt.opts.Metrics != nil {
			rt.opts.Metrics.RecordRejected(rt.opts.Service, reason)
		}
	}

	var handler http.Handler = rt.validate(mux)
	handler = backpressureMiddleware(handler, rt.opts.MaxInFlight, rt.opts.InFlightWait, onReject)
	handler = rateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst, onReject)
	if rt.opts.Metrics != nil {
		handler = rt.opts.Metrics.Middleware(rt.opts.Service, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return recoverMiddleware(handler)
}

type healthResponse struct {
	Status        string            `json:"status"`
	CorpusVersion string            `json:"corpus_version"`
	CorpusChunks  int               `json:"corpus_chunks"`
	Dependencies  map[string]string `json:"dependencies,omitempty"`
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if snap := rt.corpus.Current(); snap != nil {
		resp.CorpusVersion = snap.Version()
		resp.CorpusChunks = snap.Len()
	}

	status := http.StatusOK
	if len(rt.opts.HealthChecks) > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		resp.Dependencies = make(map[string]string, len(rt.opts.HealthChecks))
		for name, check := range rt.opts.HealthChecks {
			if err := check(ctx); err != nil {
				resp.Dependencies[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Dependencies[name] = "ok"
		}
	}
	writeJSON(w, status, resp)
}

func (rt *Router) openAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openAPISpec)
}

type queryRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

func (rt *Router) decodeQuery(w http.ResponseWriter, r *http.Request) (queryRequest, bool) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json")
		return req, false
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeError(w, r, http.StatusBadRequest, "query is required")
		return req, false
	}
	if len([]rune(req.Query)) > rt.opts.MaxQueryLength {
		writeError(w, r, http.StatusBadRequest, "query is too long")
		return req, false
	}
	return req, true
}

func (rt *Router) analyzeQuery(w http.ResponseWriter, r *http.Request) {
	req, ok := rt.decodeQuery(w, r)
	if !ok {
		return
	}
	analysis, err := rt.analyzer.Analyze(req.Query)
	if err != nil {
		rt.logger.Error("query classification failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		analysis = domain.GeneralAnalysis(req.Query, degradedConfidence)
	}
	writeJSON(w, http.StatusOK, analysis)
}

type retrieveResponse struct {
	Analysis      domain.QueryAnalysis   `json:"analysis"`
	Handler       string                 `json:"handler"`
	FallbackUsed  bool                   `json:"fallback_used"`
	Degraded      bool                   `json:"degraded"`
	CorpusVersion string                 `json:"corpus_version"`
	Chunks        []domain.DocumentChunk `json:"chunks"`
}

func (rt *Router) retrieve(w http.ResponseWriter, r *http.Request) {
	req, ok := rt.decodeQuery(w, r)
	if !ok {
		return
	}
	k := req.K
	if k <= 0 {
		k = rt.opts.DefaultK
	}
	k = min(k, rt.opts.MaxK)

	res := rt.routes.Route(r.Context(), req.Query, k)
	chunks := res.Chunks
	if chunks == nil {
		chunks = []domain.DocumentChunk{}
	}
	resp := retrieveResponse{
		Analysis:     res.Analysis,
		Handler:      res.Handler,
		FallbackUsed: res.FallbackUsed,
		Degraded:     res.Degraded,
		Chunks:       chunks,
	}
	if snap := rt.corpus.Current(); snap != nil {
		resp.CorpusVersion = snap.Version()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) chatAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Question  string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	answer, err := rt.chat.Chat(r.Context(), req.SessionID, req.Question)
	if err != nil {
		rt.logRequestError(r, "chat failed", err)
		writeDomainError(w, r, err)
		return
	}
	if rt.opts.Metrics != nil {
		rt.opts.Metrics.RecordChat(rt.opts.Service, "/v1/chat", len(answer.Sources))
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.opts.MaxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "document is too large")
			return
		}
		writeError(w, r, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	doc, err := rt.ingest.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		rt.logRequestError(r, "upload failed", err)
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("document_id"))
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "document id is required")
		return
	}

	doc, err := rt.docs.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) logRequestError(r *http.Request, msg string, err error) {
	level := slog.LevelWarn
	if mapErrorToHTTPStatus(err) >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	rt.logger.Log(r.Context(), level, msg, "request_id", requestIDFromContext(r.Context()), "error", err)
}
