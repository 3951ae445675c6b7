package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/StrathCole/feedproxy-go/pkg/feed"
	"github.com/StrathCole/feedproxy-go/pkg/logging"
	"github.com/StrathCole/feedproxy-go/pkg/metrics"
)

// CallerHeader carries the address a request reads or mutates as.
const CallerHeader = "X-Caller-Address"

// Options configures the HTTP server.
type Options struct {
	Addr string
	// AdminToken enables the mutation endpoints. Empty leaves them unregistered.
	AdminToken  string
	CallTimeout time.Duration
	TLSCert     string
	TLSKey      string
}

// Server represents the HTTP API server.
type Server struct {
	opts   Options
	feeds  map[string]Feed
	names  []string
	logger *logging.Logger
	server *http.Server

	events     *EventStream // Optional event stream
	eventsPath string
}

// NewServer creates a new HTTP API server for feeds.
func NewServer(opts Options, feeds []Feed, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	if opts.CallTimeout == 0 {
		opts.CallTimeout = 10 * time.Second
	}

	s := &Server{
		opts:   opts,
		feeds:  make(map[string]Feed, len(feeds)),
		logger: logger,
	}
	for _, f := range feeds {
		if _, ok := s.feeds[f.Name()]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateFeed, f.Name())
		}
		s.feeds[f.Name()] = f
		s.names = append(s.names, f.Name())
	}
	sort.Strings(s.names)

	return s, nil
}

// SetEventStream mounts the event stream at path.
func (s *Server) SetEventStream(es *EventStream, path string) {
	s.events = es
	s.eventsPath = path
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	s.route(mux, "GET /v1/feeds", s.handleFeeds)
	s.route(mux, "GET /v1/feeds/{name}", s.handleFeed)
	s.route(mux, "GET /v1/feeds/{name}/latest", s.handleLatestRoundData)
	s.route(mux, "GET /v1/feeds/{name}/answer", s.handleLatestAnswer)
	s.route(mux, "GET /v1/feeds/{name}/rounds/{round}", s.handleRoundData)
	s.route(mux, "GET /v1/feeds/{name}/rounds/{round}/answer", s.handleRoundAnswer)
	s.route(mux, "GET /v1/feeds/{name}/proposed/latest", s.handleProposedLatest)
	s.route(mux, "GET /v1/feeds/{name}/proposed/rounds/{round}", s.handleProposedRound)
	s.route(mux, "GET /v1/feeds/{name}/authorized", s.handleAuthorized)

	if s.opts.AdminToken != "" {
		s.registerAdmin(mux)
	} else {
		s.logger.Info("Admin token not configured, admin endpoints disabled")
	}

	if s.events != nil {
		mux.HandleFunc("GET "+s.eventsPath, s.events.handleWebSocket)
	}

	return mux
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "addr", s.opts.Addr, "feeds", len(s.feeds))

	var err error
	if s.opts.TLSCert != "" {
		err = s.server.ListenAndServeTLS(s.opts.TLSCert, s.opts.TLSKey)
	} else {
		err = s.server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		s.logger.Info("Stopping HTTP server")
		return s.server.Shutdown(ctx)
	}
	return nil
}

// statusRecorder captures the status code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// route registers h under pattern and records every request against it.
func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	endpoint := pattern[strings.IndexByte(pattern, ' ')+1:]
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		metrics.RecordHTTPRequest(endpoint, fmt.Sprintf("%d", rec.status), time.Since(start))
	})
}

// handleHealth handles /health endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RecordHTTPRequest("/health", "200", time.Since(start))
	}()

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// feedInfo describes a feed and its configuration.
type feedInfo struct {
	Name               string `json:"name"`
	Type               string `json:"type"`
	Decimals           uint8  `json:"decimals"`
	Aggregator         string `json:"aggregator"`
	Owner              string `json:"owner"`
	PendingOwner       string `json:"pendingOwner,omitempty"`
	ProposedAggregator string `json:"proposedAggregator,omitempty"`
	WhitelistEnabled   *bool  `json:"whitelistEnabled,omitempty"`
	Authority          string `json:"authority,omitempty"`
}

// roundResponse is one round. Answer is the raw integer; Price is the answer
// scaled by the feed's decimals.
type roundResponse struct {
	Feed            string `json:"feed"`
	RoundID         string `json:"roundId"`
	Answer          string `json:"answer"`
	Price           string `json:"price"`
	Decimals        uint8  `json:"decimals"`
	StartedAt       int64  `json:"startedAt"`
	UpdatedAt       int64  `json:"updatedAt"`
	AnsweredInRound string `json:"answeredInRound"`
}

// answerResponse is an answer and its timestamp without the rest of the
// round, readable from legacy aggregators.
type answerResponse struct {
	Feed      string `json:"feed"`
	RoundID   string `json:"roundId"`
	Answer    string `json:"answer"`
	Price     string `json:"price"`
	Decimals  uint8  `json:"decimals"`
	UpdatedAt int64  `json:"updatedAt"`
}

func describe(f Feed) feedInfo {
	info := feedInfo{
		Name:       f.Name(),
		Type:       "proxy",
		Decimals:   f.Decimals(),
		Aggregator: f.Aggregator().Hex(),
		Owner:      f.Owner().Hex(),
	}
	if nominee, ok := f.PendingOwner(); ok {
		info.PendingOwner = nominee.Hex()
	}
	if r, ok := f.(rotator); ok {
		if proposed, ok := r.ProposedAggregator(); ok {
			info.ProposedAggregator = proposed.Hex()
		}
	}
	if g, ok := f.(gate); ok {
		info.Type = "gated"
		enabled := g.WhitelistEnabled()
		info.WhitelistEnabled = &enabled
		if authority, ok := g.Authority(); ok {
			info.Authority = authority.Hex()
		}
	}
	return info
}

func (s *Server) handleFeeds(w http.ResponseWriter, _ *http.Request) {
	infos := make([]feedInfo, 0, len(s.names))
	for _, name := range s.names {
		infos = append(infos, describe(s.feeds[name]))
	}
	s.sendJSON(w, http.StatusOK, infos)
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	f, err := s.feed(r)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, describe(f))
}

func (s *Server) handleLatestRoundData(w http.ResponseWriter, r *http.Request) {
	f, caller, err := s.readRequest(r)
	if err != nil {
		s.sendError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.CallTimeout)
	defer cancel()

	rd, err := f.LatestRoundData(ctx, caller)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, newRoundResponse(f, rd))
}

func (s *Server) handleLatestAnswer(w http.ResponseWriter, r *http.Request) {
	f, caller, err := s.readRequest(r)
	if err != nil {
		s.sendError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.CallTimeout)
	defer cancel()

	a, err := f.LatestAnswerData(ctx, caller)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, newAnswerResponse(f, a))
}

func (s *Server) handleRoundData(w http.ResponseWriter, r *http.Request) {
	f, caller, err := s.readRequest(r)
	if err != nil {
		s.sendError(w, err)
		return
	}
	roundID, err := parseRound(r.PathValue("round"))
	if err != nil {
		s.sendError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.CallTimeout)
	defer cancel()

	rd, err := f.GetRoundData(ctx, caller, roundID)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, newRoundResponse(f, rd))
}

func (s *Server) handleRoundAnswer(w http.ResponseWriter, r *http.Request) {
	f, caller, err := s.readRequest(r)
	if err != nil {
		s.sendError(w, err)
		return
	}
	roundID, err := parseRound(r.PathValue("round"))
	if err != nil {
		s.sendError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.CallTimeout)
	defer cancel()

	a, err := f.AnswerData(ctx, caller, roundID)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, newAnswerResponse(f, a))
}

func (s *Server) handleProposedLatest(w http.ResponseWriter, r *http.Request) {
	f, err := s.feed(r)
	if err != nil {
		s.sendError(w, err)
		return
	}
	rot, ok := f.(rotator)
	if !ok {
		s.sendError(w, ErrNotSupported)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.CallTimeout)
	defer cancel()

	rd, err := rot.ProposedLatestRoundData(ctx)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, newRoundResponse(f, rd))
}

func (s *Server) handleProposedRound(w http.ResponseWriter, r *http.Request) {
	f, err := s.feed(r)
	if err != nil {
		s.sendError(w, err)
		return
	}
	rot, ok := f.(rotator)
	if !ok {
		s.sendError(w, ErrNotSupported)
		return
	}
	roundID, err := parseRound(r.PathValue("round"))
	if err != nil {
		s.sendError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.CallTimeout)
	defer cancel()

	rd, err := rot.ProposedGetRoundData(ctx, roundID)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, newRoundResponse(f, rd))
}

func (s *Server) handleAuthorized(w http.ResponseWriter, r *http.Request) {
	f, caller, err := s.readRequest(r)
	if err != nil {
		s.sendError(w, err)
		return
	}
	g, ok := f.(gate)
	if !ok {
		s.sendError(w, ErrNotSupported)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.CallTimeout)
	defer cancel()

	authorized, err := g.IsAuthorized(ctx, caller)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"caller":     caller.Hex(),
		"authorized": authorized,
	})
}

// feed resolves the {name} path value.
func (s *Server) feed(r *http.Request) (Feed, error) {
	name := r.PathValue("name")
	f, ok := s.feeds[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFeedNotFound, name)
	}
	return f, nil
}

// readRequest resolves the feed and the caller of a read. A read without a
// caller header reads as the zero address.
func (s *Server) readRequest(r *http.Request) (Feed, common.Address, error) {
	f, err := s.feed(r)
	if err != nil {
		return nil, common.Address{}, err
	}
	caller, err := callerFrom(r, false)
	if err != nil {
		return nil, common.Address{}, err
	}
	return f, caller, nil
}

func callerFrom(r *http.Request, required bool) (common.Address, error) {
	raw := strings.TrimSpace(r.Header.Get(CallerHeader))
	if raw == "" {
		if required {
			return common.Address{}, ErrCallerRequired
		}
		return common.Address{}, nil
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidCaller, raw)
	}
	return common.HexToAddress(raw), nil
}

func parseRound(raw string) (*big.Int, error) {
	roundID, ok := new(big.Int).SetString(raw, 10)
	if !ok || roundID.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRound, raw)
	}
	return roundID, nil
}

func newRoundResponse(f Feed, rd feed.RoundData) roundResponse {
	return roundResponse{
		Feed:            f.Name(),
		RoundID:         bigString(rd.RoundID),
		Answer:          bigString(rd.Answer),
		Price:           scaled(rd.Answer, f.Decimals()),
		Decimals:        f.Decimals(),
		StartedAt:       unix(rd.StartedAt),
		UpdatedAt:       unix(rd.UpdatedAt),
		AnsweredInRound: bigString(rd.AnsweredInRound),
	}
}

func newAnswerResponse(f Feed, a feed.Answer) answerResponse {
	return answerResponse{
		Feed:      f.Name(),
		RoundID:   bigString(a.RoundID),
		Answer:    bigString(a.Answer),
		Price:     scaled(a.Answer, f.Decimals()),
		Decimals:  f.Decimals(),
		UpdatedAt: unix(a.UpdatedAt),
	}
}

// scaled renders answer / 10^decimals.
func scaled(answer *big.Int, decimals uint8) string {
	if answer == nil {
		return "0"
	}
	return decimal.NewFromBigInt(answer, -int32(decimals)).String()
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func unix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

// sendJSON sends a JSON response.
func (s *Server) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}

// sendError sends err with the status it maps to.
func (s *Server) sendError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("Request failed", "status", status, "error", err)
	}
	s.sendJSON(w, status, map[string]string{"error": err.Error()})
}

// checkAdmin validates the bearer token of an admin request.
func (s *Server) checkAdmin(r *http.Request) error {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.AdminToken)) != 1 {
		return ErrAdminUnauthorized
	}
	return nil
}
