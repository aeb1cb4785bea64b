// Package analysis serves the JSON analysis API over stored channel data.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/channel-observatory/internal/core/domain"
	apperrors "github.com/lueurxax/channel-observatory/internal/core/errors"
	"github.com/lueurxax/channel-observatory/internal/network"
)

const (
	queryLayout       = "2006-01-02"
	defaultRangeStart = "1970-01-01"
	defaultRunsLimit  = 20
	maxRunsLimit      = 200
	maxNetworkSize    = 5000
	slowQueryLimit    = 2 * time.Second

	// Route path constants.
	routeSeedLists     = "seed-lists"
	routeSeeds         = "seeds"
	routeMetadata      = "metadata"
	routeChannel       = "channel/"
	routeBirthChart    = "birth-chart"
	routeTimeSeries    = "time-series"
	routeTopMessages   = "top-messages"
	routeNetwork       = "network/"
	routeDomains       = "domains"
	routeRuns          = "runs"
	routeCacheFlush    = "cache/flush"
	routeNotFound      = "not_found"
	routeNotAllowed    = "method_not_allowed"
	routeNetworkPrefix = "network_"

	// Query parameters.
	paramLists   = "lists"
	paramFrom    = "from"
	paramTo      = "to"
	paramUnit    = "unit"
	paramLimit   = "limit"
	paramMaxSize = "max_size"
	paramSeed    = "seed_list"

	contentTypeHeader = "Content-Type"
	contentTypeJSON   = "application/json; charset=utf-8"

	logFieldRoute = "route"
)

var (
	errListsRequired   = errors.New("lists is required")
	errInvalidLimit    = errors.New("limit must be a positive integer")
	errInvalidMaxSize  = errors.New("max_size must be a non-negative integer")
	errInvalidChannel  = errors.New("invalid channel id")
	errUnknownNetwork  = errors.New("unknown network")
	errSeedListMissing = errors.New("seed_list is required")
)

// Store is the query layer used by the API.
type Store interface {
	SeedListNames(ctx context.Context) ([]string, error)
	SeedListPreview(ctx context.Context, seedLists []string) ([]domain.Seed, error)
	SeedMetadata(ctx context.Context, seedLists []string) ([]domain.ChannelMetadata, error)
	ChannelMetadata(ctx context.Context, channelID int64) (domain.ChannelMetadata, error)
	BirthChart(ctx context.Context, seedLists []string, unit domain.TimeUnit) ([]domain.TimeCount, error)
	TimeSeries(ctx context.Context, seedLists []string, r domain.DateRange, unit domain.TimeUnit) ([]domain.TimeCount, error)
	TopMessages(ctx context.Context, seedLists []string, r domain.DateRange, limit int) ([]domain.TopMessage, error)
	RecentRetrievalRuns(ctx context.Context, seedList string, limit int) ([]domain.RetrievalRun, error)
}

// Networks builds graphs and domain aggregates.
type Networks interface {
	ForwardNetwork(ctx context.Context, seedLists []string, r domain.DateRange, maxSize int) (*network.Graph, error)
	DomainNetwork(ctx context.Context, seedLists []string, r domain.DateRange, maxSize int) (*network.Graph, error)
	DomainTable(ctx context.Context, seedLists []string, r domain.DateRange) ([]domain.DomainCount, error)
}

// Options configures the handler.
type Options struct {
	NetworkMaxSize   int
	TopMessagesLimit int
	CacheTTL         time.Duration
}

// Handler serves the analysis API. Paths are relative to its mount point.
type Handler struct {
	store    Store
	networks Networks
	opts     Options
	cache    *resultCache
	now      func() time.Time
	logger   *zerolog.Logger
}

func NewHandler(store Store, networks Networks, opts Options, logger *zerolog.Logger) *Handler {
	return &Handler{
		store:    store,
		networks: networks,
		opts:     opts,
		cache:    newResultCache(opts.CacheTTL),
		now:      time.Now,
		logger:   logger,
	}
}

// NetworkResponse is a graph ready for Cytoscape.
type NetworkResponse struct {
	Network   string            `json:"network"`
	Threshold int               `json:"threshold"`
	Nodes     int               `json:"nodes"`
	Edges     int               `json:"edges"`
	Scale     network.Scale     `json:"scale"`
	Elements  []network.Element `json:"elements"`
}

// ServeHTTP routes requests to analysis endpoints.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	route, status, resultSize := h.dispatch(w, r)

	latencyHistogram.WithLabelValues(route).Observe(time.Since(start).Seconds())
	requestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()

	if resultSize > 0 {
		resultSizeGauge.WithLabelValues(route).Set(float64(resultSize))
	}

	if elapsed := time.Since(start); elapsed > slowQueryLimit {
		h.logger.Warn().Str(logFieldRoute, route).Dur("elapsed", elapsed).Msg("slow analysis query")
	}
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request) (route string, status int, resultSize int) {
	path := strings.Trim(r.URL.Path, "/")

	if path == routeCacheFlush {
		if r.Method != http.MethodPost {
			return routeNotAllowed, h.writeError(w, http.StatusMethodNotAllowed, "use POST"), 0
		}

		h.cache.flush()

		return "cache_flush", h.writeJSON(w, http.StatusOK, map[string]string{"status": "flushed"}), 0
	}

	if r.Method != http.MethodGet {
		return routeNotAllowed, h.writeError(w, http.StatusMethodNotAllowed, "use GET"), 0
	}

	switch {
	case path == routeSeedLists:
		s, rs := h.handleSeedLists(w, r)
		return routeSeedLists, s, rs
	case path == routeSeeds:
		s, rs := h.handleSeeds(w, r)
		return routeSeeds, s, rs
	case path == routeMetadata:
		s, rs := h.handleMetadata(w, r)
		return routeMetadata, s, rs
	case strings.HasPrefix(path, routeChannel):
		return "channel", h.handleChannel(w, r, strings.TrimPrefix(path, routeChannel)), 0
	case path == routeBirthChart:
		s, rs := h.handleBirthChart(w, r)
		return routeBirthChart, s, rs
	case path == routeTimeSeries:
		s, rs := h.handleTimeSeries(w, r)
		return routeTimeSeries, s, rs
	case path == routeTopMessages:
		s, rs := h.handleTopMessages(w, r)
		return routeTopMessages, s, rs
	case strings.HasPrefix(path, routeNetwork):
		kind := strings.TrimPrefix(path, routeNetwork)
		s, rs := h.handleNetwork(w, r, kind)

		return routeNetworkPrefix + kind, s, rs
	case path == routeDomains:
		s, rs := h.handleDomains(w, r)
		return routeDomains, s, rs
	case path == routeRuns:
		s, rs := h.handleRuns(w, r)
		return routeRuns, s, rs
	default:
		return routeNotFound, h.writeError(w, http.StatusNotFound, "unknown analysis endpoint"), 0
	}
}

func (h *Handler) handleSeedLists(w http.ResponseWriter, r *http.Request) (int, int) {
	names, err := h.store.SeedListNames(r.Context())
	if err != nil {
		return h.writeFailure(w, routeSeedLists, err), 0
	}

	return h.writeJSON(w, http.StatusOK, nonNil(names)), len(names)
}

func (h *Handler) handleSeeds(w http.ResponseWriter, r *http.Request) (int, int) {
	lists, err := parseLists(r)
	if err != nil {
		return h.writeBadRequest(w, r, routeSeeds, err), 0
	}

	seeds, err := h.store.SeedListPreview(r.Context(), lists)
	if err != nil {
		return h.writeFailure(w, routeSeeds, err), 0
	}

	return h.writeJSON(w, http.StatusOK, nonNil(seeds)), len(seeds)
}

func (h *Handler) handleMetadata(w http.ResponseWriter, r *http.Request) (int, int) {
	lists, err := parseLists(r)
	if err != nil {
		return h.writeBadRequest(w, r, routeMetadata, err), 0
	}

	records, err := h.store.SeedMetadata(r.Context(), lists)
	if err != nil {
		return h.writeFailure(w, routeMetadata, err), 0
	}

	profiles := make([]domain.ChannelProfile, 0, len(records))
	for _, m := range records {
		profiles = append(profiles, m.Public())
	}

	return h.writeJSON(w, http.StatusOK, profiles), len(profiles)
}

func (h *Handler) handleChannel(w http.ResponseWriter, r *http.Request, rawID string) int {
	id, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	if err != nil {
		return h.writeBadRequest(w, r, "channel", errInvalidChannel)
	}

	record, err := h.store.ChannelMetadata(r.Context(), id)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return h.writeError(w, http.StatusNotFound, "channel not found")
		}

		return h.writeFailure(w, "channel", err)
	}

	return h.writeJSON(w, http.StatusOK, record.Public())
}

func (h *Handler) handleBirthChart(w http.ResponseWriter, r *http.Request) (int, int) {
	lists, err := parseLists(r)
	if err != nil {
		return h.writeBadRequest(w, r, routeBirthChart, err), 0
	}

	unit, err := domain.ParseTimeUnit(r.URL.Query().Get(paramUnit), domain.UnitMonth)
	if err != nil {
		return h.writeBadRequest(w, r, routeBirthChart, err), 0
	}

	counts, err := h.store.BirthChart(r.Context(), lists, unit)
	if err != nil {
		return h.writeFailure(w, routeBirthChart, err), 0
	}

	return h.writeJSON(w, http.StatusOK, nonNil(counts)), len(counts)
}

func (h *Handler) handleTimeSeries(w http.ResponseWriter, r *http.Request) (int, int) {
	lists, rng, err := h.parseListsAndRange(r)
	if err != nil {
		return h.writeBadRequest(w, r, routeTimeSeries, err), 0
	}

	unit, err := domain.ParseTimeUnit(r.URL.Query().Get(paramUnit), domain.UnitDay)
	if err != nil {
		return h.writeBadRequest(w, r, routeTimeSeries, err), 0
	}

	counts, err := h.store.TimeSeries(r.Context(), lists, rng, unit)
	if err != nil {
		return h.writeFailure(w, routeTimeSeries, err), 0
	}

	return h.writeJSON(w, http.StatusOK, nonNil(counts)), len(counts)
}

func (h *Handler) handleTopMessages(w http.ResponseWriter, r *http.Request) (int, int) {
	lists, rng, err := h.parseListsAndRange(r)
	if err != nil {
		return h.writeBadRequest(w, r, routeTopMessages, err), 0
	}

	limit, err := parsePositive(r, paramLimit, h.opts.TopMessagesLimit)
	if err != nil {
		return h.writeBadRequest(w, r, routeTopMessages, err), 0
	}

	msgs, err := h.store.TopMessages(r.Context(), lists, rng, limit)
	if err != nil {
		return h.writeFailure(w, routeTopMessages, err), 0
	}

	return h.writeJSON(w, http.StatusOK, nonNil(msgs)), len(msgs)
}

func (h *Handler) handleNetwork(w http.ResponseWriter, r *http.Request, rawKind string) (int, int) {
	kind, ok := network.ParseKind(rawKind)
	if !ok {
		return h.writeError(w, http.StatusNotFound, errUnknownNetwork.Error()), 0
	}

	lists, rng, err := h.parseListsAndRange(r)
	if err != nil {
		return h.writeBadRequest(w, r, routeNetwork, err), 0
	}

	maxSize, err := parseMaxSize(r, h.opts.NetworkMaxSize)
	if err != nil {
		return h.writeBadRequest(w, r, routeNetwork, err), 0
	}

	key := cacheKey(string(kind), lists, rng, strconv.Itoa(maxSize))
	if cached, ok := h.cache.get(key); ok {
		if resp, ok := cached.(NetworkResponse); ok {
			return h.writeJSON(w, http.StatusOK, resp), resp.Nodes
		}
	}

	var g *network.Graph

	switch kind {
	case network.KindDomain:
		g, err = h.networks.DomainNetwork(r.Context(), lists, rng, maxSize)
	default:
		g, err = h.networks.ForwardNetwork(r.Context(), lists, rng, maxSize)
	}

	if err != nil {
		return h.writeFailure(w, routeNetwork, err), 0
	}

	elements, scale := network.Elements(g)
	resp := NetworkResponse{
		Network:   string(kind),
		Threshold: g.Threshold,
		Nodes:     len(g.Nodes),
		Edges:     len(g.Edges),
		Scale:     scale,
		Elements:  elements,
	}

	h.cache.set(key, resp)

	return h.writeJSON(w, http.StatusOK, resp), resp.Nodes
}

func (h *Handler) handleDomains(w http.ResponseWriter, r *http.Request) (int, int) {
	lists, rng, err := h.parseListsAndRange(r)
	if err != nil {
		return h.writeBadRequest(w, r, routeDomains, err), 0
	}

	key := cacheKey(routeDomains, lists, rng, "")
	if cached, ok := h.cache.get(key); ok {
		if table, ok := cached.([]domain.DomainCount); ok {
			return h.writeJSON(w, http.StatusOK, table), len(table)
		}
	}

	table, err := h.networks.DomainTable(r.Context(), lists, rng)
	if err != nil {
		return h.writeFailure(w, routeDomains, err), 0
	}

	table = nonNil(table)
	h.cache.set(key, table)

	return h.writeJSON(w, http.StatusOK, table), len(table)
}

func (h *Handler) handleRuns(w http.ResponseWriter, r *http.Request) (int, int) {
	seedList := strings.TrimSpace(r.URL.Query().Get(paramSeed))
	if seedList == "" {
		return h.writeBadRequest(w, r, routeRuns, errSeedListMissing), 0
	}

	limit, err := parsePositive(r, paramLimit, defaultRunsLimit)
	if err != nil {
		return h.writeBadRequest(w, r, routeRuns, err), 0
	}

	runs, err := h.store.RecentRetrievalRuns(r.Context(), seedList, min(limit, maxRunsLimit))
	if err != nil {
		return h.writeFailure(w, routeRuns, err), 0
	}

	return h.writeJSON(w, http.StatusOK, nonNil(runs)), len(runs)
}

// parseLists reads the comma separated and/or repeated lists parameter.
func parseLists(r *http.Request) ([]string, error) {
	seen := make(map[string]bool)

	var lists []string

	for _, raw := range r.URL.Query()[paramLists] {
		for _, name := range strings.Split(raw, ",") {
			name = strings.TrimSpace(name)
			if name == "" || seen[name] {
				continue
			}

			seen[name] = true
			lists = append(lists, name)
		}
	}

	if len(lists) == 0 {
		return nil, errListsRequired
	}

	sort.Strings(lists)

	return lists, nil
}

// parseListsAndRange reads lists plus from/to. A missing bound means an open range
// from 1970-01-01 up to today.
func (h *Handler) parseListsAndRange(r *http.Request) ([]string, domain.DateRange, error) {
	lists, err := parseLists(r)
	if err != nil {
		return nil, domain.DateRange{}, err
	}

	q := r.URL.Query()

	from := strings.TrimSpace(q.Get(paramFrom))
	if from == "" {
		from = defaultRangeStart
	}

	to := strings.TrimSpace(q.Get(paramTo))
	if to == "" {
		to = h.now().UTC().Format(queryLayout)
	}

	rng, err := domain.ParseDateRange(from, to)
	if err != nil {
		return nil, domain.DateRange{}, err
	}

	return lists, rng, nil
}

func parsePositive(r *http.Request, param string, fallback int) (int, error) {
	val := strings.TrimSpace(r.URL.Query().Get(param))
	if val == "" {
		return fallback, nil
	}

	num, err := strconv.Atoi(val)
	if err != nil || num <= 0 {
		return 0, errInvalidLimit
	}

	return num, nil
}

func parseMaxSize(r *http.Request, fallback int) (int, error) {
	val := strings.TrimSpace(r.URL.Query().Get(paramMaxSize))
	if val == "" {
		return fallback, nil
	}

	num, err := strconv.Atoi(val)
	if err != nil || num < 0 {
		return 0, errInvalidMaxSize
	}

	return min(num, maxNetworkSize), nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}

	return items
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) int {
	w.Header().Set(contentTypeHeader, contentTypeJSON)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error().Err(err).Msg("write json failed")
	}

	return status
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) int {
	return h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) writeBadRequest(w http.ResponseWriter, r *http.Request, route string, err error) int {
	h.logger.Warn().
		Str(logFieldRoute, route).
		Str("query", r.URL.RawQuery).
		Err(err).
		Msg("analysis validation failed")

	return h.writeError(w, http.StatusBadRequest, err.Error())
}

func (h *Handler) writeFailure(w http.ResponseWriter, route string, err error) int {
	if apperrors.Is(err, apperrors.ErrNoSeedLists) {
		return h.writeError(w, http.StatusBadRequest, err.Error())
	}

	h.logger.Error().Str(logFieldRoute, route).Err(err).Msg("analysis query failed")

	return h.writeError(w, http.StatusInternalServerError, "internal error")
}
