package network

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/channel-observatory/internal/core/domain"
	apperrors "github.com/lueurxax/channel-observatory/internal/core/errors"
	"github.com/lueurxax/channel-observatory/internal/core/links/linkextract"
	"github.com/lueurxax/channel-observatory/internal/platform/observability"
)

// Store is the read side the builders need.
type Store interface {
	SeedListPreview(ctx context.Context, seedLists []string) ([]domain.Seed, error)
	SeedChannelIDs(ctx context.Context, seedLists []string) ([]int64, error)
	ForwardEdges(ctx context.Context, channelIDs []int64, r domain.DateRange) ([]domain.ForwardEdge, error)
	LinkSources(ctx context.Context, channelIDs []int64, r domain.DateRange) ([]domain.LinkSource, error)
	ChannelNames(ctx context.Context, ids []int64) (map[int64]string, error)
}

// Options tunes network construction.
type Options struct {
	// CommunitySeed makes community detection reproducible.
	CommunitySeed uint64
	// CollapseSubdomains maps cited hosts to their registrable domain.
	CollapseSubdomains bool
}

// Builder turns stored messages into networks.
type Builder struct {
	store  Store
	opts   Options
	logger *zerolog.Logger
}

func NewBuilder(store Store, opts Options, logger *zerolog.Logger) *Builder {
	return &Builder{store: store, opts: opts, logger: logger}
}

// seedIndex maps channel ids of the selected seed lists to their names and lists.
type seedIndex struct {
	ids   []int64
	names map[int64]string
	lists map[int64][]string
}

func (b *Builder) loadSeeds(ctx context.Context, seedLists []string) (seedIndex, error) {
	if len(seedLists) == 0 {
		return seedIndex{}, apperrors.ErrNoSeedLists
	}

	seeds, err := b.store.SeedListPreview(ctx, seedLists)
	if err != nil {
		return seedIndex{}, fmt.Errorf("load seeds: %w", err)
	}

	idx := seedIndex{
		names: make(map[int64]string, len(seeds)),
		lists: make(map[int64][]string, len(seeds)),
	}

	for _, s := range seeds {
		if _, ok := idx.names[s.ChannelID]; !ok {
			idx.ids = append(idx.ids, s.ChannelID)
			idx.names[s.ChannelID] = s.ChannelName
		}

		idx.lists[s.ChannelID] = append(idx.lists[s.ChannelID], s.SeedList)
	}

	return idx, nil
}

// seedIDs loads only the channel ids of the selected seed lists.
func (b *Builder) seedIDs(ctx context.Context, seedLists []string) ([]int64, error) {
	if len(seedLists) == 0 {
		return nil, apperrors.ErrNoSeedLists
	}

	ids, err := b.store.SeedChannelIDs(ctx, seedLists)
	if err != nil {
		return nil, fmt.Errorf("load seed channel ids: %w", err)
	}

	return ids, nil
}

// ForwardNetwork builds the channel forwarding graph of the seed lists: an edge
// points from a channel to the channel whose post it forwarded.
func (b *Builder) ForwardNetwork(ctx context.Context, seedLists []string, r domain.DateRange, maxSize int) (*Graph, error) {
	started := time.Now()

	seeds, err := b.loadSeeds(ctx, seedLists)
	if err != nil {
		return nil, err
	}

	rows, err := b.store.ForwardEdges(ctx, seeds.ids, r)
	if err != nil {
		return nil, fmt.Errorf("load forward edges: %w", err)
	}

	edges := make([]Edge, 0, len(rows))
	for _, row := range rows {
		edges = append(edges, Edge{
			Source: channelNodeID(row.ChannelID),
			Target: channelNodeID(row.ForwardeeChannelID),
			Weight: row.Weight,
		})
	}

	g := b.finish(KindForward, edges, maxSize)

	if err := b.labelChannels(ctx, g, seeds); err != nil {
		return nil, err
	}

	b.observe(g, started)

	return g, nil
}

// labelChannels names channel nodes from the seed lists, falling back to stored
// channel metadata for channels outside them.
func (b *Builder) labelChannels(ctx context.Context, g *Graph, seeds seedIndex) error {
	var unknown []int64

	for _, n := range g.Nodes {
		id, err := strconv.ParseInt(n.ID, 10, 64)
		if err != nil {
			continue
		}

		n.Kind = NodeChannel
		n.SeedLists = seeds.lists[id]

		if name, ok := seeds.names[id]; ok {
			n.Label = name
			continue
		}

		n.Label = ""
		unknown = append(unknown, id)
	}

	if len(unknown) == 0 {
		return nil
	}

	names, err := b.store.ChannelNames(ctx, unknown)
	if err != nil {
		return fmt.Errorf("load channel names: %w", err)
	}

	for _, id := range unknown {
		if n, ok := g.Node(channelNodeID(id)); ok {
			n.Label = names[id]
		}
	}

	return nil
}

// DomainEdges counts, per channel, the links its posts make to each web domain.
// Telegram links are excluded. Rows are ordered by channel id, heaviest first.
func (b *Builder) DomainEdges(ctx context.Context, seedLists []string, r domain.DateRange) ([]domain.DomainEdge, error) {
	ids, err := b.seedIDs(ctx, seedLists)
	if err != nil {
		return nil, err
	}

	sources, err := b.store.LinkSources(ctx, ids, r)
	if err != nil {
		return nil, fmt.Errorf("load link sources: %w", err)
	}

	type key struct {
		channel int64
		domain  string
	}

	weights := make(map[key]int)

	for _, src := range sources {
		for _, d := range linkextract.MessageDomains(src.MessageText, src.APIResponse, b.opts.CollapseSubdomains) {
			if d == linkextract.TelegramDomain {
				continue
			}

			weights[key{src.ChannelID, d}]++
		}
	}

	out := make([]domain.DomainEdge, 0, len(weights))
	for k, w := range weights {
		out = append(out, domain.DomainEdge{ChannelID: k.channel, Domain: k.domain, Weight: w})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ChannelID != out[j].ChannelID {
			return out[i].ChannelID < out[j].ChannelID
		}

		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}

		return out[i].Domain < out[j].Domain
	})

	return out, nil
}

// DomainNetwork builds the bipartite channel to domain citation graph.
func (b *Builder) DomainNetwork(ctx context.Context, seedLists []string, r domain.DateRange, maxSize int) (*Graph, error) {
	started := time.Now()

	rows, err := b.DomainEdges(ctx, seedLists, r)
	if err != nil {
		return nil, err
	}

	edges := make([]Edge, 0, len(rows))
	for _, row := range rows {
		edges = append(edges, Edge{
			Source: channelNodeID(row.ChannelID),
			Target: row.Domain,
			Weight: row.Weight,
		})
	}

	g := b.finish(KindDomain, edges, maxSize)

	sources := make(map[string]struct{}, len(edges))
	for _, e := range g.Edges {
		sources[e.Source] = struct{}{}
	}

	for _, n := range g.Nodes {
		n.Kind = NodeDomain
		if _, ok := sources[n.ID]; ok {
			n.Kind = NodeChannel
		}
	}

	b.observe(g, started)

	return g, nil
}

// DomainTable totals citation weight per domain, heaviest first.
func (b *Builder) DomainTable(ctx context.Context, seedLists []string, r domain.DateRange) ([]domain.DomainCount, error) {
	rows, err := b.DomainEdges(ctx, seedLists, r)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]int)
	for _, row := range rows {
		totals[row.Domain] += row.Weight
	}

	out := make([]domain.DomainCount, 0, len(totals))
	for d, w := range totals {
		out = append(out, domain.DomainCount{Domain: d, Weight: w})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}

		return out[i].Domain < out[j].Domain
	})

	return out, nil
}

// finish prunes, builds and colours a graph. Self-loops never reach the graph,
// so they are removed before they can count against maxSize.
func (b *Builder) finish(kind Kind, edges []Edge, maxSize int) *Graph {
	edges = DropSelfLoops(edges)
	kept, threshold := FilterByWeight(edges, maxSize)

	g := Build(kind, kept)
	g.Threshold = threshold
	CommunityColors(g, b.opts.CommunitySeed)

	if threshold > 0 {
		b.logger.Debug().
			Str("network", string(kind)).
			Int("threshold", threshold).
			Int("edges_before", len(edges)).
			Int("edges_after", len(kept)).
			Msg("pruned network")
	}

	return g
}

func (b *Builder) observe(g *Graph, started time.Time) {
	label := string(g.Kind)

	observability.GraphBuildDuration.WithLabelValues(label).Observe(time.Since(started).Seconds())
	observability.GraphNodes.WithLabelValues(label).Set(float64(len(g.Nodes)))
	observability.GraphPruneThreshold.WithLabelValues(label).Set(float64(g.Threshold))
}

func channelNodeID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// SeedListLabel joins a node's seed lists for display.
func SeedListLabel(lists []string) string {
	return strings.Join(lists, ",")
}
