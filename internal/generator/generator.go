package generator

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"github.com/vanshika/fintrace/amlwatch/internal/community"
	"github.com/vanshika/fintrace/amlwatch/internal/domain"
)

// Columns is the header of generated datasets, a subset of the public
// card-transaction exports the normalizer understands.
var Columns = []string{
	"trans_date_trans_time",
	"cc_num",
	"merchant",
	"category",
	"amt",
	"state",
	"merch_lat",
	"merch_long",
	"trans_num",
	"unix_time",
}

const timestampLayout = "2006-01-02 15:04:05"

// Dataset contains generated rows and the communities of the injected
// patterns. Rows are ordered by timestamp.
type Dataset struct {
	Rows        []domain.RawRecord
	Communities community.Map
}

// Generator produces background card traffic with injected fan-in
// (smurfing) and fan-out (structuring) clusters.
type Generator struct {
	cfg   Config
	rand  *rand.Rand
	cards map[string]struct{}
	seq   int
}

// New returns a configured Generator instance.
func New(cfg Config) *Generator {
	def := DefaultConfig()
	if cfg.NumCards <= 0 {
		cfg.NumCards = def.NumCards
	}
	if cfg.NumMerchants <= 0 {
		cfg.NumMerchants = def.NumMerchants
	}
	if cfg.NumTransactions < 0 {
		cfg.NumTransactions = 0
	}
	if cfg.FanInClusters < 0 {
		cfg.FanInClusters = 0
	}
	if cfg.FanOutClusters < 0 {
		cfg.FanOutClusters = 0
	}
	if cfg.Days <= 0 {
		cfg.Days = def.Days
	}
	if cfg.Start.IsZero() {
		cfg.Start = def.Start
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	return &Generator{
		cfg:   cfg,
		rand:  rand.New(rand.NewSource(cfg.Seed)),
		cards: make(map[string]struct{}),
	}
}

// Generate synthesises the dataset. It respects context cancellation.
func (g *Generator) Generate(ctx context.Context) (Dataset, error) {
	cards := make([]string, g.cfg.NumCards)
	for i := range cards {
		cards[i] = g.newCard()
	}
	merchants := make([]merchant, g.cfg.NumMerchants)
	for i := range merchants {
		merchants[i] = g.newMerchant(fmt.Sprintf("merchant_%03d", i+1))
	}

	span := time.Duration(g.cfg.Days) * 24 * time.Hour
	rows := make([]domain.RawRecord, 0, g.cfg.NumTransactions)
	for i := 0; i < g.cfg.NumTransactions; i++ {
		if err := ctx.Err(); err != nil {
			return Dataset{}, err
		}
		ts := g.cfg.Start.Add(time.Duration(g.rand.Int63n(int64(span))))
		amount := 1 + g.rand.Float64()*299
		rows = append(rows, g.row(cards[g.rand.Intn(len(cards))], merchants[g.rand.Intn(len(merchants))], amount, ts))
	}

	communities := make(community.Map, g.cfg.FanInClusters+g.cfg.FanOutClusters)
	nextID := 1
	for i := 0; i < g.cfg.FanInClusters; i++ {
		if err := ctx.Err(); err != nil {
			return Dataset{}, err
		}
		clusterRows, members := g.fanInCluster(i+1, span)
		rows = append(rows, clusterRows...)
		id := strconv.Itoa(nextID)
		communities[id] = domain.Community{ID: id, Members: members}
		nextID++
	}
	for i := 0; i < g.cfg.FanOutClusters; i++ {
		if err := ctx.Err(); err != nil {
			return Dataset{}, err
		}
		clusterRows, members := g.fanOutCluster(i+1, span)
		rows = append(rows, clusterRows...)
		id := strconv.Itoa(nextID)
		communities[id] = domain.Community{ID: id, Members: members}
		nextID++
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i]["unix_time"] < rows[j]["unix_time"]
	})
	return Dataset{Rows: rows, Communities: communities}, nil
}

// fanInCluster emits 3-6 dedicated cards each paying one merchant a
// sub-threshold amount within eight hours.
func (g *Generator) fanInCluster(n int, span time.Duration) ([]domain.RawRecord, []string) {
	target := g.newMerchant(fmt.Sprintf("collector_%02d", n))
	start := g.clusterStart(span)
	senders := 3 + g.rand.Intn(4)

	members := []string{target.name}
	rows := make([]domain.RawRecord, 0, senders)
	for i := 0; i < senders; i++ {
		card := g.newCard()
		members = append(members, card)
		ts := start.Add(time.Duration(g.rand.Int63n(int64(8 * time.Hour))))
		rows = append(rows, g.row(card, target, 500+g.rand.Float64()*2000, ts))
	}
	return rows, members
}

// fanOutCluster emits one dedicated card splitting a large sum across 3-5
// fresh merchants in similar amounts within six hours.
func (g *Generator) fanOutCluster(n int, span time.Duration) ([]domain.RawRecord, []string) {
	card := g.newCard()
	start := g.clusterStart(span)
	receivers := 3 + g.rand.Intn(3)

	members := []string{card}
	rows := make([]domain.RawRecord, 0, receivers)
	for i := 0; i < receivers; i++ {
		m := g.newMerchant(fmt.Sprintf("splitter_%02d_%d", n, i+1))
		members = append(members, m.name)
		ts := start.Add(time.Duration(g.rand.Int63n(int64(6 * time.Hour))))
		rows = append(rows, g.row(card, m, 1200+g.rand.Float64()*600, ts))
	}
	return rows, members
}

func (g *Generator) clusterStart(span time.Duration) time.Time {
	latest := span - 12*time.Hour
	if latest <= 0 {
		return g.cfg.Start
	}
	return g.cfg.Start.Add(time.Duration(g.rand.Int63n(int64(latest))))
}

type merchant struct {
	name     string
	category string
	state    string
	lat      float64
	long     float64
}

func (g *Generator) newMerchant(name string) merchant {
	return merchant{
		name:     name,
		category: categories[g.rand.Intn(len(categories))],
		state:    states[g.rand.Intn(len(states))],
		lat:      25 + g.rand.Float64()*23,
		long:     -124 + g.rand.Float64()*57,
	}
}

// newCard returns a 16-digit card number not issued before.
func (g *Generator) newCard() string {
	for {
		card := fmt.Sprintf("4%015d", g.rand.Int63n(1e15))
		if _, ok := g.cards[card]; !ok {
			g.cards[card] = struct{}{}
			return card
		}
	}
}

func (g *Generator) row(card string, m merchant, amount float64, ts time.Time) domain.RawRecord {
	g.seq++
	return domain.RawRecord{
		"trans_date_trans_time": ts.UTC().Format(timestampLayout),
		"cc_num":                card,
		"merchant":              m.name,
		"category":              m.category,
		"amt":                   strconv.FormatFloat(amount, 'f', 2, 64),
		"state":                 m.state,
		"merch_lat":             strconv.FormatFloat(m.lat, 'f', 6, 64),
		"merch_long":            strconv.FormatFloat(m.long, 'f', 6, 64),
		"trans_num":             fmt.Sprintf("%016x%08d", g.rand.Uint64(), g.seq),
		"unix_time":             fmt.Sprintf("%012d", ts.Unix()),
	}
}

var (
	categories = []string{"grocery_pos", "gas_transport", "shopping_net", "misc_pos", "entertainment", "food_dining", "travel", "health_fitness"}
	states     = []string{"CA", "NY", "WA", "TX", "IL", "FL", "CO", "MA"}
)
