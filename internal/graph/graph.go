package graph

import (
	"strconv"

	"github.com/vanshika/fintrace/amlwatch/internal/domain"
)

// View is the read-only surface of a transaction graph.
type View interface {
	Node(id string) (domain.Node, bool)
	Successors(id string) ([]string, bool)
	Edge(sender, receiver string) (domain.Edge, bool)
	NodeCount() int
	EdgeCount() int
}

type pairKey struct {
	sender   string
	receiver string
}

// Graph is a directed account→merchant graph holding at most one edge per
// ordered pair. It is built once by Build and not modified afterwards.
type Graph struct {
	nodes      map[string]domain.Node
	successors map[string][]string
	edges      map[pairKey]domain.Edge
}

func newGraph(sizeHint int) *Graph {
	return &Graph{
		nodes:      make(map[string]domain.Node, sizeHint),
		successors: make(map[string][]string, sizeHint),
		edges:      make(map[pairKey]domain.Edge, sizeHint),
	}
}

// Build constructs the graph from normalized records. Records that cannot be
// applied are skipped and reported.
func Build(records []domain.NormalizedRecord) (*Graph, []domain.Diagnostic) {
	g := newGraph(len(records))
	var diags []domain.Diagnostic

	for i, rec := range records {
		if rec.SenderID == "" || rec.ReceiverID == "" {
			diags = append(diags, domain.Diagnostic{
				Stage:  domain.StageGraph,
				Item:   "record " + strconv.Itoa(i),
				Reason: "empty identifier",
			})
			continue
		}
		g.apply(rec)
	}
	return g, diags
}

func (g *Graph) apply(rec domain.NormalizedRecord) {
	g.nodes[rec.SenderID] = accountNode(rec)
	g.nodes[rec.ReceiverID] = merchantNode(rec)

	key := pairKey{sender: rec.SenderID, receiver: rec.ReceiverID}
	if _, exists := g.edges[key]; !exists {
		g.successors[rec.SenderID] = append(g.successors[rec.SenderID], rec.ReceiverID)
	}
	g.edges[key] = edgeFromRecord(rec)
}

// Node returns the node with the given identifier.
func (g *Graph) Node(id string) (domain.Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Successors lists receivers of id in first-edge order. The boolean is false
// when id is not a node of the graph.
func (g *Graph) Successors(id string) ([]string, bool) {
	if _, ok := g.nodes[id]; !ok {
		return nil, false
	}
	return g.successors[id], true
}

// Edge returns the latest transaction summary between sender and receiver.
func (g *Graph) Edge(sender, receiver string) (domain.Edge, bool) {
	e, ok := g.edges[pairKey{sender: sender, receiver: receiver}]
	return e, ok
}

func (g *Graph) NodeCount() int { return len(g.nodes) }

func (g *Graph) EdgeCount() int { return len(g.edges) }

// Nodes returns every node; order is unspecified.
func (g *Graph) Nodes() []domain.Node {
	out := make([]domain.Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	return out
}

// Edges returns every edge; order is unspecified.
func (g *Graph) Edges() []domain.Edge {
	out := make([]domain.Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, e)
	}
	return out
}

func accountNode(rec domain.NormalizedRecord) domain.Node {
	return domain.Node{ID: rec.SenderID, Kind: domain.NodeAccount, BankLocation: rec.BankLocation}
}

func merchantNode(rec domain.NormalizedRecord) domain.Node {
	return domain.Node{ID: rec.ReceiverID, Kind: domain.NodeMerchant, HighRisk: rec.HighRiskMerchant}
}

func edgeFromRecord(rec domain.NormalizedRecord) domain.Edge {
	return domain.Edge{
		Sender:           rec.SenderID,
		Receiver:         rec.ReceiverID,
		TransactionID:    rec.TransactionID,
		Amount:           rec.Amount,
		Timestamp:        rec.Timestamp,
		SecondsSincePrev: rec.SecondsSincePrev,
		PaymentType:      rec.PaymentType,
	}
}
