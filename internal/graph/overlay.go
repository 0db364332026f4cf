package graph

import (
	"github.com/vanshika/fintrace/amlwatch/internal/domain"
)

// Overlay layers a single record over a base view without touching it.
type Overlay struct {
	base     View
	sender   domain.Node
	receiver domain.Node
	edge     domain.Edge
	newEdge  bool
	newNodes int
}

// NewOverlay returns a view of base with rec applied using the same
// upsert rules as Build. Records with an empty identifier leave the view
// equal to base.
func NewOverlay(base View, rec domain.NormalizedRecord) View {
	if rec.SenderID == "" || rec.ReceiverID == "" {
		return base
	}
	o := &Overlay{
		base:     base,
		sender:   accountNode(rec),
		receiver: merchantNode(rec),
		edge:     edgeFromRecord(rec),
	}
	if _, ok := base.Edge(rec.SenderID, rec.ReceiverID); !ok {
		o.newEdge = true
	}
	if _, ok := base.Node(rec.SenderID); !ok {
		o.newNodes++
	}
	if _, ok := base.Node(rec.ReceiverID); !ok && rec.ReceiverID != rec.SenderID {
		o.newNodes++
	}
	return o
}

func (o *Overlay) Node(id string) (domain.Node, bool) {
	// The receiver upsert runs last, so it wins for self-transfers.
	switch id {
	case o.receiver.ID:
		return o.receiver, true
	case o.sender.ID:
		return o.sender, true
	}
	return o.base.Node(id)
}

func (o *Overlay) Successors(id string) ([]string, bool) {
	succ, ok := o.base.Successors(id)
	if id != o.sender.ID {
		if !ok && id == o.receiver.ID {
			return nil, true
		}
		return succ, ok
	}
	if !o.newEdge {
		return succ, true
	}
	out := make([]string, len(succ), len(succ)+1)
	copy(out, succ)
	return append(out, o.receiver.ID), true
}

func (o *Overlay) Edge(sender, receiver string) (domain.Edge, bool) {
	if sender == o.edge.Sender && receiver == o.edge.Receiver {
		return o.edge, true
	}
	return o.base.Edge(sender, receiver)
}

func (o *Overlay) NodeCount() int { return o.base.NodeCount() + o.newNodes }

func (o *Overlay) EdgeCount() int {
	if o.newEdge {
		return o.base.EdgeCount() + 1
	}
	return o.base.EdgeCount()
}
