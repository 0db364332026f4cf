package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// NodeKind distinguishes paying accounts from receiving merchants.
type NodeKind string

const (
	NodeAccount  NodeKind = "account"
	NodeMerchant NodeKind = "merchant"
)

// Node is a vertex of the transaction graph.
type Node struct {
	ID           string
	Kind         NodeKind
	BankLocation string
	HighRisk     bool
}

// Edge summarises the latest transaction between a sender and a receiver.
// Only one edge exists per ordered pair; a later transaction overwrites it.
type Edge struct {
	Sender           string
	Receiver         string
	TransactionID    string
	Amount           decimal.Decimal
	Timestamp        time.Time
	SecondsSincePrev float64
	PaymentType      string
}
