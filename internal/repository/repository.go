// Package repository mirrors the transaction graph, detection cases and
// community memberships into a Bolt-compatible graph database.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vanshika/fintrace/amlwatch/internal/community"
	"github.com/vanshika/fintrace/amlwatch/internal/domain"
	"github.com/vanshika/fintrace/amlwatch/internal/graph"
)

// Repository encapsulates graph persistence operations.
type Repository struct {
	client graph.Client
	nowFn  func() time.Time
}

// New instantiates a Repository backed by the supplied graph client.
func New(client graph.Client) *Repository {
	return &Repository{client: client, nowFn: time.Now}
}

// WithClock overrides the time provider used for audit timestamps.
func (r *Repository) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		r.nowFn = nowFn
	}
}

// EnsureConstraints creates the uniqueness constraints the MERGE statements rely on.
func (r *Repository) EnsureConstraints(ctx context.Context) error {
	for _, stmt := range constraintStatements {
		if _, err := r.client.ExecuteWrite(ctx, stmt, nil); err != nil {
			return fmt.Errorf("ensure constraints: %w", err)
		}
	}
	return nil
}

// UpsertNode ensures a party node exists carrying the label of its kind.
func (r *Repository) UpsertNode(ctx context.Context, node domain.Node) error {
	if node.ID == "" {
		return errors.New("node id is required")
	}

	cypher := upsertAccountCypher
	if node.Kind == domain.NodeMerchant {
		cypher = upsertMerchantCypher
	}
	params := map[string]any{
		"id":    node.ID,
		"props": nodeProperties(node, r.nowFn()),
	}
	if _, err := r.client.ExecuteWrite(ctx, cypher, params); err != nil {
		return fmt.Errorf("upsert %s %s: %w", node.Kind, node.ID, err)
	}
	return nil
}

// UpsertTransfer merges the sender→receiver relationship and overwrites its
// attributes with the given edge, keeping the latest transaction per pair.
func (r *Repository) UpsertTransfer(ctx context.Context, edge domain.Edge) error {
	if edge.Sender == "" || edge.Receiver == "" {
		return errors.New("both sender and receiver are required")
	}

	params := map[string]any{
		"senderId":   edge.Sender,
		"receiverId": edge.Receiver,
		"props":      transferProperties(edge, r.nowFn()),
	}
	if _, err := r.client.ExecuteWrite(ctx, upsertTransferCypher, params); err != nil {
		return fmt.Errorf("upsert transfer %s->%s: %w", edge.Sender, edge.Receiver, err)
	}
	return nil
}

// SaveCase persists a detection case and links it to its principal.
func (r *Repository) SaveCase(ctx context.Context, communityID string, c domain.DetectionCase) error {
	if c.Principal == "" {
		return errors.New("case principal is required")
	}

	params := map[string]any{
		"caseId":         CaseID(communityID, c),
		"principalId":    c.Principal,
		"counterparties": c.Counterparties,
		"props": map[string]any{
			"patternType":      string(c.Pattern),
			"communityId":      communityID,
			"transactionCount": c.TransactionCount,
			"totalAmount":      c.TotalAmount.String(),
			"averageAmount":    c.AverageAmount.String(),
			"amountRange":      c.AmountRange,
			"timeWindowHours":  c.TimeWindowHours,
			"firstTransaction": formatTime(c.FirstTransaction),
			"lastTransaction":  formatTime(c.LastTransaction),
			"suspicionScore":   c.SuspicionScore,
			"detectedAt":       formatTime(r.nowFn()),
		},
	}
	if _, err := r.client.ExecuteWrite(ctx, saveCaseCypher, params); err != nil {
		return fmt.Errorf("save case %s: %w", params["caseId"], err)
	}
	return nil
}

// SaveCommunity replaces the stored membership of c.
func (r *Repository) SaveCommunity(ctx context.Context, c domain.Community) error {
	if c.ID == "" {
		return errors.New("community id is required")
	}
	params := map[string]any{
		"communityId": c.ID,
		"members":     c.Members,
	}
	if _, err := r.client.ExecuteWrite(ctx, saveCommunityCypher, params); err != nil {
		return fmt.Errorf("save community %s: %w", c.ID, err)
	}
	return nil
}

// LoadCommunities reads stored community memberships. It returns
// domain.ErrCommunitiesNotFound when the database holds none.
func (r *Repository) LoadCommunities(ctx context.Context) (community.Map, error) {
	res, err := r.client.ExecuteRead(ctx, loadCommunitiesCypher, nil)
	if err != nil {
		return nil, fmt.Errorf("load communities query: %w", err)
	}
	if len(res.Records) == 0 {
		return nil, domain.ErrCommunitiesNotFound
	}

	m := make(community.Map, len(res.Records))
	for _, record := range res.Records {
		id := toString(record["communityId"])
		if id == "" {
			continue
		}
		m[id] = domain.Community{ID: id, Members: toStrings(record["members"])}
	}
	return m, nil
}

// CaseID identifies a case by community, pattern and principal so repeated
// projections update rather than duplicate it.
func CaseID(communityID string, c domain.DetectionCase) string {
	return fmt.Sprintf("%s:%s:%s", communityID, c.Pattern, c.Principal)
}

func nodeProperties(n domain.Node, now time.Time) map[string]any {
	props := map[string]any{
		"updatedAt": formatTime(now),
	}
	switch n.Kind {
	case domain.NodeAccount:
		props["bankLocation"] = n.BankLocation
	case domain.NodeMerchant:
		props["highRisk"] = n.HighRisk
	}
	return props
}

func transferProperties(e domain.Edge, now time.Time) map[string]any {
	return map[string]any{
		"transactionId":    e.TransactionID,
		"amount":           e.Amount.String(),
		"timestamp":        formatTime(e.Timestamp),
		"secondsSincePrev": e.SecondsSincePrev,
		"paymentType":      e.PaymentType,
		"updatedAt":        formatTime(now),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func toString(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case []byte:
		return string(v)
	case int64:
		return fmt.Sprintf("%d", v)
	case int:
		return fmt.Sprintf("%d", v)
	default:
		return ""
	}
}

func toStrings(val any) []string {
	switch v := val.(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s := toString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}

var constraintStatements = []string{
	`CREATE CONSTRAINT party_id IF NOT EXISTS FOR (p:Party) REQUIRE p.id IS UNIQUE`,
	`CREATE CONSTRAINT community_id IF NOT EXISTS FOR (c:Community) REQUIRE c.communityId IS UNIQUE`,
	`CREATE CONSTRAINT case_id IF NOT EXISTS FOR (c:DetectionCase) REQUIRE c.caseId IS UNIQUE`,
}

const upsertAccountCypher = `
MERGE (p:Party {id: $id})
SET p:Account
SET p += $props
RETURN p.id AS id
`

const upsertMerchantCypher = `
MERGE (p:Party {id: $id})
SET p:Merchant
SET p += $props
RETURN p.id AS id
`

const upsertTransferCypher = `
MERGE (s:Party {id: $senderId})
SET s:Account
MERGE (r:Party {id: $receiverId})
SET r:Merchant
MERGE (s)-[t:TRANSFERRED_TO]->(r)
SET t += $props
RETURN s.id AS senderId, r.id AS receiverId
`

const saveCaseCypher = `
MERGE (c:DetectionCase {caseId: $caseId})
SET c += $props
WITH c
MERGE (p:Party {id: $principalId})
MERGE (p)-[:FLAGGED_IN]->(c)
WITH c
FOREACH (cp IN $counterparties |
	MERGE (o:Party {id: cp})
	MERGE (o)-[:INVOLVED_IN]->(c)
)
RETURN c.caseId AS caseId
`

const saveCommunityCypher = `
MERGE (c:Community {communityId: $communityId})
WITH c
OPTIONAL MATCH (c)<-[old:MEMBER_OF]-()
DELETE old
WITH DISTINCT c
FOREACH (member IN $members |
	MERGE (p:Party {id: member})
	MERGE (p)-[:MEMBER_OF]->(c)
)
RETURN c.communityId AS communityId
`

const loadCommunitiesCypher = `
MATCH (c:Community)<-[:MEMBER_OF]-(p:Party)
WITH c, p
ORDER BY p.id
RETURN c.communityId AS communityId, collect(p.id) AS members
ORDER BY communityId
`
