package domain

// Community is a named group of account and merchant identifiers that
// scopes pattern detection.
type Community struct {
	ID      string   `json:"id" yaml:"id"`
	Members []string `json:"Members" yaml:"Members"`
}
