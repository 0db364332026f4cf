package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Identity is the name and date of birth read from an identity document.
type Identity struct {
	Name string `json:"name"`
	DOB  string `json:"dob"`
}

// IdentityExtractor reads an identity document image and returns the
// collaborator's raw textual answer, expected to be an Identity in JSON.
type IdentityExtractor interface {
	Extract(ctx context.Context, image []byte, contentType string) (string, error)
}

// ExtractionError reports an unusable extractor response.
type ExtractionError struct {
	Reason string
	Raw    string
}

func (e *ExtractionError) Error() string {
	return "identity extraction: " + e.Reason
}

const dobLayout = "2006-01-02"

// ParseIdentity validates an extractor response. Markdown code fences
// around the JSON are tolerated.
func ParseIdentity(text string) (Identity, error) {
	raw := text
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	if text == "" {
		return Identity{}, &ExtractionError{Reason: "empty response", Raw: raw}
	}

	var id Identity
	if err := json.Unmarshal([]byte(text), &id); err != nil {
		return Identity{}, &ExtractionError{Reason: fmt.Sprintf("invalid response format: %v", err), Raw: raw}
	}
	id.Name = strings.TrimSpace(id.Name)
	id.DOB = strings.TrimSpace(id.DOB)
	if id.Name == "" {
		return Identity{}, &ExtractionError{Reason: "missing name", Raw: raw}
	}
	if _, err := time.Parse(dobLayout, id.DOB); err != nil {
		return Identity{}, &ExtractionError{Reason: "dob must be YYYY-MM-DD", Raw: raw}
	}
	return id, nil
}
