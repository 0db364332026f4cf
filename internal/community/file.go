package community

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vanshika/fintrace/amlwatch/internal/domain"
)

// wrapperKey is the envelope some exports put around the community map.
const wrapperKey = "fraud_communities"

type memberList struct {
	Members []any `json:"Members" yaml:"Members"`
}

// FileSource reads communities from a JSON or YAML file.
type FileSource struct {
	Path string
}

// LoadCommunities implements Source. A missing file or empty path reports
// domain.ErrCommunitiesNotFound.
func (s FileSource) LoadCommunities(_ context.Context) (Map, error) {
	if strings.TrimSpace(s.Path) == "" {
		return nil, domain.ErrCommunitiesNotFound
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrCommunitiesNotFound, s.Path)
		}
		return nil, fmt.Errorf("read %s: %w", s.Path, err)
	}

	switch strings.ToLower(filepath.Ext(s.Path)) {
	case ".yaml", ".yml":
		return DecodeYAML(data)
	default:
		return DecodeJSON(data)
	}
}

// DecodeJSON parses {"<id>": {"Members": [...]}}, optionally wrapped in
// {"fraud_communities": ...}. Members may be strings or numbers.
func DecodeJSON(data []byte) (Map, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decode communities: %w", err)
	}
	if inner, ok := root[wrapperKey]; ok {
		root = nil
		if err := json.Unmarshal(inner, &root); err != nil {
			return nil, fmt.Errorf("decode %s: %w", wrapperKey, err)
		}
	}

	raw := make(map[string]memberList, len(root))
	for id, msg := range root {
		var ml memberList
		if err := unmarshalJSON(msg, &ml); err != nil {
			return nil, fmt.Errorf("decode community %s: %w", id, err)
		}
		raw[id] = ml
	}
	return fromRaw(raw), nil
}

// unmarshalJSON keeps numeric members as json.Number so long card numbers
// survive without float rounding.
func unmarshalJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// DecodeYAML parses the YAML equivalent of DecodeJSON.
func DecodeYAML(data []byte) (Map, error) {
	var root map[string]yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decode communities: %w", err)
	}
	if inner, ok := root[wrapperKey]; ok {
		root = nil
		if err := inner.Decode(&root); err != nil {
			return nil, fmt.Errorf("decode %s: %w", wrapperKey, err)
		}
	}

	raw := make(map[string]memberList, len(root))
	for id, node := range root {
		var ml memberList
		if err := node.Decode(&ml); err != nil {
			return nil, fmt.Errorf("decode community %s: %w", id, err)
		}
		raw[id] = ml
	}
	return fromRaw(raw), nil
}

func fromRaw(raw map[string]memberList) Map {
	m := make(Map, len(raw))
	for id, ml := range raw {
		members := make([]string, 0, len(ml.Members))
		for _, v := range ml.Members {
			if s := memberString(v); s != "" {
				members = append(members, s)
			}
		}
		m[id] = domain.Community{ID: id, Members: members}
	}
	return m
}

func memberString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return fmt.Sprintf("%.0f", t)
	case int:
		return fmt.Sprintf("%d", t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
