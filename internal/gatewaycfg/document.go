// Package gatewaycfg owns the gateway's JSON configuration document and the
// environment-driven reconciliation that patches it on every boot.
//
// The document is kept as a plain JSON tree rather than typed structs: the
// gateway and its onboarding wizard write sections this orchestrator knows
// nothing about, and reconciliation must never lose them.
package gatewaycfg

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/rs/zerolog"

	"clawboot/internal/fsutil"
)

// Document is the gateway configuration tree.
type Document map[string]any

// Load reads the document at path. A missing or unparsable file yields an
// empty document, never an error: reconciliation rebuilds what it can and
// the gateway owns the rest.
func Load(path string, log zerolog.Logger) Document {
	blob, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", path).Msg("config unreadable, starting from empty document")
		}
		return Document{}
	}
	var doc Document
	if err := json.Unmarshal(blob, &doc); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("config unparsable, starting from empty document")
		return Document{}
	}
	if doc == nil {
		return Document{}
	}
	return doc
}

// Save serializes the document with stable 2-space indentation and writes
// it atomically, so a concurrent reader never observes a torn file.
func Save(path string, doc Document) error {
	blob, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return fsutil.AtomicWrite(path, append(blob, '\n'), 0o644)
}

// section walks the nested maps named by keys, creating (or replacing a
// non-map value with) an empty object at each level. Reconciliation never
// writes through a missing parent.
func (d Document) section(keys ...string) map[string]any {
	current := map[string]any(d)
	for _, key := range keys {
		next, ok := current[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[key] = next
		}
		current = next
	}
	return current
}

func deepCopy(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, elem := range v {
			out[key] = deepCopy(elem)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = deepCopy(elem)
		}
		return out
	default:
		return v
	}
}
