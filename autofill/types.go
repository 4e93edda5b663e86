// CLAUDE:SUMMARY Re-exports internal types (tags, memory entries, tier stats, filled records) for external callers.
package autofill

import (
	"github.com/hazyhaar/autofill/autofill/internal/field"
	"github.com/hazyhaar/autofill/autofill/internal/inventory"
	"github.com/hazyhaar/autofill/autofill/internal/resolve"
	"github.com/hazyhaar/autofill/autofill/internal/store"
	"github.com/hazyhaar/autofill/autofill/internal/writer"
)

// Re-exported types from internal packages for use by cmd/ and external callers.
type (
	Tag           = field.Tag
	Skipped       = inventory.Skipped
	Inventory     = inventory.Inventory
	MemoryEntry   = store.MemoryEntry
	Filled        = writer.Filled
	ResolveConfig = resolve.Config
	RemoteRequest = resolve.RemoteRequest
	RemoteField   = resolve.RemoteField
)

// FieldInfo is the external view of one scanned field.
type FieldInfo struct {
	FieldID    string `json:"field_id"`
	Label      string `json:"label"`
	Type       string `json:"type"`
	Name       string `json:"name,omitempty"`
	ID         string `json:"id,omitempty"`
	Category   string `json:"category"`
	Personal   string `json:"personal,omitempty"`
	Experience *Tag   `json:"experience,omitempty"`
	Project    *Tag   `json:"project,omitempty"`
	License    *Tag   `json:"license,omitempty"`
}
