package tagstore

import (
	"fmt"

	"github.com/google/uuid"
)

// Asset represents a piece of equipment that owns subgroups.
type Asset struct {
	ID   string `json:"id"`   // UUID
	Name string `json:"name"` // Display name
	Type string `json:"type"` // Free-form equipment type
}

// Subgroup represents a section of an asset that anchors root tags.
type Subgroup struct {
	ID      string `json:"id"`       // UUID
	AssetID string `json:"asset_id"` // Owning asset UUID
	Name    string `json:"name"`
}

// Masterlist records one ingested tag catalogue file.
type Masterlist struct {
	ID          string `json:"id"`        // UUID
	FileName    string `json:"file_name"` // Original file name as uploaded
	CreatedAtMs int64  `json:"created_at_ms"`
}

// MasterTag is one catalogue entry from a masterlist file. Hierarchy tags
// may reference a master tag as their base type; those references are
// shared, never cloned.
type MasterTag struct {
	ID     string `json:"id"`      // UUID
	FileID string `json:"file_id"` // Owning masterlist UUID
	Name   string `json:"name"`
	Type   string `json:"type"` // Catalogue type, "default" for plain rows
	Data   string `json:"data"` // Optional JSON payload carried through unparsed
}

// Formula owns an expression and, by derivation, its variable set.
// The variable set is always exactly the distinct $identifier tokens in
// Expression; every expression write re-derives and reconciles it.
type Formula struct {
	ID         string `json:"id"` // UUID
	Name       string `json:"name"`
	Desc       string `json:"desc,omitempty"`
	Expression string `json:"expression"`
}

// Variable is one free variable of a formula, stored without the $ marker.
type Variable struct {
	ID        string `json:"id"`         // UUID
	FormulaID string `json:"formula_id"` // Owning formula UUID
	Name      string `json:"name"`       // Token name without the $ marker
}

// TagKind distinguishes normal hierarchy tags from template context tags.
type TagKind string

const (
	// TagKindStandard is a normal hierarchy tag, anchored to a subgroup
	// (root) or a parent tag (child).
	TagKindStandard TagKind = "standard"

	// TagKindTemplateContext is a detached tag that exists only to anchor a
	// template's default bindings. It has neither subgroup nor parent and
	// never appears in subgroup listings.
	TagKindTemplateContext TagKind = "template-context"
)

// Tag is a named node in the measurement hierarchy. Exactly one of
// SubgroupID and ParentID is set for standard tags; template context tags
// have neither.
type Tag struct {
	ID          string  `json:"id"`                     // UUID
	SubgroupID  string  `json:"subgroup_id,omitempty"`  // Set only for root tags
	ParentID    string  `json:"parent_id,omitempty"`    // Set only for child tags
	Name        string  `json:"name"`                   // Display name
	MasterTagID string  `json:"master_tag_id,omitempty"` // Optional base type from the catalogue
	FormulaID   string  `json:"formula_id,omitempty"`   // Optional computed formula
	Value       string  `json:"value,omitempty"`        // Scalar value, string-encoded
	HasValue    bool    `json:"has_value"`              // Distinguishes unset from empty string
	Kind        TagKind `json:"kind"`
}

// Binding assigns "variable X, under context tag C, resolves to the value
// of tag T". At most one binding exists per (VariableID, ContextTagID).
type Binding struct {
	ID           string `json:"id"`             // UUID
	VariableID   string `json:"variable_id"`    // The variable being bound
	TargetTagID  string `json:"target_tag_id"`  // The tag supplying the value
	ContextTagID string `json:"context_tag_id"` // The tag at which this binding applies
}

// Template is a reusable (formula + variables + default bindings) package.
// Its formula is a private copy of the source formula, never the original.
// CapturedFromTagID records which tag structure the template was captured
// from; the propagation engine uses it to find the sub-tree to clone.
type Template struct {
	ID                string `json:"id"`         // UUID
	Name              string `json:"name"`
	FormulaID         string `json:"formula_id"` // Private formula copy
	SourceFormulaID   string `json:"source_formula_id"`
	ContextTagID      string `json:"context_tag_id"`                 // Template context placeholder tag
	CapturedFromTagID string `json:"captured_from_tag_id,omitempty"` // Origin root; empty when captured unscoped
}

// Validate checks if the Asset has valid field values.
func (a *Asset) Validate() error {
	if !isValidUUID(a.ID) {
		return fmt.Errorf("invalid asset ID: not a valid UUID")
	}
	if a.Name == "" {
		return fmt.Errorf("asset name cannot be empty")
	}
	if a.Type == "" {
		return fmt.Errorf("asset type cannot be empty")
	}
	return nil
}

// Validate checks if the Subgroup has valid field values.
func (s *Subgroup) Validate() error {
	if !isValidUUID(s.ID) {
		return fmt.Errorf("invalid subgroup ID: not a valid UUID")
	}
	if !isValidUUID(s.AssetID) {
		return fmt.Errorf("invalid asset ID: not a valid UUID")
	}
	if s.Name == "" {
		return fmt.Errorf("subgroup name cannot be empty")
	}
	return nil
}

// Validate checks if the Masterlist has valid field values.
func (m *Masterlist) Validate() error {
	if !isValidUUID(m.ID) {
		return fmt.Errorf("invalid masterlist ID: not a valid UUID")
	}
	if m.FileName == "" {
		return fmt.Errorf("masterlist file name cannot be empty")
	}
	return nil
}

// Validate checks if the MasterTag has valid field values.
func (mt *MasterTag) Validate() error {
	if !isValidUUID(mt.ID) {
		return fmt.Errorf("invalid master tag ID: not a valid UUID")
	}
	if !isValidUUID(mt.FileID) {
		return fmt.Errorf("invalid masterlist ID: not a valid UUID")
	}
	if mt.Name == "" {
		return fmt.Errorf("master tag name cannot be empty")
	}
	return nil
}

// Validate checks if the Formula has valid field values.
func (f *Formula) Validate() error {
	if !isValidUUID(f.ID) {
		return fmt.Errorf("invalid formula ID: not a valid UUID")
	}
	if f.Name == "" {
		return fmt.Errorf("formula name cannot be empty")
	}
	if f.Expression == "" {
		return fmt.Errorf("formula expression cannot be empty")
	}
	return nil
}

// Validate checks if the Variable has valid field values.
func (v *Variable) Validate() error {
	if !isValidUUID(v.ID) {
		return fmt.Errorf("invalid variable ID: not a valid UUID")
	}
	if !isValidUUID(v.FormulaID) {
		return fmt.Errorf("invalid formula ID: not a valid UUID")
	}
	if v.Name == "" {
		return fmt.Errorf("variable name cannot be empty")
	}
	return nil
}

// Validate checks if the TagKind is a valid enum value.
func (k TagKind) Validate() error {
	switch k {
	case TagKindStandard, TagKindTemplateContext:
		return nil
	default:
		return fmt.Errorf("unknown tag kind: %q", k)
	}
}

// Validate checks if the Tag has valid field values, including the
// one-of-{subgroup,parent} anchoring invariant.
func (t *Tag) Validate() error {
	if !isValidUUID(t.ID) {
		return fmt.Errorf("invalid tag ID: not a valid UUID")
	}
	if t.Name == "" {
		return fmt.Errorf("tag name cannot be empty")
	}
	if err := t.Kind.Validate(); err != nil {
		return err
	}

	switch t.Kind {
	case TagKindStandard:
		if (t.SubgroupID == "") == (t.ParentID == "") {
			return fmt.Errorf("%w: a standard tag must be anchored to exactly one of subgroup or parent", ErrConflict)
		}
	case TagKindTemplateContext:
		if t.SubgroupID != "" || t.ParentID != "" {
			return fmt.Errorf("%w: a template context tag cannot be anchored", ErrConflict)
		}
	}

	if t.SubgroupID != "" && !isValidUUID(t.SubgroupID) {
		return fmt.Errorf("invalid subgroup ID: not a valid UUID")
	}
	if t.ParentID != "" && !isValidUUID(t.ParentID) {
		return fmt.Errorf("invalid parent tag ID: not a valid UUID")
	}
	if t.FormulaID != "" && !isValidUUID(t.FormulaID) {
		return fmt.Errorf("invalid formula ID: not a valid UUID")
	}
	if t.MasterTagID != "" && !isValidUUID(t.MasterTagID) {
		return fmt.Errorf("invalid master tag ID: not a valid UUID")
	}
	return nil
}

// Validate checks if the Binding has valid field values.
func (b *Binding) Validate() error {
	if !isValidUUID(b.ID) {
		return fmt.Errorf("invalid binding ID: not a valid UUID")
	}
	if !isValidUUID(b.VariableID) {
		return fmt.Errorf("invalid variable ID: not a valid UUID")
	}
	if !isValidUUID(b.TargetTagID) {
		return fmt.Errorf("invalid target tag ID: not a valid UUID")
	}
	if !isValidUUID(b.ContextTagID) {
		return fmt.Errorf("invalid context tag ID: not a valid UUID")
	}
	return nil
}

// Validate checks if the Template has valid field values.
func (t *Template) Validate() error {
	if !isValidUUID(t.ID) {
		return fmt.Errorf("invalid template ID: not a valid UUID")
	}
	if t.Name == "" {
		return fmt.Errorf("template name cannot be empty")
	}
	if !isValidUUID(t.FormulaID) {
		return fmt.Errorf("invalid formula ID: not a valid UUID")
	}
	if !isValidUUID(t.SourceFormulaID) {
		return fmt.Errorf("invalid source formula ID: not a valid UUID")
	}
	if !isValidUUID(t.ContextTagID) {
		return fmt.Errorf("invalid context tag ID: not a valid UUID")
	}
	if t.CapturedFromTagID != "" && !isValidUUID(t.CapturedFromTagID) {
		return fmt.Errorf("invalid captured-from tag ID: not a valid UUID")
	}
	return nil
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// NewID returns a fresh entity identifier.
func NewID() string {
	return uuid.New().String()
}
