package tagstore

import (
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). Every entity here is
// flat, so fields map one-to-one; the only non-string fields are the tag's
// has_value flag and the masterlist timestamp.

// AssetToHash converts an Asset to Redis hash format.
func AssetToHash(a *Asset) map[string]interface{} {
	return map[string]interface{}{
		"id":   a.ID,
		"name": a.Name,
		"type": a.Type,
	}
}

// HashToAsset converts a Redis hash to an Asset.
func HashToAsset(hash map[string]string) *Asset {
	return &Asset{
		ID:   hash["id"],
		Name: hash["name"],
		Type: hash["type"],
	}
}

// SubgroupToHash converts a Subgroup to Redis hash format.
func SubgroupToHash(s *Subgroup) map[string]interface{} {
	return map[string]interface{}{
		"id":       s.ID,
		"asset_id": s.AssetID,
		"name":     s.Name,
	}
}

// HashToSubgroup converts a Redis hash to a Subgroup.
func HashToSubgroup(hash map[string]string) *Subgroup {
	return &Subgroup{
		ID:      hash["id"],
		AssetID: hash["asset_id"],
		Name:    hash["name"],
	}
}

// MasterlistToHash converts a Masterlist to Redis hash format.
func MasterlistToHash(m *Masterlist) map[string]interface{} {
	return map[string]interface{}{
		"id":            m.ID,
		"file_name":     m.FileName,
		"created_at_ms": m.CreatedAtMs,
	}
}

// HashToMasterlist converts a Redis hash to a Masterlist.
func HashToMasterlist(hash map[string]string) *Masterlist {
	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)
	return &Masterlist{
		ID:          hash["id"],
		FileName:    hash["file_name"],
		CreatedAtMs: createdAtMs,
	}
}

// MasterTagToHash converts a MasterTag to Redis hash format.
func MasterTagToHash(mt *MasterTag) map[string]interface{} {
	return map[string]interface{}{
		"id":      mt.ID,
		"file_id": mt.FileID,
		"name":    mt.Name,
		"type":    mt.Type,
		"data":    mt.Data,
	}
}

// HashToMasterTag converts a Redis hash to a MasterTag.
func HashToMasterTag(hash map[string]string) *MasterTag {
	return &MasterTag{
		ID:     hash["id"],
		FileID: hash["file_id"],
		Name:   hash["name"],
		Type:   hash["type"],
		Data:   hash["data"],
	}
}

// FormulaToHash converts a Formula to Redis hash format.
func FormulaToHash(f *Formula) map[string]interface{} {
	return map[string]interface{}{
		"id":         f.ID,
		"name":       f.Name,
		"desc":       f.Desc,
		"expression": f.Expression,
	}
}

// HashToFormula converts a Redis hash to a Formula.
func HashToFormula(hash map[string]string) *Formula {
	return &Formula{
		ID:         hash["id"],
		Name:       hash["name"],
		Desc:       hash["desc"],
		Expression: hash["expression"],
	}
}

// VariableToHash converts a Variable to Redis hash format.
func VariableToHash(v *Variable) map[string]interface{} {
	return map[string]interface{}{
		"id":         v.ID,
		"formula_id": v.FormulaID,
		"name":       v.Name,
	}
}

// HashToVariable converts a Redis hash to a Variable.
func HashToVariable(hash map[string]string) *Variable {
	return &Variable{
		ID:        hash["id"],
		FormulaID: hash["formula_id"],
		Name:      hash["name"],
	}
}

// TagToHash converts a Tag to Redis hash format.
func TagToHash(t *Tag) map[string]interface{} {
	return map[string]interface{}{
		"id":            t.ID,
		"subgroup_id":   t.SubgroupID,
		"parent_id":     t.ParentID,
		"name":          t.Name,
		"master_tag_id": t.MasterTagID,
		"formula_id":    t.FormulaID,
		"value":         t.Value,
		"has_value":     t.HasValue,
		"kind":          string(t.Kind),
	}
}

// HashToTag converts a Redis hash to a Tag.
func HashToTag(hash map[string]string) *Tag {
	hasValue, _ := strconv.ParseBool(hash["has_value"])
	return &Tag{
		ID:          hash["id"],
		SubgroupID:  hash["subgroup_id"],
		ParentID:    hash["parent_id"],
		Name:        hash["name"],
		MasterTagID: hash["master_tag_id"],
		FormulaID:   hash["formula_id"],
		Value:       hash["value"],
		HasValue:    hasValue,
		Kind:        TagKind(hash["kind"]),
	}
}

// BindingToHash converts a Binding to Redis hash format.
func BindingToHash(b *Binding) map[string]interface{} {
	return map[string]interface{}{
		"id":             b.ID,
		"variable_id":    b.VariableID,
		"target_tag_id":  b.TargetTagID,
		"context_tag_id": b.ContextTagID,
	}
}

// HashToBinding converts a Redis hash to a Binding.
func HashToBinding(hash map[string]string) *Binding {
	return &Binding{
		ID:           hash["id"],
		VariableID:   hash["variable_id"],
		TargetTagID:  hash["target_tag_id"],
		ContextTagID: hash["context_tag_id"],
	}
}

// TemplateToHash converts a Template to Redis hash format.
func TemplateToHash(t *Template) map[string]interface{} {
	return map[string]interface{}{
		"id":                   t.ID,
		"name":                 t.Name,
		"formula_id":           t.FormulaID,
		"source_formula_id":    t.SourceFormulaID,
		"context_tag_id":       t.ContextTagID,
		"captured_from_tag_id": t.CapturedFromTagID,
	}
}

// HashToTemplate converts a Redis hash to a Template.
func HashToTemplate(hash map[string]string) *Template {
	return &Template{
		ID:                hash["id"],
		Name:              hash["name"],
		FormulaID:         hash["formula_id"],
		SourceFormulaID:   hash["source_formula_id"],
		ContextTagID:      hash["context_tag_id"],
		CapturedFromTagID: hash["captured_from_tag_id"],
	}
}
