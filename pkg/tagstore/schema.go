package tagstore

import "fmt"

// Redis key pattern helpers
//
// All Redis keys are namespaced by instance name to enable multiple grove
// instances to safely coexist on a single Redis server.
//
// Entity pattern: grove:{instance}:{entity}:{uuid}
// Index pattern:  grove:{instance}:{entity}:{uuid}:{relation}

// AssetKey returns the Redis key for an asset hash.
func AssetKey(instance, assetID string) string {
	return fmt.Sprintf("grove:%s:asset:%s", instance, assetID)
}

// AssetsKey returns the Redis key for the set of all asset IDs.
func AssetsKey(instance string) string {
	return fmt.Sprintf("grove:%s:assets", instance)
}

// AssetSubgroupsKey returns the Redis key for an asset's subgroup ID set.
func AssetSubgroupsKey(instance, assetID string) string {
	return fmt.Sprintf("grove:%s:asset:%s:subgroups", instance, assetID)
}

// SubgroupKey returns the Redis key for a subgroup hash.
func SubgroupKey(instance, subgroupID string) string {
	return fmt.Sprintf("grove:%s:subgroup:%s", instance, subgroupID)
}

// SubgroupTagsKey returns the Redis key for a subgroup's root tag ID set.
// Only root tags appear here; children hang off TagChildrenKey and template
// context tags are never indexed under a subgroup.
func SubgroupTagsKey(instance, subgroupID string) string {
	return fmt.Sprintf("grove:%s:subgroup:%s:tags", instance, subgroupID)
}

// SubgroupTemplatesKey returns the Redis key for the set of template IDs
// assigned into a subgroup. Listing only; carries no propagation semantics.
func SubgroupTemplatesKey(instance, subgroupID string) string {
	return fmt.Sprintf("grove:%s:subgroup:%s:templates", instance, subgroupID)
}

// MasterlistKey returns the Redis key for a masterlist hash.
func MasterlistKey(instance, fileID string) string {
	return fmt.Sprintf("grove:%s:masterlist:%s", instance, fileID)
}

// MasterlistsKey returns the Redis key for the set of all masterlist IDs.
func MasterlistsKey(instance string) string {
	return fmt.Sprintf("grove:%s:masterlists", instance)
}

// MasterlistTagsKey returns the Redis key for a masterlist's tag ID set.
func MasterlistTagsKey(instance, fileID string) string {
	return fmt.Sprintf("grove:%s:masterlist:%s:tags", instance, fileID)
}

// MasterTagKey returns the Redis key for a master tag hash.
func MasterTagKey(instance, masterTagID string) string {
	return fmt.Sprintf("grove:%s:mastertag:%s", instance, masterTagID)
}

// FormulaKey returns the Redis key for a formula hash.
func FormulaKey(instance, formulaID string) string {
	return fmt.Sprintf("grove:%s:formula:%s", instance, formulaID)
}

// FormulasKey returns the Redis key for the set of all formula IDs.
func FormulasKey(instance string) string {
	return fmt.Sprintf("grove:%s:formulas", instance)
}

// FormulaVariablesKey returns the Redis key for a formula's variable ID set.
func FormulaVariablesKey(instance, formulaID string) string {
	return fmt.Sprintf("grove:%s:formula:%s:variables", instance, formulaID)
}

// FormulaTemplatesKey returns the Redis key for the set of template IDs
// whose private formula copy is this formula. Used to block formula
// deletion while templates still reference it.
func FormulaTemplatesKey(instance, formulaID string) string {
	return fmt.Sprintf("grove:%s:formula:%s:templates", instance, formulaID)
}

// VariableKey returns the Redis key for a variable hash.
func VariableKey(instance, variableID string) string {
	return fmt.Sprintf("grove:%s:variable:%s", instance, variableID)
}

// VariableBindingsKey returns the Redis key for a variable's binding ID set
// across all contexts.
func VariableBindingsKey(instance, variableID string) string {
	return fmt.Sprintf("grove:%s:variable:%s:bindings", instance, variableID)
}

// TagKey returns the Redis key for a tag hash.
func TagKey(instance, tagID string) string {
	return fmt.Sprintf("grove:%s:tag:%s", instance, tagID)
}

// TagChildrenKey returns the Redis key for a tag's child tag ID set.
func TagChildrenKey(instance, tagID string) string {
	return fmt.Sprintf("grove:%s:tag:%s:children", instance, tagID)
}

// TagBindingsKey returns the Redis key for a tag's context-binding index:
// a hash mapping variable ID to binding ID. The hash structure is what
// enforces at-most-one binding per (variable, context) pair.
func TagBindingsKey(instance, tagID string) string {
	return fmt.Sprintf("grove:%s:tag:%s:bindings", instance, tagID)
}

// TagBoundByKey returns the Redis key for the set of binding IDs whose
// target is this tag. The propagation engine reads it when rewiring a
// cloned sub-tree.
func TagBoundByKey(instance, tagID string) string {
	return fmt.Sprintf("grove:%s:tag:%s:bound_by", instance, tagID)
}

// BindingKey returns the Redis key for a binding hash.
func BindingKey(instance, bindingID string) string {
	return fmt.Sprintf("grove:%s:binding:%s", instance, bindingID)
}

// TemplateKey returns the Redis key for a template hash.
func TemplateKey(instance, templateID string) string {
	return fmt.Sprintf("grove:%s:template:%s", instance, templateID)
}

// TemplatesKey returns the Redis key for the set of all template IDs.
func TemplatesKey(instance string) string {
	return fmt.Sprintf("grove:%s:templates", instance)
}

// TemplateSubgroupsKey returns the Redis key for the reverse side of the
// subgroup↔template association: the subgroup IDs a template has been
// assigned into. Needed to clean up associations when a template is deleted.
func TemplateSubgroupsKey(instance, templateID string) string {
	return fmt.Sprintf("grove:%s:template:%s:subgroups", instance, templateID)
}
