package resolution

// ValidationResult reports every problem found in a manifest in one pass,
// mirroring the registry-validation surface's Errors/Warnings split: a
// manifest with Errors cannot be resolved, one with only Warnings can.
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationIssue
	Warnings []ValidationIssue
}

// ValidationIssue names the field and problem, without the line/offset
// metadata an XML validator tracks - manifests are YAML and short enough
// that naming the source/tool key is locating enough.
type ValidationIssue struct {
	Field   string
	Message string
}

// ValidateManifest checks manifest structure and every spec string/mapping
// without touching the catalog: required project fields, and that each
// source and tool entry parses. Catalog-dependent problems (an org that
// doesn't exist, a version that was never ingested) surface later as
// Resolve errors, since those require a DB round trip per entry.
func ValidateManifest(m *Manifest) ValidationResult {
	result := ValidationResult{Valid: true}

	if m.Project.Name == "" {
		result.Errors = append(result.Errors, ValidationIssue{Field: "project.name", Message: "required"})
	}
	if m.Project.Version == "" {
		result.Errors = append(result.Errors, ValidationIssue{Field: "project.version", Message: "required"})
	}
	if len(m.Sources) == 0 {
		result.Warnings = append(result.Warnings, ValidationIssue{Field: "sources", Message: "manifest names no sources"})
	}

	for key, node := range m.Sources {
		if _, err := ParseSpec(node); err != nil {
			result.Errors = append(result.Errors, ValidationIssue{Field: "sources." + key, Message: err.Error()})
		}
	}
	for key, version := range m.Tools {
		if version == "" {
			result.Errors = append(result.Errors, ValidationIssue{Field: "tools." + key, Message: "version required"})
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}
