// Package resolution implements the Resolution Engine (spec §4.5): it
// parses a manifest naming sources and tools, walks the pinned dependency
// graph, detects version conflicts, and emits a checksummed lockfile.
package resolution

import (
	"regexp"

	bdperrors "github.com/nishad/bdp/internal/errors"
	"gopkg.in/yaml.v3"
)

// Manifest is the parsed textual manifest (spec §6): a project header, a
// set of named source specs, and a set of named tool versions.
type Manifest struct {
	Project ManifestProject         `yaml:"project"`
	Sources map[string]yaml.Node    `yaml:"sources"`
	Tools   map[string]string       `yaml:"tools"`
}

// ManifestProject is the manifest's required name/version header.
type ManifestProject struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// specPattern matches the simple source-spec string form:
// "{org}:{entry_slug}@{version}[-{format}]".
var specPattern = regexp.MustCompile(`^([a-zA-Z0-9_\-]+):([a-zA-Z0-9_\-]+)@([a-zA-Z0-9_\-.]+?)(?:-([a-zA-Z0-9_]+))?$`)

// Spec is a parsed, validated source/tool reference.
type Spec struct {
	Org     string
	Entry   string
	Version string // external label, an internal_version string, or "latest"
	Format  string // empty unless the structured/simple form names one
}

// ParseManifest decodes YAML bytes into a Manifest. It does not validate
// individual specs; call ParseSpec/ValidateManifest for that.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, bdperrors.WrapKind("resolution.ParseManifest", bdperrors.KindValidation, "decode manifest", err)
	}
	return &m, nil
}

// ParseSpec parses a single source/tool spec, either the simple string form
// or the structured {provider, identifier, version, options?} form. Malformed
// specs fail with KindValidation (spec §4.5 step 1: "InvalidSpec(text)").
func ParseSpec(node yaml.Node) (Spec, error) {
	if node.Kind == yaml.ScalarNode {
		return parseSimpleSpec(node.Value)
	}
	if node.Kind == yaml.MappingNode {
		return parseStructuredSpec(node)
	}
	return Spec{}, bdperrors.E("resolution.ParseSpec", bdperrors.KindValidation, "spec must be a string or a mapping")
}

func parseSimpleSpec(text string) (Spec, error) {
	m := specPattern.FindStringSubmatch(text)
	if m == nil {
		return Spec{}, bdperrors.E("resolution.parseSimpleSpec", bdperrors.KindValidation, "invalid spec: "+text)
	}
	return Spec{Org: m[1], Entry: m[2], Version: m[3], Format: m[4]}, nil
}

type structuredSpec struct {
	Provider   string `yaml:"provider"`
	Identifier string `yaml:"identifier"`
	Version    string `yaml:"version"`
	Format     string `yaml:"format"`
}

func parseStructuredSpec(node yaml.Node) (Spec, error) {
	var s structuredSpec
	if err := node.Decode(&s); err != nil {
		return Spec{}, bdperrors.WrapKind("resolution.parseStructuredSpec", bdperrors.KindValidation, "decode structured spec", err)
	}
	if s.Provider == "" || s.Identifier == "" || s.Version == "" {
		return Spec{}, bdperrors.E("resolution.parseStructuredSpec", bdperrors.KindValidation, "structured spec missing provider/identifier/version")
	}
	return Spec{Org: s.Provider, Entry: s.Identifier, Version: s.Version, Format: s.Format}, nil
}
