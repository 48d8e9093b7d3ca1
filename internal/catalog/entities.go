package catalog

import (
	"strconv"
	"time"
)

// Organization is the top-level owner of a versioning policy. Created at
// bootstrap, never destroyed.
type Organization struct {
	ID                 string
	Slug               string
	Name               string
	VersioningStrategy VersioningStrategy
	License            string
	CitationPolicy     string
	CreatedAt          time.Time
}

// VersioningStrategy is an organization's policy for classifying upstream
// changes into MAJOR/MINOR bumps and cascading them (spec §4.4.2).
type VersioningStrategy struct {
	MajorTriggers  []ChangeTrigger `json:"major_triggers"`
	MinorTriggers  []ChangeTrigger `json:"minor_triggers"`
	DefaultBump    string          `json:"default_bump"` // "major" | "minor"
	CascadeOnMajor bool            `json:"cascade_on_major"`
	CascadeOnMinor bool            `json:"cascade_on_minor"`
}

// ChangeTrigger matches a Change against a bump classification rule.
type ChangeTrigger struct {
	ChangeType  string `json:"change_type"` // added | removed | modified
	Category    string `json:"category"`
	Description string `json:"description"`
}

// EntryKind distinguishes a data source from a tool.
type EntryKind string

const (
	EntryKindDataSource EntryKind = "data_source"
	EntryKindTool       EntryKind = "tool"
)

// RegistryEntry is the append-only base record for a data source or tool.
type RegistryEntry struct {
	ID             string
	OrganizationID string
	Slug           string
	Kind           EntryKind
	Deprecated     bool
	SupersededBy   *string
	CreatedAt      time.Time
}

// SourceType enumerates the specializations a Data Source may take.
type SourceType string

const (
	SourceTypeProtein         SourceType = "protein"
	SourceTypeTaxonomy        SourceType = "taxonomy"
	SourceTypeGenomicSequence SourceType = "genomic_sequence"
	SourceTypeGOTerm          SourceType = "go_term"
	SourceTypeInterProEntry   SourceType = "interpro_entry"
	SourceTypeOrganism        SourceType = "organism"
	SourceTypeBundle          SourceType = "bundle"
)

// DataSource specializes a RegistryEntry with its source type.
type DataSource struct {
	EntryID    string
	SourceType SourceType
	ExternalID string
}

// Version is an immutable internal MAJOR.MINOR release of an entry.
type Version struct {
	ID               string
	EntryID          string
	Major            int
	Minor            int
	ExternalVersion  string
	ReleaseDate      time.Time
	SizeBytes        int64
	DependencyCount  int
	CreatedAt        time.Time
}

// String renders the version as spec §6's MAJOR.MINOR internal-version
// string. Patch is structurally absent: the column exists only to satisfy
// a historical constraint and is never represented here.
func (v Version) String() string {
	return strconv.Itoa(v.Major) + "." + strconv.Itoa(v.Minor)
}

// VersionFile is a per-format persistable artifact attached to a Version.
type VersionFile struct {
	ID          string
	VersionID   string
	Format      string
	BlobKey     string
	Checksum    string // SHA-256 hex lowercase
	SizeBytes   int64
	Compression string
}

// DependencyKind distinguishes a required dependency from an optional one.
type DependencyKind string

const (
	DependencyRequired DependencyKind = "required"
	DependencyOptional DependencyKind = "optional"
)

// Dependency pins a Version's reference to another entry's exact version.
type Dependency struct {
	ID                  string
	VersionID           string
	DependsOnEntryID    string
	DependsOnVersionID  string
	Kind                DependencyKind
}

// Citation attaches bibliographic text to an Entry or Version.
type Citation struct {
	ID        string
	EntryID   *string
	VersionID *string
	Text      string
	URL       string
}

// License attaches license text/identifier to an Entry or Version.
type License struct {
	ID        string
	EntryID   *string
	VersionID *string
	SPDXID    string
	Text      string
}
