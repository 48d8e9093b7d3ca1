package resolution

import (
	"strconv"
	"strings"
	"time"

	"github.com/nishad/bdp/internal/catalog"
	bdperrors "github.com/nishad/bdp/internal/errors"
)

// Default traversal guards (spec §4.5.3: DoS protection against cyclic or
// combinatorially exploding dependency graphs).
const (
	DefaultMaxDepthPerBranch = 100
	DefaultMaxTotalNodes     = 10000
)

// Conflict reports that two different specs (directly named, or pulled in
// transitively by two different dependents) pinned the same entry to two
// different versions (spec §4.5 step 5).
type Conflict struct {
	Entry    string   // "{org_slug}:{entry_slug}"
	Versions []string // internal_version strings, in the order first observed
}

// Resolver walks a manifest's sources against the catalog and produces a
// pinned Lockfile, or a Conflict/ResolutionTooLarge error.
type Resolver struct {
	DB               *catalog.DB
	MaxDepthPerBranch int
	MaxTotalNodes     int
}

// NewResolver returns a Resolver with the default traversal guards.
func NewResolver(db *catalog.DB) *Resolver {
	return &Resolver{DB: db, MaxDepthPerBranch: DefaultMaxDepthPerBranch, MaxTotalNodes: DefaultMaxTotalNodes}
}

// worklistItem is one pending (entry, requested version) pin to resolve,
// carrying its branch depth for the per-branch traversal limit.
type worklistItem struct {
	orgSlug   string
	entrySlug string
	spec      Spec
	depth     int
}

// pinned is the internal bookkeeping for one resolved entry: its pinned
// version plus the metadata needed to emit a lockfile package entry.
type pinned struct {
	entry   *catalog.RegistryEntry
	org     *catalog.Organization
	version *catalog.Version
}

// Resolve runs the manifest's 7-step resolution algorithm (spec §4.5):
// parse and validate every spec, seed a worklist, fetch and pin each
// entry's version, detect re-pin conflicts, and terminate when the
// worklist drains. It returns every Conflict encountered (resolution does
// not stop at the first one, so a manifest author sees the whole set) or,
// if none, a Lockfile ready to emit.
func (r *Resolver) Resolve(m *Manifest) (*Lockfile, []Conflict, error) {
	maxDepth := r.MaxDepthPerBranch
	if maxDepth == 0 {
		maxDepth = DefaultMaxDepthPerBranch
	}
	maxNodes := r.MaxTotalNodes
	if maxNodes == 0 {
		maxNodes = DefaultMaxTotalNodes
	}

	var worklist []worklistItem
	for _, node := range m.Sources {
		spec, err := ParseSpec(node)
		if err != nil {
			return nil, nil, err
		}
		worklist = append(worklist, worklistItem{orgSlug: spec.Org, entrySlug: spec.Entry, spec: spec, depth: 0})
	}

	pins := make(map[string]*pinned)   // "org:entry" -> resolved pin
	pinOrder := []string{}             // insertion order, for deterministic lockfile output
	conflictVersions := make(map[string][]string)
	visitedNodes := 0

	for len(worklist) > 0 {
		item := worklist[0]
		worklist = worklist[1:]

		visitedNodes++
		if visitedNodes > maxNodes {
			return nil, nil, bdperrors.E("resolution.Resolve", bdperrors.KindValidation,
				"resolution exceeded max total nodes ("+strconv.Itoa(maxNodes)+"): ResolutionTooLarge")
		}
		if item.depth > maxDepth {
			return nil, nil, bdperrors.E("resolution.Resolve", bdperrors.KindValidation,
				"resolution exceeded max depth per branch ("+strconv.Itoa(maxDepth)+"): ResolutionTooLarge")
		}

		key := item.orgSlug + ":" + item.entrySlug

		org, err := r.DB.GetOrganizationBySlug(item.orgSlug)
		if err != nil {
			return nil, nil, err
		}
		entry, err := r.DB.GetEntry(org.ID, item.entrySlug)
		if err != nil {
			return nil, nil, err
		}

		version, err := r.resolveVersion(entry, item.spec.Version)
		if err != nil {
			return nil, nil, err
		}

		if existing, ok := pins[key]; ok {
			if existing.version.ID != version.ID {
				if len(conflictVersions[key]) == 0 {
					conflictVersions[key] = []string{existing.version.String()}
				}
				conflictVersions[key] = append(conflictVersions[key], version.String())
			}
			continue // already expanded this entry's own dependencies once
		}

		pins[key] = &pinned{entry: entry, org: org, version: version}
		pinOrder = append(pinOrder, key)

		deps, err := r.DB.ListDependencies(version.ID)
		if err != nil {
			return nil, nil, err
		}
		for _, dep := range deps {
			depEntry, err := r.DB.GetEntryByID(dep.DependsOnEntryID)
			if err != nil {
				return nil, nil, err
			}
			depOrg, err := r.DB.GetOrganizationByID(depEntry.OrganizationID)
			if err != nil {
				return nil, nil, err
			}
			depVersion, err := r.DB.GetVersionByID(dep.DependsOnVersionID)
			if err != nil {
				return nil, nil, err
			}
			worklist = append(worklist, worklistItem{
				orgSlug:   depOrg.Slug,
				entrySlug: depEntry.Slug,
				spec:      Spec{Org: depOrg.Slug, Entry: depEntry.Slug, Version: depVersion.String()},
				depth:     item.depth + 1,
			})
		}
	}

	if len(conflictVersions) > 0 {
		var conflicts []Conflict
		for entry, versions := range conflictVersions {
			conflicts = append(conflicts, Conflict{Entry: entry, Versions: versions})
		}
		return nil, conflicts, nil
	}

	lf, err := r.buildLockfile(m, pins, pinOrder)
	if err != nil {
		return nil, nil, err
	}
	lf.ResolvedAt = time.Now().UTC().Format(time.RFC3339)
	return lf, nil, nil
}

// resolveVersion accepts "latest", an internal MAJOR.MINOR string, or an
// external_version label and returns the pinned catalog Version.
func (r *Resolver) resolveVersion(entry *catalog.RegistryEntry, requested string) (*catalog.Version, error) {
	if requested == "" || requested == "latest" {
		return r.DB.LatestVersion(entry.ID)
	}
	if major, minor, ok := parseInternalVersion(requested); ok {
		return r.DB.GetVersion(entry.ID, major, minor)
	}
	return r.DB.GetVersionByExternal(entry.ID, requested)
}

func parseInternalVersion(s string) (major, minor int, ok bool) {
	parts := strings.SplitN(s, ".", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	maj, err1 := strconv.Atoi(parts[0])
	min, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || maj < 1 || min < 0 {
		return 0, 0, false
	}
	return maj, min, true
}
