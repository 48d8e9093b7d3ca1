// Package ingestion implements the Ingestion Engine (C3): a Coordinator
// that drives an Ingestion Job through its state machine, and a pool of
// Workers that claim Work Units from the shared catalog store and parse
// them cooperatively (spec §4.3).
package ingestion

import (
	"context"
)

// ExpectedFile is one upstream artifact the Download & Verify phase must
// fetch, with whatever checksum/size the upstream manifest declared.
type ExpectedFile struct {
	Name        string // file_purpose: stable identifier within the job
	URL         string
	ExpectedMD5 string // empty when the upstream does not publish one
	SizeBytes   int64  // best-effort, used only for logging/progress
}

// UpstreamManifest is the Coordinator's resolved view of what a job needs
// to download, generalized from the teacher's per-accession URL resolution
// (internal/downloader/sra_downloader.go's getDownloadURL) to a per-job file
// list: UniProt's RFC 5854 metalink lists several files at once, while a
// plain FTP/HTTP directory listing produces the same shape.
type UpstreamManifest struct {
	Files []ExpectedFile
}

// Resolver resolves an organization's upstream file list for a given
// external version. StaticResolver is the only implementation; the ingest
// command uses it for every organization (uniprot, taxonomy, genbank, go,
// interpro). No resolver reads a metalink or a directory listing.
type Resolver interface {
	Resolve(ctx context.Context, externalVersion string) (UpstreamManifest, error)
}

// StaticResolver is a Resolver backed by a fixed, pre-known file list —
// used by the ingest command for every organization and by the tests.
type StaticResolver struct {
	URLTemplate func(externalVersion string) []ExpectedFile
}

// Resolve renders the organization's URL template for externalVersion.
func (r StaticResolver) Resolve(ctx context.Context, externalVersion string) (UpstreamManifest, error) {
	return UpstreamManifest{Files: r.URLTemplate(externalVersion)}, nil
}
