package catalog

import (
	"database/sql"
	"encoding/json"
	"time"

	bdperrors "github.com/nishad/bdp/internal/errors"
	"github.com/google/uuid"
)

// InsertChangelog records a Changelog for a newly created version. Every
// non-initial version has exactly one (spec §4.4.5); version_id is unique.
func (db *DB) InsertChangelog(c *Changelog) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	entries, err := json.Marshal(c.Entries)
	if err != nil {
		return bdperrors.WrapKind("catalog.InsertChangelog", bdperrors.KindInternal, "marshal entries", err)
	}
	summary, err := json.Marshal(c.Summary)
	if err != nil {
		return bdperrors.WrapKind("catalog.InsertChangelog", bdperrors.KindInternal, "marshal summary", err)
	}

	_, err = db.Exec(`
		INSERT INTO changelogs (id, version_id, bump_type, entries, summary, summary_text, triggered_by_version_id, trigger, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.VersionID, string(c.BumpType), string(entries), string(summary), c.SummaryText, c.TriggeredByVersionID, string(c.Trigger), c.CreatedAt)
	if err != nil {
		return bdperrors.WrapKind("catalog.InsertChangelog", bdperrors.KindConflict, "insert changelog", err)
	}
	return nil
}

// GetChangelog fetches the changelog for a version.
func (db *DB) GetChangelog(versionID string) (*Changelog, error) {
	row := db.QueryRow(`
		SELECT id, version_id, bump_type, entries, summary, summary_text, triggered_by_version_id, trigger, created_at
		FROM changelogs WHERE version_id = ?`, versionID)

	var c Changelog
	var bumpType, entries, summary, trigger string
	if err := row.Scan(&c.ID, &c.VersionID, &bumpType, &entries, &summary, &c.SummaryText, &c.TriggeredByVersionID, &trigger, &c.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, bdperrors.WrapKind("catalog.GetChangelog", bdperrors.KindNotFound, "changelog", err)
		}
		return nil, bdperrors.WrapKind("catalog.GetChangelog", bdperrors.KindInternal, "scan changelog", err)
	}
	c.BumpType = BumpType(bumpType)
	c.Trigger = ChangelogTrigger(trigger)
	if err := json.Unmarshal([]byte(entries), &c.Entries); err != nil {
		return nil, bdperrors.WrapKind("catalog.GetChangelog", bdperrors.KindInternal, "unmarshal entries", err)
	}
	if err := json.Unmarshal([]byte(summary), &c.Summary); err != nil {
		return nil, bdperrors.WrapKind("catalog.GetChangelog", bdperrors.KindInternal, "unmarshal summary", err)
	}
	return &c, nil
}

// ListChangelogsForEntry returns every changelog belonging to an entry's
// versions, newest first, for the entry's change history view.
func (db *DB) ListChangelogsForEntry(entryID string) ([]*Changelog, error) {
	rows, err := db.Query(`
		SELECT c.id, c.version_id, c.bump_type, c.entries, c.summary, c.summary_text, c.triggered_by_version_id, c.trigger, c.created_at
		FROM changelogs c
		JOIN versions v ON v.id = c.version_id
		WHERE v.entry_id = ?
		ORDER BY v.major DESC, v.minor DESC`, entryID)
	if err != nil {
		return nil, bdperrors.WrapKind("catalog.ListChangelogsForEntry", bdperrors.KindInternal, "query changelogs", err)
	}
	defer rows.Close()

	scanner := bdperrors.NewRowScanner("list_changelogs_for_entry")
	var out []*Changelog
	for rows.Next() {
		var c Changelog
		var bumpType, entries, summary, trigger string
		if err := rows.Scan(&c.ID, &c.VersionID, &bumpType, &entries, &summary, &c.SummaryText, &c.TriggeredByVersionID, &trigger, &c.CreatedAt); err != nil {
			scanner.RecordSkip(err, "changelog row")
			continue
		}
		c.BumpType = BumpType(bumpType)
		c.Trigger = ChangelogTrigger(trigger)
		if err := json.Unmarshal([]byte(entries), &c.Entries); err != nil {
			scanner.RecordSkip(err, c.ID)
			continue
		}
		if err := json.Unmarshal([]byte(summary), &c.Summary); err != nil {
			scanner.RecordSkip(err, c.ID)
			continue
		}
		scanner.RecordScan()
		out = append(out, &c)
	}
	scanner.Report()
	return out, rows.Err()
}

// InsertCitation attaches a citation to an entry or a specific version.
func (db *DB) InsertCitation(c *Citation) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := db.Exec(`INSERT INTO citations (id, entry_id, version_id, text, url) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.EntryID, c.VersionID, c.Text, c.URL)
	if err != nil {
		return bdperrors.WrapKind("catalog.InsertCitation", bdperrors.KindInternal, "insert citation", err)
	}
	return nil
}

// InsertLicense attaches a license to an entry or a specific version.
func (db *DB) InsertLicense(l *License) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	_, err := db.Exec(`INSERT INTO licenses (id, entry_id, version_id, spdx_id, text) VALUES (?, ?, ?, ?, ?)`,
		l.ID, l.EntryID, l.VersionID, l.SPDXID, l.Text)
	if err != nil {
		return bdperrors.WrapKind("catalog.InsertLicense", bdperrors.KindInternal, "insert license", err)
	}
	return nil
}
