package ledger

import (
	"context"
	"fmt"

	"github.com/mauriceling/serebo/internal/hashcomposite"
)

// Record is one matched datalog row, returned by the search operations.
type Record struct {
	ID            int64
	DateTimeStamp string
	Hash          string
	Data          string
	Description   string
}

// SearchField names the two datalog columns the search operations can
// match against: the stored data itself, or the display description.
type SearchField string

const (
	FieldData        SearchField = "data"
	FieldDescription SearchField = "description"
)

func (f SearchField) column() (string, error) {
	switch f {
	case FieldData, FieldDescription:
		return string(f), nil
	}
	return "", fmt.Errorf("ledger: unknown search field %q", string(f))
}

// SearchExact returns every datalog row whose field equals term exactly.
func (l *Ledger) SearchExact(ctx context.Context, field SearchField, term string) ([]Record, error) {
	col, err := field.column()
	if err != nil {
		return nil, err
	}
	return l.query(ctx,
		`select id, dtstamp, hash, data, description from datalog where `+col+` = ? order by id asc`, term)
}

// SearchPattern returns every datalog row whose field matches a SQL
// LIKE pattern, case-sensitive, with "_"/"%" wildcards passed through
// verbatim.
func (l *Ledger) SearchPattern(ctx context.Context, field SearchField, pattern string) ([]Record, error) {
	col, err := field.column()
	if err != nil {
		return nil, err
	}
	return l.query(ctx,
		`select id, dtstamp, hash, data, description from datalog where `+col+` like ? order by id asc`, pattern)
}

// SearchFile hashes the file at path and looks up the datalog rows whose
// data column equals that hash exactly — the counterpart to LogFile,
// which stores a file's hash composite rather than its content.
func (l *Ledger) SearchFile(ctx context.Context, path string) ([]Record, error) {
	fileHash, err := hashFile(path)
	if err != nil {
		return nil, fmt.Errorf("ledger: hash file %s: %w", path, err)
	}
	return l.SearchExact(ctx, FieldData, fileHash)
}

func (l *Ledger) query(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := l.store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: query: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.DateTimeStamp, &r.Hash, &r.Data, &r.Description); err != nil {
			return nil, fmt.Errorf("ledger: scan: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: rows: %w", err)
	}
	return out, nil
}

// Notarization description prefixes, all written through InsertFText:
// the first two by Ledger.SelfSign and Ledger.NTPSign, the third by the
// notary client after a successful notarization round trip. These three
// views let a caller recover that history without knowing the literal
// prefixes.
const (
	descSelfNotarization   = "Self notarization"
	descNTPNotarization    = "NTP server (self) notarization"
	descSereboNotarization = "Notarization with SEREBO Notary"
)

// ViewSelfNotarization returns every local self-notarization record.
func (l *Ledger) ViewSelfNotarization(ctx context.Context) ([]Record, error) {
	return l.SearchPattern(ctx, FieldDescription, descSelfNotarization+"%")
}

// ViewNTPNotarization returns every NTP-timestamped self-notarization
// record.
func (l *Ledger) ViewNTPNotarization(ctx context.Context) ([]Record, error) {
	return l.SearchPattern(ctx, FieldDescription, descNTPNotarization+"%")
}

// ViewSereboNotarization returns every remote-notary notarization
// record.
func (l *Ledger) ViewSereboNotarization(ctx context.Context) ([]Record, error) {
	return l.SearchPattern(ctx, FieldDescription, descSereboNotarization+"%")
}

// NotaryRegistration is one row of the local `notary` table, as listed
// by ViewRegistrations.
type NotaryRegistration struct {
	ID                  int64
	DateTimeStamp       string
	Alias               string
	Owner               string
	Email               string
	NotaryDTS           string
	NotaryAuthorization string
	NotaryURL           string
}

// ViewRegistrations lists every local notary registration without
// writing anything.
func (l *Ledger) ViewRegistrations(ctx context.Context) ([]NotaryRegistration, error) {
	rows, err := l.store.DB().QueryContext(ctx,
		`select id, dtstamp, alias, owner, email, notarydts, notaryauthorization, notaryurl from notary order by id asc`)
	if err != nil {
		return nil, fmt.Errorf("ledger: view registrations: %w", err)
	}
	defer rows.Close()

	var out []NotaryRegistration
	for rows.Next() {
		var r NotaryRegistration
		if err := rows.Scan(&r.ID, &r.DateTimeStamp, &r.Alias, &r.Owner, &r.Email, &r.NotaryDTS, &r.NotaryAuthorization, &r.NotaryURL); err != nil {
			return nil, fmt.Errorf("ledger: view registrations: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// StringHash computes the composite hash of an arbitrary string without
// writing anything.
func StringHash(s string) string {
	return hashcomposite.Compute([]byte(s))
}

// FileHash computes the composite hash of a file's contents, streamed,
// without writing anything.
func FileHash(path string) (string, error) {
	return hashFile(path)
}
