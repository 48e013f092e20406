// Package ledger implements the insertion protocol: the atomic "append
// triple" that extends datalog, blockchain and eventlog together, plus
// the read-only query and search operations that live alongside it.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mauriceling/serebo/internal/clock"
	"github.com/mauriceling/serebo/internal/hashcomposite"
	"github.com/mauriceling/serebo/internal/randomstring"
	"github.com/mauriceling/serebo/internal/store"
	"github.com/mauriceling/serebo/internal/storeerrors"
	"github.com/mauriceling/serebo/internal/sysinfo"
	"github.com/rs/zerolog"
)

// descriptionSuffixLength is the random suffix appended to text-mode
// descriptions so identical submissions still hash differently.
const descriptionSuffixLength = 10

// blockRandomStringLength is the per-block nonce length.
const blockRandomStringLength = 32

// eventFIDLength is the length of the fresh random string keying
// eventlog and eventlog_datamap rows.
const eventFIDLength = 10

// Ledger is the insertion-protocol and query front end over one Store.
type Ledger struct {
	store  *store.Store
	logger zerolog.Logger
}

// New wraps an open Store.
func New(s *store.Store, logger zerolog.Logger) *Ledger {
	return &Ledger{store: s, logger: logger.With().Str("component", "ledger").Logger()}
}

// parent is the chain head a new block links off.
type parent struct {
	id           int64
	dtstamp      string
	randomstring string
	hash         string
}

// InsertText inserts a text message, appending a random suffix to
// description so identical submissions in the same microsecond do not
// collide on the datalog unique index.
func (l *Ledger) InsertText(ctx context.Context, data, description string) (*Result, error) {
	return l.insert(ctx, data, description, ModeText)
}

// InsertFText inserts data with description used verbatim — the variant
// used for the core's own log messages (notarization records, alias
// changes) where the exact description is meaningful.
func (l *Ledger) InsertFText(ctx context.Context, data, description string) (*Result, error) {
	return l.insert(ctx, data, description, ModeInternal)
}

// LogFile logs a file: the stored "data" is the file's own hash
// composite (streamed, never buffered whole), not its content. The
// description is composed as
// "UserGivenPath :> <path> >> AbsolutePath :> <abs> >> UserDescription :> <d>"
// before the normal protocol proceeds with mode=file.
func (l *Ledger) LogFile(ctx context.Context, path, description string) (*Result, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("ledger: resolve absolute path for %s: %w", path, err)
	}
	fileHash, err := hashFile(path)
	if err != nil {
		return nil, fmt.Errorf("ledger: hash file %s: %w", path, err)
	}
	if description == "" {
		description = "NA"
	}
	composed := fmt.Sprintf("UserGivenPath :> %s >> AbsolutePath :> %s >> UserDescription :> %s",
		path, abs, description)
	return l.insert(ctx, fileHash, composed, ModeFile)
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return hashcomposite.ComputeReader(f)
}

// insert runs the full append-triple protocol: prepare the timestamp,
// description and data hash, write the datalog row, chain a new block
// off the current head, and index the event — all in one transaction.
func (l *Ledger) insert(ctx context.Context, data, description string, mode Mode) (*Result, error) {
	if description == "" {
		description = "NA"
	}

	// Step 1: prepare.
	T := clock.Stamp()
	displayDescription := description
	if mode == ModeText {
		displayDescription = description + ":" + randomstring.Generate(descriptionSuffixLength)
	}
	DH := hashcomposite.Compute([]byte(T + data + displayDescription))

	var result *Result
	err := l.store.WriteTx(ctx, func(tx *sql.Tx) error {
		// Step 2: insert datalog.
		if _, err := tx.Exec(
			`insert into datalog (dtstamp, hash, data, description) values (?, ?, ?, ?)`,
			T, DH, data, displayDescription); err != nil {
			if storeerrors.IsUniqueViolation(err) {
				return fmt.Errorf("%w: dtstamp=%s hash=%s", storeerrors.ErrDuplicateRecord, T, DH)
			}
			return fmt.Errorf("%w: insert datalog: %v", storeerrors.ErrStoreIO, err)
		}

		// Step 3: fetch parent.
		p, err := fetchParent(tx)
		if err != nil {
			return fmt.Errorf("%w: fetch parent block: %v", storeerrors.ErrStoreIO, err)
		}

		// Step 4: derive child.
		BR := randomstring.Generate(blockRandomStringLength)
		BH := hashcomposite.Compute([]byte(p.dtstamp + p.randomstring + p.hash + DH))

		// Step 5: insert blockchain.
		if _, err := tx.Exec(
			`insert into blockchain (c_dtstamp, c_randomstring, c_hash, p_id, p_dtstamp, p_randomstring, p_hash, data)
			 values (?, ?, ?, ?, ?, ?, ?, ?)`,
			T, BR, BH, p.id, p.dtstamp, p.randomstring, p.hash, DH); err != nil {
			return fmt.Errorf("%w: insert blockchain: %v", storeerrors.ErrStoreIO, err)
		}

		// Step 6: insert eventlog + eventlog_datamap.
		fID := randomstring.Generate(eventFIDLength)
		if _, err := tx.Exec(
			`insert into eventlog (dtstamp, fid, description) values (?, ?, ?)`,
			T, fID, displayDescription); err != nil {
			return fmt.Errorf("%w: insert eventlog: %v", storeerrors.ErrStoreIO, err)
		}
		datamap := [][2]string{
			{"DataHash", DH},
			{"ParentHash", p.hash},
			{"BlockHash", BH},
		}
		for _, kv := range datamap {
			if _, err := tx.Exec(
				`insert into eventlog_datamap (dtstamp, fid, key, value) values (?, ?, ?, ?)`,
				T, fID, kv[0], kv[1]); err != nil {
				return fmt.Errorf("%w: insert eventlog_datamap: %v", storeerrors.ErrStoreIO, err)
			}
		}

		result = &Result{
			DateTimeStamp:       T,
			Data:                data,
			UserDescription:     displayDescription,
			DataHash:            DH,
			ParentBlockID:       p.id,
			ParentDateTimeStamp: p.dtstamp,
			ParentRandomString:  p.randomstring,
			ParentHash:          p.hash,
			BlockRandomString:   BR,
			BlockHash:           BH,
		}
		return nil
	})
	if err != nil {
		l.logger.Debug().Err(err).Msg("insertion failed, rolled back")
		return nil, err
	}
	l.logger.Info().Str("dtstamp", T).Int64("parentBlockID", result.ParentBlockID).Msg("record inserted")
	return result, nil
}

func fetchParent(tx *sql.Tx) (parent, error) {
	row := tx.QueryRow(`select c_id, c_dtstamp, c_randomstring, c_hash from blockchain order by c_id desc limit 1`)
	var p parent
	err := row.Scan(&p.id, &p.dtstamp, &p.randomstring, &p.hash)
	switch {
	case err == nil:
		return p, nil
	case errors.Is(err, sql.ErrNoRows):
		return parent{
			id:           store.GenesisParentID,
			dtstamp:      store.GenesisParentDTStamp,
			randomstring: store.GenesisParentRandomString,
			hash:         store.GenesisParentHash,
		}, nil
	default:
		return parent{}, err
	}
}

// RandomString generates a random string of the given length and logs
// the generation as an internal event, so every locally issued code
// leaves a trace in the ledger.
func (l *Ledger) RandomString(ctx context.Context, length int, description string) (string, *Result, error) {
	s := randomstring.Generate(length)
	fullDescription := "Local random string generation"
	if description != "" {
		fullDescription = fullDescription + " | " + description
	}
	res, err := l.InsertFText(ctx, s, fullDescription)
	if err != nil {
		return "", nil, err
	}
	return s, res, nil
}

const selfSignRandomStringLength = 32

// SelfSign self-notarizes the black box with a local random string,
// logged under the "Self notarization" description prefix that
// ViewSelfNotarization filters on.
func (l *Ledger) SelfSign(ctx context.Context) (string, *Result, error) {
	s := randomstring.Generate(selfSignRandomStringLength)
	res, err := l.InsertFText(ctx, s, "Self notarization")
	if err != nil {
		return "", nil, err
	}
	return s, res, nil
}

// NTPSign self-notarizes the black box against an externally-obtained
// NTP timestamp, logged under the "NTP server (self) notarization"
// description prefix. Talking to an actual NTP server is the caller's
// job; the timestamp arrives here already formatted.
func (l *Ledger) NTPSign(ctx context.Context, ntpTimestamp string) (string, *Result, error) {
	s := randomstring.Generate(selfSignRandomStringLength)
	description := fmt.Sprintf("NTP server (self) notarization | NTP Date Time: %s", ntpTimestamp)
	res, err := l.InsertFText(ctx, s, description)
	if err != nil {
		return "", nil, err
	}
	return s, res, nil
}

// SystemData collects the current platform fingerprint without writing
// anything.
func (l *Ledger) SystemData() sysinfo.Data {
	return sysinfo.Collect()
}

// SystemRecord persists one systemdata row per platform fingerprint
// field at the current timestamp.
func (l *Ledger) SystemRecord(ctx context.Context) (sysinfo.Data, error) {
	data := sysinfo.Collect()
	T := clock.Stamp()
	err := l.store.WriteTx(ctx, func(tx *sql.Tx) error {
		for _, kv := range data.Fields() {
			if _, err := tx.Exec(
				`insert into systemdata (dtstamp, key, value) values (?, ?, ?)`,
				T, kv[0], kv[1]); err != nil {
				return fmt.Errorf("%w: insert systemdata: %v", storeerrors.ErrStoreIO, err)
			}
		}
		return nil
	})
	if err != nil {
		return sysinfo.Data{}, err
	}
	return data, nil
}

// ChangeAlias updates the mutable alias field of an existing notary
// registration. alias is the current alias to match, newAlias is the
// replacement, assigned outright.
func (l *Ledger) ChangeAlias(ctx context.Context, alias, newAlias string) error {
	return l.store.WriteTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`update notary set alias = ? where alias = ?`, newAlias, alias)
		if err != nil {
			return fmt.Errorf("%w: update notary alias: %v", storeerrors.ErrStoreIO, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: update notary alias: %v", storeerrors.ErrStoreIO, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: alias %q", storeerrors.ErrNotFound, alias)
		}
		return nil
	})
}
