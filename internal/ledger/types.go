package ledger

// Mode selects how the insertion protocol derives the display
// description: text entries get a random suffix so two identical
// (data, description) pairs submitted a microsecond apart still produce
// distinct datalog rows; file entries carry their own already-unique
// path information and are left undecorated.
type Mode int

const (
	// ModeText appends a random suffix to description.
	ModeText Mode = iota
	// ModeFile leaves description exactly as given.
	ModeFile
	// ModeInternal is used by InsertFText: the undecorated-description
	// variant used for the core's own log messages (notarization
	// records, alias changes), where the exact description matters.
	ModeInternal
)

// Result is the record returned by a successful insertion — everything a
// caller needs to audit or display the event without re-querying the
// store.
type Result struct {
	DateTimeStamp       string
	Data                string
	UserDescription     string
	DataHash            string
	ParentBlockID       int64
	ParentDateTimeStamp string
	ParentRandomString  string
	ParentHash          string
	BlockRandomString   string
	BlockHash           string
}
