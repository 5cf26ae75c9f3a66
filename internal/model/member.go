package model

import "context"

// Canonical field names resolved from uploaded header rows.
const (
	FieldEmail     = "email"
	FieldFirstName = "firstname"
	FieldLastName  = "lastname"
	FieldJoinDate  = "joindate"
	FieldRole      = "role"
)

// MemberStore defines persistence operations for the member registry.
// Implementations serialize every write against other writers; reads
// are lock-free.
type MemberStore interface {
	ReplaceAll(ctx context.Context, records []MemberRecord) (CommitResult, error)
	ApplySync(ctx context.Context, deletes []string, adds []MemberRecord) (CommitResult, error)
	Upsert(ctx context.Context, record MemberRecord) (created bool, err error)
	Update(ctx context.Context, pseudonym string, record MemberRecord) error
	Delete(ctx context.Context, pseudonym string) (bool, error)
	Get(ctx context.Context, pseudonym string) (MemberRecord, error)
	List(ctx context.Context) ([]MemberRecord, error)
	Pseudonyms(ctx context.Context) (map[string]struct{}, error)
}

// RawRow is a data line of an upload mapped to canonical field names.
// Line is the 1-based source line; the header occupies line 1.
type RawRow struct {
	Line   int
	Fields map[string]string
}

// Get returns the raw value of a canonical field or an empty string.
func (r RawRow) Get(field string) string {
	if r.Fields == nil {
		return ""
	}
	return r.Fields[field]
}

// ValidatedRow is a trimmed row with its derived join year and every
// validation problem found. Only rows without errors may be committed.
type ValidatedRow struct {
	Line      int
	Email     string
	FirstName string
	LastName  string
	JoinDate  string
	JoinYear  int
	Role      string
	Errors    []string
}

// Valid reports whether the row is eligible for a commit.
func (r ValidatedRow) Valid() bool {
	return len(r.Errors) == 0
}

// StagedRow pairs a commit-eligible row with its pseudonym so the hash
// is computed once per reconciliation pass.
type StagedRow struct {
	Pseudonym string
	Row       ValidatedRow
}

// MemberRecord is a stored registry row. Every attribute except the
// pseudonym is an independently sealed ciphertext; optional attributes
// are nil when absent.
type MemberRecord struct {
	Pseudonym    string
	FirstNameEnc string
	LastNameEnc  string
	JoinYearEnc  *string
	RoleEnc      *string
}

// MemberView is a decrypted, display-safe member. Fields that could not
// be decrypted hold a placeholder and are listed in Masked.
type MemberView struct {
	Pseudonym string
	FirstName string
	LastName  string
	JoinYear  string
	Role      string
	Masked    []string
}

// MemberUpdate carries an admin edit. A non-empty NewEmail re-keys the
// record under the new address's pseudonym.
type MemberUpdate struct {
	NewEmail  string
	FirstName string
	LastName  string
	JoinYear  int
	Role      string
}

// DiffResult partitions stored and staged pseudonyms. Every stored
// pseudonym is in exactly one of ToDelete or Existing; every staged
// pseudonym is in exactly one of ToAdd or Existing.
type DiffResult struct {
	ToDelete []string
	ToAdd    []StagedRow
	Existing []StagedRow
}

// CommitResult reports what a store write actually changed.
type CommitResult struct {
	Added      int
	Deleted    int
	Duplicates []string
}

// CommitReport is returned to callers of batch operations.
type CommitReport struct {
	Count    int
	Problems []string
}

// SyncReport summarizes an incremental sync commit.
type SyncReport struct {
	Deleted  int
	Added    int
	Problems []string
}

// ImportPreview is the outcome of validating an upload without committing.
type ImportPreview struct {
	Rows       []ValidatedRow
	ErrorCount int
}
