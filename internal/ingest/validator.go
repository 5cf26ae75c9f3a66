package ingest

import (
	"iter"
	"regexp"
	"strings"

	"github.com/dtroode/memberpass/internal/model"
)

// Validation messages attached to rows.
const (
	MsgFirstNameMissing = "firstname is missing"
	MsgLastNameMissing  = "lastname is missing"
	MsgInvalidEmail     = "invalid email address"
	MsgDuplicateEmail   = "duplicate email address"
	MsgInvalidJoinDate  = "invalid join date"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// IsEmail reports whether s has the basic local@domain.tld shape.
func IsEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// Validator checks rows of a single upload. It remembers emails so a
// repeated address is flagged on every occurrence after the first.
type Validator struct {
	seen map[string]struct{}
}

// NewValidator returns a Validator with an empty duplicate set.
func NewValidator() *Validator {
	return &Validator{seen: make(map[string]struct{})}
}

// Validate trims the row and records every problem found. It never
// stops at the first error.
func (v *Validator) Validate(raw model.RawRow) model.ValidatedRow {
	row := model.ValidatedRow{
		Line:      raw.Line,
		Email:     strings.ToLower(strings.TrimSpace(raw.Get(model.FieldEmail))),
		FirstName: strings.TrimSpace(raw.Get(model.FieldFirstName)),
		LastName:  strings.TrimSpace(raw.Get(model.FieldLastName)),
		JoinDate:  strings.TrimSpace(raw.Get(model.FieldJoinDate)),
		Role:      strings.TrimSpace(raw.Get(model.FieldRole)),
	}

	if row.FirstName == "" {
		row.Errors = append(row.Errors, MsgFirstNameMissing)
	}
	if row.LastName == "" {
		row.Errors = append(row.Errors, MsgLastNameMissing)
	}

	if !IsEmail(row.Email) {
		row.Errors = append(row.Errors, MsgInvalidEmail)
	}
	if row.Email != "" {
		if _, dup := v.seen[row.Email]; dup {
			row.Errors = append(row.Errors, MsgDuplicateEmail)
		} else {
			v.seen[row.Email] = struct{}{}
		}
	}

	if row.JoinDate != "" {
		if t, ok := ParseJoinDate(row.JoinDate); ok {
			row.JoinYear = t.Year()
		} else {
			row.Errors = append(row.Errors, MsgInvalidJoinDate+": "+row.JoinDate)
		}
	}

	return row
}

// Validate lazily validates a row sequence with a fresh duplicate set.
func Validate(rows iter.Seq[model.RawRow]) iter.Seq[model.ValidatedRow] {
	return func(yield func(model.ValidatedRow) bool) {
		v := NewValidator()
		for raw := range rows {
			if !yield(v.Validate(raw)) {
				return
			}
		}
	}
}

// ValidateAll parses and validates a whole upload.
func ValidateAll(data []byte, fallback rune) ([]model.ValidatedRow, error) {
	sheet, err := Parse(data, fallback)
	if err != nil {
		return nil, err
	}

	var rows []model.ValidatedRow
	for row := range Validate(sheet.Rows()) {
		rows = append(rows, row)
	}
	if err := sheet.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}
