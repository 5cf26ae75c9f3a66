package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dtroode/memberpass/internal/model"
)

var _ model.MemberStore = (*MemberRepository)(nil)

const (
	dropMembersSQL = `DROP TABLE IF EXISTS members`

	createMembersSQL = `
		CREATE TABLE members (
			email_hash     TEXT PRIMARY KEY,
			first_name_enc TEXT NOT NULL,
			last_name_enc  TEXT NOT NULL,
			join_year_enc  TEXT,
			role_enc       TEXT
		)`

	insertMemberSQL = `
		INSERT INTO members (email_hash, first_name_enc, last_name_enc, join_year_enc, role_enc)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (email_hash) DO NOTHING`

	upsertMemberSQL = `
		INSERT INTO members (email_hash, first_name_enc, last_name_enc, join_year_enc, role_enc)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (email_hash) DO UPDATE SET
			first_name_enc = excluded.first_name_enc,
			last_name_enc = excluded.last_name_enc,
			join_year_enc = excluded.join_year_enc,
			role_enc = excluded.role_enc`

	updateMemberSQL = `
		UPDATE members
		SET email_hash = ?, first_name_enc = ?, last_name_enc = ?, join_year_enc = ?, role_enc = ?
		WHERE email_hash = ?`

	deleteMemberSQL = `DELETE FROM members WHERE email_hash = ?`

	existsMemberSQL = `SELECT 1 FROM members WHERE email_hash = ?`

	selectMemberSQL = `
		SELECT email_hash, first_name_enc, last_name_enc, join_year_enc, role_enc
		FROM members
		WHERE email_hash = ?`

	listMembersSQL = `
		SELECT email_hash, first_name_enc, last_name_enc, join_year_enc, role_enc
		FROM members
		ORDER BY email_hash`

	listPseudonymsSQL = `SELECT email_hash FROM members`
)

type MemberRepository struct {
	db *Connection
}

func NewMemberRepository(db *Connection) *MemberRepository {
	return &MemberRepository{
		db: db,
	}
}

// ReplaceAll drops and recreates the members table, then inserts every
// record. A record whose pseudonym was already inserted is skipped and
// reported in Duplicates.
func (r *MemberRepository) ReplaceAll(ctx context.Context, records []model.MemberRecord) (model.CommitResult, error) {
	var result model.CommitResult

	err := r.db.withWriteTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, dropMembersSQL); err != nil {
			return fmt.Errorf("failed to drop members table: %w", err)
		}
		if _, err := tx.ExecContext(ctx, createMembersSQL); err != nil {
			return fmt.Errorf("failed to create members table: %w", err)
		}

		var err error
		result.Added, result.Duplicates, err = r.insertAll(ctx, tx, records)
		return err
	})
	if err != nil {
		return model.CommitResult{}, err
	}

	return result, nil
}

// ApplySync deletes the named pseudonyms, then inserts the new records.
// Counts reflect rows actually affected; absent pseudonyms count zero.
func (r *MemberRepository) ApplySync(ctx context.Context, deletes []string, adds []model.MemberRecord) (model.CommitResult, error) {
	var result model.CommitResult

	err := r.db.withWriteTx(ctx, func(tx *sql.Tx) error {
		for _, pseudonym := range deletes {
			res, err := tx.ExecContext(ctx, r.db.rebind(deleteMemberSQL), pseudonym)
			if err != nil {
				return fmt.Errorf("failed to delete member: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to read affected rows: %w", err)
			}
			result.Deleted += int(n)
		}

		var err error
		result.Added, result.Duplicates, err = r.insertAll(ctx, tx, adds)
		return err
	})
	if err != nil {
		return model.CommitResult{}, err
	}

	return result, nil
}

func (r *MemberRepository) insertAll(ctx context.Context, tx *sql.Tx, records []model.MemberRecord) (int, []string, error) {
	var (
		added      int
		duplicates []string
	)

	query := r.db.rebind(insertMemberSQL)
	for _, rec := range records {
		res, err := tx.ExecContext(ctx, query,
			rec.Pseudonym, rec.FirstNameEnc, rec.LastNameEnc, nullable(rec.JoinYearEnc), nullable(rec.RoleEnc))
		if err != nil {
			return 0, nil, fmt.Errorf("failed to insert member: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, nil, fmt.Errorf("failed to read affected rows: %w", err)
		}
		if n == 0 {
			duplicates = append(duplicates, rec.Pseudonym)
			continue
		}
		added++
	}

	return added, duplicates, nil
}

// Upsert updates the record in place when its pseudonym exists and
// inserts it otherwise.
func (r *MemberRepository) Upsert(ctx context.Context, record model.MemberRecord) (bool, error) {
	var created bool

	err := r.db.withWriteTx(ctx, func(tx *sql.Tx) error {
		exists, err := r.exists(ctx, tx, record.Pseudonym)
		if err != nil {
			return err
		}
		created = !exists

		_, err = tx.ExecContext(ctx, r.db.rebind(upsertMemberSQL),
			record.Pseudonym, record.FirstNameEnc, record.LastNameEnc, nullable(record.JoinYearEnc), nullable(record.RoleEnc))
		if err != nil {
			return fmt.Errorf("failed to upsert member: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	return created, nil
}

// Update rewrites the record stored under pseudonym. The record may
// carry a different pseudonym, in which case the row is re-keyed.
func (r *MemberRepository) Update(ctx context.Context, pseudonym string, record model.MemberRecord) error {
	return r.db.withWriteTx(ctx, func(tx *sql.Tx) error {
		if record.Pseudonym != pseudonym {
			taken, err := r.exists(ctx, tx, record.Pseudonym)
			if err != nil {
				return err
			}
			if taken {
				return model.ErrAlreadyExists
			}
		}

		res, err := tx.ExecContext(ctx, r.db.rebind(updateMemberSQL),
			record.Pseudonym, record.FirstNameEnc, record.LastNameEnc, nullable(record.JoinYearEnc), nullable(record.RoleEnc),
			pseudonym)
		if err != nil {
			return fmt.Errorf("failed to update member: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if n == 0 {
			return model.ErrNotFound
		}
		return nil
	})
}

// Delete removes a member and reports whether it existed.
func (r *MemberRepository) Delete(ctx context.Context, pseudonym string) (bool, error) {
	var existed bool

	err := r.db.withWriteTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, r.db.rebind(deleteMemberSQL), pseudonym)
		if err != nil {
			return fmt.Errorf("failed to delete member: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		existed = n > 0
		return nil
	})
	if err != nil {
		return false, err
	}

	return existed, nil
}

func (r *MemberRepository) Get(ctx context.Context, pseudonym string) (model.MemberRecord, error) {
	row := r.db.QueryRowContext(ctx, r.db.rebind(selectMemberSQL), pseudonym)

	record, err := scanMember(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.MemberRecord{}, model.ErrNotFound
		}
		return model.MemberRecord{}, fmt.Errorf("failed to get member: %w", err)
	}

	return record, nil
}

// List returns every stored record ordered by pseudonym.
func (r *MemberRepository) List(ctx context.Context) ([]model.MemberRecord, error) {
	rows, err := r.db.QueryContext(ctx, listMembersSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var records []model.MemberRecord
	for rows.Next() {
		record, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}

	return records, nil
}

// Pseudonyms returns the set of stored pseudonyms.
func (r *MemberRepository) Pseudonyms(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, listPseudonymsSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to list pseudonyms: %w", err)
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var pseudonym string
		if err := rows.Scan(&pseudonym); err != nil {
			return nil, fmt.Errorf("failed to scan pseudonym: %w", err)
		}
		set[pseudonym] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pseudonyms: %w", err)
	}

	return set, nil
}

func (r *MemberRepository) exists(ctx context.Context, tx *sql.Tx, pseudonym string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, r.db.rebind(existsMemberSQL), pseudonym).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check member: %w", err)
	}
	return true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMember(s scanner) (model.MemberRecord, error) {
	var (
		record   model.MemberRecord
		joinYear sql.NullString
		role     sql.NullString
	)
	if err := s.Scan(&record.Pseudonym, &record.FirstNameEnc, &record.LastNameEnc, &joinYear, &role); err != nil {
		return model.MemberRecord{}, err
	}
	if joinYear.Valid {
		record.JoinYearEnc = &joinYear.String
	}
	if role.Valid {
		record.RoleEnc = &role.String
	}
	return record, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
