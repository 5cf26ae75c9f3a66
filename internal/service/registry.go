package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/memberpass/internal/fieldcrypt"
	"github.com/dtroode/memberpass/internal/ingest"
	"github.com/dtroode/memberpass/internal/keys"
	"github.com/dtroode/memberpass/internal/logger"
	"github.com/dtroode/memberpass/internal/metrics"
	"github.com/dtroode/memberpass/internal/model"
	"github.com/dtroode/memberpass/internal/reconcile"
)

// Commit modes reported to metrics.
const (
	modeReplace = "replace"
	modeSync    = "sync"
	modeUpsert  = "upsert"
)

// Registry orchestrates ingestion, reconciliation, and encrypted
// persistence of member rows.
type Registry struct {
	store     model.MemberStore
	cipher    *fieldcrypt.Cipher
	delimiter rune
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

func NewRegistry(
	store model.MemberStore,
	cipher *fieldcrypt.Cipher,
	delimiter rune,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Registry {
	return &Registry{
		store:     store,
		cipher:    cipher,
		delimiter: delimiter,
		metrics:   metrics,
		logger:    logger,
	}
}

// PseudonymFor returns the registry key of an email.
func (s *Registry) PseudonymFor(email string) string {
	return keys.Pseudonym(email)
}

// Ingest parses and validates an upload without touching the store.
func (s *Registry) Ingest(data []byte) ([]model.ValidatedRow, error) {
	rows, err := ingest.ValidateAll(data, s.delimiter)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		s.metrics.ObserveRow(row.Valid())
	}
	return rows, nil
}

// Preview validates an upload and counts invalid rows.
func (s *Registry) Preview(data []byte) (model.ImportPreview, error) {
	rows, err := s.Ingest(data)
	if err != nil {
		return model.ImportPreview{}, err
	}
	return newPreview(rows), nil
}

// Revalidate runs the row rules again over corrected rows as one batch.
func (s *Registry) Revalidate(rows []model.ValidatedRow) model.ImportPreview {
	v := ingest.NewValidator()
	out := make([]model.ValidatedRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, v.Validate(model.RawRow{
			Line: row.Line,
			Fields: map[string]string{
				model.FieldEmail:     row.Email,
				model.FieldFirstName: row.FirstName,
				model.FieldLastName:  row.LastName,
				model.FieldJoinDate:  row.JoinDate,
				model.FieldRole:      row.Role,
			},
		}))
	}
	return newPreview(out)
}

func newPreview(rows []model.ValidatedRow) model.ImportPreview {
	preview := model.ImportPreview{Rows: rows}
	for _, row := range rows {
		if !row.Valid() {
			preview.ErrorCount++
		}
	}
	return preview
}

// Stage pairs every commit-eligible row with its pseudonym.
func (s *Registry) Stage(rows []model.ValidatedRow) []model.StagedRow {
	staged := make([]model.StagedRow, 0, len(rows))
	for _, row := range rows {
		if !row.Valid() {
			continue
		}
		staged = append(staged, model.StagedRow{Pseudonym: keys.Pseudonym(row.Email), Row: row})
	}
	return staged
}

// CommitReplace overwrites the registry with every error-free row.
// Rows with errors are reported, not committed.
func (s *Registry) CommitReplace(ctx context.Context, rows []model.ValidatedRow) (model.CommitReport, error) {
	batch := uuid.NewString()
	started := time.Now()

	var report model.CommitReport
	for _, row := range rows {
		if !row.Valid() {
			report.Problems = append(report.Problems, rowProblem(row.Line, strings.Join(row.Errors, "; ")))
		}
	}

	staged := s.Stage(rows)
	records, lines, err := s.seal(staged)
	if err != nil {
		return model.CommitReport{}, err
	}

	result, err := s.store.ReplaceAll(ctx, records)
	if err != nil {
		s.logger.Error("RegistryService: replace failed", "batch", batch, "error", err)
		return model.CommitReport{}, fmt.Errorf("failed to replace registry: %w", err)
	}

	report.Problems = append(report.Problems, s.duplicateProblems(batch, result.Duplicates, lines)...)
	report.Count = result.Added

	s.metrics.ObserveCommit(modeReplace, result.Added, 0, started)
	s.logger.Info("RegistryService: registry replaced",
		"batch", batch, "inserted", result.Added, "problems", len(report.Problems))

	return report, nil
}

// Diff compares a fully valid batch with the stored registry.
func (s *Registry) Diff(ctx context.Context, rows []model.ValidatedRow) (model.DiffResult, error) {
	for _, row := range rows {
		if !row.Valid() {
			return model.DiffResult{}, model.ErrValidationFailed
		}
	}

	stored, err := s.store.Pseudonyms(ctx)
	if err != nil {
		return model.DiffResult{}, fmt.Errorf("failed to load stored pseudonyms: %w", err)
	}

	return reconcile.Diff(s.Stage(rows), stored), nil
}

// CommitSync deletes the named pseudonyms and inserts the added rows.
// Stored rows not named are left untouched.
func (s *Registry) CommitSync(ctx context.Context, deleteIDs []string, addRows []model.StagedRow) (model.SyncReport, error) {
	batch := uuid.NewString()
	started := time.Now()

	var report model.SyncReport
	valid := make([]model.StagedRow, 0, len(addRows))
	for _, staged := range addRows {
		if !staged.Row.Valid() {
			report.Problems = append(report.Problems, rowProblem(staged.Row.Line, strings.Join(staged.Row.Errors, "; ")))
			continue
		}
		valid = append(valid, staged)
	}

	records, lines, err := s.seal(valid)
	if err != nil {
		return model.SyncReport{}, err
	}

	result, err := s.store.ApplySync(ctx, deleteIDs, records)
	if err != nil {
		s.logger.Error("RegistryService: sync failed", "batch", batch, "error", err)
		return model.SyncReport{}, fmt.Errorf("failed to sync registry: %w", err)
	}

	report.Deleted = result.Deleted
	report.Added = result.Added
	report.Problems = append(report.Problems, s.duplicateProblems(batch, result.Duplicates, lines)...)

	s.metrics.ObserveCommit(modeSync, result.Added, result.Deleted, started)
	s.logger.Info("RegistryService: registry synced",
		"batch", batch, "deleted", result.Deleted, "added", result.Added, "problems", len(report.Problems))

	return report, nil
}

// Sync diffs a valid batch and commits the result in one call.
func (s *Registry) Sync(ctx context.Context, rows []model.ValidatedRow) (model.DiffResult, model.SyncReport, error) {
	diff, err := s.Diff(ctx, rows)
	if err != nil {
		return model.DiffResult{}, model.SyncReport{}, err
	}

	report, err := s.CommitSync(ctx, diff.ToDelete, diff.ToAdd)
	if err != nil {
		return model.DiffResult{}, model.SyncReport{}, err
	}
	return diff, report, nil
}

// Upsert stores a single valid row, replacing any record under the
// same pseudonym.
func (s *Registry) Upsert(ctx context.Context, row model.ValidatedRow) (string, bool, error) {
	if !row.Valid() {
		return "", false, fmt.Errorf("%w: %s", model.ErrInvalidRow, strings.Join(row.Errors, "; "))
	}

	staged := model.StagedRow{Pseudonym: keys.Pseudonym(row.Email), Row: row}
	record, err := s.sealRow(staged)
	if err != nil {
		return "", false, err
	}

	started := time.Now()
	created, err := s.store.Upsert(ctx, record)
	if err != nil {
		return "", false, fmt.Errorf("failed to upsert member: %w", err)
	}

	added := 0
	if created {
		added = 1
	}
	s.metrics.ObserveCommit(modeUpsert, added, 0, started)
	s.logger.Info("RegistryService: member upserted", "pseudonym", staged.Pseudonym, "created", created)

	return staged.Pseudonym, created, nil
}

// ListAll returns every member decrypted and sorted by last name, then
// first name. Undecryptable fields are masked when the policy allows.
func (s *Registry) ListAll(ctx context.Context) ([]model.MemberView, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	views := make([]model.MemberView, 0, len(records))
	for _, record := range records {
		view, err := s.open(record)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}

	slices.SortStableFunc(views, func(a, b model.MemberView) int {
		return cmp.Or(
			cmp.Compare(strings.ToLower(a.LastName), strings.ToLower(b.LastName)),
			cmp.Compare(strings.ToLower(a.FirstName), strings.ToLower(b.FirstName)),
			cmp.Compare(a.Pseudonym, b.Pseudonym),
		)
	})

	return views, nil
}

// Get returns one decrypted member by pseudonym.
func (s *Registry) Get(ctx context.Context, pseudonym string) (model.MemberView, error) {
	record, err := s.store.Get(ctx, pseudonym)
	if err != nil {
		return model.MemberView{}, fmt.Errorf("failed to get member: %w", err)
	}
	return s.open(record)
}

// Lookup returns the member registered under email.
func (s *Registry) Lookup(ctx context.Context, email string) (model.MemberView, error) {
	return s.Get(ctx, keys.Pseudonym(email))
}

// Update applies an admin edit and returns the pseudonym the member is
// stored under afterwards.
func (s *Registry) Update(ctx context.Context, pseudonym string, upd model.MemberUpdate) (string, error) {
	row := model.ValidatedRow{
		FirstName: strings.TrimSpace(upd.FirstName),
		LastName:  strings.TrimSpace(upd.LastName),
		JoinYear:  upd.JoinYear,
		Role:      strings.TrimSpace(upd.Role),
	}
	if row.FirstName == "" {
		row.Errors = append(row.Errors, ingest.MsgFirstNameMissing)
	}
	if row.LastName == "" {
		row.Errors = append(row.Errors, ingest.MsgLastNameMissing)
	}
	if upd.JoinYear < 0 {
		row.Errors = append(row.Errors, ingest.MsgInvalidJoinDate+": "+strconv.Itoa(upd.JoinYear))
	}

	target := pseudonym
	if upd.NewEmail != "" {
		email := keys.Normalize(upd.NewEmail)
		if !ingest.IsEmail(email) {
			row.Errors = append(row.Errors, ingest.MsgInvalidEmail)
		}
		target = keys.Pseudonym(email)
	}
	if !row.Valid() {
		return "", fmt.Errorf("%w: %s", model.ErrInvalidRow, strings.Join(row.Errors, "; "))
	}

	record, err := s.sealRow(model.StagedRow{Pseudonym: target, Row: row})
	if err != nil {
		return "", err
	}

	if err := s.store.Update(ctx, pseudonym, record); err != nil {
		return "", fmt.Errorf("failed to update member: %w", err)
	}

	s.logger.Info("RegistryService: member updated", "pseudonym", pseudonym, "rekeyed", target != pseudonym)
	return target, nil
}

// Delete removes a member and reports whether it existed.
func (s *Registry) Delete(ctx context.Context, pseudonym string) (bool, error) {
	existed, err := s.store.Delete(ctx, pseudonym)
	if err != nil {
		return false, fmt.Errorf("failed to delete member: %w", err)
	}

	s.logger.Info("RegistryService: member deleted", "pseudonym", pseudonym, "existed", existed)
	return existed, nil
}

func (s *Registry) seal(staged []model.StagedRow) ([]model.MemberRecord, map[string][]int, error) {
	records := make([]model.MemberRecord, 0, len(staged))
	lines := make(map[string][]int, len(staged))
	for _, row := range staged {
		record, err := s.sealRow(row)
		if err != nil {
			return nil, nil, err
		}
		records = append(records, record)
		lines[row.Pseudonym] = append(lines[row.Pseudonym], row.Row.Line)
	}
	return records, lines, nil
}

func (s *Registry) sealRow(staged model.StagedRow) (model.MemberRecord, error) {
	first, err := s.cipher.Seal(model.FieldFirstName, staged.Row.FirstName)
	if err != nil {
		return model.MemberRecord{}, fmt.Errorf("failed to encrypt first name: %w", err)
	}
	last, err := s.cipher.Seal(model.FieldLastName, staged.Row.LastName)
	if err != nil {
		return model.MemberRecord{}, fmt.Errorf("failed to encrypt last name: %w", err)
	}

	record := model.MemberRecord{
		Pseudonym:    staged.Pseudonym,
		FirstNameEnc: first,
		LastNameEnc:  last,
	}

	if staged.Row.JoinYear != 0 {
		year, err := s.cipher.Seal(model.FieldJoinDate, strconv.Itoa(staged.Row.JoinYear))
		if err != nil {
			return model.MemberRecord{}, fmt.Errorf("failed to encrypt join year: %w", err)
		}
		record.JoinYearEnc = &year
	}
	if staged.Row.Role != "" {
		role, err := s.cipher.Seal(model.FieldRole, staged.Row.Role)
		if err != nil {
			return model.MemberRecord{}, fmt.Errorf("failed to encrypt role: %w", err)
		}
		record.RoleEnc = &role
	}

	return record, nil
}

func (s *Registry) open(record model.MemberRecord) (model.MemberView, error) {
	view := model.MemberView{Pseudonym: record.Pseudonym}

	fields := []struct {
		name   string
		sealed *string
		dst    *string
	}{
		{name: model.FieldFirstName, sealed: &record.FirstNameEnc, dst: &view.FirstName},
		{name: model.FieldLastName, sealed: &record.LastNameEnc, dst: &view.LastName},
		{name: model.FieldJoinDate, sealed: record.JoinYearEnc, dst: &view.JoinYear},
		{name: model.FieldRole, sealed: record.RoleEnc, dst: &view.Role},
	}

	for _, f := range fields {
		if f.sealed == nil {
			continue
		}
		value, masked, err := s.cipher.OpenMasked(f.name, *f.sealed)
		if err != nil {
			return model.MemberView{}, fmt.Errorf("failed to decrypt %s of %s: %w", f.name, record.Pseudonym, err)
		}
		if masked {
			view.Masked = append(view.Masked, f.name)
		}
		*f.dst = value
	}

	if len(view.Masked) > 0 {
		s.metrics.FieldMasked(len(view.Masked))
		s.logger.Warn("RegistryService: masked undecryptable fields",
			"pseudonym", record.Pseudonym, "fields", view.Masked)
	}

	return view, nil
}

// duplicateProblems attributes skipped inserts to source lines. The
// store skips the last occurrences of a pseudonym, so the k-th of d
// duplicates maps to line n-d+k of its n staged lines.
func (s *Registry) duplicateProblems(batch string, duplicates []string, lines map[string][]int) []string {
	total := make(map[string]int, len(duplicates))
	for _, pseudonym := range duplicates {
		total[pseudonym]++
	}

	seen := make(map[string]int, len(duplicates))
	problems := make([]string, 0, len(duplicates))
	for _, pseudonym := range duplicates {
		s.logger.Warn("RegistryService: skipped duplicate pseudonym", "batch", batch, "pseudonym", pseudonym)

		line := 0
		if staged := lines[pseudonym]; len(staged) > 0 {
			idx := max(len(staged)-total[pseudonym]+seen[pseudonym], 0)
			line = staged[min(idx, len(staged)-1)]
		}
		seen[pseudonym]++
		problems = append(problems, rowProblem(line, "duplicate email address skipped"))
	}
	return problems
}

func rowProblem(line int, msg string) string {
	return fmt.Sprintf("row %d: %s", line, msg)
}
