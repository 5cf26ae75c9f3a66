package service

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/memberpass/internal/fieldcrypt"
	"github.com/dtroode/memberpass/internal/model"
	"github.com/dtroode/memberpass/internal/repository/sqlstore"
	"github.com/dtroode/memberpass/internal/testutil"
	"github.com/dtroode/memberpass/internal/token"
)

const testSecret = "registry-secret"

func newTestStore(t *testing.T) *sqlstore.MemberRepository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "members.db")
	conn, err := sqlstore.NewConnection(context.Background(), sqlstore.DriverSQLite, path, path+".lock")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return sqlstore.NewMemberRepository(conn)
}

func newTestCipher(t *testing.T, mask bool) *fieldcrypt.Cipher {
	t.Helper()
	c, err := fieldcrypt.New(testSecret, fieldcrypt.Policy{Mask: mask, Placeholder: fieldcrypt.DefaultPlaceholder})
	require.NoError(t, err)
	return c
}

func newTestRegistry(t *testing.T, store model.MemberStore) *Registry {
	t.Helper()
	return NewRegistry(store, newTestCipher(t, true), ';', nil, testutil.MakeNoopLogger())
}

func newTestTokens(t *testing.T) *token.Service {
	t.Helper()
	s, err := token.NewService("token-secret", 0, nil, testutil.MakeNoopLogger())
	require.NoError(t, err)
	return s
}

func validRow(line int, email, first, last string) model.ValidatedRow {
	return model.ValidatedRow{Line: line, Email: email, FirstName: first, LastName: last}
}

// MockMemberStore mocks the MemberStore interface
type MockMemberStore struct {
	mock.Mock
}

func (m *MockMemberStore) ReplaceAll(ctx context.Context, records []model.MemberRecord) (model.CommitResult, error) {
	args := m.Called(ctx, records)
	return args.Get(0).(model.CommitResult), args.Error(1)
}

func (m *MockMemberStore) ApplySync(ctx context.Context, deletes []string, adds []model.MemberRecord) (model.CommitResult, error) {
	args := m.Called(ctx, deletes, adds)
	return args.Get(0).(model.CommitResult), args.Error(1)
}

func (m *MockMemberStore) Upsert(ctx context.Context, record model.MemberRecord) (bool, error) {
	args := m.Called(ctx, record)
	return args.Bool(0), args.Error(1)
}

func (m *MockMemberStore) Update(ctx context.Context, pseudonym string, record model.MemberRecord) error {
	args := m.Called(ctx, pseudonym, record)
	return args.Error(0)
}

func (m *MockMemberStore) Delete(ctx context.Context, pseudonym string) (bool, error) {
	args := m.Called(ctx, pseudonym)
	return args.Bool(0), args.Error(1)
}

func (m *MockMemberStore) Get(ctx context.Context, pseudonym string) (model.MemberRecord, error) {
	args := m.Called(ctx, pseudonym)
	return args.Get(0).(model.MemberRecord), args.Error(1)
}

func (m *MockMemberStore) List(ctx context.Context) ([]model.MemberRecord, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.MemberRecord), args.Error(1)
}

func (m *MockMemberStore) Pseudonyms(ctx context.Context) (map[string]struct{}, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[string]struct{}), args.Error(1)
}

// MockStorage mocks the Storage interface
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Upload(ctx context.Context, key string, data []byte) error {
	args := m.Called(ctx, key, data)
	return args.Error(0)
}

func (m *MockStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}

func (m *MockStorage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockStorage) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}
