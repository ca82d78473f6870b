package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/quillpost/quillpost-go/internal/crypto"
	"github.com/quillpost/quillpost-go/internal/model"
	"github.com/quillpost/quillpost-go/internal/repository"
	"github.com/quillpost/quillpost-go/internal/repository/memory"
)

var (
	testParams = crypto.HashParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	testSecret = []byte("auth-test-secret-that-is-32-bytes!")
	testNow    = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

func newStores(t *testing.T) repository.Stores {
	t.Helper()
	return memory.New().Stores()
}

func seedUser(t *testing.T, stores repository.Stores, id, email, username, password string) *model.User {
	t.Helper()
	hash, err := crypto.HashPasswordWithParams(password, testParams)
	if err != nil {
		t.Fatalf("hashing: %v", err)
	}
	u := &model.User{ID: id, Name: "User " + id, Email: email, Username: username, PasswordHash: hash, CreatedAt: testNow, UpdatedAt: testNow}
	if err := stores.Users.Create(context.Background(), u); err != nil {
		t.Fatalf("creating user: %v", err)
	}
	return u
}

func newIssuer() *crypto.TokenIssuer {
	return crypto.NewTokenIssuer(testSecret, time.Hour, crypto.WithClock(func() time.Time { return testNow }))
}

type stubStrategy struct {
	name   string
	result Result
	calls  int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Authenticate(context.Context, *http.Request) Result {
	s.calls++
	return s.result
}

type brokenUsers struct{}

var errStoreDown = errors.New("store unreachable")

func (brokenUsers) GetByID(context.Context, string) (*model.User, error)       { return nil, errStoreDown }
func (brokenUsers) GetByEmail(context.Context, string) (*model.User, error)    { return nil, errStoreDown }
func (brokenUsers) GetByUsername(context.Context, string) (*model.User, error) { return nil, errStoreDown }
