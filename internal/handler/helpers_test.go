package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quillpost/quillpost-go/internal/auth"
	"github.com/quillpost/quillpost-go/internal/crypto"
	"github.com/quillpost/quillpost-go/internal/repository"
	"github.com/quillpost/quillpost-go/internal/repository/memory"
	"github.com/quillpost/quillpost-go/internal/service"
)

type testAPI struct {
	handler http.Handler
	stores  repository.Stores
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	stores := memory.New().Stores()
	tokens := crypto.NewTokenIssuer([]byte("handler-test-secret-32-bytes-long"), time.Hour)
	params := crypto.HashParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

	authSvc, err := service.NewAuthService(stores.Users, stores.Sessions, tokens, service.WithHashParams(params))
	require.NoError(t, err)

	chain := auth.NewChain(
		auth.NewBearerStrategy(tokens, stores.Users),
		auth.NewSessionStrategy(stores.Sessions, stores.Users),
	)

	h := NewRouter(Routes{
		Auth:  NewAuthHandler(authSvc, CookieConfig{}),
		Users: NewUserHandler(service.NewUserService(stores.Users)),
		Posts: NewPostHandler(service.NewPostService(stores.Posts, stores.Users)),
		Guard: auth.NewGuard(chain),
	})
	return &testAPI{handler: h, stores: stores}
}

type call struct {
	method string
	path   string
	body   any
	token  string
	cookie *http.Cookie
}

func (a *testAPI) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	switch b := c.body.(type) {
	case nil:
	case string:
		body.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&body).Encode(b))
	}

	req := httptest.NewRequest(c.method, c.path, &body)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

type authBody struct {
	Success   bool   `json:"success"`
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
	Error     string `json:"error"`
	User      struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Email    string `json:"email"`
		Username string `json:"username"`
	} `json:"user"`
}

func (a *testAPI) register(t *testing.T, name, email, password string) authBody {
	t.Helper()
	rec := a.do(t, call{method: "POST", path: "/api/v1/auth/register", body: map[string]string{
		"name": name, "email": email, "password": password,
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[authBody](t, rec)
}
