package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/quillpost/quillpost-go/internal/model"
)

func okHandler(t *testing.T, wantUser string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if wantUser == "" {
			if ok {
				t.Errorf("unexpected identity %+v", id)
			}
		} else if !ok || id.UserID != wantUser {
			t.Errorf("identity = %+v, want %s", id, wantUser)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Success {
		t.Error("error body has success=true")
	}
	return body.Error
}

func TestGuardRequire(t *testing.T) {
	tests := []struct {
		name       string
		result     Result
		wantStatus int
		wantMsg    string
		wantHeader string
	}{
		{
			name:       "authenticated",
			result:     authenticated("stub", &Identity{UserID: "u1"}),
			wantStatus: http.StatusOK,
		},
		{
			name:       "no credentials",
			result:     Result{Decision: Abstain},
			wantStatus: http.StatusUnauthorized,
			wantMsg:    "authentication required",
			wantHeader: `Bearer realm="quillpost"`,
		},
		{
			name:       "expired token",
			result:     rejected("stub", ReasonTokenExpired),
			wantStatus: http.StatusUnauthorized,
			wantMsg:    "token expired",
			wantHeader: `Bearer realm="quillpost", error="invalid_token", error_description="token expired"`,
		},
		{
			name:       "store failure",
			result:     errored("stub", errStoreDown),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantUser := ""
			if tt.result.Identity != nil {
				wantUser = tt.result.Identity.UserID
			}
			guard := NewGuard(NewChain(&stubStrategy{name: "stub", result: tt.result}))
			rec := httptest.NewRecorder()
			guard.Require(okHandler(t, wantUser)).ServeHTTP(rec, httptest.NewRequest("GET", "/me", nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantMsg != "" {
				if msg := decodeError(t, rec); msg != tt.wantMsg {
					t.Errorf("error = %q, want %q", msg, tt.wantMsg)
				}
				if strings.Contains(rec.Body.String(), errStoreDown.Error()) {
					t.Error("response leaks internal error")
				}
			}
			if got := rec.Header().Get("WWW-Authenticate"); got != tt.wantHeader {
				t.Errorf("WWW-Authenticate = %q, want %q", got, tt.wantHeader)
			}
		})
	}
}

func TestGuardOptional(t *testing.T) {
	for _, res := range []Result{
		rejected("stub", ReasonTokenMalformed),
		errored("stub", errStoreDown),
		{Decision: Abstain},
	} {
		guard := NewGuard(NewChain(&stubStrategy{name: "stub", result: res}))
		rec := httptest.NewRecorder()
		guard.Optional(okHandler(t, "")).ServeHTTP(rec, httptest.NewRequest("GET", "/posts", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%v: status = %d, want 200", res.Decision, rec.Code)
		}
	}

	guard := NewGuard(NewChain(&stubStrategy{name: "stub", result: authenticated("stub", &Identity{UserID: "u1"})}))
	rec := httptest.NewRecorder()
	guard.Optional(okHandler(t, "u1")).ServeHTTP(rec, httptest.NewRequest("GET", "/posts", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestGuardObserver(t *testing.T) {
	var got []string
	guard := NewGuard(
		NewChain(&stubStrategy{name: "bearer", result: rejected("", ReasonTokenExpired)}),
		WithObserver(func(strategy, outcome string) { got = append(got, strategy+"/"+outcome) }),
	)
	guard.Require(okHandler(t, "")).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if len(got) != 1 || got[0] != "bearer/rejected" {
		t.Fatalf("observed %v, want [bearer/rejected]", got)
	}
}

func TestGuardOptionalDoesNotObserveAnonymousReads(t *testing.T) {
	var got []string
	observe := WithObserver(func(strategy, outcome string) { got = append(got, strategy+"/"+outcome) })

	anonymous := NewGuard(NewChain(&stubStrategy{name: "bearer", result: Result{Decision: Abstain}}), observe)
	for i := 0; i < 3; i++ {
		anonymous.Optional(okHandler(t, "")).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/posts", nil))
	}
	if len(got) != 0 {
		t.Fatalf("anonymous reads observed %v, want none", got)
	}

	anonymous.Require(okHandler(t, "")).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/posts", nil))
	if len(got) != 1 || got[0] != "none/rejected" {
		t.Fatalf("protected route observed %v, want [none/rejected]", got)
	}

	got = nil
	expired := NewGuard(NewChain(&stubStrategy{name: "bearer", result: rejected("bearer", ReasonTokenExpired)}), observe)
	expired.Optional(okHandler(t, "")).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/posts", nil))
	if len(got) != 1 || got[0] != "bearer/rejected" {
		t.Fatalf("bad credentials on optional route observed %v, want [bearer/rejected]", got)
	}
}

func TestOwnership(t *testing.T) {
	post := &model.Post{ID: "p1", AuthorID: "author"}
	author := &Identity{UserID: "author"}
	other := &Identity{UserID: "other"}

	if !RequireOwner(author, post) {
		t.Error("author must own the post")
	}
	if RequireOwner(other, post) {
		t.Error("non-author must not own the post")
	}
	if RequireOwner(nil, post) || RequireOwner(&Identity{}, &model.Post{}) {
		t.Error("missing identity or empty ids must never match")
	}

	ctx := context.Background()
	if err := Authorize(ctx, post); err != ErrUnauthenticated {
		t.Errorf("Authorize(no identity) = %v, want ErrUnauthenticated", err)
	}
	if err := Authorize(WithIdentity(ctx, other), post); err != ErrForbidden {
		t.Errorf("Authorize(other) = %v, want ErrForbidden", err)
	}
	if err := Authorize(WithIdentity(ctx, author), post); err != nil {
		t.Errorf("Authorize(author) = %v, want nil", err)
	}
}
