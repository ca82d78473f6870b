package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/quillpost/quillpost-go/internal/model"
)

func newMock(t *testing.T, dialect Dialect) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return Wrap(db, dialect), mock
}

func testUser() *model.User {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &model.User{
		ID:           "01HQ4S2Z7W3X1Y0V9T8R6P5N4M",
		Name:         "Ada",
		Email:        "ada@example.com",
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

var userCols = []string{"id", "name", "email", "username", "password_hash", "salt", "created_at", "updated_at"}

func TestSentinelErrors(t *testing.T) {
	if ErrUserNotFound.Error() != "user not found" {
		t.Fatalf("unexpected error message: %s", ErrUserNotFound.Error())
	}
	if ErrDuplicateEmail.Error() != "email already exists" {
		t.Fatalf("unexpected error message: %s", ErrDuplicateEmail.Error())
	}
	if errors.Is(ErrDuplicateEmail, ErrDuplicateUsername) {
		t.Fatal("duplicate email and username errors must be distinct")
	}
}

func TestUserCreate(t *testing.T) {
	db, mock := newMock(t, MySQL)
	u := testUser()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (id, name, email, username, password_hash, salt, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)")).
		WithArgs(u.ID, u.Name, u.Email, nil, u.PasswordHash, "", u.CreatedAt, u.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := NewUserRepository(db).Create(context.Background(), u); err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserCreateDuplicateMySQL(t *testing.T) {
	cases := map[string]struct {
		msg  string
		want error
	}{
		"email":    {"Duplicate entry 'ada@example.com' for key 'users.users_email_key'", ErrDuplicateEmail},
		"username": {"Duplicate entry 'ada' for key 'users.users_username_key'", ErrDuplicateUsername},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			db, mock := newMock(t, MySQL)
			mock.ExpectExec("INSERT INTO users").
				WillReturnError(&mysql.MySQLError{Number: 1062, Message: tc.msg})

			err := NewUserRepository(db).Create(context.Background(), testUser())
			if !errors.Is(err, tc.want) {
				t.Fatalf("Create() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestUserCreateDuplicatePostgres(t *testing.T) {
	db, mock := newMock(t, Postgres)
	mock.ExpectExec(regexp.QuoteMeta("VALUES ($1, $2, $3, $4, $5, $6, $7, $8)")).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	err := NewUserRepository(db).Create(context.Background(), testUser())
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("Create() error = %v, want ErrDuplicateEmail", err)
	}
}

func TestUserCreateOtherErrorPassesThrough(t *testing.T) {
	db, mock := newMock(t, MySQL)
	boom := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO users").WillReturnError(boom)

	err := NewUserRepository(db).Create(context.Background(), testUser())
	if !errors.Is(err, boom) {
		t.Fatalf("Create() error = %v, want %v", err, boom)
	}
}

func TestUserGetByEmail(t *testing.T) {
	db, mock := newMock(t, MySQL)
	u := testUser()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = ?")).
		WithArgs(u.Email).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(u.ID, u.Name, u.Email, "ada", u.PasswordHash, "", u.CreatedAt, u.UpdatedAt))

	got, err := NewUserRepository(db).GetByEmail(context.Background(), u.Email)
	if err != nil {
		t.Fatalf("GetByEmail() unexpected error: %v", err)
	}
	if got.ID != u.ID || got.Username != "ada" || got.PasswordHash != u.PasswordHash {
		t.Errorf("GetByEmail() = %+v", got)
	}
}

func TestUserGetNotFound(t *testing.T) {
	db, mock := newMock(t, Postgres)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE username = $1")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(userCols))

	_, err := NewUserRepository(db).GetByUsername(context.Background(), "ghost")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("GetByUsername() error = %v, want ErrUserNotFound", err)
	}
}

func TestUserListNullUsername(t *testing.T) {
	db, mock := newMock(t, MySQL)
	u := testUser()

	mock.ExpectQuery("FROM users ORDER BY created_at").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(u.ID, u.Name, u.Email, nil, u.PasswordHash, "", u.CreatedAt, u.UpdatedAt))

	users, err := NewUserRepository(db).List(context.Background())
	if err != nil {
		t.Fatalf("List() unexpected error: %v", err)
	}
	if len(users) != 1 || users[0].Username != "" {
		t.Fatalf("List() = %+v", users)
	}
}

func TestUserUpdatePassword(t *testing.T) {
	db, mock := newMock(t, MySQL)
	at := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash = ?, salt = '', updated_at = ? WHERE id = ?")).
		WithArgs("new-hash", at, "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE users").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewUserRepository(db)
	if err := repo.UpdatePassword(context.Background(), "u1", "new-hash", at); err != nil {
		t.Fatalf("UpdatePassword() unexpected error: %v", err)
	}
	if err := repo.UpdatePassword(context.Background(), "u2", "new-hash", at); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("UpdatePassword() missing user error = %v, want ErrUserNotFound", err)
	}
}

func TestUserDelete(t *testing.T) {
	db, mock := newMock(t, Postgres)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewUserRepository(db)
	if err := repo.Delete(context.Background(), "u1"); err != nil {
		t.Fatalf("Delete() unexpected error: %v", err)
	}
	if err := repo.Delete(context.Background(), "u1"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("second Delete() error = %v, want ErrUserNotFound", err)
	}
}

func TestRebind(t *testing.T) {
	q := "SELECT a FROM t WHERE x = ? AND y = ? OR z = ?"

	if got := Wrap(nil, MySQL).rebind(q); got != q {
		t.Errorf("mysql rebind = %q, want unchanged", got)
	}
	if got, want := Wrap(nil, Postgres).rebind(q), "SELECT a FROM t WHERE x = $1 AND y = $2 OR z = $3"; got != want {
		t.Errorf("postgres rebind = %q, want %q", got, want)
	}
}

func TestParseDialect(t *testing.T) {
	cases := map[string]Dialect{"mysql": MySQL, "MySQL": MySQL, "postgres": Postgres, "pgx": Postgres}
	for in, want := range cases {
		got, err := ParseDialect(in)
		if err != nil || got != want {
			t.Errorf("ParseDialect(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseDialect("sqlite"); err == nil {
		t.Error("ParseDialect(sqlite) expected error")
	}
}

func TestDuplicateKeyIgnoresOtherErrors(t *testing.T) {
	for _, err := range []error{nil, sql.ErrNoRows, &mysql.MySQLError{Number: 1045}, &pgconn.PgError{Code: "23503"}} {
		if _, ok := duplicateKey(err); ok {
			t.Errorf("duplicateKey(%v) = true", err)
		}
	}
}
