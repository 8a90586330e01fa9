package auth

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockStore(t *testing.T) (*PGStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return NewPGStore(db), mock
}

func userRows(u *User) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "name", "password_hash", "active",
		"refresh_token", "role_id", "company_id", "created_at", "updated_at",
	}).AddRow(u.ID, u.Email, u.Name, u.PasswordHash, u.Active,
		u.RefreshToken, nil, nil, time.Now(), time.Now())
}

func TestPGUserFindByEmail(t *testing.T) {
	store, mock := newMockStore(t)
	want := &User{ID: "u1", Email: "ada@example.com", Name: "Ada", PasswordHash: "h", Active: true}

	mock.ExpectQuery(regexp.QuoteMeta(`select id, email, name, password_hash, active, refresh_token, role_id, company_id, created_at, updated_at from users where email=$1`)).
		WithArgs("ada@example.com").
		WillReturnRows(userRows(want))

	got, err := store.Users(context.Background()).FindByEmail(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if got.ID != want.ID || got.Email != want.Email || got.RoleID != nil {
		t.Fatalf("got %+v", got)
	}
}

func TestPGUserFindByEmailNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`select .+ from users where email=\$1`).
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Users(context.Background()).FindByEmail(context.Background(), "nobody@example.com")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindByEmail = %v, want ErrNotFound", err)
	}
}

func TestPGUserFindByRefreshTokenAndEmail(t *testing.T) {
	store, mock := newMockStore(t)
	want := &User{ID: "u1", Email: "ada@example.com", Name: "Ada", RefreshToken: "tok"}

	mock.ExpectQuery(regexp.QuoteMeta(`where refresh_token=$1 and email=$2`)).
		WithArgs("tok", "ada@example.com").
		WillReturnRows(userRows(want))

	got, err := store.Users(context.Background()).FindByRefreshTokenAndEmail(context.Background(), "tok", "ada@example.com")
	if err != nil {
		t.Fatalf("FindByRefreshTokenAndEmail: %v", err)
	}
	if got.RefreshToken != "tok" {
		t.Fatalf("refresh_token = %q", got.RefreshToken)
	}
}

// An empty presented token must never match a cleared slot, so the store
// refuses it without touching the database.
func TestPGUserFindByRefreshTokenEmpty(t *testing.T) {
	store, _ := newMockStore(t)

	_, err := store.Users(context.Background()).FindByRefreshTokenAndEmail(context.Background(), "", "ada@example.com")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindByRefreshTokenAndEmail = %v, want ErrNotFound", err)
	}
}

func TestPGUserUpdateRefreshToken(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`update users set refresh_token=$2, updated_at=now() where email=$1`)).
		WithArgs("ada@example.com", "new-token").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Users(context.Background()).UpdateRefreshToken(context.Background(), "ada@example.com", "new-token"); err != nil {
		t.Fatalf("UpdateRefreshToken: %v", err)
	}
}

func TestPGUserUpdateRefreshTokenUnknownEmail(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`update users set refresh_token=`).
		WithArgs("nobody@example.com", "").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Users(context.Background()).UpdateRefreshToken(context.Background(), "nobody@example.com", "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateRefreshToken = %v, want ErrNotFound", err)
	}
}

func TestPGRoleFindLoadsPermissions(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`from roles where id=$1`)).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "active", "created_at", "updated_at"}).
			AddRow("r1", "ADMIN", "full access", true, time.Now(), time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta(`join role_permissions rp on rp.permission_id=p.id`)).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "api_path", "method", "module", "created_at", "updated_at"}).
			AddRow("p1", "JOBS_LIST", "/v1/jobs", "GET", "JOBS", time.Now(), time.Now()).
			AddRow("p2", "JOBS_CREATE", "/v1/jobs", "POST", "JOBS", time.Now(), time.Now()))

	role, err := store.Roles(context.Background()).Find(context.Background(), "r1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(role.Permissions) != 2 {
		t.Fatalf("permissions = %d, want 2", len(role.Permissions))
	}
	if role.Permissions[0].APIPath != "/v1/jobs" {
		t.Fatalf("api_path = %q", role.Permissions[0].APIPath)
	}
}

func TestPGRoleSetPermissionsReplacesSet(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`delete from role_permissions where role_id=$1`)).
		WithArgs("r1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta(`insert into role_permissions(role_id, permission_id) values($1,$2)`)).
		WithArgs("r1", "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`insert into role_permissions(role_id, permission_id) values($1,$2)`)).
		WithArgs("r1", "p2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.Roles(context.Background()).SetPermissions(context.Background(), "r1", []string{"p1", "p2"})
	if err != nil {
		t.Fatalf("SetPermissions: %v", err)
	}
}

func TestPGPermissionEnsureUpserts(t *testing.T) {
	store, mock := newMockStore(t)

	perms := []Permission{
		{Name: "JOBS_LIST", APIPath: "/v1/jobs", Method: "GET", Module: "JOBS"},
		{Name: "JOBS_CREATE", APIPath: "/v1/jobs", Method: "POST", Module: "JOBS"},
	}
	// The bare conflict target covers both unique constraints on the table,
	// so a builtin renamed to a path another row owns cannot abort startup.
	for range perms {
		mock.ExpectExec(`values\(\$1,\$2,\$3,\$4,\$5\) on conflict do nothing`).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	if err := store.Permissions(context.Background()).Ensure(context.Background(), perms); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
}

func TestPGUserCreateAssignsID(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`insert into users`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	u := &User{Email: "ada@example.com", Name: "Ada", PasswordHash: "h"}
	if err := store.Users(context.Background()).Create(context.Background(), u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.ID == "" {
		t.Fatal("Create did not assign an id")
	}
}
