package auth

import (
	"context"
	"database/sql"
	"errors"

	"jobboard.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Users(ctx context.Context) UserStore { return &userStore{db: s.db} }
func (s *PGStore) Roles(ctx context.Context) RoleStore { return &roleStore{db: s.db} }
func (s *PGStore) Permissions(ctx context.Context) PermissionStore {
	return &permissionStore{db: s.db}
}

// User store ---------------------------------------------------------------

type userStore struct{ db *sql.DB }

const userColumns = `id, email, name, password_hash, active, refresh_token, role_id, company_id, created_at, updated_at`

func (s *userStore) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, email, name, password_hash, active, refresh_token, role_id, company_id)
		 values($1,$2,$3,$4,$5,$6,$7,$8)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.Active, u.RefreshToken, u.RoleID, u.CompanyID,
	)
	return err
}

func scanUser(row interface{ Scan(dest ...any) error }) (*User, error) {
	var (
		u         User
		roleID    sql.NullString
		companyID sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Active,
		&u.RefreshToken, &roleID, &companyID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if roleID.Valid {
		u.RoleID = &roleID.String
	}
	if companyID.Valid {
		u.CompanyID = &companyID.String
	}
	return &u, nil
}

func (s *userStore) Find(ctx context.Context, id string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id))
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email=$1`, email))
}

func (s *userStore) FindByRefreshTokenAndEmail(ctx context.Context, token, email string) (*User, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where refresh_token=$1 and email=$2`, token, email))
}

func (s *userStore) List(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+userColumns+` from users order by created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *userStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from users where email=$1)`, email).Scan(&exists)
	return exists, err
}

func (s *userStore) Update(ctx context.Context, u *User) error {
	res, err := s.db.ExecContext(ctx,
		`update users set email=$2, name=$3, active=$4, role_id=$5, company_id=$6, updated_at=now()
		 where id=$1`,
		u.ID, u.Email, u.Name, u.Active, u.RoleID, u.CompanyID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *userStore) UpdateRefreshToken(ctx context.Context, email, token string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set refresh_token=$2, updated_at=now() where email=$1`, email, token)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *userStore) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set password_hash=$2, updated_at=now() where email=$1`, email, passwordHash)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *userStore) SetActive(ctx context.Context, email string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`update users set active=$2, updated_at=now() where email=$1`, email, active)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *userStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from users where id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Role store ---------------------------------------------------------------

type roleStore struct{ db *sql.DB }

func (s *roleStore) Create(ctx context.Context, role *Role) error {
	if role.ID == "" {
		role.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into roles(id, name, description, active) values($1,$2,$3,$4)`,
		role.ID, role.Name, role.Description, role.Active,
	)
	return err
}

func (s *roleStore) Find(ctx context.Context, id string) (*Role, error) {
	role, err := s.scanRole(s.db.QueryRowContext(ctx,
		`select id, name, description, active, created_at, updated_at from roles where id=$1`, id))
	if err != nil {
		return nil, err
	}
	return s.loadPermissions(ctx, role)
}

func (s *roleStore) FindByName(ctx context.Context, name string) (*Role, error) {
	role, err := s.scanRole(s.db.QueryRowContext(ctx,
		`select id, name, description, active, created_at, updated_at from roles where name=$1`, name))
	if err != nil {
		return nil, err
	}
	return s.loadPermissions(ctx, role)
}

func (s *roleStore) List(ctx context.Context) ([]*Role, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, name, description, active, created_at, updated_at from roles order by created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*Role
	for rows.Next() {
		role, err := s.scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, role := range roles {
		if _, err := s.loadPermissions(ctx, role); err != nil {
			return nil, err
		}
	}
	return roles, nil
}

func (s *roleStore) Update(ctx context.Context, role *Role) error {
	res, err := s.db.ExecContext(ctx,
		`update roles set name=$2, description=$3, active=$4, updated_at=now() where id=$1`,
		role.ID, role.Name, role.Description, role.Active,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *roleStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `update users set role_id=null where role_id=$1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id=$1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `delete from roles where id=$1`, id)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *roleStore) SetPermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id=$1`, roleID); err != nil {
		return err
	}
	for _, permID := range permissionIDs {
		_, err := tx.ExecContext(ctx,
			`insert into role_permissions(role_id, permission_id) values($1,$2)`, roleID, permID)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *roleStore) scanRole(row interface{ Scan(dest ...any) error }) (*Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.Description, &role.Active,
		&role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

// loadPermissions resolves the role's permission set eagerly so the gate
// never queries mid-check.
func (s *roleStore) loadPermissions(ctx context.Context, role *Role) (*Role, error) {
	rows, err := s.db.QueryContext(ctx,
		`select p.id, p.name, p.api_path, p.method, p.module, p.created_at, p.updated_at
		 from permissions p
		 join role_permissions rp on rp.permission_id=p.id
		 where rp.role_id=$1
		 order by p.module, p.name`, role.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	role.Permissions = nil
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.APIPath, &p.Method, &p.Module,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		role.Permissions = append(role.Permissions, p)
	}
	return role, rows.Err()
}

// Permission store ---------------------------------------------------------

type permissionStore struct{ db *sql.DB }

func (s *permissionStore) Create(ctx context.Context, p *Permission) error {
	if p.ID == "" {
		p.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into permissions(id, name, api_path, method, module) values($1,$2,$3,$4,$5)`,
		p.ID, p.Name, p.APIPath, p.Method, p.Module,
	)
	return err
}

func (s *permissionStore) Find(ctx context.Context, id string) (*Permission, error) {
	var p Permission
	err := s.db.QueryRowContext(ctx,
		`select id, name, api_path, method, module, created_at, updated_at from permissions where id=$1`, id).
		Scan(&p.ID, &p.Name, &p.APIPath, &p.Method, &p.Module, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *permissionStore) List(ctx context.Context) ([]Permission, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, name, api_path, method, module, created_at, updated_at from permissions
		 order by module, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.APIPath, &p.Method, &p.Module,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (s *permissionStore) Update(ctx context.Context, p *Permission) error {
	res, err := s.db.ExecContext(ctx,
		`update permissions set name=$2, api_path=$3, method=$4, module=$5, updated_at=now() where id=$1`,
		p.ID, p.Name, p.APIPath, p.Method, p.Module,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *permissionStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `delete from role_permissions where permission_id=$1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `delete from permissions where id=$1`, id)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *permissionStore) Ensure(ctx context.Context, perms []Permission) error {
	for _, p := range perms {
		if p.ID == "" {
			p.ID = ids.New()
		}
		// Both name and (api_path, method) carry unique constraints; a row
		// already holding either one leaves the table unchanged.
		_, err := s.db.ExecContext(ctx,
			`insert into permissions(id, name, api_path, method, module)
			 values($1,$2,$3,$4,$5) on conflict do nothing`,
			p.ID, p.Name, p.APIPath, p.Method, p.Module,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
