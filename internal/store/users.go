package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"oj/internal/model"
)

// ErrUserNotFound is returned by lookups that find no matching row.
var ErrUserNotFound = errors.New("store: user not found")

// ErrUserNameTaken is returned by Create and CreateWithID on a unique
// violation.
var ErrUserNameTaken = errors.New("store: user name already taken")

// UserStore is the account half of the User/Contest Store.
type UserStore struct {
	db *pgxpool.Pool
}

func NewUserStore(db *pgxpool.Pool) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) FindByName(ctx context.Context, name string) (model.User, error) {
	const q = `SELECT id, name, password_hash, role FROM users WHERE name=$1`
	var u model.User
	err := s.db.QueryRow(ctx, q, name).Scan(&u.ID, &u.Name, &u.PasswordHash, &u.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, err
	}
	return u, nil
}

func (s *UserStore) FindByID(ctx context.Context, id int64) (model.User, error) {
	const q = `SELECT id, name, password_hash, role FROM users WHERE id=$1`
	var u model.User
	err := s.db.QueryRow(ctx, q, id).Scan(&u.ID, &u.Name, &u.PasswordHash, &u.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, err
	}
	return u, nil
}

// Create inserts a user, returning ErrUserNameTaken on a unique violation.
func (s *UserStore) Create(ctx context.Context, name, passwordHash string, role model.Role) (model.User, error) {
	const q = `INSERT INTO users (name, password_hash, role) VALUES ($1,$2,$3) RETURNING id`
	var id int64
	err := s.db.QueryRow(ctx, q, name, passwordHash, role).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return model.User{}, ErrUserNameTaken
		}
		return model.User{}, err
	}
	return model.User{ID: id, Name: name, PasswordHash: passwordHash, Role: role}, nil
}

// CreateWithID inserts a user at a caller-chosen id, bypassing the id
// BIGSERIAL sequence. The sequence never produces 0, so the root account at
// id 0 never collides with an auto-assigned id; any other chosen id is not
// reserved from the sequence and a later Create can collide with it. Used
// to bootstrap the reserved root account and by the admin user-management
// endpoint's optional id field.
func (s *UserStore) CreateWithID(ctx context.Context, id int64, name, passwordHash string, role model.Role) (model.User, error) {
	const q = `INSERT INTO users (id, name, password_hash, role) VALUES ($1,$2,$3,$4)`
	if _, err := s.db.Exec(ctx, q, id, name, passwordHash, role); err != nil {
		if isUniqueViolation(err) {
			return model.User{}, ErrUserNameTaken
		}
		return model.User{}, err
	}
	return model.User{ID: id, Name: name, PasswordHash: passwordHash, Role: role}, nil
}

// UpdateRole changes a user's role in place.
func (s *UserStore) UpdateRole(ctx context.Context, id int64, role model.Role) error {
	tag, err := s.db.Exec(ctx, `UPDATE users SET role=$1 WHERE id=$2`, role, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdatePassword replaces a user's stored password hash.
func (s *UserStore) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	tag, err := s.db.Exec(ctx, `UPDATE users SET password_hash=$1 WHERE id=$2`, passwordHash, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *UserStore) HasAdmin(ctx context.Context) (bool, error) {
	const q = `SELECT 1 FROM users WHERE role=$1 LIMIT 1`
	var one int
	err := s.db.QueryRow(ctx, q, model.RoleAdmin).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *UserStore) List(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, role FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Role); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
