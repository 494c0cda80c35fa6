package repository

import (
	"context"
	"errors"

	"shopmunim-backend/internal/db"
	"shopmunim-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type UserRepository struct {
	DB *db.Postgres
}

type CreateUserParams struct {
	Name  string
	Phone string
	Role  domain.UserRole
}

const userColumns = `id, name, phone, active_role, admin_roles, profile_photo, verified, pin_hash, created_at, updated_at`

func (r UserRepository) Create(ctx context.Context, p CreateUserParams) (*domain.User, error) {
	if p.Role == "" {
		p.Role = domain.RoleCustomer
	}
	row := r.DB.Pool.QueryRow(ctx, `
		INSERT INTO users (id, name, phone, active_role, created_at, updated_at)
		VALUES ($1,$2,$3,$4, now(), now())
		RETURNING `+userColumns,
		uuid.NewString(), p.Name, p.Phone, string(p.Role))
	return scanUser(row)
}

func (r UserRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	row := r.DB.Pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE phone=$1 AND deleted_at IS NULL
	`, phone)
	return notFound(scanUser(row))
}

func (r UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.DB.Pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id=$1 AND deleted_at IS NULL
	`, id)
	return notFound(scanUser(row))
}

// UpdateProfile changes only the non-nil fields.
func (r UserRepository) UpdateProfile(ctx context.Context, id string, name, phone *string) (*domain.User, error) {
	row := r.DB.Pool.QueryRow(ctx, `
		UPDATE users
		SET name=COALESCE($2, name),
			phone=COALESCE($3, phone),
			updated_at=now()
		WHERE id=$1 AND deleted_at IS NULL
		RETURNING `+userColumns,
		id, name, phone)
	return notFound(scanUser(row))
}

func (r UserRepository) SetRole(ctx context.Context, id string, role domain.UserRole) (*domain.User, error) {
	row := r.DB.Pool.QueryRow(ctx, `
		UPDATE users SET active_role=$2, updated_at=now()
		WHERE id=$1 AND deleted_at IS NULL
		RETURNING `+userColumns,
		id, string(role))
	return notFound(scanUser(row))
}

// SetPhoto stores a base64 photo; an empty string removes it.
func (r UserRepository) SetPhoto(ctx context.Context, id, photo string) (*domain.User, error) {
	row := r.DB.Pool.QueryRow(ctx, `
		UPDATE users SET profile_photo=$2, updated_at=now()
		WHERE id=$1 AND deleted_at IS NULL
		RETURNING `+userColumns,
		id, photo)
	return notFound(scanUser(row))
}

// SetPINHash stores a bcrypt hash; nil clears the PIN.
func (r UserRepository) SetPINHash(ctx context.Context, id string, hash *string) error {
	tag, err := r.DB.Pool.Exec(ctx, `
		UPDATE users SET pin_hash=$2, updated_at=now()
		WHERE id=$1 AND deleted_at IS NULL
	`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r UserRepository) PINHash(ctx context.Context, id string) (string, error) {
	var hash pgtype.Text
	err := r.DB.Pool.QueryRow(ctx, `SELECT pin_hash FROM users WHERE id=$1 AND deleted_at IS NULL`, id).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return hash.String, err
}

// SoftDelete marks the user deleted and drops their sessions and device tokens.
func (r UserRepository) SoftDelete(ctx context.Context, id string) error {
	return r.DB.InTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE users SET deleted_at=now() WHERE id=$1 AND deleted_at IS NULL`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM sessions WHERE user_id=$1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM fcm_tokens WHERE user_id=$1`, id); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE customers SET user_id=NULL WHERE user_id=$1`, id)
		return err
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u       domain.User
		role    string
		pinHash pgtype.Text
	)
	if err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Phone,
		&role,
		&u.AdminRoles,
		&u.ProfilePhoto,
		&u.Verified,
		&pinHash,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.ActiveRole = domain.UserRole(role)
	u.PINSet = pinHash.Valid && pinHash.String != ""
	return &u, nil
}

func notFound[T any](v *T, err error) (*T, error) {
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// IsDuplicate detects unique constraint violation.
func IsDuplicate(err error) bool {
	return db.IsUniqueViolation(err)
}
