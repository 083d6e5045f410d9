package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"storefront/internal/domain"
)

type UserRepo interface {
	// UpsertOTP creates the user on first sight and stores a fresh code.
	UpsertOTP(ctx context.Context, email, code string, expiresAt time.Time) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	ClearOTP(ctx context.Context, id uuid.UUID) error
	UpdateProfile(ctx context.Context, id uuid.UUID, profile domain.Profile) error
}

type userRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) UserRepo {
	return &userRepo{db: db}
}

const userColumns = `id, email, name, phone, address, city, pincode,
	COALESCE(otp_code, ''), otp_expires_at, created_at, updated_at`

func (r *userRepo) UpsertOTP(ctx context.Context, email, code string, expiresAt time.Time) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, otp_code, otp_expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE
		SET otp_code = EXCLUDED.otp_code,
		    otp_expires_at = EXCLUDED.otp_expires_at,
		    updated_at = now()
		RETURNING `+userColumns,
		uuid.New(), email, code, expiresAt.UTC(),
	)
	return scanUser(row)
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", email))
}

func (r *userRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
}

func (r *userRepo) ClearOTP(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET otp_code = NULL, otp_expires_at = NULL, updated_at = now()
		WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (r *userRepo) UpdateProfile(ctx context.Context, id uuid.UUID, p domain.Profile) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET name = $2, phone = $3, address = $4, city = $5, pincode = $6, updated_at = now()
		WHERE id = $1`,
		id, p.Name, p.Phone, p.Address, p.City, p.Pincode,
	)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u         domain.User
		expiresAt sql.NullTime
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.Phone,
		&u.Address,
		&u.City,
		&u.Pincode,
		&u.OTPCode,
		&expiresAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		u.OTPExpiresAt = &t
	}
	return &u, nil
}
