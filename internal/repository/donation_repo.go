// internal/repository/donation_repo.go
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"donation-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// DBTX is the subset of *pgxpool.Pool (and pgx.Tx) the repository needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type DonationRepository interface {
	// CreateIfAbsent inserts the donation unless its receipt number is already
	// stored. created is false for a duplicate; d is left untouched then.
	CreateIfAbsent(ctx context.Context, d *domain.Donation) (created bool, err error)
	GetByReceiptNumber(ctx context.Context, receiptNumber string) (*domain.Donation, error)
	CountByReceiptNumber(ctx context.Context, receiptNumber string) (int64, error)
}

type donationRepo struct {
	db DBTX
}

func NewDonationRepository(db DBTX) DonationRepository {
	return &donationRepo{db: db}
}

const (
	qInsertDonation = `
		INSERT INTO donations (amount, phone, receipt_number)
		VALUES ($1, $2, $3)
		ON CONFLICT (receipt_number) DO NOTHING
		RETURNING id, created_at
	`
	qDonationByReceipt = `
		SELECT id, amount, phone, receipt_number, created_at
		FROM donations
		WHERE receipt_number = $1
	`
	qCountByReceipt = `SELECT COUNT(*) FROM donations WHERE receipt_number = $1`
)

func (r *donationRepo) CreateIfAbsent(ctx context.Context, d *domain.Donation) (bool, error) {
	var (
		id        int64
		createdAt time.Time
	)
	err := r.db.QueryRow(ctx, qInsertDonation, d.Amount, d.Phone, d.ReceiptNumber).Scan(&id, &createdAt)
	switch {
	case err == nil:
		d.ID = id
		d.CreatedAt = createdAt
		return true, nil
	case errors.Is(err, pgx.ErrNoRows), isUniqueViolation(err):
		// DO NOTHING returns no row; 23505 only shows up if the constraint is
		// hit some other way, e.g. a concurrent insert on an older server
		return false, nil
	default:
		return false, fmt.Errorf("insert donation %s: %w", d.ReceiptNumber, err)
	}
}

func (r *donationRepo) GetByReceiptNumber(ctx context.Context, receiptNumber string) (*domain.Donation, error) {
	var d domain.Donation
	err := r.db.QueryRow(ctx, qDonationByReceipt, receiptNumber).Scan(
		&d.ID,
		&d.Amount,
		&d.Phone,
		&d.ReceiptNumber,
		&d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDonationNotFound
		}
		return nil, fmt.Errorf("get donation %s: %w", receiptNumber, err)
	}
	return &d, nil
}

func (r *donationRepo) CountByReceiptNumber(ctx context.Context, receiptNumber string) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, qCountByReceipt, receiptNumber).Scan(&n); err != nil {
		return 0, fmt.Errorf("count donations %s: %w", receiptNumber, err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
