package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"donation-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

// fakeDB answers QueryRow with row and records the last query.
type fakeDB struct {
	row       pgx.Row
	lastQuery string
	lastArgs  []any
	execErr   error
}

func (f *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.lastQuery = sql
	return pgconn.CommandTag{}, f.execErr
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.lastQuery = sql
	f.lastArgs = args
	return f.row
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func TestCreateIfAbsent(t *testing.T) {
	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	boom := errors.New("connection reset")

	tests := []struct {
		name        string
		row         pgx.Row
		wantCreated bool
		wantErr     error
	}{
		{
			name: "inserted",
			row: fakeRow{scan: func(dest ...any) error {
				*dest[0].(*int64) = 7
				*dest[1].(*time.Time) = created
				return nil
			}},
			wantCreated: true,
		},
		{name: "conflict returns no row", row: fakeRow{}},
		{name: "unique violation", row: fakeRow{scan: func(...any) error {
			return &pgconn.PgError{Code: "23505", ConstraintName: "donations_receipt_number_key"}
		}}},
		{name: "other failure", row: fakeRow{scan: func(...any) error { return boom }}, wantErr: boom},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db := &fakeDB{row: tc.row}
			repo := NewDonationRepository(db)
			d := &domain.Donation{Amount: decimal.NewFromInt(50), Phone: "254712345678", ReceiptNumber: "QWE123"}

			ok, err := repo.CreateIfAbsent(context.Background(), d)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateIfAbsent() error: %v", err)
			}
			if ok != tc.wantCreated {
				t.Fatalf("created = %v, want %v", ok, tc.wantCreated)
			}
			if !strings.Contains(db.lastQuery, "ON CONFLICT (receipt_number) DO NOTHING") {
				t.Fatalf("insert is not conflict-safe: %s", db.lastQuery)
			}
			if tc.wantCreated && (d.ID != 7 || !d.CreatedAt.Equal(created)) {
				t.Fatalf("donation not populated: %+v", d)
			}
			if !tc.wantCreated && d.ID != 0 {
				t.Fatalf("duplicate must not populate ID, got %d", d.ID)
			}
		})
	}
}

func TestGetByReceiptNumberNotFound(t *testing.T) {
	repo := NewDonationRepository(&fakeDB{row: fakeRow{}})
	if _, err := repo.GetByReceiptNumber(context.Background(), "NOPE1"); !errors.Is(err, domain.ErrDonationNotFound) {
		t.Fatalf("err = %v, want ErrDonationNotFound", err)
	}
}

func TestEnsureSchema(t *testing.T) {
	db := &fakeDB{}
	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("EnsureSchema() error: %v", err)
	}
	for _, want := range []string{"receipt_number TEXT NOT NULL UNIQUE", "CHECK (amount > 0)"} {
		if !strings.Contains(db.lastQuery, want) {
			t.Fatalf("schema missing %q", want)
		}
	}

	db.execErr = errors.New("permission denied")
	if err := EnsureSchema(context.Background(), db); err == nil {
		t.Fatal("expected error")
	}
}
