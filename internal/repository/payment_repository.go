package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/Proton-105/storefront-bot/internal/domain"
	apperrors "github.com/Proton-105/storefront-bot/internal/errors"
)

// PaymentRepository defines persistence operations for payment requests.
type PaymentRepository interface {
	// Create stores a pending payment and returns its id.
	Create(ctx context.Context, payment domain.Payment) (int64, error)
	FindByID(ctx context.Context, id int64) (*domain.Payment, error)
	// DecideIfPending moves a pending payment to status and reports whether a row changed.
	DecideIfPending(ctx context.Context, id int64, status domain.PaymentStatus, decidedAt time.Time) (bool, error)
	MarkAdminNotified(ctx context.Context, id int64) error
	// ListPending returns pending payments, most recent first.
	ListPending(ctx context.Context, limit, offset int) ([]domain.PendingPayment, error)
	CountPending(ctx context.Context) (int, error)
	Count(ctx context.Context) (int, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
	// SumCompleted totals completed amounts submitted at or after since; a zero since sums everything.
	SumCompleted(ctx context.Context, since time.Time) (decimal.Decimal, error)
}

type paymentRow struct {
	ID            int64        `db:"id"`
	UserID        int64        `db:"user_id"`
	Username      string       `db:"username"`
	AmountMinor   int64        `db:"amount_minor"`
	Method        string       `db:"method"`
	Status        string       `db:"status"`
	Comment       string       `db:"comment"`
	SubmittedAt   time.Time    `db:"submitted_at"`
	DecidedAt     sql.NullTime `db:"decided_at"`
	AdminNotified bool         `db:"admin_notified"`
}

func (r paymentRow) toDomain() domain.Payment {
	p := domain.Payment{
		ID:            r.ID,
		UserID:        r.UserID,
		Username:      r.Username,
		Amount:        domain.FromMinor(r.AmountMinor),
		Method:        domain.PaymentMethod(r.Method),
		Status:        domain.PaymentStatus(r.Status),
		Comment:       r.Comment,
		SubmittedAt:   r.SubmittedAt,
		AdminNotified: r.AdminNotified,
	}
	if r.DecidedAt.Valid {
		decided := r.DecidedAt.Time
		p.DecidedAt = &decided
	}
	return p
}

type pendingRow struct {
	paymentRow
	FirstName sql.NullString `db:"first_name"`
}

const paymentColumns = `p.id, p.user_id, p.username, p.amount_minor, p.method, p.status,
		p.comment, p.submitted_at, p.decided_at, p.admin_notified`

type paymentRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

func NewPaymentRepository(db *sqlx.DB, log *slog.Logger) PaymentRepository {
	if log == nil {
		log = slog.Default()
	}

	return &paymentRepository{
		db:  db,
		log: log,
	}
}

func (r *paymentRepository) Create(ctx context.Context, payment domain.Payment) (int64, error) {
	const query = `
		INSERT INTO payments (user_id, username, amount_minor, method, status, comment, submitted_at, admin_notified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`

	status := payment.Status
	if status == "" {
		status = domain.PaymentPending
	}

	var id int64
	if err := r.db.QueryRowxContext(ctx, r.db.Rebind(query),
		payment.UserID,
		payment.Username,
		domain.ToMinor(payment.Amount),
		string(payment.Method),
		string(status),
		payment.Comment,
		dbTime(payment.SubmittedAt),
		false,
	).Scan(&id); err != nil {
		r.log.Error("failed to insert payment", slog.Int64("user_id", payment.UserID), slog.Any("error", err))
		return 0, apperrors.NewStoreError("insert payment", err)
	}

	return id, nil
}

// FindByID returns domain.ErrPaymentNotFound for unknown ids.
func (r *paymentRepository) FindByID(ctx context.Context, id int64) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments p WHERE p.id = ?`

	var row paymentRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(query), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, apperrors.NewStoreError("select payment", err)
	}

	payment := row.toDomain()
	return &payment, nil
}

func (r *paymentRepository) DecideIfPending(ctx context.Context, id int64, status domain.PaymentStatus, decidedAt time.Time) (bool, error) {
	const query = `
		UPDATE payments
		SET status = ?, decided_at = ?
		WHERE id = ? AND status = ?
	`

	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), string(status), dbTime(decidedAt), id, string(domain.PaymentPending))
	if err != nil {
		r.log.Error("failed to decide payment", slog.Int64("payment_id", id), slog.Any("error", err))
		return false, apperrors.NewStoreError("decide payment", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.NewStoreError("decide payment rows", err)
	}

	return affected == 1, nil
}

func (r *paymentRepository) MarkAdminNotified(ctx context.Context, id int64) error {
	const query = `UPDATE payments SET admin_notified = ? WHERE id = ?`

	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), true, id); err != nil {
		return apperrors.NewStoreError("mark payment notified", err)
	}
	return nil
}

func (r *paymentRepository) ListPending(ctx context.Context, limit, offset int) ([]domain.PendingPayment, error) {
	query := `
		SELECT ` + paymentColumns + `, u.first_name
		FROM payments p
		LEFT JOIN users u ON u.user_id = p.user_id
		WHERE p.status = ?
		ORDER BY p.submitted_at DESC, p.id DESC
		LIMIT ? OFFSET ?
	`

	var rows []pendingRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), string(domain.PaymentPending), limit, offset); err != nil {
		r.log.Error("failed to list pending payments", slog.Any("error", err))
		return nil, apperrors.NewStoreError("list pending payments", err)
	}

	out := make([]domain.PendingPayment, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.PendingPayment{
			Payment:   row.toDomain(),
			FirstName: row.FirstName.String,
		})
	}
	return out, nil
}

func (r *paymentRepository) CountPending(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM payments WHERE status = ?`

	var count int
	if err := r.db.GetContext(ctx, &count, r.db.Rebind(query), string(domain.PaymentPending)); err != nil {
		return 0, apperrors.NewStoreError("count pending payments", err)
	}
	return count, nil
}

func (r *paymentRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM payments`); err != nil {
		return 0, apperrors.NewStoreError("count payments", err)
	}
	return count, nil
}

func (r *paymentRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM payments WHERE submitted_at >= ?`

	var count int
	if err := r.db.GetContext(ctx, &count, r.db.Rebind(query), dbTime(since)); err != nil {
		return 0, apperrors.NewStoreError("count payments since", err)
	}
	return count, nil
}

func (r *paymentRepository) SumCompleted(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	const query = `
		SELECT CAST(COALESCE(SUM(amount_minor), 0) AS BIGINT)
		FROM payments
		WHERE status = ? AND submitted_at >= ?
	`

	var minor int64
	if err := r.db.GetContext(ctx, &minor, r.db.Rebind(query), string(domain.PaymentCompleted), dbTime(since)); err != nil {
		return decimal.Zero, apperrors.NewStoreError("sum completed payments", err)
	}
	return domain.FromMinor(minor), nil
}
