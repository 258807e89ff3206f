package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain/model"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

// paymentRepo implements repository.PaymentRepository on Postgres.
//
// Expected schema:
//
//	CREATE TABLE payments (
//	  id                TEXT PRIMARY KEY,
//	  order_id          TEXT,
//	  organization_id   TEXT NOT NULL,
//	  user_id           TEXT NOT NULL,
//	  amount            BIGINT NOT NULL,
//	  currency          TEXT NOT NULL,
//	  gateway           TEXT NOT NULL,
//	  gateway_intent_id TEXT,
//	  gateway_tx_id     TEXT,
//	  status            TEXT NOT NULL,
//	  failure_reason    TEXT,
//	  created_at        TIMESTAMPTZ NOT NULL,
//	  updated_at        TIMESTAMPTZ NOT NULL,
//	  UNIQUE (gateway, gateway_intent_id)
//	);
type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, order_id, organization_id, user_id, amount, currency, gateway, gateway_intent_id, gateway_tx_id, status, failure_reason, created_at, updated_at`

func (r *paymentRepo) Save(ctx context.Context, p *model.Payment) error {
	const q = `
INSERT INTO payments (` + paymentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,NULLIF($8,''),NULLIF($9,''),$10,$11,$12,$13);`

	_, err := r.pool.Exec(ctx, q,
		p.ID, p.OrderID, p.OrganizationID, p.UserID, p.Amount, p.Currency,
		string(p.Gateway), p.GatewayIntentID, p.GatewayTxID, string(p.Status),
		p.FailureReason, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// two rows must never claim the same provider-side transaction
			return fmt.Errorf("duplicate gateway intent: %w", domain.ErrInvalidArgument)
		}
		return fmt.Errorf("save payment: %v: %w", err, domain.ErrPersistence)
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, id string) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1;`
	return r.scanOne(r.pool.QueryRow(ctx, q, id))
}

func (r *paymentRepo) FindByGatewayIntent(ctx context.Context, gw model.Gateway, intentID string) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE gateway=$1 AND gateway_intent_id=$2;`
	return r.scanOne(r.pool.QueryRow(ctx, q, string(gw), intentID))
}

func (r *paymentRepo) FindByOrder(ctx context.Context, orderID string, gw model.Gateway) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE order_id=$1 AND gateway=$2 ORDER BY created_at DESC LIMIT 1;`
	return r.scanOne(r.pool.QueryRow(ctx, q, orderID, string(gw)))
}

func (r *paymentRepo) UpdateIntent(ctx context.Context, id, intentID, txID string) error {
	const q = `
UPDATE payments SET
  gateway_intent_id = COALESCE(NULLIF($2,''), gateway_intent_id),
  gateway_tx_id     = COALESCE(NULLIF($3,''), gateway_tx_id),
  updated_at        = NOW()
WHERE id=$1;`
	tag, err := r.pool.Exec(ctx, q, id, intentID, txID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("duplicate gateway intent: %w", domain.ErrInvalidArgument)
		}
		return fmt.Errorf("update intent: %v: %w", err, domain.ErrPersistence)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// TransitionFromPending is the single-statement compare-and-set that makes
// near-simultaneous webhook deliveries safe without a distributed lock.
func (r *paymentRepo) TransitionFromPending(ctx context.Context, id string, status model.PaymentStatus, failureReason, txID string) (bool, error) {
	const q = `
UPDATE payments SET
  status         = $2,
  failure_reason = NULLIF($3,''),
  gateway_tx_id  = COALESCE(NULLIF($4,''), gateway_tx_id),
  updated_at     = NOW()
WHERE id=$1 AND status='pending';`
	tag, err := r.pool.Exec(ctx, q, id, string(status), failureReason, txID)
	if err != nil {
		return false, fmt.Errorf("transition payment: %v: %w", err, domain.ErrPersistence)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	rows, err := r.pool.Query(ctx, q, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending: %v: %w", err, domain.ErrPersistence)
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending rows: %v: %w", err, domain.ErrPersistence)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *paymentRepo) scanOne(row pgx.Row) (*model.Payment, error) {
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func scanPayment(row rowScanner) (*model.Payment, error) {
	var (
		p             model.Payment
		gateway       string
		status        string
		orderID       *string
		intentID      *string
		txID          *string
		failureReason *string
	)
	err := row.Scan(&p.ID, &orderID, &p.OrganizationID, &p.UserID, &p.Amount, &p.Currency,
		&gateway, &intentID, &txID, &status, &failureReason, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan payment: %v: %w", err, domain.ErrPersistence)
	}
	p.Gateway = model.Gateway(gateway)
	p.Status = model.PaymentStatus(status)
	if orderID != nil {
		p.OrderID = *orderID
	}
	if intentID != nil {
		p.GatewayIntentID = *intentID
	}
	if txID != nil {
		p.GatewayTxID = *txID
	}
	if failureReason != nil {
		p.FailureReason = *failureReason
	}
	return &p, nil
}
