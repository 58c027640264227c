package infrastructure

import (
	"context"

	"github.com/ecocycle/waste-tracking/shared/models"
	"github.com/ecocycle/waste-tracking/tracking-service/domain"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// ErrInsufficientStock is returned when a stock move would drive the source
// counter negative
var ErrInsufficientStock = errors.New("insufficient stock")

// PostgresStockLedger implements StockLedger using PostgreSQL
type PostgresStockLedger struct {
	db *sqlx.DB
}

// NewPostgresStockLedger creates a new PostgresStockLedger
func NewPostgresStockLedger(db *sqlx.DB) *PostgresStockLedger {
	return &PostgresStockLedger{db: db}
}

type postgresStockRow struct {
	WasteTypeID string `db:"waste_type_id"`
	Qty         int64  `db:"qty"`
}

// GetUserStock returns all counters of a user
func (l *PostgresStockLedger) GetUserStock(ctx context.Context, user models.ID) (domain.Stock, error) {
	var rows []postgresStockRow
	err := l.db.SelectContext(ctx, &rows,
		`SELECT waste_type_id, qty FROM stock WHERE user_id = $1`, user.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user stock")
	}

	stock := make(domain.Stock, len(rows))
	for _, row := range rows {
		wasteTypeID, err := models.NewID(row.WasteTypeID)
		if err != nil {
			return nil, errors.Wrap(err, "invalid waste type ID")
		}
		stock[wasteTypeID] = row.Qty
	}

	return stock, nil
}

// IncrementStock adds qty to a counter, creating it when absent
func (l *PostgresStockLedger) IncrementStock(ctx context.Context, wasteType, user models.ID, qty int64) error {
	query := `
		INSERT INTO stock (user_id, waste_type_id, qty)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, waste_type_id) DO UPDATE SET qty = stock.qty + EXCLUDED.qty`

	_, err := l.db.ExecContext(ctx, query, user.String(), wasteType.String(), qty)
	if err != nil {
		return errors.Wrap(err, "failed to increment stock")
	}

	return nil
}

// MoveStock moves qty between two users' counters. The decrement and
// increment commit together; the source counter never goes negative.
func (l *PostgresStockLedger) MoveStock(ctx context.Context, wasteType, from, to models.ID, qty int64) error {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin stock move")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE stock SET qty = qty - $1 WHERE user_id = $2 AND waste_type_id = $3 AND qty >= $1`,
		qty, from.String(), wasteType.String())
	if err != nil {
		return errors.Wrap(err, "failed to decrement source stock")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check stock decrement")
	}
	if affected == 0 {
		return errors.Wrapf(ErrInsufficientStock, "user %s, waste type %s", from, wasteType)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stock (user_id, waste_type_id, qty)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, waste_type_id) DO UPDATE SET qty = stock.qty + EXCLUDED.qty`,
		to.String(), wasteType.String(), qty)
	if err != nil {
		return errors.Wrap(err, "failed to increment destination stock")
	}

	return tx.Commit()
}

// RestoreUserStock writes back a snapshot taken before a workflow started.
// Compensation only.
func (l *PostgresStockLedger) RestoreUserStock(ctx context.Context, user models.ID, stock domain.Stock) error {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin stock restore")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM stock WHERE user_id = $1`, user.String()); err != nil {
		return errors.Wrap(err, "failed to clear user stock")
	}

	for wasteType, qty := range stock {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO stock (user_id, waste_type_id, qty) VALUES ($1, $2, $3)`,
			user.String(), wasteType.String(), qty)
		if err != nil {
			return errors.Wrap(err, "failed to restore stock counter")
		}
	}

	return tx.Commit()
}
