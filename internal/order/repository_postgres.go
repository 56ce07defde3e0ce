package order

import (
	"database/sql"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const orderColumns = `"orderID", "userID", "providerRef", "amountMinor", currency, status, "createdAt", "updatedAt"`

func (r *PostgresRepository) Create(ord Order) (Order, error) {
	// the unique index on "providerRef" makes the provider transaction id
	// an idempotency key: a replayed callback hits DO UPDATE and gets the
	// existing row back
	query := `INSERT INTO orders ("userID", "providerRef", "amountMinor", currency, status, "createdAt", "updatedAt")
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING ` + orderColumns
	if ord.ProviderRef != nil {
		query = `INSERT INTO orders ("userID", "providerRef", "amountMinor", currency, status, "createdAt", "updatedAt")
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT ("providerRef") DO UPDATE SET "updatedAt" = EXCLUDED."updatedAt"
        RETURNING ` + orderColumns
	}

	err := r.db.QueryRow(query,
		ord.UserID, ord.ProviderRef, ord.AmountMinor, ord.Currency, ord.Status, ord.CreatedAt, ord.UpdatedAt).
		Scan(&ord.OrderID, &ord.UserID, &ord.ProviderRef, &ord.AmountMinor, &ord.Currency, &ord.Status, &ord.CreatedAt, &ord.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	return ord, nil
}

func (r *PostgresRepository) Complete(orderID int, providerRef string, updatedAt string) (Order, error) {
	var ord Order
	err := r.db.QueryRow(`UPDATE orders
        SET status = $2, "providerRef" = $3, "updatedAt" = $4
        WHERE "orderID" = $1
        RETURNING `+orderColumns,
		orderID, StatusCompleted, providerRef, updatedAt).
		Scan(&ord.OrderID, &ord.UserID, &ord.ProviderRef, &ord.AmountMinor, &ord.Currency, &ord.Status, &ord.CreatedAt, &ord.UpdatedAt)
	if err == sql.ErrNoRows {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	return ord, nil
}

func (r *PostgresRepository) GetByID(id int) (Order, error) {
	var ord Order
	err := r.db.QueryRow(`SELECT `+orderColumns+` FROM orders WHERE "orderID" = $1`, id).
		Scan(&ord.OrderID, &ord.UserID, &ord.ProviderRef, &ord.AmountMinor, &ord.Currency, &ord.Status, &ord.CreatedAt, &ord.UpdatedAt)
	if err == sql.ErrNoRows {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	return ord, nil
}

func (r *PostgresRepository) GetByProviderRef(ref string) (Order, error) {
	var ord Order
	err := r.db.QueryRow(`SELECT `+orderColumns+` FROM orders WHERE "providerRef" = $1`, ref).
		Scan(&ord.OrderID, &ord.UserID, &ord.ProviderRef, &ord.AmountMinor, &ord.Currency, &ord.Status, &ord.CreatedAt, &ord.UpdatedAt)
	if err == sql.ErrNoRows {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	return ord, nil
}

// ListByUser returns a user's orders, newest first.
func (r *PostgresRepository) ListByUser(userID int) ([]Order, error) {
	rows, err := r.db.Query(`SELECT `+orderColumns+`
        FROM orders
        WHERE "userID" = $1
        ORDER BY "orderID" DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		var ord Order
		if err := rows.Scan(&ord.OrderID, &ord.UserID, &ord.ProviderRef, &ord.AmountMinor, &ord.Currency, &ord.Status, &ord.CreatedAt, &ord.UpdatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, ord)
	}
	return orders, rows.Err()
}
