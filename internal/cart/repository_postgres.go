package cart

import (
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type PostgresRepository struct {
	db *sql.DB
}

const getCartQuery = `
        SELECT p."productID", p."productName", p."productPrice"
        FROM products p
        WHERE p."productID" = ANY($1::int[])
        ORDER BY array_position($1::int[], p."productID")
    `

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetCart loads the jsonb product->quantity map stored on the user row and
// joins product names and prices onto it.
func (r *PostgresRepository) GetCart(userID int) ([]Item, error) {
	var raw sql.NullString
	if err := r.db.QueryRow(`SELECT cart FROM users WHERE "userId" = $1`, userID).Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if !raw.Valid || raw.String == "" {
		return []Item{}, nil
	}

	m := make(map[string]int)
	if err := json.Unmarshal([]byte(raw.String), &m); err != nil {
		// legacy rows held a plain array of product ids
		var arr []int
		if err2 := json.Unmarshal([]byte(raw.String), &arr); err2 == nil {
			m = make(map[string]int, len(arr))
			for _, pid := range arr {
				m[strconv.Itoa(pid)]++
			}
		} else {
			return nil, err
		}
	}

	ids := make([]int, 0, len(m))
	for k := range m {
		if pid, err := strconv.Atoi(k); err == nil {
			ids = append(ids, pid)
		}
	}
	if len(ids) == 0 {
		return []Item{}, nil
	}

	rows, err := r.db.Query(getCartQuery, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Item, 0, len(ids))
	for rows.Next() {
		var it Item
		var price decimal.Decimal
		if err := rows.Scan(&it.ProductID, &it.Name, &price); err != nil {
			return nil, err
		}
		it.UnitPrice = price
		it.Quantity = m[strconv.Itoa(it.ProductID)]
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) ClearCart(userID int) error {
	res, err := r.db.Exec(`UPDATE users SET cart = '{}', "updateAt" = $1 WHERE "userId" = $2`,
		time.Now().UTC().Format(time.RFC3339), userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
