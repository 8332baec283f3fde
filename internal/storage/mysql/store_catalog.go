package mysql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/moimlab/moim-server/internal/model"
	"github.com/moimlab/moim-server/internal/storage"
)

const storeCols = `id, owner_id, name, category, deposit_amount, created_at, updated_at`

func getStore(ctx context.Context, q querier, id uint64) (*model.Store, error) {
	var st model.Store
	err := q.QueryRowContext(ctx, `SELECT `+storeCols+` FROM stores WHERE id = ?`, id).
		Scan(&st.ID, &st.OwnerID, &st.Name, &st.Category, &st.DepositAmount, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrStoreNotFound
		}
		return nil, err
	}
	return &st, nil
}

// GetStore resolves a venue from the catalog.
func (s *Store) GetStore(ctx context.Context, id uint64) (*model.Store, error) {
	return getStore(ctx, s.db, id)
}

// GetStore resolves a venue inside a transaction (venue selection and
// settlement start read the deposit amount under the reservation lock).
func (t *Tx) GetStore(ctx context.Context, id uint64) (*model.Store, error) {
	return getStore(ctx, t.tx, id)
}

// ListStores returns the whole catalog, newest first.
func (s *Store) ListStores(ctx context.Context) ([]model.Store, error) {
	const q = `SELECT ` + storeCols + ` FROM stores ORDER BY id DESC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Store, 0)
	for rows.Next() {
		var st model.Store
		if err := rows.Scan(&st.ID, &st.OwnerID, &st.Name, &st.Category, &st.DepositAmount,
			&st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// CreateStore inserts a venue and populates its ID.
func (s *Store) CreateStore(ctx context.Context, st *model.Store) error {
	const q = `INSERT INTO stores (owner_id, name, category, deposit_amount) VALUES (?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q, st.OwnerID, st.Name, st.Category, st.DepositAmount)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	st.ID = uint64(id)
	return nil
}
