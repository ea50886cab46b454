package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrSystemCategory is returned when deleting a seeded system category.
var ErrSystemCategory = errors.New("system categories cannot be deleted")

// CategoryRepo handles categories.
type CategoryRepo struct {
	db *sql.DB
}

func NewCategoryRepo(db *sql.DB) *CategoryRepo {
	return &CategoryRepo{db: db}
}

func (r *CategoryRepo) Upsert(ctx context.Context, c Category) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO categories(id, name, description, icon, color, parent_id, is_system)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET
	 description=excluded.description,
	 icon=excluded.icon,
	 color=excluded.color,
	 parent_id=excluded.parent_id;
	`, c.ID, c.Name, c.Description, c.Icon, c.Color, c.ParentID, c.IsSystem)
	return err
}

func (r *CategoryRepo) Get(ctx context.Context, id string) (Category, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT id, name, description, icon, color, parent_id, is_system, created_at
	FROM categories WHERE id = ?`, id)
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Icon, &c.Color, &c.ParentID, &c.IsSystem, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Category{}, fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	return c, err
}

func (r *CategoryRepo) List(ctx context.Context) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, name, description, icon, color, parent_id, is_system, created_at
	FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Icon, &c.Color, &c.ParentID, &c.IsSystem, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Delete removes a category. Seeded system categories are protected.
func (r *CategoryRepo) Delete(ctx context.Context, id string) error {
	c, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.IsSystem {
		return ErrSystemCategory
	}
	_, err = r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	return err
}
