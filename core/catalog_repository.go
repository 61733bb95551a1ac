package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

type CategoryRepository interface {
	FindByName(ctx context.Context, name string) (*Category, error)
	FindBySlug(ctx context.Context, slug string) (*Category, error)
	Create(ctx context.Context, name, slug string) (*Category, error)
	List(ctx context.Context) ([]Category, error)
}

type PgCategoryRepository struct {
	db *pgxpool.Pool
}

func NewPgCategoryRepository(db *pgxpool.Pool) *PgCategoryRepository {
	return &PgCategoryRepository{db: db}
}

func (r *PgCategoryRepository) FindByName(ctx context.Context, name string) (*Category, error) {
	const q = `SELECT id, name, slug, created_at FROM categories WHERE name=$1`
	return scanCategory(r.db.QueryRow(ctx, q, name))
}

func (r *PgCategoryRepository) FindBySlug(ctx context.Context, slug string) (*Category, error) {
	const q = `SELECT id, name, slug, created_at FROM categories WHERE slug=$1`
	return scanCategory(r.db.QueryRow(ctx, q, slug))
}

func scanCategory(row pgx.Row) (*Category, error) {
	var cat Category
	if err := row.Scan(&cat.ID, &cat.Name, &cat.Slug, &cat.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &cat, nil
}

func (r *PgCategoryRepository) Create(ctx context.Context, name, slug string) (*Category, error) {
	name = strings.TrimSpace(name)
	slug = strings.TrimSpace(slug)
	const q = `INSERT INTO categories (name, slug) VALUES ($1,$2) RETURNING id, created_at`
	cat := Category{Name: name, Slug: slug}
	if err := r.db.QueryRow(ctx, q, name, slug).Scan(&cat.ID, &cat.CreatedAt); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (r *PgCategoryRepository) List(ctx context.Context) ([]Category, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, slug, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		var cat Category
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.Slug, &cat.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, cat)
	}
	return items, rows.Err()
}

type Merchant struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	WebsiteURL string    `json:"website_url"`
	LogoURL    string    `json:"logo_url"`
	CreatedAt  time.Time `json:"created_at"`
}

type MerchantRepository interface {
	FindByName(ctx context.Context, name string) (*Merchant, error)
	Get(ctx context.Context, id int64) (*Merchant, error)
	Create(ctx context.Context, name, websiteURL, logoURL string) (*Merchant, error)
	Update(ctx context.Context, id int64, name, websiteURL, logoURL string) (*Merchant, error)
	Delete(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context) ([]Merchant, error)
}

type PgMerchantRepository struct {
	db *pgxpool.Pool
}

func NewPgMerchantRepository(db *pgxpool.Pool) *PgMerchantRepository {
	return &PgMerchantRepository{db: db}
}

func (r *PgMerchantRepository) FindByName(ctx context.Context, name string) (*Merchant, error) {
	const q = `SELECT id, name, website_url, logo_url, created_at FROM merchants WHERE name=$1`
	return scanMerchant(r.db.QueryRow(ctx, q, name))
}

func (r *PgMerchantRepository) Get(ctx context.Context, id int64) (*Merchant, error) {
	const q = `SELECT id, name, website_url, logo_url, created_at FROM merchants WHERE id=$1`
	return scanMerchant(r.db.QueryRow(ctx, q, id))
}

func scanMerchant(row pgx.Row) (*Merchant, error) {
	var m Merchant
	if err := row.Scan(&m.ID, &m.Name, &m.WebsiteURL, &m.LogoURL, &m.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *PgMerchantRepository) Create(ctx context.Context, name, websiteURL, logoURL string) (*Merchant, error) {
	name = strings.TrimSpace(name)
	const q = `INSERT INTO merchants (name, website_url, logo_url) VALUES ($1,$2,$3) RETURNING id, created_at`
	m := Merchant{Name: name, WebsiteURL: websiteURL, LogoURL: logoURL}
	if err := r.db.QueryRow(ctx, q, name, websiteURL, logoURL).Scan(&m.ID, &m.CreatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *PgMerchantRepository) Update(ctx context.Context, id int64, name, websiteURL, logoURL string) (*Merchant, error) {
	name = strings.TrimSpace(name)
	const q = `UPDATE merchants SET name=$1, website_url=$2, logo_url=$3 WHERE id=$4 RETURNING created_at`
	m := Merchant{ID: id, Name: name, WebsiteURL: websiteURL, LogoURL: logoURL}
	if err := r.db.QueryRow(ctx, q, name, websiteURL, logoURL, id).Scan(&m.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *PgMerchantRepository) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM merchants WHERE id=$1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgMerchantRepository) List(ctx context.Context) ([]Merchant, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, website_url, logo_url, created_at FROM merchants ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Merchant
	for rows.Next() {
		var m Merchant
		if err := rows.Scan(&m.ID, &m.Name, &m.WebsiteURL, &m.LogoURL, &m.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}
