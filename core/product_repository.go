package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	BrandName   string    `json:"brand_name"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url"`
	CategoryID  int64     `json:"category_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type Offer struct {
	ID              int64     `json:"id"`
	ProductID       int64     `json:"product_id"`
	MerchantID      int64     `json:"merchant_id"`
	AffiliateURL    string    `json:"affiliate_url"`
	OriginalPrice   float64   `json:"original_price"`
	CurrentPrice    float64   `json:"current_price"`
	DiscountPercent float64   `json:"discount_percent"`
	IsInStock       bool      `json:"is_in_stock"`
	CreatedAt       time.Time `json:"created_at"`
}

type Referral struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	OfferID      int64     `json:"offer_id"`
	TrackingCode string    `json:"tracking_code"`
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
	CreatedAt    time.Time `json:"created_at"`
}

type ProductRepository interface {
	FindByName(ctx context.Context, name string) (*Product, error)
	Create(ctx context.Context, p Product) (*Product, error)
	ListByCategory(ctx context.Context, categoryID int64, skip, limit int) ([]Product, error)
}

type OfferRepository interface {
	FindByProduct(ctx context.Context, productID int64) (*Offer, error)
	Create(ctx context.Context, o Offer) (*Offer, error)
}

type ReferralRepository interface {
	FindByOffer(ctx context.Context, offerID int64) (*Referral, error)
	Create(ctx context.Context, ref Referral) (*Referral, error)
}

type PgProductRepository struct {
	db *pgxpool.Pool
}

func NewPgProductRepository(db *pgxpool.Pool) *PgProductRepository {
	return &PgProductRepository{db: db}
}

func (r *PgProductRepository) FindByName(ctx context.Context, name string) (*Product, error) {
	const q = `SELECT id, name, brand_name, description, image_url, category_id, created_at FROM products WHERE name=$1`
	var p Product
	err := r.db.QueryRow(ctx, q, name).Scan(&p.ID, &p.Name, &p.BrandName, &p.Description, &p.ImageURL, &p.CategoryID, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *PgProductRepository) Create(ctx context.Context, p Product) (*Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	const q = `INSERT INTO products (name, brand_name, description, image_url, category_id) VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at`
	if err := r.db.QueryRow(ctx, q, p.Name, p.BrandName, p.Description, p.ImageURL, p.CategoryID).Scan(&p.ID, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PgProductRepository) ListByCategory(ctx context.Context, categoryID int64, skip, limit int) ([]Product, error) {
	if skip < 0 || limit <= 0 {
		return nil, errors.New("invalid pagination")
	}
	rows, err := r.db.Query(ctx, `
SELECT id, name, brand_name, description, image_url, category_id, created_at
FROM products
WHERE category_id=$1
ORDER BY id
LIMIT $2 OFFSET $3
`, categoryID, limit, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]Product, 0, limit)
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.BrandName, &p.Description, &p.ImageURL, &p.CategoryID, &p.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

type PgOfferRepository struct {
	db *pgxpool.Pool
}

func NewPgOfferRepository(db *pgxpool.Pool) *PgOfferRepository {
	return &PgOfferRepository{db: db}
}

func (r *PgOfferRepository) FindByProduct(ctx context.Context, productID int64) (*Offer, error) {
	const q = `SELECT id, product_id, merchant_id, affiliate_url, original_price, current_price, discount_percent, is_in_stock, created_at FROM offers WHERE product_id=$1`
	var o Offer
	err := r.db.QueryRow(ctx, q, productID).Scan(&o.ID, &o.ProductID, &o.MerchantID, &o.AffiliateURL, &o.OriginalPrice, &o.CurrentPrice, &o.DiscountPercent, &o.IsInStock, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

func (r *PgOfferRepository) Create(ctx context.Context, o Offer) (*Offer, error) {
	const q = `INSERT INTO offers (product_id, merchant_id, affiliate_url, original_price, current_price, discount_percent, is_in_stock) VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at`
	if err := r.db.QueryRow(ctx, q, o.ProductID, o.MerchantID, o.AffiliateURL, o.OriginalPrice, o.CurrentPrice, o.DiscountPercent, o.IsInStock).Scan(&o.ID, &o.CreatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

type PgReferralRepository struct {
	db *pgxpool.Pool
}

func NewPgReferralRepository(db *pgxpool.Pool) *PgReferralRepository {
	return &PgReferralRepository{db: db}
}

func (r *PgReferralRepository) FindByOffer(ctx context.Context, offerID int64) (*Referral, error) {
	const q = `SELECT id, user_id, offer_id, tracking_code, ip_address, user_agent, created_at FROM referrals WHERE offer_id=$1`
	var ref Referral
	err := r.db.QueryRow(ctx, q, offerID).Scan(&ref.ID, &ref.UserID, &ref.OfferID, &ref.TrackingCode, &ref.IPAddress, &ref.UserAgent, &ref.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &ref, nil
}

func (r *PgReferralRepository) Create(ctx context.Context, ref Referral) (*Referral, error) {
	const q = `INSERT INTO referrals (user_id, offer_id, tracking_code, ip_address, user_agent) VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at`
	if err := r.db.QueryRow(ctx, q, ref.UserID, ref.OfferID, ref.TrackingCode, ref.IPAddress, ref.UserAgent).Scan(&ref.ID, &ref.CreatedAt); err != nil {
		return nil, err
	}
	return &ref, nil
}
