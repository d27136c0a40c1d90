package repository

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"storefront_back_end/internal/models"
)

var productColumns = []string{
	"id", "name", "description", "price", "image", "seller_id", "created_at", "updated_at",
}

type ProductRepository struct {
	exec    DBTX
	builder squirrel.StatementBuilderType
}

func NewProductRepository(exec DBTX) *ProductRepository {
	return &ProductRepository{exec: exec, builder: newBuilder()}
}

// WithTx retourne un repository qui exécute ses requêtes dans tx
func (r *ProductRepository) WithTx(tx pgx.Tx) *ProductRepository {
	if tx == nil {
		return r
	}
	return &ProductRepository{exec: tx, builder: r.builder}
}

// List retourne tous les produits, les plus récents d'abord
func (r *ProductRepository) List(ctx context.Context) ([]models.Product, error) {
	stmt, args, err := r.builder.Select(productColumns...).
		From("products").
		OrderBy("created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list products sql: %w", err)
	}
	return r.queryProducts(ctx, "list products", stmt, args...)
}

// Search fait un ILIKE sur le nom et la description
func (r *ProductRepository) Search(ctx context.Context, term string, limit uint64) ([]models.Product, error) {
	pattern := "%" + term + "%"
	stmt, args, err := r.builder.Select(productColumns...).
		From("products").
		Where(squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"description": pattern},
		}).
		OrderBy("name ASC").
		Limit(limit).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build search products sql: %w", err)
	}
	return r.queryProducts(ctx, "search products", stmt, args...)
}

func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	stmt, args, err := r.builder.Select(productColumns...).
		From("products").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select product sql: %w", err)
	}

	p, err := scanProduct(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

// Price lit le prix courant d'un produit
func (r *ProductRepository) Price(ctx context.Context, id int64) (decimal.Decimal, error) {
	stmt, args, err := r.builder.Select("price").
		From("products").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return decimal.Zero, fmt.Errorf("build select product price sql: %w", err)
	}

	var price decimal.Decimal
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&price); err != nil {
		return decimal.Zero, translate(err)
	}
	return price, nil
}

func (r *ProductRepository) Create(ctx context.Context, p models.Product) (*models.Product, error) {
	now := time.Now().UTC()
	stmt, args, err := r.builder.Insert("products").
		Columns("name", "description", "price", "image", "seller_id", "created_at", "updated_at").
		Values(p.Name, p.Description, p.Price, p.Image, p.SellerID, now, now).
		Suffix("RETURNING id, name, description, price, image, seller_id, created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert product sql: %w", err)
	}

	created, err := scanProduct(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", translate(err))
	}
	return created, nil
}

// Update réécrit les champs modifiables du produit
func (r *ProductRepository) Update(ctx context.Context, p models.Product) (*models.Product, error) {
	stmt, args, err := r.builder.Update("products").
		Set("name", p.Name).
		Set("description", p.Description).
		Set("price", p.Price).
		Set("image", p.Image).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": p.ID}).
		Suffix("RETURNING id, name, description, price, image, seller_id, created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update product sql: %w", err)
	}

	updated, err := scanProduct(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		return nil, translate(err)
	}
	return updated, nil
}

func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	stmt, args, err := r.builder.Delete("products").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete product sql: %w", err)
	}

	res, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete product: %w", translate(err))
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ProductRepository) queryProducts(ctx context.Context, op, stmt string, args ...any) ([]models.Product, error) {
	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	products := make([]models.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

func scanProduct(row pgx.Row) (*models.Product, error) {
	var p models.Product
	if err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Image, &p.SellerID, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}
