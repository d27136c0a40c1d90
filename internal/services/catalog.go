package services

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"storefront_back_end/internal/apperr"
	"storefront_back_end/internal/metrics"
	"storefront_back_end/internal/models"
	"storefront_back_end/internal/repository"
	"storefront_back_end/internal/utils"
)

const defaultSearchLimit = 20

// ImageStorage stocke les images produits
type ImageStorage interface {
	Upload(ctx context.Context, img models.ImageUpload) (string, error)
	Delete(ctx context.Context, imageURL string) error
}

// SearchIndex est l'index de recherche plein texte
type SearchIndex interface {
	Index(ctx context.Context, p models.Product) error
	Remove(ctx context.Context, id int64) error
	Search(ctx context.Context, query string, limit int) ([]models.Product, error)
}

// ProductCache garde la liste complète des produits
type ProductCache interface {
	GetProducts(ctx context.Context) ([]models.Product, bool, error)
	SetProducts(ctx context.Context, products []models.Product) error
	InvalidateProducts(ctx context.Context) error
}

// CatalogService gère les produits des vendeurs
type CatalogService struct {
	products *repository.ProductRepository
	images   ImageStorage
	index    SearchIndex
	cache    ProductCache
	audit    Auditor
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// CatalogDeps : tous les champs sont optionnels
type CatalogDeps struct {
	Images  ImageStorage
	Index   SearchIndex
	Cache   ProductCache
	Audit   Auditor
	Metrics *metrics.Metrics
	Log     *zap.Logger
}

func NewCatalogService(products *repository.ProductRepository, deps CatalogDeps) *CatalogService {
	s := &CatalogService{
		products: products,
		images:   deps.Images,
		index:    deps.Index,
		cache:    deps.Cache,
		audit:    deps.Audit,
		metrics:  deps.Metrics,
		log:      deps.Log,
	}
	if s.audit == nil {
		s.audit = nopAuditor{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// List retourne tous les produits, depuis le cache Redis si possible
func (s *CatalogService) List(ctx context.Context) ([]models.Product, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.GetProducts(ctx)
		if err != nil {
			s.log.Warn("⚠️ Cache produits indisponible", zap.Error(err))
		}
		s.metrics.CacheLookup(ok)
		if ok {
			return cached, nil
		}
	}

	products, err := s.products.List(ctx)
	if err != nil {
		return nil, apperr.Internal(err, "Failed to fetch products")
	}

	if s.cache != nil {
		if err := s.cache.SetProducts(ctx, products); err != nil {
			s.log.Warn("⚠️ Mise en cache des produits échouée", zap.Error(err))
		}
	}
	return products, nil
}

func (s *CatalogService) Get(ctx context.Context, id int64) (*models.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("Product not found")
	}
	if err != nil {
		return nil, apperr.Internal(err, "Failed to fetch product")
	}
	return p, nil
}

// Search interroge Elasticsearch puis Postgres en repli
func (s *CatalogService) Search(ctx context.Context, query string, limit int) ([]models.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("Query parameter q is required")
	}
	if limit <= 0 || limit > 100 {
		limit = defaultSearchLimit
	}

	if s.index != nil {
		found, err := s.index.Search(ctx, query, limit)
		if err == nil {
			return found, nil
		}
		s.log.Warn("⚠️ Recherche Elastic échouée, repli Postgres", zap.Error(err))
	}

	found, err := s.products.Search(ctx, query, uint64(limit))
	if err != nil {
		return nil, apperr.Internal(err, "Failed to search products")
	}
	return found, nil
}

// Create enregistre un produit appartenant au vendeur
func (s *CatalogService) Create(ctx context.Context, seller models.Principal, in models.ProductInput, img *models.ImageUpload) (*models.Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	fields := make(map[string]string)
	if in.Name == "" {
		fields["name"] = "is required"
	}
	if !in.Price.IsPositive() {
		fields["price"] = "must be greater than 0"
	}
	if len(fields) > 0 {
		return nil, apperr.InvalidFields(fields)
	}

	p := models.Product{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price.Round(2),
		SellerID:    seller.ID,
	}
	if img != nil {
		url, err := s.uploadImage(ctx, *img)
		if err != nil {
			return nil, err
		}
		p.Image = &url
	}

	created, err := s.products.Create(ctx, p)
	if err != nil {
		if p.Image != nil {
			s.deleteImage(ctx, *p.Image)
		}
		return nil, apperr.Internal(err, "Failed to create product")
	}

	s.afterWrite(ctx, created)
	s.audit.Record(ctx, utils.NewAuditEntry(seller, utils.ACTION_PRODUCT_CREATE, utils.RESOURCE_PRODUCT,
		strconv.FormatInt(created.ID, 10), created))
	s.log.Info("📦 Produit créé", zap.Int64("product_id", created.ID), zap.String("seller_id", seller.ID))
	return created, nil
}

// Update modifie un produit : réservé à son vendeur ou à un admin
func (s *CatalogService) Update(ctx context.Context, actor models.Principal, id int64, patch models.ProductPatch, img *models.ImageUpload) (*models.Product, error) {
	current, err := s.ownedProduct(ctx, actor, id, "Not authorized to update this product")
	if err != nil {
		return nil, err
	}

	next := *current
	fields := make(map[string]string)
	if patch.Name != nil {
		if next.Name = strings.TrimSpace(*patch.Name); next.Name == "" {
			fields["name"] = "must not be empty"
		}
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	if patch.Price != nil {
		if !patch.Price.IsPositive() {
			fields["price"] = "must be greater than 0"
		}
		next.Price = patch.Price.Round(2)
	}
	if len(fields) > 0 {
		return nil, apperr.InvalidFields(fields)
	}

	if img != nil {
		url, err := s.uploadImage(ctx, *img)
		if err != nil {
			return nil, err
		}
		next.Image = &url
	}

	updated, err := s.products.Update(ctx, next)
	if err != nil {
		if img != nil {
			s.deleteImage(ctx, *next.Image)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("Product not found")
		}
		return nil, apperr.Internal(err, "Failed to update product")
	}

	// l'ancienne image est remplacée
	if img != nil && current.Image != nil {
		s.deleteImage(ctx, *current.Image)
	}

	s.afterWrite(ctx, updated)
	entry := utils.NewAuditEntry(actor, utils.ACTION_PRODUCT_UPDATE, utils.RESOURCE_PRODUCT,
		strconv.FormatInt(updated.ID, 10), updated)
	entry.OldValue = current.Name + " @ " + current.Price.StringFixed(2)
	s.audit.Record(ctx, entry)
	return updated, nil
}

// Delete supprime un produit : réservé à son vendeur ou à un admin
func (s *CatalogService) Delete(ctx context.Context, actor models.Principal, id int64) error {
	current, err := s.ownedProduct(ctx, actor, id, "Not authorized to delete this product")
	if err != nil {
		return err
	}

	err = s.products.Delete(ctx, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("Product not found")
	case errors.Is(err, repository.ErrReferenced):
		return apperr.Validation("Product is referenced by existing orders")
	case err != nil:
		return apperr.Internal(err, "Failed to delete product")
	}

	if current.Image != nil {
		s.deleteImage(ctx, *current.Image)
	}
	s.invalidate(ctx)
	if s.index != nil {
		if err := s.index.Remove(ctx, id); err != nil {
			s.log.Warn("⚠️ Retrait de l'index échoué", zap.Int64("product_id", id), zap.Error(err))
		}
	}
	s.audit.Record(ctx, utils.NewAuditEntry(actor, utils.ACTION_PRODUCT_DELETE, utils.RESOURCE_PRODUCT,
		strconv.FormatInt(id, 10), nil))
	s.log.Info("🗑️ Produit supprimé", zap.Int64("product_id", id), zap.String("by", actor.ID))
	return nil
}

func (s *CatalogService) ownedProduct(ctx context.Context, actor models.Principal, id int64, forbidden string) (*models.Product, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.SellerID != actor.ID && !actor.IsAdmin() {
		return nil, apperr.Forbidden("%s", forbidden)
	}
	return p, nil
}

func (s *CatalogService) uploadImage(ctx context.Context, img models.ImageUpload) (string, error) {
	if s.images == nil {
		return "", apperr.Validation("Image upload is not available")
	}
	url, err := s.images.Upload(ctx, img)
	if errors.Is(err, ErrUnsupportedImage) {
		return "", apperr.InvalidFields(map[string]string{"image": "must be a jpeg, png, webp or gif image"})
	}
	if err != nil {
		return "", apperr.Internal(err, "Failed to upload image")
	}
	return url, nil
}

func (s *CatalogService) deleteImage(ctx context.Context, url string) {
	if s.images == nil {
		return
	}
	if err := s.images.Delete(ctx, url); err != nil {
		s.log.Warn("⚠️ Suppression image échouée", zap.String("url", url), zap.Error(err))
	}
}

// afterWrite invalide le cache et réindexe le produit
func (s *CatalogService) afterWrite(ctx context.Context, p *models.Product) {
	s.invalidate(ctx)
	if s.index == nil {
		return
	}
	if err := s.index.Index(ctx, *p); err != nil {
		s.log.Warn("⚠️ Indexation échouée", zap.Int64("product_id", p.ID), zap.Error(err))
	}
}

func (s *CatalogService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateProducts(ctx); err != nil {
		s.log.Warn("⚠️ Invalidation du cache échouée", zap.Error(err))
	}
}
