package product

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront_back_end/internal/apperr"
	"storefront_back_end/internal/handlers"
	"storefront_back_end/internal/models"
)

const maxImageSize = 5 << 20

// Catalog est le service produits utilisé par ProductHandler
type Catalog interface {
	List(ctx context.Context) ([]models.Product, error)
	Get(ctx context.Context, id int64) (*models.Product, error)
	Search(ctx context.Context, query string, limit int) ([]models.Product, error)
	Create(ctx context.Context, seller models.Principal, in models.ProductInput, img *models.ImageUpload) (*models.Product, error)
	Update(ctx context.Context, actor models.Principal, id int64, patch models.ProductPatch, img *models.ImageUpload) (*models.Product, error)
	Delete(ctx context.Context, actor models.Principal, id int64) error
}

type ProductHandler struct {
	catalog Catalog
	log     *zap.Logger
}

func NewProductHandler(catalog Catalog, log *zap.Logger) *ProductHandler {
	return &ProductHandler{catalog: catalog, log: log}
}

// GetAllProducts : GET /products
func (h *ProductHandler) GetAllProducts(c *gin.Context) {
	products, err := h.catalog.List(c.Request.Context())
	if err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

// GetProductByID : GET /products/:id
func (h *ProductHandler) GetProductByID(c *gin.Context) {
	id, ok := handlers.ParseID(c, "id")
	if !ok {
		return
	}
	p, err := h.catalog.Get(c.Request.Context(), id)
	if err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// SearchProducts : GET /products/search?q=&limit=
func (h *ProductHandler) SearchProducts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	products, err := h.catalog.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

// CreateProduct : POST /products, multipart (image optionnelle) ou JSON
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	seller, ok := handlers.MustPrincipal(c)
	if !ok {
		return
	}

	form, err := readProductForm(c)
	if err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	if form.Price == nil {
		handlers.RespondError(c, h.log, apperr.InvalidFields(map[string]string{"price": "is required"}))
		return
	}

	in := models.ProductInput{Price: *form.Price}
	if form.Name != nil {
		in.Name = *form.Name
	}
	if form.Description != nil {
		in.Description = *form.Description
	}

	p, err := h.catalog.Create(c.Request.Context(), seller, in, form.Image)
	if err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// UpdateProduct : PUT /products/:id, réservé au vendeur du produit ou à un admin
func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	actor, ok := handlers.MustPrincipal(c)
	if !ok {
		return
	}
	id, ok := handlers.ParseID(c, "id")
	if !ok {
		return
	}

	form, err := readProductForm(c)
	if err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}

	p, err := h.catalog.Update(c.Request.Context(), actor, id, form.ProductPatch, form.Image)
	if err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// DeleteProduct : DELETE /products/:id
func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	actor, ok := handlers.MustPrincipal(c)
	if !ok {
		return
	}
	id, ok := handlers.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.catalog.Delete(c.Request.Context(), actor, id); err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type productForm struct {
	models.ProductPatch
	Image *models.ImageUpload
}

// readProductForm lit un formulaire multipart ou un corps JSON ; champs absents = nil
func readProductForm(c *gin.Context) (*productForm, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		// decimal accepte 12.5 comme "12.5"
		var body models.ProductPatch
		if err := c.ShouldBindJSON(&body); err != nil {
			return nil, apperr.Validation("Invalid request body")
		}
		return &productForm{ProductPatch: body}, nil
	}

	if err := c.Request.ParseMultipartForm(maxImageSize); err != nil {
		return nil, apperr.Validation("Invalid multipart form")
	}
	field := func(name string) *string {
		if v, ok := c.GetPostForm(name); ok {
			return &v
		}
		return nil
	}

	var img *models.ImageUpload
	if fh, err := c.FormFile("image"); err == nil {
		if fh.Size > maxImageSize {
			return nil, apperr.InvalidFields(map[string]string{"image": "must be at most 5MB"})
		}
		img = &models.ImageUpload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Open:        func() (io.ReadCloser, error) { return fh.Open() },
		}
	}
	return buildForm(field("name"), field("description"), field("price"), img)
}

func buildForm(name, description, price *string, img *models.ImageUpload) (*productForm, error) {
	form := &productForm{Image: img}
	form.Name = name
	form.Description = description
	if price != nil {
		d, err := decimal.NewFromString(strings.TrimSpace(*price))
		if err != nil {
			return nil, apperr.InvalidFields(map[string]string{"price": "must be a decimal number"})
		}
		form.Price = &d
	}
	return form, nil
}
