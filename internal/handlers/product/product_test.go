package product

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront_back_end/internal/apperr"
	"storefront_back_end/internal/middleware"
	"storefront_back_end/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type tokenStub struct{}

func (tokenStub) Verify(_ context.Context, token string) (models.Principal, error) {
	return models.Principal{ID: token}, nil
}

type grantsStub struct{}

func (grantsStub) Resolve(_ context.Context, userID string) (models.Grants, error) {
	if userID == "seller-1" {
		return models.NewGrants([]string{models.RoleSeller}, []string{models.PermCreateProduct, models.PermUpdateProduct}), nil
	}
	return models.DefaultGrants(), nil
}

type fakeCatalog struct {
	created   *models.ProductInput
	imageData string
	patch     *models.ProductPatch
	deleted   []int64
}

func (f *fakeCatalog) List(context.Context) ([]models.Product, error) {
	return []models.Product{{ID: 1, Name: "Mug", Price: decimal.RequireFromString("9.90")}}, nil
}

func (f *fakeCatalog) Get(_ context.Context, id int64) (*models.Product, error) {
	if id != 1 {
		return nil, apperr.NotFound("Product not found")
	}
	return &models.Product{ID: 1, Name: "Mug"}, nil
}

func (f *fakeCatalog) Search(_ context.Context, q string, limit int) ([]models.Product, error) {
	if q == "" {
		return nil, apperr.Validation("Query parameter q is required")
	}
	return []models.Product{{ID: int64(limit), Name: q}}, nil
}

func (f *fakeCatalog) Create(_ context.Context, seller models.Principal, in models.ProductInput, img *models.ImageUpload) (*models.Product, error) {
	f.created = &in
	if img != nil {
		rc, err := img.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		b, _ := io.ReadAll(rc)
		f.imageData = string(b)
	}
	return &models.Product{ID: 10, Name: in.Name, Price: in.Price, SellerID: seller.ID}, nil
}

func (f *fakeCatalog) Update(_ context.Context, actor models.Principal, id int64, patch models.ProductPatch, _ *models.ImageUpload) (*models.Product, error) {
	if actor.ID != "seller-1" {
		return nil, apperr.Forbidden("Not authorized to update this product")
	}
	f.patch = &patch
	return &models.Product{ID: id}, nil
}

func (f *fakeCatalog) Delete(_ context.Context, actor models.Principal, id int64) error {
	if id == 2 {
		return apperr.Validation("Product is referenced by existing orders")
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func newRouter(catalog Catalog) *gin.Engine {
	r := gin.New()
	h := NewProductHandler(catalog, zap.NewNop())
	r.GET("/products", h.GetAllProducts)
	r.GET("/products/search", h.SearchProducts)
	r.GET("/products/:id", h.GetProductByID)

	auth := r.Group("/products", middleware.AuthRequired(tokenStub{}, grantsStub{}, zap.NewNop()))
	auth.POST("", middleware.RequirePermission(models.PermCreateProduct), h.CreateProduct)
	auth.PUT("/:id", middleware.RequirePermission(models.PermUpdateProduct), h.UpdateProduct)
	auth.DELETE("/:id", h.DeleteProduct)
	return r
}

func do(r http.Handler, req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func multipartRequest(t *testing.T, fields map[string]string, image []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if image != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="mug.png"`)
		h.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/products", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestPublicRoutes(t *testing.T) {
	r := newRouter(&fakeCatalog{})

	w := do(r, httptest.NewRequest(http.MethodGet, "/products", nil), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Mug"`)

	assert.Equal(t, http.StatusOK, do(r, httptest.NewRequest(http.MethodGet, "/products/1", nil), "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, httptest.NewRequest(http.MethodGet, "/products/5", nil), "").Code)

	w = do(r, httptest.NewRequest(http.MethodGet, "/products/search?q=mug&limit=7", nil), "")
	require.Equal(t, http.StatusOK, w.Code)
	var found []models.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &found))
	require.Len(t, found, 1)
	assert.Equal(t, int64(7), found[0].ID)

	assert.Equal(t, http.StatusBadRequest, do(r, httptest.NewRequest(http.MethodGet, "/products/search", nil), "").Code)
}

func TestCreateProduct(t *testing.T) {
	t.Run("multipart with image", func(t *testing.T) {
		catalog := &fakeCatalog{}
		r := newRouter(catalog)

		req := multipartRequest(t, map[string]string{"name": "Mug", "description": "Blue", "price": "12.50"}, []byte("png-bytes"))
		w := do(r, req, "seller-1")
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		require.NotNil(t, catalog.created)
		assert.Equal(t, "Mug", catalog.created.Name)
		assert.True(t, catalog.created.Price.Equal(decimal.RequireFromString("12.5")))
		assert.Equal(t, "png-bytes", catalog.imageData)
	})

	t.Run("json body with numeric price", func(t *testing.T) {
		catalog := &fakeCatalog{}
		r := newRouter(catalog)

		w := do(r, jsonRequest(http.MethodPost, "/products", `{"name":"Cup","price":4.2}`), "seller-1")
		require.Equal(t, http.StatusCreated, w.Code)
		assert.True(t, catalog.created.Price.Equal(decimal.RequireFromString("4.2")))
		assert.Empty(t, catalog.imageData)
	})

	t.Run("missing or invalid price", func(t *testing.T) {
		r := newRouter(&fakeCatalog{})

		w := do(r, jsonRequest(http.MethodPost, "/products", `{"name":"Cup"}`), "seller-1")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"price"`)

		w = do(r, multipartRequest(t, map[string]string{"name": "Cup", "price": "cheap"}, nil), "seller-1")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "must be a decimal number")
	})

	t.Run("customer lacks permission", func(t *testing.T) {
		catalog := &fakeCatalog{}
		r := newRouter(catalog)

		w := do(r, jsonRequest(http.MethodPost, "/products", `{"name":"Cup","price":1}`), "customer-1")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Nil(t, catalog.created)
	})
}

func TestUpdateProduct(t *testing.T) {
	catalog := &fakeCatalog{}
	r := newRouter(catalog)

	w := do(r, jsonRequest(http.MethodPut, "/products/3", `{"price":"7.00"}`), "seller-1")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, catalog.patch)
	assert.Nil(t, catalog.patch.Name)
	require.NotNil(t, catalog.patch.Price)
	assert.True(t, catalog.patch.Price.Equal(decimal.NewFromInt(7)))

	w = do(r, jsonRequest(http.MethodPut, "/products/3", `{"price":`), "seller-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, jsonRequest(http.MethodPut, "/products/x", `{}`), "seller-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteProduct(t *testing.T) {
	catalog := &fakeCatalog{}
	r := newRouter(catalog)

	w := do(r, httptest.NewRequest(http.MethodDelete, "/products/4", nil), "seller-1")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []int64{4}, catalog.deleted)

	w = do(r, httptest.NewRequest(http.MethodDelete, "/products/2", nil), "seller-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "referenced")

	w = do(r, httptest.NewRequest(http.MethodDelete, "/products/4", nil), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
