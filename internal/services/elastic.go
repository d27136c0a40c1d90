package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	"storefront_back_end/internal/models"
)

//
// --- INDEX PRODUITS ELASTICSEARCH ---
//

// ProductIndex maintient l'index de recherche des produits
type ProductIndex struct {
	client *elasticsearch.Client
	index  string
	log    *zap.Logger
}

func NewProductIndex(client *elasticsearch.Client, index string, log *zap.Logger) *ProductIndex {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProductIndex{client: client, index: index, log: log}
}

// Index ajoute ou remplace le document du produit
func (x *ProductIndex) Index(ctx context.Context, p models.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode product: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      x.index,
		DocumentID: strconv.FormatInt(p.ID, 10),
		Body:       bytes.NewReader(data),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, x.client)
	if err != nil {
		return fmt.Errorf("elastic index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elastic index %d: %s", p.ID, res.Status())
	}
	x.log.Debug("✅ Produit indexé", zap.Int64("product_id", p.ID))
	return nil
}

// Remove retire le produit de l'index ; absent n'est pas une erreur
func (x *ProductIndex) Remove(ctx context.Context, id int64) error {
	req := esapi.DeleteRequest{
		Index:      x.index,
		DocumentID: strconv.FormatInt(id, 10),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, x.client)
	if err != nil {
		return fmt.Errorf("elastic delete: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("elastic delete %d: %s", id, res.Status())
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source models.Product `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search fait un multi_match sur le nom et la description
func (x *ProductIndex) Search(ctx context.Context, query string, limit int) ([]models.Product, error) {
	var buf bytes.Buffer
	q := map[string]any{
		"size": limit,
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"name^2", "description"},
				"fuzziness": "AUTO",
			},
		},
	}
	if err := json.NewEncoder(&buf).Encode(q); err != nil {
		return nil, fmt.Errorf("encode search: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{x.index},
		Body:  &buf,
	}
	res, err := req.Do(ctx, x.client)
	if err != nil {
		return nil, fmt.Errorf("elastic search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, errors.New("elastic search: " + res.Status())
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode search: %w", err)
	}

	products := make([]models.Product, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		products = append(products, hit.Source)
	}
	return products, nil
}
