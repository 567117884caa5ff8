package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sanujarubasinghe/cyclechain/product"
)

type productResponse struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Category    product.Category `json:"category"`
	Price       decimal.Decimal  `json:"price"`
	Stock       int              `json:"stock"`
	InStock     bool             `json:"inStock"`
	ImageURL    *string          `json:"imageUrl,omitempty"`
}

func toProductResponse(p product.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Price:       p.Price,
		Stock:       p.Stock,
		InStock:     p.Stock > 0,
		ImageURL:    p.ImageURL,
	}
}

func (a *API) productsHandler(c *gin.Context) {
	category := product.Category(c.Query("category"))
	switch category {
	case "", product.CategoryAccessory, product.CategoryBike:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_CATEGORY", "message": "Unknown category"})
		return
	}

	products, err := a.prod.GetProducts(c, category)
	if err != nil {
		internalError(c, "failed to list products", err)
		return
	}

	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	c.JSON(http.StatusOK, out)
}

func (a *API) productHandler(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	p, err := a.prod.GetProduct(c, id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "PRODUCT_NOT_FOUND", "message": "Product not found"})
			return
		}
		internalError(c, "failed to get product", err)
		return
	}

	c.JSON(http.StatusOK, toProductResponse(p))
}
