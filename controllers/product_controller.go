package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"marketplace-backend/cache"
	"marketplace-backend/repository"
	"marketplace-backend/services"
)

// ProductController serves public catalog reads, backed by a read-through
// cache. Order validation never goes through here; it reads the catalog rows
// directly.
type ProductController struct {
	products repository.ProductRepository
	cache    *cache.ProductCache
}

func NewProductController(products repository.ProductRepository, productCache *cache.ProductCache) *ProductController {
	return &ProductController{products: products, cache: productCache}
}

func (pc *ProductController) GetProduct(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	if product, ok := pc.cache.Get(c.Request.Context(), productID.String()); ok {
		c.JSON(http.StatusOK, product)
		return
	}

	product, err := pc.products.FindByID(c.Request.Context(), productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch product"})
		return
	}

	pc.cache.Set(c.Request.Context(), product)
	c.JSON(http.StatusOK, product)
}

func (pc *ProductController) ListProducts(c *gin.Context) {
	page, limit := parsePaginationParams(c)

	products, total, err := pc.products.FindAll(c.Request.Context(), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch products"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"meta": services.MetaData{
			Page:       page,
			Limit:      limit,
			TotalItems: total,
		},
	})
}
