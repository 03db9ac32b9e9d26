package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shop-service/config"
	"shop-service/middlewares"
	"shop-service/models"
	"shop-service/store"
)

type ProductController struct {
	products store.ProductStore
	cfg      *config.Config
	logger   *zap.Logger
}

func NewProductController(products store.ProductStore, cfg *config.Config, logger *zap.Logger) *ProductController {
	return &ProductController{
		products: products,
		cfg:      cfg,
		logger:   logger,
	}
}

func (ctl *ProductController) GetProducts(c *gin.Context) {
	defer func() {
		ok := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordOperation("product_list", ok)
	}()

	page, err := strconv.Atoi(c.DefaultQuery("pageNumber", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	keyword := c.Query("keyword")

	result, err := ctl.products.FindPage(c.Request.Context(), keyword, page, ctl.cfg.PageSize)
	if err != nil {
		ctl.logger.Error("failed to list products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (ctl *ProductController) GetTopProducts(c *gin.Context) {
	defer func() {
		ok := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordOperation("product_top", ok)
	}()

	products, err := ctl.products.FindTop(c.Request.Context(), 3)
	if err != nil {
		ctl.logger.Error("failed to list top products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, products)
}

func (ctl *ProductController) GetProductByID(c *gin.Context) {
	defer func() {
		ok := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordOperation("product_details", ok)
	}()

	productID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	product, err := ctl.products.FindByID(c.Request.Context(), productID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		ctl.logger.Error("failed to load product", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, product)
}

type productRequest struct {
	Name         string  `json:"name" binding:"required"`
	Price        float64 `json:"price" binding:"min=0"`
	Description  string  `json:"description"`
	Image        string  `json:"image"`
	Brand        string  `json:"brand"`
	Category     string  `json:"category"`
	CountInStock int     `json:"count_in_stock" binding:"min=0"`
}

func (ctl *ProductController) CreateProduct(c *gin.Context) {
	defer func() {
		ok := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordOperation("product_create", ok)
	}()

	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product := &models.Product{
		UserID:       user.ID,
		Name:         req.Name,
		Price:        req.Price,
		Description:  req.Description,
		Image:        req.Image,
		Brand:        req.Brand,
		Category:     req.Category,
		CountInStock: req.CountInStock,
	}

	if err := ctl.products.Create(c.Request.Context(), product); err != nil {
		ctl.logger.Error("failed to create product", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create product"})
		return
	}

	c.JSON(http.StatusCreated, product)
}

func (ctl *ProductController) UpdateProduct(c *gin.Context) {
	defer func() {
		ok := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordOperation("product_update", ok)
	}()

	productID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product, err := ctl.products.FindByID(c.Request.Context(), productID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		ctl.logger.Error("failed to load product", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	product.Name = req.Name
	product.Price = req.Price
	product.Description = req.Description
	product.Image = req.Image
	product.Brand = req.Brand
	product.Category = req.Category
	product.CountInStock = req.CountInStock

	if err := ctl.products.Update(c.Request.Context(), product); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		ctl.logger.Error("failed to update product", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update product"})
		return
	}

	c.JSON(http.StatusOK, product)
}

func (ctl *ProductController) DeleteProduct(c *gin.Context) {
	defer func() {
		ok := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordOperation("product_delete", ok)
	}()

	productID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	if err := ctl.products.Delete(c.Request.Context(), productID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		ctl.logger.Error("failed to delete product", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete product"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product removed"})
}

type reviewRequest struct {
	Rating  float64 `json:"rating" binding:"required,min=1,max=5"`
	Comment string  `json:"comment" binding:"required"`
}

func (ctl *ProductController) CreateReview(c *gin.Context) {
	defer func() {
		ok := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordOperation("product_review", ok)
	}()

	user, ok := currentUser(c)
	if !ok {
		return
	}

	productID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product, err := ctl.products.FindByID(c.Request.Context(), productID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		ctl.logger.Error("failed to load product", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	// Read-then-write: concurrent submissions from the same user are not
	// guarded the way payments are.
	for _, review := range product.Reviews {
		if review.UserID == user.ID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Product already reviewed"})
			return
		}
	}

	product.Reviews = append(product.Reviews, models.Review{
		UserID:    user.ID,
		Name:      user.Name,
		Rating:    req.Rating,
		Comment:   req.Comment,
		CreatedAt: time.Now(),
	})
	product.NumReviews = len(product.Reviews)

	sum := 0.0
	for _, review := range product.Reviews {
		sum += review.Rating
	}
	product.Rating = sum / float64(len(product.Reviews))

	if err := ctl.products.Update(c.Request.Context(), product); err != nil {
		ctl.logger.Error("failed to save review", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add review"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Review added"})
}
