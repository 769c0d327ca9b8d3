package controllers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hanyong5/kiview/config"
	"github.com/hanyong5/kiview/models"
	"github.com/hanyong5/kiview/services"
	"github.com/hanyong5/kiview/utils"
)

// ListProducts handles GET /api/v1/products - returns the kiosk catalog,
// newest first. Served from the redis cache when possible.
func ListProducts(c *gin.Context) {
	cache := services.GetCatalogCache()
	if products, ok := cache.Get(c.Request.Context()); ok {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    products,
		})
		return
	}

	db := config.GetDB()
	var products []models.Product
	if err := db.Order("created_at desc").Find(&products).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to load products",
			},
		})
		return
	}

	cache.Set(c.Request.Context(), products)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    products,
	})
}

// GetProduct handles GET /api/v1/products/:id
func GetProduct(c *gin.Context) {
	db := config.GetDB()
	var product models.Product
	if err := db.First(&product, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "PRODUCT_NOT_FOUND",
				"message": "Product not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    product,
	})
}

// CreateProduct handles POST /api/v1/products - creates a product from a
// multipart form with name, price and an image file (admins only)
func CreateProduct(c *gin.Context) {
	name := c.PostForm("name")
	priceStr := c.PostForm("price")
	if name == "" || priceStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Name and price are required",
			},
		})
		return
	}

	price, err := strconv.Atoi(priceStr)
	if err != nil || price < 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Price must be a non-negative integer",
			},
		})
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MISSING_IMAGE",
				"message": "An image file is required",
			},
		})
		return
	}

	imageService := services.GetImageService()
	imageKey, err := imageService.UploadImage(fileHeader)
	if err != nil {
		if uploadErr, ok := err.(*utils.FileUploadError); ok {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    uploadErr.Code,
					"message": uploadErr.Message,
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UPLOAD_ERROR",
				"message": "Failed to upload product image",
			},
		})
		return
	}

	product := models.Product{
		Name:     name,
		Price:    price,
		ImageKey: imageKey,
		ImageURL: imageService.GetImageURL(imageKey),
	}

	db := config.GetDB()
	if err := db.Create(&product).Error; err != nil {
		// Keep storage consistent with the failed insert.
		if delErr := imageService.DeleteImage(imageKey); delErr != nil {
			log.Printf("Failed to clean up image %s: %v", imageKey, delErr)
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to create product",
			},
		})
		return
	}

	services.GetCatalogCache().Invalidate(c.Request.Context())

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    product,
	})
}

// UpdateProduct handles PUT /api/v1/products/:id - updates name/price and
// optionally replaces the image (admins only)
func UpdateProduct(c *gin.Context) {
	db := config.GetDB()
	var product models.Product
	if err := db.First(&product, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "PRODUCT_NOT_FOUND",
				"message": "Product not found",
			},
		})
		return
	}

	updates := make(map[string]interface{})
	if name := c.PostForm("name"); name != "" {
		updates["name"] = name
	}
	if priceStr := c.PostForm("price"); priceStr != "" {
		price, err := strconv.Atoi(priceStr)
		if err != nil || price < 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "VALIDATION_ERROR",
					"message": "Price must be a non-negative integer",
				},
			})
			return
		}
		updates["price"] = price
	}

	imageService := services.GetImageService()
	oldImageKey := ""
	if fileHeader, err := c.FormFile("image"); err == nil {
		imageKey, err := imageService.UploadImage(fileHeader)
		if err != nil {
			if uploadErr, ok := err.(*utils.FileUploadError); ok {
				c.JSON(http.StatusBadRequest, gin.H{
					"success": false,
					"error": gin.H{
						"code":    uploadErr.Code,
						"message": uploadErr.Message,
					},
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "UPLOAD_ERROR",
					"message": "Failed to upload product image",
				},
			})
			return
		}
		oldImageKey = product.ImageKey
		updates["image_key"] = imageKey
		updates["image_url"] = imageService.GetImageURL(imageKey)
	}

	if len(updates) == 0 {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    product,
		})
		return
	}

	if err := db.Model(&product).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to update product",
			},
		})
		return
	}

	// Best-effort cleanup of the replaced image.
	if oldImageKey != "" {
		if err := imageService.DeleteImage(oldImageKey); err != nil {
			log.Printf("Failed to delete replaced image %s: %v", oldImageKey, err)
		}
	}

	services.GetCatalogCache().Invalidate(c.Request.Context())

	if err := db.First(&product, product.ID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to fetch updated product",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    product,
	})
}

// DeleteProduct handles DELETE /api/v1/products/:id - removes the product
// and then tries to remove its stored image; an image deletion failure is
// logged but does not fail the request (admins only)
func DeleteProduct(c *gin.Context) {
	db := config.GetDB()
	var product models.Product
	if err := db.First(&product, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "PRODUCT_NOT_FOUND",
				"message": "Product not found",
			},
		})
		return
	}

	if err := db.Delete(&product).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to delete product",
			},
		})
		return
	}

	if product.ImageKey != "" {
		if err := services.GetImageService().DeleteImage(product.ImageKey); err != nil {
			log.Printf("Failed to delete image %s for product %d: %v", product.ImageKey, product.ID, err)
		}
	}

	services.GetCatalogCache().Invalidate(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"id": product.ID,
		},
	})
}
