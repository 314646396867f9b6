package controllers

import (
	"strconv"

	"github.com/gamersarena/GamersArena/config"
	"github.com/gamersarena/GamersArena/models"
	"github.com/gamersarena/GamersArena/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ListBundles returns all bundles including inactive ones, for the catalog admin
func ListBundles(c *gin.Context) {
	var bundles []models.TokenBundle
	if err := config.DB.Order("sort_order asc").Find(&bundles).Error; err != nil {
		utils.LogError("Failed to fetch bundles: %v", err)
		utils.InternalServerError(c, "Failed to fetch bundles", nil)
		return
	}
	utils.Success(c, "Bundles fetched successfully", gin.H{"bundles": bundles})
}

// BundleRequest represents a bundle create/update request body
type BundleRequest struct {
	Name        string          `json:"name" binding:"required"`
	Tokens      int             `json:"tokens" binding:"required,gt=0"`
	BonusTokens int             `json:"bonus_tokens"`
	PricePKR    decimal.Decimal `json:"price_pkr" binding:"required"`
	PriceUSD    decimal.Decimal `json:"price_usd"`
	Description string          `json:"description"`
	Badge       string          `json:"badge"`
	Icon        string          `json:"icon"`
	SortOrder   int             `json:"sort_order"`
	IsActive    *bool           `json:"is_active"`
	IsFeatured  bool            `json:"is_featured"`
}

// CreateBundle adds a bundle to the catalog
func CreateBundle(c *gin.Context) {
	var req BundleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request format", err.Error())
		return
	}
	if req.PricePKR.LessThanOrEqual(decimal.Zero) {
		utils.BadRequest(c, "Price must be greater than zero", nil)
		return
	}

	bundle := models.TokenBundle{
		Name:        req.Name,
		Tokens:      req.Tokens,
		BonusTokens: req.BonusTokens,
		PricePKR:    req.PricePKR,
		PriceUSD:    req.PriceUSD,
		Description: req.Description,
		Badge:       req.Badge,
		Icon:        req.Icon,
		SortOrder:   req.SortOrder,
		IsActive:    true,
		IsFeatured:  req.IsFeatured,
	}
	if req.IsActive != nil {
		bundle.IsActive = *req.IsActive
	}

	if err := config.DB.Create(&bundle).Error; err != nil {
		utils.LogError("Failed to create bundle: %v", err)
		utils.InternalServerError(c, "Failed to create bundle", nil)
		return
	}

	utils.LogInfo("Bundle created: %s (%d tokens)", bundle.Name, bundle.TotalTokens())
	utils.Created(c, "Bundle created successfully", gin.H{"bundle": bundle})
}

// UpdateBundle edits a bundle. Existing pending purchases keep the price they
// were initiated at.
func UpdateBundle(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid bundle ID", nil)
		return
	}

	var bundle models.TokenBundle
	if err := config.DB.First(&bundle, id).Error; err != nil {
		utils.NotFound(c, "Bundle not found")
		return
	}

	var req BundleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request format", err.Error())
		return
	}

	bundle.Name = req.Name
	bundle.Tokens = req.Tokens
	bundle.BonusTokens = req.BonusTokens
	bundle.PricePKR = req.PricePKR
	bundle.PriceUSD = req.PriceUSD
	bundle.Description = req.Description
	bundle.Badge = req.Badge
	bundle.Icon = req.Icon
	bundle.SortOrder = req.SortOrder
	bundle.IsFeatured = req.IsFeatured
	if req.IsActive != nil {
		bundle.IsActive = *req.IsActive
	}

	if err := config.DB.Save(&bundle).Error; err != nil {
		utils.LogError("Failed to update bundle %d: %v", bundle.ID, err)
		utils.InternalServerError(c, "Failed to update bundle", nil)
		return
	}

	utils.Success(c, "Bundle updated successfully", gin.H{"bundle": bundle})
}

// DeleteBundle retires a bundle from the catalog (soft delete)
func DeleteBundle(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid bundle ID", nil)
		return
	}

	var bundle models.TokenBundle
	if err := config.DB.First(&bundle, id).Error; err != nil {
		utils.NotFound(c, "Bundle not found")
		return
	}

	if err := config.DB.Delete(&bundle).Error; err != nil {
		utils.LogError("Failed to delete bundle %d: %v", bundle.ID, err)
		utils.InternalServerError(c, "Failed to delete bundle", nil)
		return
	}

	utils.LogInfo("Bundle deleted: %s", bundle.Name)
	utils.Success(c, "Bundle deleted successfully", nil)
}

// CreateDefaultBundles seeds the catalog on first boot
func CreateDefaultBundles() error {
	var count int64
	if err := config.DB.Model(&models.TokenBundle{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	bundles := []models.TokenBundle{
		{Name: "Starter Pack", Tokens: 100, BonusTokens: 0, PricePKR: decimal.NewFromInt(1399), PriceUSD: decimal.NewFromInt(5), SortOrder: 1, IsActive: true},
		{Name: "Pro Pack", Tokens: 250, BonusTokens: 25, PricePKR: decimal.NewFromInt(3199), PriceUSD: decimal.NewFromInt(11), Badge: "POPULAR", SortOrder: 2, IsActive: true, IsFeatured: true},
		{Name: "Elite Pack", Tokens: 500, BonusTokens: 75, PricePKR: decimal.NewFromInt(5999), PriceUSD: decimal.NewFromInt(21), Badge: "BEST VALUE", SortOrder: 3, IsActive: true},
		{Name: "Champion Pack", Tokens: 1000, BonusTokens: 200, PricePKR: decimal.NewFromInt(10999), PriceUSD: decimal.NewFromInt(39), SortOrder: 4, IsActive: true},
	}
	return config.DB.Create(&bundles).Error
}
