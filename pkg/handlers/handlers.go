package handlers

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/arnavshah/site-capacity-api/pkg/audit"
	"github.com/arnavshah/site-capacity-api/pkg/auth"
	"github.com/arnavshah/site-capacity-api/pkg/database"
	"github.com/arnavshah/site-capacity-api/pkg/planner"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Version is reported by the root endpoint
const Version = "3.0.0"

// Handler contains dependencies for the route handlers
type Handler struct {
	DB           *gorm.DB
	Auth         *auth.Manager
	Planner      *planner.Service
	Audit        *audit.Logbook
	DefaultHours float64
	Metrics      bool
}

// NewRouter wires every route on a fresh gin engine
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Site Capacity Planning API",
			"version": Version,
		})
	})
	if h.Metrics {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	r.POST("/admin/login", h.Login)

	// Admin Endpoints
	admin := r.Group("/admin")
	admin.Use(h.AuthMiddleware())
	{
		admin.POST("/keys", h.GenerateKey)
		admin.GET("/keys", h.ListKeys)
		admin.PUT("/keys/:id", h.UpdateKeyLimit)
		admin.DELETE("/keys/:id", h.RevokeKey)
		admin.GET("/usage/:id", h.GetUsage)
		admin.GET("/audit", h.GetAudit)

		admin.POST("/periods/:id/validate", h.RequireRole(auth.RoleApprover), h.ValidatePeriod)
		admin.POST("/periods/:id/unlock", h.UnlockPeriod)
		admin.POST("/periods/:id/assignments/:aid/unlock", h.UnlockAssignment)
	}

	// Planning Endpoints
	api := r.Group("/api")
	api.Use(h.APIKeyMiddleware())
	{
		api.GET("/calendar", h.Calendar)
		api.GET("/periods", h.ListPeriods)
		api.POST("/periods", h.OpenPeriod)
		api.GET("/periods/:id", h.GetPeriod)
		api.GET("/periods/:id/rollups", h.GetRollups)
		api.GET("/periods/:id/available", h.GetAvailable)
		api.GET("/periods/:id/export.csv", h.ExportCSV)
		api.POST("/periods/:id/assignments", h.PlaceAssignment)
		api.PATCH("/periods/:id/assignments/:aid", h.UpdateAssignment)
		api.DELETE("/periods/:id/assignments/:aid", h.DeleteAssignment)
		api.POST("/periods/:id/assignments/:aid/lock", h.LockAssignment)
		api.DELETE("/periods/:id/cells/:worker/:day", h.ClearCell)
		api.POST("/periods/:id/double-booking", h.SetDoubleBooking)
		api.POST("/periods/:id/lock", h.LockPeriod)
		api.POST("/periods/:id/flush", h.FlushPeriod)
		api.POST("/periods/:id/close", h.ClosePeriod)
		api.POST("/validate", h.ValidateInput)
		api.GET("/usage", h.GetMyUsage)
	}

	return r
}

// AuthMiddleware verifies the JWT token for admin routes
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		// Strip "Bearer " if present
		if len(token) > 7 && token[:7] == "Bearer " {
			token = token[7:]
		}

		claims, err := h.Auth.VerifyToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set("claims", claims)
		c.Next()
	}
}

// RequireRole rejects admin requests whose token lacks role
func (h *Handler) RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := claimsFrom(c)
		if claims == nil || claims.Role != role {
			c.JSON(http.StatusForbidden, gin.H{"error": "role " + role + " required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// APIKeyMiddleware verifies the HMAC API key and enforces its daily rate limit
func (h *Handler) APIKeyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("Authorization")
		if key == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "API Key required"})
			c.Abort()
			return
		}

		if len(key) > 7 && key[:7] == "Bearer " {
			key = key[7:]
		}

		name, err := h.Auth.VerifyHMACKey(key)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API Key signature"})
			c.Abort()
			return
		}

		// Fetch or create API key record to track usage
		var apiKey database.APIKey
		err = h.DB.Where(database.APIKey{Key: key}).FirstOrCreate(&apiKey, database.APIKey{
			Key:        key,
			Name:       name,
			KeyPreview: preview(key),
			RateLimit:  10000,
		}).Error
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load API key"})
			c.Abort()
			return
		}

		var usage database.APIUsage
		if err := h.DB.Where("key_id = ? AND date = ?", apiKey.ID, today()).Limit(1).Find(&usage).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load usage"})
			c.Abort()
			return
		}
		if apiKey.RateLimit > 0 && usage.RequestCount >= apiKey.RateLimit {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Daily rate limit reached"})
			c.Abort()
			return
		}

		now := time.Now()
		if err := h.DB.Model(&apiKey).Update("last_used", &now).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not update API key"})
			c.Abort()
			return
		}

		c.Set("apiKey", &apiKey)
		c.Next()
	}
}

// RecordUsage records API usage in the database using an efficient upsert
func (h *Handler) RecordUsage(c *gin.Context, mutations, assignments int) {
	apiKeyRaw, exists := c.Get("apiKey")
	if !exists {
		return
	}
	apiKey := apiKeyRaw.(*database.APIKey)

	// Use OnConflict for a single-query upsert (supported by both Postgres and SQLite)
	err := h.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"request_count":     gorm.Expr("request_count + ?", 1),
			"total_mutations":   gorm.Expr("total_mutations + ?", mutations),
			"total_assignments": gorm.Expr("total_assignments + ?", assignments),
		}),
	}).Create(&database.APIUsage{
		KeyID:            apiKey.ID,
		Date:             today(),
		RequestCount:     1,
		TotalMutations:   mutations,
		TotalAssignments: assignments,
	}).Error
	if err != nil {
		log.Printf("usage for key %d not recorded: %v", apiKey.ID, err)
	}
}

// Login handles admin login
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user database.MasterUser
	if err := h.DB.Where("username = ?", req.Username).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := h.Auth.CreateToken(user.Username, user.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer", "role": user.Role})
}

// GenerateKey creates a new API key for a planning integration
func (h *Handler) GenerateKey(c *gin.Context) {
	var req struct {
		Name      string `json:"name"`
		RateLimit int    `json:"rate_limit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	if req.RateLimit == 0 {
		req.RateLimit = 10000
	}

	key := h.Auth.GenerateHMACKey(req.Name)
	apiKey := database.APIKey{
		Key:        key,
		Name:       req.Name,
		KeyPreview: preview(key),
		RateLimit:  req.RateLimit,
	}

	if err := h.DB.Create(&apiKey).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create key record"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":   apiKey.ID,
		"name": req.Name,
		"key":  key,
	})
}

// ListKeys returns all API keys
func (h *Handler) ListKeys(c *gin.Context) {
	var keys []database.APIKey
	if err := h.DB.Order("id").Find(&keys).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not list keys"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

// RevokeKey deletes an API key
func (h *Handler) RevokeKey(c *gin.Context) {
	id := c.Param("id")
	if err := h.DB.Delete(&database.APIKey{}, id).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not delete key"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Key revoked"})
}

// UpdateKeyLimit updates the daily rate limit for a key
func (h *Handler) UpdateKeyLimit(c *gin.Context) {
	id := c.Param("id")
	var req struct {
		RateLimit int `json:"rate_limit" form:"rate_limit"`
	}

	// Try JSON first, then Form/Query
	if err := c.ShouldBindJSON(&req); err != nil {
		if err := c.ShouldBindQuery(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "rate_limit is required"})
			return
		}
	}

	if req.RateLimit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rate limit"})
		return
	}

	if err := h.DB.Model(&database.APIKey{}).Where("id = ?", id).Update("rate_limit", req.RateLimit).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not update key limit"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Rate limit updated successfully"})
}

// GetUsage returns usage stats for a key
func (h *Handler) GetUsage(c *gin.Context) {
	id := c.Param("id")
	var usage []database.APIUsage
	if err := h.DB.Where("key_id = ?", id).Order("date desc").Limit(30).Find(&usage).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load usage"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"usage": usage})
}

// GetAudit returns the most recent audit entries, ?n= of them (default 50)
func (h *Handler) GetAudit(c *gin.Context) {
	n, err := strconv.Atoi(c.DefaultQuery("n", "50"))
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "n must be a positive integer"})
		return
	}
	entries, err := h.Audit.Tail(n)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not read audit log"})
		return
	}
	if entries == nil {
		entries = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// record appends an audit entry, logging instead of failing the request
func (h *Handler) record(level audit.Level, format string, args ...interface{}) {
	if err := h.Audit.Append(level, fmt.Sprintf(format, args...)); err != nil {
		log.Printf("audit entry lost: %v", err)
	}
}

func claimsFrom(c *gin.Context) *auth.Claims {
	raw, ok := c.Get("claims")
	if !ok {
		return nil
	}
	claims, _ := raw.(*auth.Claims)
	return claims
}

func preview(key string) string {
	if len(key) > 8 {
		return key[:3] + "..." + key[len(key)-4:]
	}
	return "****"
}

func today() string {
	return time.Now().Format("2006-01-02")
}
