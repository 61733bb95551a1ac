package core

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repositories bundles the persistence interfaces the router depends on.
// Tests substitute in-memory fakes here.
type Repositories struct {
	Users      UserRepository
	Categories CategoryRepository
	Merchants  MerchantRepository
	Products   ProductRepository
	Offers     OfferRepository
	Referrals  ReferralRepository
}

// NewPgRepositories wires all repositories over one pgx pool.
func NewPgRepositories(db *pgxpool.Pool) Repositories {
	return Repositories{
		Users:      NewPgUserRepository(db),
		Categories: NewPgCategoryRepository(db),
		Merchants:  NewPgMerchantRepository(db),
		Products:   NewPgProductRepository(db),
		Offers:     NewPgOfferRepository(db),
		Referrals:  NewPgReferralRepository(db),
	}
}

// NewRouter constructs the Gin engine with routes wired.
func NewRouter(cfg Config, authService AuthService, issuer *TokenIssuer, verifier *TokenVerifier, repos Repositories, limiter *LoginLimiter) *gin.Engine {
	r := gin.Default()

	r.Use(OriginRefererMiddleware(cfg))

	authRequired := RequireAuth(verifier)
	adminOnly := RequireRole(verifier, RoleAdmin)

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Sasto Kinmel", "status": "running"})
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	auth := r.Group("/auth")
	{
		auth.POST("/token", func(c *gin.Context) {
			if !limiter.Allow(c.Request.Context(), c.ClientIP()) {
				respondError(c, http.StatusTooManyRequests, "RATE_LIMITED", "too many login attempts, try again later")
				return
			}

			// OAuth2 password flow shape: form-encoded credentials.
			username := c.PostForm("username")
			password := c.PostForm("password")

			log.Printf("login attempt by username: %s", username)

			principal, err := authService.Authenticate(c.Request.Context(), username, password)
			if err != nil {
				if errors.Is(err, ErrInvalidCredentials) {
					log.Printf("failed login attempt for username: %s", username)
					respondError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password")
					return
				}
				log.Printf("unexpected error during login for username %s: %v", username, err)
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "internal server error")
				return
			}

			token, err := issuer.Issue(principal)
			if err != nil {
				log.Printf("failed to issue token for username %s: %v", username, err)
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "internal server error")
				return
			}

			log.Printf("login successful for username: %s", username)
			c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
		})

		auth.GET("/me", authRequired, func(c *gin.Context) {
			principal, _ := CurrentPrincipal(c)
			u, err := repos.Users.FindByUsername(c.Request.Context(), principal.Subject)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "internal server error")
				return
			}
			if u == nil {
				respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}
			c.JSON(http.StatusOK, u.Profile())
		})
	}

	users := r.Group("/users")
	{
		users.POST("", func(c *gin.Context) {
			var req struct {
				Username string `json:"username"`
				FullName string `json:"full_name"`
				Email    string `json:"email"`
				Password string `json:"password"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			req.Username = strings.TrimSpace(req.Username)
			if req.Username == "" || req.Password == "" {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "username and password are required")
				return
			}

			ctx := c.Request.Context()
			exists, err := repos.Users.Exists(ctx, req.Username)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create user")
				return
			}
			if exists {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Username already exists")
				return
			}

			hash, err := HashPassword(req.Password)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create user")
				return
			}

			u, err := repos.Users.Create(ctx, req.Username, req.FullName, req.Email, hash, string(RoleUser))
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create user")
				return
			}
			log.Printf("user created: %s", u.Username)
			c.JSON(http.StatusOK, u.Profile())
		})

		users.PUT("/password", authRequired, func(c *gin.Context) {
			var req struct {
				OldPassword string `json:"old_password"`
				NewPassword string `json:"new_password"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			if req.NewPassword == "" {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "new_password is required")
				return
			}

			principal, _ := CurrentPrincipal(c)
			ctx := c.Request.Context()

			// Re-authenticate with the old password before accepting the change.
			if _, err := authService.Authenticate(ctx, principal.Subject, req.OldPassword); err != nil {
				if errors.Is(err, ErrInvalidCredentials) {
					respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "password does not match")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to update password")
				return
			}

			u, err := repos.Users.FindByUsername(ctx, principal.Subject)
			if err != nil || u == nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to update password")
				return
			}

			hash, err := HashPassword(req.NewPassword)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to update password")
				return
			}
			if err := repos.Users.UpdatePassword(ctx, u.ID, hash); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to update password")
				return
			}
			log.Printf("password updated for user: %s", u.Username)
			c.JSON(http.StatusOK, u.Profile())
		})

		users.GET("", func(c *gin.Context) {
			skip, limit, err := parseSkipLimit(c.Query("skip"), c.Query("limit"))
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
				return
			}
			items, err := repos.Users.List(c.Request.Context(), c.Query("role"), skip, limit)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch users")
				return
			}
			c.JSON(http.StatusOK, items)
		})

		users.GET("/:username", func(c *gin.Context) {
			u, err := repos.Users.FindByUsername(c.Request.Context(), c.Param("username"))
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch user")
				return
			}
			if u == nil {
				respondError(c, http.StatusNotFound, "NOT_FOUND", "User not found")
				return
			}
			c.JSON(http.StatusOK, u.Profile())
		})

		// Deleting a user is also the token revocation path (orphaned
		// tokens stop verifying), so it is restricted to admins.
		users.DELETE("/:username", adminOnly, func(c *gin.Context) {
			username := c.Param("username")
			deleted, err := repos.Users.DeleteByUsername(c.Request.Context(), username)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to delete user")
				return
			}
			if !deleted {
				respondError(c, http.StatusNotFound, "NOT_FOUND", "User not found")
				return
			}
			log.Printf("user deleted: %s", username)
			c.JSON(http.StatusOK, gin.H{"ok": true})
		})
	}

	categories := r.Group("/categories")
	{
		categories.GET("", func(c *gin.Context) {
			items, err := repos.Categories.List(c.Request.Context())
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch categories")
				return
			}
			c.JSON(http.StatusOK, items)
		})

		categories.GET("/:slug/products", func(c *gin.Context) {
			skip, limit, err := parseSkipLimit(c.Query("skip"), c.Query("limit"))
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
				return
			}
			ctx := c.Request.Context()
			cat, err := repos.Categories.FindBySlug(ctx, c.Param("slug"))
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch category")
				return
			}
			if cat == nil {
				respondError(c, http.StatusNotFound, "NOT_FOUND", "Category not found")
				return
			}
			items, err := repos.Products.ListByCategory(ctx, cat.ID, skip, limit)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch products")
				return
			}
			c.JSON(http.StatusOK, gin.H{"category": cat, "products": items})
		})

		categories.POST("", adminOnly, func(c *gin.Context) {
			var req struct {
				Name string `json:"name"`
				Slug string `json:"slug"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Slug) == "" {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "name and slug are required")
				return
			}

			ctx := c.Request.Context()
			existing, err := repos.Categories.FindByName(ctx, req.Name)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create category")
				return
			}
			if existing != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Category already exists")
				return
			}

			cat, err := repos.Categories.Create(ctx, req.Name, req.Slug)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create category")
				return
			}
			c.JSON(http.StatusOK, cat)
		})
	}

	merchants := r.Group("/merchant")
	{
		merchants.GET("", func(c *gin.Context) {
			items, err := repos.Merchants.List(c.Request.Context())
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch merchants")
				return
			}
			c.JSON(http.StatusOK, items)
		})

		merchants.GET("/:id", func(c *gin.Context) {
			id, err := strconv.ParseInt(c.Param("id"), 10, 64)
			if err != nil || id <= 0 {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
				return
			}
			m, err := repos.Merchants.Get(c.Request.Context(), id)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch merchant")
				return
			}
			if m == nil {
				respondError(c, http.StatusNotFound, "NOT_FOUND", "merchant not found")
				return
			}
			c.JSON(http.StatusOK, m)
		})

		merchants.POST("", adminOnly, func(c *gin.Context) {
			var req struct {
				Name       string `json:"name"`
				WebsiteURL string `json:"website_url"`
				LogoURL    string `json:"logo_url"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			if strings.TrimSpace(req.Name) == "" {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "name is required")
				return
			}

			ctx := c.Request.Context()
			existing, err := repos.Merchants.FindByName(ctx, req.Name)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create merchant")
				return
			}
			if existing != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Merchant already exists")
				return
			}

			m, err := repos.Merchants.Create(ctx, req.Name, req.WebsiteURL, req.LogoURL)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create merchant")
				return
			}
			c.JSON(http.StatusOK, m)
		})

		merchants.PUT("/:id", adminOnly, func(c *gin.Context) {
			id, err := strconv.ParseInt(c.Param("id"), 10, 64)
			if err != nil || id <= 0 {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
				return
			}
			var req struct {
				Name       string `json:"name"`
				WebsiteURL string `json:"website_url"`
				LogoURL    string `json:"logo_url"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			if strings.TrimSpace(req.Name) == "" {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "name is required")
				return
			}

			m, err := repos.Merchants.Update(c.Request.Context(), id, req.Name, req.WebsiteURL, req.LogoURL)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to update merchant")
				return
			}
			if m == nil {
				respondError(c, http.StatusNotFound, "NOT_FOUND", "merchant not found")
				return
			}
			c.JSON(http.StatusOK, m)
		})

		merchants.DELETE("/:id", adminOnly, func(c *gin.Context) {
			id, err := strconv.ParseInt(c.Param("id"), 10, 64)
			if err != nil || id <= 0 {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
				return
			}
			deleted, err := repos.Merchants.Delete(c.Request.Context(), id)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to delete merchant")
				return
			}
			if !deleted {
				respondError(c, http.StatusNotFound, "NOT_FOUND", "merchant not found")
				return
			}
			c.JSON(http.StatusOK, gin.H{"message": "merchant deleted successfully"})
		})
	}

	product := r.Group("/product")
	{
		product.POST("", adminOnly, func(c *gin.Context) {
			var req struct {
				Name        string `json:"name"`
				BrandName   string `json:"brand_name"`
				Description string `json:"description"`
				ImageURL    string `json:"image_url"`
				CategoryID  int64  `json:"category_id"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			if strings.TrimSpace(req.Name) == "" || req.CategoryID <= 0 {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "name and category_id are required")
				return
			}

			ctx := c.Request.Context()
			existing, err := repos.Products.FindByName(ctx, req.Name)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create product")
				return
			}
			if existing != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Product already exists")
				return
			}

			p, err := repos.Products.Create(ctx, Product{
				Name:        req.Name,
				BrandName:   req.BrandName,
				Description: req.Description,
				ImageURL:    req.ImageURL,
				CategoryID:  req.CategoryID,
			})
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create product")
				return
			}
			c.JSON(http.StatusOK, p)
		})

		product.POST("/offer", adminOnly, func(c *gin.Context) {
			var req struct {
				ProductID       int64   `json:"product_id"`
				MerchantID      int64   `json:"merchant_id"`
				AffiliateURL    string  `json:"affiliate_url"`
				OriginalPrice   float64 `json:"original_price"`
				CurrentPrice    float64 `json:"current_price"`
				DiscountPercent float64 `json:"discount_percent"`
				IsInStock       bool    `json:"is_in_stock"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			if req.ProductID <= 0 || req.MerchantID <= 0 {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "product_id and merchant_id are required")
				return
			}

			ctx := c.Request.Context()
			existing, err := repos.Offers.FindByProduct(ctx, req.ProductID)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create offer")
				return
			}
			if existing != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Offer already exists")
				return
			}

			o, err := repos.Offers.Create(ctx, Offer{
				ProductID:       req.ProductID,
				MerchantID:      req.MerchantID,
				AffiliateURL:    req.AffiliateURL,
				OriginalPrice:   req.OriginalPrice,
				CurrentPrice:    req.CurrentPrice,
				DiscountPercent: req.DiscountPercent,
				IsInStock:       req.IsInStock,
			})
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create offer")
				return
			}
			c.JSON(http.StatusOK, o)
		})

		product.POST("/referral", adminOnly, func(c *gin.Context) {
			var req struct {
				UserID    int64  `json:"user_id"`
				OfferID   int64  `json:"offer_id"`
				IPAddress string `json:"ip_address"`
				UserAgent string `json:"user_agent"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			if req.UserID <= 0 || req.OfferID <= 0 {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "user_id and offer_id are required")
				return
			}

			ctx := c.Request.Context()
			existing, err := repos.Referrals.FindByOffer(ctx, req.OfferID)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create referral")
				return
			}
			if existing != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Referral already exists")
				return
			}

			if req.IPAddress == "" {
				req.IPAddress = c.ClientIP()
			}
			if req.UserAgent == "" {
				req.UserAgent = c.Request.UserAgent()
			}

			ref, err := repos.Referrals.Create(ctx, Referral{
				UserID:       req.UserID,
				OfferID:      req.OfferID,
				TrackingCode: uuid.NewString(),
				IPAddress:    req.IPAddress,
				UserAgent:    req.UserAgent,
			})
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create referral")
				return
			}
			c.JSON(http.StatusOK, ref)
		})
	}

	admin := r.Group("/admin")
	admin.Use(adminOnly)
	{
		admin.POST("/catalog/import", func(c *gin.Context) {
			// Cap the upload before it is buffered, not after.
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportSize)
			data, err := c.GetRawData()
			if err != nil {
				respondError(c, http.StatusRequestEntityTooLarge, "VALIDATION_ERROR", "catalog document too large")
				return
			}
			doc, err := ParseCatalogDoc(data)
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
				return
			}
			res, err := ImportCatalog(c.Request.Context(), doc, repos.Categories, repos.Merchants, repos.Products)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "catalog import failed")
				return
			}
			c.JSON(http.StatusOK, res)
		})
	}

	return r
}

// parseSkipLimit parses skip/limit query params with a limit cap of 100.
func parseSkipLimit(skipStr, limitStr string) (int, int, error) {
	skip := 0
	limit := 100
	if skipStr != "" {
		v, err := strconv.Atoi(skipStr)
		if err != nil || v < 0 {
			return 0, 0, errors.New("invalid skip")
		}
		skip = v
	}
	if limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil || v <= 0 || v > 100 {
			return 0, 0, errors.New("invalid limit (1-100)")
		}
		limit = v
	}
	return skip, limit, nil
}
