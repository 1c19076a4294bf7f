package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	stdhttp "net/http"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"cvagent/internal/api/middleware"
	"cvagent/internal/auth"
	"cvagent/internal/database"
)

const refreshTokenCookieName = "refresh_token"
const refreshTokenBlacklistKeyPrefix = "auth:refresh:blacklist:"

const loginRateLimitPerHour = 10
const loginLockThreshold = 5
const loginLockTTL = 15 * time.Minute

// AccountHandler serves the signup, login and logout pages. Every POST is
// AJAX-aware: an X-Requested-With: XMLHttpRequest caller gets JSON with a
// redirect_url, everyone else gets a redirect or a re-rendered form.
type AccountHandler struct {
	db          *gorm.DB
	authService *auth.AuthService
	redis       redis.UniversalClient
	logger      *slog.Logger
}

func NewAccountHandler(db *gorm.DB, authService *auth.AuthService, redisClient redis.UniversalClient, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		db:          db,
		authService: authService,
		redis:       redisClient,
		logger:      logger,
	}
}

func isAjax(c *gin.Context) bool {
	return c.GetHeader("X-Requested-With") == "XMLHttpRequest"
}

func (h *AccountHandler) loggerFromContext(c *gin.Context) *slog.Logger {
	return middleware.LoggerFromContext(c)
}

// SignupForm serves the registration page.
func (h *AccountHandler) SignupForm(c *gin.Context) {
	c.HTML(http.StatusOK, "signup.html", gin.H{})
}

// Signup creates a new account from the registration form.
func (h *AccountHandler) Signup(c *gin.Context) {
	email := strings.ToLower(strings.TrimSpace(c.PostForm("email")))
	fullName := strings.TrimSpace(c.PostForm("full_name"))
	password := c.PostForm("password")
	password2 := c.PostForm("password2")

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c).With(slog.String("email", email))

	fail := func(status int, msg string) {
		if isAjax(c) {
			c.JSON(status, gin.H{"success": false, "error": msg})
			return
		}
		c.HTML(http.StatusOK, "signup.html", gin.H{"error": msg, "email": email, "fullName": fullName})
	}

	if email == "" || fullName == "" || password == "" {
		fail(http.StatusBadRequest, "All fields are required")
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		fail(http.StatusBadRequest, "Invalid email address")
		return
	}
	if password != password2 {
		fail(http.StatusBadRequest, "Passwords do not match")
		return
	}
	if len(password) < 8 {
		fail(http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	var existing database.User
	if err := h.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error; err == nil {
		logger.Info("signup conflict: email already registered")
		fail(http.StatusConflict, "An account with this email already exists")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("signup lookup failed", slog.Any("error", err))
		fail(http.StatusInternalServerError, "Internal error, please retry")
		return
	}

	hashed, err := h.authService.HashPassword(password)
	if err != nil {
		logger.Error("hash password failed", slog.Any("error", err))
		fail(http.StatusInternalServerError, "Internal error, please retry")
		return
	}

	user := database.User{Email: email, FullName: fullName, PasswordHash: hashed}
	if err := h.db.WithContext(ctx).Create(&user).Error; err != nil {
		logger.Error("create user failed", slog.Any("error", err))
		fail(http.StatusInternalServerError, "Internal error, please retry")
		return
	}

	logger.Info("user registered", slog.Uint64("user_id", uint64(user.ID)))
	redirectURL := "/login/?success=" + url.QueryEscape("Account created, you can sign in")
	if isAjax(c) {
		c.JSON(http.StatusOK, gin.H{"success": true, "redirect_url": redirectURL})
		return
	}
	c.Redirect(http.StatusFound, redirectURL)
}

// LoginForm serves the sign-in page.
func (h *AccountHandler) LoginForm(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", gin.H{"success": c.Query("success")})
}

// Login checks the password and sets the session cookies.
func (h *AccountHandler) Login(c *gin.Context) {
	ip := c.ClientIP()
	email := strings.ToLower(strings.TrimSpace(c.PostForm("email")))
	password := c.PostForm("password")

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c).With(slog.String("email", email))

	fail := func(status int, msg string) {
		if isAjax(c) {
			c.JSON(status, gin.H{"success": false, "error": msg})
			return
		}
		c.HTML(http.StatusOK, "login.html", gin.H{"error": msg, "email": email})
	}

	if email == "" || password == "" {
		fail(http.StatusBadRequest, "Email and password are required")
		return
	}

	// Rate limit: per IP+email, per hour.
	if h.redis != nil {
		rateKey := "rate:login:" + ip + ":" + email + ":" + time.Now().UTC().Format("2006010215")
		count, err := incrWithTTL(ctx, h.redis, rateKey, time.Hour)
		if err != nil {
			count = 0
		}
		if count > loginRateLimitPerHour {
			fail(http.StatusTooManyRequests, "Too many attempts, try again later")
			return
		}
		if ttl, _ := h.redis.TTL(ctx, "lock:login:"+email).Result(); ttl > 0 {
			fail(http.StatusTooManyRequests, "Account temporarily locked")
			return
		}
	}

	var user database.User
	if err := h.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Info("login failed: user not found")
			h.recordLoginFailure(ctx, email)
			fail(http.StatusUnauthorized, "Invalid email or password")
			return
		}
		logger.Error("login query failed", slog.Any("error", err))
		fail(http.StatusInternalServerError, "Internal error, please retry")
		return
	}

	if !user.IsActive {
		logger.Info("login failed: account disabled", slog.Uint64("user_id", uint64(user.ID)))
		fail(http.StatusUnauthorized, "Invalid email or password")
		return
	}

	if !h.authService.CheckPasswordHash(password, user.PasswordHash) {
		logger.Info("login failed: password mismatch", slog.Uint64("user_id", uint64(user.ID)))
		h.recordLoginFailure(ctx, email)
		fail(http.StatusUnauthorized, "Invalid email or password")
		return
	}

	if h.redis != nil {
		_ = h.redis.Del(ctx, "lock:login:fail:"+email).Err()
	}

	tokenPair, err := h.authService.GenerateTokenPair(user.ID)
	if err != nil {
		logger.Error("generate token pair failed", slog.Any("error", err))
		fail(http.StatusInternalServerError, "Internal error, please retry")
		return
	}

	h.setSessionCookies(c, tokenPair)
	logger.Info("user logged in", slog.Uint64("user_id", uint64(user.ID)))

	if isAjax(c) {
		c.JSON(http.StatusOK, gin.H{"success": true, "redirect_url": "/dashboard/"})
		return
	}
	c.Redirect(http.StatusFound, "/dashboard/")
}

// Logout revokes the refresh token and clears the session cookies.
func (h *AccountHandler) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	logger := h.loggerFromContext(c)

	if refreshToken, err := c.Cookie(refreshTokenCookieName); err == nil && refreshToken != "" {
		claims, err := h.authService.ValidateToken(refreshToken)
		if err == nil && claims.TokenType == "refresh" && claims.ID != "" {
			key := refreshTokenBlacklistKeyPrefix + claims.ID
			if err := h.revokeRefreshToken(ctx, key, claims.ExpiresAt); err != nil {
				logger.Error("revoke refresh token failed", slog.Any("error", err))
			}
		}
	}

	h.clearSessionCookies(c)
	c.Redirect(http.StatusFound, "/login/")
}

// recordLoginFailure counts failed attempts and locks the account past the
// threshold.
func (h *AccountHandler) recordLoginFailure(ctx context.Context, email string) {
	if h.redis == nil {
		return
	}
	failKey := "lock:login:fail:" + email
	count, err := incrWithTTL(ctx, h.redis, failKey, loginLockTTL)
	if err != nil {
		return
	}
	if count >= loginLockThreshold {
		_ = h.redis.Set(ctx, "lock:login:"+email, "1", loginLockTTL).Err()
	}
}

func (h *AccountHandler) setSessionCookies(c *gin.Context, tokenPair auth.TokenPair) {
	secure := c.Request.TLS != nil
	stdhttp.SetCookie(c.Writer, &stdhttp.Cookie{
		Name:     middleware.AccessTokenCookieName,
		Value:    tokenPair.AccessToken,
		MaxAge:   int(h.authService.AccessTokenTTL().Seconds()),
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: stdhttp.SameSiteLaxMode,
	})
	stdhttp.SetCookie(c.Writer, &stdhttp.Cookie{
		Name:     refreshTokenCookieName,
		Value:    tokenPair.RefreshToken,
		MaxAge:   int(h.authService.RefreshTokenTTL().Seconds()),
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: stdhttp.SameSiteLaxMode,
		Expires:  time.Now().Add(h.authService.RefreshTokenTTL()),
	})
}

func (h *AccountHandler) clearSessionCookies(c *gin.Context) {
	secure := c.Request.TLS != nil
	for _, name := range []string{middleware.AccessTokenCookieName, refreshTokenCookieName} {
		stdhttp.SetCookie(c.Writer, &stdhttp.Cookie{
			Name:     name,
			Value:    "",
			MaxAge:   -1,
			Path:     "/",
			Secure:   secure,
			HttpOnly: true,
			SameSite: stdhttp.SameSiteLaxMode,
		})
	}
}

func (h *AccountHandler) revokeRefreshToken(ctx context.Context, key string, expiresAt *jwt.NumericDate) error {
	if h.redis == nil {
		return nil
	}
	var ttl time.Duration
	if expiresAt == nil {
		ttl = h.authService.RefreshTokenTTL()
	} else {
		ttl = time.Until(expiresAt.Time)
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return h.redis.Set(ctx, key, "revoked", ttl).Err()
}
