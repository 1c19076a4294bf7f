package api

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"cvagent/internal/auth"
	"cvagent/internal/database"
)

func newTestAuthService(t *testing.T) *auth.AuthService {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	svc, err := auth.NewAuthService(privPEM, pubPEM, 15*time.Minute, 24*time.Hour)
	if err != nil {
		t.Fatalf("new auth service: %v", err)
	}
	return svc
}

func newAccountRouter(t *testing.T, h *AccountHandler) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.LoadHTMLGlob("../../web/templates/*.html")
	r.GET("/signup/", h.SignupForm)
	r.POST("/signup/", h.Signup)
	r.GET("/login/", h.LoginForm)
	r.POST("/login/", h.Login)
	r.GET("/logout/", h.Logout)
	return r
}

func postForm(t *testing.T, router *gin.Engine, path string, values url.Values, ajax bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if ajax {
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSignup_CreatesAccount(t *testing.T) {
	db := newTestDB(t)
	h := NewAccountHandler(db, newTestAuthService(t), nil, discardLogger())
	router := newAccountRouter(t, h)

	w := postForm(t, router, "/signup/", url.Values{
		"email":     {"jean@example.com"},
		"full_name": {"Jean Dupont"},
		"password":  {"s3cret-pass"},
		"password2": {"s3cret-pass"},
	}, true)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Success     bool   `json:"success"`
		RedirectURL string `json:"redirect_url"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || !strings.HasPrefix(resp.RedirectURL, "/login/") {
		t.Fatalf("unexpected response %+v", resp)
	}

	var user database.User
	if err := db.Where("email = ?", "jean@example.com").First(&user).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if user.PasswordHash == "s3cret-pass" {
		t.Fatalf("password must be hashed")
	}
}

func TestSignup_DuplicateEmailConflicts(t *testing.T) {
	db := newTestDB(t)
	createUser(t, db, "jean@example.com")
	h := NewAccountHandler(db, newTestAuthService(t), nil, discardLogger())
	router := newAccountRouter(t, h)

	w := postForm(t, router, "/signup/", url.Values{
		"email":     {"jean@example.com"},
		"full_name": {"Jean Dupont"},
		"password":  {"s3cret-pass"},
		"password2": {"s3cret-pass"},
	}, true)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestSignup_PasswordMismatch(t *testing.T) {
	db := newTestDB(t)
	h := NewAccountHandler(db, newTestAuthService(t), nil, discardLogger())
	router := newAccountRouter(t, h)

	w := postForm(t, router, "/signup/", url.Values{
		"email":     {"jean@example.com"},
		"full_name": {"Jean Dupont"},
		"password":  {"s3cret-pass"},
		"password2": {"different"},
	}, true)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var n int64
	db.Model(&database.User{}).Count(&n)
	if n != 0 {
		t.Fatalf("expected no users, got %d", n)
	}
}

func TestLogin_SetsSessionCookies(t *testing.T) {
	db := newTestDB(t)
	authService := newTestAuthService(t)
	hashed, err := authService.HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user := database.User{Email: "jean@example.com", FullName: "Jean Dupont", PasswordHash: hashed, IsActive: true}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	h := NewAccountHandler(db, authService, nil, discardLogger())
	router := newAccountRouter(t, h)

	w := postForm(t, router, "/login/", url.Values{
		"email":    {"jean@example.com"},
		"password": {"s3cret-pass"},
	}, true)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	cookies := w.Result().Cookies()
	var access, refresh string
	for _, cookie := range cookies {
		switch cookie.Name {
		case "access_token":
			access = cookie.Value
		case "refresh_token":
			refresh = cookie.Value
		}
	}
	if access == "" || refresh == "" {
		t.Fatalf("expected both session cookies, got %v", cookies)
	}

	claims, err := authService.ValidateToken(access)
	if err != nil {
		t.Fatalf("validate access token: %v", err)
	}
	if claims.UserID != user.ID || claims.TokenType != "access" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestLogin_WrongPasswordUnauthorized(t *testing.T) {
	db := newTestDB(t)
	authService := newTestAuthService(t)
	hashed, _ := authService.HashPassword("s3cret-pass")
	user := database.User{Email: "jean@example.com", PasswordHash: hashed, IsActive: true}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	h := NewAccountHandler(db, authService, nil, discardLogger())
	router := newAccountRouter(t, h)

	w := postForm(t, router, "/login/", url.Values{
		"email":    {"jean@example.com"},
		"password": {"wrong"},
	}, true)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestLogin_NonAjaxRedirects(t *testing.T) {
	db := newTestDB(t)
	authService := newTestAuthService(t)
	hashed, _ := authService.HashPassword("s3cret-pass")
	user := database.User{Email: "jean@example.com", PasswordHash: hashed, IsActive: true}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	h := NewAccountHandler(db, authService, nil, discardLogger())
	router := newAccountRouter(t, h)

	w := postForm(t, router, "/login/", url.Values{
		"email":    {"jean@example.com"},
		"password": {"s3cret-pass"},
	}, false)

	if w.Code != http.StatusFound {
		t.Fatalf("expected redirect, got %d", w.Code)
	}
	if location := w.Header().Get("Location"); location != "/dashboard/" {
		t.Fatalf("unexpected redirect %q", location)
	}
}

func TestLogout_ClearsCookies(t *testing.T) {
	db := newTestDB(t)
	h := NewAccountHandler(db, newTestAuthService(t), nil, discardLogger())
	router := newAccountRouter(t, h)

	req := httptest.NewRequest(http.MethodGet, "/logout/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("expected redirect, got %d", w.Code)
	}
	if location := w.Header().Get("Location"); location != "/login/" {
		t.Fatalf("unexpected redirect %q", location)
	}
	for _, cookie := range w.Result().Cookies() {
		if cookie.MaxAge != -1 {
			t.Fatalf("expected cookie %q cleared, got MaxAge=%d", cookie.Name, cookie.MaxAge)
		}
	}
}
