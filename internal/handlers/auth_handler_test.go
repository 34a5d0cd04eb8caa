package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "budgetbook/internal/errors"
	"budgetbook/internal/logger"
	"budgetbook/internal/middleware"
	"budgetbook/internal/models"
	"budgetbook/internal/services"
	"budgetbook/internal/validator"
)

// --- mock services ---

type mockUserService struct {
	signUpFn                func(identifier, password string) (*models.User, error)
	signInFn                func(identifier, password string) (*models.User, error)
	signOutFn               func(userID string) error
	getUserByIDFn           func(id string) (*models.User, error)
	updateProfileFn         func(userID string, name, avatarURL *string) (*models.Profile, error)
	storeRefreshTokenHashFn func(userID, tokenHash string) error
	getRefreshTokenHashFn   func(userID string) (string, error)
}

func (m *mockUserService) SignUp(_ context.Context, identifier, password string) (*models.User, error) {
	if m.signUpFn != nil {
		return m.signUpFn(identifier, password)
	}
	return &models.User{}, nil
}

func (m *mockUserService) SignIn(_ context.Context, identifier, password string) (*models.User, error) {
	if m.signInFn != nil {
		return m.signInFn(identifier, password)
	}
	return &models.User{}, nil
}

func (m *mockUserService) SignOut(_ context.Context, userID string) error {
	if m.signOutFn != nil {
		return m.signOutFn(userID)
	}
	return nil
}

func (m *mockUserService) GetUserByID(_ context.Context, id string) (*models.User, error) {
	if m.getUserByIDFn != nil {
		return m.getUserByIDFn(id)
	}
	return &models.User{}, nil
}

func (m *mockUserService) UpdateProfile(_ context.Context, userID string, name, avatarURL *string) (*models.Profile, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(userID, name, avatarURL)
	}
	return &models.Profile{}, nil
}

func (m *mockUserService) StoreRefreshTokenHash(_ context.Context, userID, tokenHash string) error {
	if m.storeRefreshTokenHashFn != nil {
		return m.storeRefreshTokenHashFn(userID, tokenHash)
	}
	return nil
}

func (m *mockUserService) GetRefreshTokenHash(_ context.Context, userID string) (string, error) {
	if m.getRefreshTokenHashFn != nil {
		return m.getRefreshTokenHashFn(userID)
	}
	return "", nil
}

var _ services.UserServicer = (*mockUserService)(nil)

type auditEntry struct {
	userID, action, resourceType, resourceID string
}

type mockAuditService struct {
	entries []auditEntry
}

func (m *mockAuditService) Log(_ context.Context, userID, action, resourceType, resourceID, _ string, _ map[string]interface{}) {
	m.entries = append(m.entries, auditEntry{userID, action, resourceType, resourceID})
}

// --- test helpers ---

const testUserID = "user-1"

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

func setupAuthRouter(handler *AuthHandler) *gin.Engine {
	r := gin.New()
	r.POST("/auth/signup", handler.SignUp)
	r.POST("/auth/signin", handler.SignIn)
	r.POST("/auth/refresh", handler.Refresh)
	auth := r.Group("", injectUserID(testUserID))
	auth.GET("/auth/session", handler.GetSession)
	auth.POST("/auth/signout", handler.SignOut)
	auth.GET("/profile", handler.GetProfile)
	auth.PUT("/profile", handler.UpdateProfile)
	return r
}

func injectUserID(uid string) gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.SetSession(c, middleware.Session{UserID: uid, Email: uid + "@temp.com"})
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}

func testUser(id, email, name string) *models.User {
	return &models.User{
		Base:    models.Base{ID: id},
		Email:   email,
		Profile: &models.Profile{ID: id, Name: name},
	}
}

// --- tests ---

func TestAuthHandler_SignUp(t *testing.T) {
	t.Run("returns 201 on success", func(t *testing.T) {
		var gotIdentifier string
		userSvc := &mockUserService{
			signUpFn: func(identifier, _ string) (*models.User, error) {
				gotIdentifier = identifier
				return testUser("u-1", "alice@temp.com", "alice"), nil
			},
		}
		r := setupAuthRouter(NewAuthHandler(userSvc))

		rec := doRequest(r, "POST", "/auth/signup", `{"email":"alice","password":"password123"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotIdentifier != "alice" {
			t.Errorf("expected identifier to reach the service unchanged, got %q", gotIdentifier)
		}
		result := parseJSON(t, rec)
		if result["access_token"] == nil || result["access_token"] == "" {
			t.Error("expected non-empty access_token")
		}
		if result["refresh_token"] == nil || result["refresh_token"] == "" {
			t.Error("expected non-empty refresh_token")
		}
		user := result["user"].(map[string]interface{})
		if user["email"] != "alice@temp.com" || user["name"] != "alice" {
			t.Errorf("unexpected user %v", user)
		}
	})

	t.Run("returns 400 on missing email", func(t *testing.T) {
		r := setupAuthRouter(NewAuthHandler(&mockUserService{}))

		rec := doRequest(r, "POST", "/auth/signup", `{"password":"password123"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 400 on short password", func(t *testing.T) {
		r := setupAuthRouter(NewAuthHandler(&mockUserService{}))

		rec := doRequest(r, "POST", "/auth/signup", `{"email":"alice","password":"short"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 409 on duplicate email", func(t *testing.T) {
		userSvc := &mockUserService{
			signUpFn: func(_, _ string) (*models.User, error) {
				return nil, apperrors.ErrDuplicateEmail
			},
		}
		r := setupAuthRouter(NewAuthHandler(userSvc))

		rec := doRequest(r, "POST", "/auth/signup", `{"email":"dup@example.com","password":"password123"}`)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "DUPLICATE_EMAIL")
	})

	t.Run("stores refresh token hash", func(t *testing.T) {
		var storedFor, storedHash string
		userSvc := &mockUserService{
			signUpFn: func(_, _ string) (*models.User, error) {
				return testUser("u-42", "bob@temp.com", "bob"), nil
			},
			storeRefreshTokenHashFn: func(userID, hash string) error {
				storedFor, storedHash = userID, hash
				return nil
			},
		}
		r := setupAuthRouter(NewAuthHandler(userSvc))

		rec := doRequest(r, "POST", "/auth/signup", `{"email":"bob","password":"password123"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
		if storedFor != "u-42" {
			t.Errorf("expected hash stored for u-42, got %q", storedFor)
		}
		if len(storedHash) != 64 {
			t.Errorf("expected SHA-256 hex digest (64 chars), got %d chars", len(storedHash))
		}
	})

	t.Run("returns 500 when token storage fails", func(t *testing.T) {
		userSvc := &mockUserService{
			signUpFn: func(_, _ string) (*models.User, error) {
				return testUser("u-1", "a@b.c", "a"), nil
			},
			storeRefreshTokenHashFn: func(_, _ string) error {
				return fmt.Errorf("db connection lost")
			},
		}
		r := setupAuthRouter(NewAuthHandler(userSvc))

		rec := doRequest(r, "POST", "/auth/signup", `{"email":"a@b.c","password":"password123"}`)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INTERNAL_ERROR")
	})
}

func TestAuthHandler_SignIn(t *testing.T) {
	t.Run("returns 200 with tokens", func(t *testing.T) {
		userSvc := &mockUserService{
			signInFn: func(identifier, password string) (*models.User, error) {
				if identifier != "carol@example.com" || password != "password123" {
					return nil, apperrors.ErrInvalidCredentials
				}
				return testUser("u-7", identifier, "carol"), nil
			},
		}
		r := setupAuthRouter(NewAuthHandler(userSvc))

		rec := doRequest(r, "POST", "/auth/signin", `{"email":"carol@example.com","password":"password123"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		if result["access_token"] == "" {
			t.Error("expected non-empty access_token")
		}
		if result["user"].(map[string]interface{})["id"] != "u-7" {
			t.Errorf("unexpected user %v", result["user"])
		}
	})

	t.Run("returns 401 on invalid credentials", func(t *testing.T) {
		userSvc := &mockUserService{
			signInFn: func(_, _ string) (*models.User, error) {
				return nil, apperrors.ErrInvalidCredentials
			},
		}
		r := setupAuthRouter(NewAuthHandler(userSvc))

		rec := doRequest(r, "POST", "/auth/signin", `{"email":"carol","password":"wrong"}`)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		result := parseJSON(t, rec)
		assertErrorCode(t, result, "INVALID_CREDENTIALS")
		if msg := result["error"].(map[string]interface{})["message"]; msg != apperrors.ErrInvalidCredentials.Message {
			t.Errorf("expected message %q, got %v", apperrors.ErrInvalidCredentials.Message, msg)
		}
	})

	t.Run("returns 400 on missing password", func(t *testing.T) {
		r := setupAuthRouter(NewAuthHandler(&mockUserService{}))

		rec := doRequest(r, "POST", "/auth/signin", `{"email":"carol"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestAuthHandler_Refresh(t *testing.T) {
	user := testUser("u-9", "dan@temp.com", "dan")

	t.Run("returns new tokens for a valid refresh token", func(t *testing.T) {
		refreshToken, err := middleware.GenerateRefreshToken(user)
		if err != nil {
			t.Fatalf("failed to generate refresh token: %v", err)
		}
		var rotated string
		userSvc := &mockUserService{
			getRefreshTokenHashFn: func(string) (string, error) { return middleware.HashToken(refreshToken), nil },
			getUserByIDFn:         func(string) (*models.User, error) { return user, nil },
			storeRefreshTokenHashFn: func(_, hash string) error {
				rotated = hash
				return nil
			},
		}
		r := setupAuthRouter(NewAuthHandler(userSvc))

		rec := doRequest(r, "POST", "/auth/refresh", fmt.Sprintf(`{"refresh_token":%q}`, refreshToken))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if rotated == "" {
			t.Error("expected the refresh token hash to be rotated")
		}
	})

	t.Run("returns 401 after sign-out", func(t *testing.T) {
		refreshToken, _ := middleware.GenerateRefreshToken(user)
		userSvc := &mockUserService{
			getRefreshTokenHashFn: func(string) (string, error) { return "", nil },
		}
		r := setupAuthRouter(NewAuthHandler(userSvc))

		rec := doRequest(r, "POST", "/auth/refresh", fmt.Sprintf(`{"refresh_token":%q}`, refreshToken))

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "UNAUTHORIZED")
	})

	t.Run("rejects access tokens", func(t *testing.T) {
		accessToken, _ := middleware.GenerateAccessToken(user)
		r := setupAuthRouter(NewAuthHandler(&mockUserService{}))

		rec := doRequest(r, "POST", "/auth/refresh", fmt.Sprintf(`{"refresh_token":%q}`, accessToken))

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}

func TestAuthHandler_Session(t *testing.T) {
	t.Run("returns the current session", func(t *testing.T) {
		r := setupAuthRouter(NewAuthHandler(&mockUserService{}))

		rec := doRequest(r, "GET", "/auth/session", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		session := parseJSON(t, rec)["session"].(map[string]interface{})
		if session["user_id"] != testUserID {
			t.Errorf("expected user_id %s, got %v", testUserID, session["user_id"])
		}
	})

	t.Run("returns 401 without auth", func(t *testing.T) {
		handler := NewAuthHandler(&mockUserService{})
		r := gin.New()
		r.GET("/auth/session", handler.GetSession)

		rec := doRequest(r, "GET", "/auth/session", "")

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}

func TestAuthHandler_SignOut(t *testing.T) {
	var signedOut string
	userSvc := &mockUserService{
		signOutFn: func(userID string) error {
			signedOut = userID
			return nil
		},
	}
	r := setupAuthRouter(NewAuthHandler(userSvc))

	rec := doRequest(r, "POST", "/auth/signout", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if signedOut != testUserID {
		t.Errorf("expected sign-out for %s, got %q", testUserID, signedOut)
	}
}

func TestAuthHandler_Profile(t *testing.T) {
	t.Run("get returns the profile", func(t *testing.T) {
		userSvc := &mockUserService{
			getUserByIDFn: func(id string) (*models.User, error) {
				return testUser(id, "erin@temp.com", "erin"), nil
			},
		}
		r := setupAuthRouter(NewAuthHandler(userSvc))

		rec := doRequest(r, "GET", "/profile", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		user := parseJSON(t, rec)["user"].(map[string]interface{})
		if user["name"] != "erin" {
			t.Errorf("expected name erin, got %v", user["name"])
		}
	})

	t.Run("update passes optional fields", func(t *testing.T) {
		var gotName, gotAvatar *string
		userSvc := &mockUserService{
			updateProfileFn: func(userID string, name, avatarURL *string) (*models.Profile, error) {
				gotName, gotAvatar = name, avatarURL
				return &models.Profile{ID: userID, Name: *name}, nil
			},
		}
		r := setupAuthRouter(NewAuthHandler(userSvc))

		rec := doRequest(r, "PUT", "/profile", `{"name":"Erin"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotName == nil || *gotName != "Erin" {
			t.Errorf("expected name Erin, got %v", gotName)
		}
		if gotAvatar != nil {
			t.Errorf("expected avatar to be left alone, got %q", *gotAvatar)
		}
	})

	t.Run("update surfaces validation errors", func(t *testing.T) {
		userSvc := &mockUserService{
			updateProfileFn: func(string, *string, *string) (*models.Profile, error) {
				return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "name is required")
			},
		}
		r := setupAuthRouter(NewAuthHandler(userSvc))

		rec := doRequest(r, "PUT", "/profile", `{"name":"  "}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})
}
