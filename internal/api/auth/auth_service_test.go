package auth

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"

	"github.com/viberoll/viberoll/app/tracer"
	"github.com/viberoll/viberoll/config"
	"github.com/viberoll/viberoll/internal/types"
)

func TestMain(m *testing.M) {
	tracer.InitAppMetrics()
	os.Exit(m.Run())
}

// MockAuthRepo is a mock implementation of the AuthRepo interface
type MockAuthRepo struct {
	mock.Mock
}

func (m *MockAuthRepo) CreateUser(ctx context.Context, email, username, passwordHash string, isAdmin bool) (*types.User, error) {
	args := m.Called(ctx, email, username, passwordHash, isAdmin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockAuthRepo) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockAuthRepo) GetUserByID(ctx context.Context, id int64) (*types.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

// MockRevocationStore is a mock implementation of the RevocationStore interface
type MockRevocationStore struct {
	mock.Mock
}

func (m *MockRevocationStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	args := m.Called(ctx, jti, ttl)
	return args.Error(0)
}

func (m *MockRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	args := m.Called(ctx, jti)
	return args.Bool(0), args.Error(1)
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		SecretKey:        "test-access-secret",
		RefreshSecretKey: "test-refresh-secret",
		Issuer:           "viberoll-test",
		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenTTL:  7 * 24 * time.Hour,
	}
}

func newTestService(repo AuthRepo, revoker RevocationStore) *AuthServiceImpl {
	return NewAuthService(repo, NewTokenIssuer(testJWTConfig()), revoker, bcrypt.MinCost, slog.Default())
}

func TestRegister(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockAuthRepo)
		service := newTestService(mockRepo, new(MockRevocationStore))

		created := &types.User{ID: 1, Email: "new@example.com", Username: "newbie"}
		mockRepo.On("CreateUser", ctx, "new@example.com", "newbie", mock.AnythingOfType("string"), false).
			Return(created, nil).Once()

		user, err := service.Register(ctx, "new@example.com", "newbie", "password123")

		assert.NoError(t, err)
		assert.Equal(t, created, user)
		mockRepo.AssertExpectations(t)
	})

	t.Run("HashIsNotPlaintext", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockAuthRepo)
		service := newTestService(mockRepo, new(MockRevocationStore))

		mockRepo.On("CreateUser", ctx, "new@example.com", "newbie", mock.MatchedBy(func(hash string) bool {
			return hash != "password123" &&
				bcrypt.CompareHashAndPassword([]byte(hash), []byte("password123")) == nil
		}), false).Return(&types.User{ID: 1}, nil).Once()

		_, err := service.Register(ctx, "new@example.com", "newbie", "password123")

		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockAuthRepo)
		service := newTestService(mockRepo, new(MockRevocationStore))

		mockRepo.On("CreateUser", ctx, "taken@example.com", "dupe", mock.AnythingOfType("string"), false).
			Return(nil, types.ErrConflict).Once()

		user, err := service.Register(ctx, "taken@example.com", "dupe", "password123")

		assert.Nil(t, user)
		assert.ErrorIs(t, err, types.ErrConflict)
		mockRepo.AssertExpectations(t)
	})

	t.Run("MissingFields", func(t *testing.T) {
		mockRepo := new(MockAuthRepo)
		service := newTestService(mockRepo, new(MockRevocationStore))

		_, err := service.Register(context.Background(), "", "name", "password123")
		assert.ErrorIs(t, err, types.ErrBadRequest)

		_, err = service.Register(context.Background(), "a@b.com", "", "password123")
		assert.ErrorIs(t, err, types.ErrBadRequest)

		_, err = service.Register(context.Background(), "a@b.com", "name", "short")
		assert.ErrorIs(t, err, types.ErrBadRequest)

		mockRepo.AssertNotCalled(t, "CreateUser")
	})
}

func TestLogin(t *testing.T) {
	password := "password123"
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)

	t.Run("Success", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockAuthRepo)
		service := newTestService(mockRepo, new(MockRevocationStore))

		user := &types.User{ID: 42, Email: "test@example.com", Username: "testuser", Password: string(hashedPassword)}
		mockRepo.On("GetUserByEmail", ctx, user.Email).Return(user, nil).Once()

		accessToken, refreshToken, err := service.Login(ctx, user.Email, password)

		assert.NoError(t, err)
		assert.NotEmpty(t, accessToken)
		assert.NotEmpty(t, refreshToken)
		mockRepo.AssertExpectations(t)
	})

	t.Run("PairSharesJTI", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockAuthRepo)
		service := newTestService(mockRepo, new(MockRevocationStore))
		issuer := NewTokenIssuer(testJWTConfig())

		user := &types.User{ID: 42, Email: "test@example.com", Password: string(hashedPassword)}
		mockRepo.On("GetUserByEmail", ctx, user.Email).Return(user, nil).Once()

		accessToken, refreshToken, err := service.Login(ctx, user.Email, password)
		assert.NoError(t, err)

		accessClaims, err := issuer.VerifyAccess(accessToken)
		assert.NoError(t, err)
		refreshClaims, err := issuer.VerifyRefresh(refreshToken)
		assert.NoError(t, err)

		assert.NotEmpty(t, accessClaims.ID)
		assert.Equal(t, accessClaims.ID, refreshClaims.ID)
		assert.Equal(t, int64(42), accessClaims.UserID)
		assert.Equal(t, "test@example.com", accessClaims.Email)
	})

	t.Run("UserNotFound", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockAuthRepo)
		service := newTestService(mockRepo, new(MockRevocationStore))

		mockRepo.On("GetUserByEmail", ctx, "ghost@example.com").Return(nil, types.ErrNotFound).Once()

		_, _, err := service.Login(ctx, "ghost@example.com", password)

		assert.ErrorIs(t, err, types.ErrUnauthenticated)
		mockRepo.AssertExpectations(t)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockAuthRepo)
		service := newTestService(mockRepo, new(MockRevocationStore))

		user := &types.User{ID: 42, Email: "test@example.com", Password: string(hashedPassword)}
		mockRepo.On("GetUserByEmail", ctx, user.Email).Return(user, nil).Once()

		_, _, err := service.Login(ctx, user.Email, "wrong-password")

		// Same error as an unknown email, so callers cannot enumerate accounts.
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
		mockRepo.AssertExpectations(t)
	})

	t.Run("RepositoryFailure", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockAuthRepo)
		service := newTestService(mockRepo, new(MockRevocationStore))

		mockRepo.On("GetUserByEmail", ctx, "test@example.com").Return(nil, errors.New("connection refused")).Once()

		_, _, err := service.Login(ctx, "test@example.com", password)

		assert.Error(t, err)
		assert.NotErrorIs(t, err, types.ErrUnauthenticated)
		mockRepo.AssertExpectations(t)
	})
}

func TestRefresh(t *testing.T) {
	password := "password123"
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	user := &types.User{ID: 42, Email: "test@example.com", Username: "testuser", Password: string(hashedPassword)}
	issuer := NewTokenIssuer(testJWTConfig())

	t.Run("Success", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockAuthRepo)
		mockRevoker := new(MockRevocationStore)
		service := newTestService(mockRepo, mockRevoker)

		_, refreshToken, err := issuer.IssuePair(user)
		assert.NoError(t, err)
		refreshClaims, _ := issuer.VerifyRefresh(refreshToken)

		mockRevoker.On("IsRevoked", ctx, refreshClaims.ID).Return(false, nil).Once()
		mockRepo.On("GetUserByID", ctx, user.ID).Return(user, nil).Once()

		accessToken, err := service.Refresh(ctx, refreshToken)

		assert.NoError(t, err)
		newClaims, err := issuer.VerifyAccess(accessToken)
		assert.NoError(t, err)
		assert.Equal(t, refreshClaims.ID, newClaims.ID)
		assert.Equal(t, user.ID, newClaims.UserID)
		mockRepo.AssertExpectations(t)
		mockRevoker.AssertExpectations(t)
	})

	t.Run("RevokedSession", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockAuthRepo)
		mockRevoker := new(MockRevocationStore)
		service := newTestService(mockRepo, mockRevoker)

		_, refreshToken, _ := issuer.IssuePair(user)
		refreshClaims, _ := issuer.VerifyRefresh(refreshToken)

		mockRevoker.On("IsRevoked", ctx, refreshClaims.ID).Return(true, nil).Once()

		_, err := service.Refresh(ctx, refreshToken)

		assert.ErrorIs(t, err, types.ErrUnauthenticated)
		mockRepo.AssertNotCalled(t, "GetUserByID")
		mockRevoker.AssertExpectations(t)
	})

	t.Run("AccessTokenRejected", func(t *testing.T) {
		mockRepo := new(MockAuthRepo)
		service := newTestService(mockRepo, new(MockRevocationStore))

		// An access token must never pass as a refresh token.
		accessToken, _, _ := issuer.IssuePair(user)

		_, err := service.Refresh(context.Background(), accessToken)

		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})

	t.Run("GarbageToken", func(t *testing.T) {
		service := newTestService(new(MockAuthRepo), new(MockRevocationStore))

		_, err := service.Refresh(context.Background(), "not-a-jwt")

		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})

	t.Run("UserDeletedSinceLogin", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockAuthRepo)
		mockRevoker := new(MockRevocationStore)
		service := newTestService(mockRepo, mockRevoker)

		_, refreshToken, _ := issuer.IssuePair(user)
		refreshClaims, _ := issuer.VerifyRefresh(refreshToken)

		mockRevoker.On("IsRevoked", ctx, refreshClaims.ID).Return(false, nil).Once()
		mockRepo.On("GetUserByID", ctx, user.ID).Return(nil, types.ErrNotFound).Once()

		_, err := service.Refresh(ctx, refreshToken)

		assert.ErrorIs(t, err, types.ErrUnauthenticated)
		mockRepo.AssertExpectations(t)
	})
}

func TestLogout(t *testing.T) {
	issuer := NewTokenIssuer(testJWTConfig())
	user := &types.User{ID: 42, Email: "test@example.com"}

	t.Run("RevokesWithRemainingTTL", func(t *testing.T) {
		ctx := context.Background()
		mockRevoker := new(MockRevocationStore)
		service := newTestService(new(MockAuthRepo), mockRevoker)

		accessToken, _, _ := issuer.IssuePair(user)
		claims, _ := issuer.VerifyAccess(accessToken)

		mockRevoker.On("Revoke", ctx, claims.ID, mock.MatchedBy(func(ttl time.Duration) bool {
			return ttl > 14*time.Minute && ttl <= 15*time.Minute
		})).Return(nil).Once()

		err := service.Logout(ctx, claims)

		assert.NoError(t, err)
		mockRevoker.AssertExpectations(t)
	})

	t.Run("StoreFailure", func(t *testing.T) {
		ctx := context.Background()
		mockRevoker := new(MockRevocationStore)
		service := newTestService(new(MockAuthRepo), mockRevoker)

		accessToken, _, _ := issuer.IssuePair(user)
		claims, _ := issuer.VerifyAccess(accessToken)

		mockRevoker.On("Revoke", ctx, claims.ID, mock.AnythingOfType("time.Duration")).
			Return(errors.New("redis down")).Once()

		err := service.Logout(ctx, claims)

		assert.Error(t, err)
		mockRevoker.AssertExpectations(t)
	})
}
