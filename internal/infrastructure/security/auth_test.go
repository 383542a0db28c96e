package security

import (
	"testing"
	"time"

	"github.com/alchemorsel/dietgen/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

// AuthServiceTestSuite provides a test suite for AuthService
type AuthServiceTestSuite struct {
	suite.Suite
	authService *AuthService
	clock       time.Time
}

func (suite *AuthServiceTestSuite) SetupTest() {
	suite.clock = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	suite.authService = NewAuthService(config.AuthConfig{
		JWTSecret: "test-secret-key-for-testing-only-32-bytes",
		Issuer:    "dietgen",
		TokenTTL:  time.Hour,
	}, zap.NewNop())
	suite.authService.now = func() time.Time { return suite.clock }
}

func (suite *AuthServiceTestSuite) TestRoundTrip() {
	token, err := suite.authService.GenerateAccessToken("user-1", "ana@example.com")
	suite.Require().NoError(err)

	claims, err := suite.authService.ValidateToken(token)
	suite.Require().NoError(err)
	suite.Equal("user-1", claims.UserID)
	suite.Equal("ana@example.com", claims.Email)
	suite.Equal("dietgen", claims.Issuer)
}

func (suite *AuthServiceTestSuite) TestRejectsExpiredToken() {
	token, err := suite.authService.GenerateAccessToken("user-1", "")
	suite.Require().NoError(err)

	suite.clock = suite.clock.Add(2 * time.Hour)
	_, err = suite.authService.ValidateToken(token)
	suite.ErrorIs(err, ErrInvalidToken)
}

func (suite *AuthServiceTestSuite) TestRejectsForeignSecretAndIssuer() {
	other := NewAuthService(config.AuthConfig{JWTSecret: "another-secret", Issuer: "dietgen"}, zap.NewNop())
	token, err := other.GenerateAccessToken("user-1", "")
	suite.Require().NoError(err)
	_, err = suite.authService.ValidateToken(token)
	suite.ErrorIs(err, ErrInvalidToken)

	foreign := NewAuthService(config.AuthConfig{JWTSecret: "test-secret-key-for-testing-only-32-bytes", Issuer: "someone-else"}, zap.NewNop())
	token, err = foreign.GenerateAccessToken("user-1", "")
	suite.Require().NoError(err)
	_, err = suite.authService.ValidateToken(token)
	suite.ErrorIs(err, ErrInvalidToken)
}

func (suite *AuthServiceTestSuite) TestRejectsOtherSigningMethods() {
	claims := &Claims{UserID: "user-1", RegisteredClaims: jwt.RegisteredClaims{
		Issuer:   "dietgen",
		Audience: []string{audience},
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	suite.Require().NoError(err)

	_, err = suite.authService.ValidateToken(token)
	suite.ErrorIs(err, ErrInvalidToken)
}

func (suite *AuthServiceTestSuite) TestSubjectFallback() {
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "dietgen",
		Subject:   "user-9",
		Audience:  []string{audience},
		ExpiresAt: jwt.NewNumericDate(suite.clock.Add(time.Minute)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(suite.authService.secret)
	suite.Require().NoError(err)

	got, err := suite.authService.ValidateToken(token)
	suite.Require().NoError(err)
	suite.Equal("user-9", got.UserID)
}

func (suite *AuthServiceTestSuite) TestEmptyInputs() {
	_, err := suite.authService.ValidateToken("")
	suite.ErrorIs(err, ErrMissingToken)

	_, err = suite.authService.GenerateAccessToken("", "")
	suite.Error(err)
}

func (suite *AuthServiceTestSuite) TestDevelopmentSecretFallback() {
	svc := NewAuthService(config.AuthConfig{}, zap.NewNop())
	suite.Equal([]byte(DevelopmentSecret), svc.secret)
	suite.Equal(24*time.Hour, svc.ttl)
}

func TestAuthServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceTestSuite))
}
