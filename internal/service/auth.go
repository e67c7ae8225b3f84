package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	googleOAuth "golang.org/x/oauth2/google"

	"github.com/sumire/todoshare/internal/changefeed"
	"github.com/sumire/todoshare/internal/domain"
)

// AuthConfig holds token and OAuth configuration. OAuth providers without a
// client id are disabled.
type AuthConfig struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	GitHubClientID     string
	GitHubClientSecret string
	FrontendURL        string
}

// AuthService is the auth provider: accounts, tokens and session lifecycle.
type AuthService struct {
	users      UserStore
	profiles   ProfileStore
	announcer  announcer
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	google     *oauth2.Config
	github     *oauth2.Config
	httpClient *http.Client
}

// NewAuthService creates a new AuthService.
func NewAuthService(users UserStore, profiles ProfileStore, events changefeed.Publisher, logger *zap.Logger, cfg AuthConfig) *AuthService {
	s := &AuthService{
		users:      users,
		profiles:   profiles,
		announcer:  announcer{events: events, logger: logger},
		jwtSecret:  []byte(cfg.JWTSecret),
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		httpClient: http.DefaultClient,
	}
	if cfg.GoogleClientID != "" {
		s.google = &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			Endpoint:     googleOAuth.Endpoint,
			Scopes:       []string{"openid", "profile", "email"},
			RedirectURL:  cfg.FrontendURL + "/auth/google/callback",
		}
	}
	if cfg.GitHubClientID != "" {
		s.github = &oauth2.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			Endpoint:     github.Endpoint,
			Scopes:       []string{"user:email"},
			RedirectURL:  cfg.FrontendURL + "/auth/github/callback",
		}
	}
	return s
}

// TokenPair holds an access token and refresh token.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Session is what a successful sign-up or sign-in returns.
type Session struct {
	User   domain.Identity `json:"user"`
	Tokens TokenPair       `json:"tokens"`
}

// Claims is the verified content of an access token.
type Claims struct {
	Identity  domain.Identity
	ExpiresAt time.Time
}

// SignUp creates a password account and signs it in. The profile row is
// created separately by the client.
func (s *AuthService) SignUp(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	hashStr := string(hash)

	user, err := s.users.Create(ctx, domain.User{
		Provider:     domain.AuthProviderPassword,
		Email:        email,
		PasswordHash: &hashStr,
	})
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	return s.newSession(user)
}

// SignIn verifies credentials. Unknown emails and wrong passwords fail the
// same way.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("look up account: %w", err)
	}

	if user.PasswordHash == nil {
		return nil, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	return s.newSession(user)
}

// SignOut invalidates every token of the identity and tells its open event
// streams.
func (s *AuthService) SignOut(ctx context.Context, userID string) error {
	if _, err := s.users.BumpSessionEpoch(ctx, userID); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	s.announcer.publish(ctx, changefeed.SessionEvent(changefeed.EventSignedOut, userID))
	return nil
}

// ValidateToken verifies an access token and that the session behind it has
// not been ended.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	user, claims, err := s.verify(ctx, tokenString, "access")
	if err != nil {
		return nil, err
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, domain.ErrUnauthorized
	}

	return &Claims{Identity: user.Identity(), ExpiresAt: exp.Time}, nil
}

// RefreshAccessToken validates a refresh token and returns a new token pair.
func (s *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	user, _, err := s.verify(ctx, refreshToken, "refresh")
	if err != nil {
		return nil, err
	}
	return s.generateTokenPair(user)
}

// GetUser retrieves an account by ID.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.FindByID(ctx, userID)
}

func (s *AuthService) verify(ctx context.Context, tokenString, wantType string) (*domain.User, jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, nil, domain.ErrUnauthorized
	}

	tokenType, _ := claims["type"].(string)
	if tokenType != wantType {
		return nil, nil, domain.ErrUnauthorized
	}

	userID, _ := claims["sub"].(string)
	version, ok := claims["ver"].(float64)
	if userID == "" || !ok {
		return nil, nil, domain.ErrUnauthorized
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, domain.ErrUnauthorized
		}
		return nil, nil, fmt.Errorf("load token subject: %w", err)
	}
	if int(version) != user.SessionEpoch {
		return nil, nil, fmt.Errorf("%w: session ended", domain.ErrUnauthorized)
	}

	return user, claims, nil
}

func (s *AuthService) newSession(user *domain.User) (*Session, error) {
	pair, err := s.generateTokenPair(user)
	if err != nil {
		return nil, err
	}
	return &Session{User: user.Identity(), Tokens: *pair}, nil
}

func (s *AuthService) generateTokenPair(user *domain.User) (*TokenPair, error) {
	now := time.Now()
	accessExp := now.Add(s.accessTTL)

	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"type":  "access",
		"ver":   user.SessionEpoch,
		"iat":   now.Unix(),
		"exp":   accessExp.Unix(),
	})
	accessStr, err := accessToken.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.ID,
		"type": "refresh",
		"ver":  user.SessionEpoch,
		"iat":  now.Unix(),
		"exp":  now.Add(s.refreshTTL).Unix(),
	})
	refreshStr, err := refreshToken.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessStr,
		RefreshToken: refreshStr,
		ExpiresAt:    time.Unix(accessExp.Unix(), 0).UTC(),
	}, nil
}

// GoogleEnabled reports whether Google sign-in is configured.
func (s *AuthService) GoogleEnabled() bool { return s.google != nil }

// GitHubEnabled reports whether GitHub sign-in is configured.
func (s *AuthService) GitHubEnabled() bool { return s.github != nil }

// GoogleAuthURL returns the Google OAuth authorization URL.
func (s *AuthService) GoogleAuthURL(state string) string {
	return s.google.AuthCodeURL(state)
}

// GitHubAuthURL returns the GitHub OAuth authorization URL.
func (s *AuthService) GitHubAuthURL(state string) string {
	return s.github.AuthCodeURL(state)
}

// GoogleCallback exchanges the authorization code and signs the account in.
func (s *AuthService) GoogleCallback(ctx context.Context, code string) (*Session, error) {
	token, err := s.google.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: google token exchange: %v", domain.ErrUnauthorized, err)
	}

	var info struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := s.fetchJSON(ctx, token.AccessToken, "https://www.googleapis.com/oauth2/v2/userinfo", &info); err != nil {
		return nil, fmt.Errorf("fetch google user info: %w", err)
	}

	return s.oauthSession(ctx, domain.AuthProviderGoogle, info.ID, info.Email)
}

// GitHubCallback exchanges the authorization code and signs the account in.
func (s *AuthService) GitHubCallback(ctx context.Context, code string) (*Session, error) {
	token, err := s.github.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: github token exchange: %v", domain.ErrUnauthorized, err)
	}

	var info struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
	}
	if err := s.fetchJSON(ctx, token.AccessToken, "https://api.github.com/user", &info); err != nil {
		return nil, fmt.Errorf("fetch github user info: %w", err)
	}

	if info.Email == "" {
		var emails []struct {
			Email   string `json:"email"`
			Primary bool   `json:"primary"`
		}
		if err := s.fetchJSON(ctx, token.AccessToken, "https://api.github.com/user/emails", &emails); err != nil {
			return nil, fmt.Errorf("fetch github emails: %w", err)
		}
		for _, e := range emails {
			if e.Primary || info.Email == "" {
				info.Email = e.Email
			}
		}
		if info.Email == "" {
			return nil, fmt.Errorf("%w: no email found for github user", domain.ErrUnauthorized)
		}
	}

	return s.oauthSession(ctx, domain.AuthProviderGitHub, fmt.Sprintf("%d", info.ID), info.Email)
}

// oauthSession upserts the account and its profile, so OAuth users can be
// found by email as soon as they first sign in.
func (s *AuthService) oauthSession(ctx context.Context, provider domain.AuthProvider, providerID, email string) (*Session, error) {
	user, err := s.users.UpsertOAuth(ctx, domain.User{
		Provider:   provider,
		ProviderID: &providerID,
		Email:      email,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert %s user: %w", provider, err)
	}

	if err := s.profiles.Ensure(ctx, domain.Profile{ID: user.ID, Email: user.Email}); err != nil {
		return nil, fmt.Errorf("ensure profile: %w", err)
	}

	return s.newSession(user)
}

func (s *AuthService) fetchJSON(ctx context.Context, accessToken, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
