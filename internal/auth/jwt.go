package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"campusroll/internal/model"
)

const (
	kindAccess  = "access"
	kindRefresh = "refresh"
)

var ErrWrongTokenKind = errors.New("wrong token kind")

// TokenPair holds access and refresh tokens.
type TokenPair struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	AccessExp    time.Time `json:"accessExpiresAt"`
	RefreshExp   time.Time `json:"refreshExpiresAt"`
}

// Claims is the identity claim the core consumes: the account id in the
// subject and its role.
type Claims struct {
	Role model.Role `json:"role"`
	Kind string     `json:"kind"`
	jwt.RegisteredClaims
}

// AccountID is the subject of the token.
func (c Claims) AccountID() string { return c.Subject }

// Signer issues and verifies HS256 tokens.
type Signer struct {
	issuer     string
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewSigner(issuer, key string, accessTTL, refreshTTL time.Duration) *Signer {
	return &Signer{issuer: issuer, key: []byte(key), accessTTL: accessTTL, refreshTTL: refreshTTL, now: time.Now}
}

// Issue signs an access and a refresh token for acc.
func (s *Signer) Issue(acc model.Account) (TokenPair, error) {
	now := s.now()
	pair := TokenPair{AccessExp: now.Add(s.accessTTL), RefreshExp: now.Add(s.refreshTTL)}

	var err error
	pair.AccessToken, err = s.sign(acc.ID, acc.Role, kindAccess, now, pair.AccessExp)
	if err != nil {
		return TokenPair{}, err
	}
	pair.RefreshToken, err = s.sign(acc.ID, acc.Role, kindRefresh, now, pair.RefreshExp)
	if err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

func (s *Signer) sign(subject string, role model.Role, kind string, now, exp time.Time) (string, error) {
	claims := Claims{
		Role: role,
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

// ParseAccess validates an access token and returns its claims.
func (s *Signer) ParseAccess(token string) (Claims, error) {
	return s.parse(token, kindAccess)
}

// Refresh exchanges a valid refresh token for a new pair.
func (s *Signer) Refresh(token string) (TokenPair, error) {
	claims, err := s.parse(token, kindRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	return s.Issue(model.Account{ID: claims.Subject, Role: claims.Role})
}

func (s *Signer) parse(tokenStr, kind string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.key, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if claims.Kind != kind {
		return Claims{}, ErrWrongTokenKind
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return Claims{}, errors.New("token carries no identity")
	}
	return *claims, nil
}
