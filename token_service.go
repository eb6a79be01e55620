package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenService signs and validates one class of bearer token. Access and
// refresh tokens each get their own instance with an independent secret and
// TTL, so compromising one does not compromise the other.
type TokenService interface {
	TokenValidator
	Issue(identity Identity) (string, error)
	NewClaims(identity Identity) (*JWTClaims, error)
	SignClaims(claims *JWTClaims) (string, error)
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	use        TokenUse
	logger     Logger
}

// NewTokenService creates a new TokenService instance for one token class.
func NewTokenService(signingKey []byte, ttl time.Duration, issuer string, audience jwt.ClaimStrings, use TokenUse, logger Logger) TokenService {
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenServiceImpl{
		signingKey: signingKey,
		ttl:        ttl,
		issuer:     issuer,
		audience:   audience,
		use:        use,
		logger:     logger,
	}
}

// Issue creates a signed JWT for the given identity. Access tokens encode
// identity, email, username, and fullname; refresh tokens encode only the
// identity, they exist to mint new access tokens and nothing else.
func (ts *TokenServiceImpl) Issue(identity Identity) (string, error) {
	claims, err := ts.NewClaims(identity)
	if err != nil {
		return "", err
	}

	return ts.SignClaims(claims)
}

// NewClaims builds the unsigned claims for this token class, jti included.
func (ts *TokenServiceImpl) NewClaims(identity Identity) (*JWTClaims, error) {
	if identity == nil {
		return nil, errors.New("identity is required", errors.CategoryBadInput)
	}

	now := time.Now()
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			Audience:  ts.copyAudience(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.ttl)),
		},
		UID:      identity.ID(),
		TokenUse: ts.use,
	}

	if ts.use == TokenUseAccess {
		claims.UserEmail = identity.Email()
		claims.UserName = identity.Username()
		claims.UserFullname = identity.Fullname()
	}

	ensureTokenID(&claims.RegisteredClaims)

	return claims, nil
}

// SignClaims signs arbitrary JWT claims using the configured signing key.
func (ts *TokenServiceImpl) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and validates a token string, returning structured claims.
// Expired tokens surface as ErrTokenExpired, everything else that fails the
// signature or structure checks as ErrTokenMalformed, and a token of the
// wrong class as ErrTokenWrongUse.
func (ts *TokenServiceImpl) Validate(tokenString string) (SessionClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 3)
	parserOptions = append(parserOptions, jwt.WithExpirationRequired())
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		ts.logger.Error("TokenService validate could not decode or validate claims")
		return nil, ErrUnableToDecodeSession
	}

	if claims.TokenUse != ts.use {
		return nil, ErrTokenWrongUse
	}

	return claims, nil
}

func (ts *TokenServiceImpl) copyAudience() jwt.ClaimStrings {
	if len(ts.audience) == 0 {
		return nil
	}
	aud := make(jwt.ClaimStrings, len(ts.audience))
	copy(aud, ts.audience)
	return aud
}
