package identity

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// Text codes exposed to API consumers alongside the HTTP status.
const (
	TextCodeEmptyPassword      = "EMPTY_PASSWORD"
	TextCodeInvalidCreds       = "INVALID_CREDENTIALS"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeTokenMalformed     = "TOKEN_MALFORMED"
	TextCodeTokenWrongUse      = "TOKEN_WRONG_USE"
	TextCodeTooManyAttempts    = "TOO_MANY_ATTEMPTS"
	TextCodeDuplicateIdentity  = "DUPLICATE_IDENTITY"
	TextCodeRefreshRevoked     = "REFRESH_TOKEN_REVOKED"
	TextCodeSessionDecodeError = "SESSION_DECODE_ERROR"
	TextCodeClaimsMappingError = "CLAIMS_MAPPING_ERROR"
	TextCodeDataParseError     = "DATA_PARSE_ERROR"
	TextCodeImmutableClaim     = "IMMUTABLE_CLAIM_MUTATION"
)

// ErrIdentityNotFound is returned when no user matches an identifier.
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound)

// ErrNoEmptyString rejects empty plaintext passwords before hashing.
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword)

// ErrMismatchedHashAndPassword is the single error surfaced for bad
// credentials so callers cannot distinguish unknown user from bad password.
var ErrMismatchedHashAndPassword = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds)

// ErrTooManyLoginAttempts is returned while an account is cooling down.
var ErrTooManyLoginAttempts = errors.New("too many login attempts, try again later", errors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts)

// ErrTokenExpired is returned for structurally valid but expired tokens.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeTokenExpired)

// ErrTokenMalformed covers bad signatures and undecodable tokens.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeTokenMalformed)

// ErrTokenWrongUse is returned when a refresh token is presented where an
// access token is required, or the other way around.
var ErrTokenWrongUse = errors.New("token use does not match the expected class", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeTokenWrongUse)

// ErrRefreshTokenRevoked is returned when a refresh token no longer matches
// the stored digest, either because it was rotated away or revoked.
var ErrRefreshTokenRevoked = errors.New("refresh token has been revoked or superseded", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeRefreshRevoked)

// ErrDuplicateIdentity is returned when the store rejects a username or
// email that is already registered.
var ErrDuplicateIdentity = errors.New("username or email is already registered", errors.CategoryConflict).
	WithTextCode(TextCodeDuplicateIdentity)

// ErrUnableToDecodeSession unable to decode JWT claims into a session
var ErrUnableToDecodeSession = errors.New("unable to decode session", errors.CategoryAuth).
	WithTextCode(TextCodeSessionDecodeError)

// ErrUnableToMapClaims unable to get claims from token
var ErrUnableToMapClaims = errors.New("unable to map claims", errors.CategoryAuth).
	WithTextCode(TextCodeClaimsMappingError)

// ErrUnableToParseData parse error
var ErrUnableToParseData = errors.New("unable to parse data", errors.CategoryBadInput).
	WithTextCode(TextCodeDataParseError)

// ErrImmutableClaimMutation is returned when a claims decorator touches a
// registered or identity claim instead of the extension fields.
var ErrImmutableClaimMutation = errors.New("claims decorator mutated an immutable claim", errors.CategoryInternal).
	WithTextCode(TextCodeImmutableClaim)

// IsTokenExpiredError will check for expired tokens, including errors
// produced by the jwt library before we wrap them. Classification relies on
// sentinels and text codes, never on the rendered message.
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) || errors.Is(err, jwt.ErrTokenExpired) {
		return true
	}
	var rich *errors.Error
	if errors.As(err, &rich) {
		return rich.TextCode == TextCodeTokenExpired
	}
	return false
}

// IsMalformedError will check for malformed token errors, covering bad
// structure, bad signatures, and unverifiable tokens.
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenMalformed) ||
		errors.Is(err, jwt.ErrTokenMalformed) ||
		errors.Is(err, jwt.ErrTokenSignatureInvalid) ||
		errors.Is(err, jwt.ErrTokenUnverifiable) {
		return true
	}
	var rich *errors.Error
	if errors.As(err, &rich) {
		return rich.TextCode == TextCodeTokenMalformed
	}
	return false
}

// IsDuplicateIdentityError reports whether err represents a uniqueness
// violation, either our sentinel or a raw driver error. The store owns the
// unique indexes on username/email; we only translate its verdict.
func IsDuplicateIdentityError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDuplicateIdentity) {
		return true
	}
	var rich *errors.Error
	if errors.As(err, &rich) && rich.TextCode == TextCodeDuplicateIdentity {
		return true
	}
	return isUniqueViolation(err)
}

// isUniqueViolation matches the unique-index error strings of the drivers we
// run against: sqlite in tests, postgres in production.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
