// Package deeplink decodes the credential artifacts the SEQTA portal hands
// out through QR codes and app links: the seqtalearn:// SSO payload and the
// JWT embedded in it. Decoding is transport-independent; no signature
// verification is performed because the app trusts the portal-issued token's
// transport, not its cryptographic authenticity.
package deeplink

import (
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Prefix is the URI scheme prefix every SSO deep link must carry.
const Prefix = "seqtalearn://sso/"

// Scheme matches any seqtalearn:// link, including second-generation app
// links returned by the portal itself.
const Scheme = "seqtalearn://"

var validate = validator.New()

// Payload is the decoded SSO deep link: a JWT, the portal it belongs to and
// the user number the handshake must present.
type Payload struct {
	Token      string `json:"t" validate:"required"`
	ServerURL  string `json:"u" validate:"required"`
	UserNumber string `json:"n" validate:"required"`
}

// Claims are the JWT claims the app inspects locally before attempting the
// handshake.
type Claims struct {
	Subject string
	Expiry  time.Time
	Role    string
	Scope   string
}

// Parse decodes a seqtalearn://sso/ deep link. The payload is percent-encoded
// standard-alphabet base64 of a JSON object with keys t, u and n; each stage
// failure maps to its own sentinel error.
func Parse(raw string) (*Payload, error) {
	if !strings.HasPrefix(raw, Prefix) {
		return nil, errors.Wrapf(ErrBadFormat, "missing %q prefix", Prefix)
	}

	// PathUnescape rather than QueryUnescape: a '+' inside the base64
	// payload is a literal plus, not a space.
	urlDecoded, err := url.PathUnescape(raw[len(Prefix):])
	if err != nil {
		return nil, errors.Wrap(ErrURLDecode, err.Error())
	}

	decoded, err := base64.StdEncoding.DecodeString(urlDecoded)
	if err != nil {
		return nil, errors.Wrap(ErrBase64, err.Error())
	}

	if !utf8.Valid(decoded) {
		return nil, errors.Wrap(ErrEncoding, "payload bytes are not UTF-8")
	}

	var payload Payload
	if err := json.Unmarshal(decoded, &payload); err != nil {
		return nil, errors.Wrap(ErrJSON, err.Error())
	}
	if err := validate.Struct(&payload); err != nil {
		return nil, errors.Wrap(ErrJSON, err.Error())
	}

	return &payload, nil
}

// DecodeClaims extracts the claims from a JWT without verifying its
// signature. The token must have exactly three dot-separated segments.
func DecodeClaims(token string) (*Claims, error) {
	if len(strings.Split(token, ".")) != 3 {
		return nil, errors.Wrap(ErrBadFormat, "token must have three segments")
	}

	parsed, _, err := jwtlib.NewParser().ParseUnverified(token, jwtlib.MapClaims{})
	if err != nil {
		return nil, classifySegmentError(token, err)
	}

	mapClaims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.Wrap(ErrJSON, "claims are not an object")
	}

	exp, err := mapClaims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, errors.Wrap(ErrJSON, "claims missing exp")
	}

	sub, _ := mapClaims["sub"].(string)
	role, _ := mapClaims["t"].(string)
	scope, _ := mapClaims["scope"].(string)

	return &Claims{
		Subject: sub,
		Expiry:  exp.Time,
		Role:    role,
		Scope:   scope,
	}, nil
}

// ValidateTokenAt decodes the token's claims and checks the expiry against
// the supplied instant.
func ValidateTokenAt(token string, now time.Time) error {
	claims, err := DecodeClaims(token)
	if err != nil {
		return err
	}
	if !claims.Expiry.After(now) {
		return errors.Wrapf(ErrExpired, "token expired at %s", claims.Expiry.UTC().Format(time.RFC3339))
	}
	return nil
}

// ValidateToken checks the token expiry against the current wall clock.
func ValidateToken(token string) error {
	return ValidateTokenAt(token, time.Now())
}

// classifySegmentError maps a parser failure on a three-segment token back to
// the decode stage that caused it.
func classifySegmentError(token string, parseErr error) error {
	segment := strings.Split(token, ".")[1]
	if pad := len(segment) % 4; pad != 0 {
		segment += strings.Repeat("=", 4-pad)
	}
	decoded, err := base64.URLEncoding.DecodeString(segment)
	if err != nil {
		return errors.Wrap(ErrBase64, err.Error())
	}
	if !utf8.Valid(decoded) {
		return errors.Wrap(ErrEncoding, "claims bytes are not UTF-8")
	}
	if !json.Valid(decoded) {
		return errors.Wrap(ErrJSON, "claims are not valid JSON")
	}
	return errors.Wrap(ErrBadFormat, parseErr.Error())
}
