package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// dealer id claims in lookup order; the dealer backend issues "id".
var dealerClaims = []string{"id", "dealerId", "dealer_id"}

// claimsPolicy checks the time, issuer and audience claims of a dealer token
// and extracts the caller identity from it.
type claimsPolicy struct {
	issuer    string
	audience  string
	clockSkew time.Duration
	// algorithm pins the signing algorithm; empty accepts any non-none algorithm.
	algorithm jwa.SignatureAlgorithm
}

func (p claimsPolicy) credentials(tok jwt.Token, algorithm jwa.SignatureAlgorithm, now time.Time) (Credentials, error) {
	if tok == nil {
		return Credentials{}, errors.New("auth: token is nil")
	}
	if p.algorithm != "" && algorithm != p.algorithm {
		return Credentials{}, fmt.Errorf("auth: unexpected token algorithm %s", algorithm)
	}

	options := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
		jwt.WithAcceptableSkew(p.clockSkew),
	}
	if p.issuer != "" {
		options = append(options, jwt.WithIssuer(p.issuer))
	}
	if p.audience != "" {
		options = append(options, jwt.WithAudience(p.audience))
	}
	if err := jwt.Validate(tok, options...); err != nil {
		return Credentials{}, err
	}

	dealerID := stringClaim(tok, dealerClaims...)
	if dealerID == "" {
		dealerID = tok.Subject()
	}
	if dealerID == "" {
		return Credentials{}, errNoDealer
	}
	return Credentials{DealerID: dealerID, Role: strings.ToLower(stringClaim(tok, "role"))}, nil
}

var errNoDealer = errors.New("auth: token has no dealer id")

func stringClaim(tok jwt.Token, names ...string) string {
	for _, name := range names {
		raw, ok := tok.Get(name)
		if !ok || raw == nil {
			continue
		}
		var value string
		switch v := raw.(type) {
		case string:
			value = v
		case float64:
			value = fmt.Sprintf("%.0f", v)
		default:
			value = fmt.Sprint(v)
		}
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}
	return ""
}
