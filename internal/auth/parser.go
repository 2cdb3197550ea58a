package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/dealer-insights/internal/common"
)

// Config configures token parsing.
type Config struct {
	// Secret verifies HMAC signatures. When empty the token is decoded
	// without signature verification and the dealer backend remains the
	// authority that rejects forged tokens.
	Secret    string
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Now       func() time.Time
}

// Parser turns bearer tokens into Credentials.
type Parser struct {
	secret []byte
	policy claimsPolicy
	now    func() time.Time
}

// NewParser constructs a Parser.
func NewParser(cfg Config) *Parser {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	skew := cfg.ClockSkew
	if skew < 0 {
		skew = 0
	}
	secret := strings.TrimSpace(cfg.Secret)
	policy := claimsPolicy{
		issuer:    strings.TrimSpace(cfg.Issuer),
		audience:  strings.TrimSpace(cfg.Audience),
		clockSkew: skew,
	}
	if secret != "" {
		policy.algorithm = jwa.HS256
	}
	return &Parser{secret: []byte(secret), policy: policy, now: now}
}

// Verifies reports whether signatures are checked.
func (p *Parser) Verifies() bool {
	return len(p.secret) > 0
}

// Parse validates token and extracts the dealer identity.
func (p *Parser) Parse(token string) (Credentials, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return Credentials{}, unauthorized("missing token", nil)
	}
	algorithm, err := tokenAlgorithm(trimmed)
	if err != nil {
		return Credentials{}, unauthorized("invalid token", err)
	}

	var parsed jwt.Token
	if p.Verifies() {
		if algorithm != p.policy.algorithm {
			return Credentials{}, unauthorized("invalid token", fmt.Errorf("unexpected token algorithm %s", algorithm))
		}
		parsed, err = jwt.ParseString(trimmed, jwt.WithKey(algorithm, p.secret), jwt.WithValidate(false))
	} else {
		parsed, err = jwt.ParseInsecure([]byte(trimmed))
	}
	if err != nil {
		return Credentials{}, unauthorized("invalid token", err)
	}

	creds, err := p.policy.credentials(parsed, algorithm, p.now())
	if errors.Is(err, errNoDealer) {
		return Credentials{}, unauthorized("token has no dealer id", err)
	}
	if err != nil {
		return Credentials{}, unauthorized("invalid token", err)
	}
	creds.Token = trimmed
	return creds, nil
}

// tokenAlgorithm returns the single signing algorithm of a compact JWS,
// rejecting unsigned and mixed-algorithm tokens.
func tokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	var algorithm jwa.SignatureAlgorithm
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil || headers.Algorithm() == "" {
			return "", errors.New("auth: token missing algorithm")
		}
		alg := headers.Algorithm()
		if alg == jwa.NoSignature {
			return "", errors.New("auth: token uses none algorithm")
		}
		if algorithm != "" && algorithm != alg {
			return "", errors.New("auth: mixed token algorithms detected")
		}
		algorithm = alg
	}
	return algorithm, nil
}

func unauthorized(message string, err error) *common.AppError {
	return common.NewAppError("UNAUTHORIZED", message, http.StatusUnauthorized, err)
}
