package micropub

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// minSecretLength is the shortest signing secret accepted; anything less
// is a deployment mistake, not a usable key.
const minSecretLength = 10

var (
	reLinkTag  = regexp.MustCompile(`(?is)<link(.*?)>`)
	reLinkHref = regexp.MustCompile(`(?i)href="(.*?)"`)
)

// TokenService mints and verifies the bearer tokens Micropub clients use.
// Tokens are stateless HS256 JWTs; rotating the secret invalidates every
// previously issued token.
type TokenService struct {
	Secret string
	Client *http.Client
	Now    func() time.Time
}

// NewTokenService creates a TokenService signing with the given secret.
func NewTokenService(secret string) *TokenService {
	return &TokenService{
		Secret: secret,
		Client: http.DefaultClient,
		Now:    time.Now,
	}
}

// TokenClaims are the fields embedded in an access token.
type TokenClaims struct {
	Me         string
	ClientID   string
	Scope      string
	DateIssued string
	Nonce      int64
}

// Verify decodes and checks the signature of a raw token string.
func (s *TokenService) Verify(raw string) (*TokenClaims, *Error) {
	if len(s.Secret) < minSecretLength {
		return nil, errSetup("Token signing secret is missing or too short")
	}
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return []byte(s.Secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid {
		return nil, errInvalidToken("Access token could not be verified")
	}
	mapClaims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errInvalidToken("Access token carries no usable claims")
	}
	claims := &TokenClaims{}
	claims.Me, _ = mapClaims["me"].(string)
	claims.ClientID, _ = mapClaims["client_id"].(string)
	claims.Scope, _ = mapClaims["scope"].(string)
	claims.DateIssued, _ = mapClaims["date_issued"].(string)
	if n, ok := mapClaims["nonce"].(float64); ok {
		claims.Nonce = int64(n)
	}
	return claims, nil
}

// Issue exchanges an authorization code for a signed access token. The
// subject's page is fetched and scanned for its authorization endpoint,
// the code is verified there, and the granted scope is embedded in the
// minted token. Returns the token and the granted scope.
func (s *TokenService) Issue(ctx context.Context, code, me, redirectURI, clientID string) (string, string, *Error) {
	endpoint, err := s.discoverAuthEndpoint(ctx, me)
	if err != nil {
		return "", "", err
	}

	scope, err := s.exchangeCode(ctx, endpoint, code, me, redirectURI, clientID)
	if err != nil {
		return "", "", err
	}

	if len(s.Secret) < minSecretLength {
		return "", "", errSetup("Token signing secret is missing or too short")
	}
	claims := jwt.MapClaims{
		"me":          me,
		"client_id":   clientID,
		"scope":       scope,
		"date_issued": s.Now().UTC().Format(timeLayout),
		"nonce":       rand.Int64N(1<<31-1000000) + 1000000,
	}
	signed, serr := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.Secret))
	if serr != nil {
		return "", "", errInternal("Token could not be signed: " + serr.Error())
	}
	return signed, scope, nil
}

// discoverAuthEndpoint fetches the subject's page and scans its markup for
// a link relation naming the authorization endpoint.
func (s *TokenService) discoverAuthEndpoint(ctx context.Context, me string) (string, *Error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, me, nil)
	if err != nil {
		return "", errDiscoveryFailed("Subject site URL is not usable: " + err.Error())
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return "", errDiscoveryFailed("Subject site could not be fetched: " + err.Error())
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errDiscoveryFailed("Subject site could not be read: " + err.Error())
	}

	for _, link := range reLinkTag.FindAllString(string(body), -1) {
		if !strings.Contains(link, `rel="authorization_endpoint"`) {
			continue
		}
		m := reLinkHref.FindStringSubmatch(link)
		if m == nil || !isURL(m[1]) {
			continue
		}
		return m[1], nil
	}
	return "", errDiscoveryFailed("Cannot discover auth endpoint from site HTML")
}

// exchangeCode submits the authorization code to the discovered endpoint
// and returns the granted scope from its form-encoded reply.
func (s *TokenService) exchangeCode(ctx context.Context, endpoint, code, me, redirectURI, clientID string) (string, *Error) {
	form := url.Values{
		"code":         {code},
		"me":           {me},
		"redirect_uri": {redirectURI},
		"client_id":    {clientID},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", errInternal("Auth endpoint request could not be built: " + err.Error())
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/x-www-form-urlencoded")
	resp, err := s.Client.Do(req)
	if err != nil {
		return "", errUnauthorized("Auth endpoint could not be reached: " + err.Error())
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errUnauthorized("Auth endpoint response could not be read: " + err.Error())
	}
	values, perr := url.ParseQuery(string(body))
	if perr != nil {
		return "", errUnauthorized("Auth endpoint response could not be parsed: " + perr.Error())
	}
	return values.Get("scope"), nil
}
