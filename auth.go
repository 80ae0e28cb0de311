package micropub

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// AuthGateway verifies the bearer token of an inbound publish request and
// checks that the token's subject is this site. Verification happens
// in-process through Tokens unless IntrospectURL names an external token
// endpoint to delegate to.
type AuthGateway struct {
	SiteURL       string
	Tokens        *TokenService
	IntrospectURL string
	Client        *http.Client
}

// Authenticate extracts the bearer token from the Authorization header,
// falling back to an access_token form field, verifies it and returns
// its claims. The raw token is not retained past the verification call.
func (g *AuthGateway) Authenticate(r *http.Request) (*TokenClaims, *Error) {
	token := extractToken(r)
	if len(token) < minSecretLength {
		return nil, errUnauthorized("Missing or broken access token")
	}

	var claims *TokenClaims
	var err *Error
	if g.IntrospectURL != "" {
		claims, err = g.introspect(r.Context(), token)
	} else {
		claims, err = g.Tokens.Verify(token)
	}
	if err != nil {
		return nil, err
	}
	if claims == nil || claims.Me == "" {
		return nil, errUnauthorized("No valid response from token verification")
	}

	if strings.TrimSuffix(claims.Me, "/") != strings.TrimSuffix(g.SiteURL, "/") {
		return nil, errForbidden("Access token not valid for this site")
	}
	return claims, nil
}

// extractToken pulls the raw token from the Authorization header or the
// access_token form field.
func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer"))
	}
	return r.FormValue("access_token")
}

// introspect submits the token to the configured external token endpoint
// and decodes its JSON or form-encoded reply.
func (g *AuthGateway) introspect(ctx context.Context, token string) (*TokenClaims, *Error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.IntrospectURL, nil)
	if err != nil {
		return nil, errUnauthorized("Token endpoint request could not be built: " + err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, errUnauthorized("Token endpoint could not be reached: " + err.Error())
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errUnauthorized("Token endpoint response could not be read: " + err.Error())
	}

	var decoded struct {
		Me       string `json:"me"`
		ClientID string `json:"client_id"`
		Scope    string `json:"scope"`
	}
	if jerr := json.Unmarshal(body, &decoded); jerr == nil && decoded.Me != "" {
		return &TokenClaims{Me: decoded.Me, ClientID: decoded.ClientID, Scope: decoded.Scope}, nil
	}
	values, perr := url.ParseQuery(string(body))
	if perr != nil || values.Get("me") == "" {
		return nil, errUnauthorized("No valid response from token endpoint")
	}
	return &TokenClaims{
		Me:       values.Get("me"),
		ClientID: values.Get("client_id"),
		Scope:    values.Get("scope"),
	}, nil
}
