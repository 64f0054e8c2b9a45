package gcs

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const storageScope = "https://www.googleapis.com/auth/devstorage.read_write"

// tokenProvider returns a bearer token; an empty token sends no Authorization header.
type tokenProvider interface {
	Token(ctx context.Context) (string, error)
}

type anonymousTokens struct{}

func (anonymousTokens) Token(context.Context) (string, error) { return "", nil }

// oauthTokens serves tokens from a caching oauth2 source.
type oauthTokens struct {
	src oauth2.TokenSource
}

func (o oauthTokens) Token(context.Context) (string, error) {
	tok, err := o.src.Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// serviceAccountTokens exchanges signed assertions from a service account key.
// Token requests go through client.
func serviceAccountTokens(client *http.Client, key []byte) (oauthTokens, error) {
	cfg, err := google.JWTConfigFromJSON(key, storageScope)
	if err != nil {
		return oauthTokens{}, fmt.Errorf("parsing service account credentials: %w", err)
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
	return oauthTokens{src: oauth2.ReuseTokenSource(nil, cfg.TokenSource(ctx))}, nil
}

// metadataTokens uses the instance's default service account.
func metadataTokens() oauthTokens {
	return oauthTokens{src: oauth2.ReuseTokenSource(nil, google.ComputeTokenSource("", storageScope))}
}
