package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gdrive "google.golang.org/api/drive/v3"
)

// TokenSourceFromFiles builds a refreshing token source from an OAuth2
// client credentials file and a stored token file. The token file must
// contain a previously granted token with a refresh token.
func TokenSourceFromFiles(ctx context.Context, credentialsFile, tokenFile string) (oauth2.TokenSource, error) {
	credData, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}

	cfg, err := google.ConfigFromJSON(credData, gdrive.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}

	tokenData, err := os.ReadFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(tokenData, &token); err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	return cfg.TokenSource(ctx, &token), nil
}
