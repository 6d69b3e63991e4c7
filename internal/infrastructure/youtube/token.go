package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	yt "google.golang.org/api/youtube/v3"

	"NewsShorts/internal/domain"
	"NewsShorts/internal/ports"
)

// FileTokenProvider is the refreshable publishing credential. It reads an
// installed-app client secret and a stored token, refreshes the access token
// when it expires and writes refreshed tokens back to the token file.
type FileTokenProvider struct {
	mu        sync.Mutex
	config    *oauth2.Config
	tokenFile string
	token     *oauth2.Token
	invalid   bool
	logger    *slog.Logger
}

var _ ports.Credential = (*FileTokenProvider)(nil)

// NewFileTokenProvider loads secretsFile and tokenFile.
func NewFileTokenProvider(secretsFile, tokenFile string, logger *slog.Logger) (*FileTokenProvider, error) {
	secrets, err := os.ReadFile(secretsFile)
	if err != nil {
		return nil, fmt.Errorf("read client secrets: %w", err)
	}
	cfg, err := google.ConfigFromJSON(secrets, yt.YoutubeUploadScope, yt.YoutubeScope)
	if err != nil {
		return nil, fmt.Errorf("parse client secrets: %w", err)
	}

	raw, err := os.ReadFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("token file holds neither access nor refresh token")
	}

	return &FileTokenProvider{
		config:    cfg,
		tokenFile: tokenFile,
		token:     &tok,
		logger:    logger,
	}, nil
}

// Token returns a valid access token, refreshing it when needed. A rejected
// refresh invalidates the provider.
func (p *FileTokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.invalid {
		return "", fmt.Errorf("%w: credential was invalidated", domain.ErrAuthExpired)
	}

	tok, err := p.config.TokenSource(ctx, p.token).Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			p.invalid = true
			return "", fmt.Errorf("%w: refresh rejected: %v", domain.ErrAuthExpired, err)
		}
		return "", fmt.Errorf("%w: refresh token: %v", domain.ErrTransientUpload, err)
	}

	if tok.AccessToken != p.token.AccessToken {
		p.token = tok
		if err := p.persist(tok); err != nil {
			p.logger.Warn("persist refreshed token failed", "file", p.tokenFile, "error", err)
		} else {
			p.logger.Info("oauth token refreshed", "expiry", tok.Expiry)
		}
	}
	return tok.AccessToken, nil
}

// Invalidate marks the credential unusable until the process restarts.
func (p *FileTokenProvider) Invalidate() {
	p.mu.Lock()
	p.invalid = true
	p.mu.Unlock()
}

func (p *FileTokenProvider) persist(tok *oauth2.Token) error {
	raw, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p.tokenFile), ".token-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), p.tokenFile)
}
