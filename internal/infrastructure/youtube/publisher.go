package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"NewsShorts/internal/domain"
	"NewsShorts/internal/ports"
)

var quotaReasons = []string{"quotaExceeded", "uploadLimitExceeded", "dailyLimitExceeded"}

var throttleReasons = []string{"rateLimitExceeded", "userRateLimitExceeded", "backendError"}

// Publisher uploads composed shorts through the YouTube Data API.
type Publisher struct {
	cred      ports.Credential
	endpoint  string
	transport http.RoundTripper
	logger    *slog.Logger
	now       func() time.Time
}

var _ ports.Publisher = (*Publisher)(nil)

// NewPublisher builds a publisher. An empty endpoint targets the public API.
func NewPublisher(cred ports.Credential, endpoint string, logger *slog.Logger) *Publisher {
	if endpoint != "" && !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	return &Publisher{
		cred:      cred,
		endpoint:  endpoint,
		transport: http.DefaultTransport,
		logger:    logger,
		now:       time.Now,
	}
}

// Publish uploads video with meta and, when meta names a playlist, adds it there.
// A playlist failure is logged and does not fail the publish.
func (p *Publisher) Publish(ctx context.Context, video domain.ComposedVideo, meta domain.VideoMetadata) (domain.PublishResult, error) {
	token, err := p.cred.Token(ctx)
	if err != nil {
		if domain.ErrorKind(err) == "" {
			err = fmt.Errorf("%w: credential: %v", domain.ErrTransientUpload, err)
		}
		return domain.PublishResult{}, err
	}

	svc, err := p.service(ctx, token)
	if err != nil {
		return domain.PublishResult{}, fmt.Errorf("youtube client: %w", err)
	}

	f, err := os.Open(video.FilePath)
	if err != nil {
		return domain.PublishResult{}, fmt.Errorf("open video %s: %w", video.FilePath, err)
	}
	defer f.Close()

	upload := &yt.Video{
		Snippet: &yt.VideoSnippet{
			Title:       meta.Title,
			Description: meta.Description,
			Tags:        meta.Tags,
			CategoryId:  meta.CategoryID,
		},
		Status: &yt.VideoStatus{
			PrivacyStatus:           meta.Privacy,
			SelfDeclaredMadeForKids: false,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
	}

	created, err := svc.Videos.Insert([]string{"snippet", "status"}, upload).
		Media(f, googleapi.ContentType("video/mp4")).
		Context(ctx).
		Do()
	if err != nil {
		return domain.PublishResult{}, p.classify(err)
	}
	if created.Id == "" {
		return domain.PublishResult{}, fmt.Errorf("%w: upload returned no video id", domain.ErrTransientUpload)
	}

	if meta.PlaylistID != "" {
		p.addToPlaylist(ctx, svc, meta.PlaylistID, created.Id)
	}

	return domain.PublishResult{
		ItemID:        video.ItemID,
		RemoteVideoID: created.Id,
		PublishedAt:   p.now().UTC(),
	}, nil
}

func (p *Publisher) service(ctx context.Context, token string) (*yt.Service, error) {
	client := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   p.transport,
		},
	}
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if p.endpoint != "" {
		opts = append(opts, option.WithEndpoint(p.endpoint))
	}
	return yt.NewService(ctx, opts...)
}

func (p *Publisher) addToPlaylist(ctx context.Context, svc *yt.Service, playlistID, videoID string) {
	item := &yt.PlaylistItem{
		Snippet: &yt.PlaylistItemSnippet{
			PlaylistId: playlistID,
			ResourceId: &yt.ResourceId{Kind: "youtube#video", VideoId: videoID},
		},
	}
	if _, err := svc.PlaylistItems.Insert([]string{"snippet"}, item).Context(ctx).Do(); err != nil {
		p.logger.Warn("add to playlist failed", "playlist_id", playlistID, "video_id", videoID, "error", err)
		return
	}
	p.logger.Debug("added to playlist", "playlist_id", playlistID, "video_id", videoID)
}

// classify maps API failures onto the error taxonomy. Unclassified API
// rejections are returned plain and are not retried.
func (p *Publisher) classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return fmt.Errorf("%w: %v", domain.ErrTransientUpload, err)
	}

	switch {
	case gerr.Code == http.StatusUnauthorized:
		p.cred.Invalidate()
		return fmt.Errorf("%w: %v", domain.ErrAuthExpired, err)
	case gerr.Code == http.StatusForbidden && hasReason(gerr, quotaReasons):
		return fmt.Errorf("%w: %v", domain.ErrQuotaExceeded, err)
	case gerr.Code == http.StatusTooManyRequests,
		gerr.Code >= http.StatusInternalServerError,
		gerr.Code == http.StatusForbidden && hasReason(gerr, throttleReasons):
		return fmt.Errorf("%w: %v", domain.ErrTransientUpload, err)
	default:
		return fmt.Errorf("upload rejected: %w", err)
	}
}

func hasReason(gerr *googleapi.Error, reasons []string) bool {
	for _, item := range gerr.Errors {
		for _, r := range reasons {
			if item.Reason == r {
				return true
			}
		}
	}
	return false
}
