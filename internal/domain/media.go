package domain

import "time"

// Asset references a local input file (base video, audio bed).
type Asset struct {
	Path string
}

// CardTemplate names the markup used to draw a news card.
// Source wins over Path when both are set.
type CardTemplate struct {
	Name   string
	Path   string
	Source string
}

// RenderedCard is the PNG produced by the render stage.
type RenderedCard struct {
	ItemID string
	Image  []byte
	Width  int
	Height int
}

// ComposedVideo is a transient, publishable file.
type ComposedVideo struct {
	ItemID          string
	FilePath        string
	DurationSeconds float64
}

// VideoMetadata is sent alongside an upload.
type VideoMetadata struct {
	Title       string
	Description string
	Tags        []string
	CategoryID  string
	PlaylistID  string
	Privacy     string
}

// PublishResult identifies the uploaded video.
type PublishResult struct {
	ItemID        string
	RemoteVideoID string
	PublishedAt   time.Time
}
