package video

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"NewsShorts/internal/domain"
	"NewsShorts/internal/ports"
)

// ShortFormLimit is the platform's maximum length for a short, in seconds.
const ShortFormLimit = 60.0

// Runner executes an external command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with args, killing it when ctx is done.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Options holds composition policy.
type Options struct {
	FFmpegPath    string
	FFprobePath   string
	OutputDir     string
	OverlayHeight int
	OverlayOffset int
	// OverlayStart and OverlayEnd bound the card window in seconds; when
	// OverlayEnd <= OverlayStart the card stays for the whole clip.
	OverlayStart float64
	OverlayEnd   float64
	MaxDuration  float64
	FPS          int
	// MusicVolume scales the audio bed when the base video has its own track.
	MusicVolume float64
}

// FFmpegComposer implements VideoComposer with ffmpeg and ffprobe.
type FFmpegComposer struct {
	runner Runner
	opts   Options
	logger *slog.Logger
}

var _ ports.VideoComposer = (*FFmpegComposer)(nil)

// NewFFmpegComposer fills defaults; a nil runner uses ExecRunner.
func NewFFmpegComposer(runner Runner, opts Options, logger *slog.Logger) *FFmpegComposer {
	if runner == nil {
		runner = ExecRunner{}
	}
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.FFprobePath == "" {
		opts.FFprobePath = "ffprobe"
	}
	if opts.OutputDir == "" {
		opts.OutputDir = os.TempDir()
	}
	if opts.OverlayHeight <= 0 {
		opts.OverlayHeight = 800
	}
	if opts.MaxDuration <= 0 || opts.MaxDuration > ShortFormLimit {
		opts.MaxDuration = ShortFormLimit
	}
	if opts.FPS <= 0 {
		opts.FPS = 24
	}
	if opts.MusicVolume <= 0 {
		opts.MusicVolume = 0.15
	}
	return &FFmpegComposer{runner: runner, opts: opts, logger: logger}
}

// Compose overlays card on base (plus optional audio), trimming to MaxDuration.
// Intermediate files live in a per-item work dir removed on every path. The
// output gets a unique name so concurrent runs never share a file, and it is
// removed on failure. Failures are domain.ErrComposeFailure.
func (c *FFmpegComposer) Compose(ctx context.Context, base domain.Asset, card domain.RenderedCard, audio *domain.Asset) (domain.ComposedVideo, error) {
	if err := checkAsset(base); err != nil {
		return domain.ComposedVideo{}, fmt.Errorf("%w: base video: %v", domain.ErrComposeFailure, err)
	}
	if audio != nil {
		if err := checkAsset(*audio); err != nil {
			return domain.ComposedVideo{}, fmt.Errorf("%w: audio: %v", domain.ErrComposeFailure, err)
		}
	}
	if len(card.Image) == 0 {
		return domain.ComposedVideo{}, fmt.Errorf("%w: empty card for %s", domain.ErrComposeFailure, card.ItemID)
	}

	if err := os.MkdirAll(c.opts.OutputDir, 0o755); err != nil {
		return domain.ComposedVideo{}, fmt.Errorf("%w: output dir: %v", domain.ErrComposeFailure, err)
	}
	workDir, err := os.MkdirTemp(c.opts.OutputDir, "compose-*")
	if err != nil {
		return domain.ComposedVideo{}, fmt.Errorf("%w: work dir: %v", domain.ErrComposeFailure, err)
	}
	defer os.RemoveAll(workDir)

	cardPath := filepath.Join(workDir, "card.png")
	if err := os.WriteFile(cardPath, card.Image, 0o600); err != nil {
		return domain.ComposedVideo{}, fmt.Errorf("%w: write card: %v", domain.ErrComposeFailure, err)
	}

	duration, baseAudio, err := c.probe(ctx, base.Path)
	if err != nil {
		return domain.ComposedVideo{}, fmt.Errorf("%w: probe %s: %v", domain.ErrComposeFailure, base.Path, err)
	}
	if duration > c.opts.MaxDuration {
		duration = c.opts.MaxDuration
	}

	audioPath := ""
	if audio != nil {
		audioPath = audio.Path
	}
	out, err := os.CreateTemp(c.opts.OutputDir, "short-"+safeName(card.ItemID)+"-*.mp4")
	if err != nil {
		return domain.ComposedVideo{}, fmt.Errorf("%w: output file: %v", domain.ErrComposeFailure, err)
	}
	outPath := out.Name()
	out.Close()

	args := c.Args(Input{
		Base:      base.Path,
		Card:      cardPath,
		Audio:     audioPath,
		BaseAudio: baseAudio,
		Out:       outPath,
		Duration:  duration,
	})
	if output, err := c.runner.Run(ctx, c.opts.FFmpegPath, args...); err != nil {
		os.Remove(outPath)
		return domain.ComposedVideo{}, fmt.Errorf("%w: ffmpeg: %v: %s", domain.ErrComposeFailure, err, tail(output))
	}

	info, err := os.Stat(outPath)
	if err != nil || info.Size() == 0 {
		os.Remove(outPath)
		return domain.ComposedVideo{}, fmt.Errorf("%w: ffmpeg produced no output for %s", domain.ErrComposeFailure, card.ItemID)
	}

	if c.logger != nil {
		c.logger.Debug("video composed", "item_id", card.ItemID, "path", outPath, "duration", duration)
	}
	return domain.ComposedVideo{ItemID: card.ItemID, FilePath: outPath, DurationSeconds: duration}, nil
}

// Release removes a composed file. Missing files are not an error.
func (c *FFmpegComposer) Release(video domain.ComposedVideo) error {
	if video.FilePath == "" {
		return nil
	}
	if err := os.Remove(video.FilePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", video.FilePath, err)
	}
	return nil
}

// Input names the files of one ffmpeg invocation.
type Input struct {
	Base  string
	Card  string
	Audio string
	// BaseAudio reports whether Base carries an audio stream.
	BaseAudio bool
	Out       string
	Duration  float64
}

// Args builds the ffmpeg command line. The card is scaled to OverlayHeight,
// centered horizontally and placed OverlayOffset pixels above the vertical
// middle. An audio bed is mixed at MusicVolume under the base track when
// there is one, otherwise it becomes the soundtrack.
func (c *FFmpegComposer) Args(in Input) []string {
	overlay := fmt.Sprintf("overlay=x=(W-w)/2:y=(H/2)-%d", c.opts.OverlayOffset)
	if c.opts.OverlayEnd > c.opts.OverlayStart {
		overlay += fmt.Sprintf(":enable='between(t,%s,%s)'", seconds(c.opts.OverlayStart), seconds(c.opts.OverlayEnd))
	}
	filter := fmt.Sprintf("[1:v]scale=-2:%d[card];[0:v][card]%s[v]", c.opts.OverlayHeight, overlay)

	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", in.Base,
		"-loop", "1", "-i", in.Card,
	}
	audioMap := "0:a?"
	switch {
	case in.Audio != "" && in.BaseAudio:
		args = append(args, "-i", in.Audio)
		filter += fmt.Sprintf(";[2:a]volume=%s[bed];[0:a][bed]amix=inputs=2:duration=first:dropout_transition=0:normalize=0[a]", volume(c.opts.MusicVolume))
		audioMap = "[a]"
	case in.Audio != "":
		args = append(args, "-i", in.Audio)
		audioMap = "2:a"
	}
	args = append(args,
		"-filter_complex", filter,
		"-map", "[v]",
		"-map", audioMap,
		"-t", seconds(in.Duration),
		"-r", strconv.Itoa(c.opts.FPS),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		in.Out,
	)
	return args
}

// probe returns the container duration and whether path has an audio stream.
func (c *FFmpegComposer) probe(ctx context.Context, path string) (float64, bool, error) {
	out, err := c.runner.Run(ctx, c.opts.FFprobePath,
		"-v", "error",
		"-show_entries", "stream=codec_type:format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, false, fmt.Errorf("ffprobe: %v: %s", err, tail(out))
	}

	var (
		duration float64
		hasAudio bool
	)
	for _, line := range strings.Fields(string(out)) {
		if line == "audio" {
			hasAudio = true
			continue
		}
		if d, err := strconv.ParseFloat(line, 64); err == nil {
			duration = d
		}
	}
	if duration <= 0 {
		return 0, false, fmt.Errorf("unexpected duration %q", strings.TrimSpace(string(out)))
	}
	return duration, hasAudio, nil
}

func checkAsset(a domain.Asset) error {
	if a.Path == "" {
		return errors.New("asset path is empty")
	}
	info, err := os.Stat(a.Path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", a.Path)
	}
	return nil
}

func volume(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func safeName(id string) string {
	var b strings.Builder
	for _, r := range id {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "item"
	}
	return b.String()
}

func tail(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > 300 {
		s = s[len(s)-300:]
	}
	return s
}
