package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"crash-review-pipeline/config"
	"crash-review-pipeline/store"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

var ErrMissingCredentials = errors.New("YOUTUBE_CLIENT_ID, YOUTUBE_CLIENT_SECRET, or YOUTUBE_REFRESH_TOKEN not set")

// Uploader publishes the final video through the YouTube Data API v3
type Uploader struct {
	cfg    config.UploadConfig
	logger *zap.Logger

	// opts overrides the authenticated client; used by tests.
	opts []option.ClientOption
}

// New creates a new Uploader
func New(cfg config.UploadConfig, logger *zap.Logger) *Uploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{cfg: cfg, logger: logger.With(zap.String("stage", "upload"))}
}

// Run uploads videoFile and returns the video id and watch URL.
func (u *Uploader) Run(ctx context.Context, videoFile string, md *Metadata) (string, string, error) {
	f, err := os.Open(videoFile)
	if err != nil {
		return "", "", fmt.Errorf("open video file: %w", err)
	}
	defer f.Close()

	opts := u.opts
	if len(opts) == 0 {
		ts, err := tokenSource(ctx)
		if err != nil {
			return "", "", fmt.Errorf("youtube auth: %w", err)
		}
		opts = []option.ClientOption{option.WithTokenSource(ts)}
	}
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return "", "", fmt.Errorf("youtube service: %w", err)
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:                md.Title,
			Description:          md.Description,
			Tags:                 md.Tags,
			CategoryId:           md.CategoryID,
			DefaultLanguage:      u.cfg.DefaultLanguage,
			DefaultAudioLanguage: u.cfg.DefaultLanguage,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           md.Visibility,
			SelfDeclaredMadeForKids: u.cfg.MadeForKids,
		},
	}

	if fi, err := f.Stat(); err == nil {
		u.logger.Info("uploading",
			zap.String("title", md.Title),
			zap.Float64("size_mb", float64(fi.Size())/1024/1024))
	}

	call := svc.Videos.Insert([]string{"snippet", "status"}, video).
		NotifySubscribers(u.cfg.NotifySubscribers).
		Media(f).
		Context(ctx)
	uploaded, err := call.Do()
	if err != nil {
		return "", "", fmt.Errorf("youtube upload: %w", err)
	}

	videoURL := "https://www.youtube.com/watch?v=" + uploaded.Id
	u.logger.Info("uploaded", zap.String("video_id", uploaded.Id), zap.String("url", videoURL))
	return uploaded.Id, videoURL, nil
}

// tokenSource refreshes an access token from the long-lived refresh token in
// the environment.
func tokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	clientID := os.Getenv("YOUTUBE_CLIENT_ID")
	clientSecret := os.Getenv("YOUTUBE_CLIENT_SECRET")
	refreshToken := os.Getenv("YOUTUBE_REFRESH_TOKEN")
	if clientID == "" || clientSecret == "" || refreshToken == "" {
		return nil, ErrMissingCredentials
	}
	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope, youtube.YoutubeScope},
	}
	token := &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-time.Hour), // force refresh
	}
	return conf.TokenSource(ctx, token), nil
}

// LogUpload writes the upload result next to the other run logs and returns
// the file path.
func LogUpload(dir, videoID, videoURL, videoFile string, md *Metadata, now time.Time) (string, error) {
	entry := map[string]any{
		"video_id":    videoID,
		"video_url":   videoURL,
		"title":       md.Title,
		"visibility":  md.Visibility,
		"uploaded_at": now.UTC().Format(time.RFC3339),
		"video_file":  videoFile,
	}
	path := filepath.Join(dir, "upload_"+now.Format("20060102_150405")+".json")
	if err := store.WriteJSONAtomic(path, entry); err != nil {
		return "", err
	}
	return path, nil
}
