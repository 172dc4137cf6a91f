package gcs

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/clipforge/clipforge-backend/internal/pkg/logger"
)

type BucketCategory string

const (
	// Source media uploaded or imported by users.
	BucketCategoryMedia BucketCategory = "media"
	// Rendered clips and thumbnails.
	BucketCategoryRenders BucketCategory = "renders"
	// Quote-card PNGs.
	BucketCategoryCards BucketCategory = "cards"
)

type bucketConfig struct {
	name      string
	cdnDomain string
}

type BucketService interface {
	UploadFile(ctx context.Context, category BucketCategory, key string, file io.Reader) error
	DownloadFile(ctx context.Context, category BucketCategory, key string) (io.ReadCloser, error)
	DeleteFile(ctx context.Context, category BucketCategory, key string) error
	DeletePrefix(ctx context.Context, category BucketCategory, prefix string) error
	ListKeys(ctx context.Context, category BucketCategory, prefix string) ([]string, error)
	// SignedUploadURL mints a V4 PUT URL so browsers upload source media
	// directly without proxying bytes through the API.
	SignedUploadURL(category BucketCategory, key string, contentType string, ttl time.Duration) (string, error)
	GetPublicURL(category BucketCategory, key string) string
	// GCSURI returns the gs:// form used by the speech provider.
	GCSURI(category BucketCategory, key string) string
}

type bucketService struct {
	log           *logger.Logger
	storageClient *storage.Client
	mediaBucket   bucketConfig
	rendersBucket bucketConfig
	cardsBucket   bucketConfig
}

func NewBucketService(log *logger.Logger) (BucketService, error) {
	serviceLog := log.With("service", "BucketService")

	mediaBucketName := os.Getenv("MEDIA_GCS_BUCKET_NAME")
	if mediaBucketName == "" {
		return nil, fmt.Errorf("missing env var MEDIA_GCS_BUCKET_NAME")
	}
	rendersBucketName := os.Getenv("RENDERS_GCS_BUCKET_NAME")
	if rendersBucketName == "" {
		rendersBucketName = mediaBucketName
	}
	cardsBucketName := os.Getenv("CARDS_GCS_BUCKET_NAME")
	if cardsBucketName == "" {
		cardsBucketName = rendersBucketName
	}

	ctx := context.Background()
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")); creds != "" {
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	stClient, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	serviceLog.Info("Object storage initialized",
		"media_bucket", mediaBucketName,
		"renders_bucket", rendersBucketName,
		"cards_bucket", cardsBucketName,
	)

	return &bucketService{
		log:           serviceLog,
		storageClient: stClient,
		mediaBucket:   bucketConfig{name: mediaBucketName, cdnDomain: os.Getenv("MEDIA_CDN_DOMAIN")},
		rendersBucket: bucketConfig{name: rendersBucketName, cdnDomain: os.Getenv("RENDERS_CDN_DOMAIN")},
		cardsBucket:   bucketConfig{name: cardsBucketName, cdnDomain: os.Getenv("CARDS_CDN_DOMAIN")},
	}, nil
}

func (bs *bucketService) getBucketConfig(category BucketCategory) (bucketConfig, error) {
	switch category {
	case BucketCategoryMedia:
		return bs.mediaBucket, nil
	case BucketCategoryRenders:
		return bs.rendersBucket, nil
	case BucketCategoryCards:
		return bs.cardsBucket, nil
	default:
		return bucketConfig{}, fmt.Errorf("unknown bucket category: %s", category)
	}
}

func (bs *bucketService) UploadFile(ctx context.Context, category BucketCategory, key string, file io.Reader) error {
	cfg, err := bs.getBucketConfig(category)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := bs.storageClient.Bucket(cfg.name).Object(key).NewWriter(ctx)
	if ct := contentTypeForKey(key); ct != "" {
		w.ContentType = ct
	}
	if _, err := io.Copy(w, file); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

func contentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	if s == "" {
		return ""
	}
	if i := strings.Index(s, "?"); i >= 0 {
		s = s[:i]
	}
	switch {
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".jpg"), strings.HasSuffix(s, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(s, ".webp"):
		return "image/webp"
	case strings.HasSuffix(s, ".mp4"), strings.HasSuffix(s, ".m4v"):
		return "video/mp4"
	case strings.HasSuffix(s, ".webm"):
		return "video/webm"
	case strings.HasSuffix(s, ".mov"):
		return "video/quicktime"
	case strings.HasSuffix(s, ".mp3"):
		return "audio/mpeg"
	case strings.HasSuffix(s, ".wav"):
		return "audio/wav"
	case strings.HasSuffix(s, ".flac"):
		return "audio/flac"
	case strings.HasSuffix(s, ".json"):
		return "application/json"
	default:
		return ""
	}
}

// The cancel is attached to the reader's Close; a deferred cancel here would
// kill the context before the caller reads a byte.
type readCloserWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *readCloserWithCancel) Close() error {
	err := r.ReadCloser.Close()
	if r.cancel != nil {
		r.cancel()
	}
	return err
}

func (bs *bucketService) DownloadFile(ctx context.Context, category BucketCategory, key string) (io.ReadCloser, error) {
	cfg, err := bs.getBucketConfig(category)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	rd, err := bs.storageClient.Bucket(cfg.name).Object(key).NewReader(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open GCS reader for %q: %w", key, err)
	}
	return &readCloserWithCancel{ReadCloser: rd, cancel: cancel}, nil
}

func (bs *bucketService) DeleteFile(ctx context.Context, category BucketCategory, key string) error {
	cfg, err := bs.getBucketConfig(category)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	o := bs.storageClient.Bucket(cfg.name).Object(key)
	if err := o.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", key, cfg.name, err)
	}
	return nil
}

func (bs *bucketService) ListKeys(ctx context.Context, category BucketCategory, prefix string) ([]string, error) {
	cfg, err := bs.getBucketConfig(category)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	it := bs.storageClient.Bucket(cfg.name).Objects(ctx, &storage.Query{Prefix: prefix})
	out := []string{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, attrs.Name)
	}
	return out, nil
}

func (bs *bucketService) DeletePrefix(ctx context.Context, category BucketCategory, prefix string) error {
	keys, err := bs.ListKeys(ctx, category, prefix)
	if err != nil {
		return err
	}
	for _, k := range keys {
		_ = bs.DeleteFile(ctx, category, k)
	}
	return nil
}

func (bs *bucketService) SignedUploadURL(category BucketCategory, key string, contentType string, ttl time.Duration) (string, error) {
	cfg, err := bs.getBucketConfig(category)
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	opts := &storage.SignedURLOptions{
		Scheme:      storage.SigningSchemeV4,
		Method:      "PUT",
		Expires:     time.Now().Add(ttl),
		ContentType: contentType,
	}
	u, err := bs.storageClient.Bucket(cfg.name).SignedURL(key, opts)
	if err != nil {
		return "", fmt.Errorf("sign upload url for %q: %w", key, err)
	}
	return u, nil
}

func (bs *bucketService) GetPublicURL(category BucketCategory, key string) string {
	cfg, err := bs.getBucketConfig(category)
	if err != nil {
		return key
	}
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if cfg.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", cfg.cdnDomain, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", cfg.name, url.PathEscape(key))
}

func (bs *bucketService) GCSURI(category BucketCategory, key string) string {
	cfg, err := bs.getBucketConfig(category)
	if err != nil {
		return key
	}
	return fmt.Sprintf("gs://%s/%s", cfg.name, strings.TrimLeft(key, "/"))
}
