// Package assets stores uploaded project images in MinIO and hands back the
// public URL and object id the editor embeds in generated pages.
package assets

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"sitesmith/api/internal/util"
)

// ErrDisabled is returned when asset storage is not configured.
var ErrDisabled = fmt.Errorf("asset storage not configured")

type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	// PublicURL is the externally reachable base for serving objects,
	// e.g. "https://cdn.example.com".
	PublicURL string
}

type Client struct {
	mc        *minio.Client
	bucket    string
	publicURL string
	enabled   bool
}

// NewClient creates an asset client. An empty endpoint disables storage and
// every operation returns ErrDisabled.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return &Client{}, nil
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &Client{
		mc:        mc,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		enabled:   true,
	}, nil
}

func (c *Client) Enabled() bool {
	return c.enabled
}

// EnsureBucket creates the asset bucket if it does not exist.
func (c *Client) EnsureBucket(ctx context.Context) error {
	if !c.enabled {
		return ErrDisabled
	}
	exists, err := c.mc.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	return c.mc.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{})
}

// Upload stores an image under the project's prefix and returns its public
// URL and object id. The id keeps the original extension so content type
// survives round trips.
func (c *Client) Upload(ctx context.Context, projectID, filename string, reader io.Reader, size int64, contentType string) (url, publicID string, err error) {
	if !c.enabled {
		return "", "", ErrDisabled
	}
	if err := c.EnsureBucket(ctx); err != nil {
		return "", "", err
	}

	publicID = path.Join(projectID, util.NewID("img")+strings.ToLower(path.Ext(filename)))
	_, err = c.mc.PutObject(ctx, c.bucket, publicID, reader, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", "", fmt.Errorf("upload asset: %w", err)
	}
	return c.URL(publicID), publicID, nil
}

// URL resolves an object id to its public URL.
func (c *Client) URL(publicID string) string {
	return c.publicURL + "/" + c.bucket + "/" + publicID
}

// Delete removes an object by its id.
func (c *Client) Delete(ctx context.Context, publicID string) error {
	if !c.enabled {
		return ErrDisabled
	}
	if err := c.mc.RemoveObject(ctx, c.bucket, publicID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	return nil
}
