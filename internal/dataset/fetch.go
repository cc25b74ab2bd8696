package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DefaultMaxBytes caps a fetched document when no limit is configured.
const DefaultMaxBytes = 64 << 20

const defaultHTTPTimeout = 2 * time.Minute

// ErrTooLarge is returned when a document exceeds the fetcher's size limit.
var ErrTooLarge = errors.New("dataset exceeds size limit")

// S3Config configures access to s3:// sources. Empty fields fall back to the
// default AWS credential and region chain.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	HTTPClient *http.Client
	MaxBytes   int64
	S3         S3Config
}

// Fetcher retrieves raw dataset bytes from a URL.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
	s3cfg    S3Config
}

// NewFetcher creates a Fetcher. A nil HTTP client gets a default with a
// generous timeout; a non-positive MaxBytes uses DefaultMaxBytes.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Fetcher{client: client, maxBytes: maxBytes, s3cfg: cfg.S3}
}

// Fetch reads the whole document at rawURL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if rawURL == "" {
		return nil, errors.New("dataset url is empty")
	}

	var (
		rc  io.ReadCloser
		err error
	)
	switch scheme := urlScheme(rawURL); scheme {
	case "http", "https":
		rc, err = f.openHTTP(ctx, rawURL)
	case "s3":
		rc, err = f.openS3(ctx, rawURL)
	case "file":
		rc, err = openFile(strings.TrimPrefix(rawURL, "file://"))
	case "":
		rc, err = openFile(rawURL)
	default:
		return nil, fmt.Errorf("unsupported dataset scheme %q", scheme)
	}
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return readLimited(rc, f.maxBytes)
}

// urlScheme returns the lowercased scheme of rawURL, or "" for plain paths.
func urlScheme(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || len(u.Scheme) < 2 {
		// Single letter schemes are Windows drive letters.
		return ""
	}
	return strings.ToLower(u.Scheme)
}

func (f *Fetcher) openHTTP(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP request returned status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func openFile(path string) (io.ReadCloser, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset file: %w", err)
	}
	return fh, nil
}

// ParseS3URL splits s3://bucket/key into its bucket and key.
func ParseS3URL(rawURL string) (bucket, key string, err error) {
	path := strings.TrimPrefix(rawURL, "s3://")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid S3 URL: %s", rawURL)
	}
	return parts[0], parts[1], nil
}

func (f *Fetcher) s3Client(ctx context.Context) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if f.s3cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(f.s3cfg.Region))
	}
	if f.s3cfg.AccessKey != "" && f.s3cfg.SecretKey != "" {
		creds := credentials.NewStaticCredentialsProvider(f.s3cfg.AccessKey, f.s3cfg.SecretKey, "")
		opts = append(opts, awsconfig.WithCredentialsProvider(creds))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if f.s3cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(f.s3cfg.Endpoint)
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, clientOpts...), nil
}

func (f *Fetcher) openS3(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	bucket, key, err := ParseS3URL(rawURL)
	if err != nil {
		return nil, err
	}

	client, err := f.s3Client(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get S3 object: %w", err)
	}
	return resp.Body, nil
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, maxBytes)
	}
	return data, nil
}
