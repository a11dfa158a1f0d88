package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/go-resty/resty/v2"
)

var (
	ErrAssetNotFound   = errors.New("asset not found")
	ErrAssetHostDenied = errors.New("asset host is not allowed")
)

// AssetLoader fetches images referenced by templates: http(s) URLs, data URIs
// and files below a local asset directory. URLs built from request variables
// are only fetched from allowed hosts; when hosts are configured they bound
// every remote fetch.
type AssetLoader struct {
	client *resty.Client
	dir    string
	hosts  mapset.Set[string]
}

func NewAssetLoader(dir string, timeout time.Duration, hosts []string) *AssetLoader {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(1).
		SetHeader("Accept", "image/png, image/jpeg, image/gif")

	allowed := mapset.NewThreadUnsafeSet[string]()
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			allowed.Add(h)
		}
	}

	return &AssetLoader{client: client, dir: dir, hosts: allowed}
}

// Load reads src. fromVariables marks a source built from request variables.
func (l *AssetLoader) Load(ctx context.Context, src string, fromVariables bool) ([]byte, error) {
	src = strings.TrimSpace(src)
	switch {
	case src == "":
		return nil, ErrAssetNotFound
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		if err := l.checkHost(src, fromVariables); err != nil {
			return nil, err
		}
		return l.fetch(ctx, src)
	case strings.HasPrefix(src, "data:"):
		return decodeDataURI(src)
	}

	return l.file(src)
}

func (l *AssetLoader) checkHost(src string, fromVariables bool) error {
	u, err := url.Parse(src)
	if err != nil || u.Hostname() == "" {
		return fmt.Errorf("malformed asset url %q", src)
	}
	if l.hosts.Cardinality() == 0 && !fromVariables {
		return nil
	}
	if !l.hosts.Contains(strings.ToLower(u.Hostname())) {
		return fmt.Errorf("%w: %s", ErrAssetHostDenied, u.Hostname())
	}

	return nil
}

func (l *AssetLoader) fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := l.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch %s: %w: status %d", url, ErrAssetNotFound, resp.StatusCode())
	}

	return resp.Body(), nil
}

func (l *AssetLoader) file(name string) ([]byte, error) {
	if l.dir == "" {
		return nil, fmt.Errorf("%w: %s (no asset directory)", ErrAssetNotFound, name)
	}

	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return nil, fmt.Errorf("asset path %q escapes the asset directory", name)
	}

	data, err := os.ReadFile(filepath.Join(l.dir, clean))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, name)
	}

	return data, err
}

func decodeDataURI(src string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok {
		return nil, errors.New("malformed data uri")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return []byte(payload), nil
	}

	return base64.StdEncoding.DecodeString(payload)
}

// imageType sniffs the gofpdf image type of data.
func imageType(data []byte) (string, bool) {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return "png", true
	case bytes.HasPrefix(data, []byte{0xff, 0xd8, 0xff}):
		return "jpg", true
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return "gif", true
	}

	return "", false
}
