package codesign

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/cruciblehq/cruxpack/internal/cleanup"
	"github.com/cruciblehq/cruxpack/internal/paths"
)

// Obtains certificate files from links.
//
// A link is an http(s) URL, a file URL or a local path. Downloaded files
// are written with private permissions and their deletion is registered as
// a cleanup task; local files are used in place.
type Fetcher struct {
	Client    *http.Client      // HTTP client. Defaults to [http.DefaultClient].
	UserAgent string            // User-Agent header. Omitted when empty.
	Dir       string            // Download directory. Defaults to [paths.Certificates].
	Cleanup   *cleanup.Registry // Registry receiving deletion of downloaded files.
}

// Returns a local path holding the certificate behind link.
func (f *Fetcher) Fetch(ctx context.Context, link string) (string, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", fmt.Errorf("%w: empty certificate link", ErrCertificate)
	}

	u, err := url.Parse(link)
	if err == nil {
		switch u.Scheme {
		case "http", "https":
			return f.download(ctx, link)
		case "file":
			return f.local(u.Path)
		}
	}
	return f.local(link)
}

func (f *Fetcher) local(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCertificate, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCertificate, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrCertificate, abs)
	}
	return abs, nil
}

func (f *Fetcher) download(ctx context.Context, link string) (string, error) {
	dir := f.Dir
	if dir == "" {
		dir = paths.Certificates()
	}
	if err := os.MkdirAll(dir, paths.DefaultDirMode); err != nil {
		return "", fmt.Errorf("%w: %w", ErrCertificate, err)
	}

	file := filepath.Join(dir, uuid.NewString()+".p12")
	if f.Cleanup != nil {
		f.Cleanup.Add("delete certificate "+filepath.Base(file), func(context.Context) error {
			if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			return nil
		})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCertificate, err)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	slog.Debug("downloading certificate", "url", redact(link))

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCertificate, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s: %s", ErrCertificate, redact(link), resp.Status)
	}

	out, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, paths.PrivateFileMode)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCertificate, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return "", fmt.Errorf("%w: %w", ErrCertificate, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrCertificate, err)
	}
	return file, nil
}

// Drops credentials and query parameters, which often carry access tokens.
func redact(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return "(invalid url)"
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}
