package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DownloadError is a failed archive download, carrying the status and a body
// excerpt so the user can tell a missing tag from a server fault.
type DownloadError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download failed: %d %s", e.StatusCode, e.Body)
}

const maxErrorBody = 512

// download fetches the archive bytes. One built-in repair exists: Gitea
// answers "unrecognized repository reference" when an archive URL names a
// bare ref like 1.2.3 but the repo tags are v1.2.3, so that exact failure is
// retried once with a "v" prepended to the ref. No other retries happen here.
func (ins *Installer) download(ctx context.Context, url string, headers http.Header) ([]byte, error) {
	data, err := ins.fetch(ctx, url, headers)
	if err == nil {
		return data, nil
	}

	var dlErr *DownloadError
	if errors.As(err, &dlErr) &&
		strings.Contains(dlErr.Body, "unrecognized repository reference") &&
		strings.HasSuffix(url, ".zip") {
		if retryURL, ok := withVPrefixedRef(url); ok {
			return ins.fetch(ctx, retryURL, headers)
		}
	}
	return nil, err
}

func (ins *Installer) fetch(ctx context.Context, url string, headers http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := ins.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &DownloadError{URL: url, StatusCode: resp.StatusCode, Body: string(body)}
	}

	return io.ReadAll(resp.Body)
}

// withVPrefixedRef rewrites .../archive/1.2.3.zip to .../archive/v1.2.3.zip.
// Returns false when the URL is not an archive URL or the ref already starts
// with "v".
func withVPrefixedRef(url string) (string, bool) {
	const marker = "/archive/"
	idx := strings.Index(url, marker)
	if idx == -1 {
		return "", false
	}
	prefix := url[:idx+len(marker)]
	rest := url[idx+len(marker):]
	if strings.HasPrefix(rest, "v") {
		return "", false
	}
	return prefix + "v" + rest, true
}
