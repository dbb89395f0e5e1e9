package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// Fetch stages a source video locally and returns its path. HTTP(S) URLs are
// downloaded into destPath; file URLs and plain paths are used in place (the
// returned path then differs from destPath and must not be deleted).
func Fetch(ctx context.Context, client *http.Client, sourceURL, destPath string) (string, error) {
	if strings.HasPrefix(sourceURL, "file://") {
		u, err := url.Parse(sourceURL)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrDownload, err)
		}
		return localSource(u.Path)
	}
	if !strings.HasPrefix(sourceURL, "http://") && !strings.HasPrefix(sourceURL, "https://") {
		return localSource(sourceURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d from %s", ErrDownload, resp.StatusCode, sourceURL)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(destPath)
		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(destPath)
		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}
	return destPath, nil
}

func localSource(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}
	if info.IsDir() || info.Size() == 0 {
		return "", fmt.Errorf("%w: %s is not a readable video file", ErrDownload, path)
	}
	return path, nil
}
