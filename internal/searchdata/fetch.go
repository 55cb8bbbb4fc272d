package searchdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"
)

// maxScriptSize caps a downloaded script; Doxygen splits its index per
// first character, so single files stay small.
const maxScriptSize = 32 << 20

var httpClient = &http.Client{Timeout: 60 * time.Second}

// Fetch downloads a single search-data script.
func Fetch(ctx context.Context, url string) (File, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return File{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "doxsearch/0.1.0")

	resp, err := httpClient.Do(req)
	if err != nil {
		return File{}, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return File{}, fmt.Errorf("%s returned %d: %s", url, resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxScriptSize+1))
	if err != nil {
		return File{}, fmt.Errorf("reading %s: %w", url, err)
	}
	if len(data) > maxScriptSize {
		return File{}, fmt.Errorf("%s exceeds %d bytes", url, maxScriptSize)
	}

	return File{Name: path.Base(req.URL.Path), Data: data}, nil
}
