package fetcher

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

var httpClient = &http.Client{Timeout: 2 * time.Minute}

// Open returns a reader for a local path or an http(s) URL.
func Open(ctx context.Context, src string) (io.ReadCloser, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: build request %s", src)
		}
		req.Header.Set("User-Agent", "interview-checkup/1.0")

		resp, err := httpClient.Do(req)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: get %s", src)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close() //nolint:errcheck
			return nil, eris.Errorf("fetcher: get %s: status %d", src, resp.StatusCode)
		}
		return resp.Body, nil
	}

	f, err := os.Open(src)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: open %s", src)
	}
	return f, nil
}
