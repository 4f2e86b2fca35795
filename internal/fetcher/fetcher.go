// Package fetcher retrieves raw settlement file content.
//
// The ingestion service does not care where a file comes from: the CLI reads
// it from disk, the HTTP server receives it in the request body, and a
// scheduled deployment pulls it from the acquirer's endpoint. Each source is
// a Fetcher; everything downstream works on the returned bytes.
package fetcher

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	apperrors "settlement-ingestion-service/pkg/errors"

	"github.com/spf13/afero"
)

// Fetcher retrieves the raw content of one settlement file.
type Fetcher interface {
	// Fetch returns the file bytes. The content may be empty; deciding
	// whether that is an error belongs to the ingestion run, not here.
	Fetch(ctx context.Context) ([]byte, error)

	// Source names where the content comes from, for logs and errors.
	Source() string
}

// FileFetcher reads a settlement file from a filesystem.
type FileFetcher struct {
	fs   afero.Fs
	path string
}

// NewFileFetcher creates a fetcher reading from the given filesystem. A nil
// fs falls back to the host filesystem.
func NewFileFetcher(fs afero.Fs, path string) *FileFetcher {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FileFetcher{fs: fs, path: path}
}

func (f *FileFetcher) Source() string {
	return f.path
}

func (f *FileFetcher) Fetch(ctx context.Context) ([]byte, error) {
	content, err := afero.ReadFile(f.fs, f.path)
	if err != nil {
		code := apperrors.CodeReadFailed
		switch {
		case os.IsNotExist(err):
			code = apperrors.CodeFileNotFound
		case os.IsPermission(err):
			code = apperrors.CodeFilePermission
		}
		return nil, apperrors.FileError(code, f.path, err)
	}
	return content, nil
}

// HTTPFetcher pulls a settlement file from an HTTP endpoint.
type HTTPFetcher struct {
	client *http.Client
	url    string
}

// NewHTTPFetcher creates a fetcher for the given URL with the given timeout.
// A zero timeout defaults to 30 seconds.
func NewHTTPFetcher(url string, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFetcher{
		client: &http.Client{Timeout: timeout},
		url:    url,
	}
}

func (f *HTTPFetcher) Source() string {
	return f.url
}

func (f *HTTPFetcher) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, apperrors.TransportError(apperrors.CodeFetchFailed, f.url, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		code := apperrors.CodeFetchFailed
		if isTimeout(ctx, err) {
			code = apperrors.CodeFetchTimeout
		}
		return nil, apperrors.TransportError(code, f.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.TransportError(apperrors.CodeFetchFailed, f.url, nil).
			WithContext("status_code", resp.StatusCode)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.TransportError(apperrors.CodeFetchFailed, f.url, err)
	}
	return content, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if ctx.Err() == context.DeadlineExceeded {
		return true
	}
	type timeouter interface{ Timeout() bool }
	if te, ok := err.(timeouter); ok {
		return te.Timeout()
	}
	return false
}

// BytesFetcher serves in-memory content, used by the HTTP handler where the
// file already arrived in the request body.
type BytesFetcher struct {
	content []byte
	source  string
}

// NewBytesFetcher wraps already-fetched content.
func NewBytesFetcher(content []byte, source string) *BytesFetcher {
	return &BytesFetcher{content: content, source: source}
}

func (f *BytesFetcher) Source() string {
	return f.source
}

func (f *BytesFetcher) Fetch(ctx context.Context) ([]byte, error) {
	return f.content, nil
}
