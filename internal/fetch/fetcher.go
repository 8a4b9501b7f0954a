// Package fetch downloads the source archive into a freshly reset directory.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/Veraticus/sharing-ingest/internal/common"
	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
)

// Stage is the name recorded on errors raised by the fetcher.
const Stage = "fetch"

// Fetch errors.
var (
	ErrNoFileName        = errors.New("url has no file name")
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
	ErrBadStatus         = errors.New("unexpected http status")
)

// Fetcher downloads a single resource. It does not retry.
type Fetcher struct {
	Client *http.Client
	// Progress receives a byte progress bar when set.
	Progress io.Writer
}

// New returns a Fetcher whose HTTP client gives up after timeout. A zero
// timeout means no limit.
func New(timeout time.Duration, progress io.Writer) *Fetcher {
	return &Fetcher{
		Client:   &http.Client{Timeout: timeout},
		Progress: progress,
	}
}

// FileName returns the last path segment of rawURL.
func FileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("%w: %s", ErrNoFileName, rawURL)
	}
	return name, nil
}

// Fetch removes destDir and everything under it, recreates it, and
// downloads rawURL to destDir/<file name>. It returns the local path.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, destDir string) (string, error) {
	logger := common.LoggerFrom(ctx)

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", common.NetworkError(Stage, rawURL, err)
	}
	name, err := FileName(rawURL)
	if err != nil {
		// No local file can be named after the URL.
		return "", common.FilesystemError(Stage, rawURL, err)
	}

	if err := resetDir(destDir); err != nil {
		return "", common.FilesystemError(Stage, destDir, err)
	}

	dest := filepath.Join(destDir, name)
	logger.Info("Downloading file", "url", rawURL, "path", dest)

	var body io.ReadCloser
	var size int64
	switch u.Scheme {
	case "http", "https":
		body, size, err = f.get(ctx, rawURL)
		if err != nil {
			return "", common.NetworkError(Stage, rawURL, err)
		}
	case "file":
		src, openErr := os.Open(u.Path)
		if openErr != nil {
			return "", common.FilesystemError(Stage, u.Path, openErr)
		}
		body = src
		if info, statErr := src.Stat(); statErr == nil {
			size = info.Size()
		}
	default:
		return "", common.NetworkError(Stage, rawURL, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme))
	}
	defer body.Close()

	written, err := f.save(dest, body, size)
	if err != nil {
		var ie *common.IngestionError
		if errors.As(err, &ie) {
			return "", err
		}
		if u.Scheme == "file" {
			return "", common.FilesystemError(Stage, dest, err)
		}
		return "", common.NetworkError(Stage, rawURL, err)
	}

	logger.Info("File has been downloaded successfully",
		"path", dest,
		"size", humanize.Bytes(uint64(written)))
	return dest, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, 0, err
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, 0, fmt.Errorf("%w: %s", ErrBadStatus, resp.Status)
	}
	return resp.Body, resp.ContentLength, nil
}

// save copies body into dest. Create and write errors come back as
// filesystem IngestionErrors; read errors come back bare so the caller can
// attribute them to the source.
func (f *Fetcher) save(dest string, body io.Reader, size int64) (int64, error) {
	out, err := os.Create(dest)
	if err != nil {
		return 0, common.FilesystemError(Stage, dest, err)
	}

	var w io.Writer = destWriter{out}
	if f.Progress != nil {
		bar := newProgressBar(f.Progress, size, filepath.Base(dest))
		w = io.MultiWriter(w, bar)
		defer func() { _ = bar.Finish() }()
	}

	written, copyErr := io.Copy(w, body)
	closeErr := out.Close()

	if copyErr != nil {
		var we *writeError
		if errors.As(copyErr, &we) {
			return written, common.FilesystemError(Stage, dest, we.err)
		}
		return written, copyErr
	}
	if closeErr != nil {
		return written, common.FilesystemError(Stage, dest, closeErr)
	}
	return written, nil
}

// writeError marks a failure on the local side of a copy.
type writeError struct {
	err error
}

func (e *writeError) Error() string { return e.err.Error() }

func (e *writeError) Unwrap() error { return e.err }

type destWriter struct {
	w io.Writer
}

func (d destWriter) Write(p []byte) (int, error) {
	n, err := d.w.Write(p)
	if err != nil {
		return n, &writeError{err: err}
	}
	return n, nil
}

func newProgressBar(w io.Writer, size int64, name string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(size,
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("Downloading "+name),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(w)
		}),
	)
}

func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0750)
}
