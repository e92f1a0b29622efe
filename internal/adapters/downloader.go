package adapters

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"apk-installer/internal/ports"
	"apk-installer/internal/shared"
)

const (
	defaultDownloadRetries    = 3
	defaultDownloadRetryDelay = 500 * time.Millisecond
	defaultDownloadTimeout    = 10 * time.Minute
	maxDownloadRetryDelay     = 10 * time.Second
)

// ObjectFetcher downloads an object URL the HTTP client cannot handle.
type ObjectFetcher interface {
	Fetch(ctx context.Context, bucket string, key string, w io.Writer, progress func(read int64, total int64)) error
}

// DownloaderAdapter fetches http(s), file and s3 URLs into the download
// cache. Partial http downloads are resumed with a Range request.
type DownloaderAdapter struct {
	Client     *http.Client
	Retries    int
	RetryDelay time.Duration
	Objects    ObjectFetcher
}

func NewDownloaderAdapter(timeoutSec int, retries int, retryDelayMs int, objects ObjectFetcher) DownloaderAdapter {
	timeout := time.Duration(timeoutSec) * time.Second
	if timeout <= 0 {
		timeout = defaultDownloadTimeout
	}
	if retries <= 0 {
		retries = defaultDownloadRetries
	}
	delay := time.Duration(retryDelayMs) * time.Millisecond
	if delay <= 0 {
		delay = defaultDownloadRetryDelay
	}
	return DownloaderAdapter{
		Client:     &http.Client{Timeout: timeout},
		Retries:    retries,
		RetryDelay: delay,
		Objects:    objects,
	}
}

func (a DownloaderAdapter) Download(ctx context.Context, rawURL string, dest string, progress func(read int64, total int64)) error {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid download url").
			WithCause(err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create download directory").
			WithCause(err)
	}
	return shared.WithExclusiveLock(dest, func() error {
		switch parsed.Scheme {
		case "http", "https":
			return a.downloadHTTP(ctx, parsed.String(), dest, progress)
		case "file":
			return copyLocal(parsed.Path, dest, progress)
		case "s3":
			if a.Objects == nil {
				return errbuilder.New().
					WithCode(errbuilder.CodeFailedPrecondition).
					WithMsg("s3 downloads are not configured")
			}
			return writeFile(dest, func(w io.Writer) error {
				return a.Objects.Fetch(ctx, parsed.Host, strings.TrimPrefix(parsed.Path, "/"), w, progress)
			})
		default:
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("unsupported url scheme: " + parsed.Scheme)
		}
	})
}

func (a DownloaderAdapter) downloadHTTP(ctx context.Context, rawURL string, dest string, progress func(int64, int64)) error {
	var lastErr error
	for attempt := 0; attempt < a.Retries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		retry, err := a.downloadOnce(ctx, rawURL, dest, progress)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || attempt == a.Retries-1 {
			return err
		}
		log.Ctx(ctx).Debug().Err(err).Int("attempt", attempt+1).Str("url", rawURL).Msg("retrying download")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.retryDelay(attempt)):
		}
	}
	return lastErr
}

func (a DownloaderAdapter) downloadOnce(ctx context.Context, rawURL string, dest string, progress func(int64, int64)) (bool, error) {
	var offset int64
	if stat, err := os.Stat(dest); err == nil {
		offset = stat.Size()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return false, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create download request").
			WithCause(err)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}
	resp, err := a.Client.Do(req)
	if err != nil {
		return true, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("download request failed").
			WithCause(err)
	}
	defer resp.Body.Close()

	flags := os.O_CREATE | os.O_WRONLY
	switch {
	case resp.StatusCode == http.StatusPartialContent && offset > 0:
		flags |= os.O_APPEND
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable && offset > 0:
		// Already complete; the cache check decides whether it is valid.
		return false, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		flags |= os.O_TRUNC
		offset = 0
	default:
		retry := resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests
		return retry, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("download failed").
			WithCause(shared.HTTPStatusError(resp.StatusCode, rawURL))
	}

	total := int64(-1)
	if resp.ContentLength >= 0 {
		total = offset + resp.ContentLength
	}
	out, err := os.OpenFile(dest, flags, 0o644)
	if err != nil {
		return false, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to open download file").
			WithCause(err)
	}
	_, copyErr := io.Copy(out, &progressReader{r: resp.Body, read: offset, total: total, fn: progress})
	closeErr := out.Close()
	if copyErr != nil {
		return true, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("download interrupted").
			WithCause(copyErr)
	}
	if closeErr != nil {
		return false, closeErr
	}
	return false, nil
}

func (a DownloaderAdapter) retryDelay(attempt int) time.Duration {
	delay := a.RetryDelay * time.Duration(1<<attempt)
	if delay > maxDownloadRetryDelay {
		delay = maxDownloadRetryDelay
	}
	jitter := time.Duration(time.Now().UnixNano() % int64(delay/2+1))
	return delay + jitter
}

type progressReader struct {
	r     io.Reader
	read  int64
	total int64
	fn    func(int64, int64)
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.read += int64(n)
		if p.fn != nil {
			p.fn(p.read, p.total)
		}
	}
	return n, err
}

func copyLocal(src string, dest string, progress func(int64, int64)) error {
	in, err := os.Open(src)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("local artifact not found").
			WithCause(err)
	}
	defer in.Close()
	total := int64(-1)
	if stat, err := in.Stat(); err == nil {
		total = stat.Size()
	}
	return writeFile(dest, func(w io.Writer) error {
		_, err := io.Copy(w, &progressReader{r: in, total: total, fn: progress})
		return err
	})
}

func writeFile(dest string, fill func(io.Writer) error) error {
	tmp := dest + ".part"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to open download file").
			WithCause(err)
	}
	if err := fill(out); err != nil {
		out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}

var _ ports.DownloaderPort = DownloaderAdapter{}
