package campus

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// SlideDownload reports one downloaded slide deck.
type SlideDownload struct {
	Path  string `json:"path"`
	Bytes int64  `json:"bytes"`
	Pages int    `json:"pages"`
}

// DownloadSlide fetches a slide PDF over plain HTTP, riding the browser
// session's cookies so the platform treats the request as authenticated,
// then validates the file with pdfcpu and reports its page count. A file
// that is not a well-formed PDF (typically the platform's login page served
// with a 200) is removed and reported as an error.
func (s *Service) DownloadSlide(ctx context.Context, slideURL string) (*SlideDownload, error) {
	page, err := s.currentPage()
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(slideURL)
	if err != nil || u.Scheme == "" {
		return nil, fmt.Errorf("campus: bad slide url %q", slideURL)
	}

	cookies, err := page.Cookies([]string{slideURL})
	if err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("campus: cookie jar: %w", err)
	}
	jar.SetCookies(u, cookies)

	client := &http.Client{Jar: jar, Timeout: 60 * time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, slideURL, nil)
	if err != nil {
		return nil, fmt.Errorf("campus: build slide request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("campus: fetch slide: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("campus: fetch slide: status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(s.cfg.SlidesDir, 0o755); err != nil {
		return nil, fmt.Errorf("campus: slides dir: %w", err)
	}

	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = "slide.pdf"
	}
	dest := filepath.Join(s.cfg.SlidesDir, name)

	f, err := os.Create(dest)
	if err != nil {
		return nil, fmt.Errorf("campus: create %s: %w", dest, err)
	}
	n, err := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if err != nil {
		os.Remove(dest)
		return nil, fmt.Errorf("campus: write %s: %w", dest, err)
	}
	if closeErr != nil {
		os.Remove(dest)
		return nil, fmt.Errorf("campus: close %s: %w", dest, closeErr)
	}

	pages, err := pdfPageCount(dest)
	if err != nil {
		os.Remove(dest)
		return nil, fmt.Errorf("campus: %s is not a valid PDF (login page instead of slides?): %w", name, err)
	}

	s.log.Info("campus: slide downloaded", "path", dest, "bytes", n, "pages", pages)
	return &SlideDownload{Path: dest, Bytes: n, Pages: pages}, nil
}

func pdfPageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	pdfCtx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return 0, err
	}
	return pdfCtx.PageCount, nil
}
