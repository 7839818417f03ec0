package campus

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// The listing scrapers are deliberately dumb: the platform renders its
// tables server-side, so a static parse of the current DOM against fixed
// selectors is all that is needed. No pagination, no retries — a page that
// does not match the selectors returns an empty list, not an error.

// Course is one row of the platform's course listing.
type Course struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Lecture is one activity row within a course page.
type Lecture struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Slide is one downloadable slide deck link within a lecture or course page.
type Slide struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ListCourses navigates to the courses page and scrapes the course table.
func (s *Service) ListCourses(ctx context.Context) ([]Course, error) {
	html, err := s.fetchListingHTML(ctx, s.cfg.BaseURL+s.cfg.CoursesPath)
	if err != nil {
		return nil, err
	}
	rows, err := parseLinkRows(html, s.cfg.Selectors.CourseLink, s.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("campus: parse courses: %w", err)
	}
	courses := make([]Course, len(rows))
	for i, r := range rows {
		courses[i] = Course(r)
	}
	return courses, nil
}

// ListLectures navigates to a course page and scrapes its activity rows.
func (s *Service) ListLectures(ctx context.Context, courseURL string) ([]Lecture, error) {
	html, err := s.fetchListingHTML(ctx, courseURL)
	if err != nil {
		return nil, err
	}
	rows, err := parseLinkRows(html, s.cfg.Selectors.LectureLink, s.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("campus: parse lectures: %w", err)
	}
	lectures := make([]Lecture, len(rows))
	for i, r := range rows {
		lectures[i] = Lecture(r)
	}
	return lectures, nil
}

// ListSlides scrapes slide deck links from a lecture or course page.
func (s *Service) ListSlides(ctx context.Context, pageURL string) ([]Slide, error) {
	html, err := s.fetchListingHTML(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	rows, err := parseLinkRows(html, s.cfg.Selectors.SlideLink, s.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("campus: parse slides: %w", err)
	}
	slides := make([]Slide, len(rows))
	for i, r := range rows {
		slides[i] = Slide(r)
	}
	return slides, nil
}

func (s *Service) fetchListingHTML(ctx context.Context, pageURL string) (string, error) {
	page, err := s.currentPage()
	if err != nil {
		return "", err
	}
	release, err := page.Acquire()
	if err != nil {
		return "", err
	}
	defer release()

	if err := page.Navigate(ctx, pageURL); err != nil {
		return "", err
	}
	return page.HTML(ctx)
}

// linkRow is the common {title, url} shape all three listings reduce to.
type linkRow struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// parseLinkRows extracts anchor rows matching selector, resolving relative
// hrefs against base and de-duplicating on the resolved URL.
func parseLinkRows(html, selector, base string) ([]linkRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("bad base url %q: %w", base, err)
	}

	seen := make(map[string]bool)
	var rows []linkRow
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := baseURL.ResolveReference(ref).String()
		if seen[abs] {
			return
		}
		seen[abs] = true

		title := strings.Join(strings.Fields(sel.Text()), " ")
		if title == "" {
			title = abs
		}
		rows = append(rows, linkRow{Title: title, URL: abs})
	})
	return rows, nil
}
