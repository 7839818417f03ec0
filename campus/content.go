package campus

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// PageContent is the readable rendition of the current page for the host:
// assignment statements, feedback, whatever the tab is showing.
type PageContent struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Markdown string `json:"markdown"`
}

// PageContent sanitizes the current page's HTML and converts it to
// markdown. Sanitizing first keeps the platform's script/style noise (and
// any user-generated HTML in forum-like blocks) out of the conversion.
func (s *Service) PageContent(ctx context.Context) (*PageContent, error) {
	page, err := s.currentPage()
	if err != nil {
		return nil, err
	}

	raw, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	u, err := page.CurrentURL()
	if err != nil {
		u = ""
	}

	title := htmlTitle(raw)
	clean := s.sanitizer().Sanitize(raw)

	md, err := s.mdConverter().ConvertString(clean)
	if err != nil {
		return nil, fmt.Errorf("campus: convert page to markdown: %w", err)
	}

	return &PageContent{URL: u, Title: title, Markdown: strings.TrimSpace(md)}, nil
}

func (s *Service) sanitizer() *bluemonday.Policy {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sanitize == nil {
		s.sanitize = bluemonday.UGCPolicy()
	}
	return s.sanitize
}

func (s *Service) mdConverter() *converter.Converter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.md == nil {
		s.md = converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		)
	}
	return s.md
}

// htmlTitle extracts the <title> text, tolerating broken markup.
func htmlTitle(raw string) string {
	doc, err := html.Parse(bytes.NewReader([]byte(raw)))
	if err != nil {
		return ""
	}
	var find func(*html.Node) string
	find = func(n *html.Node) string {
		if n.Type == html.ElementNode && n.DataAtom == atom.Title && n.FirstChild != nil {
			return strings.TrimSpace(n.FirstChild.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if t := find(c); t != "" {
				return t
			}
		}
		return ""
	}
	return find(doc)
}
