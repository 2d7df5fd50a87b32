// Package linkmeta fetches a page and pulls out its title and description.
// Every failure falls back to the link itself.
package linkmeta

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

const (
	DefaultTimeout = 10 * time.Second

	maxBodyBytes = 2 << 20
)

var descriptionSelectors = []string{
	`meta[name="description"]`,
	`meta[property="description"]`,
	`meta[name="og:description"]`,
	`meta[property="og:description"]`,
	`meta[name="twitter:description"]`,
	`meta[property="twitter:description"]`,
}

type Metadata struct {
	Title       string
	Description string
}

type Resolver struct {
	client *http.Client
	log    logrus.FieldLogger
}

// NewResolver returns a Resolver whose fetches give up after timeout. A
// non-positive timeout means DefaultTimeout.
func NewResolver(timeout time.Duration, log logrus.FieldLogger) *Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Resolver{
		client: &http.Client{Timeout: timeout},
		log:    log.WithField("component", "linkmeta"),
	}
}

func (r *Resolver) Title(ctx context.Context, link string) string {
	return r.Lookup(ctx, link).Title
}

// Lookup never fails: fields it cannot find are set to link.
func (r *Resolver) Lookup(ctx context.Context, link string) Metadata {
	fallback := Metadata{Title: link, Description: link}

	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fallback
	}

	doc, err := r.fetch(ctx, u.String())
	if err != nil {
		r.log.WithError(err).WithField("link", link).Debug("link metadata lookup failed")
		return fallback
	}

	md := fallback
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		md.Title = title
	}
	for _, sel := range descriptionSelectors {
		content, ok := doc.Find(sel).First().Attr("content")
		if content = strings.TrimSpace(content); ok && content != "" {
			md.Description = content
			break
		}
	}
	return md
}

func (r *Resolver) fetch(ctx context.Context, link string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
}
