// Package profile imports public profile details from a LinkedIn URL. The
// result is untrusted and usually partial.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Daskott/rolodex/schema"
	"github.com/Daskott/rolodex/shared"
	"github.com/pkg/errors"
	"golang.org/x/net/html"
)

const (
	defaultUserAgent = "Mozilla/5.0 (compatible; rolodex/1.0)"
	maxPageSize      = 2 << 20
)

type Fetcher struct {
	httpClient    *http.Client
	enrichmentURL string
	userAgent     string
}

func NewFetcher(cfg shared.ProfileConfig, httpClient *http.Client) *Fetcher {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Fetcher{httpClient: httpClient, enrichmentURL: cfg.EnrichmentURL, userAgent: userAgent}
}

// FetchLinkedInProfile returns whatever name, job title, about text and image
// could be found for the profile at profileURL.
func (f *Fetcher) FetchLinkedInProfile(ctx context.Context, profileURL string) (schema.Profile, error) {
	const op = "profile.FetchLinkedInProfile"

	if !IsLinkedInURL(profileURL) {
		return schema.Profile{}, shared.Validationf(op, "Please enter a valid LinkedIn profile URL")
	}

	var profile schema.Profile
	var err error

	if f.enrichmentURL != "" {
		profile, err = f.fromEnrichment(ctx, profileURL)
	} else {
		profile, err = f.fromPage(ctx, profileURL)
	}
	if err != nil {
		return schema.Profile{}, shared.E(shared.FetchError, op, err)
	}

	return clean(profile), nil
}

func IsLinkedInURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}

	host := strings.ToLower(u.Hostname())
	return host == "linkedin.com" || strings.HasSuffix(host, ".linkedin.com")
}

// ---------------------------------------------------------------------------------//
// Sources
// --------------------------------------------------------------------------------//

type enrichmentResponse struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	JobTitle string `json:"jobTitle"`
	Headline string `json:"headline"`
	About    string `json:"about"`
	Summary  string `json:"summary"`
	ImageURL string `json:"imageUrl"`
	Picture  string `json:"profile_pic_url"`
}

func (f *Fetcher) fromEnrichment(ctx context.Context, profileURL string) (schema.Profile, error) {
	endpoint, err := url.Parse(f.enrichmentURL)
	if err != nil {
		return schema.Profile{}, errors.Wrap(err, "enrichment url")
	}
	query := endpoint.Query()
	query.Set("url", profileURL)
	endpoint.RawQuery = query.Encode()

	body, err := f.get(ctx, endpoint.String(), "application/json")
	if err != nil {
		return schema.Profile{}, err
	}
	defer body.Close()

	data := enrichmentResponse{}
	if err := json.NewDecoder(body).Decode(&data); err != nil {
		return schema.Profile{}, errors.Wrap(err, "decode enrichment response")
	}

	return schema.Profile{
		Name:     schema.String(firstNonEmpty(data.Name, data.FullName)),
		JobTitle: schema.String(firstNonEmpty(data.JobTitle, data.Headline)),
		About:    schema.String(firstNonEmpty(data.About, data.Summary)),
		ImageURL: schema.String(firstNonEmpty(data.ImageURL, data.Picture)),
	}, nil
}

func (f *Fetcher) fromPage(ctx context.Context, profileURL string) (schema.Profile, error) {
	body, err := f.get(ctx, profileURL, "text/html")
	if err != nil {
		return schema.Profile{}, err
	}
	defer body.Close()

	return ParseProfilePage(io.LimitReader(body, maxPageSize))
}

func (f *Fetcher) get(ctx context.Context, rawURL, accept string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", f.userAgent)

	res, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if res.StatusCode != http.StatusOK {
		res.Body.Close()
		return nil, fmt.Errorf("Failed to fetch LinkedIn profile: status %d", res.StatusCode)
	}

	return res.Body, nil
}

// ---------------------------------------------------------------------------------//
// Page parsing
// --------------------------------------------------------------------------------//

// ParseProfilePage reads the Open Graph tags of a public profile page. A
// title of the form "Name - Title - Company | LinkedIn" yields the name and
// the job title.
func ParseProfilePage(r io.Reader) (schema.Profile, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return schema.Profile{}, errors.Wrap(err, "parse profile page")
	}

	meta := map[string]string{}
	var title string
	walk(doc, func(n *html.Node) {
		switch n.Data {
		case "meta":
			name := firstNonEmpty(getAttr(n, "property"), getAttr(n, "name"))
			if name != "" {
				if _, seen := meta[name]; !seen {
					meta[name] = getAttr(n, "content")
				}
			}
		case "title":
			if title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				title = n.FirstChild.Data
			}
		}
	})

	name, jobTitle := splitTitle(firstNonEmpty(meta["og:title"], title))

	return clean(schema.Profile{
		Name:     name,
		JobTitle: jobTitle,
		About:    schema.String(firstNonEmpty(meta["og:description"], meta["description"])),
		ImageURL: schema.String(meta["og:image"]),
	}), nil
}

func splitTitle(title string) (*string, *string) {
	title = strings.TrimSpace(title)
	if i := strings.LastIndex(title, "|"); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}
	if title == "" {
		return nil, nil
	}

	parts := strings.Split(title, " - ")
	name := strings.TrimSpace(parts[0])
	if len(parts) == 1 {
		return schema.String(name), nil
	}

	return schema.String(name), schema.String(strings.TrimSpace(strings.Join(parts[1:], " - ")))
}

func walk(n *html.Node, visit func(*html.Node)) {
	if n.Type == html.ElementNode {
		visit(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// clean drops blank values so callers only see fields that carry text.
func clean(profile schema.Profile) schema.Profile {
	return schema.Profile{
		Name:     nonBlank(profile.Name),
		JobTitle: nonBlank(profile.JobTitle),
		About:    nonBlank(profile.About),
		ImageURL: nonBlankURL(profile.ImageURL),
	}
}

func nonBlank(value *string) *string {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil
	}
	return schema.String(strings.TrimSpace(*value))
}

func nonBlankURL(value *string) *string {
	value = nonBlank(value)
	if value == nil || !shared.IsOptionalURL(*value) {
		return nil
	}
	return value
}
