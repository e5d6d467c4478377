package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/PuerkitoBio/goquery"

	"rentwatch/config"
)

// warmup visits the site root and the listings section page before the data
// request, collecting session cookies and discovering the current Next.js
// build ID from the section page's __NEXT_DATA__ payload. The build ID
// changes on every site deploy, so it must never be hardcoded.
func (f *Fetcher) warmup(ctx context.Context) error {
	root, err := f.browse(ctx, f.cfg.API.SiteBase)
	if err != nil {
		return &FetchError{Kind: KindNetwork, Err: fmt.Errorf("warm-up root: %w", err)}
	}
	// Drain so the keep-alive connection is reusable for the section page.
	io.Copy(io.Discard, root)
	root.Close()

	if err := f.sleepRandom(ctx, config.DelayRange{MinSeconds: 1, MaxSeconds: 3}); err != nil {
		return &FetchError{Kind: KindNetwork, Err: err}
	}

	body, err := f.browse(ctx, f.cfg.API.SiteBase+f.cfg.API.SectionPath)
	if err != nil {
		return &FetchError{Kind: KindNetwork, Err: fmt.Errorf("warm-up section: %w", err)}
	}
	defer body.Close()

	buildID, err := ExtractBuildID(body)
	if err != nil {
		return &FetchError{Kind: KindParse, Err: fmt.Errorf("build ID discovery: %w", err)}
	}
	f.buildID = buildID
	return nil
}

func (f *Fetcher) browse(ctx context.Context, pageURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	ua := userAgents[0]
	if f.cfg.Monitoring.RandomUserAgents {
		ua = userAgents[f.rng.Intn(len(userAgents))]
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "he-IL,he;q=0.9,en-US;q=0.8,en;q=0.7")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("status %d for %s", resp.StatusCode, pageURL)
	}
	return resp.Body, nil
}

// ExtractBuildID pulls the Next.js build ID out of a rendered page.
func ExtractBuildID(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}

	payload := doc.Find("script#__NEXT_DATA__").First().Text()
	if payload == "" {
		return "", fmt.Errorf("__NEXT_DATA__ script not found")
	}

	var next struct {
		BuildID string `json:"buildId"`
	}
	if err := json.Unmarshal([]byte(payload), &next); err != nil {
		return "", fmt.Errorf("decode __NEXT_DATA__: %w", err)
	}
	if next.BuildID == "" {
		return "", fmt.Errorf("__NEXT_DATA__ has no buildId")
	}
	return next.BuildID, nil
}
