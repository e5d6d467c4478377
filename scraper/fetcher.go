package scraper

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"rentwatch/config"
)

// RawDocument is the decoded JSON body of one data-endpoint response.
type RawDocument map[string]interface{}

// RawListing is one undecoded listing record inside a RawDocument.
type RawListing map[string]interface{}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/119.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36",
}

// markers that show up in anti-bot interstitials instead of JSON
var blockMarkers = []string{"shieldsquare", "captcha", "perfdrive", "are you a robot"}

// Fetcher issues one dressed-up GET per call against the data endpoint.
// It never retries; retry policy belongs to the scheduler.
type Fetcher struct {
	cfg    *config.Config
	client *http.Client
	rng    *rand.Rand

	buildID string
}

func NewFetcher(cfg *config.Config, client *http.Client) *Fetcher {
	return &Fetcher{
		cfg:    cfg,
		client: client,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Fetch performs the GET and returns the parsed document plus a short
// fingerprint of the raw body (recorded on the monitoring run).
func (f *Fetcher) Fetch(ctx context.Context) (RawDocument, string, error) {
	if err := f.sleepRandom(ctx, f.cfg.Monitoring.PreRequestDelay); err != nil {
		return nil, "", &FetchError{Kind: KindNetwork, Err: err}
	}

	endpoint, err := f.endpointURL(ctx)
	if err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", &FetchError{Kind: KindNetwork, Err: err}
	}
	f.dressRequest(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", &FetchError{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return nil, "", &FetchError{Kind: KindBlocked, Status: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		f.invalidateBuild()
		return nil, "", &FetchError{Kind: KindHTTP, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &FetchError{Kind: KindNetwork, Err: err}
	}

	if marker := sniffBlockMarker(body); marker != "" {
		return nil, "", &FetchError{Kind: KindBlocked, Status: resp.StatusCode,
			Err: fmt.Errorf("interstitial detected (%s)", marker)}
	}

	var doc RawDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		f.invalidateBuild()
		return nil, "", &FetchError{Kind: KindParse, Err: err}
	}

	return doc, fingerprint(body), nil
}

// invalidateBuild drops the cached build ID so the next cycle rediscovers
// it. A site redeploy changes the ID and turns every data request against
// the old one into a 404 or an HTML error page.
func (f *Fetcher) invalidateBuild() {
	if f.buildID != "" && strings.Contains(f.cfg.API.URL, "{build}") {
		f.buildID = ""
	}
}

// endpointURL resolves the {build} placeholder (via warm-up when needed)
// and appends the search filter query.
func (f *Fetcher) endpointURL(ctx context.Context) (string, error) {
	raw := f.cfg.API.URL
	if strings.Contains(raw, "{build}") {
		if f.buildID == "" {
			if !f.cfg.API.Warmup {
				return "", &FetchError{Kind: KindNetwork,
					Err: fmt.Errorf("api.url needs a build ID but warm-up is disabled")}
			}
			if err := f.warmup(ctx); err != nil {
				return "", err
			}
		}
		raw = strings.ReplaceAll(raw, "{build}", f.buildID)
	} else if f.cfg.API.Warmup && f.buildID == "" {
		// Warm the session anyway so the data request carries cookies.
		if err := f.warmup(ctx); err != nil {
			log.Printf("Warm-up failed, continuing without session cookies: %v", err)
		}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", &FetchError{Kind: KindNetwork, Err: err}
	}

	q := u.Query()
	s := f.cfg.Search
	if s.MaxPrice > 0 {
		q.Set("maxPrice", strconv.Itoa(s.MaxPrice))
	}
	if s.MinRooms > 0 {
		q.Set("minRooms", strconv.FormatFloat(s.MinRooms, 'f', -1, 64))
	}
	if s.MaxRooms > 0 {
		q.Set("maxRooms", strconv.FormatFloat(s.MaxRooms, 'f', -1, 64))
	}
	if s.TopArea > 0 {
		q.Set("topArea", strconv.Itoa(s.TopArea))
	}
	if s.Area > 0 {
		q.Set("area", strconv.Itoa(s.Area))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (f *Fetcher) dressRequest(req *http.Request) {
	ua := userAgents[0]
	if f.cfg.Monitoring.RandomUserAgents {
		ua = userAgents[f.rng.Intn(len(userAgents))]
	}

	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "he-IL,he;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Referer", f.cfg.API.SiteBase+f.cfg.API.SectionPath)
	req.Header.Set("Origin", f.cfg.API.SiteBase)
	req.Header.Set("x-nextjs-data", "1")
	req.Header.Set("Sec-Fetch-Dest", "empty")
	req.Header.Set("Sec-Fetch-Mode", "cors")
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	req.Header.Set("DNT", "1")

	if f.rng.Float64() < 0.3 {
		req.Header.Set("Cache-Control", "no-cache")
	}
}

func (f *Fetcher) sleepRandom(ctx context.Context, d config.DelayRange) error {
	if d.MaxSeconds <= 0 {
		return nil
	}
	span := d.MaxSeconds - d.MinSeconds
	if span < 0 {
		span = 0
	}
	delay := time.Duration((d.MinSeconds + f.rng.Float64()*span) * float64(time.Second))

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func sniffBlockMarker(body []byte) string {
	head := body
	if len(head) > 512 {
		head = head[:512]
	}
	lower := strings.ToLower(string(head))
	if strings.HasPrefix(strings.TrimSpace(lower), "{") {
		return ""
	}
	for _, marker := range blockMarkers {
		if strings.Contains(lower, marker) {
			return marker
		}
	}
	return ""
}

func fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])[:10]
}
