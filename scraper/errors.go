package scraper

import "fmt"

// Kind classifies terminal fetch outcomes. The scheduler treats all of them
// as "try again next cycle"; the distinction is for logging and run records.
type Kind string

const (
	KindBlocked Kind = "blocked" // 403/429 or CAPTCHA interstitial
	KindHTTP    Kind = "http"    // any other non-200
	KindParse   Kind = "parse"   // body was not the expected JSON
	KindNetwork Kind = "network" // transport failure or timeout
)

type FetchError struct {
	Kind   Kind
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	switch {
	case e.Kind == KindHTTP:
		return fmt.Sprintf("fetch: unexpected status %d", e.Status)
	case e.Err != nil:
		return fmt.Sprintf("fetch: %s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("fetch: %s (status %d)", e.Kind, e.Status)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
