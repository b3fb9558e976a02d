// Package rxnorm is a minimal client for the RxNav REST API, used to turn
// free-text medication names into RxNorm concepts (RxCUI + name).
package rxnorm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL   = "https://rxnav.nlm.nih.gov/REST"
	DefaultTimeout   = 3 * time.Second
	DefaultUserAgent = "HealthlineMVP"

	// MaxEntries is the most candidates ever returned by ApproximateTerm.
	MaxEntries = 10
)

// HTTPError represents a non-2xx response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("rxnorm: http error: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("rxnorm: http error: status=%d body=%s", e.StatusCode, e.Body)
}

// Candidate is a concept matching a free-text term.
type Candidate struct {
	RxCUI string `json:"rxcui"`
	Name  string `json:"name"`
}

// Config configures a Client. Zero values fall back to the defaults above.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// Transport lets tests inject a RoundTripper; nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

// Client calls the RxNav API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewClient builds a Client from cfg.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("rxnorm: invalid base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ua := strings.TrimSpace(cfg.UserAgent)
	if ua == "" {
		ua = DefaultUserAgent
	}
	tr := cfg.Transport
	if tr == nil {
		tr = http.DefaultTransport
	}
	return &Client{
		baseURL:   base,
		userAgent: ua,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: tr,
		},
	}, nil
}

type approximateTermResponse struct {
	ApproximateGroup struct {
		Candidate []struct {
			RxCUI string `json:"rxcui"`
			Name  string `json:"name"`
		} `json:"candidate"`
	} `json:"approximateGroup"`
}

// ApproximateTerm returns up to max candidates for term, in the order the
// service ranks them. Candidates missing a code or a name are skipped and
// repeated codes keep their first occurrence. max is clamped to MaxEntries.
func (c *Client) ApproximateTerm(ctx context.Context, term string, max int) ([]Candidate, error) {
	if c == nil || c.httpClient == nil {
		return nil, errors.New("rxnorm: nil client")
	}
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, errors.New("rxnorm: empty term")
	}
	if max <= 0 || max > MaxEntries {
		max = MaxEntries
	}

	q := url.Values{}
	q.Set("term", term)
	q.Set("maxEntries", strconv.Itoa(max))
	fullURL := c.baseURL + "/approximateTerm.json?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("rxnorm: new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rxnorm: do request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1MB max
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var parsed approximateTermResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("rxnorm: unmarshal json: %w", err)
	}

	out := make([]Candidate, 0, max)
	seen := make(map[string]struct{}, max)
	for _, cand := range parsed.ApproximateGroup.Candidate {
		code, name := strings.TrimSpace(cand.RxCUI), strings.TrimSpace(cand.Name)
		if code == "" || name == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, Candidate{RxCUI: code, Name: name})
		if len(out) >= max {
			break
		}
	}
	return out, nil
}
