// Package mapillary is a small client for the Mapillary Graph API image search
// used to find panoramas inside a bounding box.
package mapillary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"panoguess/pkg/geo"
)

const (
	DefaultBaseURL     = "https://graph.mapillary.com"
	DefaultResultLimit = 10
	DefaultMinInterval = 500 * time.Millisecond

	imageFields  = "id,geometry,is_pano"
	maxBodyBytes = 1 << 20
	maxErrorBody = 256
)

// IntSource yields uniform integers in [0, n).
type IntSource interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Config configures a Client. Zero values fall back to the package defaults.
type Config struct {
	AccessToken string
	BaseURL     string
	ResultLimit int
	MinInterval time.Duration
	HTTPClient  *http.Client
	Rand        IntSource
}

type Client struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
	userAgent   string
	limit       int
	limiter     *rate.Limiter
	rand        IntSource
}

func NewClient(cfg Config) *Client {
	c := &Client{
		httpClient:  cfg.HTTPClient,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		accessToken: cfg.AccessToken,
		userAgent:   "panoguess/1.0",
		limit:       cfg.ResultLimit,
		rand:        cfg.Rand,
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.limit <= 0 {
		c.limit = DefaultResultLimit
	}
	if c.rand == nil {
		c.rand = globalRand{}
	}
	interval := cfg.MinInterval
	if interval <= 0 {
		interval = DefaultMinInterval
	}
	c.limiter = rate.NewLimiter(rate.Every(interval), 1)
	return c
}

// FindImage searches for panoramas inside box and returns one of them chosen
// uniformly at random, so repeated searches of the same box vary.
func (c *Client) FindImage(ctx context.Context, box geo.BoundingBox) (Image, error) {
	images, err := c.SearchImages(ctx, box)
	if err != nil {
		return Image{}, err
	}
	return images[c.rand.IntN(len(images))], nil
}

// SearchImages performs one rate-limited request and returns the validated
// candidate list. The list is never empty when err is nil.
func (c *Client) SearchImages(ctx context.Context, box geo.BoundingBox) ([]Image, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.imagesURL(box), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrNetwork, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrNetwork, resp.StatusCode, snippet(body))
	}
	return decodeImages(body)
}

func (c *Client) imagesURL(box geo.BoundingBox) string {
	params := url.Values{}
	params.Set("access_token", c.accessToken)
	params.Set("fields", imageFields)
	params.Set("limit", strconv.Itoa(c.limit))
	params.Set("bbox", box.String())
	params.Set("is_pano", "true")
	return fmt.Sprintf("%s/images?%s", c.baseURL, params.Encode())
}

func decodeImages(body []byte) ([]Image, error) {
	var apiResp ImagesResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if apiResp.Data == nil || len(*apiResp.Data) == 0 {
		return nil, ErrNoResults
	}
	images := *apiResp.Data
	for i, img := range images {
		if img.ID == "" {
			return nil, fmt.Errorf("%w: candidate %d has no id", ErrParse, i)
		}
	}
	return images, nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return s
}

// ViewerURL links to the public web viewer for an image.
func ViewerURL(imageID string) string {
	return "https://www.mapillary.com/app/?pKey=" + url.QueryEscape(imageID)
}
