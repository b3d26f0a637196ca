package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"lms-payments/internal/config"
	"lms-payments/internal/domain"
	"lms-payments/internal/domain/ports/adapter"
)

// Client resolves course prices against the catalog service. The catalog
// owns course data; this service only ever reads id, name and price.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zerolog.Logger
}

var _ adapter.CourseCatalog = (*Client)(nil)

func NewClient(cfg *config.CatalogConfig, logger *zerolog.Logger) *Client {
	compLog := logger.With().Str("component", "CatalogClient").Logger()
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        &compLog,
	}
}

type courseResponse struct {
	Courses []struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Price int64  `json:"price"`
	} `json:"courses"`
}

// Prices returns pricing for the known subset of the requested ids. Unknown
// ids are simply absent from the response.
func (c *Client) Prices(ctx context.Context, courseIDs []string) ([]adapter.CourseInfo, error) {
	if len(courseIDs) == 0 {
		return nil, nil
	}

	u := fmt.Sprintf("%s/internal/v1/courses?ids=%s", c.baseURL, url.QueryEscape(strings.Join(courseIDs, ",")))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn().Int("status", resp.StatusCode).Msg("catalog returned non-200")
		return nil, fmt.Errorf("%w: status %d", domain.ErrCatalogUnavailable, resp.StatusCode)
	}

	var body courseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrCatalogUnavailable, err)
	}

	out := make([]adapter.CourseInfo, 0, len(body.Courses))
	for _, course := range body.Courses {
		out = append(out, adapter.CourseInfo{ID: course.ID, Name: course.Name, Price: course.Price})
	}
	return out, nil
}
