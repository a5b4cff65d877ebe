// Package hrdir implements the HR-directory port over the company's
// people API.
package hrdir

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/legalworks/docflow/internal/application/port"
	"github.com/legalworks/docflow/internal/domain/entity"
)

// Config holds directory API configuration
type Config struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
}

// Client is the HTTP client for the people API. Unknown identities come
// back as (nil, nil), never as an error; the workflow layer depends on
// that distinction.
type Client struct {
	baseURL  string
	apiToken string
	http     *http.Client
	logger   *zap.Logger
}

// NewClient creates a new directory client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:  cfg.BaseURL,
		apiToken: cfg.APIToken,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// personDTO is the people API's wire representation
type personDTO struct {
	EmployeeID   string `json:"employee_id"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	Title        string `json:"title"`
	Level        int    `json:"level"`
	SupervisorID string `json:"supervisor_id"`
	Division     string `json:"division"`
	Active       bool   `json:"active"`
}

func (d *personDTO) toEntity() *entity.Person {
	return &entity.Person{
		EmployeeID:   d.EmployeeID,
		Name:         d.Name,
		Role:         d.Role,
		Title:        d.Title,
		Level:        d.Level,
		SupervisorID: d.SupervisorID,
		Division:     d.Division,
		Active:       d.Active,
	}
}

// LookupByID fetches a person by employee ID. A 404 means the identity is
// simply unknown.
func (c *Client) LookupByID(ctx context.Context, employeeID string) (*entity.Person, error) {
	endpoint := fmt.Sprintf("%s/people/%s", c.baseURL, url.PathEscape(employeeID))

	var dto personDTO
	found, err := c.getJSON(ctx, endpoint, &dto)
	if err != nil {
		return nil, fmt.Errorf("lookup person %s: %w", employeeID, err)
	}
	if !found {
		return nil, nil
	}
	return dto.toEntity(), nil
}

// FindByRole returns active people holding the exact role
func (c *Client) FindByRole(ctx context.Context, role string) ([]*entity.Person, error) {
	endpoint := fmt.Sprintf("%s/people?role=%s&active=true", c.baseURL, url.QueryEscape(role))
	return c.listPeople(ctx, endpoint)
}

// FindByTitleKeyword returns active people whose title contains the keyword
func (c *Client) FindByTitleKeyword(ctx context.Context, keyword string) ([]*entity.Person, error) {
	endpoint := fmt.Sprintf("%s/people?title=%s&active=true", c.baseURL, url.QueryEscape(keyword))
	return c.listPeople(ctx, endpoint)
}

func (c *Client) listPeople(ctx context.Context, endpoint string) ([]*entity.Person, error) {
	var dtos []personDTO
	found, err := c.getJSON(ctx, endpoint, &dtos)
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	if !found {
		return nil, nil
	}

	people := make([]*entity.Person, 0, len(dtos))
	for i := range dtos {
		people = append(people, dtos[i].toEntity())
	}
	return people, nil
}

// getJSON performs a GET and decodes the response. Returns found=false on
// a 404 without error.
func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("directory request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Directory API returned unexpected status",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode))
		return false, fmt.Errorf("directory API status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode directory response: %w", err)
	}
	return true, nil
}

// Verify interface compliance
var _ port.Directory = (*Client)(nil)
