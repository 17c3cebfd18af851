// Package provision is a client for the identity-provisioning service that
// mints login credentials for raters and targets. Calls are not retried and
// carry no idempotency key; callers decide whether to try again.
package provision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/zulandar/tally/internal/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Mode selects how the account's login is created.
type Mode string

const (
	ModeLogin Mode = "login"
	ModeEmail Mode = "email"
)

const endpoint = "/provision-user"

var (
	// ErrNotConfigured is returned when no provisioning URL is set.
	ErrNotConfigured  = errors.New("provision: service not configured")
	ErrInvalidRequest = errors.New("provision: invalid request")
)

// Request is the provisioning payload.
type Request struct {
	Mode     Mode                   `json:"mode" binding:"required,oneof=login email"`
	Name     string                 `json:"name" binding:"required"`
	Role     string                 `json:"role" binding:"required"`
	BranchID *string                `json:"branchId"`
	Email    string                 `json:"email,omitempty"`
	Password string                 `json:"password,omitempty"`
	DocData  map[string]interface{} `json:"docData,omitempty"`
}

// Account is the identity the service created.
type Account struct {
	UID      string `json:"uid"`
	Login    string `json:"login"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// ServiceError carries the message the service returned with a failure.
type ServiceError struct {
	Status  int
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("provision: service returned %d: %s", e.Status, e.Message)
}

// Client posts provisioning requests to the service.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a client from config. A static token takes precedence over
// client credentials.
func New(cfg config.ProvisionConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, ErrNotConfigured
	}

	var h *http.Client
	ctx := context.Background()
	if cfg.Token != "" {
		h = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"}))
	} else {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		h = cc.Client(ctx)
	}
	h.Timeout = cfg.TimeoutDuration()

	return &Client{baseURL: strings.TrimRight(cfg.URL, "/"), http: h}, nil
}

func (r Request) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	if r.Role == "" {
		return fmt.Errorf("%w: role is required", ErrInvalidRequest)
	}
	switch r.Mode {
	case ModeLogin:
		if r.BranchID == nil || *r.BranchID == "" {
			return fmt.Errorf("%w: branchId is required for login accounts", ErrInvalidRequest)
		}
	case ModeEmail:
		if r.Email == "" || r.Password == "" {
			return fmt.Errorf("%w: email and password are required for email accounts", ErrInvalidRequest)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, r.Mode)
	}
	return nil
}

// Provision creates one account.
func (c *Client) Provision(ctx context.Context, req Request) (*Account, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("provision: encode: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("provision: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	res, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("provision: %w", err)
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("provision: read response: %w", err)
	}

	if res.StatusCode/100 != 2 {
		var e struct {
			Error string `json:"error"`
		}
		msg := http.StatusText(res.StatusCode)
		if json.Unmarshal(payload, &e) == nil && strings.TrimSpace(e.Error) != "" {
			msg = e.Error
		}
		return nil, &ServiceError{Status: res.StatusCode, Message: msg}
	}

	var acct Account
	if err := json.Unmarshal(payload, &acct); err != nil {
		return nil, fmt.Errorf("provision: decode response: %w", err)
	}
	if acct.UID == "" {
		return nil, errors.New("provision: response has no uid")
	}
	log.Printf("provision: created %s account %s in %s", req.Mode, acct.UID, time.Since(start).Round(time.Millisecond))
	return &acct, nil
}
