// Package sms talks to the structured management system: REST for
// onboarding job submission, GraphQL for device-set queries.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/netopscockpit/cockpit/internal/middleware"
	apierrors "github.com/netopscockpit/cockpit/internal/pkg/errors"
)

// Client is the SMS API client. The zero value is not usable; build it
// with NewClient.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates an SMS client for baseURL authenticating with the
// given API token.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// OnboardRequest is one device onboarding submission.
type OnboardRequest struct {
	IP              string
	Location        string
	Namespace       string
	Role            string
	Status          string
	InterfaceStatus string
	IPStatus        string
	// Platform "detect" is transmitted as null so the SMS runs its own
	// platform detection.
	Platform string
	Port     int
	Timeout  int
}

// onboardPayload is the wire shape of the onboarding job API.
type onboardPayload struct {
	IPAddresses                   string  `json:"ip_addresses"`
	Location                      string  `json:"location"`
	Namespace                     string  `json:"namespace"`
	DeviceRole                    string  `json:"device_role"`
	DeviceStatus                  string  `json:"device_status"`
	InterfaceStatus               string  `json:"interface_status"`
	IPAddressStatus               string  `json:"ip_address_status"`
	Platform                      *string `json:"platform"`
	Port                          int     `json:"port"`
	Timeout                       int     `json:"timeout"`
	UpdateDevicesWithoutPrimaryIP bool    `json:"update_devices_without_primary_ip"`
}

// Onboard submits one onboarding job and returns the SMS job id.
func (c *Client) Onboard(ctx context.Context, req OnboardRequest) (string, error) {
	jobID, err := c.onboard(ctx, req)
	middleware.RecordSMSRequest("onboard", err)
	return jobID, err
}

func (c *Client) onboard(ctx context.Context, req OnboardRequest) (string, error) {
	payload := onboardPayload{
		IPAddresses:     req.IP,
		Location:        req.Location,
		Namespace:       defaultString(req.Namespace, "Global"),
		DeviceRole:      req.Role,
		DeviceStatus:    defaultString(req.Status, "Active"),
		InterfaceStatus: defaultString(req.InterfaceStatus, "Active"),
		IPAddressStatus: defaultString(req.IPStatus, "Active"),
		Port:            defaultInt(req.Port, 22),
		Timeout:         defaultInt(req.Timeout, 30),
	}
	if req.Platform != "" && req.Platform != "detect" {
		payload.Platform = &req.Platform
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal onboarding payload: %w", err)
	}

	url := c.baseURL + "/api/extras/jobs/Sync%20Devices%20From%20Network/run/"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url,
		bytes.NewReader(mustWrapJobData(body)))
	if err != nil {
		return "", fmt.Errorf("failed to build onboarding request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Token "+c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", apierrors.NewRemoteError(fmt.Sprintf("SMS unreachable: %v", err))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", apierrors.ErrAuthFailed.WithMessage("SMS rejected the API token")
	case resp.StatusCode >= 400:
		return "", apierrors.NewRemoteError(fmt.Sprintf("SMS onboarding failed: %s", strings.TrimSpace(string(respBody))))
	}

	jobID := extractJobID(respBody)
	slog.Info("onboarding job submitted", "ip", req.IP, "sms_job_id", jobID)
	return jobID, nil
}

// mustWrapJobData nests the payload under the job-run "data" envelope.
func mustWrapJobData(payload []byte) []byte {
	var inner json.RawMessage = payload
	out, err := json.Marshal(map[string]json.RawMessage{"data": inner})
	if err != nil {
		// payload is valid JSON by construction
		panic(err)
	}
	return out
}

// extractJobID pulls the job id from a job-run response, preferring
// job_result.id and falling back to the top-level id.
func extractJobID(body []byte) string {
	var parsed struct {
		ID        string `json:"id"`
		JobResult struct {
			ID string `json:"id"`
		} `json:"job_result"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	if parsed.JobResult.ID != "" {
		return parsed.JobResult.ID
	}
	return parsed.ID
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func defaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
