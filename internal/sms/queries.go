package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/shurcooL/graphql"

	"github.com/netopscockpit/cockpit/internal/middleware"
	"github.com/netopscockpit/cockpit/internal/models"
	apierrors "github.com/netopscockpit/cockpit/internal/pkg/errors"
)

// DeviceQuerier resolves one field predicate to a device set. The
// query engine composes these sets; tests substitute a fake.
type DeviceQuerier interface {
	// DevicesByField resolves a recognized field. regex selects the
	// contains-style lookup; only name and location support it.
	DevicesByField(ctx context.Context, field, value string, regex bool) ([]models.Device, error)
	// DevicesByCustomField resolves a custom_fields.<key> equality.
	DevicesByCustomField(ctx context.Context, key, value string) ([]models.Device, error)
}

// tokenTransport injects the SMS token header on every request.
type tokenTransport struct {
	token string
	base  http.RoundTripper
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Token "+t.token)
	return t.base.RoundTrip(req)
}

// GraphQLClient implements DeviceQuerier against the SMS GraphQL
// endpoint.
type GraphQLClient struct {
	gql        *graphql.Client
	endpoint   string
	httpClient *http.Client
}

// NewGraphQLClient builds the production device querier.
func NewGraphQLClient(baseURL, token string, timeout time.Duration) *GraphQLClient {
	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: &tokenTransport{token: token, base: http.DefaultTransport},
	}
	endpoint := strings.TrimSuffix(baseURL, "/") + "/api/graphql/"
	return &GraphQLClient{
		gql:        graphql.NewClient(endpoint, httpClient),
		endpoint:   endpoint,
		httpClient: httpClient,
	}
}

// gqlDevice mirrors the device selection set. Optional relations stay
// pointers so missing data surfaces as nil, not empty strings.
type gqlDevice struct {
	ID         graphql.String
	Name       graphql.String
	PrimaryIP4 *struct {
		Address graphql.String
	} `graphql:"primary_ip4"`
	Status *struct {
		Name graphql.String
	}
	DeviceType *struct {
		Model graphql.String
	} `graphql:"device_type"`
	Manufacturer *struct {
		Name graphql.String
	}
	Role *struct {
		Name graphql.String
	}
	Location *struct {
		Name graphql.String
	}
	Platform *struct {
		Name graphql.String
	}
	Tags []struct {
		Name graphql.String
	}
}

func (d gqlDevice) toModel() models.Device {
	dev := models.Device{
		ID:   string(d.ID),
		Name: string(d.Name),
		Tags: []string{},
	}
	if d.PrimaryIP4 != nil {
		s := string(d.PrimaryIP4.Address)
		dev.PrimaryIP4 = &s
	}
	if d.Status != nil {
		s := string(d.Status.Name)
		dev.Status = &s
	}
	if d.DeviceType != nil {
		s := string(d.DeviceType.Model)
		dev.DeviceType = &s
	}
	if d.Manufacturer != nil {
		s := string(d.Manufacturer.Name)
		dev.Manufacturer = &s
	}
	if d.Role != nil {
		s := string(d.Role.Name)
		dev.Role = &s
	}
	if d.Location != nil {
		s := string(d.Location.Name)
		dev.Location = &s
	}
	if d.Platform != nil {
		s := string(d.Platform.Name)
		dev.Platform = &s
	}
	for _, tag := range d.Tags {
		dev.Tags = append(dev.Tags, string(tag.Name))
	}
	return dev
}

func toModels(in []gqlDevice) []models.Device {
	out := make([]models.Device, len(in))
	for i, d := range in {
		out[i] = d.toModel()
	}
	return out
}

// DevicesByField resolves one recognized field predicate.
func (c *GraphQLClient) DevicesByField(ctx context.Context, field, value string, regex bool) ([]models.Device, error) {
	devices, err := c.devicesByField(ctx, field, value, regex)
	middleware.RecordSMSRequest("device_query", err)
	return devices, err
}

func (c *GraphQLClient) devicesByField(ctx context.Context, field, value string, regex bool) ([]models.Device, error) {
	vars := map[string]interface{}{"value": []graphql.String{graphql.String(value)}}

	switch field {
	case "name":
		if regex {
			var q struct {
				Devices []gqlDevice `graphql:"devices(name__ire: [$value])"`
			}
			if err := c.gql.Query(ctx, &q, vars); err != nil {
				return nil, wrapGraphQLError(err)
			}
			return toModels(q.Devices), nil
		}
		var q struct {
			Devices []gqlDevice `graphql:"devices(name: [$value])"`
		}
		if err := c.gql.Query(ctx, &q, vars); err != nil {
			return nil, wrapGraphQLError(err)
		}
		return toModels(q.Devices), nil

	case "location":
		if regex {
			var q struct {
				Locations []struct {
					Devices []gqlDevice
				} `graphql:"locations(name__ire: [$value])"`
			}
			if err := c.gql.Query(ctx, &q, vars); err != nil {
				return nil, wrapGraphQLError(err)
			}
			var devices []gqlDevice
			for _, loc := range q.Locations {
				devices = append(devices, loc.Devices...)
			}
			return toModels(devices), nil
		}
		var q struct {
			Locations []struct {
				Devices []gqlDevice
			} `graphql:"locations(name: [$value])"`
		}
		if err := c.gql.Query(ctx, &q, vars); err != nil {
			return nil, wrapGraphQLError(err)
		}
		var devices []gqlDevice
		for _, loc := range q.Locations {
			devices = append(devices, loc.Devices...)
		}
		return toModels(devices), nil

	case "role":
		var q struct {
			Devices []gqlDevice `graphql:"devices(role: [$value])"`
		}
		if err := c.gql.Query(ctx, &q, vars); err != nil {
			return nil, wrapGraphQLError(err)
		}
		return toModels(q.Devices), nil

	case "tag":
		var q struct {
			Devices []gqlDevice `graphql:"devices(tags: [$value])"`
		}
		if err := c.gql.Query(ctx, &q, vars); err != nil {
			return nil, wrapGraphQLError(err)
		}
		return toModels(q.Devices), nil

	case "device_type":
		var q struct {
			Devices []gqlDevice `graphql:"devices(device_type: [$value])"`
		}
		if err := c.gql.Query(ctx, &q, vars); err != nil {
			return nil, wrapGraphQLError(err)
		}
		return toModels(q.Devices), nil

	case "manufacturer":
		var q struct {
			Devices []gqlDevice `graphql:"devices(manufacturer: [$value])"`
		}
		if err := c.gql.Query(ctx, &q, vars); err != nil {
			return nil, wrapGraphQLError(err)
		}
		return toModels(q.Devices), nil

	case "platform":
		var q struct {
			Devices []gqlDevice `graphql:"devices(platform: [$value])"`
		}
		if err := c.gql.Query(ctx, &q, vars); err != nil {
			return nil, wrapGraphQLError(err)
		}
		return toModels(q.Devices), nil

	default:
		return nil, apierrors.NewValidationError("field", fmt.Sprintf("unrecognized field %q", field))
	}
}

// DevicesByCustomField resolves a custom field equality. The filter
// argument name embeds the key, so this goes through a raw query
// rather than the typed client.
func (c *GraphQLClient) DevicesByCustomField(ctx context.Context, key, value string) ([]models.Device, error) {
	devices, err := c.devicesByCustomField(ctx, key, value)
	middleware.RecordSMSRequest("custom_field_query", err)
	return devices, err
}

// customFieldKeyRe bounds the key interpolated into the query text.
var customFieldKeyRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func (c *GraphQLClient) devicesByCustomField(ctx context.Context, key, value string) ([]models.Device, error) {
	if !customFieldKeyRe.MatchString(key) {
		return nil, apierrors.NewValidationError("field", fmt.Sprintf("invalid custom field key %q", key))
	}

	query := fmt.Sprintf(`query ($value: [String]) {
  devices(cf_%s: $value) {
    id name
    primary_ip4 { address }
    status { name }
    device_type { model }
    manufacturer { name }
    role { name }
    location { name }
    platform { name }
    tags { name }
  }
}`, key)

	body, err := json.Marshal(map[string]interface{}{
		"query":     query,
		"variables": map[string]interface{}{"value": []string{value}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to build query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apierrors.NewRemoteError(fmt.Sprintf("SMS unreachable: %v", err))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, apierrors.NewRemoteError(fmt.Sprintf("SMS query failed: %s", strings.TrimSpace(string(respBody))))
	}

	var parsed struct {
		Data struct {
			Devices []rawDevice `json:"devices"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode query response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return nil, apierrors.NewRemoteError("SMS query failed: " + parsed.Errors[0].Message)
	}

	devices := make([]models.Device, len(parsed.Data.Devices))
	for i, d := range parsed.Data.Devices {
		devices[i] = d.toModel()
	}
	return devices, nil
}

// rawDevice is the JSON twin of gqlDevice for raw queries.
type rawDevice struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PrimaryIP4 *struct {
		Address string `json:"address"`
	} `json:"primary_ip4"`
	Status *struct {
		Name string `json:"name"`
	} `json:"status"`
	DeviceType *struct {
		Model string `json:"model"`
	} `json:"device_type"`
	Manufacturer *struct {
		Name string `json:"name"`
	} `json:"manufacturer"`
	Role *struct {
		Name string `json:"name"`
	} `json:"role"`
	Location *struct {
		Name string `json:"name"`
	} `json:"location"`
	Platform *struct {
		Name string `json:"name"`
	} `json:"platform"`
	Tags []struct {
		Name string `json:"name"`
	} `json:"tags"`
}

func (d rawDevice) toModel() models.Device {
	dev := models.Device{ID: d.ID, Name: d.Name, Tags: []string{}}
	if d.PrimaryIP4 != nil {
		dev.PrimaryIP4 = &d.PrimaryIP4.Address
	}
	if d.Status != nil {
		dev.Status = &d.Status.Name
	}
	if d.DeviceType != nil {
		dev.DeviceType = &d.DeviceType.Model
	}
	if d.Manufacturer != nil {
		dev.Manufacturer = &d.Manufacturer.Name
	}
	if d.Role != nil {
		dev.Role = &d.Role.Name
	}
	if d.Location != nil {
		dev.Location = &d.Location.Name
	}
	if d.Platform != nil {
		dev.Platform = &d.Platform.Name
	}
	for _, tag := range d.Tags {
		dev.Tags = append(dev.Tags, tag.Name)
	}
	return dev
}

func wrapGraphQLError(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "401") || strings.Contains(strings.ToLower(msg), "unauthorized") {
		return apierrors.ErrAuthFailed.WithMessage("SMS rejected the API token")
	}
	return apierrors.NewRemoteError("SMS query failed: " + msg)
}

// FieldValues lists the known values of one recognized field, for UI
// dropdowns.
func (c *GraphQLClient) FieldValues(ctx context.Context, field string) ([]string, error) {
	collect := func(names []struct{ Name graphql.String }) []string {
		out := make([]string, len(names))
		for i, n := range names {
			out[i] = string(n.Name)
		}
		return out
	}

	switch field {
	case "location":
		var q struct {
			Locations []struct{ Name graphql.String } `graphql:"locations"`
		}
		if err := c.gql.Query(ctx, &q, nil); err != nil {
			return nil, wrapGraphQLError(err)
		}
		return collect(q.Locations), nil
	case "role":
		var q struct {
			Roles []struct{ Name graphql.String } `graphql:"roles(content_types: [\"dcim.device\"])"`
		}
		if err := c.gql.Query(ctx, &q, nil); err != nil {
			return nil, wrapGraphQLError(err)
		}
		return collect(q.Roles), nil
	case "tag":
		var q struct {
			Tags []struct{ Name graphql.String } `graphql:"tags"`
		}
		if err := c.gql.Query(ctx, &q, nil); err != nil {
			return nil, wrapGraphQLError(err)
		}
		return collect(q.Tags), nil
	case "device_type":
		var q struct {
			DeviceTypes []struct{ Model graphql.String } `graphql:"device_types"`
		}
		if err := c.gql.Query(ctx, &q, nil); err != nil {
			return nil, wrapGraphQLError(err)
		}
		out := make([]string, len(q.DeviceTypes))
		for i, d := range q.DeviceTypes {
			out[i] = string(d.Model)
		}
		return out, nil
	case "manufacturer":
		var q struct {
			Manufacturers []struct{ Name graphql.String } `graphql:"manufacturers"`
		}
		if err := c.gql.Query(ctx, &q, nil); err != nil {
			return nil, wrapGraphQLError(err)
		}
		return collect(q.Manufacturers), nil
	case "platform":
		var q struct {
			Platforms []struct{ Name graphql.String } `graphql:"platforms"`
		}
		if err := c.gql.Query(ctx, &q, nil); err != nil {
			return nil, wrapGraphQLError(err)
		}
		return collect(q.Platforms), nil
	default:
		return nil, apierrors.NewValidationError("field", fmt.Sprintf("no value listing for field %q", field))
	}
}

// CustomField describes one SMS custom field definition.
type CustomField struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

// CustomFields lists the device custom field definitions via REST.
func (c *GraphQLClient) CustomFields(ctx context.Context) ([]CustomField, error) {
	url := strings.TrimSuffix(c.endpoint, "/graphql/") + "/extras/custom-fields/?content_types=dcim.device&limit=200"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apierrors.NewRemoteError(fmt.Sprintf("SMS unreachable: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, apierrors.NewRemoteError(fmt.Sprintf("SMS custom field listing failed: HTTP %d", resp.StatusCode))
	}

	var parsed struct {
		Results []struct {
			Key   string `json:"key"`
			Label string `json:"label"`
			Type  struct {
				Value string `json:"value"`
			} `json:"type"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode custom field listing: %w", err)
	}

	fields := make([]CustomField, len(parsed.Results))
	for i, r := range parsed.Results {
		fields[i] = CustomField{Key: r.Key, Label: r.Label, Type: r.Type.Value}
	}
	return fields, nil
}
