package geolocation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrPositionUnavailable is returned when a locator has no position to give.
var ErrPositionUnavailable = errors.New("position unavailable")

const ipLookupTimeout = 5 * time.Second

/* =================================================================================
								REPORTED LOCATOR
=================================================================================*/

// ReportedLocator replays the permission state and position a remote client
// reported about itself. A remote device cannot be re-prompted, so
// RequestPermission returns the reported state unchanged.
type ReportedLocator struct {
	Enabled    bool
	Permission Permission
	Position   *Coordinate
}

func (r ReportedLocator) ServiceEnabled(context.Context) (bool, error) {
	return r.Enabled, nil
}

func (r ReportedLocator) CheckPermission(context.Context) (Permission, error) {
	return r.Permission, nil
}

func (r ReportedLocator) RequestPermission(context.Context) (Permission, error) {
	return r.Permission, nil
}

func (r ReportedLocator) CurrentPosition(context.Context) (Coordinate, error) {
	if r.Position == nil {
		return Coordinate{}, ErrPositionUnavailable
	}
	return *r.Position, nil
}

/* =================================================================================
								STATIC LOCATOR
=================================================================================*/

// StaticLocator always reports a fixed, pre-approved position.
type StaticLocator struct {
	Position Coordinate
}

func (StaticLocator) ServiceEnabled(context.Context) (bool, error) { return true, nil }

func (StaticLocator) CheckPermission(context.Context) (Permission, error) {
	return PermissionAlways, nil
}

func (StaticLocator) RequestPermission(context.Context) (Permission, error) {
	return PermissionAlways, nil
}

func (s StaticLocator) CurrentPosition(context.Context) (Coordinate, error) {
	return s.Position, nil
}

// DisabledLocator is a location service that is switched off.
type DisabledLocator struct{}

func (DisabledLocator) ServiceEnabled(context.Context) (bool, error) { return false, nil }

func (DisabledLocator) CheckPermission(context.Context) (Permission, error) {
	return PermissionDenied, nil
}

func (DisabledLocator) RequestPermission(context.Context) (Permission, error) {
	return PermissionDenied, nil
}

func (DisabledLocator) CurrentPosition(context.Context) (Coordinate, error) {
	return Coordinate{}, ErrPositionUnavailable
}

/* =================================================================================
								IP LOCATOR
=================================================================================*/

// IPLocator resolves an IP address to an approximate position using an
// ip-api.com compatible endpoint ({baseURL}/{ip}).
type IPLocator struct {
	BaseURL    string
	IP         string
	Consent    bool
	HTTPClient *http.Client
}

// NewIPLocator builds a locator for ip. consent is the client's answer to the
// location prompt.
func NewIPLocator(baseURL, ip string, consent bool) *IPLocator {
	return &IPLocator{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		IP:         ip,
		Consent:    consent,
		HTTPClient: &http.Client{Timeout: ipLookupTimeout},
	}
}

func (l *IPLocator) ServiceEnabled(context.Context) (bool, error) {
	return l.BaseURL != "" && l.IP != "", nil
}

func (l *IPLocator) CheckPermission(context.Context) (Permission, error) {
	if l.Consent {
		return PermissionWhileInUse, nil
	}
	return PermissionDenied, nil
}

func (l *IPLocator) RequestPermission(ctx context.Context) (Permission, error) {
	return l.CheckPermission(ctx)
}

type ipLookupResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

func (l *IPLocator) CurrentPosition(ctx context.Context) (Coordinate, error) {
	endpoint := l.BaseURL + "/" + url.PathEscape(l.IP)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Coordinate{}, fmt.Errorf("failed to create lookup request: %w", err)
	}

	resp, err := l.HTTPClient.Do(req)
	if err != nil {
		return Coordinate{}, fmt.Errorf("ip lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Coordinate{}, fmt.Errorf("ip lookup returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var out ipLookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Coordinate{}, fmt.Errorf("failed to decode ip lookup: %w", err)
	}
	if out.Status != "" && out.Status != "success" {
		return Coordinate{}, fmt.Errorf("ip lookup %s: %s: %w", out.Status, out.Message, ErrPositionUnavailable)
	}
	return Coordinate{Latitude: out.Lat, Longitude: out.Lon}, nil
}
