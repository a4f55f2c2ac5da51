/*
Package geolocation acquires the caller's position once per screen. Every
failure degrades to "no location" and is only logged.
*/
package geolocation

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Coordinate is a latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// String renders the coordinate with four decimal places.
func (c Coordinate) String() string {
	return fmt.Sprintf("%.4f, %.4f", c.Latitude, c.Longitude)
}

// Valid reports whether both components are inside their ranges.
func (c Coordinate) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// Permission mirrors the location permission states a device can report.
type Permission string

const (
	PermissionDenied            Permission = "denied"
	PermissionDeniedForever     Permission = "deniedForever"
	PermissionWhileInUse        Permission = "whileInUse"
	PermissionAlways            Permission = "always"
	PermissionUnableToDetermine Permission = "unableToDetermine"
)

// Granted reports whether the position may be read.
func (p Permission) Granted() bool {
	return p == PermissionWhileInUse || p == PermissionAlways
}

// ParsePermission maps a client-supplied string to a Permission. Unknown
// values are treated as denied.
func ParsePermission(s string) Permission {
	switch p := Permission(s); p {
	case PermissionDenied, PermissionDeniedForever, PermissionWhileInUse, PermissionAlways, PermissionUnableToDetermine:
		return p
	case "granted":
		return PermissionWhileInUse
	default:
		return PermissionDenied
	}
}

// Locator is a source of device position.
type Locator interface {
	ServiceEnabled(ctx context.Context) (bool, error)
	CheckPermission(ctx context.Context) (Permission, error)
	RequestPermission(ctx context.Context) (Permission, error)
	CurrentPosition(ctx context.Context) (Coordinate, error)
}

// Acquire makes a single best-effort attempt to read the position from loc.
// It returns nil whenever the service is off, permission is withheld or any
// call fails.
func Acquire(ctx context.Context, loc Locator, logger *zerolog.Logger) *Coordinate {
	enabled, err := loc.ServiceEnabled(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Location service check failed")
		return nil
	}
	if !enabled {
		logger.Info().Msg("Location service disabled, continuing without location")
		return nil
	}

	permission, err := loc.CheckPermission(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Location permission check failed")
		return nil
	}
	if permission == PermissionDenied {
		permission, err = loc.RequestPermission(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("Location permission request failed")
			return nil
		}
	}
	if permission == PermissionDenied || permission == PermissionDeniedForever {
		logger.Info().Str("permission", string(permission)).Msg("Location permission withheld")
		return nil
	}

	pos, err := loc.CurrentPosition(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to get current position")
		return nil
	}
	if !pos.Valid() {
		logger.Warn().Float64("lat", pos.Latitude).Float64("lon", pos.Longitude).Msg("Discarding out-of-range position")
		return nil
	}

	logger.Info().Msg("Location acquired")
	return &pos
}
