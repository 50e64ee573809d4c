package models

import (
	"time"

	"github.com/google/uuid"
)

// ZoneStatus is the lifecycle status of a polluted zone report.
type ZoneStatus string

const (
	ZoneStatusReported          ZoneStatus = "reported"
	ZoneStatusCleaningScheduled ZoneStatus = "cleaning_scheduled"
	ZoneStatusCleaned           ZoneStatus = "cleaned"
)

// ParseZoneStatus validates a zone status received at the API boundary.
func ParseZoneStatus(s string) (ZoneStatus, bool) {
	switch ZoneStatus(s) {
	case ZoneStatusReported, ZoneStatusCleaningScheduled, ZoneStatusCleaned:
		return ZoneStatus(s), true
	}
	return "", false
}

// ZoneSeverity grades how polluted a reported zone is.
type ZoneSeverity string

const (
	SeverityLow     ZoneSeverity = "low"
	SeverityMedium  ZoneSeverity = "medium"
	SeverityHigh    ZoneSeverity = "high"
	SeverityUnknown ZoneSeverity = "unknown"
)

// ParseZoneSeverity validates a severity received at the API boundary.
// Unrecognized values decode to SeverityUnknown.
func ParseZoneSeverity(s string) ZoneSeverity {
	switch ZoneSeverity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return ZoneSeverity(s)
	}
	return SeverityUnknown
}

// Location is a WGS84 point.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Zone is a geographically located report of a polluted area.
// EventID is set exactly while an active event has the zone scheduled for
// cleaning; the event lifecycle clears it again.
type Zone struct {
	ID          uuid.UUID    `json:"id"`
	Location    Location     `json:"location"`
	Description string       `json:"description"`
	Severity    ZoneSeverity `json:"severity"`
	Status      ZoneStatus   `json:"status"`
	PhotoIDs    []uuid.UUID  `json:"photo_ids"`
	EventID     *uuid.UUID   `json:"event_id,omitempty"`
	ReporterID  uuid.UUID    `json:"reporter_id"`
	IsActive    bool         `json:"is_active"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}
