package models

import (
	"time"

	"gorm.io/datatypes"
)

type IntegrityEventType string

const (
	EventTabSwitch      IntegrityEventType = "tab_switch"
	EventWindowBlur     IntegrityEventType = "window_blur"
	EventFullscreenExit IntegrityEventType = "fullscreen_exit"
	EventMultipleFaces  IntegrityEventType = "multiple_faces"
	EventNoFace         IntegrityEventType = "no_face"
	EventRightClick     IntegrityEventType = "right_click"
	EventCopyPaste      IntegrityEventType = "copy_paste"
	EventScreenshot     IntegrityEventType = "screenshot"
	EventOther          IntegrityEventType = "other"
)

// IntegrityEvent is an anomaly reported by the proctoring client. Grading
// never reads these rows.
type IntegrityEvent struct {
	ID        uint               `json:"id" gorm:"primaryKey"`
	AttemptID uint               `json:"attempt_id" gorm:"not null;index"`
	ExamID    uint               `json:"exam_id" gorm:"not null;index"`
	StudentID string             `json:"student_id" gorm:"not null;size:64"`
	Type      IntegrityEventType `json:"type" gorm:"not null;size:40;index"`

	Details  datatypes.JSON `json:"details,omitempty" gorm:"type:jsonb"`
	Severity int            `json:"severity" gorm:"default:1"` // 1-5 (low to critical)

	// Seconds from attempt start, server clock
	TimeOffset int    `json:"time_offset"`
	UserAgent  string `json:"user_agent" gorm:"type:text"`
	IPAddress  string `json:"ip_address" gorm:"size:45"`

	OccurredAt time.Time `json:"occurred_at" gorm:"not null"`
	CreatedAt  time.Time `json:"created_at"`
}

func (IntegrityEvent) TableName() string {
	return "integrity_events"
}

// IsValidIntegrityEventType reports whether t is a known event type.
func IsValidIntegrityEventType(t IntegrityEventType) bool {
	switch t {
	case EventTabSwitch, EventWindowBlur, EventFullscreenExit, EventMultipleFaces,
		EventNoFace, EventRightClick, EventCopyPaste, EventScreenshot, EventOther:
		return true
	}
	return false
}
