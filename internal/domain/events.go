package domain

// EventType classifies a usage event. The string forms are the at-rest values
// in the usage_data table and are shared with the desktop tracker.
type EventType string

const (
	EventAppStart             EventType = "APP_START"
	EventAppQuit              EventType = "APP_QUIT"
	EventSystemSuspend        EventType = "SYSTEM_SUSPEND"
	EventSystemResume         EventType = "SYSTEM_RESUME"
	EventSystemShutdown       EventType = "SYSTEM_SHUTDOWN"
	EventSystemLockScreen     EventType = "SYSTEM_LOCK_SCREEN"
	EventSystemUnlockScreen   EventType = "SYSTEM_UNLOCK_SCREEN"
	EventSamplingAutoOpened   EventType = "EXPERIENCE_SAMPLING_AUTOMATICALLY_OPENED"
	EventSamplingManualOpened EventType = "EXPERIENCE_SAMPLING_MANUALLY_OPENED"
	EventSamplingAnswered     EventType = "EXPERIENCE_SAMPLING_ANSWERED"
	EventSamplingSkipped      EventType = "EXPERIENCE_SAMPLING_SKIPPED"
)

// UsageEvent is one row of the append-only usage log, the canonical source of
// truth for session boundaries. Ordered by CreatedAt.
type UsageEvent struct {
	ID        string
	CreatedAt string
	Type      EventType
}

// ClosesInterval reports whether the event must finalize the live tracker's
// open interval before it is recorded.
func (t EventType) ClosesInterval() bool {
	switch t {
	case EventAppQuit, EventSystemSuspend, EventSystemShutdown:
		return true
	}
	return false
}
