package model

// Event is a tracker event forwarded to log and notification sinks.
type Event string

const (
	EventStreamerOnline     Event = "STREAMER_ONLINE"
	EventStreamerOffline    Event = "STREAMER_OFFLINE"
	EventGainForRaid        Event = "GAIN_FOR_RAID"
	EventGainForClaim       Event = "GAIN_FOR_CLAIM"
	EventGainForWatch       Event = "GAIN_FOR_WATCH"
	EventGainForWatchStreak Event = "GAIN_FOR_WATCH_STREAK"
	EventBonusClaim         Event = "BONUS_CLAIM"
	EventJoinRaid           Event = "JOIN_RAID"
	EventChatMention        Event = "CHAT_MENTION"
	EventTest               Event = "TEST"
)

// AllEvents returns a slice of all defined events.
func AllEvents() []Event {
	return []Event{
		EventStreamerOnline,
		EventStreamerOffline,
		EventGainForRaid,
		EventGainForClaim,
		EventGainForWatch,
		EventGainForWatchStreak,
		EventBonusClaim,
		EventJoinRaid,
		EventChatMention,
		EventTest,
	}
}

// String returns the string representation of an Event.
func (e Event) String() string {
	return string(e)
}

// ParseEvent converts a string to an Event. Returns empty string if invalid.
func ParseEvent(s string) Event {
	for _, e := range AllEvents() {
		if string(e) == s {
			return e
		}
	}
	return ""
}

// GainEvent maps a point_gain reason code to the event reported for it.
func GainEvent(reasonCode string) Event {
	switch reasonCode {
	case "CLAIM":
		return EventGainForClaim
	case "RAID":
		return EventGainForRaid
	case "WATCH_STREAK":
		return EventGainForWatchStreak
	default:
		return EventGainForWatch
	}
}
