package realtime

// Named realtime streams used across the platform.
const (
	StreamGroves = "groves"
	StreamRooms  = "rooms"
)

// KnownStreams lists every stream clients may subscribe to.
func KnownStreams() []string {
	return []string{StreamGroves, StreamRooms}
}

// IsKnownStream reports whether the (already normalized) name is a real stream.
func IsKnownStream(stream string) bool {
	switch stream {
	case StreamGroves, StreamRooms:
		return true
	}
	return false
}

// Event names published on the grove and room streams.
const (
	EventGroveCreated   = "grove.created"
	EventMemberAdmitted = "grove.member_admitted"
	EventGroveCompleted = "grove.completed"
	EventRoomStarted    = "room.started"
	EventRoomEnded      = "room.ended"
	EventSpeakerChanged = "room.speaker_changed"
	EventQueueUpdated   = "room.queue_updated"
)
