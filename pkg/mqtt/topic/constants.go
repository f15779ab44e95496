package topic

// MQTT wildcard tokens.
const (
	// Wildcard matches exactly one topic level.
	// "rover/v1/sensor/gps/+" matches "rover/v1/sensor/gps/rover-1".
	Wildcard = "+"

	// MultiWildcard matches the current level and everything below it. It must be the last level.
	// "rover/v1/nav/#" matches "rover/v1/nav/goal/ack/rover-1".
	MultiWildcard = "#"
)
