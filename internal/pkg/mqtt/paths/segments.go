package paths

// Topic segments of the rover autonomy protocol.
// Every topic is built as {root}/{segment}/{vehicleID}.

// Executor -> subsystems (goals, toggles, triggers, observability).
const (
	// NavGoal carries a navigation goal for the path-following subsystem.
	// Payload: { "goal_id": "...", "action": "follow_waypoints|spin", ... }
	NavGoal = "nav/goal"

	// NavCancel requests early termination of a goal.
	// Payload: { "goal_id": "..." }
	NavCancel = "nav/cancel"

	// VehicleTrigger switches the vehicle indicator/state mode.
	// Payload: { "mode": "seeking|idle|arrival" }
	VehicleTrigger = "vehicle/trigger"

	// ObjectDetection enables or disables the object detector.
	// Payload: { "enabled": true }
	ObjectDetection = "perception/objdet"

	// VizWaypoint publishes planned waypoints for external visualization.
	// Payload: { "lat": ..., "lon": ..., "kind": "inter|goal" }
	VizWaypoint = "viz/waypoint"

	// MissionFeedback mirrors the mission feedback stream.
	MissionFeedback = "mission/feedback"
)

// Subsystems -> executor (acknowledgements, statuses, sensor streams).
const (
	// NavGoalAck acknowledges or rejects a submitted goal.
	// Payload: { "goal_id": "...", "accepted": true, "reason": "" }
	NavGoalAck = "nav/goal/ack"

	// NavStatus reports the terminal status of a goal.
	// Payload: { "goal_id": "...", "status": "succeeded|aborted|canceled" }
	NavStatus = "nav/status"

	// NavFeedback carries progress of the active goal.
	NavFeedback = "nav/feedback"

	// NavLifecycle is the retained readiness report of the navigation subsystem.
	// Payload: { "state": "active", "servers": ["follow_waypoints", "spin"], "timestamp": ... }
	NavLifecycle = "nav/lifecycle"

	// GPS is the filtered geodetic fix stream.
	GPS = "sensor/gps"

	// Transform is the time-stamped sensor frame -> absolute frame transform stream.
	Transform = "sensor/tf"

	// Aruco carries fiducial marker detections in a sensor frame.
	Aruco = "sensor/aruco"

	// Objects carries object detections in a sensor frame.
	Objects = "sensor/objects"
)
