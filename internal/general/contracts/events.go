package contracts

// Client -> server events.
const (
	EventJoinRide           = "joinRide"
	EventUserJoined         = "userJoined"
	EventUserLeft           = "userLeft"
	EventRiderReady         = "riderReady"
	EventRiderNotReady      = "riderNotReady"
	EventUserLocationUpdate = "userLocationUpdate"
	EventAdminStartedRide   = "adminStartedTheRide"
)

// Server -> client events.
const (
	EventRiderJoined         = "riderJoined"
	EventRiderLeft           = "riderLeft"
	EventUpdatedRidersStatus = "updatedRidersStatus"
	EventUpdateRiderLocation = "updateRiderLocation"
	EventRideStartedByAdmin  = "rideStartedByAdmin"
)

// AMQP transport topology.
const (
	DefaultSessionExchange = "ride_sessions"
	RouteSessionPrefix     = "ride." // ride.{session_key}.{event}
)
