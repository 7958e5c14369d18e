package paths

// Topic segments of the robot control protocol.
// They form the routing contract between the control plane and the robot bridge;
// changing a value breaks robots already in the field.

// Downstream: control plane -> robot.
const (
	// Command carries one command envelope.
	// Pattern: {root}/command/{robotID}
	Command = "command"

	// Online carries the control plane presence, published retained and as last will.
	// Payload: { "online": true/false, "reason": "..." }
	// Pattern: {root}/online/{robotID}
	Online = "online"
)

// Upstream: robot -> control plane.
const (
	// CommandAck carries the outcome of a command envelope, matched by request id.
	// Pattern: {root}/command/ack/{robotID}
	CommandAck = "command/ack"

	// Status carries the robot's self report (battery, pose, mode, ...).
	// Payload: any JSON object
	// Pattern: {root}/status/{robotID}
	Status = "status"
)
