package observability

type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

// WSEventPayload describes one websocket lifecycle event.
type WSEventPayload struct {
	WS       WSEventDetails `json:"ws"`
	Identity WSIdentity     `json:"identity"`
}

type WSEventDetails struct {
	Kind       string `json:"kind"`
	ResourceID string `json:"resource_id"`
	Event      string `json:"event"`
	ConnID     string `json:"conn_id"`
	DurationMS int64  `json:"duration_ms"`
	Reason     string `json:"reason"`
}

// WSIdentity carries the admin id for admin sockets; visitor sockets leave
// it empty so tokens never reach the broker.
type WSIdentity struct {
	AdminID  string `json:"admin_id,omitempty"`
	DeviceID string `json:"device_id"`
	IP       string `json:"ip"`
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
