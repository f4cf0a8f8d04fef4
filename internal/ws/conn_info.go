package ws

import "time"

// ConnInfo describes who is on the other end of a socket. AdminID is empty
// for visitor sockets.
type ConnInfo struct {
	ConnID      string
	Kind        string
	AdminID     string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
