package ws

import "github.com/google/uuid"

const (
	KindVisitor    = "visitor"
	KindAdminLobby = "admin_lobby"
	KindAdminChat  = "admin_chat"
)

func newConnID() string {
	return uuid.NewString()
}
