package support

// Caller is the identity an operation runs as, resolved once at the request
// boundary. The zero value is an anonymous visitor.
type Caller struct {
	AdminID string
}

// Admin returns a caller acting as the given admin user.
func Admin(userID string) Caller {
	return Caller{AdminID: userID}
}

// Anonymous returns a caller with no admin session.
func Anonymous() Caller {
	return Caller{}
}

// IsAdmin reports whether the caller carries a resolved admin identity.
func (c Caller) IsAdmin() bool {
	return c.AdminID != ""
}
