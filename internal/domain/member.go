package domain

import "time"

// Member is one live connection of a user. It ends with the connection.
type Member struct {
	UserID      UserID
	ConnectedAt time.Time
}

func NewMember(id UserID, connectedAt time.Time) *Member {
	return &Member{UserID: id, ConnectedAt: connectedAt}
}

func (m *Member) ConnectedFor(now time.Time) time.Duration {
	return now.Sub(m.ConnectedAt)
}
