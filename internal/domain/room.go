package domain

import (
	"errors"
	"regexp"
	"time"
)

type RoomName string

var ErrInvalidRoomName = errors.New("room name must be 3-32 characters of letters, digits, '-' or '_'")

var roomNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,32}$`)

// Room is the directory entry of a room, independent of its live playback state.
type Room struct {
	Name        RoomName  `json:"name"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Temporary   bool      `json:"isTemporary"`
	Owner       string    `json:"owner,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func ValidateRoomName(name RoomName) error {
	if !roomNamePattern.MatchString(string(name)) {
		return ErrInvalidRoomName
	}
	return nil
}
