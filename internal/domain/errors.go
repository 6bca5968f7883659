package domain

import (
	"errors"
	"fmt"
)

// Wire kinds reported in error messages to the originating connection.
const (
	KindUnsupportedProvider = "unsupported_provider"
	KindInvalidIdentifier   = "invalid_identifier"
	KindVideoResolution     = "video_resolution"
	KindItemNotFound        = "item_not_found"
	KindRoomNotFound        = "room_not_found"
	KindInvalidState        = "invalid_state"
	KindBadPayload          = "bad_payload"
	KindRateLimited         = "rate_limited"
	KindRoomExists          = "room_exists"
	KindInternal            = "internal"
)

var (
	ErrNothingPlaying = errors.New("nothing is playing")
	ErrRateLimited    = errors.New("too many requests")
	ErrRoomExists     = errors.New("room already exists")
	ErrNotInRoom      = errors.New("not in a room")
	ErrBadPayload     = errors.New("bad payload")
)

type UnsupportedProviderError struct {
	URL string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("no provider can handle %q", e.URL)
}

func (e *UnsupportedProviderError) Kind() string { return KindUnsupportedProvider }

type InvalidIdentifierError struct {
	Service string
	ID      string
	Reason  string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("%s: invalid id %q: %s", e.Service, e.ID, e.Reason)
}

func (e *InvalidIdentifierError) Kind() string { return KindInvalidIdentifier }

// VideoResolutionError wraps any upstream failure for a single item.
type VideoResolutionError struct {
	Service string
	ID      string
	Err     error
}

func (e *VideoResolutionError) Error() string {
	return fmt.Sprintf("%s: resolve %q: %v", e.Service, e.ID, e.Err)
}

func (e *VideoResolutionError) Unwrap() error { return e.Err }

func (e *VideoResolutionError) Kind() string { return KindVideoResolution }

type ItemNotFoundError struct {
	Key VideoKey
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("queue item %s/%s not found", e.Key.Service, e.Key.ID)
}

func (e *ItemNotFoundError) Kind() string { return KindItemNotFound }

type RoomNotFoundError struct {
	Name RoomName
}

func (e *RoomNotFoundError) Error() string {
	return fmt.Sprintf("room %q not found", string(e.Name))
}

func (e *RoomNotFoundError) Kind() string { return KindRoomNotFound }

// ErrorKind maps an error to the kind sent over the wire.
func ErrorKind(err error) string {
	var k interface{ Kind() string }
	if errors.As(err, &k) {
		return k.Kind()
	}
	switch {
	case errors.Is(err, ErrNothingPlaying), errors.Is(err, ErrNotInRoom):
		return KindInvalidState
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrRoomExists):
		return KindRoomExists
	case errors.Is(err, ErrBadPayload), errors.Is(err, ErrUsernameEmpty), errors.Is(err, ErrUsernameTooLong), errors.Is(err, ErrInvalidRoomName):
		return KindBadPayload
	}
	return KindInternal
}
