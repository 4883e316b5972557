package core

import (
	"sort"
	"strings"
)

const (
	// PrivateRoomSeparator joins the two usernames of a private room.
	PrivateRoomSeparator = "-"
	// GroupRoomMarker appears in every group room identifier, between the
	// group name and its unique suffix. Private rooms never contain it as
	// usernames are not allowed to (see the username validation rules).
	GroupRoomMarker = "_"
)

// PrivateRoomID derives the canonical room identifier for a private chat
// between two users. The usernames are sorted before joining so both parties
// compute the same identifier regardless of argument order.
func PrivateRoomID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, PrivateRoomSeparator)
}

// IsGroupRoom classifies a room identifier. Group rooms carry the
// GroupRoomMarker, private rooms are two usernames joined by
// PrivateRoomSeparator. The function is total: any string classifies as one
// or the other. A username containing the separator would make the private
// participant split ambiguous, which is why usernames are rejected at
// registration if they contain either marker character.
func IsGroupRoom(room string) bool {
	return strings.Contains(room, GroupRoomMarker)
}

// PrivateRoomMembers returns the usernames embedded in a private room
// identifier. ok is false if the identifier is not a well-formed two-party
// room.
func PrivateRoomMembers(room string) (a, b string, ok bool) {
	parts := strings.Split(room, PrivateRoomSeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
