package room

import "github.com/google/uuid"

// newParticipantID mints a fresh player/spectator id. Unlike PINs and
// tokens these never need to be guessed or typed, so a UUID is enough.
func newParticipantID() string {
	return uuid.NewString()
}
