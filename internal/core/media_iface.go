package core

import "context"

// MediaSource identifies a capture source offered by the transport
// collaborator. The core never inspects payloads, only presence.
type MediaSource struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"` // "audio" or "video"
	Label string `json:"label"`
}

// MediaTransport is the boundary to the media/transport collaborator.
// Source requests may reject with domain.ErrPermissionDenied; stream
// set/unset reports success as a boolean.
type MediaTransport interface {
	// RequestAudioSources enumerates capture sources usable for audio.
	RequestAudioSources(ctx context.Context) ([]MediaSource, error)
	RequestVideoSources(ctx context.Context) ([]MediaSource, error)
	// SetAudioStream attaches the given source as the participant's
	// outbound audio; a nil source detaches it.
	SetAudioStream(ctx context.Context, src *MediaSource) (bool, error)
	SetVideoStream(ctx context.Context, src *MediaSource) (bool, error)
}
