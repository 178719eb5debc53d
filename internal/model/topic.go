package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTopic is returned for empty or malformed topic strings.
var ErrInvalidTopic = errors.New("invalid topic")

// TopicKind names a category of PubSub events.
type TopicKind string

const (
	// TopicVideoPlayback carries stream-up, stream-down and viewcount.
	TopicVideoPlayback TopicKind = "video-playback-by-id"
	// TopicCommunityPoints carries the user's channel points events.
	TopicCommunityPoints TopicKind = "community-points-user-v1"
	// TopicPredictionsUser carries the user's own prediction results.
	TopicPredictionsUser TopicKind = "predictions-user-v1"
	// TopicRaid carries raid events for a channel.
	TopicRaid TopicKind = "raid"
)

// Topic identifies a PubSub subscription. Two topics are equal when both
// kind and target match, so Topic can be used as a map key.
type Topic struct {
	Kind   TopicKind `json:"kind"`
	Target string    `json:"target,omitempty"`
}

// NewTopic returns a Topic scoped to target. An empty target yields an
// unscoped topic.
func NewTopic(kind TopicKind, target string) Topic {
	return Topic{Kind: kind, Target: target}
}

// ParseTopic splits a dotted wire string back into a Topic. The target is
// everything after the last dot.
func ParseTopic(s string) (Topic, error) {
	if s == "" {
		return Topic{}, fmt.Errorf("empty topic: %w", ErrInvalidTopic)
	}
	i := strings.LastIndexByte(s, '.')
	if i < 0 {
		return Topic{Kind: TopicKind(s)}, nil
	}
	if i == 0 || i == len(s)-1 {
		return Topic{}, fmt.Errorf("%w %q", ErrInvalidTopic, s)
	}
	return Topic{Kind: TopicKind(s[:i]), Target: s[i+1:]}, nil
}

// String returns the wire form: "kind" or "kind.target".
func (t Topic) String() string {
	if t.Target == "" {
		return string(t.Kind)
	}
	return string(t.Kind) + "." + t.Target
}

// IsUserScoped reports whether LISTEN requests for this topic must carry
// the user's auth token.
func (t Topic) IsUserScoped() bool {
	switch t.Kind {
	case TopicCommunityPoints, TopicPredictionsUser:
		return true
	default:
		return false
	}
}
