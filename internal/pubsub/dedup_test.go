package pubsub

import (
	"testing"
	"time"

	"github.com/Guliveer/twitch-points-tracker/internal/model"
)

func TestDeduplicator(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	spent := model.Identity{Type: model.MsgTypePointsSpent, Target: "42"}
	earned := model.Identity{Type: model.MsgTypePointsEarned, Target: "42"}
	other := model.Identity{Type: model.MsgTypePointsSpent, Target: "43"}

	steps := []struct {
		name string
		ts   time.Time
		id   model.Identity
		want bool
	}{
		{"first message passes", t0, spent, false},
		{"identical follow-up dropped", t0, spent, true},
		{"dropped again while unchanged", t0, spent, true},
		{"same time other type passes", t0, earned, false},
		{"same time other target passes", t0, other, false},
		{"later timestamp passes", t0.Add(time.Second), other, false},
		{"older pair is not remembered", t0, spent, false},
	}

	var d Deduplicator
	for _, step := range steps {
		if got := d.Seen(step.ts, step.id); got != step.want {
			t.Errorf("%s: Seen() = %v, want %v", step.name, got, step.want)
		}
	}
}
