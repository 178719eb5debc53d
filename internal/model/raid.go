package model

// Raid is an outgoing raid from a tracked channel.
type Raid struct {
	RaidID      string `json:"raid_id"`
	TargetLogin string `json:"target_login"`
}

// Equal returns true if two raids have the same ID.
func (r *Raid) Equal(other *Raid) bool {
	if r == nil || other == nil {
		return false
	}
	return r.RaidID == other.RaidID
}
