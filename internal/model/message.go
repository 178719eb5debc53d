package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// MessageType is the "type" field of a PubSub MESSAGE body.
type MessageType string

const (
	MsgTypePointsEarned   MessageType = "points-earned"
	MsgTypePointsSpent    MessageType = "points-spent"
	MsgTypeClaimAvailable MessageType = "claim-available"
	MsgTypeStreamUp       MessageType = "stream-up"
	MsgTypeStreamDown     MessageType = "stream-down"
	MsgTypeViewCount      MessageType = "viewcount"
	MsgTypeRaidUpdate     MessageType = "raid_update_v2"
)

// ErrMalformedPayload is returned when a known message type is missing
// the fields it is routed on.
var ErrMalformedPayload = errors.New("malformed payload")

// Payload is implemented by every decoded message variant.
type Payload interface {
	messageType() MessageType
}

// PointsEarned reports a channel points gain and the resulting balance.
type PointsEarned struct {
	ChannelID   string
	Balance     int
	Gain        int
	ReasonCode  string
	Multipliers []float64
}

// PointsSpent reports a new balance after points were spent.
type PointsSpent struct {
	ChannelID string
	Balance   int
}

// ClaimAvailable announces a bonus chest that can be claimed.
type ClaimAvailable struct {
	ChannelID string
	ClaimID   string
}

// StreamUp is a hint that a broadcast started.
type StreamUp struct {
	PlayDelay int
}

// StreamDown reports a broadcast ended.
type StreamDown struct{}

// Viewcount carries the current number of viewers.
type Viewcount struct {
	Viewers int
}

// RaidUpdate carries a raid leaving the channel.
type RaidUpdate struct {
	Raid Raid
}

func (PointsEarned) messageType() MessageType   { return MsgTypePointsEarned }
func (PointsSpent) messageType() MessageType    { return MsgTypePointsSpent }
func (ClaimAvailable) messageType() MessageType { return MsgTypeClaimAvailable }
func (StreamUp) messageType() MessageType       { return MsgTypeStreamUp }
func (StreamDown) messageType() MessageType     { return MsgTypeStreamDown }
func (Viewcount) messageType() MessageType      { return MsgTypeViewCount }
func (RaidUpdate) messageType() MessageType     { return MsgTypeRaidUpdate }

// Identity is the part of a message compared when filtering duplicates.
type Identity struct {
	Type   MessageType
	Target string
}

// Message is a PubSub MESSAGE decoded once at the connection boundary.
// Payload is nil for message types nothing routes on.
type Message struct {
	Topic     Topic
	Type      MessageType
	ChannelID string
	Timestamp time.Time
	Payload   Payload
}

// Identity returns the (type, target) pair of the message.
func (m *Message) Identity() Identity {
	return Identity{Type: m.Type, Target: m.ChannelID}
}

// String returns a string representation of the message.
func (m *Message) String() string {
	return fmt.Sprintf("Message(type=%s, topic=%s, channel_id=%s)", m.Type, m.Topic, m.ChannelID)
}

type messageBody struct {
	Type       MessageType     `json:"type"`
	Data       json.RawMessage `json:"data"`
	ServerTime *float64        `json:"server_time"`
	PlayDelay  int             `json:"play_delay"`
	Viewers    int             `json:"viewers"`
	Raid       *struct {
		ID          string `json:"id"`
		TargetLogin string `json:"target_login"`
	} `json:"raid"`
}

type messageData struct {
	Timestamp  string   `json:"timestamp"`
	ChannelID  string   `json:"channel_id"`
	ServerTime *float64 `json:"server_time"`
	PointGain  *struct {
		ChannelID   string `json:"channel_id"`
		TotalPoints int    `json:"total_points"`
		ReasonCode  string `json:"reason_code"`
		Multipliers []struct {
			Factor float64 `json:"factor"`
		} `json:"multipliers"`
	} `json:"point_gain"`
	Balance *struct {
		ChannelID string `json:"channel_id"`
		Balance   int    `json:"balance"`
	} `json:"balance"`
	Claim *struct {
		ID        string `json:"id"`
		ChannelID string `json:"channel_id"`
	} `json:"claim"`
}

// ParseMessage decodes the JSON-encoded body of a MESSAGE frame received
// on topicFull.
func ParseMessage(topicFull string, raw []byte) (*Message, error) {
	topic, err := ParseTopic(topicFull)
	if err != nil {
		return nil, err
	}

	var body messageBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("parsing message body: %w", err)
	}

	var data messageData
	if len(body.Data) > 0 && string(body.Data) != "null" {
		if err := json.Unmarshal(body.Data, &data); err != nil {
			return nil, fmt.Errorf("parsing %s data: %w", body.Type, err)
		}
	}

	msg := &Message{
		Topic:     topic,
		Type:      body.Type,
		Timestamp: resolveTimestamp(&body, &data),
		ChannelID: resolveChannelID(topic, &data),
	}

	payload, err := decodePayload(&body, &data, msg.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("%s on %s: %w", body.Type, topic, err)
	}
	msg.Payload = payload

	return msg, nil
}

func decodePayload(body *messageBody, data *messageData, channelID string) (Payload, error) {
	switch body.Type {
	case MsgTypePointsEarned:
		if data.Balance == nil || data.PointGain == nil {
			return nil, ErrMalformedPayload
		}
		p := PointsEarned{
			ChannelID:  channelID,
			Balance:    data.Balance.Balance,
			Gain:       data.PointGain.TotalPoints,
			ReasonCode: data.PointGain.ReasonCode,
		}
		for _, m := range data.PointGain.Multipliers {
			p.Multipliers = append(p.Multipliers, m.Factor)
		}
		return p, nil

	case MsgTypePointsSpent:
		if data.Balance == nil {
			return nil, ErrMalformedPayload
		}
		return PointsSpent{ChannelID: channelID, Balance: data.Balance.Balance}, nil

	case MsgTypeClaimAvailable:
		if data.Claim == nil || data.Claim.ID == "" {
			return nil, ErrMalformedPayload
		}
		return ClaimAvailable{ChannelID: channelID, ClaimID: data.Claim.ID}, nil

	case MsgTypeStreamUp:
		return StreamUp{PlayDelay: body.PlayDelay}, nil

	case MsgTypeStreamDown:
		return StreamDown{}, nil

	case MsgTypeViewCount:
		return Viewcount{Viewers: body.Viewers}, nil

	case MsgTypeRaidUpdate:
		if body.Raid == nil || body.Raid.ID == "" {
			return nil, ErrMalformedPayload
		}
		return RaidUpdate{Raid: Raid{RaidID: body.Raid.ID, TargetLogin: body.Raid.TargetLogin}}, nil

	default:
		return nil, nil
	}
}

func resolveTimestamp(body *messageBody, data *messageData) time.Time {
	if data.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339, data.Timestamp); err == nil {
			return t
		}
	}
	if data.ServerTime != nil {
		return unixFloat(*data.ServerTime)
	}
	if body.ServerTime != nil {
		return unixFloat(*body.ServerTime)
	}
	return time.Now().UTC()
}

func resolveChannelID(topic Topic, data *messageData) string {
	switch {
	case data.Claim != nil && data.Claim.ChannelID != "":
		return data.Claim.ChannelID
	case data.ChannelID != "":
		return data.ChannelID
	case data.Balance != nil && data.Balance.ChannelID != "":
		return data.Balance.ChannelID
	case data.PointGain != nil && data.PointGain.ChannelID != "":
		return data.PointGain.ChannelID
	}
	return topic.Target
}

func unixFloat(sec float64) time.Time {
	whole := int64(sec)
	frac := int64((sec - float64(whole)) * 1e9)
	return time.Unix(whole, frac).UTC()
}
