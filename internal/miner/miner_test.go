package miner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Guliveer/twitch-points-tracker/internal/config"
	"github.com/Guliveer/twitch-points-tracker/internal/logger"
	"github.com/Guliveer/twitch-points-tracker/internal/model"
	"github.com/Guliveer/twitch-points-tracker/internal/pubsub"
)

type fakeAPI struct {
	mu         sync.Mutex
	channelIDs map[string]string
	online     map[string]bool
	checks     int
	claims     []string
	raids      []string
}

func (f *fakeAPI) GetChannelID(_ context.Context, username string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.channelIDs[username]
	if !ok {
		return "", errors.New("not found")
	}
	return id, nil
}

func (f *fakeAPI) CheckStreamerOnline(_ context.Context, s *model.Streamer) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	return f.online[s.Username], nil
}

func (f *fakeAPI) ClaimBonus(_ context.Context, s *model.Streamer, claimID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claims = append(f.claims, s.Username+"/"+claimID)
	return nil
}

func (f *fakeAPI) JoinRaid(_ context.Context, raidID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raids = append(f.raids, raidID)
	return nil
}

func (f *fakeAPI) checkCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checks
}

type fakeChat struct {
	mu     sync.Mutex
	joined map[string]bool
	joins  int
	leaves int
}

func newFakeChat() *fakeChat { return &fakeChat{joined: make(map[string]bool)} }

func (c *fakeChat) Join(ch string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.joins++
	c.joined[ch] = true
	return nil
}

func (c *fakeChat) Leave(ch string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leaves++
	delete(c.joined, ch)
	return nil
}

func (c *fakeChat) IsJoined(ch string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joined[ch]
}

func (c *fakeChat) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joins, c.leaves
}

type staticTokens struct{}

func (staticTokens) AuthToken() string { return "tok" }
func (staticTokens) UserID() string    { return "99" }

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type harness struct {
	m      *Miner
	api    *fakeAPI
	chat   *fakeChat
	clock  *testClock
	events []model.Event
	mu     sync.Mutex
}

func (h *harness) eventList() []model.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]model.Event(nil), h.events...)
}

func newHarness(t *testing.T, cfg *config.AccountConfig) *harness {
	t.Helper()
	if cfg == nil {
		cfg = &config.AccountConfig{Username: "me"}
	}
	h := &harness{
		api:   &fakeAPI{channelIDs: map[string]string{}, online: map[string]bool{}},
		chat:  newFakeChat(),
		clock: &testClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
	}
	log := logger.Discard()
	log.SetNotifyFunc(func(_ context.Context, _ string, e model.Event) {
		h.mu.Lock()
		h.events = append(h.events, e)
		h.mu.Unlock()
	})
	h.m = New(cfg, log, Deps{
		API:    h.api,
		Chat:   h.chat,
		Tokens: staticTokens{},
		Probe:  pubsub.ReachabilityFunc(func(context.Context) bool { return true }),
		Now:    h.clock.now,
	})
	t.Cleanup(h.m.pool.Shutdown)
	return h
}

// track registers a streamer with the given chat presence directly.
func (h *harness) track(username, channelID string, presence model.ChatPresence) *model.Streamer {
	s := model.NewStreamer(username)
	s.ChannelID = channelID
	s.Settings.Chat = presence
	h.m.setStreamers(append(h.m.getStreamers(), s))
	return s
}

func (h *harness) route(channelID string, payload model.Payload, typ model.MessageType) {
	h.m.HandlePubSubMessage(context.Background(), &model.Message{
		Type:      typ,
		ChannelID: channelID,
		Payload:   payload,
	})
}

func TestPointsEarnedUpdatesBalanceAndHistory(t *testing.T) {
	h := newHarness(t, nil)
	s := h.track("alice", "1", model.ChatNever)

	h.route("1", model.PointsEarned{ChannelID: "1", Balance: 1500, Gain: 10, ReasonCode: "WATCH", Multipliers: []float64{0.1}}, model.MsgTypePointsEarned)

	snap := s.Snapshot()
	if snap.ChannelPoints != 1500 {
		t.Errorf("balance = %d, want 1500", snap.ChannelPoints)
	}
	if got := snap.History["WATCH"]; got.Counter != 1 || got.Amount != 10 {
		t.Errorf("history[WATCH] = %+v, want {1 10}", got)
	}
	if snap.Multiplier != 0.1 {
		t.Errorf("multiplier = %v, want 0.1", snap.Multiplier)
	}
	if ev := h.eventList(); len(ev) != 1 || ev[0] != model.EventGainForWatch {
		t.Errorf("events = %v, want [GAIN_FOR_WATCH]", ev)
	}
}

func TestPointsSpentUpdatesBalanceOnly(t *testing.T) {
	h := newHarness(t, nil)
	s := h.track("alice", "1", model.ChatNever)

	h.route("1", model.PointsSpent{ChannelID: "1", Balance: 700}, model.MsgTypePointsSpent)

	snap := s.Snapshot()
	if snap.ChannelPoints != 700 || len(snap.History) != 0 {
		t.Errorf("snapshot = %+v", snap)
	}
	if len(h.eventList()) != 0 {
		t.Errorf("points-spent emitted events: %v", h.eventList())
	}
}

func TestUntrackedChannelIsIgnored(t *testing.T) {
	h := newHarness(t, nil)
	h.track("alice", "1", model.ChatNever)

	h.route("2", model.PointsEarned{ChannelID: "2", Balance: 5, Gain: 5, ReasonCode: "WATCH"}, model.MsgTypePointsEarned)
	if len(h.eventList()) != 0 {
		t.Errorf("events = %v, want none", h.eventList())
	}
}

func TestClaimAvailableCallsClaim(t *testing.T) {
	h := newHarness(t, nil)
	s := h.track("alice", "1", model.ChatNever)
	s.ChannelPoints = 40

	h.route("1", model.ClaimAvailable{ChannelID: "1", ClaimID: "c1"}, model.MsgTypeClaimAvailable)

	if len(h.api.claims) != 1 || h.api.claims[0] != "alice/c1" {
		t.Errorf("claims = %v", h.api.claims)
	}
	if s.Snapshot().ChannelPoints != 40 {
		t.Error("claim-available must not change the balance")
	}
}

func TestStreamUpIsOnlyAHint(t *testing.T) {
	h := newHarness(t, nil)
	s := h.track("alice", "1", model.ChatOnline)
	h.api.online["alice"] = true

	h.route("1", model.StreamUp{}, model.MsgTypeStreamUp)

	if s.IsOnline {
		t.Error("stream-up flipped the streamer online")
	}
	if !s.StreamUpAt.Equal(h.clock.now()) {
		t.Errorf("StreamUpAt = %v", s.StreamUpAt)
	}
	if h.api.checkCount() != 0 {
		t.Error("stream-up triggered an online check")
	}
}

func TestViewcountChecksOnlineAfterDebounce(t *testing.T) {
	h := newHarness(t, nil)
	s := h.track("alice", "1", model.ChatNever)
	h.api.online["alice"] = true

	h.route("1", model.StreamUp{}, model.MsgTypeStreamUp)
	h.clock.advance(60 * time.Second)
	h.route("1", model.Viewcount{Viewers: 12}, model.MsgTypeViewCount)

	if h.api.checkCount() != 0 {
		t.Fatal("online check within 120s of stream-up")
	}
	if s.Snapshot().ViewersCount != 12 {
		t.Errorf("viewers = %d, want 12", s.Snapshot().ViewersCount)
	}

	h.clock.advance(61 * time.Second)
	h.route("1", model.Viewcount{Viewers: 15}, model.MsgTypeViewCount)

	if h.api.checkCount() != 1 {
		t.Fatalf("checks = %d, want 1", h.api.checkCount())
	}
	if !s.Snapshot().IsOnline {
		t.Error("streamer not online after authoritative check")
	}
	if ev := h.eventList(); len(ev) != 1 || ev[0] != model.EventStreamerOnline {
		t.Errorf("events = %v, want [STREAMER_ONLINE]", ev)
	}
}

func TestViewcountWithoutStreamUpChecksImmediately(t *testing.T) {
	h := newHarness(t, nil)
	h.track("alice", "1", model.ChatNever)

	h.route("1", model.Viewcount{Viewers: 1}, model.MsgTypeViewCount)
	if h.api.checkCount() != 1 {
		t.Errorf("checks = %d, want 1", h.api.checkCount())
	}
}

func TestStreamDownWhileOfflineIsNoop(t *testing.T) {
	h := newHarness(t, nil)
	s := h.track("alice", "1", model.ChatOnline)
	earlier := h.clock.now().Add(-time.Hour)
	s.OfflineAt = earlier

	h.route("1", model.StreamDown{}, model.MsgTypeStreamDown)

	if !s.OfflineAt.Equal(earlier) {
		t.Errorf("OfflineAt changed to %v", s.OfflineAt)
	}
	if len(h.eventList()) != 0 {
		t.Errorf("events = %v, want none", h.eventList())
	}
	if joins, leaves := h.chat.counts(); joins+leaves != 0 {
		t.Errorf("chat calls = %d joins, %d leaves", joins, leaves)
	}
}

func TestOnlineChatIntentTransitions(t *testing.T) {
	h := newHarness(t, nil)
	s := h.track("alice", "1", model.ChatOnline)
	ctx := context.Background()

	h.m.setOnline(ctx, s, true)
	h.m.setOnline(ctx, s, true)
	if joins, leaves := h.chat.counts(); joins != 1 || leaves != 0 {
		t.Fatalf("after online: joins=%d leaves=%d, want 1/0", joins, leaves)
	}

	h.route("1", model.StreamDown{}, model.MsgTypeStreamDown)
	h.route("1", model.StreamDown{}, model.MsgTypeStreamDown)
	if joins, leaves := h.chat.counts(); joins != 1 || leaves != 1 {
		t.Fatalf("after offline: joins=%d leaves=%d, want 1/1", joins, leaves)
	}
	if !s.OfflineAt.Equal(h.clock.now()) {
		t.Errorf("OfflineAt = %v", s.OfflineAt)
	}

	want := []model.Event{model.EventStreamerOnline, model.EventStreamerOffline}
	if got := h.eventList(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestRepeatedOnlineStateRepairsChat(t *testing.T) {
	h := newHarness(t, nil)
	s := h.track("alice", "1", model.ChatOnline)
	s.IsOnline = true
	h.api.online["alice"] = true

	h.route("1", model.Viewcount{Viewers: 10}, model.MsgTypeViewCount)

	if h.api.checkCount() != 1 {
		t.Errorf("checks = %d, want 1", h.api.checkCount())
	}
	if joins, leaves := h.chat.counts(); joins != 1 || leaves != 0 {
		t.Errorf("joins=%d leaves=%d, want 1/0", joins, leaves)
	}
	if !h.chat.IsJoined("alice") {
		t.Error("alice's chat should be joined")
	}
	if len(h.eventList()) != 0 {
		t.Errorf("events = %v, want none for an unchanged state", h.eventList())
	}

	h.route("1", model.Viewcount{Viewers: 11}, model.MsgTypeViewCount)
	if joins, _ := h.chat.counts(); joins != 1 {
		t.Errorf("joins = %d after a second viewcount, want 1", joins)
	}
}

func TestReconcileChat(t *testing.T) {
	tests := []struct {
		presence   model.ChatPresence
		online     bool
		joinedPre  bool
		wantJoined bool
		wantCalls  int
	}{
		{model.ChatAlways, false, false, true, 1},
		{model.ChatAlways, true, true, true, 0},
		{model.ChatNever, true, false, false, 0},
		{model.ChatNever, false, true, true, 0},
		{model.ChatOnline, true, false, true, 1},
		{model.ChatOnline, false, true, false, 1},
		{model.ChatOnline, false, false, false, 0},
		{model.ChatOffline, true, true, false, 1},
		{model.ChatOffline, false, false, true, 1},
	}
	for _, tt := range tests {
		name := fmt.Sprintf("%s/online=%v/joined=%v", tt.presence, tt.online, tt.joinedPre)
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, nil)
			s := h.track("alice", "1", tt.presence)
			s.IsOnline = tt.online
			if tt.joinedPre {
				h.chat.joined["alice"] = true
			}

			h.m.reconcileChat(s)

			joins, leaves := h.chat.counts()
			if joins+leaves != tt.wantCalls {
				t.Errorf("calls = %d, want %d", joins+leaves, tt.wantCalls)
			}
			if h.chat.IsJoined("alice") != tt.wantJoined {
				t.Errorf("joined = %v, want %v", h.chat.IsJoined("alice"), tt.wantJoined)
			}
		})
	}
}

func TestSetChatPresence(t *testing.T) {
	h := newHarness(t, nil)
	h.track("alice", "1", model.ChatNever)

	if err := h.m.SetChatPresence("Alice", model.ChatAlways); err != nil {
		t.Fatalf("SetChatPresence: %v", err)
	}
	if !h.chat.IsJoined("alice") {
		t.Error("ALWAYS did not join chat")
	}

	if err := h.m.SetChatPresence("alice", model.ChatNever); err != nil {
		t.Fatalf("SetChatPresence: %v", err)
	}
	if joins, leaves := h.chat.counts(); joins != 1 || leaves != 0 {
		t.Errorf("NEVER must be a no-op: joins=%d leaves=%d", joins, leaves)
	}

	if err := h.m.SetChatPresence("bob", model.ChatAlways); !errors.Is(err, ErrUnknownStreamer) {
		t.Errorf("err = %v, want ErrUnknownStreamer", err)
	}
}

func TestRaidFollowsOncePerRaid(t *testing.T) {
	h := newHarness(t, nil)
	h.track("alice", "1", model.ChatNever)
	quiet := h.track("bob", "2", model.ChatNever)
	quiet.Settings.FollowRaid = false

	raid := model.RaidUpdate{Raid: model.Raid{RaidID: "r1", TargetLogin: "carol"}}
	h.route("1", raid, model.MsgTypeRaidUpdate)
	h.route("1", raid, model.MsgTypeRaidUpdate)
	h.route("2", raid, model.MsgTypeRaidUpdate)

	if len(h.api.raids) != 1 || h.api.raids[0] != "r1" {
		t.Errorf("raids = %v, want [r1]", h.api.raids)
	}

	h.route("1", model.RaidUpdate{Raid: model.Raid{RaidID: "r2", TargetLogin: "dave"}}, model.MsgTypeRaidUpdate)
	if len(h.api.raids) != 2 {
		t.Errorf("raids = %v, want two", h.api.raids)
	}
}

func TestResolveStreamers(t *testing.T) {
	no := false
	cfg := &config.AccountConfig{
		Username: "me",
		Streamers: []config.StreamerConfig{
			{Username: "Alice"},
			{Username: "ghost"},
			{Username: "banned"},
			{Username: "bob", Settings: &config.StreamerSettingsConfig{FollowRaid: &no, Chat: "ALWAYS"}},
			{Username: "alice"},
		},
		Blacklist: []string{"BANNED"},
	}
	h := newHarness(t, cfg)
	h.api.channelIDs = map[string]string{"alice": "1", "bob": "2", "banned": "3"}

	if err := h.m.resolveStreamers(context.Background()); err != nil {
		t.Fatalf("resolveStreamers: %v", err)
	}

	var names []string
	for _, s := range h.m.Streamers() {
		names = append(names, s.Username)
	}
	if strings.Join(names, ",") != "alice,bob" {
		t.Fatalf("streamers = %v, want [alice bob]", names)
	}

	bob := h.m.streamerByChannelID("2")
	if bob == nil || bob.Settings.FollowRaid || bob.Settings.Chat != model.ChatAlways {
		t.Errorf("bob settings = %+v", bob.Settings)
	}

	var topics []string
	for _, tp := range h.m.allTopics() {
		topics = append(topics, tp.String())
	}
	want := "community-points-user-v1.99,video-playback-by-id.1,raid.1,video-playback-by-id.2"
	if strings.Join(topics, ",") != want {
		t.Errorf("topics = %v, want %s", topics, want)
	}
}

func TestResolveStreamersNoneResolved(t *testing.T) {
	h := newHarness(t, &config.AccountConfig{
		Username:  "me",
		Streamers: []config.StreamerConfig{{Username: "ghost"}},
	})
	if err := h.m.resolveStreamers(context.Background()); err == nil {
		t.Error("expected error when nothing resolves")
	}
}

func TestCheckInitialOnlineThenReconcile(t *testing.T) {
	h := newHarness(t, nil)
	h.track("alice", "1", model.ChatOnline)
	h.track("bob", "2", model.ChatOffline)
	h.track("carol", "3", model.ChatOnline)
	h.api.online["alice"] = true

	h.m.checkInitialOnline(context.Background())
	h.m.reconcileAll()

	if !h.chat.IsJoined("alice") || !h.chat.IsJoined("bob") || h.chat.IsJoined("carol") {
		t.Errorf("joined = %v", h.chat.joined)
	}
	want := []model.Event{model.EventStreamerOnline}
	if got := h.eventList(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("startup events = %v, want %v", got, want)
	}
}

// pubsubServer accepts one socket, answers PING and sends a points-earned
// message once the user topic is listened to.
func pubsubServer(t *testing.T, listened chan<- string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var req pubsub.Request
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			switch req.Type {
			case pubsub.TypePing:
				conn.WriteJSON(pubsub.Response{Type: pubsub.TypePong})
			case pubsub.TypeListen:
				conn.WriteJSON(pubsub.Response{Type: pubsub.TypeResponse, Nonce: req.Nonce})
				topic := req.Data.Topics[0]
				listened <- topic
				if strings.HasPrefix(topic, string(model.TopicCommunityPoints)) {
					body := `{"type":"points-earned","data":{"timestamp":"2024-05-01T12:00:00Z","point_gain":{"channel_id":"1","total_points":50,"reason_code":"CLAIM"},"balance":{"channel_id":"1","balance":1500}}}`
					data, _ := json.Marshal(pubsub.MessageData{Topic: topic, Message: body})
					conn.WriteJSON(pubsub.Response{Type: pubsub.TypeMessage, Data: data})
				}
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunSubscribesAndRoutes(t *testing.T) {
	listened := make(chan string, 8)
	srv := pubsubServer(t, listened)

	h := newHarness(t, &config.AccountConfig{
		Username:  "me",
		Streamers: []config.StreamerConfig{{Username: "alice"}},
		PubSub:    config.PubSubConfig{URL: "ws" + strings.TrimPrefix(srv.URL, "http")},
	})
	h.api.channelIDs["alice"] = "1"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.m.Run(ctx) }()

	var got []string
	timeout := time.After(5 * time.Second)
	for len(got) < 3 {
		select {
		case topic := <-listened:
			got = append(got, topic)
		case <-timeout:
			t.Fatalf("listened = %v", got)
		}
	}
	want := "community-points-user-v1.99,video-playback-by-id.1,raid.1"
	if strings.Join(got, ",") != want {
		t.Errorf("LISTEN order = %v, want %s", got, want)
	}

	deadline := time.Now().Add(5 * time.Second)
	for h.m.streamerByChannelID("1").Snapshot().ChannelPoints != 1500 {
		if time.Now().After(deadline) {
			t.Fatal("points-earned was not routed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if snap := h.m.Snapshot(); len(snap) != 1 || snap[0].History["CLAIM"].Amount != 50 {
		t.Errorf("snapshot = %+v", snap)
	}
	if st := h.m.PubSubStats(); len(st.Connections) != 1 || st.Connections[0].Topics != 3 {
		t.Errorf("stats = %+v", st)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
