package application

import (
	"context"
	"errors"
	"sync"

	"github.com/sglre6355/covenbot/internal/modules/relay/application/ports"
	"github.com/sglre6355/covenbot/internal/modules/relay/domain"
)

type mockRelay struct {
	mu       sync.Mutex
	requests []domain.RelayRequest
	result   domain.DeliveryResult
	err      error
	block    chan struct{}
}

func (m *mockRelay) Forward(
	ctx context.Context,
	req domain.RelayRequest,
) (domain.DeliveryResult, error) {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	return m.result, m.err
}

func (m *mockRelay) calls() []domain.RelayRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]domain.RelayRequest, len(m.requests))
	copy(result, m.requests)
	return result
}

type mockDedup struct {
	mu     sync.Mutex
	marked map[string]bool
	err    error
}

func newMockDedup() *mockDedup {
	return &mockDedup{marked: make(map[string]bool)}
}

func (m *mockDedup) Has(_ context.Context, identity string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.marked[identity], m.err
}

func (m *mockDedup) Mark(_ context.Context, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.marked[identity] = true
	return nil
}

func (m *mockDedup) MarkIfAbsent(_ context.Context, identity string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.marked[identity] {
		return false, nil
	}
	m.marked[identity] = true
	return true, nil
}

type sentMessage struct {
	channelID string
	reply     domain.ReplyPayload
}

type mockSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (m *mockSender) SendToChannel(_ context.Context, channelID string, reply domain.ReplyPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{channelID: channelID, reply: reply})
	return m.err
}

func (m *mockSender) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type mockRecorder struct {
	mu          sync.Mutex
	outcomes    []domain.OutcomeKind
	sideEffects []domain.RelayResult
}

func (m *mockRecorder) RecordOutcome(_ domain.EventKind, outcome domain.Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome.Kind)
}

func (m *mockRecorder) RecordSideEffect(_ string, result domain.RelayResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sideEffects = append(m.sideEffects, result)
}

type panickingResolver struct{}

func (panickingResolver) Resolve(string) (domain.CommandDescriptor, bool) {
	panic("boom")
}

type mockPublisher struct {
	published []ports.Envelope
	err       error
	handle    func(ctx context.Context, env ports.Envelope)
}

func (m *mockPublisher) Publish(ctx context.Context, env ports.Envelope) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, env)
	if m.handle != nil {
		go m.handle(ctx, env)
	}
	return nil
}

var errConnectionRefused = errors.New("dial tcp 127.0.0.1:1: connect: connection refused")

const (
	testWebhookURL     = "https://hooks.example/altar"
	testGuildID        = "1387751793496297522"
	testWelcomeChannel = "1387751793496297528"
	testAltarChannel   = "1408339354862096446"
)

func testRegistry() *domain.Registry {
	reg, err := domain.NewRegistry([]domain.CommandDescriptor{
		{
			Name:       "welcome",
			Reply:      domain.ReplyPayload{Embed: &domain.Embed{Title: "Coven Zero — Initiation"}, Ephemeral: true},
			Once:       true,
			RepeatText: "You have already crossed the threshold. The seal holds.",
		},
		{
			Name:    "relic",
			Options: []domain.OptionSpec{{Name: "code", Default: "RELIC-000"}},
			Reply:   domain.ReplyPayload{Text: "Code: {code}"},
		},
		{
			Name:       "offer",
			Options:    []domain.OptionSpec{{Name: "proof", Required: true}},
			Reply:      domain.TextReply("Seeker—your offering is received.", true),
			SideEffect: domain.RelayAndReply,
			RelayKind:  "first",
		},
		{
			Name:         "third",
			Options:      []domain.OptionSpec{{Name: "surrender", Required: true}},
			Reply:        domain.TextReply("The Third Sacrifice drops. The doors unhinge.", true),
			SideEffect:   domain.RelayAndReply,
			Consent:      &domain.Consent{Option: "surrender", Expect: "i surrender", RejectText: "The altar rejects half-measures."},
			RelayPayload: map[string]any{"surrender": true},
		},
		{
			Name:          "echo",
			Options:       []domain.OptionSpec{{Name: "text", Required: true}},
			Reply:         domain.TextReply("Seeker— {text}", true),
			MaxTextLength: 1900,
		},
		{
			Name:  "bless",
			Reply: domain.TextReply("The shield stands, {user}.", true),
		},
	})
	if err != nil {
		panic(err)
	}
	return reg
}

func testConfig() DispatcherConfig {
	return DispatcherConfig{
		RelayDestination: testWebhookURL,
		GuildID:          testGuildID,
		WelcomeChannelID: testWelcomeChannel,
		AltarChannelID:   testAltarChannel,
		Welcome:          domain.TextReply("🕯️ Welcome, {user} — you have entered **Coven Zero**.", false),
		AltarOffering: domain.ReplyPayload{
			Embed: &domain.Embed{Title: "🜏 Altar Offering", Description: "{proof}", Color: 0x9b8cff},
		},
	}
}

type testDeps struct {
	relay    *mockRelay
	dedup    *mockDedup
	sender   *mockSender
	recorder *mockRecorder
}

func newTestDispatcher(config DispatcherConfig) (*Dispatcher, *testDeps) {
	deps := &testDeps{
		relay:    &mockRelay{result: domain.DeliveryResult{StatusCode: 200, Body: `{"ok":true}`}},
		dedup:    newMockDedup(),
		sender:   &mockSender{},
		recorder: &mockRecorder{},
	}
	d := NewDispatcher(testRegistry(), deps.relay, deps.dedup, deps.sender, deps.recorder, config)
	return d, deps
}

func member(userID string) domain.Actor {
	return domain.Actor{UserID: userID, Username: "seeker", GuildID: testGuildID, ChannelID: "42"}
}
