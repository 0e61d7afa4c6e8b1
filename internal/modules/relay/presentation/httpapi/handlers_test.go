package httpapi

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
	"github.com/sglre6355/covenbot/internal/modules/relay/application"
	"github.com/sglre6355/covenbot/internal/modules/relay/application/ports"
	"github.com/sglre6355/covenbot/internal/modules/relay/domain"
	"github.com/sglre6355/covenbot/internal/modules/relay/infrastructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAltarChannel = "1408339354862096446"

type recordingSender struct {
	mu       sync.Mutex
	channels []string
	replies  []domain.ReplyPayload
	err      error
}

func (s *recordingSender) SendToChannel(_ context.Context, channelID string, reply domain.ReplyPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = append(s.channels, channelID)
	s.replies = append(s.replies, reply)
	return s.err
}

type countingPublisher struct {
	next  ports.EventPublisher
	count atomic.Int32
	err   error
}

func (p *countingPublisher) Publish(ctx context.Context, env ports.Envelope) error {
	p.count.Add(1)
	if p.err != nil {
		return p.err
	}
	return p.next.Publish(ctx, env)
}

type testServer struct {
	engine    *gin.Engine
	sender    *recordingSender
	publisher *countingPublisher
}

func newTestServer(t *testing.T, relayURL string, publicKey ed25519.PublicKey, limiter *LimiterPool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry, err := domain.NewRegistry([]domain.CommandDescriptor{
		{Name: "ping", Description: "Health check.", Reply: domain.TextReply("Shield stands. pong.", true)},
	})
	require.NoError(t, err)

	sender := &recordingSender{}
	dispatcher := application.NewDispatcher(
		registry,
		infrastructure.NewWebhookRelay(time.Second),
		infrastructure.NewMemoryDedupStore(),
		sender,
		nil,
		application.DispatcherConfig{
			RelayDestination: relayURL,
			AltarChannelID:   testAltarChannel,
			AltarOffering: domain.ReplyPayload{
				Embed: &domain.Embed{Title: "🜏 Altar Offering", Description: "{proof}"},
			},
		},
	)
	queue := infrastructure.NewChannelEventQueue(10, 2, dispatcher.Handle)
	t.Cleanup(queue.Close)

	publisher := &countingPublisher{next: queue}
	handlers := NewHandlers(publisher, limiter, publicKey, 2*time.Second)

	engine := gin.New()
	handlers.RegisterRoutes(engine)

	return &testServer{engine: engine, sender: sender, publisher: publisher}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHandleRelay_EchoesDownstreamResponse(t *testing.T) {
	received := make(chan []byte, 1)
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- body
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"stored":true}`))
	}))
	defer downstream.Close()

	srv := newTestServer(t, downstream.URL, nil, nil)
	payload := `{"type":"altar_second","proof":"v","channel":null}`

	rec := srv.do(postJSON("/relay", payload))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"stored":true}`, rec.Body.String())
	assert.Equal(t, payload, string(<-received))
}

func TestHandleRelay_EchoesDownstreamContentType(t *testing.T) {
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("offering logged"))
	}))
	defer downstream.Close()

	srv := newTestServer(t, downstream.URL, nil, nil)

	rec := srv.do(postJSON("/relay", `{}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "offering logged", rec.Body.String())
}

func TestHandleRelay_DownstreamErrorStatus(t *testing.T) {
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer downstream.Close()

	srv := newTestServer(t, downstream.URL, nil, nil)

	rec := srv.do(postJSON("/relay", `{}`))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"boom"}`, rec.Body.String())
}

func TestHandleRelay_TransportFailure(t *testing.T) {
	downstream := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := downstream.URL
	downstream.Close()

	srv := newTestServer(t, url, nil, nil)

	rec := srv.do(postJSON("/relay", `{}`))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["ok"])
	assert.NotEmpty(t, body["error"])
}

func TestHandleRelay_NotConfigured(t *testing.T) {
	srv := newTestServer(t, "", nil, nil)

	rec := srv.do(postJSON("/relay", `{"x":1}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"demo":true,"note":"relay not configured"}`, rec.Body.String())
}

func TestHandleRelay_InvalidJSON(t *testing.T) {
	srv := newTestServer(t, "", nil, nil)

	rec := srv.do(postJSON("/relay", `{not json`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, srv.publisher.count.Load())
}

func TestHandleRelay_QueueFull(t *testing.T) {
	srv := newTestServer(t, "", nil, nil)
	srv.publisher.err = ports.ErrQueueFull

	rec := srv.do(postJSON("/relay", `{}`))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleRelay_RateLimited(t *testing.T) {
	srv := newTestServer(t, "", nil, NewLimiterPool(0.001, 1))

	first := srv.do(postJSON("/relay", `{}`))
	second := srv.do(postJSON("/relay", `{}`))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestHandleAltar_DefaultsToAltarChannel(t *testing.T) {
	srv := newTestServer(t, "", nil, nil)

	rec := srv.do(postJSON("/altar", `{}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"delivered":true}`, rec.Body.String())
	require.Len(t, srv.sender.channels, 1)
	assert.Equal(t, testAltarChannel, srv.sender.channels[0])
	assert.Equal(t, "(no proof)", srv.sender.replies[0].Embed.Description)
}

func TestHandleAltar_ExplicitChannel(t *testing.T) {
	srv := newTestServer(t, "", nil, nil)

	rec := srv.do(postJSON("/altar", `{"type":"altar_second","proof":"shipped","channel":"123456789"}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, srv.sender.channels, 1)
	assert.Equal(t, "123456789", srv.sender.channels[0])
	assert.Equal(t, "shipped", srv.sender.replies[0].Embed.Description)
}

func TestHandleAltar_DeliveryFailure(t *testing.T) {
	srv := newTestServer(t, "", nil, nil)
	srv.sender.err = io.ErrUnexpectedEOF

	rec := srv.do(postJSON("/altar", `{"proof":"x"}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"delivered":false}`, rec.Body.String())
}

func TestHandleAltar_InvalidChannel(t *testing.T) {
	srv := newTestServer(t, "", nil, nil)

	rec := srv.do(postJSON("/altar", `{"channel":"general"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, srv.publisher.count.Load())
}

func signedRequest(t *testing.T, key ed25519.PrivateKey, body string) *http.Request {
	t.Helper()
	timestamp := "1700000000"
	sig := ed25519.Sign(key, []byte(timestamp+body))

	req := postJSON("/interactions", body)
	req.Header.Set("X-Signature-Ed25519", hex.EncodeToString(sig))
	req.Header.Set("X-Signature-Timestamp", timestamp)
	return req
}

func TestHandleInteraction_RejectsBadSignature(t *testing.T) {
	public, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	_, otherKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	srv := newTestServer(t, "", public, nil)
	body := `{"type":2,"data":{"name":"ping"},"user":{"id":"42"}}`

	unsigned := srv.do(postJSON("/interactions", body))
	forged := srv.do(signedRequest(t, otherKey, body))

	assert.Equal(t, http.StatusUnauthorized, unsigned.Code)
	assert.Equal(t, http.StatusUnauthorized, forged.Code)
	assert.Zero(t, srv.publisher.count.Load(), "dispatcher must not see unverified payloads")
}

func TestHandleInteraction_Ping(t *testing.T) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	srv := newTestServer(t, "", public, nil)

	rec := srv.do(signedRequest(t, private, `{"type":1}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"type":1}`, rec.Body.String())
	assert.Zero(t, srv.publisher.count.Load())
}

func TestHandleInteraction_Command(t *testing.T) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	srv := newTestServer(t, "", public, nil)

	rec := srv.do(signedRequest(t, private, `{"type":2,"data":{"name":"ping"},"user":{"id":"42","username":"seeker"}}`))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp discordgo.InteractionResponse
	require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&resp))
	assert.Equal(t, discordgo.InteractionResponseChannelMessageWithSource, resp.Type)
	require.NotNil(t, resp.Data)
	assert.Equal(t, "Shield stands. pong.", resp.Data.Content)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, resp.Data.Flags)
}

func TestHandleInteraction_UnknownCommand(t *testing.T) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	srv := newTestServer(t, "", public, nil)

	rec := srv.do(signedRequest(t, private, `{"type":2,"data":{"name":"nope"},"user":{"id":"42"}}`))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), domain.UnknownCommandText)
}

func TestRegisterRoutes_InteractionsRequireKey(t *testing.T) {
	srv := newTestServer(t, "", nil, nil)

	rec := srv.do(postJSON("/interactions", `{"type":1}`))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
