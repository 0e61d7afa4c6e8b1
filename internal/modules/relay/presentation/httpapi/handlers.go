package httpapi

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/gin-gonic/gin"
	"github.com/sglre6355/covenbot/internal/modules/relay/application"
	"github.com/sglre6355/covenbot/internal/modules/relay/application/ports"
	"github.com/sglre6355/covenbot/internal/modules/relay/domain"
	"github.com/sglre6355/covenbot/internal/modules/relay/infrastructure"
	"github.com/sglre6355/covenbot/internal/modules/relay/presentation/discord"
)

const maxRequestBody = 1 << 20

// Handlers serves the relay, altar and interaction endpoints.
type Handlers struct {
	publisher ports.EventPublisher
	commands  *discord.Handlers
	limiter   *LimiterPool
	publicKey ed25519.PublicKey
	timeout   time.Duration
}

// NewHandlers creates new Handlers. The interactions endpoint is only
// served when publicKey is a valid ed25519 key. timeout bounds how long a
// request waits for its outcome.
func NewHandlers(
	publisher ports.EventPublisher,
	limiter *LimiterPool,
	publicKey ed25519.PublicKey,
	timeout time.Duration,
) *Handlers {
	if limiter == nil {
		limiter = NewLimiterPool(0, 0)
	}
	return &Handlers{
		publisher: publisher,
		commands:  discord.NewHandlers(publisher, discord.DefaultReplyTimeout),
		limiter:   limiter,
		publicKey: publicKey,
		timeout:   timeout,
	}
}

// RegisterRoutes adds the endpoints to r.
func (h *Handlers) RegisterRoutes(r gin.IRouter) {
	limited := r.Group("", RateLimit(h.limiter))
	limited.POST("/relay", h.HandleRelay)
	limited.POST("/altar", h.HandleAltar)

	if len(h.publicKey) == ed25519.PublicKeySize {
		r.POST("/interactions", h.HandleInteraction)
	}
}

// HandleRelay forwards the raw JSON body to the relay destination and
// answers with the downstream status, content type and body.
func (h *Handlers) HandleRelay(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBody))
	if err != nil {
		abortWithError(c, readStatus(err), "failed to read body")
		return
	}

	event, err := domain.NewRawRelayPayload(body)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid JSON")
		return
	}

	outcome, ok := h.submit(c, event)
	if !ok {
		return
	}

	switch outcome.Kind {
	case domain.OutcomeRelayed:
		contentType := outcome.Delivery.ContentType
		if contentType == "" {
			contentType = "application/json; charset=utf-8"
		}
		c.Data(outcome.Delivery.StatusCode, contentType, []byte(outcome.Delivery.Body))
	case domain.OutcomeFailed:
		h.relayFailure(c, outcome.Failure)
	default:
		slog.Error("unexpected relay outcome", "outcome", outcome.Kind)
		abortWithError(c, http.StatusInternalServerError, "unexpected outcome")
	}
}

func (h *Handlers) relayFailure(c *gin.Context, failure *domain.Failure) {
	switch failure.Class {
	case domain.FailureRelayDisabled:
		c.JSON(http.StatusOK, gin.H{
			"ok":   true,
			"demo": true,
			"note": "relay not configured",
		})
	case domain.FailureTransport:
		cause := failure.Err.Error()
		var tf *domain.TransportFailure
		if errors.As(failure.Err, &tf) {
			cause = tf.Cause()
		}
		abortWithError(c, http.StatusBadGateway, cause)
	default:
		abortWithError(c, http.StatusInternalServerError, failure.Error())
	}
}

type altarRequest struct {
	Proof   string  `json:"proof"`
	Channel *string `json:"channel"`
}

// HandleAltar posts an offering from the website to a channel.
func (h *Handlers) HandleAltar(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBody)

	var req altarRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		abortWithError(c, http.StatusBadRequest, "invalid JSON")
		return
	}

	var channelID string
	if req.Channel != nil && *req.Channel != "" {
		id, err := snowflake.Parse(*req.Channel)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "invalid channel")
			return
		}
		channelID = id.String()
	}

	slog.Info("received altar offering", "channel_id", channelID, "proof_length", len(req.Proof))

	outcome, ok := h.submit(c, domain.NewAltarOffering(req.Proof, channelID))
	if !ok {
		return
	}

	delivered := outcome.Kind == domain.OutcomeDelivered
	if !delivered {
		slog.Warn("altar offering not delivered", "channel_id", channelID, "error", outcome.Err())
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"delivered": delivered,
	})
}

// HandleInteraction serves signed Discord interactions. The signature is
// checked before the body is decoded.
func (h *Handlers) HandleInteraction(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBody)

	if !discordgo.VerifyInteraction(c.Request, h.publicKey) {
		abortWithError(c, http.StatusUnauthorized, "invalid request signature")
		return
	}

	var interaction discordgo.Interaction
	if err := json.NewDecoder(c.Request.Body).Decode(&interaction); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid interaction")
		return
	}

	switch interaction.Type {
	case discordgo.InteractionPing:
		c.JSON(http.StatusOK, discordgo.InteractionResponse{Type: discordgo.InteractionResponsePong})
	case discordgo.InteractionApplicationCommand:
		event, err := discord.EventFromInteraction(&interaction)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), discord.DefaultReplyTimeout)
		defer cancel()

		reply := h.commands.Reply(ctx, event)
		c.JSON(http.StatusOK, infrastructure.RenderInteractionResponse(reply))
	default:
		abortWithError(c, http.StatusBadRequest, "unsupported interaction type")
	}
}

// submit dispatches event and waits for its outcome. On failure it writes
// the error response and returns false.
func (h *Handlers) submit(c *gin.Context, event domain.InboundEvent) (domain.Outcome, bool) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	outcome, err := application.Submit(ctx, h.publisher, event)
	if err != nil {
		slog.Warn("failed to dispatch request", "type", event.Kind(), "error", err)
		switch {
		case errors.Is(err, ports.ErrQueueFull), errors.Is(err, ports.ErrQueueClosed):
			abortWithError(c, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, context.DeadlineExceeded):
			abortWithError(c, http.StatusGatewayTimeout, "timed out")
		default:
			abortWithError(c, http.StatusInternalServerError, err.Error())
		}
		return domain.Outcome{}, false
	}
	return outcome, true
}

func readStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"ok":    false,
		"error": message,
	})
}
