package relay

import (
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
	"github.com/sglre6355/covenbot/internal/bot"
	"github.com/sglre6355/covenbot/internal/modules/relay/application"
	"github.com/sglre6355/covenbot/internal/modules/relay/application/ports"
	"github.com/sglre6355/covenbot/internal/modules/relay/domain"
	"github.com/sglre6355/covenbot/internal/modules/relay/infrastructure"
	"github.com/sglre6355/covenbot/internal/modules/relay/presentation/discord"
	"github.com/sglre6355/covenbot/internal/modules/relay/presentation/httpapi"
)

// requestMargin is added to the relay timeout for HTTP requests waiting on
// a relayed outcome.
const requestMargin = 2 * time.Second

func init() {
	bot.Register(&RelayModule{})
}

// Compile-time interface checks.
var (
	_ bot.ConfigurableModule = (*RelayModule)(nil)
	_ bot.RouteModule        = (*RelayModule)(nil)
	_ bot.FallbackModule     = (*RelayModule)(nil)
)

// RelayModule answers the command table, welcomes new members and relays
// website payloads.
type RelayModule struct {
	config   *Config
	table    domain.CommandTable
	registry *domain.Registry

	dedup      ports.DedupStore
	closeDedup func() error
	dispatcher *application.Dispatcher
	queue      *infrastructure.ChannelEventQueue

	discordHandlers *discord.Handlers
	httpHandlers    *httpapi.Handlers
}

// Name returns the module name.
func (m *RelayModule) Name() string {
	return "relay"
}

// Commands returns the slash commands built from the command table.
func (m *RelayModule) Commands() []*discordgo.ApplicationCommand {
	if m.registry == nil {
		return nil
	}
	return discord.Commands(m.registry.Descriptors())
}

// CommandHandlers returns the command handlers for this module. Every
// command shares the dispatcher-backed handler.
func (m *RelayModule) CommandHandlers() map[string]bot.InteractionHandler {
	if m.registry == nil || m.discordHandlers == nil {
		return nil
	}
	handlers := make(map[string]bot.InteractionHandler, m.registry.Len())
	for _, name := range m.registry.Names() {
		handlers[name] = m.discordHandlers.HandleCommand
	}
	return handlers
}

// FallbackHandler answers commands missing from the table.
func (m *RelayModule) FallbackHandler() bot.InteractionHandler {
	if m.discordHandlers == nil {
		return nil
	}
	return m.discordHandlers.HandleCommand
}

// EventHandlers returns the event handlers for this module.
func (m *RelayModule) EventHandlers() []bot.EventHandler {
	if m.discordHandlers == nil {
		return nil
	}
	return []bot.EventHandler{
		m.discordHandlers.HandleMemberAdd,
	}
}

// RegisterRoutes adds the relay, altar and interaction endpoints.
func (m *RelayModule) RegisterRoutes(r gin.IRouter) {
	if m.httpHandlers != nil {
		m.httpHandlers.RegisterRoutes(r)
	}
}

// LoadConfig loads module configuration and the command table.
func (m *RelayModule) LoadConfig() error {
	cfg, err := ParseConfig()
	if err != nil {
		return err
	}

	table, err := infrastructure.LoadCommandTable(cfg.CommandsFile, infrastructure.StaticVars{
		InviteURL:      cfg.InviteURL,
		AltarChannelID: cfg.AltarChannelID,
		FairyURL:       cfg.FairyURL,
		AltarURL:       cfg.AltarURL,
		ClientID:       cfg.ClientID,
	})
	if err != nil {
		return err
	}

	registry, err := domain.NewRegistry(table.Commands)
	if err != nil {
		return err
	}

	m.config = cfg
	m.table = table
	m.registry = registry

	slog.Info("loaded command table",
		"commands", registry.Len(),
		"source", commandSource(cfg.CommandsFile),
	)
	return nil
}

// Init initializes the module.
func (m *RelayModule) Init(deps bot.ModuleDependencies) error {
	if m.config == nil {
		if err := m.LoadConfig(); err != nil {
			return err
		}
	}

	if err := m.openDedup(); err != nil {
		return err
	}

	var recorder ports.OutcomeRecorder
	if deps.Metrics != nil {
		r, err := infrastructure.NewPrometheusRecorder(deps.Metrics)
		if err != nil {
			return err
		}
		recorder = r
	}

	// A nil *discordgo.Session must not become a non-nil interface.
	var session infrastructure.MessageSender
	if deps.Session != nil {
		session = deps.Session
	} else {
		slog.Warn("relay module initialized without session, channel posts disabled")
	}

	m.dispatcher = application.NewDispatcher(
		m.registry,
		infrastructure.NewWebhookRelay(m.config.RelayTimeout),
		m.dedup,
		infrastructure.NewDiscordChannelSender(session),
		recorder,
		application.DispatcherConfig{
			RelayDestination: m.config.WebhookURL,
			GuildID:          m.config.GuildID,
			WelcomeChannelID: m.config.WelcomeChannelID,
			AltarChannelID:   m.config.AltarChannelID,
			Welcome:          m.table.Welcome,
			AltarOffering:    m.table.AltarOffering,
		},
	)

	m.queue = infrastructure.NewChannelEventQueue(
		m.config.EventBufferSize,
		m.config.EventWorkers,
		m.dispatcher.Handle,
	)
	if deps.Metrics != nil {
		if err := infrastructure.RegisterQueueDepth(deps.Metrics, m.queue.Len); err != nil {
			return err
		}
	}

	m.discordHandlers = discord.NewHandlers(m.queue, discord.DefaultReplyTimeout)
	m.httpHandlers = httpapi.NewHandlers(
		m.queue,
		httpapi.NewLimiterPool(m.config.RelayRPS, m.config.RelayBurst),
		m.config.InteractionKey(),
		m.config.RelayTimeout+requestMargin,
	)

	slog.Info("relay module initialized",
		"relay_enabled", m.config.WebhookURL != "",
		"interactions_enabled", m.config.InteractionKey() != nil,
		"persistent_dedup", m.config.DedupPath != "",
		"workers", m.config.EventWorkers,
	)

	return nil
}

func (m *RelayModule) openDedup() error {
	if m.config.DedupPath == "" {
		m.dedup = infrastructure.NewMemoryDedupStore()
		return nil
	}

	store, err := infrastructure.OpenPebbleDedupStore(m.config.DedupPath)
	if err != nil {
		return err
	}
	m.dedup = store
	m.closeDedup = store.Close
	return nil
}

// Shutdown drains queued events and closes the welcome tracker.
func (m *RelayModule) Shutdown() error {
	// Close the queue first so workers finish before the store closes
	if m.queue != nil {
		m.queue.Close()
	}
	if m.dispatcher != nil {
		m.dispatcher.Drain()
	}

	if m.closeDedup != nil {
		if err := m.closeDedup(); err != nil {
			return err
		}
		m.closeDedup = nil
	}
	return nil
}

func commandSource(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}
