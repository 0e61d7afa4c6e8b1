package bot

import (
	"fmt"
	"log/slog"
	"maps"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sglre6355/covenbot/internal/server"
)

// Intents requested on the gateway connection.
const Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

// Bot manages the Discord bot lifecycle and module coordination.
type Bot struct {
	config   *Config
	session  *discordgo.Session
	modules  []Module
	handlers map[string]InteractionHandler
	fallback InteractionHandler
	metrics  *prometheus.Registry
	server   *server.Server
}

// NewBot creates a new Bot instance with the given configuration.
func NewBot(cfg *Config) *Bot {
	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Bot{
		config:   cfg,
		modules:  make([]Module, 0),
		handlers: make(map[string]InteractionHandler),
		metrics:  metrics,
	}
}

// LoadModules loads modules from the global registry.
func (b *Bot) LoadModules() {
	b.modules = Modules()
}

// Start initializes the bot, starts the HTTP server, connects to Discord,
// and registers commands.
func (b *Bot) Start() error {
	// Create Discord session
	session, err := newSession(b.config.DiscordToken)
	if err != nil {
		return err
	}
	b.session = session

	// Load module configuration
	if err := b.loadModuleConfigs(); err != nil {
		return fmt.Errorf("failed to load module config: %w", err)
	}

	// Initialize modules
	if err := b.initModules(); err != nil {
		return fmt.Errorf("failed to initialize modules: %w", err)
	}

	// Build handler map
	b.buildHandlerMap()

	// Register interaction handler
	b.session.AddHandler(b.handleInteraction)

	// Register module event handlers
	b.registerEventHandlers()

	// Serve HTTP before connecting so health checks pass during login
	if err := b.startServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// Open connection
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	// Register commands
	if err := b.registerCommands(); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	slog.Info("started bot",
		"user_id", b.session.State.User.ID,
		"username", b.session.State.User.Username,
	)

	return nil
}

// PublishCommands registers the module commands with Discord without
// opening a gateway connection.
func (b *Bot) PublishCommands() error {
	session, err := newSession(b.config.DiscordToken)
	if err != nil {
		return err
	}
	b.session = session

	if err := b.loadModuleConfigs(); err != nil {
		return fmt.Errorf("failed to load module config: %w", err)
	}

	return b.registerCommands()
}

// Stop gracefully shuts down the bot.
func (b *Bot) Stop() error {
	// Stop accepting HTTP requests
	if b.server != nil {
		if err := b.server.Shutdown(); err != nil {
			slog.Warn("failed to shutdown HTTP server", "error", err)
		}
	}

	// Shutdown modules
	for _, mod := range b.modules {
		if err := mod.Shutdown(); err != nil {
			slog.Warn("failed to shutdown module", "module", mod.Name(), "error", err)
		}
	}

	// Close Discord session
	if b.session != nil {
		return b.session.Close()
	}

	return nil
}

func newSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Identify.Intents = Intents
	return session, nil
}

// loadModuleConfigs calls LoadConfig on every ConfigurableModule.
func (b *Bot) loadModuleConfigs() error {
	for _, mod := range b.modules {
		cm, ok := mod.(ConfigurableModule)
		if !ok {
			continue
		}
		if err := cm.LoadConfig(); err != nil {
			return fmt.Errorf("failed to load %s module config: %w", mod.Name(), err)
		}
	}
	return nil
}

// initModules initializes all loaded modules.
func (b *Bot) initModules() error {
	deps := ModuleDependencies{
		Session: b.session,
		Config:  b.config,
		Metrics: b.metrics,
	}

	for _, mod := range b.modules {
		if err := mod.Init(deps); err != nil {
			return fmt.Errorf("failed to initialize %s module: %w", mod.Name(), err)
		}
		slog.Debug("initialized module", "module", mod.Name())
	}

	moduleNames := make([]string, len(b.modules))
	for i, mod := range b.modules {
		moduleNames[i] = mod.Name()
	}
	slog.Info("initialized modules", "modules", moduleNames)

	return nil
}

// buildHandlerMap builds the command name to handler mapping.
func (b *Bot) buildHandlerMap() {
	for _, mod := range b.modules {
		maps.Copy(b.handlers, mod.CommandHandlers())
		if fm, ok := mod.(FallbackModule); ok {
			b.fallback = fm.FallbackHandler()
		}
	}
}

// registerEventHandlers registers all module event handlers with the session.
func (b *Bot) registerEventHandlers() {
	for _, mod := range b.modules {
		for _, handler := range mod.EventHandlers() {
			b.session.AddHandler(handler)
		}
	}
}

// newServer creates the HTTP server with every module's routes.
func (b *Bot) newServer() *server.Server {
	srv := server.New(b.config.Port, b.metrics)
	for _, mod := range b.modules {
		if rm, ok := mod.(RouteModule); ok {
			rm.RegisterRoutes(srv.Router())
			slog.Debug("registered module routes", "module", mod.Name())
		}
	}
	return srv
}

// startServer binds the listen address and serves in the background.
func (b *Bot) startServer() error {
	srv := b.newServer()
	ln, err := srv.Listen()
	if err != nil {
		return err
	}
	b.server = srv

	go func() {
		if err := srv.Serve(ln); err != nil {
			slog.Error("HTTP server stopped", "error", err)
		}
	}()
	return nil
}

// collectCommands gathers all commands from loaded modules.
func (b *Bot) collectCommands() []*discordgo.ApplicationCommand {
	var commands []*discordgo.ApplicationCommand
	for _, mod := range b.modules {
		commands = append(commands, mod.Commands()...)
	}
	return commands
}

// applicationID returns the ID commands are registered under.
func (b *Bot) applicationID() (string, error) {
	if b.config.ClientID != "" {
		return b.config.ClientID, nil
	}
	if b.session.State != nil && b.session.State.User != nil {
		return b.session.State.User.ID, nil
	}
	user, err := b.session.User("@me")
	if err != nil {
		return "", fmt.Errorf("failed to resolve application ID: %w", err)
	}
	return user.ID, nil
}

// registerCommands replaces the registered command catalog with the
// module commands, scoped to the configured guild if any.
func (b *Bot) registerCommands() error {
	commands := b.collectCommands()

	appID, err := b.applicationID()
	if err != nil {
		return err
	}

	registered, err := b.session.ApplicationCommandBulkOverwrite(appID, b.config.GuildID, commands)
	if err != nil {
		return fmt.Errorf("failed to overwrite commands: %w", err)
	}

	names := make([]string, len(registered))
	for i, cmd := range registered {
		names[i] = cmd.Name
	}
	slog.Info("registered commands",
		"application_id", appID,
		"guild_id", b.config.GuildID,
		"commands", names,
	)

	return nil
}

// Embed colors for responses.
const (
	colorYellow = 0xFFFF00
	colorRed    = 0xFF0000
)

// handlerFor returns the handler for a command, falling back to the
// fallback module's handler.
func (b *Bot) handlerFor(name string) (InteractionHandler, bool) {
	if handler, ok := b.handlers[name]; ok {
		return handler, true
	}
	if b.fallback != nil {
		return b.fallback, true
	}
	return nil, false
}

// handleInteraction routes incoming interactions to the appropriate handler.
func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	cmdName := i.ApplicationCommandData().Name
	handler, ok := b.handlerFor(cmdName)
	if !ok {
		slog.Warn("found no handler for command", "command", cmdName)
		b.respondWithEmbed(s, i, "Unknown Command", "This command is not recognized.", colorYellow)
		return
	}

	responder := NewDiscordResponder(s, i.Interaction)
	if err := handler(s, i, responder); err != nil {
		slog.Error("failed to handle command", "command", cmdName, "error", err)
		b.respondWithEmbed(s, i, "Error", "An error occurred while processing your command.",
			colorRed)
	}
}

// respondWithEmbed sends an embed response to an interaction.
func (b *Bot) respondWithEmbed(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	title, description string,
	color int,
) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Title:       title,
					Description: description,
					Color:       color,
				},
			},
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		slog.Error("failed to send embed response", "error", err)
	}
}
