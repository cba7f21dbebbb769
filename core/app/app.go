// Package app assembles the flowbot Telegram application: store, flow engine,
// relay, commands and routes.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/flowbot/core/bootstrap"
	coreconfig "github.com/m3rciful/flowbot/core/config"
	"github.com/m3rciful/flowbot/core/engine"
	"github.com/m3rciful/flowbot/core/flow"
	"github.com/m3rciful/flowbot/core/logger"
	"github.com/m3rciful/flowbot/core/state"
	"github.com/m3rciful/flowbot/core/store"
	tg "github.com/m3rciful/flowbot/core/telegram"
	"github.com/m3rciful/flowbot/core/telegram/relay"
	"github.com/m3rciful/flowbot/core/telegram/router"
	tgsender "github.com/m3rciful/flowbot/core/telegram/sender"
)

const component = "app"

// Options customize Bootstrap.
type Options struct {
	// Modules register custom step handlers next to the built-in ones.
	Modules bootstrap.Modules
	// LoggerInit defaults to logger.InitLogger.
	LoggerInit func(*coreconfig.Config) error
	// Bot is built from the config when nil.
	Bot *tele.Bot
}

// App is a ready to run flowbot.
type App struct {
	cfg        *Config
	backend    store.Backend
	contexts   *state.Manager
	engine     *engine.Engine
	relay      *relay.Relay
	registry   *tg.Registry
	dispatcher *tgsender.Dispatcher
	bot        *tele.Bot
}

// deps are the collaborators build wires together.
type deps struct {
	Backend    store.Backend
	Flows      *flow.Registry
	Handlers   *engine.Handlers
	Sender     tg.Sender
	RelayBot   relay.Bot
	Dispatcher *tgsender.Dispatcher
	Scheduler  engine.Scheduler
}

// Bootstrap initializes logging and the store, loads and validates flow definitions
// and assembles the application.
func Bootstrap(cfg *Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	boot, err := bootstrap.Run(bootstrap.Options{
		Config:     &cfg.Config,
		Database:   cfg.Database,
		LoggerInit: opts.LoggerInit,
	})
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	handlers := engine.NewHandlers()
	modules := append(bootstrap.Modules{Builtins()}, opts.Modules...)
	if err := modules.Register(ctx, handlers, boot.Store); err != nil {
		_ = boot.Close()
		return nil, err
	}

	flows, err := LoadFlows(cfg.Flows.Path, handlers)
	if err != nil {
		_ = boot.Close()
		return nil, err
	}

	bot := opts.Bot
	if bot == nil {
		if bot, err = tg.NewBot(&cfg.Config); err != nil {
			_ = boot.Close()
			return nil, err
		}
	}

	a, err := build(cfg, deps{
		Backend:    boot.Store,
		Flows:      flows,
		Handlers:   handlers,
		Sender:     bot,
		RelayBot:   bot,
		Dispatcher: tgsender.NewDispatcher(tgsender.Options{}),
	})
	if err != nil {
		_ = boot.Close()
		return nil, err
	}
	a.bot = bot
	return a, nil
}

// LoadFlows reads definitions from path and checks them against the registered handlers.
func LoadFlows(path string, handlers *engine.Handlers) (*flow.Registry, error) {
	start := time.Now()
	flows, err := flow.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	known := func(string) bool { return true }
	var names []string
	if handlers != nil {
		known = handlers.Has
		names = handlers.Names()
	}
	if err := flows.Validate(known); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	logger.Info(context.Background(), component, "flows.loaded",
		slog.String("path", path),
		slog.Int("flows", len(flows.FlowNames())),
		slog.Int("handlers", len(names)),
		slog.Duration("duration", logger.Took(start)),
	)
	return flows, nil
}

func build(cfg *Config, d deps) (*App, error) {
	contexts := state.NewManager(d.Backend, d.Backend, state.Options{
		HistoryLimit: cfg.Store.HistoryLimit,
	})
	eng, err := engine.New(engine.Options{
		Registry:           d.Flows,
		Contexts:           contexts,
		Transport:          tg.NewTransport(d.Sender, tele.ModeDefault),
		Handlers:           d.Handlers,
		Scheduler:          d.Scheduler,
		DefaultAdminChatID: cfg.Flows.DefaultAdminChatID,
		MaxHops:            cfg.Flows.MaxHops,
	})
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:        cfg,
		backend:    d.Backend,
		contexts:   contexts,
		engine:     eng,
		registry:   tg.NewRegistry(),
		dispatcher: d.Dispatcher,
	}
	if cfg.Relay.Enabled && d.RelayBot != nil {
		a.relay = relay.New(d.RelayBot, d.Backend, relay.Options{
			ChatID:     cfg.Flows.DefaultAdminChatID,
			TopicName:  cfg.Relay.TopicName,
			Dispatcher: d.Dispatcher,
		})
	}
	a.registerCommands()
	a.registry.SetTextFallback(a.forwardToAdmin)
	return a, nil
}

// CoreConfig exposes the embedded core configuration.
func (a *App) CoreConfig() *coreconfig.Config {
	return a.cfg.CoreConfig()
}

// Engine returns the flow engine.
func (a *App) Engine() *engine.Engine {
	return a.engine
}

// Close releases the dispatcher and the store.
func (a *App) Close() error {
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	return a.backend.Close()
}

// TelegramRunOptions describes middlewares and routes for RunTelegram.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := &a.cfg.Config
	mws := tg.DefaultMiddlewares(core, tg.MiddlewareOptions{
		OnLimited: a.reply("Too many messages, please slow down."),
		Users:     a.backend,
	})

	admin := a.adminOptions()
	routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{
		AdminID:       admin.AdminID,
		AdminChatID:   admin.AdminChatID,
		OnAdminReject: a.reply("This command is for operators."),
	})
	routes = append(routes, router.TextRoutes(a.engine, a.registry, a.textOptions())...)
	routes = append(routes, router.CallbackRoute(a.registry, a.engine, router.CallbackOptions{}))

	return tg.RunOptions{
		Config:      core,
		Registry:    a.registry,
		Bot:         a.bot,
		Dispatcher:  a.dispatcher,
		Middlewares: mws,
		Routes:      routes,
	}, nil
}

func (a *App) textOptions() router.TextOptions {
	opts := router.TextOptions{
		UnknownText:     a.reply("Send /start to begin."),
		UnknownDocument: a.reply("Files are not supported here."),
	}
	if a.relay != nil {
		opts.AdminChatID = a.relay.ChatID()
		opts.TopicFallback = a.forwardToUser
	} else {
		opts.AdminChatID = a.cfg.Flows.DefaultAdminChatID
	}
	return opts
}
