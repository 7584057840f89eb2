package bot

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"remindbot/internal/runtime/supervisor"
	"remindbot/internal/scheduler"
	"remindbot/internal/storage"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

// Engine is the scheduling surface the front-end drives.
type Engine interface {
	Schedule(ctx context.Context, req scheduler.ScheduleRequest) (scheduler.ScheduledReminder, error)
	Cancel(ctx context.Context, jobID string) (bool, error)
	Now() time.Time
	Location() *time.Location
}

// Store is the read side the front-end needs.
type Store interface {
	GetOrCreateUser(ctx context.Context, externalID int64, p storage.Profile) (int64, error)
	ListActiveReminders(ctx context.Context, userID int64) ([]storage.Reminder, error)
	GetReminder(ctx context.Context, jobID string) (storage.OwnedReminder, error)
}

type Config struct {
	Workers        int           // concurrent handlers; 0 means 4
	HandlerTimeout time.Duration // per request; 0 means 15s
}

type Service struct {
	cfg     Config
	log     logx.Logger
	adapter kit.Adapter
	engine  Engine
	store   Store

	cmds    map[string]*Command
	order   []*Command
	handler HandlerFunc
	sup     atomic.Pointer[supervisor.Supervisor]
}

func New(cfg Config, adapter kit.Adapter, engine Engine, store Store, log logx.Logger) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = 15 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{cfg: cfg, log: log, adapter: adapter, engine: engine, store: store, cmds: map[string]*Command{}}
	s.register(&Command{Name: "start", Description: "Introduction and usage", Handle: s.handleHelp})
	s.register(&Command{Name: "help", Description: "How to create reminders", Handle: s.handleHelp})
	s.register(&Command{Name: "remind", Description: "Create a reminder", Usage: "/remind HH:MM text", Handle: s.handleRemind})
	s.register(&Command{Name: "my_reminders", Description: "List your active reminders", Handle: s.handleList})
	s.register(&Command{Name: "cancel", Description: "Cancel a reminder by ID", Usage: "/cancel <id>", Handle: s.handleCancel})
	s.handler = Chain(s.route, MWPanicRecover(), MWRequestLog(), MWTimeout(cfg.HandlerTimeout))
	return s
}

func (s *Service) register(c *Command) {
	s.cmds[c.Name] = c
	s.order = append(s.order, c)
}

// Commands lists the command menu in registration order.
func (s *Service) Commands() []kit.BotCommand {
	out := make([]kit.BotCommand, 0, len(s.order))
	for _, c := range s.order {
		out = append(out, kit.BotCommand{Command: c.Name, Description: c.Description})
	}
	return out
}

// Run consumes updates with a pool of workers until ctx ends.
func (s *Service) Run(ctx context.Context, updates <-chan kit.Update) error {
	if mu, ok := s.adapter.(kit.CommandMenuUpdater); ok {
		if err := mu.UpdateMenuCommands(ctx, s.Commands()); err != nil {
			s.log.Warn("menu update failed", logx.Err(err))
		}
	}

	sup := supervisor.New(ctx, supervisor.WithLogger(s.log))
	s.sup.Store(sup)
	for i := 0; i < s.cfg.Workers; i++ {
		sup.GoRestart("bot.worker."+strconv.Itoa(i), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case up, ok := <-updates:
					if !ok {
						return nil
					}
					s.Handle(c, up)
				}
			}
		})
	}
	s.log.Info("dispatcher started", logx.Int("workers", s.cfg.Workers))

	<-ctx.Done()
	wctx, cancel := context.WithTimeout(context.Background(), s.cfg.HandlerTimeout)
	defer cancel()
	return sup.Wait(wctx)
}

// Supervisor is the worker pool's supervisor, nil before Run.
func (s *Service) Supervisor() *supervisor.Supervisor { return s.sup.Load() }

// Handle processes one update synchronously.
func (s *Service) Handle(ctx context.Context, up kit.Update) {
	req := &Request{Update: up}
	switch up.Kind {
	case kit.UpdateMessage:
		m := up.Message
		if m == nil {
			return
		}
		name, args, ok := splitCommand(m.Text)
		if !ok {
			return
		}
		req.Chat = kit.ChatTarget{ChatID: m.ChatID}
		req.FromID = m.FromID
		req.Profile = storage.Profile{Username: m.FromUsername, FirstName: m.FromFirstName, LastName: m.FromLastName}
		req.Command = name
		req.Args = args
	case kit.UpdateCallback:
		cb := up.Callback
		if cb == nil {
			return
		}
		req.Chat = kit.ChatTarget{ChatID: cb.ChatID}
		req.FromID = cb.FromID
		req.Command = "callback"
		req.Args = cb.Data
	default:
		return
	}
	req.Logger = s.log.With(logx.String("cmd", req.Command), logx.Int64("from_id", req.FromID))
	_ = s.handler(ctx, req)
}

func (s *Service) route(ctx context.Context, req *Request) error {
	if req.Update.Kind == kit.UpdateCallback {
		return s.handleCallback(ctx, req)
	}
	c, ok := s.cmds[req.Command]
	if !ok {
		return s.reply(ctx, req, "Unknown command. Send /help for usage.", nil)
	}
	return c.Handle(ctx, req)
}

func (s *Service) reply(ctx context.Context, req *Request, text string, buttons [][]kit.Button) error {
	_, err := s.adapter.SendText(ctx, req.Chat, text, &kit.SendOptions{DisablePreview: true, Buttons: buttons})
	return err
}

func trimID(s string) string { return strings.Trim(strings.TrimSpace(s), "<>") }
