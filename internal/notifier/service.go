package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

var ErrNoAdapter = errors.New("notifier: no transport adapter")

// Service formats, throttles and sends messages. It is safe for concurrent
// use.
type Service struct {
	cfg     Config
	log     logx.Logger
	limiter *rate.Limiter

	mu      sync.RWMutex
	adapter kit.Adapter

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, adapter kit.Adapter, log logx.Logger) *Service {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = DefaultRatePerSec
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RatePerSec
	}
	if strings.Count(cfg.Template, "%s") != 1 {
		cfg.Template = DefaultTemplate
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 50
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:     cfg,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		adapter: adapter,
	}
}

// SetAdapter swaps the transport, for example after a token change.
func (s *Service) SetAdapter(a kit.Adapter) {
	s.mu.Lock()
	s.adapter = a
	s.mu.Unlock()
}

// SetRate changes the global send rate. perSec <= 0 restores the default.
func (s *Service) SetRate(perSec int) {
	if perSec <= 0 {
		perSec = DefaultRatePerSec
	}
	s.limiter.SetLimit(rate.Limit(perSec))
	s.limiter.SetBurst(perSec)
}

// Format renders a reminder text as the user sees it.
func (s *Service) Format(text string) string {
	return fmt.Sprintf(s.cfg.Template, text)
}

// Send delivers one reminder to the user's private chat.
func (s *Service) Send(ctx context.Context, externalID int64, text string) error {
	err := s.send(ctx, externalID, s.Format(text))
	s.record(externalID, err)
	if err != nil {
		return fmt.Errorf("send reminder to %d: %w", externalID, err)
	}
	return nil
}

// SendAlert delivers an operator alert. It satisfies logx.AlertSender.
func (s *Service) SendAlert(ctx context.Context, chatID int64, text string) error {
	return s.send(ctx, chatID, text)
}

func (s *Service) send(ctx context.Context, chatID int64, text string) error {
	s.mu.RLock()
	a := s.adapter
	s.mu.RUnlock()
	if a == nil {
		return ErrNoAdapter
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := a.SendText(ctx, kit.ChatTarget{ChatID: chatID}, text, &kit.SendOptions{DisablePreview: true})
	return err
}

func (s *Service) record(externalID int64, err error) {
	it := HistoryItem{At: time.Now(), ExternalID: externalID, OK: err == nil}
	if err != nil {
		it.Err = err.Error()
	}
	s.hmu.Lock()
	s.history = append(s.history, it)
	if over := len(s.history) - s.cfg.HistorySize; over > 0 {
		s.history = append(s.history[:0], s.history[over:]...)
	}
	s.hmu.Unlock()
}

// History returns recent deliveries, newest last.
func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}
