package debug

import (
	"context"
	"encoding/json"
	"net/http"
	hpprof "net/http/pprof"
	"runtime"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"remindbot/internal/notifier"
	"remindbot/internal/runtime/supervisor"
	"remindbot/internal/scheduler"
)

const probeTimeout = 3 * time.Second

// Store is what the health and status pages read from the reminder store.
type Store interface {
	Ping(ctx context.Context) error
	CountPending(ctx context.Context, now time.Time) (int, error)
}

type Engine interface {
	Now() time.Time
	Snapshot() scheduler.Snapshot
}

// Sources feeds the status page. Nil members are omitted from the output.
type Sources struct {
	Store       Store
	Engine      Engine
	Deliveries  func() []notifier.HistoryItem
	Supervisors func() map[string][]supervisor.Stats
	BusDropped  func() uint64
	StartedAt   time.Time
}

type Status struct {
	Now         time.Time                     `json:"now"`
	Uptime      string                        `json:"uptime,omitempty"`
	Goroutines  int                           `json:"goroutines"`
	Pending     *int                          `json:"pending,omitempty"`
	PendingErr  string                        `json:"pending_err,omitempty"`
	Engine      *scheduler.Snapshot           `json:"engine,omitempty"`
	Deliveries  []notifier.HistoryItem        `json:"deliveries,omitempty"`
	Supervisors map[string][]supervisor.Stats `json:"supervisors,omitempty"`
	BusDropped  uint64                        `json:"bus_dropped"`
}

// NewRouter builds the debug routes. token, when set, guards every route.
func NewRouter(src Sources, token string) *mux.Router {
	r := mux.NewRouter()
	if tok := strings.TrimSpace(token); tok != "" {
		r.Use(bearerAuth(tok))
	}
	r.HandleFunc("/healthz", healthz(src)).Methods(http.MethodGet)
	r.HandleFunc("/status", status(src)).Methods(http.MethodGet)

	r.Handle("/debug/pprof", http.RedirectHandler("/debug/pprof/", http.StatusPermanentRedirect))
	p := r.PathPrefix("/debug/pprof").Subrouter()
	p.HandleFunc("/cmdline", hpprof.Cmdline)
	p.HandleFunc("/profile", hpprof.Profile)
	p.HandleFunc("/symbol", hpprof.Symbol)
	p.HandleFunc("/trace", hpprof.Trace)
	// Index also serves the named profiles (heap, goroutine, ...).
	p.PathPrefix("/").HandlerFunc(hpprof.Index)
	return r
}

func healthz(src Sources) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if src.Store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
			err := src.Store.Ping(ctx)
			cancel()
			if err != nil {
				http.Error(w, "store: "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

func status(src Sources) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := Status{Now: time.Now().UTC(), Goroutines: runtime.NumGoroutine()}
		if !src.StartedAt.IsZero() {
			st.Uptime = time.Since(src.StartedAt).Truncate(time.Second).String()
		}
		if src.Engine != nil {
			snap := src.Engine.Snapshot()
			st.Engine = &snap
			st.Now = src.Engine.Now()
		}
		if src.Store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
			n, err := src.Store.CountPending(ctx, st.Now)
			cancel()
			if err != nil {
				st.PendingErr = err.Error()
			} else {
				st.Pending = &n
			}
		}
		if src.Deliveries != nil {
			st.Deliveries = src.Deliveries()
		}
		if src.Supervisors != nil {
			st.Supervisors = src.Supervisors()
		}
		if src.BusDropped != nil {
			st.BusDropped = src.BusDropped()
		}

		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(st)
	}
}

// bearerAuth accepts "Authorization: Bearer <token>" or ?token=<token>.
func bearerAuth(token string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.URL.Query().Get("token")
			if got == "" {
				if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, "Bearer ") {
					got = strings.TrimSpace(strings.TrimPrefix(ah, "Bearer "))
				}
			}
			if got != token {
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
