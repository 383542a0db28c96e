package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/alchemorsel/dietgen/internal/domain/job"
	"github.com/alchemorsel/dietgen/internal/domain/shared"
	"github.com/alchemorsel/dietgen/internal/infrastructure/http/middleware"
	"github.com/alchemorsel/dietgen/internal/ports/inbound"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// JobStream pushes job snapshots over a websocket each time the job
// commits a step or a cancellation is requested. The connection closes
// after the terminal snapshot.
//
// Events only reach the instance that committed the step. With a shared
// queue the periodic reload picks up steps run elsewhere.
type JobStream struct {
	service     inbound.DietJobService
	events      shared.EventDispatcher
	upgrader    websocket.Upgrader
	reloadEvery time.Duration
	logger      *zap.Logger
}

// NewJobStream creates the stream handler. allowedOrigins follows the CORS
// configuration; "*" accepts any origin.
func NewJobStream(service inbound.DietJobService, events shared.EventDispatcher, allowedOrigins []string, logger *zap.Logger) *JobStream {
	s := &JobStream{
		service: service,
		events:  events,
		logger:  logger.Named("job-stream"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, o := range allowedOrigins {
				if o == "*" || strings.EqualFold(o, origin) {
					return true
				}
			}
			return false
		},
	}
	return s
}

// WithReload sets how often the streamed job is re-read without an event.
// Zero or less disables the reload.
func (s *JobStream) WithReload(every time.Duration) *JobStream {
	s.reloadEvery = every
	return s
}

// Serve handles GET /diet-jobs/{id}/stream
func (s *JobStream) Serve(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	jobID := chi.URLParam(r, "id")

	// Subscribe before taking the first snapshot so no commit in between
	// is missed.
	notify := make(chan struct{}, 1)
	handler := func(e shared.DomainEvent) {
		if jobIDOf(e) != jobID {
			return
		}
		select {
		case notify <- struct{}{}:
		default:
		}
	}
	unsubUpdated := s.events.Subscribe(job.EventNameUpdated, handler)
	defer unsubUpdated()
	unsubFinished := s.events.Subscribe(job.EventNameFinished, handler)
	defer unsubFinished()
	unsubCancel := s.events.Subscribe(job.EventNameCancelRequested, handler)
	defer unsubCancel()

	// Ownership is checked before upgrading so failures get a JSON body.
	first, err := s.service.GetJob(r.Context(), jobID, userID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("Websocket upgrade failed", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go s.readPump(conn, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	var reload <-chan time.Time
	if s.reloadEvery > 0 {
		reloadTicker := time.NewTicker(s.reloadEvery)
		defer reloadTicker.Stop()
		reload = reloadTicker.C
	}

	last := first
	if !s.send(conn, last) || last.Finished {
		s.closeNormally(conn)
		return
	}

	for {
		select {
		case <-reload:
			select {
			case notify <- struct{}{}:
			default:
			}
		case <-notify:
			dto, err := s.service.GetJob(r.Context(), jobID, userID)
			if err != nil {
				s.logger.Warn("Failed to reload streamed job", zap.String("job_id", jobID), zap.Error(err))
				return
			}
			if sameSnapshot(last, dto) {
				continue
			}
			last = dto
			if !s.send(conn, dto) || dto.Finished {
				s.closeNormally(conn)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (s *JobStream) send(conn *websocket.Conn, dto *inbound.JobDTO) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(dto); err != nil {
		s.logger.Debug("Websocket write failed", zap.String("job_id", dto.ID), zap.Error(err))
		return false
	}
	return true
}

func (s *JobStream) closeNormally(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

// readPump discards client frames and keeps the pong deadline current.
func (s *JobStream) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func jobIDOf(e shared.DomainEvent) string {
	switch ev := e.(type) {
	case job.UpdatedEvent:
		return ev.JobID
	case job.FinishedEvent:
		return ev.JobID
	case job.CancelRequestedEvent:
		return ev.JobID
	}
	return ""
}

func sameSnapshot(a, b *inbound.JobDTO) bool {
	return a.Status == b.Status &&
		a.Finished == b.Finished &&
		a.IsCancelled == b.IsCancelled &&
		len(a.ProgressLog) == len(b.ProgressLog)
}
