// Package natsvc answers analysis requests received over NATS.
package natsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"wcrt/internal/job"
	"wcrt/internal/report"
	"wcrt/internal/sched"
)

// Task is one task of a request in priority order. A zero deadline means
// d = t.
type Task struct {
	C int `json:"c"`
	T int `json:"t"`
	D int `json:"d,omitempty"`
}

// Request asks for one task set to be analysed.
type Request struct {
	ID      string           `json:"id,omitempty"`
	Tasks   []Task           `json:"tasks"`
	Methods []string         `json:"methods,omitempty"` // empty = configured methods
	Report  sched.ReportMode `json:"report,omitempty"`  // empty = configured mode
}

// Reply carries either a report or the reason there is none.
type Reply struct {
	ID     string            `json:"id"`
	Error  string            `json:"error,omitempty"`
	Report *report.SetReport `json:"report,omitempty"`
}

// Service is the request handler bound to one configuration.
type Service struct {
	cfg sched.Config
}

// New creates a service. cfg must have been validated.
func New(cfg sched.Config) *Service {
	return &Service{cfg: cfg}
}

// NewRequest builds the request for ts. Deadlines are always sent.
func NewRequest(id string, ts sched.TaskSet, methods []string, mode sched.ReportMode) Request {
	req := Request{ID: id, Tasks: make([]Task, len(ts)), Methods: methods, Report: mode}
	for i, t := range ts {
		req.Tasks[i] = Task{C: t.WCET, T: t.Period, D: t.Deadline}
	}
	return req
}

func (r Request) taskSet() sched.TaskSet {
	ts := make(sched.TaskSet, len(r.Tasks))
	for i, t := range r.Tasks {
		d := t.D
		if d == 0 {
			d = t.T
		}
		ts[i] = sched.Task{ID: i + 1, WCET: t.C, Period: t.T, Deadline: d}
	}
	return ts
}

// Handle decodes one request and builds the reply. Malformed or invalid
// input is answered with an error reply, never dropped.
func (s *Service) Handle(data []byte) Reply {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Reply{ID: uuid.NewString(), Error: fmt.Sprintf("malformed request: %v", err)}
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	cfg := s.cfg
	if len(req.Methods) > 0 {
		cfg.Methods = req.Methods
	}
	if req.Report != "" {
		cfg.Report = req.Report
	}
	if err := cfg.Validate(); err != nil {
		return Reply{ID: req.ID, Error: err.Error()}
	}

	out := job.NewRunner(cfg).Run(job.Job{ID: 1, Set: req.taskSet()})
	if out.Err != nil {
		return Reply{ID: req.ID, Error: out.Err.Error()}
	}
	rep := report.FromOutcome(out, cfg.Report)
	return Reply{ID: req.ID, Report: &rep}
}

// Connect dials the configured server.
func Connect(cfg sched.NATSConfig) (*nats.Conn, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("wcrt"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("disconnected from NATS", "err", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("reconnected to NATS", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.URL, err)
	}
	return nc, nil
}

// Serve answers requests on the configured subject and queue group until
// ctx is done, then drains the subscription.
func (s *Service) Serve(ctx context.Context, nc *nats.Conn) error {
	sub, err := nc.QueueSubscribe(s.cfg.NATS.Subject, s.cfg.NATS.Queue, func(msg *nats.Msg) {
		reply := s.Handle(msg.Data)
		s.respond(msg, reply)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.cfg.NATS.Subject, err)
	}
	slog.Info("serving analysis requests",
		"subject", s.cfg.NATS.Subject,
		"queue", s.cfg.NATS.Queue)

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("drain subscription: %w", err)
	}
	return nil
}

func (s *Service) respond(msg *nats.Msg, reply Reply) {
	if reply.Error != "" {
		slog.Debug("request rejected", "id", reply.ID, "err", reply.Error)
	}
	if msg.Reply == "" {
		slog.Warn("request without reply subject", "id", reply.ID)
		return
	}

	b, err := json.Marshal(reply)
	if err != nil {
		slog.Error("failed to marshal reply", "id", reply.ID, "err", err)
		return
	}
	if err := msg.Respond(b); err != nil {
		slog.Error("failed to publish reply", "id", reply.ID, "err", err)
	}
}

// Ask sends req and waits for the reply.
func Ask(ctx context.Context, nc *nats.Conn, subject string, req Request) (Reply, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return Reply{}, err
	}
	msg, err := nc.RequestWithContext(ctx, subject, b)
	if err != nil {
		return Reply{}, fmt.Errorf("request %s: %w", subject, err)
	}

	var reply Reply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return Reply{}, fmt.Errorf("malformed reply: %w", err)
	}
	return reply, nil
}
