// Package natsreport publishes system failures to a NATS subject as JSON.
//
//	rep, err := natsreport.Connect("nats://localhost:4222", "ecsched.failures", logger)
//	...
//	mngr := ecsched.NewManager(ecsched.WithFailureHook(rep.Report))
package natsreport

import (
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/oriumgames/ecsched"
)

// Failure is the wire form of one system failure.
type Failure struct {
	System   string    `json:"system"`
	Stage    int       `json:"stage"`
	Tick     uint64    `json:"tick"`
	Error    string    `json:"error"`
	Panicked bool      `json:"panicked"`
	Stack    string    `json:"stack,omitempty"`
	Host     string    `json:"host,omitempty"`
	Time     time.Time `json:"time"`
}

// Encode renders a failure as JSON.
func Encode(f *ecsched.SystemRuntimeError, host string, now time.Time) ([]byte, error) {
	msg := Failure{
		System:   string(f.System),
		Stage:    f.Stage,
		Tick:     f.Tick,
		Panicked: f.Panicked,
		Host:     host,
		Time:     now.UTC(),
	}
	if f.Err != nil {
		msg.Error = f.Err.Error()
	}
	if f.Panicked {
		msg.Stack = string(f.Stack)
	}
	return json.Marshal(msg)
}

// Publisher is the subset of *nats.Conn the reporter needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Reporter publishes failures. Report has the signature of a failure hook.
type Reporter struct {
	pub     Publisher
	conn    *nats.Conn
	subject string
	host    string
	log     *zap.Logger

	published atomic.Uint64
	dropped   atomic.Uint64
}

// New creates a reporter on an existing publisher.
func New(pub Publisher, subject string, log *zap.Logger) *Reporter {
	if log == nil {
		log = zap.NewNop()
	}
	host, _ := os.Hostname()
	return &Reporter{
		pub:     pub,
		subject: subject,
		host:    host,
		log:     log,
	}
}

// Connect dials NATS and creates a reporter that owns the connection.
func Connect(url, subject string, log *zap.Logger, opts ...nats.Option) (*Reporter, error) {
	opts = append([]nats.Option{nats.Name("ecsched")}, opts...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	r := New(nc, subject, log)
	r.conn = nc
	return r, nil
}

// Report publishes one failure. Publish errors are logged and counted,
// never returned, so a broken link cannot disturb the tick.
func (r *Reporter) Report(f *ecsched.SystemRuntimeError) {
	data, err := Encode(f, r.host, time.Now())
	if err != nil {
		r.dropped.Add(1)
		r.log.Warn("encode failure report", zap.String("system", string(f.System)), zap.Error(err))
		return
	}
	if err := r.pub.Publish(r.subject, data); err != nil {
		r.dropped.Add(1)
		r.log.Warn("publish failure report",
			zap.String("subject", r.subject),
			zap.String("system", string(f.System)),
			zap.Error(err),
		)
		return
	}
	r.published.Add(1)
}

// Published returns the number of reports sent.
func (r *Reporter) Published() uint64 {
	return r.published.Load()
}

// Dropped returns the number of reports that could not be sent.
func (r *Reporter) Dropped() uint64 {
	return r.dropped.Load()
}

// Close drains the connection if the reporter owns one.
func (r *Reporter) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Drain()
}
