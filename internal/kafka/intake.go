package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"shield-respond/internal/respond"
	"shield-respond/internal/schema"
)

// Responder runs the matching playbook for a threat. Implemented by
// respond.Engine; an interface so intake tests can stub it.
type Responder interface {
	AutoExecute(ctx context.Context, threat *schema.Threat, ectx schema.Context) respond.ExecutionResult
}

// threatEnvelope is the wire format on the threats topic: the classified
// threat plus any request-scoped context the detector attached.
type threatEnvelope struct {
	Threat  schema.Threat  `json:"threat"`
	Context schema.Context `json:"context,omitempty"`
}

// IntakeMetrics holds intake consumer counters.
type IntakeMetrics struct {
	Consumed  int64
	Invalid   int64
	NoMatch   int64
	Executed  int64
	Failed    int64
	FetchErrs int64
}

// Intake consumes classified threats and feeds them to the responder.
type Intake struct {
	reader    *kafka.Reader
	config    *Config
	responder Responder
	validator *schema.Validator
	logger    *slog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started atomic.Bool

	consumed  atomic.Int64
	invalid   atomic.Int64
	noMatch   atomic.Int64
	executed  atomic.Int64
	failed    atomic.Int64
	fetchErrs atomic.Int64
}

// NewIntake creates the threat intake consumer.
func NewIntake(config *Config, responder Responder, logger *slog.Logger) (*Intake, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if responder == nil {
		return nil, errors.New("kafka: responder is required")
	}

	dialer, err := config.GetDialer()
	if err != nil {
		return nil, err
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        config.Brokers,
		GroupID:        config.ConsumerGroup,
		Topic:          config.ThreatsTopic,
		Dialer:         dialer,
		MinBytes:       config.ConsumerMinBytes,
		MaxBytes:       config.ConsumerMaxBytes,
		MaxWait:        config.ConsumerMaxWait,
		CommitInterval: config.CommitInterval,
		StartOffset:    config.StartOffset,
		SessionTimeout: config.SessionTimeout,
		ReadBackoffMin: 100 * time.Millisecond,
		ReadBackoffMax: time.Second,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error(fmt.Sprintf(msg, args...), "component", "kafka-reader")
		}),
	})

	ctx, cancel := context.WithCancel(context.Background())

	in := &Intake{
		reader:    reader,
		config:    config,
		responder: responder,
		validator: schema.NewValidator(),
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}

	logger.Info("threat intake initialized",
		"brokers", config.Brokers,
		"topic", config.ThreatsTopic,
		"group", config.ConsumerGroup,
	)

	return in, nil
}

// Start begins consuming in a goroutine. Use Stop to shut down.
func (in *Intake) Start() error {
	if in.started.Swap(true) {
		return errors.New("kafka: intake already started")
	}

	in.wg.Add(1)
	go func() {
		defer in.wg.Done()
		if err := in.consumeLoop(); err != nil && !errors.Is(err, context.Canceled) {
			in.logger.Error("intake loop exited", "error", err)
		}
	}()

	in.logger.Info("threat intake started", "topic", in.config.ThreatsTopic)
	return nil
}

func (in *Intake) consumeLoop() error {
	for {
		msg, err := in.reader.FetchMessage(in.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}

			in.fetchErrs.Add(1)
			in.logger.Error("failed to fetch message",
				"error", err,
				"topic", in.config.ThreatsTopic,
			)

			select {
			case <-in.ctx.Done():
				return in.ctx.Err()
			case <-time.After(time.Second):
				continue
			}
		}

		in.handle(msg)

		// Commit regardless of outcome. A malformed or unmatched threat
		// must not wedge the partition.
		if err := in.reader.CommitMessages(in.ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			in.logger.Error("failed to commit offset",
				"error", err,
				"offset", msg.Offset,
			)
		}
	}
}

func (in *Intake) handle(msg kafka.Message) {
	in.consumed.Add(1)

	var env threatEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		in.invalid.Add(1)
		in.logger.Warn("discarding malformed threat message",
			"error", err,
			"offset", msg.Offset,
			"partition", msg.Partition,
		)
		return
	}

	if err := in.validator.Validate(&env.Threat); err != nil {
		in.invalid.Add(1)
		in.logger.Warn("discarding invalid threat",
			"error", err,
			"threat_id", env.Threat.ID,
		)
		return
	}

	res := in.responder.AutoExecute(in.ctx, &env.Threat, env.Context)
	switch {
	case res.Err != nil && errors.Is(res.Err, respond.ErrNoMatch):
		in.noMatch.Add(1)
		in.logger.Debug("no playbook matched",
			"threat_id", env.Threat.ID,
			"threat_type", env.Threat.Type,
			"severity", env.Threat.Severity,
		)
	case res.Success:
		in.executed.Add(1)
	default:
		in.failed.Add(1)
	}
}

// Metrics returns a snapshot of intake counters.
func (in *Intake) Metrics() IntakeMetrics {
	return IntakeMetrics{
		Consumed:  in.consumed.Load(),
		Invalid:   in.invalid.Load(),
		NoMatch:   in.noMatch.Load(),
		Executed:  in.executed.Load(),
		Failed:    in.failed.Load(),
		FetchErrs: in.fetchErrs.Load(),
	}
}

// Stop cancels the consume loop and closes the reader.
func (in *Intake) Stop() error {
	in.cancel()
	in.wg.Wait()
	return in.reader.Close()
}
