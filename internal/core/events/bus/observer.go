package bus

import (
	"time"

	"github.com/ucexplorer/ucexplorer/internal/core/observability/log"
)

// LogObserver writes one debug entry per delivery and a warning when any
// handler failed.
type LogObserver struct {
	logger log.Log
}

func NewLogObserver(logger log.Log) *LogObserver {
	return &LogObserver{logger: logger.With(log.Component("bus"))}
}

func (o *LogObserver) OnPublish(string, Event) {}

func (o *LogObserver) OnDelivered(topic string, event Event, handlers int, err error, took time.Duration) {
	fields := []log.Field{
		log.String("topic", topic),
		log.String("event", event.Type),
		log.String("event_id", event.ID),
		log.Int("handlers", handlers),
		log.Duration("took", took),
	}
	if err != nil {
		o.logger.Warn("Event handler failed", append(fields, log.Error(err))...)
		return
	}
	o.logger.Debug("Event delivered", fields...)
}
