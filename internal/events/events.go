// Package events publishes food log changes to NATS for downstream
// consumers. Publishing is best effort and never blocks a chat reply on a
// broker problem.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/model"
)

const (
	SubjectFoodLogged  = "dietbot.food.logged"
	SubjectFoodDeleted = "dietbot.food.deleted"
)

type Event struct {
	Type     string    `json:"type"`
	UserID   int64     `json:"user_id"`
	RecordID int64     `json:"record_id"`
	FoodName string    `json:"food_name"`
	Grams    int       `json:"grams"`
	Calories int       `json:"calories"`
	At       time.Time `json:"at"`
}

// Publisher is the part of *nats.Conn the emitter needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Emitter is safe to use as a nil pointer, in which case it does nothing.
type Emitter struct {
	pub    Publisher
	logger *slog.Logger
	now    func() time.Time
}

func NewEmitter(pub Publisher, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{pub: pub, logger: logger, now: time.Now}
}

// Connect dials url and returns an emitter with a close func that drains the
// connection.
func Connect(url string, logger *slog.Logger) (*Emitter, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name("dietbot"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}
	closeFn := func() {
		if err := nc.Drain(); err != nil {
			nc.Close()
		}
	}
	return NewEmitter(nc, logger), closeFn, nil
}

func (e *Emitter) FoodLogged(rec model.FoodLog) {
	e.emit(SubjectFoodLogged, "food.logged", rec)
}

func (e *Emitter) FoodDeleted(rec model.FoodLog) {
	e.emit(SubjectFoodDeleted, "food.deleted", rec)
}

func (e *Emitter) emit(subject, typ string, rec model.FoodLog) {
	if e == nil || e.pub == nil {
		return
	}
	data, err := json.Marshal(Event{
		Type:     typ,
		UserID:   rec.UserID,
		RecordID: rec.ID,
		FoodName: rec.FoodName,
		Grams:    rec.Grams,
		Calories: rec.Calories,
		At:       e.now().UTC(),
	})
	if err != nil {
		e.logger.Warn("Encode event failed", "subject", subject, "error", err)
		return
	}
	if err := e.pub.Publish(subject, data); err != nil {
		e.logger.Warn("Publish event failed", "subject", subject, "record_id", rec.ID, "error", err)
	}
}
