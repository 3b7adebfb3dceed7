package consumerWorker

import (
	"context"
	"encoding/json"

	"github.com/wb-go/wbf/zlog"

	"iscevents/internal/dto"
	"iscevents/internal/rabbit"
	"iscevents/internal/repo"
)

// Sender is the slice of the mailer the worker needs.
type Sender interface {
	SendAttendeeConfirmation(eventTitle, attendeeName, recipientEmail string) error
}

// Reader consumes attendee-created messages and sends confirmation emails.
type Reader struct {
	RMQ    *rabbit.Client
	repo   repo.Repository
	mail   Sender
	done   chan struct{}
	cancel context.CancelFunc
}

func NewReader(rmq *rabbit.Client, repo repo.Repository, mail Sender) *Reader {
	return &Reader{
		RMQ:  rmq,
		repo: repo,
		mail: mail,
		done: make(chan struct{}),
	}
}

func (r *Reader) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	zlog.Logger.Info().Msg("RabbitMQ Reader started")

	go func() {
		defer close(r.done)

		if err := r.RMQ.Consume(r.Handle(cctx)); err != nil {
			zlog.Logger.Error().Err(err).Msg("Failed to start consuming")
			return
		}

		<-cctx.Done()
		zlog.Logger.Info().Msg("RabbitMQ Reader stopped by context")
	}()
}

// Handle returns the message handler: load the attendee and its event, then
// email the confirmation. Missing rows are dropped without requeueing.
func (r *Reader) Handle(ctx context.Context) func([]byte) error {
	return func(body []byte) error {
		var msg dto.AttendeeCreatedMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			zlog.Logger.Error().
				Err(err).
				Msgf("Failed to unmarshal message: %s", string(body))
			return err
		}

		zlog.Logger.Info().
			Str("attendee_id", msg.AttendeeID).
			Str("event_id", msg.EventID).
			Msg("Received attendee message from RabbitMQ")

		attendee, err := r.repo.GetAttendeeByID(ctx, msg.AttendeeID)
		if err != nil {
			zlog.Logger.Error().
				Err(err).
				Str("attendee_id", msg.AttendeeID).
				Msg("Failed to get attendee from DB in worker")
			return nil
		}

		event, err := r.repo.GetEventByID(ctx, attendee.EventID)
		if err != nil {
			zlog.Logger.Error().
				Err(err).
				Str("event_id", attendee.EventID).
				Msg("Failed to get event from DB in worker")
			return nil
		}

		if err := r.mail.SendAttendeeConfirmation(event.Title, attendee.Name, attendee.Email); err != nil {
			zlog.Logger.Warn().
				Err(err).
				Msg("Failed to send notification on e-mail")
		} else {
			zlog.Logger.Info().
				Str("email", attendee.Email).
				Str("attendee_id", msg.AttendeeID).
				Msg("Confirmation email sent successfully")
		}

		return nil
	}
}

func (r *Reader) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}
