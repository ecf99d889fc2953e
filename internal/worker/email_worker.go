package worker

import (
	"context"

	"event-checkin/config"
	"event-checkin/internal/database"
	"event-checkin/internal/messaging"
	"event-checkin/internal/service"
	"event-checkin/pkg/logger"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// EmailWorker drains the asynq email queue and delivers invitations.
type EmailWorker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewEmailWorker(redisCfg config.RedisConfig, emailCfg config.EmailConfig, invitations service.InvitationService) *EmailWorker {
	concurrency := emailCfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	server := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     database.RedisAddr(&redisCfg),
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		},
		asynq.Config{
			Concurrency: concurrency,
			Queues:      map[string]int{messaging.EmailQueueName: 1},
			Logger:      logger.L.Sugar(),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(messaging.TypeInvitationEmail, InvitationEmailHandler(invitations))

	return &EmailWorker{server: server, mux: mux}
}

func (w *EmailWorker) Start() error {
	return w.server.Start(w.mux)
}

func (w *EmailWorker) Shutdown() {
	w.server.Shutdown()
}

func InvitationEmailHandler(invitations service.InvitationService) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		payload, err := messaging.ParseInvitationEmailTask(t)
		if err != nil {
			return err
		}
		if err := invitations.DeliverEmail(ctx, payload.EventID, payload.GuestID); err != nil {
			logger.WithComponent("worker").Warn("invitation email failed",
				zap.String("guest_id", payload.GuestID.String()), zap.Error(err))
			return err
		}
		return nil
	}
}
