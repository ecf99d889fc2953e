package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	TypeInvitationEmail = "email:invitation"
	EmailQueueName      = "email"
)

type InvitationEmailPayload struct {
	GuestID uuid.UUID `json:"guestId"`
	EventID uuid.UUID `json:"eventId"`
}

func NewInvitationEmailTask(guestID, eventID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(InvitationEmailPayload{GuestID: guestID, EventID: eventID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeInvitationEmail, payload,
		asynq.Queue(EmailQueueName),
		asynq.MaxRetry(5),
		asynq.Timeout(time.Minute),
	), nil
}

func ParseInvitationEmailTask(t *asynq.Task) (InvitationEmailPayload, error) {
	var p InvitationEmailPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("decode %s payload: %v: %w", TypeInvitationEmail, err, asynq.SkipRetry)
	}
	return p, nil
}

// EmailQueue hands invitation emails to the background email workers.
type EmailQueue interface {
	EnqueueInvitation(ctx context.Context, guestID, eventID uuid.UUID) (string, error)
}

type AsynqEmailQueueImpl struct {
	client *asynq.Client
}

func NewAsynqEmailQueue(client *asynq.Client) EmailQueue {
	return &AsynqEmailQueueImpl{client: client}
}

func (q *AsynqEmailQueueImpl) EnqueueInvitation(ctx context.Context, guestID, eventID uuid.UUID) (string, error) {
	task, err := NewInvitationEmailTask(guestID, eventID)
	if err != nil {
		return "", err
	}
	info, err := q.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("enqueue invitation email: %w", err)
	}
	return info.ID, nil
}
