package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segyhp/progressive-loan-engine/internal/domain"
	"github.com/segyhp/progressive-loan-engine/pkg/utils"
)

// AmortizationEvent is published for every capitalized income amortization
// transaction so that accounting can post it.
type AmortizationEvent struct {
	TransactionID string    `json:"transaction_id"`
	LoanID        string    `json:"loan_id"`
	Type          string    `json:"type"`
	Date          string    `json:"date"`
	Amount        string    `json:"amount"`
	PublishedAt   time.Time `json:"published_at"`
}

// Publisher emits loan transactions to downstream consumers.
type Publisher interface {
	PublishTransaction(ctx context.Context, tx *domain.Transaction) error
}

type redisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) Publisher {
	return &redisPublisher{client: client, channel: channel}
}

// NewAmortizationEvent converts a transaction into its published form.
func NewAmortizationEvent(tx *domain.Transaction) AmortizationEvent {
	return AmortizationEvent{
		TransactionID: tx.ID.String(),
		LoanID:        tx.LoanID,
		Type:          string(tx.Type),
		Date:          utils.FormatDate(tx.Date),
		Amount:        tx.Amount.String(),
		PublishedAt:   time.Now().UTC(),
	}
}

func (p *redisPublisher) PublishTransaction(ctx context.Context, tx *domain.Transaction) error {
	payload, err := json.Marshal(NewAmortizationEvent(tx))
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return p.client.Publish(ctx, p.channel, payload).Err()
}
