package queue

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/pkg/logger"
)

var log = logger.Named("queue")

// SQSAPI is the subset of the SQS client the queue uses.
type SQSAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSQueue publishes and long-polls an SQS queue.
type SQSQueue struct {
	client            SQSAPI
	queueURL          string
	waitSeconds       int32
	visibilitySeconds int32
}

// NewSQSQueue creates a queue over queueURL.
func NewSQSQueue(client SQSAPI, queueURL string, waitSeconds, visibilitySeconds int) *SQSQueue {
	return &SQSQueue{
		client:            client,
		queueURL:          queueURL,
		waitSeconds:       int32(waitSeconds),
		visibilitySeconds: int32(visibilitySeconds),
	}
}

// Publish sends msg and waits for SQS to accept it.
func (q *SQSQueue) Publish(ctx context.Context, msg Message) error {
	body, err := encode(msg)
	if err != nil {
		return err
	}
	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("sqs send: %w", err)
	}
	return nil
}

// Receive long-polls for up to 10 messages. Undecodable messages are
// deleted and skipped.
func (q *SQSQueue) Receive(ctx context.Context) ([]*Delivery, error) {
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     q.waitSeconds,
		VisibilityTimeout:   q.visibilitySeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("sqs receive: %w", err)
	}

	deliveries := make([]*Delivery, 0, len(out.Messages))
	for _, m := range out.Messages {
		handle := m.ReceiptHandle
		msg, err := decode(aws.ToString(m.Body))
		if err != nil {
			log.Warn("dropping bad queue message", "message_id", aws.ToString(m.MessageId), "error", err)
			q.delete(ctx, handle)
			continue
		}
		deliveries = append(deliveries, &Delivery{
			Message: msg,
			ack:     func(ctx context.Context) error { return q.delete(ctx, handle) },
			// The message stays in flight and reappears after the
			// visibility timeout.
			nack: nil,
		})
	}
	return deliveries, nil
}

func (q *SQSQueue) delete(ctx context.Context, handle *string) error {
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: handle,
	})
	if err != nil {
		return fmt.Errorf("sqs delete: %w", err)
	}
	return nil
}
