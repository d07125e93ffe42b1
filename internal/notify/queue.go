package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/wolfman30/crystalcare-intake/pkg/logging"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSSender hands the message to a queue; a downstream mailer owns delivery.
type SQSSender struct {
	client   sqsAPI
	queueURL string
	logger   *logging.Logger
}

// NewSQSSender creates a queue-backed sender.
func NewSQSSender(client sqsAPI, queueURL string, logger *logging.Logger) *SQSSender {
	if client == nil {
		panic("notify: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("notify: SQS queueURL cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SQSSender{client: client, queueURL: queueURL, logger: logger}
}

func (q *SQSSender) Send(ctx context.Context, msg EmailMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notify: failed to marshal message: %w", err)
	}
	out, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"reference_id": {DataType: aws.String("String"), StringValue: aws.String(referenceOrUnknown(msg.ReferenceID))},
		},
	})
	if err != nil {
		return fmt.Errorf("notify: failed to send SQS message: %w", err)
	}
	q.logger.Info("notification queued", "reference_id", msg.ReferenceID, "message_id", aws.ToString(out.MessageId))
	return nil
}

func referenceOrUnknown(ref string) string {
	if ref == "" {
		return "unknown"
	}
	return ref
}

var _ EmailSender = (*SQSSender)(nil)
