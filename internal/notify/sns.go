package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog/log"
)

// TopicNotifier publishes operator notifications to an SNS topic.
type TopicNotifier struct {
	client   *sns.Client
	topicARN string
}

var _ Notifier = (*TopicNotifier)(nil)

// NewTopicNotifier creates a TopicNotifier for the given topic.
func NewTopicNotifier(client *sns.Client, topicARN string) *TopicNotifier {
	return &TopicNotifier{
		client:   client,
		topicARN: topicARN,
	}
}

func (n *TopicNotifier) Notify(ctx context.Context, outcome Outcome, trainingTitle string) error {
	_, err := n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String(Subject),
		Message:  aws.String(Body(outcome, trainingTitle)),
	})
	if err != nil {
		return fmt.Errorf("sns publish for %q: %w", trainingTitle, err)
	}

	log.Debug().
		Str("outcome", string(outcome)).
		Str("title", trainingTitle).
		Str("topicArn", n.topicARN).
		Msg("Outcome notification published")
	return nil
}
