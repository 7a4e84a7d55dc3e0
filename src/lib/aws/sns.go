package aws

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/lib"
)

type SNSSubscriber struct {
	Name  string
	inner *sns.Client
}

func NewSNSSubscriber(topic string) *SNSSubscriber {
	inner := lib.AWSGetSNSClient()
	if inner == nil {
		return nil
	}
	new := SNSSubscriber{
		Name:  topic,
		inner: inner,
	}
	return &new
}

// Subscribe attaches an endpoint (a queue ARN for proto "sqs") to the topic.
func (s *SNSSubscriber) Subscribe(ctx context.Context, proto string, endpoint string) (*string, error) {
	topicArn := lib.GetTopicArn(s.Name)
	if mid := os.Getenv("AWS_MEMBER_ID"); mid != "" {
		if _, err := s.inner.AddPermission(ctx, &sns.AddPermissionInput{
			AWSAccountId: []string{mid},
			ActionName:   []string{"Publish"},
			Label:        aws.String(fmt.Sprintf("%s-publish", s.Name)),
			TopicArn:     aws.String(topicArn),
		}); err != nil {
			log.Printf("[%s] Error adding topic permission: %s\n", s.Name, err.Error())
		}
	}
	output, err := s.inner.Subscribe(ctx, &sns.SubscribeInput{
		Protocol: aws.String(proto),
		TopicArn: aws.String(topicArn),
		Endpoint: aws.String(endpoint),
		Attributes: map[string]string{
			"RawMessageDelivery": "true",
		},
	})
	if err != nil {
		log.Printf("Error subscribing to topic [%s]: %s\n", s.Name, err.Error())
		return nil, err
	}
	return output.SubscriptionArn, nil
}
