package publishers

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samvad-hq/pubsync/internal/domain"
	"github.com/samvad-hq/pubsync/internal/logger"
)

type fakeSQSClient struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQSClient) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-123")}, nil
}

func sampleEvent() Event {
	return NewEvent("scholar_profile", domain.Publication{Title: "Battery aging", Year: "2024"}, "https://doi.org/10.1016/x")
}

func TestSQSPublisherSendsEvent(t *testing.T) {
	client := &fakeSQSClient{}
	pub := &sqsPublisher{
		id:       "queue",
		queueURL: "https://example.com/queue",
		client:   client,
		log:      logger.NopLogger{},
	}

	evt := sampleEvent()
	require.NoError(t, pub.Publish(context.Background(), evt))
	require.NotNil(t, client.input, "client was not called")

	assert.Equal(t, "https://example.com/queue", aws.ToString(client.input.QueueUrl))
	attr, ok := client.input.MessageAttributes["publication_key"]
	require.True(t, ok, "publication_key attribute missing")
	assert.Equal(t, evt.Key, aws.ToString(attr.StringValue))
	assert.Equal(t, "String", aws.ToString(attr.DataType))
	assert.Contains(t, aws.ToString(client.input.MessageBody), `"source":"scholar_profile"`)
}

func TestSQSPublisherSendError(t *testing.T) {
	pub := &sqsPublisher{
		id:       "queue",
		queueURL: "https://example.com/queue",
		client:   &fakeSQSClient{err: errors.New("boom")},
		log:      logger.NopLogger{},
	}
	assert.Error(t, pub.Publish(context.Background(), sampleEvent()))
}

func TestNewSQSPublisherWithStaticCredentials(t *testing.T) {
	pub, err := newSQSPublisher(context.Background(), PublisherConfig{
		ID:   "queue",
		Type: TypeSQS,
		SQS: &SQSPublisherConfig{
			QueueURL:    "https://sqs.ap-south-1.amazonaws.com/123/pubs",
			Region:      "ap-south-1",
			Credentials: &AWSCredentials{AccessKeyID: "AKIA", SecretAccessKey: "secret"},
		},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, TypeSQS, pub.Type())
	assert.Equal(t, "queue", pub.ID())
}
