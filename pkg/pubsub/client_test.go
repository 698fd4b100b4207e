package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/porter-backend/pkg/config"
)

func TestResourceNames(t *testing.T) {
	assert.Equal(t, "projects/porter/topics/domain", topicResourceName("porter", "domain"))
	assert.Equal(t, "projects/porter/subscriptions/ach", subscriptionResourceName(" porter ", " ach "))
	assert.Equal(t, "projects/other/topics/domain", topicResourceName("porter", "projects/other/topics/domain"))
	assert.Equal(t, "projects/porter/subscriptions/projects/other/topics/domain",
		subscriptionResourceName("porter", "projects/other/topics/domain"))
	assert.Empty(t, topicResourceName("", "domain"))
	assert.Empty(t, topicResourceName("porter", "  "))
}

func TestNewClientValidatesConfig(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, config.GCPConfig{}, config.PubSubConfig{DomainTopic: "t"}, Options{}, nil)
	assert.ErrorIs(t, err, errProjectIDRequired)

	_, err = NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.PubSubConfig{}, Options{}, nil)
	assert.ErrorIs(t, err, errTopicRequired)

	_, err = NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.PubSubConfig{DomainTopic: "t"}, Options{RequireSubscription: true}, nil)
	assert.ErrorIs(t, err, errNoSubscription)
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	assert.Nil(t, c.DomainPublisher())
	assert.Nil(t, c.DomainSubscription())
	assert.NoError(t, c.Close())
	assert.Error(t, c.Ping(context.Background()))
}
