package pubsub

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/backoffice-backend/pkg/config"
)

func TestResourceNames(t *testing.T) {
	assert.Equal(t, "projects/p1/topics/bo-order-events", resourceName("p1", "topics", "bo-order-events"))
	assert.Equal(t, "projects/other/topics/t", resourceName("p1", "topics", "projects/other/topics/t"))
	assert.Equal(t, "projects/p1/subscriptions/s", resourceName("p1", "subscriptions", " s "))
	assert.Empty(t, resourceName("", "topics", "t"))
	assert.Empty(t, resourceName("p1", "topics", "  "))

	assert.Equal(t,
		[]string{"projects/p1/topics/a", "projects/p1/topics/b"},
		resourceNames("p1", "topics", "a", " ", "", " b "),
	)
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{OrdersTopic: "t"}, nil)
	require.ErrorIs(t, err, errProjectIDRequired)

	_, err = NewClient(context.Background(), config.GCPConfig{ProjectID: "p1"}, config.PubSubConfig{}, nil)
	require.ErrorIs(t, err, errNoTopics)
}

func TestDescribeLookupErr(t *testing.T) {
	assert.NoError(t, describeLookupErr("topic", "t", nil))
	assert.EqualError(t,
		describeLookupErr("topic", "t", status.Error(codes.NotFound, "gone")),
		`topic "t" does not exist`,
	)
	boom := errors.New("boom")
	assert.ErrorIs(t, describeLookupErr("subscription", "s", boom), boom)
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher("t"))
	assert.ErrorIs(t, c.Ping(context.Background()), errClientNotInitialized)
	assert.NoError(t, c.Close())
}
