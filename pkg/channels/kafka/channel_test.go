package kafka_test

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/relay/pkg/channels/kafka"
	"github.com/dukex/relay/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateChannel_WithoutBrokers(t *testing.T) {
	for _, brokers := range [][]string{nil, {}, {""}} {
		pub, sub, err := kafka.CreateChannel(watermill.NopLogger{}, "relay", brokers)

		assert.ErrorIs(t, err, kafka.ErrNoBrokers)
		assert.Nil(t, pub)
		assert.Nil(t, sub)
	}
}

func TestPartitionKey(t *testing.T) {
	msg := message.NewMessage("1", []byte(`{}`))
	msg.Metadata.Set(events.EventMetadataKey, "contact-7")

	key, err := kafka.PartitionKey(events.Topic, msg)
	require.NoError(t, err)
	assert.Equal(t, "contact-7", key)
}
