package gateway

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propflow/models"
)

func TestDispatcherRoutesByChannel(t *testing.T) {
	email := NewMockSender("smtp")
	sms := NewMockSender("bulksms")
	d := NewDispatcher(email, sms, log.New(os.Stdout, "GATEWAY: ", log.LstdFlags))
	ctx := context.Background()

	_, err := d.Send(ctx, Message{Channel: models.ChannelEmail, To: "a@example.com"})
	require.NoError(t, err)
	_, err = d.Send(ctx, Message{Channel: models.ChannelSMS, To: "+27821234567"})
	require.NoError(t, err)

	assert.Len(t, email.SentMessages(), 1)
	assert.Len(t, sms.SentMessages(), 1)
}

func TestDispatcherWhatsAppFallsBackToSMS(t *testing.T) {
	email := NewMockSender("smtp")
	sms := NewMockSender("bulksms")
	d := NewDispatcher(email, sms, log.New(os.Stdout, "GATEWAY: ", log.LstdFlags))

	res, err := d.Send(context.Background(), Message{Channel: models.ChannelWhatsApp, To: "+27821234567"})
	require.NoError(t, err)
	assert.Equal(t, "bulksms", res.Provider)

	sent := sms.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, models.ChannelSMS, sent[0].Channel)
	assert.Empty(t, email.SentMessages())
}

func TestDispatcherUnknownChannel(t *testing.T) {
	d := NewDispatcher(NewMockSender("smtp"), NewMockSender("bulksms"), log.New(os.Stdout, "", 0))
	_, err := d.Send(context.Background(), Message{Channel: "carrier-pigeon"})
	assert.Error(t, err)
}
