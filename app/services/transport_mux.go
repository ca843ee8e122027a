// Package services provides external service integrations and technical concerns like transports and tokens
package services

import "context"

// TransportMux routes each send to the client of its channel. The SMS gateway
// and the WhatsApp API are separate providers with separate credentials, so
// production deployments compose them behind one adapter.
type TransportMux struct {
	sms      TransportAdapter
	whatsapp TransportAdapter
}

// NewTransportMux creates a transport adapter that delegates SMS sends to sms
// and WhatsApp sends to whatsapp.
func NewTransportMux(sms, whatsapp TransportAdapter) *TransportMux {
	return &TransportMux{
		sms:      sms,
		whatsapp: whatsapp,
	}
}

func (t *TransportMux) SendSMS(ctx context.Context, sender, receiver, body string) SendResult {
	return t.sms.SendSMS(ctx, sender, receiver, body)
}

func (t *TransportMux) SendWhatsApp(ctx context.Context, receiver, templateName string, variables []string, ownerLogin string) SendResult {
	return t.whatsapp.SendWhatsApp(ctx, receiver, templateName, variables, ownerLogin)
}
