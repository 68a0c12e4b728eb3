// Package metrics holds the prometheus collectors of the mail pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Deliveries counts inbound ingestion calls by result (committed, aborted).
	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "koordinator_mail_deliveries_total",
		Help: "Inbound ingestion calls by result.",
	}, []string{"result"})

	// Copies counts persisted mailbox copies of inbound messages.
	Copies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "koordinator_mail_copies_total",
		Help: "Mailbox copies persisted by ingestion.",
	})

	// Undeliverable counts envelope recipients that resolved to no account.
	Undeliverable = promauto.NewCounter(prometheus.CounterOpts{
		Name: "koordinator_mail_undeliverable_recipients_total",
		Help: "Envelope recipients without a local account.",
	})

	// Attachments counts attachment decisions by outcome.
	Attachments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "koordinator_mail_attachments_total",
		Help: "Attachment decisions by outcome.",
	}, []string{"outcome"})

	// Sends counts outbound transmissions by result (transmitted, failed).
	Sends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "koordinator_mail_sends_total",
		Help: "Outbound transmissions by result.",
	}, []string{"result"})

	// DecodeFailures counts MIME parts skipped because they could not be decoded.
	DecodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "koordinator_mail_decode_failures_total",
		Help: "MIME parts skipped during parsing.",
	})
)
