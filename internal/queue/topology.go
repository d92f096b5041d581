package queue

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	AnalyticsExchange = "sabore.analytics"
	RefreshQueue      = "sabore.analytics.refresh"
	RefreshDLQ        = "sabore.analytics.refresh.dlq"

	ReportGeneratedRK  = "report.generated"
	RefreshRequestedRK = "report.refresh.requested"
	RefreshDeadRK      = "report.refresh.dead"
)

// EnsureAnalyticsTopology declares the analytics exchange, the refresh
// request queue and its dead-letter queue.
func EnsureAnalyticsTopology(qc *Client) error {
	if qc == nil {
		return nil
	}
	if err := qc.EnsureExchange(AnalyticsExchange, amqp.ExchangeTopic); err != nil {
		return err
	}

	if _, err := qc.EnsureQueue(RefreshDLQ, nil); err != nil {
		return err
	}
	if err := qc.BindQueue(RefreshDLQ, AnalyticsExchange, RefreshDeadRK); err != nil {
		return err
	}

	_, err := qc.EnsureQueue(RefreshQueue, amqp.Table{
		"x-dead-letter-exchange":    AnalyticsExchange,
		"x-dead-letter-routing-key": RefreshDeadRK,
	})
	if err != nil {
		return err
	}
	return qc.BindQueue(RefreshQueue, AnalyticsExchange, RefreshRequestedRK)
}
