package worker

// stock_alert_worker.go
// Processes QueueStockAlert jobs: emails ALERT_EMAIL_TO when a completed sale
// leaves a product at or below its alert quantity.

import (
	"context"
	"encoding/json"
	"fmt"

	"eventpos/internal/infra"

	"github.com/rs/zerolog/log"
)

// Mailer is the outbound email capability used by job handlers.
type Mailer interface {
	Send(to, subject, body string, attachments ...string) error
}

// StockAlertPayload is the job envelope sent to QueueStockAlert.
type StockAlertPayload struct {
	ProductID         int64  `json:"product_id"`
	ProductCode       string `json:"product_code"`
	ProductName       string `json:"product_name"`
	CurrentQuantity   int    `json:"current_quantity"`
	AlertQuantity     int    `json:"alert_quantity"`
	TransactionNumber string `json:"transaction_number"`
}

type StockAlertWorker struct {
	mailer Mailer
	to     string
}

func NewStockAlertWorker(mailer Mailer, to string) *StockAlertWorker {
	return &StockAlertWorker{mailer: mailer, to: to}
}

func (w *StockAlertWorker) Process(_ context.Context, raw json.RawMessage) error {
	var p StockAlertPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Permanent(fmt.Errorf("stock_alert: invalid payload: %w", err))
	}
	if w.to == "" {
		log.Warn().Int64("product_id", p.ProductID).Msg("stock_alert: ALERT_EMAIL_TO empty, skipping")
		return nil
	}

	subject := fmt.Sprintf("Low stock: %s (%s)", p.ProductName, p.ProductCode)
	body := fmt.Sprintf(
		"Product %s (%s) is at %d units, alert threshold %d.\nLast sale: %s\n",
		p.ProductName, p.ProductCode, p.CurrentQuantity, p.AlertQuantity, p.TransactionNumber,
	)
	if err := w.mailer.Send(w.to, subject, body); err != nil {
		return sendErr("stock_alert", err)
	}
	log.Info().Int64("product_id", p.ProductID).Str("to", w.to).Msg("stock_alert: alert sent")
	return nil
}

// sendErr marks relay rejections permanent so the job goes straight to the DLQ.
func sendErr(job string, err error) error {
	err = fmt.Errorf("%s: send: %w", job, err)
	if infra.IsMessageRejected(err) {
		return Permanent(err)
	}
	return err
}
