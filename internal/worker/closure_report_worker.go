package worker

// closure_report_worker.go
// Processes QueueClosureReport jobs: renders the Z-report PDF of a closure
// and emails it to ALERT_EMAIL_TO.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"eventpos/internal/infra"
	"eventpos/internal/repository"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ClosureReportPayload is the job envelope sent to QueueClosureReport.
type ClosureReportPayload struct {
	ClosureID      int64 `json:"closure_id"`
	CashRegisterID int64 `json:"cash_register_id"`
}

type ClosureReportWorker struct {
	registers   repository.CashRegisterRepository
	mailer      Mailer
	to          string
	storagePath string
}

func NewClosureReportWorker(
	registers repository.CashRegisterRepository,
	mailer Mailer,
	to string,
	storagePath string,
) *ClosureReportWorker {
	return &ClosureReportWorker{registers: registers, mailer: mailer, to: to, storagePath: storagePath}
}

func (w *ClosureReportWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var p ClosureReportPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Permanent(fmt.Errorf("closure_report: invalid payload: %w", err))
	}

	closure, err := w.registers.FindClosureByID(ctx, p.ClosureID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Permanent(fmt.Errorf("closure_report: closure %d not found", p.ClosureID))
	}
	if err != nil {
		return err
	}
	reg, err := w.registers.FindByID(ctx, closure.CashRegisterID)
	if err != nil {
		return err
	}

	path, err := infra.GenerateClosureReportPDF(infra.ClosureReport{
		RegisterNumber: reg.RegisterNumber,
		RegisterName:   reg.Name,
		Closure:        closure,
	}, w.storagePath)
	if err != nil {
		return err
	}
	log.Info().Int64("closure_id", closure.ID).Str("path", path).Msg("closure_report: PDF generated")

	if w.to == "" {
		return nil
	}
	subject := fmt.Sprintf("Closure report: register %02d %s", reg.RegisterNumber, reg.Name)
	body := fmt.Sprintf("Closed %s. Total sales %s, cash difference %s.\n",
		closure.ClosingDate.Format("2006-01-02 15:04"),
		closure.TotalSalesAmount.StringFixed(2),
		closure.CashDifference.StringFixed(2),
	)
	if err := w.mailer.Send(w.to, subject, body, path); err != nil {
		return sendErr("closure_report", err)
	}
	return nil
}
