// Package reporting contiene los casos de uso de reportes: estado de cuenta por cliente.
package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tlotliso/sbm-api/internal/application/dto"
	"github.com/tlotliso/sbm-api/internal/application/usecase"
	"github.com/tlotliso/sbm-api/internal/domain/repository"
	"github.com/tlotliso/sbm-api/internal/domain/schema"
)

// StatementPDFGenerator puerto de salida para renderizar el estado de cuenta.
type StatementPDFGenerator interface {
	GenerateStatementPDF(ctx context.Context, st *dto.CustomerStatement) ([]byte, error)
}

// StatementUseCase arma el estado de cuenta de un cliente a partir de sus registros financieros.
type StatementUseCase struct {
	entities  *usecase.EntityService
	generator StatementPDFGenerator
	now       func() time.Time
}

// NewStatementUseCase construye el caso de uso.
func NewStatementUseCase(entities *usecase.EntityService, generator StatementPDFGenerator) *StatementUseCase {
	return &StatementUseCase{entities: entities, generator: generator, now: time.Now}
}

// BuildStatement reúne cliente, empresa y movimientos. NotFoundError si el cliente no es del usuario.
func (uc *StatementUseCase) BuildStatement(ctx context.Context, owner, customerID int64) (*dto.CustomerStatement, error) {
	customer, err := uc.entities.Get(ctx, schema.KindCustomer, customerID, owner)
	if err != nil {
		return nil, err
	}
	user, err := uc.entities.Get(ctx, schema.KindUser, owner, owner)
	if err != nil {
		return nil, fmt.Errorf("statement: obtener usuario: %w", err)
	}

	st := &dto.CustomerStatement{
		CustomerID:    customerID,
		GeneratedAt:   uc.now().UTC(),
		TotalInvoiced: decimal.Zero,
		Pending:       decimal.Zero,
	}
	st.CompanyName, _ = user.String("companyName")
	st.CustomerName, _ = customer.String("name")
	st.CustomerEmail, _ = customer.String("email")
	st.TotalSales, _ = customer.Decimal("totalSales")
	st.TotalPurchases, _ = customer.Decimal("totalPurchases")
	st.ComplaintCount, _ = customer.Int("complaintCount")

	filter := repository.ListFilter{
		Equals: map[string]any{"customerId": customerID},
		Limit:  repository.MaxListLimit,
	}
	for {
		page, err := uc.entities.List(ctx, schema.KindFinancialRecord, owner, filter)
		if err != nil {
			return nil, fmt.Errorf("statement: listar movimientos: %w", err)
		}
		for _, rec := range page {
			line := toLine(rec)
			st.Lines = append(st.Lines, line)
			if line.Type == schema.FinancialInvoice {
				st.TotalInvoiced = st.TotalInvoiced.Add(line.Amount)
				if line.Status != "paid" {
					st.Pending = st.Pending.Add(line.Amount)
				}
			}
		}
		if len(page) < filter.Limit {
			break
		}
		filter.Offset += filter.Limit
	}
	return st, nil
}

// DownloadStatementPDF genera el PDF del estado de cuenta y su nombre de archivo.
func (uc *StatementUseCase) DownloadStatementPDF(ctx context.Context, owner, customerID int64) (pdfBytes []byte, filename string, err error) {
	st, err := uc.BuildStatement(ctx, owner, customerID)
	if err != nil {
		return nil, "", err
	}
	pdfBytes, err = uc.generator.GenerateStatementPDF(ctx, st)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: generación fallida: %w", err)
	}
	filename = fmt.Sprintf("estado_cuenta_%d_%s.pdf", customerID, st.GeneratedAt.Format("20060102"))
	return pdfBytes, filename, nil
}

func toLine(rec schema.Record) dto.StatementLine {
	line := dto.StatementLine{ID: rec.ID()}
	line.Date, _ = rec.Time("date")
	line.Type, _ = rec.String("type")
	line.Status, _ = rec.String("status")
	line.Reference, _ = rec.String("reference")
	line.Description, _ = rec.String("description")
	line.Amount, _ = rec.Decimal("amount")
	return line
}
