// Package export produces the agreement register spreadsheet that legal
// operations circulates to management.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/legalworks/docflow/internal/application/port"
	"github.com/legalworks/docflow/internal/application/workflow"
	"github.com/legalworks/docflow/internal/domain/entity"
)

// RegisterExporter writes agreement overviews to an Excel workbook
type RegisterExporter struct {
	agreements port.AgreementRepository
	outputDir  string
	logger     *zap.Logger
}

// NewRegisterExporter creates a new register exporter
func NewRegisterExporter(agreements port.AgreementRepository, outputDir string, logger *zap.Logger) *RegisterExporter {
	return &RegisterExporter{
		agreements: agreements,
		outputDir:  outputDir,
		logger:     logger,
	}
}

var registerHeaders = []string{
	"ID", "Title", "Requester", "Division", "Status", "Progress %",
	"Submitted", "Completed", "Reject Reason",
}

// Export writes the register to a timestamped file and returns its path.
// An empty status exports everything.
func (e *RegisterExporter) Export(ctx context.Context, status string) (string, error) {
	agreements, err := e.listAgreements(ctx, status)
	if err != nil {
		return "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetName(sheet, "Agreements"); err != nil {
		return "", fmt.Errorf("failed to rename sheet: %w", err)
	}
	sheet = "Agreements"

	for col, header := range registerHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return "", fmt.Errorf("failed to build header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return "", fmt.Errorf("failed to write header: %w", err)
		}
	}

	for i, agr := range agreements {
		row := i + 2
		values := []interface{}{
			agr.ID,
			agr.Title,
			agr.RequesterName,
			agr.Division,
			agr.Status,
			workflow.ProgressPercent(agr.Status),
			formatTime(agr.SubmittedAt),
			formatTime(agr.CompletedAt),
			agr.RejectReason,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return "", fmt.Errorf("failed to build cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return "", fmt.Errorf("failed to write cell: %w", err)
			}
		}
	}

	if err := os.MkdirAll(e.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	filename := fmt.Sprintf("agreement_register_%s.xlsx", time.Now().Format("20060102_150405"))
	outputPath := filepath.Join(e.outputDir, filename)
	if err := f.SaveAs(outputPath); err != nil {
		e.logger.Error("Failed to save register", zap.String("path", outputPath), zap.Error(err))
		return "", fmt.Errorf("failed to save register: %w", err)
	}

	e.logger.Info("Agreement register exported",
		zap.String("path", outputPath),
		zap.Int("rows", len(agreements)),
		zap.String("status_filter", status))
	return outputPath, nil
}

func (e *RegisterExporter) listAgreements(ctx context.Context, status string) ([]*entity.AgreementOverview, error) {
	if status != "" {
		agreements, err := e.agreements.ListByStatus(ctx, status)
		if err != nil {
			return nil, fmt.Errorf("failed to list agreements: %w", err)
		}
		return agreements, nil
	}

	// Page through everything.
	const pageSize = 200
	var all []*entity.AgreementOverview
	for offset := 0; ; offset += pageSize {
		page, err := e.agreements.List(ctx, pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to list agreements: %w", err)
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
