package export

import (
	"fmt"

	"procurement-core/internal/domain/entity"

	"github.com/xuri/excelize/v2"
)

const (
	ComparisonSheet = "Comparison"
	RequestSheet    = "Request"
)

var comparisonHeader = []any{
	"Rank", "Vendor", "Total Price", "Currency", "Delivery Days",
	"Warranty Months", "Payment Terms", "AI Score", "AI Summary",
}

// ComparisonWorkbook renders ranked proposals and the request they answer as an XLSX file.
func ComparisonWorkbook(req *entity.Request, proposals []entity.Proposal, recommendation string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ComparisonSheet); err != nil {
		return nil, err
	}
	if err := writeComparison(f, proposals); err != nil {
		return nil, fmt.Errorf("comparison sheet: %w", err)
	}
	if _, err := f.NewSheet(RequestSheet); err != nil {
		return nil, err
	}
	if err := writeRequest(f, req, recommendation); err != nil {
		return nil, fmt.Errorf("request sheet: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeComparison(f *excelize.File, proposals []entity.Proposal) error {
	if err := f.SetSheetRow(ComparisonSheet, "A1", &comparisonHeader); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(ComparisonSheet, "A1", "I1", bold); err != nil {
		return err
	}

	for i, p := range proposals {
		vendor := p.VendorName
		if vendor == "" {
			vendor = p.VendorID
		}
		var score any = ""
		if p.AIScore != nil {
			score = *p.AIScore
		}
		row := []any{
			i + 1, vendor, p.TotalPrice, p.Currency, p.DeliveryDays,
			p.WarrantyMonths, p.PaymentTerms, score, p.AISummary,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(ComparisonSheet, cell, &row); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(ComparisonSheet, "B", "B", 28); err != nil {
		return err
	}
	return f.SetColWidth(ComparisonSheet, "G", "I", 40)
}

func writeRequest(f *excelize.File, req *entity.Request, recommendation string) error {
	rows := [][]any{
		{"Title", req.Title},
		{"Request ID", req.ID},
		{"Status", string(req.Status)},
		{"Budget", req.Budget},
		{"Delivery Deadline (days)", req.DeliveryDeadlineDays},
		{"Payment Terms", req.PaymentTerms},
		{"Recommendation", recommendation},
		{},
		{"Item Type", "Quantity", "Specs"},
	}
	for _, item := range req.LineItems {
		rows = append(rows, []any{item.ItemType, item.Quantity, item.Specs})
	}

	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(RequestSheet, cell, &rows[i]); err != nil {
			return err
		}
	}
	return f.SetColWidth(RequestSheet, "A", "A", 26)
}
