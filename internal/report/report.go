// Package report renders assessment results into exportable workbook
// artifacts. Rendering failures never fail the owning job.
package report

import (
	"fmt"
	"math"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Icestreamm/baseer-backend/internal/domain/assessment"
)

// Renderer produces an invoice workbook and a model-analysis workbook.
type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

// Invoice renders the customer-facing cost breakdown.
func (r *Renderer) Invoice(req assessment.Request, breakdown assessment.CostBreakdown) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Invoice"
	f.SetSheetName(f.GetSheetName(0), sheet)
	_ = f.SetColWidth(sheet, "A", "A", 34)
	_ = f.SetColWidth(sheet, "B", "C", 18)

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 13}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	_ = f.SetCellValue(sheet, "A1", "Repair Cost Invoice")
	_ = f.SetCellStyle(sheet, "A1", "A1", header)
	_ = f.SetCellValue(sheet, "A2", "Assessment")
	_ = f.SetCellValue(sheet, "B2", req.ID.String())
	_ = f.SetCellValue(sheet, "A3", "Vehicle")
	_ = f.SetCellValue(sheet, "B3", vehicleTitle(req))
	_ = f.SetCellValue(sheet, "A4", "Date")
	_ = f.SetCellValue(sheet, "B4", time.Now().Format("2006-01-02"))

	row := 6
	_ = f.SetCellValue(sheet, cell("A", row), "Photo")
	_ = f.SetCellValue(sheet, cell("B", row), "Paint area (cm²)")
	_ = f.SetCellValue(sheet, cell("C", row), "Paint cost (base)")
	_ = f.SetCellStyle(sheet, cell("A", row), cell("C", row), header)
	row++

	for _, p := range breakdown.PaintCosts {
		_ = f.SetCellValue(sheet, cell("A", row), p.PhotoNum)
		_ = f.SetCellValue(sheet, cell("B", row), round1(p.AreaCm2))
		_ = f.SetCellValue(sheet, cell("C", row), round2(p.Cost))
		row++
	}
	row++

	lines := []struct {
		label string
		value float64
	}{
		{"Paint total", breakdown.PaintTotal},
		{"Light replacement", breakdown.LightCost},
		{"Windshield replacement", breakdown.WindshieldCost},
		{"Tire replacement", breakdown.TireCost},
		{"Subtotal (base currency)", breakdown.Subtotal},
		{"Subtotal (local)", breakdown.SubtotalLocal},
		{fmt.Sprintf("Tax (%.2f%%)", breakdown.TaxRate*100), breakdown.TaxAmount},
		{"Subtotal post tax", breakdown.PostTaxSubtotal},
		{"Luxury index", breakdown.LuxuryIndex},
		{"Country factor", breakdown.CountryFactor},
	}
	for _, l := range lines {
		_ = f.SetCellValue(sheet, cell("A", row), l.label)
		_ = f.SetCellValue(sheet, cell("B", row), round2(l.value))
		row++
	}

	_ = f.SetCellValue(sheet, cell("A", row), fmt.Sprintf("TOTAL (%s)", breakdown.Currency))
	_ = f.SetCellValue(sheet, cell("B", row), round2(breakdown.FinalCost))
	_ = f.SetCellStyle(sheet, cell("A", row), cell("B", row), header)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write invoice workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Analysis renders the per-photo detection detail used for auditing: scale
// sources, consensus items, and the side-by-side damage-model areas.
func (r *Renderer) Analysis(req assessment.Request, results []assessment.PhotoResult, modelTotals map[string]float64, consensusAreaCm2 float64) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Analysis"
	f.SetSheetName(f.GetSheetName(0), sheet)
	_ = f.SetColWidth(sheet, "A", "G", 20)

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	_ = f.SetCellValue(sheet, "A1", "Damage Analysis")
	_ = f.SetCellValue(sheet, "A2", "Assessment")
	_ = f.SetCellValue(sheet, "B2", req.ID.String())
	_ = f.SetCellValue(sheet, "A3", "Consensus damage (cm²)")
	_ = f.SetCellValue(sheet, "B3", round1(consensusAreaCm2))

	row := 5
	_ = f.SetCellValue(sheet, cell("A", row), "Model")
	_ = f.SetCellValue(sheet, cell("B", row), "Raw damage area (cm²)")
	_ = f.SetCellStyle(sheet, cell("A", row), cell("B", row), header)
	row++
	for model, area := range modelTotals {
		_ = f.SetCellValue(sheet, cell("A", row), model)
		_ = f.SetCellValue(sheet, cell("B", row), round1(area))
		row++
	}
	row++

	_ = f.SetCellValue(sheet, cell("A", row), "Photo")
	_ = f.SetCellValue(sheet, cell("B", row), "Scale source")
	_ = f.SetCellValue(sheet, cell("C", row), "cm/px")
	_ = f.SetCellValue(sheet, cell("D", row), "Consensus items")
	_ = f.SetCellValue(sheet, cell("E", row), "Paint area (cm²)")
	_ = f.SetCellValue(sheet, cell("F", row), "Flags")
	_ = f.SetCellStyle(sheet, cell("A", row), cell("F", row), header)
	row++

	for _, p := range results {
		_ = f.SetCellValue(sheet, cell("A", row), p.PhotoNum)
		_ = f.SetCellValue(sheet, cell("B", row), string(p.Scale.Source))
		_ = f.SetCellValue(sheet, cell("C", row), p.Scale.CmPerPx)
		_ = f.SetCellValue(sheet, cell("D", row), len(p.Items))
		_ = f.SetCellValue(sheet, cell("E", row), round1(p.PaintAreaCm2))
		_ = f.SetCellValue(sheet, cell("F", row), flagText(p.Flags))
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write analysis workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func vehicleTitle(req assessment.Request) string {
	title := req.CarMake
	if req.CarModel != "" {
		if title != "" {
			title += " "
		}
		title += req.CarModel
	}
	if req.CarYear != 0 {
		title = fmt.Sprintf("%s %d", title, req.CarYear)
	}
	if title == "" {
		title = "Unknown vehicle"
	}
	return title
}

func flagText(f assessment.ComponentFlags) string {
	out := ""
	if f.Windshield {
		out += "windshield "
	}
	if f.Light {
		out += "light "
	}
	if f.Tire {
		out += "tire"
	}
	if out == "" {
		return "-"
	}
	return out
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
