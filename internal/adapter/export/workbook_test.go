package export

import (
	"bytes"
	"testing"

	"procurement-core/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestComparisonWorkbook(t *testing.T) {
	score := 8.5
	req := &entity.Request{
		ID:                   "0123456789abcdef01234567",
		Title:                "Laptops",
		Budget:               50000,
		DeliveryDeadlineDays: 30,
		Status:               entity.StatusProposalsReceived,
		LineItems:            []entity.LineItem{{ItemType: "laptop", Quantity: 20, Specs: "16GB"}},
	}
	proposals := []entity.Proposal{
		{VendorID: "v1", VendorName: "Acme", TotalPrice: 42000, Currency: "USD", DeliveryDays: 21, AIScore: &score, AISummary: "good"},
		{VendorID: "v2", TotalPrice: 45000, Currency: "USD"},
	}

	b, err := ComparisonWorkbook(req, proposals, "Go with Acme.")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(ComparisonSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Vendor", rows[0][1])
	assert.Equal(t, []string{"1", "Acme", "42000", "USD", "21", "0", "", "8.5", "good"}, rows[1])
	assert.Equal(t, "v2", rows[2][1])

	title, err := f.GetCellValue(RequestSheet, "B1")
	require.NoError(t, err)
	assert.Equal(t, "Laptops", title)

	rec, err := f.GetCellValue(RequestSheet, "B7")
	require.NoError(t, err)
	assert.Equal(t, "Go with Acme.", rec)

	item, err := f.GetCellValue(RequestSheet, "A10")
	require.NoError(t, err)
	assert.Equal(t, "laptop", item)
}
