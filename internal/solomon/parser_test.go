package solomon

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleInstance = `C101

VEHICLE
NUMBER     CAPACITY
  25         200

CUSTOMER
CUST NO.  XCOORD.   YCOORD.    DEMAND   READY TIME  DUE DATE   SERVICE TIME

    0      40         50          0          0       1236          0
    1      45         68         10        912        967         90
    2      45         70         30        825        870         90
`

func TestParse_SampleInstance(t *testing.T) {
	got, err := Parse(strings.NewReader(sampleInstance))
	require.NoError(t, err)

	require.Len(t, got.Vehicles, 25)
	assert.Equal(t, 200, got.Vehicles[0].Capacity)
	assert.Equal(t, 24, got.Vehicles[24].ID)
	assert.Equal(t, 0, got.Depot)

	require.Len(t, got.Customers, 3)
	depot := got.Customers[0]
	assert.Equal(t, 0, depot.ID)
	assert.Equal(t, 40, depot.X)
	assert.Equal(t, 1236, depot.DueDate)
	assert.Equal(t, 0, depot.Demand)

	c2 := got.Customers[2]
	assert.Equal(t, 2, c2.ID)
	assert.Equal(t, 30, c2.Demand)
	assert.Equal(t, 825, c2.ReadyTime)
	assert.Equal(t, 870, c2.DueDate)
	assert.Equal(t, 90, c2.ServiceTime)
}

func TestParse_SkipsMalformedRows(t *testing.T) {
	in := sampleInstance + "\nnot a customer row\n3 1 2\n"
	got, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	assert.Len(t, got.Customers, 3)
}

func TestParse_MissingHeader(t *testing.T) {
	_, err := Parse(strings.NewReader("just\noneline\n"))
	require.Error(t, err)
}

func TestParse_BadHeader(t *testing.T) {
	in := "C101\n\nVEHICLE\nNUMBER CAPACITY\n25 two_hundred\n\n\n\n\n 0 40 50 0 0 1236 0\n"
	_, err := Parse(strings.NewReader(in))
	require.Error(t, err)
}

func TestParse_NoCustomers(t *testing.T) {
	in := "C101\n\nVEHICLE\nNUMBER CAPACITY\n25 200\n"
	_, err := Parse(strings.NewReader(in))
	require.Error(t, err)
}
