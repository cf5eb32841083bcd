package memutils

import (
	"testing"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/stretchr/testify/require"
)

func TestCheckPow2(t *testing.T) {
	require.NoError(t, CheckPow2(1, "one"))
	require.NoError(t, CheckPow2(uint(256), "two fifty six"))

	err := CheckPow2(12, "twelve")
	require.ErrorIs(t, err, PowerOfTwoError)
	require.Contains(t, err.Error(), "twelve is 12")
}

var alignTestCases = map[string]struct {
	Value     int
	Alignment int
	Expected  int
}{
	"AlreadyAligned": {Value: 64, Alignment: 16, Expected: 64},
	"RoundUp":        {Value: 65, Alignment: 16, Expected: 80},
	"Zero":           {Value: 0, Alignment: 4, Expected: 0},
	"MinimumFour":    {Value: 3, Alignment: 4, Expected: 4},
}

func TestAlignUpAny(t *testing.T) {
	for name, testCase := range alignTestCases {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, testCase.Expected, AlignUpAny(testCase.Value, testCase.Alignment))
		})
	}
}

func TestAlignUpAny_NonPow2(t *testing.T) {
	require.Equal(t, 12, AlignUpAny(10, 12))
	require.Equal(t, 24, AlignUpAny(13, 12))
	require.Equal(t, 7, AlignUpAny(7, 1))
	require.Equal(t, 7, AlignUpAny(7, 0))
}

func TestLeastCommonMultiple(t *testing.T) {
	testCases := map[string]struct {
		Left     int
		Right    int
		Expected int
	}{
		"Equal":         {Left: 4, Right: 4, Expected: 4},
		"Divisor":       {Left: 4, Right: 16, Expected: 16},
		"SmallerBlock":  {Left: 4, Right: 1, Expected: 4},
		"SixByteBlock":  {Left: 4, Right: 6, Expected: 12},
		"TwelveByte":    {Left: 4, Right: 12, Expected: 12},
		"Coprime":       {Left: 4, Right: 3, Expected: 12},
		"ZeroAlignment": {Left: 4, Right: 0, Expected: 4},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, testCase.Expected, LeastCommonMultiple(testCase.Left, testCase.Right))
			require.Equal(t, testCase.Expected, LeastCommonMultiple(testCase.Right, testCase.Left))
		})
	}
}

func TestDetailedStatistics_PrintJson(t *testing.T) {
	var stats DetailedStatistics
	stats.Clear()
	stats.BlockCount = 1
	stats.BlockBytes = 1024
	stats.AddAllocation(100)
	stats.AddAllocation(300)
	stats.AddUnusedRange(624)

	writer := jwriter.NewWriter()
	obj := writer.Object()
	stats.PrintJson(&obj)
	obj.End()

	require.JSONEq(t, `{
		"BlockCount": 1,
		"BlockBytes": 1024,
		"AllocationCount": 2,
		"AllocationBytes": 400,
		"UnusedRangeCount": 1,
		"AllocationSizeMin": 100,
		"AllocationSizeMax": 300
	}`, string(writer.Bytes()))
}
