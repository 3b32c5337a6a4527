//nolint:funlen // ok for tests
package analysis

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/trackdata-manager-go/pkg/model"
)

func lapFixture(driver string, lapNo int, laptimeMS int64) *model.Lap {
	return &model.Lap{SessionID: "s1", LapNo: lapNo, Driver: driver, LaptimeMS: laptimeMS}
}

func TestDetectLapOutliers(t *testing.T) {
	bundle := &model.Bundle{
		Laps: []*model.Lap{
			lapFixture("No.11", 1, 100000),
			lapFixture("No.11", 2, 100100),
			lapFixture("No.11", 3, 99900),
			lapFixture("No.11", 4, 100050),
			lapFixture("No.11", 5, 120000),
		},
	}
	events := DetectLapOutliers(bundle)
	require.Len(t, events, 1)

	outlier, ok := events[0].(*LapOutlier)
	require.True(t, ok)
	assert.Equal(t, "No.11", outlier.Driver)
	assert.Equal(t, 5, outlier.LapNo())
	assert.Equal(t, int64(120000), outlier.LaptimeMS)
	assert.Equal(t, 100050.0, outlier.MedianMS)
	assert.InDelta(t, 134.56, outlier.RobustZ, 0.01)
	assert.Equal(t, 1.0, outlier.Severity())
	assert.Equal(t, "Lap 5: 120000 ms vs median 100050 ms (robust_z=134.56)",
		outlier.Summary())
}

func TestDetectLapOutliersTooFewLaps(t *testing.T) {
	bundle := &model.Bundle{
		Laps: []*model.Lap{
			lapFixture("No.11", 1, 100000),
			lapFixture("No.11", 2, 300000),
		},
	}
	assert.Empty(t, DetectLapOutliers(bundle))
}

func TestDetectLapOutliersConstantTimes(t *testing.T) {
	bundle := &model.Bundle{
		Laps: []*model.Lap{
			lapFixture("No.11", 1, 100000),
			lapFixture("No.11", 2, 100000),
			lapFixture("No.11", 3, 100000),
			lapFixture("No.11", 4, 100000),
		},
	}
	assert.Empty(t, DetectLapOutliers(bundle))
}

func TestDetectLapOutliersIgnoresZeroLaptimes(t *testing.T) {
	bundle := &model.Bundle{
		Laps: []*model.Lap{
			lapFixture("No.11", 1, 100000),
			lapFixture("No.11", 2, 0),
			lapFixture("No.11", 3, 100000),
		},
	}
	// only two valid laps remain, below the sample minimum
	assert.Empty(t, DetectLapOutliers(bundle))
}

func TestDetectSectionOutliers(t *testing.T) {
	section := func(lapNo int, start, end int64) *model.Section {
		return &model.Section{
			SessionID: "s1", LapNo: lapNo, Name: model.SectionIM1,
			TStartMS: start, TEndMS: end,
		}
	}
	bundle := &model.Bundle{
		Laps: []*model.Lap{
			lapFixture("No.11", 1, 100000),
			lapFixture("No.11", 2, 100000),
			lapFixture("No.11", 3, 100000),
			lapFixture("No.11", 4, 100000),
		},
		Sections: []*model.Section{
			section(1, 0, 25000),
			section(2, 0, 25100),
			section(3, 0, 24900),
			section(4, 0, 40000),
		},
	}
	events := DetectSectionOutliers(bundle)
	require.Len(t, events, 1)

	outlier, ok := events[0].(*SectionOutlier)
	require.True(t, ok)
	assert.Equal(t, "No.11", outlier.Driver)
	assert.Equal(t, 4, outlier.LapNo())
	assert.Equal(t, model.SectionIM1, outlier.Section)
	assert.Equal(t, int64(40000), outlier.DurationMS)
	assert.Equal(t, 1.0, outlier.Severity())
}

func TestDetectSectionOutliersSkipsInvalid(t *testing.T) {
	bundle := &model.Bundle{
		Laps: []*model.Lap{lapFixture("No.11", 1, 100000)},
		Sections: []*model.Section{
			{SessionID: "s1", LapNo: 1, Name: "IM9", TStartMS: 0, TEndMS: 1000},
			{SessionID: "s1", LapNo: 1, Name: model.SectionIM1, TStartMS: 1000, TEndMS: 500},
			{SessionID: "s1", LapNo: 99, Name: model.SectionIM1, TStartMS: 0, TEndMS: 1000},
		},
	}
	assert.Empty(t, DetectSectionOutliers(bundle))
}

func TestDetectPositionChanges(t *testing.T) {
	lapAt := func(lapNo, pos int) *model.Lap {
		return &model.Lap{
			SessionID: "s1", LapNo: lapNo, Driver: "No.11",
			LaptimeMS: 100000, Position: lo.ToPtr(pos),
		}
	}
	bundle := &model.Bundle{
		Laps: []*model.Lap{lapAt(1, 3), lapAt(2, 3), lapAt(3, 2), lapAt(4, 5)},
	}
	events := DetectPositionChanges(bundle)
	require.Len(t, events, 2)

	gain, ok := events[0].(*PositionChange)
	require.True(t, ok)
	assert.Equal(t, 3, gain.LapNo())
	assert.Equal(t, -1, gain.Delta)
	assert.Equal(t, 0.2, gain.Severity())
	assert.Equal(t, "Position change -1 on lap 3", gain.Summary())

	loss, ok := events[1].(*PositionChange)
	require.True(t, ok)
	assert.Equal(t, 4, loss.LapNo())
	assert.Equal(t, 3, loss.Delta)
	assert.Equal(t, 5, loss.CurrPos)
	assert.Equal(t, 0.6, loss.Severity())
	assert.Equal(t, 3, loss.WindowSize)
}

func TestDetectPositionChangesDedupe(t *testing.T) {
	lapAt := func(lapNo, pos int) *model.Lap {
		return &model.Lap{
			SessionID: "s1", LapNo: lapNo, Driver: "No.11",
			LaptimeMS: 100000, Position: lo.ToPtr(pos),
		}
	}
	// duplicate lap rows for lap 2, equal severity, larger window movement wins
	bundle := &model.Bundle{
		Laps: []*model.Lap{lapAt(1, 5), lapAt(2, 3), lapAt(2, 1)},
	}
	events := DetectPositionChanges(bundle)
	require.Len(t, events, 1)

	change, ok := events[0].(*PositionChange)
	require.True(t, ok)
	assert.Equal(t, 2, change.LapNo())
	assert.Equal(t, 1, change.CurrPos)
	assert.Equal(t, 4, change.WindowSumAbs)
}

func TestTopRanking(t *testing.T) {
	lapAt := func(lapNo int, laptimeMS int64, pos int) *model.Lap {
		return &model.Lap{
			SessionID: "s1", LapNo: lapNo, Driver: "No.11",
			LaptimeMS: laptimeMS, Position: lo.ToPtr(pos),
		}
	}
	section := func(lapNo int, end int64) *model.Section {
		return &model.Section{
			SessionID: "s1", LapNo: lapNo, Name: model.SectionIM1,
			TStartMS: 0, TEndMS: end,
		}
	}
	bundle := &model.Bundle{
		Laps: []*model.Lap{
			lapAt(1, 100000, 3),
			lapAt(2, 100100, 3),
			lapAt(3, 99900, 2),
			lapAt(4, 100050, 5),
			lapAt(5, 120000, 5),
		},
		Sections: []*model.Section{
			section(1, 25000), section(2, 25100), section(3, 24900), section(4, 40000),
		},
	}

	top := Top(bundle, 3)
	require.Len(t, top, 3)
	// severity first, then the later lap, then kind
	assert.Equal(t, KindLapOutlier, top[0].Kind())
	assert.Equal(t, 5, top[0].LapNo())
	assert.Equal(t, KindSectionOutlier, top[1].Kind())
	assert.Equal(t, 4, top[1].LapNo())
	assert.Equal(t, KindPositionChange, top[2].Kind())
	assert.Equal(t, 4, top[2].LapNo())

	all := Top(bundle, 10)
	assert.Len(t, all, 4)
	assert.Equal(t, 3, all[3].LapNo())
}

func TestTopDedupesPerLapAndKind(t *testing.T) {
	mkLaps := func(driver string) []*model.Lap {
		return []*model.Lap{
			lapFixture(driver, 1, 100000),
			lapFixture(driver, 2, 100100),
			lapFixture(driver, 3, 99900),
			lapFixture(driver, 4, 100050),
			lapFixture(driver, 5, 120000),
		}
	}
	bundle := &model.Bundle{Laps: append(mkLaps("Alice"), mkLaps("Bob")...)}

	top := Top(bundle, 10)
	require.Len(t, top, 1)
	outlier, ok := top[0].(*LapOutlier)
	require.True(t, ok)
	// drivers are visited alphabetically and the sort is stable
	assert.Equal(t, "Alice", outlier.Driver)
	assert.Equal(t, 5, outlier.LapNo())
}
