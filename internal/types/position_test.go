package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
)

type PositionTestSuite struct {
	suite.Suite
}

func TestPositionSuite(t *testing.T) {
	suite.Run(t, new(PositionTestSuite))
}

func (suite *PositionTestSuite) TestSideDirection() {
	suite.Equal(1.0, SideBuy.Direction())
	suite.Equal(-1.0, SideSell.Direction())
}

func (suite *PositionTestSuite) TestSideIsValid() {
	suite.True(SideBuy.IsValid())
	suite.True(SideSell.IsValid())
	suite.False(Side("LONG").IsValid())
	suite.False(Side("").IsValid())
}

func (suite *PositionTestSuite) TestPositionStatusIsClosed() {
	suite.False(PositionStatusOpen.IsClosed())
	suite.True(PositionStatusClosed.IsClosed())
	suite.True(PositionStatusClosedAtCutoff.IsClosed())
}

func (suite *PositionTestSuite) TestOpenPosition() {
	entryTime := time.Date(2024, 6, 14, 10, 15, 0, 0, time.UTC)
	pos := Position{
		PositionID:  "pos-1",
		EntryNodeID: "entry-buy-ce",
		ReEntryNum:  0,
		Symbol:      "NIFTY",
		Side:        SideBuy,
		EntryTime:   entryTime,
		EntryPrice:  22500.0,
		Quantity:    50,
		Multiplier:  1,
		Scale:       1,
		Status:      PositionStatusOpen,
	}

	suite.True(pos.IsOpen())
	suite.True(pos.ExitTime.IsNone())
	suite.True(pos.ExitPrice.IsNone())
	suite.True(pos.PnL.IsNone())
}

func (suite *PositionTestSuite) TestClosedPosition() {
	entryTime := time.Date(2024, 6, 14, 10, 15, 0, 0, time.UTC)
	exitTime := entryTime.Add(25 * time.Minute)
	pos := Position{
		PositionID:  "pos-2",
		EntryNodeID: "entry-buy-ce",
		ReEntryNum:  1,
		Symbol:      "NIFTY",
		Side:        SideSell,
		EntryTime:   entryTime,
		EntryPrice:  22510.0,
		Quantity:    50,
		Multiplier:  1,
		Scale:       1,
		ExitTime:    optional.Some(exitTime),
		ExitPrice:   optional.Some(22460.0),
		ExitNodeID:  "exit-1",
		PnL:         optional.Some(2500.0),
		Status:      PositionStatusClosed,
	}

	suite.False(pos.IsOpen())

	gotExit, err := pos.ExitTime.Take()
	suite.NoError(err)
	suite.True(gotExit.After(pos.EntryTime))
}

func (suite *PositionTestSuite) TestPositionJSONOmitsUnsetExitFields() {
	pos := Position{
		PositionID:  "pos-3",
		EntryNodeID: "entry-1",
		Symbol:      "NIFTY",
		Side:        SideBuy,
		EntryTime:   time.Date(2024, 6, 14, 10, 15, 0, 0, time.UTC),
		EntryPrice:  100,
		Quantity:    1,
		Multiplier:  1,
		Scale:       1,
		Status:      PositionStatusOpen,
	}

	raw, err := json.Marshal(pos)
	suite.NoError(err)
	suite.NotContains(string(raw), "exit_time")
	suite.NotContains(string(raw), "exit_price")
	suite.NotContains(string(raw), `"pnl"`)
}

func (suite *PositionTestSuite) TestTriggerSnapshot() {
	snap := TriggerSnapshot{
		NodeID:  "signal-1",
		Time:    time.Date(2024, 6, 14, 10, 15, 0, 0, time.UTC),
		Summary: "rsi_14[-1] (28.43) < 30",
		Values: map[string]float64{
			"rsi_14[-1]": 28.43,
			"30":         30,
		},
	}

	suite.Equal("signal-1", snap.NodeID)
	suite.Len(snap.Values, 2)
	suite.Empty(snap.Degraded)
}
