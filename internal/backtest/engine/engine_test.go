package engine

import (
	"testing"

	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/stretchr/testify/suite"
)

type EngineTestSuite struct {
	suite.Suite
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func (suite *EngineTestSuite) TestStateConstants() {
	suite.Equal(State("initialized"), StateInitialized)
	suite.Equal(State("running"), StateRunning)
	suite.Equal(State("completed"), StateCompleted)
	suite.Equal(State("failed"), StateFailed)
}

func (suite *EngineTestSuite) TestOnProcessDataCallbackWithProgress() {
	var progress []int
	callback := OnProcessDataCallback(func(current int, total int) error {
		progress = append(progress, current)
		return nil
	})

	for i := 1; i <= 5; i++ {
		err := callback(i, 5)
		suite.NoError(err)
	}

	suite.Equal([]int{1, 2, 3, 4, 5}, progress)
}

func (suite *EngineTestSuite) TestLifecycleCallbacksDefaultToNil() {
	callbacks := LifecycleCallbacks{}

	suite.Nil(callbacks.OnRunStart)
	suite.Nil(callbacks.OnProcessData)
	suite.Nil(callbacks.OnDiagnostic)
	suite.Nil(callbacks.OnRunEnd)
}

func (suite *EngineTestSuite) TestOnRunEndCallbackReceivesResult() {
	var received *types.BacktestResult
	callback := OnRunEndCallback(func(result *types.BacktestResult, err error) {
		received = result
	})

	callback(&types.BacktestResult{ID: "run"}, nil)
	suite.Equal("run", received.ID)
}
