package metrics

import (
	"os"
	"path/filepath"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/suite"
)

type MetricsTestSuite struct {
	suite.Suite
}

func TestMetricsSuite(t *testing.T) {
	suite.Run(t, new(MetricsTestSuite))
}

func (suite *MetricsTestSuite) counterValue(counter interface{ Write(*dto.Metric) error }) float64 {
	m := &dto.Metric{}
	suite.Require().NoError(counter.Write(m))

	return m.GetCounter().GetValue()
}

func (suite *MetricsTestSuite) TestFillsTotal() {
	before := suite.counterValue(FillsTotal.WithLabelValues("buy"))
	FillsTotal.WithLabelValues("buy").Inc()
	suite.Equal(before+1, suite.counterValue(FillsTotal.WithLabelValues("buy")))
}

func (suite *MetricsTestSuite) TestWriteTextfile() {
	RunsTotal.WithLabelValues("completed").Inc()

	path := filepath.Join(suite.T().TempDir(), "backtest.prom")
	suite.Require().NoError(WriteTextfile(path))

	data, err := os.ReadFile(path)
	suite.Require().NoError(err)
	suite.Contains(string(data), "argo_backtest_runs_total")
}
