package types

import (
	"time"

	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Diagnostic is a non-fatal condition recorded during a run.
type Diagnostic struct {
	Code    errors.ErrorCode `json:"code" yaml:"code"`
	Time    time.Time        `json:"time" yaml:"time"`
	Message string           `json:"message" yaml:"message"`
}

func NewDiagnostic(code errors.ErrorCode, t time.Time, message string) Diagnostic {
	return Diagnostic{Code: code, Time: t, Message: message}
}

// MarshalYAML writes the code by name so stats files stay readable.
func (d Diagnostic) MarshalYAML() (any, error) {
	return struct {
		Code    string    `yaml:"code"`
		Time    time.Time `yaml:"time,omitempty"`
		Message string    `yaml:"message"`
	}{d.Code.String(), d.Time, d.Message}, nil
}

func (d *Diagnostic) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Code    string    `yaml:"code"`
		Time    time.Time `yaml:"time"`
		Message string    `yaml:"message"`
	}

	if err := value.Decode(&raw); err != nil {
		return err
	}

	*d = Diagnostic{Code: errors.ParseErrorCode(raw.Code), Time: raw.Time, Message: raw.Message}

	return nil
}
