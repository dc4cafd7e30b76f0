package strategy

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"gopkg.in/yaml.v3"
)

// decodeConfig overlays the YAML document on defaults, rejecting unknown keys, and validates the result.
// An empty document keeps the defaults.
func decodeConfig[T any](data []byte, defaults T) (T, error) {
	config := defaults

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return defaults, errors.Wrap(errors.ErrCodeStrategyConfigError, "failed to parse strategy config", err)
	}

	if err := validator.New().Struct(config); err != nil {
		return defaults, errors.Wrap(errors.ErrCodeStrategyConfigError, "invalid strategy config", err)
	}

	return config, nil
}

// ToJSONSchema converts a struct to a JSON schema
func ToJSONSchema[T any](t T) (string, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = true
	schema := r.Reflect(t)

	jsonSchemaBytes, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}

	return string(jsonSchemaBytes), nil
}
