package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/apple/pkl-go/pkl"
	"gopkg.in/yaml.v3"
)

// readPkl evaluates a PKL module into the file schema. The pkl CLI must be
// installed for evaluation to start.
func readPkl(ctx context.Context, path string) (*fileConfig, error) {
	evaluator, err := pkl.NewEvaluator(ctx, pkl.PreconfiguredOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create PKL evaluator: %w", err)
	}
	defer evaluator.Close()

	var fc fileConfig
	if err := evaluator.EvaluateModule(ctx, pkl.FileSource(path), &fc); err != nil {
		return nil, fmt.Errorf("failed to evaluate config %s: %w", path, err)
	}
	return &fc, nil
}

func readYAML(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return parseYAML(data)
}

func parseYAML(data []byte) (*fileConfig, error) {
	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &fc, nil
}
