package benchmark

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/flatscan/internal/scan"
)

func TestSuite(t *testing.T) {
	suite := NewSuite()
	assert.Empty(t, suite.benchmarks)

	suite.Add("test_benchmark", func(context.Context) error {
		time.Sleep(time.Millisecond)
		return nil
	})
	assert.Equal(t, []string{"test_benchmark"}, suite.Names())
}

func TestSuiteRun(t *testing.T) {
	ctx := context.Background()
	suite := NewSuite()
	suite.Add("success_test", func(context.Context) error {
		time.Sleep(time.Millisecond)
		return nil
	})
	calls := 0
	suite.Add("error_test", func(context.Context) error {
		calls++
		return errors.New("test error")
	})

	result := suite.Run(ctx, "success_test", 5)
	assert.Equal(t, "success_test", result.Name)
	assert.Equal(t, 5, result.Iterations)
	assert.Empty(t, result.Err)
	assert.GreaterOrEqual(t, result.Min, time.Millisecond)
	assert.LessOrEqual(t, result.Min, result.P95)
	assert.LessOrEqual(t, result.P95, result.Max)
	assert.GreaterOrEqual(t, result.Avg(), result.Min)

	result = suite.Run(ctx, "error_test", 3)
	assert.Equal(t, 1, calls, "a failing benchmark stops after the first error")
	assert.Equal(t, 1, result.Iterations)
	assert.Contains(t, result.Err, "test error")
	assert.Contains(t, result.String(), "ERROR")

	result = suite.Run(ctx, "non_existent", 1)
	assert.Contains(t, result.Err, "not found")

	result = suite.Run(ctx, "success_test", 0)
	assert.Contains(t, result.Err, "positive")
}

func TestSuiteRunAllAndWrite(t *testing.T) {
	suite := NewSuite()
	suite.Add("a", func(context.Context) error { return nil })
	suite.Add("b", func(context.Context) error { return nil })

	results := suite.RunAll(context.Background(), 2)
	require.Len(t, results, 2)
	assert.Equal(t, results, suite.Results())

	var text bytes.Buffer
	require.NoError(t, suite.WriteText(&text))
	assert.Contains(t, text.String(), "a: 2 iterations")

	var js bytes.Buffer
	require.NoError(t, suite.WriteJSON(&js))
	var decoded []Result
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Len(t, decoded, 2)
}

func TestNewScanSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("renders every scenario")
	}
	svc, err := scan.NewBuilder().Build()
	require.NoError(t, err)

	suite, err := NewScanSuite(svc)
	require.NoError(t, err)
	assert.Contains(t, suite.Names(), "rectify_keystone")
	assert.Contains(t, suite.Names(), "filters_enhance:adaptive_bw")

	for _, r := range suite.RunAll(context.Background(), 1) {
		assert.Empty(t, r.Err, r.Name)
		assert.Equal(t, 1, r.Iterations, r.Name)
	}
}
