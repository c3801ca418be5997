package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/i474232898/basin-data-api/internal/resilience"
)

// Model maps a scaled window of shape [W, F] to the next scaled target
// value.
type Model interface {
	Predict(ctx context.Context, window [][]float64) (float64, error)
}

// LinearModel is a linear head over the most recent feature vector.
type LinearModel struct {
	weights []float64
	bias    float64
}

func NewLinearModel(weights []float64, bias float64) *LinearModel {
	return &LinearModel{weights: weights, bias: bias}
}

func (m *LinearModel) Predict(_ context.Context, window [][]float64) (float64, error) {
	if len(window) == 0 {
		return 0, errors.New("linear model: empty window")
	}
	last := window[len(window)-1]
	if len(last) != len(m.weights) {
		return 0, fmt.Errorf("linear model: vector has %d features, want %d", len(last), len(m.weights))
	}

	y := m.bias
	for i, w := range m.weights {
		y += w * last[i]
	}
	return y, nil
}

// RemoteModel calls a TensorFlow-Serving style REST predict endpoint.
type RemoteModel struct {
	endpoint string
	httpCfg  resilience.HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
}

func NewRemoteModel(client *http.Client, endpoint string) *RemoteModel {
	return &RemoteModel{
		endpoint: endpoint,
		httpCfg: resilience.HTTPClientConfig{
			Client:  client,
			Backoff: resilience.DefaultBackoff,
		},
		circuit: resilience.NewBreaker("model-inference"),
	}
}

type predictRequest struct {
	Instances [][][]float64 `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float64 `json:"predictions"`
}

func (m *RemoteModel) Predict(ctx context.Context, window [][]float64) (float64, error) {
	body, err := json.Marshal(predictRequest{Instances: [][][]float64{window}})
	if err != nil {
		return 0, fmt.Errorf("encode predict request: %w", err)
	}

	resp, err := resilience.Do(ctx, m.httpCfg, m.circuit, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, m.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return 0, fmt.Errorf("predict: %w", err)
	}
	defer resp.Body.Close()

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode predict response: %w", err)
	}
	if len(out.Predictions) == 0 || len(out.Predictions[0]) == 0 {
		return 0, errors.New("predict: empty predictions")
	}
	return out.Predictions[0][0], nil
}
