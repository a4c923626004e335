package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	EndpointUpload         = "/upload"
	EndpointColumns        = "/api/columns"
	EndpointChart          = "/api/grafico"
	EndpointVisualizations = "/api/visualizacoes_completas"
	EndpointGeoMap         = "/api/mapa_geografico"
)

// Client is the HTTP contract of the analytics engine. The engine owns all
// CSV parsing, column typing and chart computation.
type Client interface {
	Upload(ctx context.Context, filename string, body io.Reader) error
	Columns(ctx context.Context, filename string) ([]ColumnDescriptor, error)
	Chart(ctx context.Context, req ChartRequest) ([]FigureSpec, error)
	Visualizations(ctx context.Context, filename string) ([]VisualizationItem, error)
	GeoMap(ctx context.Context, filename string) (*GeoMap, error)
}

type RestClient struct {
	client *resty.Client
}

var _ Client = &RestClient{}

// NewRestClient creates a client for the engine at baseURL. A zero timeout
// leaves requests unbounded; cancellation then comes only from the context.
// Requests are never retried.
func NewRestClient(baseURL string, timeout time.Duration) *RestClient {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetRetryCount(0)
	client.SetHeader("Accept", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &RestClient{client: client}
}

func (c *RestClient) postJSON(ctx context.Context, endpoint string, body any, out any) (int, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(endpoint)
	if err != nil {
		return 0, &TransportError{Endpoint: endpoint, Err: err}
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		slog.Warn("analytics returned a non-JSON body", "endpoint", endpoint, "status", resp.StatusCode(), "err", err)
		return resp.StatusCode(), &TransportError{Endpoint: endpoint, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return resp.StatusCode(), nil
}

func checkEnvelope(endpoint string, status int, env errorEnvelope) error {
	if env.Error != "" || status >= http.StatusBadRequest {
		return &ApplicationError{Endpoint: endpoint, StatusCode: status, Message: env.Error}
	}
	return nil
}

func (c *RestClient) Upload(ctx context.Context, filename string, body io.Reader) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetFileReader("file", filename, body).
		Post(EndpointUpload)
	if err != nil {
		return &TransportError{Endpoint: EndpointUpload, Err: err}
	}
	var out uploadResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return &TransportError{Endpoint: EndpointUpload, Err: fmt.Errorf("decoding response: %w", err)}
	}
	if !out.Success {
		return &ApplicationError{Endpoint: EndpointUpload, StatusCode: resp.StatusCode(), Message: out.Error}
	}
	return nil
}

func (c *RestClient) Columns(ctx context.Context, filename string) ([]ColumnDescriptor, error) {
	var out columnsResponse
	status, err := c.postJSON(ctx, EndpointColumns, filenameRequest{Filename: filename}, &out)
	if err != nil {
		return nil, err
	}
	if err := checkEnvelope(EndpointColumns, status, out.errorEnvelope); err != nil {
		return nil, err
	}
	return out.Columns, nil
}

func (c *RestClient) Chart(ctx context.Context, req ChartRequest) ([]FigureSpec, error) {
	if req.Filters == nil {
		req.Filters = FilterSelection{}
	}
	var out chartResponse
	status, err := c.postJSON(ctx, EndpointChart, req, &out)
	if err != nil {
		return nil, err
	}
	if err := checkEnvelope(EndpointChart, status, out.errorEnvelope); err != nil {
		return nil, err
	}
	return out.Charts, nil
}

func (c *RestClient) Visualizations(ctx context.Context, filename string) ([]VisualizationItem, error) {
	var out visualizationsResponse
	status, err := c.postJSON(ctx, EndpointVisualizations, filenameRequest{Filename: filename}, &out)
	if err != nil {
		return nil, err
	}
	if err := checkEnvelope(EndpointVisualizations, status, out.errorEnvelope); err != nil {
		return nil, err
	}
	return out.Visualizations, nil
}

func (c *RestClient) GeoMap(ctx context.Context, filename string) (*GeoMap, error) {
	var out geoMapResponse
	status, err := c.postJSON(ctx, EndpointGeoMap, filenameRequest{Filename: filename}, &out)
	if err != nil {
		return nil, err
	}
	if err := checkEnvelope(EndpointGeoMap, status, out.errorEnvelope); err != nil {
		return nil, err
	}
	return &out.GeoMap, nil
}
