package metrics

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	authenticationv1 "k8s.io/api/authentication/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// ClientConfig holds configuration for the Prometheus client
type ClientConfig struct {
	URL   string
	Token string

	// InsecureSkipVerify disables TLS verification for self-signed telemetry endpoints
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// Client queries the Prometheus that scrapes the telemetry pipeline feeding CloudKitty
type Client struct {
	api promv1.API
}

// NewClient creates a new Prometheus client
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("prometheus URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	var rt http.RoundTripper = &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
	}
	if cfg.Token != "" {
		rt = &bearerRoundTripper{token: cfg.Token, next: rt}
	}

	client, err := api.NewClient(api.Config{
		Address: cfg.URL,
		Client:  &http.Client{Transport: rt, Timeout: cfg.Timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus client: %w", err)
	}

	return &Client{api: promv1.NewAPI(client)}, nil
}

// Query runs an instant query and returns the resulting vector
func (c *Client) Query(ctx context.Context, query string, at time.Time) (model.Vector, error) {
	result, _, err := c.api.Query(ctx, query, at)
	if err != nil {
		return nil, fmt.Errorf("prometheus query %q failed: %w", query, err)
	}

	vector, ok := result.(model.Vector)
	if !ok {
		return nil, fmt.Errorf("prometheus query %q returned %s, expected vector", query, result.Type())
	}
	return vector, nil
}

// SeriesPresent reports whether the query currently yields at least one sample
func (c *Client) SeriesPresent(ctx context.Context, query string) (bool, error) {
	vector, err := c.Query(ctx, query, time.Now())
	if err != nil {
		return false, err
	}
	return len(vector) > 0, nil
}

// GenerateToken requests a short-lived token for a service account allowed to query Prometheus
func GenerateToken(ctx context.Context, client kubernetes.Interface, namespace, serviceAccount string) (string, error) {
	// Token expiration: 1 hour
	expirationSeconds := int64(3600)

	tokenRequest := &authenticationv1.TokenRequest{
		Spec: authenticationv1.TokenRequestSpec{
			ExpirationSeconds: &expirationSeconds,
		},
	}

	tokenResponse, err := client.CoreV1().ServiceAccounts(namespace).CreateToken(
		ctx,
		serviceAccount,
		tokenRequest,
		metav1.CreateOptions{},
	)
	if err != nil {
		return "", fmt.Errorf("failed to create token for %s/%s: %w", namespace, serviceAccount, err)
	}

	token := strings.TrimSpace(tokenResponse.Status.Token)
	if token == "" {
		return "", fmt.Errorf("empty token received")
	}

	return token, nil
}

type bearerRoundTripper struct {
	token string
	next  http.RoundTripper
}

func (b *bearerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+b.token)
	return b.next.RoundTrip(req)
}
