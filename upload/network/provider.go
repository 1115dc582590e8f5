package network

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/glacier"
	"github.com/bitrise-io/go-utils/v2/log"
)

// DefaultClientLife is the number of uses after which the client is replaced.
const DefaultClientLife = 60

// ClientProviderParams configures the connection to the remote store.
// AccessKeyID and SecretAccessKey are optional; when empty the default AWS
// credential chain is used.
type ClientProviderParams struct {
	ServiceEndpoint string
	SigningRegion   string
	AccessKeyID     string
	SecretAccessKey string
	ClientLife      int64
}

// ClientProvider hands out a live Glacier client and replaces it after a
// bounded number of uses so connections do not live forever. Replacement
// happens under a single lock: no two goroutines recycle concurrently, and
// callers always observe a consistent client.
type ClientProvider struct {
	params     ClientProviderParams
	httpClient *http.Client
	logger     log.Logger

	mu     sync.Mutex
	client *glacier.Client
	uses   int64
}

// NewClientProvider creates a provider. The client itself is built lazily on
// first use.
func NewClientProvider(params ClientProviderParams, logger log.Logger) *ClientProvider {
	if params.ClientLife <= 0 {
		params.ClientLife = DefaultClientLife
	}
	return &ClientProvider{
		params:     params,
		httpClient: defaultHTTPClient(),
		logger:     logger,
	}
}

// Client returns a ready client. Every ClientLife-th call closes idle
// connections and rebuilds the client.
func (p *ClientProvider) Client(ctx context.Context) (*glacier.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		client, err := p.build(ctx)
		if err != nil {
			return nil, err
		}
		p.client = client
	}

	p.uses++
	if p.uses%p.params.ClientLife == 0 {
		p.logger.Debugf("Recycling remote store client after %d uses", p.uses)
		p.httpClient.CloseIdleConnections()
		client, err := p.build(ctx)
		if err != nil {
			return nil, err
		}
		p.client = client
	}

	return p.client, nil
}

// Shutdown releases the connection resources. Safe to call on every exit path.
func (p *ClientProvider) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.httpClient.CloseIdleConnections()
	p.client = nil
}

func (p *ClientProvider) build(ctx context.Context) (*glacier.Client, error) {
	cfg, err := p.loadAWSConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := p.params.ServiceEndpoint
	if endpoint != "" && !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}

	return glacier.NewFromConfig(*cfg, func(o *glacier.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

func (p *ClientProvider) loadAWSConfig(ctx context.Context) (*aws.Config, error) {
	if p.params.SigningRegion == "" {
		return nil, fmt.Errorf("signing region must not be empty")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(p.params.SigningRegion),
		config.WithHTTPClient(p.httpClient),
	}

	if p.params.AccessKeyID != "" && p.params.SecretAccessKey != "" {
		p.logger.Debugf("aws credentials provided, using them...")
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(p.params.AccessKeyID, p.params.SecretAccessKey, ""),
		))
	} else {
		p.logger.Debugf("no aws credentials provided, using default chain...")
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultHTTPClient() *http.Client {
	return &http.Client{
		// No global timeout, individual calls are bounded via context
		Timeout: 0,
		Transport: &http.Transport{
			MaxIdleConns:        50,
			MaxConnsPerHost:     20,
			IdleConnTimeout:     10 * time.Second,
			TLSHandshakeTimeout: 5 * time.Second,
			Proxy:               http.ProxyFromEnvironment,
		},
	}
}
