package preloader

import (
	"github.com/glorpus-work/preload/pkg/asset"
	"github.com/glorpus-work/preload/pkg/transfer"
)

// Policy decides what happens to sibling transfers when one transfer fails
// below the resource level.
type Policy int

const (
	// PolicyContinue lets sibling transfers run to completion.
	PolicyContinue Policy = iota
	// PolicyCancelSiblings cancels every in-flight transfer after recording
	// the failure.
	PolicyCancelSiblings
)

func (p Policy) String() string {
	switch p {
	case PolicyContinue:
		return "continue"
	case PolicyCancelSiblings:
		return "cancel-siblings"
	default:
		return "unknown"
	}
}

// Options configure a Controller.
type Options struct {
	// Transport performs the transfers. Defaults to an HTTPTransport.
	Transport transfer.Transport
	// ResponseType is the default response type of every load.
	ResponseType transfer.ResponseType
	// Headers are added to every request.
	Headers map[string]string
	// TransportErrorPolicy applies when a transport fails outright.
	TransportErrorPolicy Policy
}

// ProgressEvent is published on every accepted progress sample.
type ProgressEvent struct {
	// Asset is the asset whose sample was just recorded.
	Asset asset.Asset
	// Progress is the aggregate over every admitted asset.
	Progress float64
}

// LoadOption customizes a single Load or Fetch.
type LoadOption func(*loadConfig)

type loadConfig struct {
	responseType transfer.ResponseType
	headers      map[string]string
}

// WithResponseType overrides the response type for the loaded assets.
func WithResponseType(rt transfer.ResponseType) LoadOption {
	return func(c *loadConfig) {
		c.responseType = rt
	}
}

// WithHeader adds a request header for the loaded assets.
func WithHeader(key, value string) LoadOption {
	return func(c *loadConfig) {
		if c.headers == nil {
			c.headers = make(map[string]string)
		}
		c.headers[key] = value
	}
}

func (c *Controller) request(url string, opts []LoadOption) transfer.Request {
	cfg := loadConfig{responseType: c.opts.ResponseType}
	for _, o := range opts {
		o(&cfg)
	}

	var headers map[string]string
	if len(c.opts.Headers) > 0 || len(cfg.headers) > 0 {
		headers = make(map[string]string, len(c.opts.Headers)+len(cfg.headers))
		for k, v := range c.opts.Headers {
			headers[k] = v
		}
		for k, v := range cfg.headers {
			headers[k] = v
		}
	}

	return transfer.Request{
		URL:          url,
		ResponseType: cfg.responseType,
		Headers:      headers,
	}
}
