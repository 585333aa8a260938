// Package httpclient builds the pooled HTTP clients shared by every upstream
// integration (model provider, speech provider, search engine).
package httpclient

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/proxy"
)

// Options configures a client.
type Options struct {
	Timeout      time.Duration
	MaxIdleConns int
	// SOCKSProxy is a host:port of a SOCKS5 proxy. Empty means direct.
	SOCKSProxy string
	// ResponseHeaderTimeout bounds the wait for response headers only. Use it
	// with a zero Timeout for streamed bodies of unbounded length.
	ResponseHeaderTimeout time.Duration
}

// New returns an *http.Client with a dedicated, connection-pooling transport.
// A zero Timeout leaves the client unbounded; callers are then expected to
// bound requests through their context.
func New(opts Options) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.MaxIdleConns > 0 {
		transport.MaxIdleConns = opts.MaxIdleConns
		transport.MaxIdleConnsPerHost = opts.MaxIdleConns
	}

	if opts.ResponseHeaderTimeout > 0 {
		transport.ResponseHeaderTimeout = opts.ResponseHeaderTimeout
	}

	if opts.SOCKSProxy != "" {
		dialer, err := proxy.SOCKS5("tcp", opts.SOCKSProxy, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("socks5 dialer %s: %w", opts.SOCKSProxy, err)
		}
		transport.Proxy = nil
		transport.DialContext = dialContext(dialer)
	}

	return &http.Client{
		Transport: transport,
		Timeout:   opts.Timeout,
	}, nil
}

func dialContext(dialer proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return dialer.Dial(network, addr)
	}
}
