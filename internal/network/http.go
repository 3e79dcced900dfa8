package network

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

type SocksProxy struct {
	Host     string `yaml:"host"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type DialContextFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// NewDialer returns a dial function that goes through the SOCKS5 proxy when
// one is configured, and dials directly otherwise.
func NewDialer(socks *SocksProxy, timeout time.Duration) (DialContextFunc, error) {
	direct := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: -1,
	}
	if socks == nil || socks.Host == "" {
		return direct.DialContext, nil
	}
	var auth *proxy.Auth
	if socks.Username != "" && socks.Password != "" {
		auth = &proxy.Auth{User: socks.Username, Password: socks.Password}
	}
	d, err := proxy.SOCKS5("tcp", socks.Host, auth, direct)
	if err != nil {
		return nil, fmt.Errorf("socks proxy %s: %w", socks.Host, err)
	}
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}, nil
}

// GetClient returns an http client with a timeout, proxied if configured.
func GetClient(socks *SocksProxy, timeout time.Duration) *http.Client {
	client := http.Client{
		Timeout: timeout,
	}
	if socks == nil || socks.Host == "" {
		return &client
	}
	dial, err := NewDialer(socks, timeout)
	if err != nil {
		log.Errorln(err)
		return &client
	}
	client.Transport = &http.Transport{DialContext: dial}
	return &client
}
