// Package kv builds the go-redis client used as the remote tier of every
// dual-backend store.
package kv

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPort = "6379"

// Options describes how to reach the remote key-value backend.
type Options struct {
	// RedisURL is a full redis:// or rediss:// URL and wins when set.
	RedisURL string
	// Endpoint and Token are the REST-style pair exposed by hosted KV
	// providers. Both are required.
	Endpoint string
	Token    string
}

// NewClient returns a client when the backend is configured, or nil,false.
// It never dials: reachability is checked per operation by the stores.
func NewClient(opts Options) (*redis.Client, bool, error) {
	if strings.TrimSpace(opts.RedisURL) != "" {
		parsed, err := redis.ParseURL(opts.RedisURL)
		if err != nil {
			return nil, false, fmt.Errorf("kv: parse redis url: %w", err)
		}
		return redis.NewClient(parsed), true, nil
	}

	endpoint := strings.TrimSpace(opts.Endpoint)
	token := strings.TrimSpace(opts.Token)
	if endpoint == "" || token == "" {
		return nil, false, nil
	}

	redisOpts, err := optionsFromEndpoint(endpoint, token)
	if err != nil {
		return nil, false, err
	}
	return redis.NewClient(redisOpts), true, nil
}

// optionsFromEndpoint maps an https REST endpoint onto the TLS redis
// protocol port of the same host, authenticating with the token.
func optionsFromEndpoint(endpoint, token string) (*redis.Options, error) {
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("kv: parse endpoint: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("kv: endpoint %q has no host", endpoint)
	}

	switch u.Scheme {
	case "redis", "rediss":
		parsed, err := redis.ParseURL(endpoint)
		if err != nil {
			return nil, fmt.Errorf("kv: parse endpoint: %w", err)
		}
		if parsed.Password == "" {
			parsed.Password = token
		}
		return parsed, nil
	}

	host := u.Hostname()
	port := u.Port()
	if port == "" || port == "443" {
		port = defaultRedisPort
	}
	opts := &redis.Options{
		Addr:     net.JoinHostPort(host, port),
		Username: "default",
		Password: token,
	}
	if u.Scheme == "https" {
		opts.TLSConfig = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}
