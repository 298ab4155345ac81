package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/grandcat/zeroconf"
)

const mdnsServiceType = "_airq-node._tcp"

// mdnsRegister is a hook for tests.
var mdnsRegister = func(instance, service, domain string, port int, txt []string) (func(), error) {
	svc, err := zeroconf.Register(instance, service, domain, port, txt, nil)
	if err != nil {
		return nil, err
	}
	return svc.Shutdown, nil
}

func mdnsInstance(cfg *appConfig) string {
	if cfg.mdnsName != "" {
		return cfg.mdnsName
	}
	host, _ := os.Hostname()
	return fmt.Sprintf("airq-node-%s", host)
}

func mdnsTXT(cfg *appConfig) []string {
	return []string{
		"backend=" + cfg.backend,
		fmt.Sprintf("node=0x%X", cfg.nodeID),
		"version=" + version,
		"commit=" + commit,
	}
}

// metricsPort extracts the port from a listen address such as ":9100".
func metricsPort(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(p)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid port in %q", addr)
	}
	return n, nil
}

// startMDNS advertises the metrics endpoint and returns a cleanup function.
// It is a no-op when disabled.
func startMDNS(ctx context.Context, cfg *appConfig) (func(), error) {
	if !cfg.mdnsEnable {
		return func() {}, nil
	}
	port, err := metricsPort(cfg.metricsAddr)
	if err != nil {
		return nil, fmt.Errorf("mdns: %w", err)
	}
	shutdown, err := mdnsRegister(mdnsInstance(cfg), mdnsServiceType, "local.", port, mdnsTXT(cfg))
	if err != nil {
		return nil, fmt.Errorf("mdns register: %w", err)
	}
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
		case <-done:
		}
		shutdown()
	}()
	return func() {
		close(done)
		select {
		case <-stopped:
		case <-time.After(time.Second):
		}
	}, nil
}
