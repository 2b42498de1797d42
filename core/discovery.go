package core

import (
	"context"
	"fmt"

	"github.com/brutella/dnssd"
)

/*
 * mDNS/DNS-SD service announcement: advertises the engine's
 * decoded-audio/control endpoint via brutella/dnssd so client apps
 * don't need a typed-in IP/port.
 */

const decoderServiceType = "_dvcore._tcp"

// Discovery wraps a single dnssd.Service advertisement for the
// engine's audio/control endpoint.
type Discovery struct {
	svc dnssd.Service
	rsp dnssd.Responder
}

// NewDiscovery announces name on port via mDNS/DNS-SD, starting the
// responder loop in the background until ctx is cancelled.
func NewDiscovery(ctx context.Context, name string, port int) (*Discovery, error) {
	cfg := dnssd.Config{
		Name: name,
		Type: decoderServiceType,
		Port: port,
	}

	svc, err := dnssd.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("discovery: building service: %w", err)
	}

	rsp, err := dnssd.NewResponder()
	if err != nil {
		return nil, fmt.Errorf("discovery: building responder: %w", err)
	}
	if _, err := rsp.Add(svc); err != nil {
		return nil, fmt.Errorf("discovery: registering service: %w", err)
	}

	d := &Discovery{svc: svc, rsp: rsp}
	go func() {
		_ = rsp.Respond(ctx)
	}()
	return d, nil
}
