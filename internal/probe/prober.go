package probe

import (
	"context"
	"net/http"
	"time"
)

const (
	// The connectivity check answers "are WE online" before we blame a
	// peer, so it gets a tighter timeout than a peer probe.
	connectivityTimeout = 3 * time.Second
	peerTimeout         = 5 * time.Second
)

// Prober performs the two network checks the monitor needs: whether this
// node can reach the public internet, and whether a peer's health endpoint
// answers. Each check is a single bounded GET; retry policy lives in the
// crash engine, not here.
type Prober struct {
	connectivityURL string
	connClient      *http.Client
	peerClient      *http.Client
}

func New(connectivityURL string) *Prober {
	return &Prober{
		connectivityURL: connectivityURL,
		connClient:      &http.Client{Timeout: connectivityTimeout},
		peerClient:      &http.Client{Timeout: peerTimeout},
	}
}

// CheckConnectivity reports whether we can reach a well-known external
// endpoint. False on any transport error, timeout or non-2xx.
func (p *Prober) CheckConnectivity(ctx context.Context) bool {
	return get(ctx, p.connClient, p.connectivityURL)
}

// PingPeer reports whether a peer's health endpoint answered 2xx.
func (p *Prober) PingPeer(ctx context.Context, url string) bool {
	return get(ctx, p.peerClient, url)
}

func get(ctx context.Context, client *http.Client, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
