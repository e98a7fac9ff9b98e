package transport

import (
	"context"
	"crypto/tls"
	"net/http/httptrace"
	"time"
)

// Phase names for labeling the timings a WithTiming transport reports.
// Timings has no transfer field, so PhaseTransfer is never reported, and
// the metrics collector records only dns, connect, tls and ttfb.
const (
	PhaseDNS      = "dns"
	PhaseConnect  = "connect"
	PhaseTLS      = "tls"
	PhaseTTFB     = "ttfb"
	PhaseTransfer = "transfer"
	PhaseTotal    = "total"
)

// Timings is the per-request breakdown an Observer receives after a
// round trip completes.
type Timings struct {
	DNSLookup    time.Duration
	TCPConnect   time.Duration
	TLSHandshake time.Duration
	TTFB         time.Duration
	Total        time.Duration
}

// Observer is notified with the granular timing breakdown for one round
// trip, alongside the status code it completed with (0 if RoundTrip
// itself failed before a response was received).
type Observer func(status int, t Timings)

// WithTiming wraps inner with an httptrace.ClientTrace that records
// DNS/connect/TLS/time-to-first-byte phases and reports them to observe
// after each round trip, together with the total time RoundTrip took.
// Body transfer is not measured: the decorator instruments connection
// setup and time to first byte only, and does not read the body.
func WithTiming(inner Transport, observe Observer) Transport {
	return &timingTransport{inner: inner, observe: observe}
}

type timingTransport struct {
	inner   Transport
	observe Observer
}

type tracer struct {
	start        time.Time
	dnsStart     time.Time
	dnsDone      time.Time
	connectStart time.Time
	connectDone  time.Time
	tlsStart     time.Time
	tlsDone      time.Time
	wroteRequest time.Time
	firstByte    time.Time
}

func (t *tracer) clientTrace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		DNSStart:             func(_ httptrace.DNSStartInfo) { t.dnsStart = time.Now() },
		DNSDone:              func(_ httptrace.DNSDoneInfo) { t.dnsDone = time.Now() },
		ConnectStart:         func(_, _ string) { t.connectStart = time.Now() },
		ConnectDone:          func(_, _ string, _ error) { t.connectDone = time.Now() },
		TLSHandshakeStart:    func() { t.tlsStart = time.Now() },
		TLSHandshakeDone:     func(_ tls.ConnectionState, _ error) { t.tlsDone = time.Now() },
		WroteRequest:         func(_ httptrace.WroteRequestInfo) { t.wroteRequest = time.Now() },
		GotFirstResponseByte: func() { t.firstByte = time.Now() },
	}
}

func (t *tracer) timings(now time.Time) Timings {
	out := Timings{Total: now.Sub(t.start)}
	if !t.dnsStart.IsZero() && !t.dnsDone.IsZero() {
		out.DNSLookup = t.dnsDone.Sub(t.dnsStart)
	}
	if !t.connectStart.IsZero() && !t.connectDone.IsZero() {
		out.TCPConnect = t.connectDone.Sub(t.connectStart)
	}
	if !t.tlsStart.IsZero() && !t.tlsDone.IsZero() {
		out.TLSHandshake = t.tlsDone.Sub(t.tlsStart)
	}
	if !t.wroteRequest.IsZero() && !t.firstByte.IsZero() {
		out.TTFB = t.firstByte.Sub(t.wroteRequest)
	}
	return out
}

func (t *timingTransport) RoundTrip(ctx context.Context, req Request) (Response, error) {
	tr := &tracer{start: time.Now()}
	ctx = httptrace.WithClientTrace(ctx, tr.clientTrace())

	resp, err := t.inner.RoundTrip(ctx, req)
	if err != nil {
		if t.observe != nil {
			t.observe(0, tr.timings(time.Now()))
		}
		return resp, err
	}
	if t.observe != nil {
		t.observe(resp.StatusCode, tr.timings(time.Now()))
	}
	return resp, nil
}
