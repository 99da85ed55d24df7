// Package transfer fetches zone record sets from authoritative servers
// over AXFR, optionally TSIG signed.
package transfer

import (
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// TSIG holds one transaction signature key.
type TSIG struct {
	Name      string
	Algorithm string
	Secret    string
}

// FetchError is a failed transfer: connection, authentication or a refused
// transfer. Distinct from decode errors so callers can tell a dead primary
// from a broken catalog.
type FetchError struct {
	Zone   string
	Server string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("transfer of %s from %s failed: %v", e.Zone, e.Server, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client performs zone transfers and SOA serial probes.
type Client struct {
	// Timeout applies per exchange. Zero means 10 seconds.
	Timeout time.Duration
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return 10 * time.Second
}

// Fetch transfers the full record set of zone from server. The returned
// set contains the SOA exactly once even though AXFR frames it at both
// ends. Errors are returned as *FetchError.
func (c *Client) Fetch(zone, server string, key *TSIG) ([]dns.RR, error) {
	zone = dns.Fqdn(zone)
	server = withDefaultPort(server)

	t := &dns.Transfer{ReadTimeout: c.timeout(), WriteTimeout: c.timeout()}
	msg := new(dns.Msg)
	msg.SetAxfr(zone)

	if key != nil {
		name := dns.Fqdn(key.Name)
		msg.SetTsig(name, tsigAlgorithm(key.Algorithm), 300, time.Now().Unix())
		t.TsigSecret = map[string]string{name: key.Secret}
	}

	ch, err := t.In(msg, server)
	if err != nil {
		return nil, &FetchError{Zone: zone, Server: server, Err: err}
	}

	start := time.Now()
	var records []dns.RR
	var soa *dns.SOA
	for env := range ch {
		if env.Error != nil {
			return nil, &FetchError{Zone: zone, Server: server, Err: env.Error}
		}
		for _, rr := range env.RR {
			if s, ok := rr.(*dns.SOA); ok {
				// AXFR frames the zone with the SOA at both ends.
				if soa == nil {
					soa = s
					records = append(records, s)
				}
				continue
			}
			records = append(records, rr)
		}
	}
	if soa == nil {
		return nil, &FetchError{Zone: zone, Server: server, Err: fmt.Errorf("no SOA record in transfer")}
	}

	log.Printf("Zone %s transferred from %s in %v (%d records, serial %d)",
		zone, server, time.Since(start).Round(time.Millisecond), len(records), soa.Serial)
	return records, nil
}

// Serial queries the SOA serial of zone from server over TCP. Used to skip
// re-transferring a catalog whose cached copy is still current.
func (c *Client) Serial(zone, server string, key *TSIG) (uint32, error) {
	zone = dns.Fqdn(zone)
	server = withDefaultPort(server)

	msg := new(dns.Msg)
	msg.SetQuestion(zone, dns.TypeSOA)
	msg.RecursionDesired = false

	client := &dns.Client{Net: "tcp", Timeout: c.timeout()}
	if key != nil {
		name := dns.Fqdn(key.Name)
		msg.SetTsig(name, tsigAlgorithm(key.Algorithm), 300, time.Now().Unix())
		client.TsigSecret = map[string]string{name: key.Secret}
	}

	resp, _, err := client.Exchange(msg, server)
	if err != nil {
		return 0, &FetchError{Zone: zone, Server: server, Err: err}
	}
	if resp.Rcode != dns.RcodeSuccess {
		return 0, &FetchError{Zone: zone, Server: server,
			Err: fmt.Errorf("SOA query returned %s", dns.RcodeToString[resp.Rcode])}
	}
	for _, rr := range resp.Answer {
		if soa, ok := rr.(*dns.SOA); ok {
			return soa.Serial, nil
		}
	}
	return 0, &FetchError{Zone: zone, Server: server, Err: fmt.Errorf("no SOA record in response")}
}

// SerialGreater returns true if a > b with serial arithmetic (RFC 1982).
func SerialGreater(a, b uint32) bool {
	if a == b {
		return false
	}
	return (a < b && b-a > 0x7FFFFFFF) || (a > b && a-b < 0x7FFFFFFF)
}

func tsigAlgorithm(algo string) string {
	switch strings.ToLower(strings.TrimSuffix(algo, ".")) {
	case "hmac-sha512":
		return dns.HmacSHA512
	case "hmac-sha1":
		return dns.HmacSHA1
	case "hmac-sha256":
		return dns.HmacSHA256
	default:
		return dns.HmacSHA256
	}
}

func withDefaultPort(server string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(server, "53")
}
