// Command koppelnd is the authoritative responder's entrypoint: it loads
// the settings document, builds the shared record store, and runs the UDP
// DNS server and the HTTP control-plane API concurrently until signaled to
// stop. Grounded on the lineage's cmd/dnsscienced/main.go for flag/signal
// handling and the periodic stats-ticker pattern, and on
// cmd/dnsscience-grpc/main.go for running the Prometheus metrics mux on its
// own http.ListenAndServe goroutine, separate from the control-plane mux.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"os/signal"
	"syscall"
	"time"

	"github.com/kunerd/koppeln/internal/dnsmsg"
	"github.com/kunerd/koppeln/internal/dnsserver"
	"github.com/kunerd/koppeln/internal/eventbus"
	"github.com/kunerd/koppeln/internal/httpapi"
	"github.com/kunerd/koppeln/internal/rrl"
	"github.com/kunerd/koppeln/internal/settings"
	"github.com/kunerd/koppeln/internal/store"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	configPath  = flag.String("config", "./koppeln.yaml", "path to the settings YAML document")
	metricsAddr = flag.String("metrics-listen", "127.0.0.1:9100", "Prometheus metrics listen address")
	stats       = flag.Bool("stats", true, "log periodic query/update statistics")
)

func main() {
	flag.Parse()

	explicit := isFlagSet("config")
	cfg, err := settings.Load(*configPath, explicit)
	if err != nil {
		log.Fatalf("koppelnd: load settings: %v", err)
	}

	s, soa, err := buildStore(cfg)
	if err != nil {
		log.Fatalf("koppelnd: %v", err)
	}

	bus := eventbus.New(16)

	dnsSrv, err := dnsserver.New(dnsserver.Config{
		Addr: fmt.Sprintf("%s:%d", cfg.DNSAddress, cfg.DNSPort),
		SOA:  soa,
		RRL:  rrl.DefaultConfig(),
	}, s)
	if err != nil {
		log.Fatalf("koppelnd: build dns server: %v", err)
	}

	if err := dnsSrv.Start(); err != nil {
		log.Fatalf("koppelnd: start dns server: %v", err)
	}
	log.Printf("koppelnd: dns listening on %s:%d (zone %s)", cfg.DNSAddress, cfg.DNSPort, soa.MName)

	api := httpapi.New(s, bus)
	webAddr := fmt.Sprintf("%s:%d", cfg.WebAddress, cfg.WebPort)
	webSrv := &http.Server{Addr: webAddr, Handler: api.Mux()}

	go func() {
		log.Printf("koppelnd: http control plane listening on %s", webAddr)
		if err := webSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("koppelnd: http server error: %v", err)
		}
	}()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		log.Printf("koppelnd: metrics listening on %s", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			log.Printf("koppelnd: metrics server error: %v", err)
		}
	}()

	if *stats {
		go printStats(dnsSrv)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("koppelnd: shutting down")
	dnsSrv.Stop()
	_ = webSrv.Close()
}

// buildStore converts the loaded settings document into the store and SOA
// types internal/dnsmsg and internal/store operate on; settings.Settings
// has no dependency on either package, so this is where the two shapes
// meet.
func buildStore(cfg settings.Settings) (*store.Store, dnsmsg.SOA, error) {
	entries := make(map[string]*store.Entry, len(cfg.Addresses))

	origin := cfg.SOA.MName
	for fqdn, addr := range cfg.Addresses {
		key, ok := subdomainKey(fqdn, origin)
		if !ok {
			return nil, dnsmsg.SOA{}, fmt.Errorf("settings: address %q is not under zone %q", fqdn, origin)
		}
		entries[key] = &store.Entry{Token: addr.Token}
	}

	soa := dnsmsg.SOA{
		MName:   origin,
		RName:   cfg.SOA.RName,
		Serial:  cfg.SOA.Serial,
		Refresh: cfg.SOA.Refresh,
		Retry:   cfg.SOA.Retry,
		Expire:  cfg.SOA.Expire,
		Minimum: cfg.SOA.Minimum,
	}

	return store.New(origin, entries), soa, nil
}

// subdomainKey mirrors internal/store's own stripping rule (including its
// case-insensitive matching) at load time so a misconfigured address
// (outside the zone) fails fast at startup rather than silently becoming
// unreachable, and so the stored key matches what Store.key strips at
// lookup time.
func subdomainKey(fqdn, origin string) (string, bool) {
	fqdn = strings.ToLower(strings.TrimSuffix(fqdn, "."))
	origin = strings.ToLower(strings.TrimSuffix(origin, "."))

	if fqdn == origin {
		return "", true
	}
	suffix := "." + origin
	if !strings.HasSuffix(fqdn, suffix) {
		return "", false
	}
	return fqdn[:len(fqdn)-len(suffix)], true
}

func isFlagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func printStats(srv *dnsserver.Server) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	lastQueries := uint64(0)
	lastTime := time.Now()

	for range ticker.C {
		st := srv.Stats()
		now := time.Now()
		elapsed := now.Sub(lastTime).Seconds()
		qps := float64(st.Queries-lastQueries) / elapsed

		log.Printf("koppelnd: queries=%d (%.1f/s) answers=%d errors=%d nxdomain=%d",
			st.Queries, qps, st.Answers, st.Errors, st.NXDomains)

		lastQueries = st.Queries
		lastTime = now
	}
}
