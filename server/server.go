package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"runtime"
	"runtime/debug"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/mdtanrikulu/dnssec-oracle/config"
	"github.com/mdtanrikulu/dnssec-oracle/log"
	"github.com/mdtanrikulu/dnssec-oracle/metrics"
	"github.com/mdtanrikulu/dnssec-oracle/oracle"
	"github.com/mdtanrikulu/dnssec-oracle/prover"
	"github.com/mdtanrikulu/dnssec-oracle/util"
)

// ProofSource collects proofs for DNS records
type ProofSource interface {
	QueryWithProof(ctx context.Context, qType uint16, name string) (*prover.Proof, error)
}

// Server serves the oracle HTTP API
type Server struct {
	cfg    *config.Config
	oracle *oracle.Oracle
	prover ProofSource

	httpMux        *chi.Mux
	httpListeners  []net.Listener
	httpsListeners []net.Listener
	tlsConfig      *tls.Config
	servers        []*httpServer

	now func() time.Time
}

func logger() *logrus.Entry {
	return log.PrefixedLog("server")
}

func tlsCipherSuites() []uint16 {
	tlsCipherSuites := []uint16{
		tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
		tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
	}

	return tlsCipherSuites
}

// NewServer creates new server instance with passed config. p may be nil if no upstream is configured.
func NewServer(cfg *config.Config, o *oracle.Oracle, p ProofSource) (server *Server, err error) {
	server = &Server{
		cfg:    cfg,
		oracle: o,
		prover: p,
		now:    time.Now,
	}

	server.httpListeners, err = newListeners("http", cfg.Ports.HTTPAddress())
	if err != nil {
		return nil, err
	}

	server.httpsListeners, err = newListeners("https", cfg.Ports.HTTPSAddress())
	if err != nil {
		closeListeners(server.httpListeners)

		return nil, err
	}

	if len(server.httpsListeners) > 0 {
		server.tlsConfig, err = createTLSConfig(&cfg.Ports)
		if err != nil {
			closeListeners(server.httpListeners)
			closeListeners(server.httpsListeners)

			return nil, err
		}
	}

	server.httpMux = createRouter()

	server.registerAPIEndpoints(server.httpMux)
	server.configureRootHandler(server.httpMux)

	metrics.Start(server.httpMux, cfg.Prometheus)

	server.printConfiguration()

	return server, nil
}

func newListeners(proto, address string) ([]net.Listener, error) {
	if address == "" {
		return nil, nil
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("start %s listener on %s failed: %w", proto, address, err)
	}

	return []net.Listener{listener}, nil
}

func closeListeners(listeners []net.Listener) {
	for _, l := range listeners {
		util.LogOnError("can't close listener: ", l.Close())
	}
}

func createTLSConfig(cfg *config.Ports) (*tls.Config, error) {
	var (
		cert tls.Certificate
		err  error
	)

	if cfg.CertFile != "" {
		cert, err = tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("can't load certificate files: %w", err)
		}
	} else {
		cert, err = util.TLSGenerateSelfSignedCert([]string{"localhost"})
		if err != nil {
			return nil, fmt.Errorf("can't generate self-signed certificate: %w", err)
		}
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		CipherSuites: tlsCipherSuites(),
	}, nil
}

// HTTPAddr returns the address the http listener is bound to, nil if none
func (s *Server) HTTPAddr() net.Addr {
	if len(s.httpListeners) == 0 {
		return nil
	}

	return s.httpListeners[0].Addr()
}

// HTTPSAddr returns the address the https listener is bound to, nil if none
func (s *Server) HTTPSAddr() net.Addr {
	if len(s.httpsListeners) == 0 {
		return nil
	}

	return s.httpsListeners[0].Addr()
}

// Start starts the server
func (s *Server) Start(errCh chan<- error) {
	logger().Info("Starting server")

	start := func(srv *httpServer, listener net.Listener) {
		s.servers = append(s.servers, srv)

		go func() {
			logger().Infof("%s server is up and running on addr/port %s", srv, listener.Addr())

			if err := srv.Serve(listener); err != nil {
				errCh <- fmt.Errorf("start %s listener failed: %w", srv, err)
			}
		}()
	}

	for _, listener := range s.httpListeners {
		start(newHTTPServer("http", s.httpMux, nil), listener)
	}

	for _, listener := range s.httpsListeners {
		start(newHTTPServer("https", s.httpMux, s.tlsConfig), listener)
	}

	registerPrintConfigurationTrigger(s)
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	logger().Info("Stopping server")

	var result *multierror.Error

	for _, srv := range s.servers {
		if err := srv.Shutdown(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("stop %s listener failed: %w", srv, err))
		}
	}

	return result.ErrorOrNil()
}

func (s *Server) printConfiguration() {
	logger().Info("current configuration:")

	s.cfg.LogConfig(logger())

	logger().Infof("trust anchors version %d:", s.oracle.AnchorsVersion())

	for _, a := range s.oracle.Anchors() {
		logger().Infof("  - %s", a.Record)
	}

	printBindings("algorithms", s.oracle.Algorithms())
	printBindings("digests", s.oracle.Digests())

	logger().Info("runtime information:")

	// force garbage collector
	runtime.GC()
	debug.FreeOSMemory()

	// gather memory stats
	var m runtime.MemStats

	runtime.ReadMemStats(&m)

	logger().Infof("MEM Alloc =        %10v MB", toMB(m.Alloc))
	logger().Infof("MEM HeapAlloc =    %10v MB", toMB(m.HeapAlloc))
	logger().Infof("MEM Sys =          %10v MB", toMB(m.Sys))
	logger().Infof("MEM NumGC =        %10v", m.NumGC)
	logger().Infof("RUN NumCPU =       %10d", runtime.NumCPU())
	logger().Infof("RUN NumGoroutine = %10d", runtime.NumGoroutine())
}

func printBindings(name string, bindings map[uint8]string) {
	logger().Infof("%s:", name)

	for _, id := range sortedIDs(bindings) {
		logger().Infof("  %3d = %s", id, bindings[id])
	}
}

func sortedIDs(bindings map[uint8]string) []uint8 {
	ids := make([]uint8, 0, len(bindings))
	for id := range bindings {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

func toMB(b uint64) uint64 {
	const bytesInKB = 1024

	return b / bytesInKB / bytesInKB
}
