package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/iottrends-tech/dvb-s2-SDR/pkg/log"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	Path            = "/metrics"
	shutdownTimeout = 2 * time.Second
)

// Server exposes the registry over http
type Server struct {
	sync.WaitGroup

	srv      *http.Server
	listener net.Listener
}

func NewServer(m *Metrics, address string) (*Server, error) {
	router := httprouter.New()
	router.Handler(http.MethodGet, Path, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	listener, err := net.Listen("tcp", address)
	if err != nil {
		log.Error("could not listen for metrics", zap.String("address", address), zap.Error(err))
		return nil, err
	}

	return &Server{
		srv: &http.Server{
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener: listener,
	}, nil
}

// Addr is the bound address, useful when listening on port 0
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Start serves in the background until Shutdown
func (s *Server) Start() {
	s.Add(1)
	go func() {
		defer s.Done()

		log.Info("serving metrics", zap.String("address", s.Addr()))
		if err := s.srv.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		log.Warn("metrics server shutdown incomplete", zap.Error(err))
	}
	s.Wait()
}
