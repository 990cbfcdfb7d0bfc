package kernelruntime

import (
	"net/http"

	"github.com/CoronovirusG10/zoho-order-processing/pkg/config"
)

type Server struct{}

func New(cfg *config.Config) *Server {
	return &Server{}
}

func (s *Server) Start() error {
	return http.ErrServerClosed
}
