package serve

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/praetorian-inc/sieve/pkg/scanner"
)

// Version is the server protocol version
const Version = "1.1.0"

// Server manages the streaming scanner
type Server struct {
	core    *scanner.Core
	encoder *json.Encoder
	decoder *json.Decoder
	logger  *slog.Logger
}

// NewServer creates a new streaming server. logger may be nil.
func NewServer(core *scanner.Core, in io.Reader, out io.Writer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		core:    core,
		encoder: json.NewEncoder(out),
		decoder: json.NewDecoder(bufio.NewReader(in)),
		logger:  logger.With("component", "serve"),
	}
}

// Run starts the server main loop
func (s *Server) Run(ctx context.Context) error {
	s.sendReady()

	reqChan := make(chan Request, 1)
	errChan := make(chan error, 1)

	go func() {
		for {
			var req Request
			if err := s.decoder.Decode(&req); err != nil {
				errChan <- err
				return
			}
			select {
			case reqChan <- req:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Process requests until stdin closes or context cancels
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errChan:
			// Drain any pending requests before handling EOF
			for {
				select {
				case req := <-reqChan:
					if s.processRequest(ctx, req) {
						return nil
					}
				default:
					if err == io.EOF {
						s.logger.Debug("input closed")
						return nil
					}
					s.sendError(TypeDecode, err.Error())
					return nil
				}
			}
		case req := <-reqChan:
			if s.processRequest(ctx, req) {
				return nil
			}
		}
	}
}

// processRequest handles a single request and returns true if the server should exit
func (s *Server) processRequest(ctx context.Context, req Request) bool {
	s.logger.Debug("request", "type", req.Type, "bytes", len(req.Payload))
	switch req.Type {
	case TypeScan:
		s.handleScan(ctx, req.Payload)
	case TypeScanBatch:
		s.handleScanBatch(ctx, req.Payload)
	case TypeStats:
		s.handleStats()
	case TypeClose:
		return true
	default:
		s.sendError("unknown", "unknown request type: "+req.Type)
	}
	return false
}

func (s *Server) sendReady() {
	stats, _ := s.core.Stats()
	s.send(TypeReady, ReadyData{Version: Version, Engine: stats.Engine, Rules: stats.Rules})
}

func (s *Server) handleScan(ctx context.Context, payload json.RawMessage) {
	var p ScanPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.sendError(TypeScan, err.Error())
		return
	}

	result, err := s.core.Scan(ctx, p.Content, p.Source)
	if err != nil {
		s.sendError(TypeScan, err.Error())
		return
	}
	s.send(TypeScan, result)
}

func (s *Server) handleScanBatch(ctx context.Context, payload json.RawMessage) {
	var p ScanBatchPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.sendError(TypeScanBatch, err.Error())
		return
	}

	result, err := s.core.ScanBatch(ctx, p.Items)
	if err != nil {
		s.sendError(TypeScanBatch, err.Error())
		return
	}
	s.send(TypeScanBatch, result)
}

func (s *Server) handleStats() {
	stats, err := s.core.Stats()
	if err != nil {
		s.sendError(TypeStats, err.Error())
		return
	}
	s.send(TypeStats, stats)
}

func (s *Server) send(reqType string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.sendError(reqType, err.Error())
		return
	}
	if err := s.encoder.Encode(Response{Success: true, Type: reqType, Data: data}); err != nil {
		s.logger.Error("write response", "type", reqType, "error", err)
	}
}

func (s *Server) sendError(reqType, msg string) {
	if err := s.encoder.Encode(Response{Success: false, Type: reqType, Error: msg}); err != nil {
		s.logger.Error("write error response", "type", reqType, "error", err)
	}
}
