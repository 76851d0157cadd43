package testkit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/palumbou/another-documents-chat-ai-sub000/internal/app"
	"github.com/spf13/pflag"
)

// Property names published by ServerService.
const (
	PropBaseURL = "base_url"
	PropDataDir = "data_dir"
)

// ServerService runs the full application over HTTP for the duration of a test.
type ServerService struct {
	flags  *pflag.FlagSet
	cancel context.CancelFunc
	done   chan error
}

// NewServerService creates a service that serves with the given flags.
func NewServerService(flags *pflag.FlagSet) *ServerService {
	return &ServerService{flags: flags}
}

// GetName returns the service name.
func (s *ServerService) GetName() string {
	return "docchat-server"
}

// Start launches the server and waits for /health to answer.
func (s *ServerService) Start() (map[string]any, error) {
	host, _ := s.flags.GetString("host")
	port, _ := s.flags.GetInt("port")
	dataDir, _ := s.flags.GetString("data-dir")
	baseURL := fmt.Sprintf("http://%s:%d", host, port)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan error, 1)
	go func() {
		s.done <- app.RunWithDeps(ctx, app.DefaultRunParams(), s.flags, "test")
	}()

	deadline := time.Now().Add(10 * time.Second)
	for {
		resp, err := http.Get(baseURL + "/health")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		select {
		case err := <-s.done:
			cancel()
			s.cancel = nil
			return nil, fmt.Errorf("server exited during startup: %v", err)
		default:
		}
		if time.Now().After(deadline) {
			_ = s.Stop()
			return nil, fmt.Errorf("server did not become healthy at %s", baseURL)
		}
		time.Sleep(20 * time.Millisecond)
	}

	return map[string]any{PropBaseURL: baseURL, PropDataDir: dataDir}, nil
}

// Stop cancels the server and waits for it to release the data dir.
// Stopping a stopped service is a no-op.
func (s *ServerService) Stop() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	s.cancel = nil
	select {
	case err := <-s.done:
		return err
	case <-time.After(30 * time.Second):
		return fmt.Errorf("server did not stop")
	}
}
