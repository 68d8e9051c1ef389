// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"go.uber.org/zap"

	"mcp-pantry-assistant/internal/llm"
	"mcp-pantry-assistant/internal/models"
)

const serverVersion = "1.0.0"

// Store is the persistence the tools need.
type Store interface {
	ApplyFoodCommand(ctx context.Context, cmd models.FoodCommandPayload) (models.PantryItem, error)
	ApplyFoodLogCommand(ctx context.Context, cmd models.FoodLogCommandPayload) (models.FoodLogEntry, error)
	ListPantry(ctx context.Context, groupID string, limit int) ([]*models.PantryItem, error)
	ListFoodLogs(ctx context.Context, groupID, startDate, endDate string, limit int) ([]*models.FoodLogEntry, error)
}

type Config struct {
	Host      string
	Port      int
	Store     Store
	Model     llm.Caller
	Logger    *zap.Logger
	Defaults  models.Defaults
	MaxTokens int
}

type toolHandler func(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error)

type PantryServer struct {
	httpServer *http.Server
	store      Store
	model      llm.Caller
	logger     *zap.Logger
	info       protocol.Implementation
	tools      map[string]toolHandler
	config     *Config
}

// errInvalidParams marks errors caused by the caller's arguments.
var errInvalidParams = errors.New("invalid parameters")

func NewPantryServer(cfg *Config) (*PantryServer, error) {
	if cfg.Store == nil {
		return nil, errors.New("server requires a store")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	pantryServer := &PantryServer{
		store:  cfg.Store,
		model:  cfg.Model,
		logger: logger.Named("server"),
		info: protocol.Implementation{
			Name:    "pantry-assistant",
			Version: serverVersion,
		},
		config: cfg,
	}
	pantryServer.registerTools()

	mux := http.NewServeMux()
	mux.HandleFunc("/", pantryServer.handleHTTP)

	pantryServer.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: mux,
	}

	return pantryServer, nil
}

// Handler exposes the HTTP handler, mostly for tests.
func (s *PantryServer) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *PantryServer) handleHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodGet:
		s.writeJSON(w, map[string]interface{}{
			"serverInfo": s.info,
			"tools":      s.toolNames(),
		})
		return
	case http.MethodPost:
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request protocol.CallToolRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	handler, ok := s.tools[request.Name]
	if !ok {
		http.Error(w, fmt.Sprintf("Unknown tool: %s", request.Name), http.StatusNotFound)
		return
	}

	s.logger.Info("Tool call", zap.String("tool", request.Name))
	result, err := handler(r.Context(), &request)
	if err != nil {
		s.logger.Warn("Tool call failed", zap.String("tool", request.Name), zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, errInvalidParams) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	s.writeJSON(w, result)
}

func (s *PantryServer) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *PantryServer) toolNames() []string {
	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *PantryServer) Start(ctx context.Context) error {
	s.logger.Info("Starting pantry assistant server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *PantryServer) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *PantryServer) createJSONResponse(data interface{}) (*protocol.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return &protocol.CallToolResult{
		Content: []protocol.Content{
			protocol.TextContent{
				Type: "text",
				Text: string(jsonBytes),
			},
		},
	}, nil
}
