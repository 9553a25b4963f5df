// Package api 暴露会话引擎的 REST 接口。
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"SonaChat/internal/action"
	"SonaChat/internal/chat"
	xerrors "SonaChat/internal/errors"
	"SonaChat/internal/observability/metrics"
	"SonaChat/internal/session"
	"SonaChat/internal/wallet"
)

// Server 负责暴露 REST 接口，供外部客户端驱动会话引擎。
type Server struct {
	addr     string
	session  *session.Service
	balances *wallet.BalanceService
}

// NewServer 构造 API 服务实例。balances 可以为 nil，
// 此时余额接口返回服务不可用。
func NewServer(addr string, svc *session.Service, balances *wallet.BalanceService) *Server {
	return &Server{addr: addr, session: svc, balances: balances}
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Handler 返回完整的路由表，测试可以直接挂到 httptest 上。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/identity", s.instrument("identity", s.handleIdentity))
	mux.HandleFunc("/api/v1/conversations", s.instrument("conversations", s.handleConversations))
	mux.HandleFunc("/api/v1/conversations/", s.instrument("conversation", s.handleConversation))
	mux.HandleFunc("/api/v1/messages", s.instrument("messages", s.handleMessages))
	mux.HandleFunc("/api/v1/mode", s.instrument("mode", s.handleMode))
	mux.HandleFunc("/api/v1/balance", s.instrument("balance", s.handleBalance))
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func (s *Server) handleIdentity(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			Address string `json:"address"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "请求体解析失败", http.StatusBadRequest)
			return
		}
		identity, err := wallet.NormalizeIdentity(req.Address)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.session.Attach(r.Context(), identity)
		writeJSON(w, map[string]string{"identity": identity})
	case http.MethodDelete:
		s.session.Detach(r.Context())
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "仅支持 POST/DELETE", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, s.session.Conversations())
	case http.MethodPost:
		var req struct {
			Mode string `json:"mode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "请求体解析失败", http.StatusBadRequest)
			return
		}
		conv := s.session.CreateConversation(r.Context(), chat.Mode(req.Mode))
		writeJSON(w, conv)
	default:
		http.Error(w, "仅支持 GET/POST", http.StatusMethodNotAllowed)
	}
}

// handleConversation 处理 /api/v1/conversations/<id>[/activate] 的请求。
func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/conversations/")
	id, verb, _ := strings.Cut(rest, "/")
	if id == "" {
		http.Error(w, "缺少会话 ID", http.StatusBadRequest)
		return
	}

	switch {
	case verb == "activate" && r.Method == http.MethodPost:
		s.session.SwitchConversation(id)
		w.WriteHeader(http.StatusNoContent)
	case verb == "" && r.Method == http.MethodDelete:
		s.session.DeleteConversation(r.Context(), id)
		w.WriteHeader(http.StatusNoContent)
	case verb == "" && (r.Method == http.MethodPut || r.Method == http.MethodPatch):
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "请求体解析失败", http.StatusBadRequest)
			return
		}
		s.session.RenameConversation(r.Context(), id, req.Name)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "不支持的操作", http.StatusMethodNotAllowed)
	}
}

// messageView 是消息的传输形态：原文加上解码出的动作视图。
type messageView struct {
	chat.Message
	Action *action.CryptoAction `json:"action,omitempty"`
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		views := s.session.Messages()
		out := make([]messageView, 0, len(views))
		for _, v := range views {
			out = append(out, messageView{Message: v.Message, Action: v.Action})
		}
		writeJSON(w, out)
	case http.MethodPost:
		var req struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "请求体解析失败", http.StatusBadRequest)
			return
		}
		exchange, err := s.session.SendMessage(r.Context(), req.Content)
		if err != nil {
			if xerrors.CodeOf(err) == session.CodeSendPending {
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if exchange == nil {
			http.Error(w, "消息内容不能为空", http.StatusBadRequest)
			return
		}
		writeJSON(w, struct {
			User      chat.Message         `json:"user"`
			Assistant chat.Message         `json:"assistant"`
			Action    *action.CryptoAction `json:"action,omitempty"`
		}{exchange.User, exchange.Assistant, exchange.Action})
	default:
		http.Error(w, "仅支持 GET/POST", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]string{"description": s.session.ModeDescription()})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.balances == nil {
		http.Error(w, "余额查询未配置", http.StatusServiceUnavailable)
		return
	}

	identity := r.URL.Query().Get("address")
	balance, err := s.balances.NativeBalance(r.Context(), identity)
	if err != nil {
		if xerrors.CodeOf(err) == xerrors.CodeInvalidArgument {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, balance)
}

// instrument 为处理器记录请求计数与时延指标。
func (s *Server) instrument(name string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(recorder, r)
		metrics.ObserveHTTPRequest(name, r.Method, recorder.status, time.Since(start))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
