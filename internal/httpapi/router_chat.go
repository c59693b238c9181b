package httpapi

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/dwizi/devops-assistant/internal/chat"
	"github.com/dwizi/devops-assistant/internal/routing"
)

type chatRequest struct {
	Message   string `json:"message"`
	Text      string `json:"text"`
	ClientKey string `json:"client_key"`
}

func (p chatRequest) message() string {
	if text := strings.TrimSpace(p.Message); text != "" {
		return text
	}
	return strings.TrimSpace(p.Text)
}

func (r *router) handleChat(w http.ResponseWriter, req *http.Request) {
	if !methodAllowed(w, req, http.MethodPost) {
		return
	}
	if r.deps.Chat == nil {
		writeError(w, http.StatusServiceUnavailable, "chat service is unavailable")
		return
	}

	var payload chatRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	text := payload.message()
	if text == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	output, err := r.deps.Chat.HandleMessage(req.Context(), chat.MessageInput{
		ClientKey: clientKey(req, payload.ClientKey),
		Text:      text,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	switch output.Type {
	case chat.TypeRateLimited:
		if output.RetryAfterSec > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(output.RetryAfterSec))
		}
		writeJSON(w, http.StatusTooManyRequests, output)
	case chat.TypeRejected:
		writeJSON(w, http.StatusRequestEntityTooLarge, output)
	default:
		writeJSON(w, http.StatusOK, output)
	}
}

func (r *router) handleChatHistory(w http.ResponseWriter, req *http.Request) {
	if !methodAllowed(w, req, http.MethodGet) {
		return
	}
	if r.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "store is unavailable")
		return
	}
	items, err := r.deps.Store.ListChatExchanges(req.Context(), strings.TrimSpace(req.URL.Query().Get("client_key")), queryLimit(req))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

func (r *router) handleRoute(w http.ResponseWriter, req *http.Request) {
	if !methodAllowed(w, req, http.MethodPost) {
		return
	}
	var payload chatRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	text := payload.message()
	if text == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	writeJSON(w, http.StatusOK, routing.Classify(text))
}

// clientKey identifies the caller for rate limiting and transcripts: an
// explicit key wins, then the X-Client-Key header, then the remote host.
func clientKey(req *http.Request, explicit string) string {
	if key := strings.TrimSpace(explicit); key != "" {
		return key
	}
	if key := strings.TrimSpace(req.Header.Get("X-Client-Key")); key != "" {
		return key
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = strings.TrimSpace(req.RemoteAddr)
	}
	if host == "" {
		return "anonymous"
	}
	return host
}
