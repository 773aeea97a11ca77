package api

import (
	"encoding/json"
	"net/http"

	"github.com/pearldental/clinic-booking/internal/assistant"
)

func chatHandler(svc *assistant.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := requireAccount(w, r)
		if !ok {
			return
		}

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		reply, err := svc.Chat(r.Context(), accountID, req.Message)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		history, err := svc.History(r.Context(), accountID)
		if err != nil {
			// the reply succeeded; degrade to an empty message list
			history = nil
		}

		messages := make([]ChatMessageResponse, 0, len(history))
		for _, e := range history {
			messages = append(messages, ChatMessageResponse{
				Role:    e.Role,
				Content: e.Content,
				At:      e.At,
			})
		}

		writeJSON(w, http.StatusOK, ChatResponse{Reply: reply, Messages: messages})
	}
}
