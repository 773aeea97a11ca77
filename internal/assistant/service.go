package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pearldental/clinic-booking/internal/booking"
	"github.com/pearldental/clinic-booking/internal/patient"
	"github.com/pearldental/clinic-booking/pkg/logging"
)

const (
	// maxOracleRounds bounds action chains within one user turn.
	maxOracleRounds = 3
	// maxParseRetries bounds re-asks after malformed oracle output.
	maxParseRetries = 3

	apologyText = "I'm sorry, I'm having trouble answering right now. Could you rephrase that?"
)

var ErrEmptyMessage = errors.New("chat message is empty")

type actionDispatcher interface {
	Dispatch(ctx context.Context, accountID uuid.UUID, action string, params json.RawMessage) Envelope
}

type patientLister interface {
	List(ctx context.Context, accountID uuid.UUID) ([]patient.Patient, error)
}

type appointmentLister interface {
	ListUpcoming(ctx context.Context, accountID uuid.UUID, patientID *uuid.UUID) ([]booking.AppointmentDetail, error)
}

// Service runs the conversation loop: persist the user's message, ask the
// oracle, dispatch any action it requests, feed the result back, and
// return the final human-facing reply.
type Service struct {
	oracle      LLMClient
	dispatcher  actionDispatcher
	transcripts *TranscriptStore
	patients    patientLister
	bookings    appointmentLister
	logger      *logging.Logger
	loc         *time.Location
	now         func() time.Time
}

func NewService(oracle LLMClient, dispatcher actionDispatcher, transcripts *TranscriptStore, patients patientLister, bookings appointmentLister, loc *time.Location, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		oracle:      oracle,
		dispatcher:  dispatcher,
		transcripts: transcripts,
		patients:    patients,
		bookings:    bookings,
		logger:      logger,
		loc:         loc,
		now:         time.Now,
	}
}

// Chat handles one user turn and returns the assistant's reply.
func (s *Service) Chat(ctx context.Context, accountID uuid.UUID, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyMessage
	}

	if err := s.transcripts.Append(ctx, accountID, Entry{Role: ChatRoleUser, Content: message}); err != nil {
		return "", err
	}

	for round := 0; round < maxOracleRounds; round++ {
		reply, err := s.askOracle(ctx, accountID)
		if errors.Is(err, ErrMalformedReply) {
			s.logger.Warn("oracle kept returning malformed replies", "account_id", accountID)
			return apologyText, nil
		}
		if err != nil {
			return "", err
		}

		if reply.Action == "" {
			if err := s.transcripts.Append(ctx, accountID, Entry{Role: ChatRoleAssistant, Content: reply.BotResponse}); err != nil {
				s.logger.Warn("failed to persist assistant reply", "err", err)
			}
			return reply.BotResponse, nil
		}

		// record the action turn, run it, and record the result so the
		// next oracle round sees both
		raw, _ := json.Marshal(reply)
		if err := s.transcripts.Append(ctx, accountID, Entry{Role: RoleActionRequest, Content: string(raw)}); err != nil {
			s.logger.Warn("failed to persist action turn", "err", err)
		}

		env := s.dispatcher.Dispatch(ctx, accountID, reply.Action, reply.Parameters)
		if err := s.transcripts.Append(ctx, accountID, Entry{Role: RoleAction, Content: env.JSON()}); err != nil {
			s.logger.Warn("failed to persist action result", "err", err)
		}
	}

	// round budget exhausted while the oracle still wanted actions
	final := "I've done what I could with that request. Anything else?"
	if err := s.transcripts.Append(ctx, accountID, Entry{Role: ChatRoleAssistant, Content: final}); err != nil {
		s.logger.Warn("failed to persist assistant reply", "err", err)
	}
	return final, nil
}

// History returns the human-facing transcript: action turns and action
// results stay internal to the oracle loop.
func (s *Service) History(ctx context.Context, accountID uuid.UUID) ([]Entry, error) {
	entries, err := s.transcripts.Recent(ctx, accountID)
	if err != nil {
		return nil, err
	}

	visible := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Role == RoleAction || e.Role == RoleActionRequest {
			continue
		}
		visible = append(visible, e)
	}
	return visible, nil
}

func (s *Service) askOracle(ctx context.Context, accountID uuid.UUID) (*OracleReply, error) {
	messages, err := s.buildMessages(ctx, accountID)
	if err != nil {
		return nil, err
	}

	req := LLMRequest{
		System:      []string{systemPrompt, s.userContext(ctx, accountID)},
		Messages:    messages,
		MaxTokens:   1024,
		Temperature: 0.2,
	}

	for attempt := 1; attempt <= maxParseRetries; attempt++ {
		resp, err := s.oracle.Complete(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("oracle completion: %w", err)
		}

		reply, parseErr := ParseOracleReply(resp.Text)
		if parseErr == nil {
			return reply, nil
		}
		s.logger.Warn("malformed oracle reply", "attempt", attempt, "text", resp.Text)
	}

	return nil, ErrMalformedReply
}

func (s *Service) buildMessages(ctx context.Context, accountID uuid.UUID) ([]ChatMessage, error) {
	entries, err := s.transcripts.Recent(ctx, accountID)
	if err != nil {
		return nil, err
	}

	messages := make([]ChatMessage, 0, len(entries))
	for _, e := range entries {
		switch e.Role {
		case RoleAction:
			messages = append(messages, ChatMessage{
				Role:    ChatRoleUser,
				Content: "ACTION RESULT: " + e.Content,
			})
		case RoleActionRequest:
			messages = append(messages, ChatMessage{Role: ChatRoleAssistant, Content: e.Content})
		default:
			messages = append(messages, ChatMessage{Role: e.Role, Content: e.Content})
		}
	}
	return messages, nil
}

// userContext is best effort: a failed lookup degrades the oracle's
// grounding but never blocks the conversation.
func (s *Service) userContext(ctx context.Context, accountID uuid.UUID) string {
	var pats []patient.Patient
	if s.patients != nil {
		var err error
		pats, err = s.patients.List(ctx, accountID)
		if err != nil {
			s.logger.Warn("chat context: patient list failed", "err", err)
		}
	}

	var upcoming []booking.AppointmentDetail
	if s.bookings != nil {
		var err error
		upcoming, err = s.bookings.ListUpcoming(ctx, accountID, nil)
		if err != nil {
			s.logger.Warn("chat context: upcoming appointments failed", "err", err)
		}
	}

	return buildUserContext(s.now().In(s.loc), pats, upcoming)
}
