package payments

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vechnost/vechnost/internal/observability"
	"github.com/vechnost/vechnost/pkg/subscription"
)

// SignatureHeader carries the provider's HMAC of the raw body.
const SignatureHeader = "X-Payment-Signature"

// Subscriptions is the slice of the subscription service the webhook
// needs.
type Subscriptions interface {
	Activate(ctx context.Context, userID int64, tier string, period time.Duration, paymentID string) *subscription.UserSubscription
	Cancel(ctx context.Context, userID int64)
}

// ServerOptions configures the payment webhook server.
type ServerOptions struct {
	Host   string
	Port   int
	Path   string // webhook endpoint path, default "/payments/webhook"
	Secret string // HMAC secret shared with the provider
}

// Server receives payment-provider webhooks over HTTP.
type Server struct {
	options ServerOptions
	server  *http.Server
	ledger  *Ledger
	subs    Subscriptions
	logger  zerolog.Logger
}

// NewServer creates a payment webhook server.
func NewServer(options ServerOptions, ledger *Ledger, subs Subscriptions, logger zerolog.Logger) (*Server, error) {
	if options.Port == 0 {
		options.Port = 3001
	}
	if options.Host == "" {
		options.Host = "0.0.0.0"
	}
	if options.Path == "" {
		options.Path = "/payments/webhook"
	}
	if options.Secret == "" {
		return nil, fmt.Errorf("payment webhook secret is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("payment ledger is required")
	}
	if subs == nil {
		return nil, fmt.Errorf("subscription service is required")
	}

	return &Server{
		options: options,
		ledger:  ledger,
		subs:    subs,
		logger:  logger.With().Str("component", "payment_webhook").Logger(),
	}, nil
}

// Start serves the webhook endpoint. It blocks until Stop is called.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc(s.options.Path, s.handleEvent)

	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.options.Host, s.options.Port),
		Handler: mux,
	}

	s.logger.Info().
		Str("host", s.options.Host).
		Int("port", s.options.Port).
		Str("path", s.options.Path).
		Msg("Starting payment webhook server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start payment webhook server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown payment webhook server: %w", err)
	}
	s.logger.Info().Msg("Payment webhook server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","timestamp":%d}`, time.Now().UnixMilli())
}

// handleEvent processes a single webhook delivery. Any 2xx tells the
// provider to stop retrying, so duplicates and unknown event names are
// acknowledged; only transport-level problems get error statuses.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read webhook body")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if !verifySignature(body, r.Header.Get(SignatureHeader), s.options.Secret) {
		s.logger.Warn().Str("remote", r.RemoteAddr).Msg("Invalid webhook signature")
		observability.RecordSecurityAudit("webhook_signature", r.RemoteAddr, "failure", nil)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	event, err := ParseEvent(body)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Rejected malformed webhook payload")
		observability.RecordPaymentEvent("malformed", false)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	first, err := s.ledger.Record(r.Context(), event)
	if err != nil {
		s.logger.Error().Err(err).Msg("Payment ledger write failed")
		observability.RecordPaymentEvent(event.Name, false)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if !first {
		s.logger.Info().
			Str("event", event.Name).
			Str("event_id", event.Payload.EventID).
			Msg("Duplicate webhook delivery acknowledged")
		w.WriteHeader(http.StatusOK)
		return
	}

	s.apply(r.Context(), event)
	observability.RecordPaymentEvent(event.Name, true)

	w.WriteHeader(http.StatusOK)
}

func (s *Server) apply(ctx context.Context, event *Event) {
	userID := event.Payload.TelegramUserID

	switch event.Name {
	case EventNewSubscription:
		s.subs.Activate(ctx, userID, subscription.TierPremium, event.Period(), event.Payload.EventID)
		observability.RecordPaymentAudit("subscription_payment", fmt.Sprintf("%d", userID), "success", map[string]interface{}{
			"amount":   event.Payload.Amount,
			"currency": event.Payload.Currency,
		})
	case EventCancelledSubscription:
		s.subs.Cancel(ctx, userID)
	default:
		s.logger.Info().Str("event", event.Name).Msg("Ignoring unhandled event type")
	}

	s.logger.Info().
		Str("event", event.Name).
		Int64("user_id", userID).
		Msg("Payment event processed")
}
