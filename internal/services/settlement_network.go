package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/nordbank/banking-platform-backend/internal/logger"
)

// SettlementNetworkClient hands rendered payment documents to the clearing
// network. Submissions must be idempotent on the network side: the same
// message id or transaction reference may be re-submitted after a crash.
type SettlementNetworkClient interface {
	SubmitSepaBatch(ctx context.Context, messageID, documentXML string) error
	SubmitSwiftMessage(ctx context.Context, transactionReference, mt103 string) error
}

// SimulatedSettlementNetwork is the stand-in used outside production. It
// performs shallow payload checks and retries the underlying transport on
// transient failures.
type SimulatedSettlementNetwork struct {
	// Transport delivers the payload. Defaults to accepting everything.
	Transport   func(ctx context.Context, reference, payload string) error
	MaxAttempts uint
}

func NewSimulatedSettlementNetwork() *SimulatedSettlementNetwork {
	return &SimulatedSettlementNetwork{MaxAttempts: 3}
}

func (n *SimulatedSettlementNetwork) SubmitSepaBatch(ctx context.Context, messageID, documentXML string) error {
	if !strings.Contains(documentXML, "<Document") {
		return fmt.Errorf("sepa batch %s payload is not an ISO 20022 document", messageID)
	}
	return n.deliver(ctx, messageID, documentXML)
}

func (n *SimulatedSettlementNetwork) SubmitSwiftMessage(ctx context.Context, transactionReference, mt103 string) error {
	if !strings.HasPrefix(mt103, "{1:") {
		return fmt.Errorf("swift message %s payload is not an MT103", transactionReference)
	}
	return n.deliver(ctx, transactionReference, mt103)
}

func (n *SimulatedSettlementNetwork) deliver(ctx context.Context, reference, payload string) error {
	transport := n.Transport
	if transport == nil {
		transport = func(context.Context, string, string) error { return nil }
	}

	attempts := n.MaxAttempts
	if attempts == 0 {
		attempts = 3
	}

	err := retry.Do(
		func() error { return transport(ctx, reference, payload) },
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(100*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			logger.Ctx(ctx).Warnf("settlement submission %s attempt %d failed: %v", reference, attempt+1, err)
		}),
	)
	if err != nil {
		return fmt.Errorf("delivering %s to the settlement network: %w", reference, err)
	}
	return nil
}
