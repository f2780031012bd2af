// Package provision implements the account provisioning flow: verify the
// Bitcoin signature over the request, reserve the address in the durable
// ledger, derive the account's role keys and broadcast the account creation.
package provision

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hivemachines/account-provisioner/interfaces"
	"github.com/hivemachines/account-provisioner/metrics"
)

// Service implements interfaces.Provisioner. It owns the ordering of the
// flow; every external effect goes through an injected dependency.
type Service struct {
	verifier interfaces.SignatureVerifier
	ledger   interfaces.AddressLedger
	keys     interfaces.CredentialGenerator
	creator  interfaces.AccountCreator
	machines interfaces.MachineChecker

	enforceOwnership bool
	log              *slog.Logger
}

// Config collects the dependencies of a Service.
type Config struct {
	Verifier interfaces.SignatureVerifier
	Ledger   interfaces.AddressLedger
	Keys     interfaces.CredentialGenerator
	Creator  interfaces.AccountCreator

	// Machines is optional. When set and EnforceOwnership is true, only
	// addresses owning a Bitcoin Machine may provision an account. When set
	// with EnforceOwnership false the ownership status is logged but does
	// not gate the request.
	Machines         interfaces.MachineChecker
	EnforceOwnership bool

	Log *slog.Logger
}

// NewService creates a provisioning service from its dependencies.
func NewService(cfg Config) *Service {
	return &Service{
		verifier:         cfg.Verifier,
		ledger:           cfg.Ledger,
		keys:             cfg.Keys,
		creator:          cfg.Creator,
		machines:         cfg.Machines,
		enforceOwnership: cfg.EnforceOwnership,
		log:              cfg.Log,
	}
}

// Provision implements interfaces.Provisioner.
//
// The address is reserved before the account creation is broadcast. If the
// broadcast fails the reservation stands: the signed message may already
// have reached the chain, and releasing the address would allow a second
// account from the same signature. Operators resolve those cases by hand.
func (s *Service) Provision(ctx context.Context, req interfaces.ProvisioningRequest) (*interfaces.ProvisioningResult, error) {
	start := time.Now()
	log := s.log.With(
		slog.String("username", req.Username),
		slog.String("address", req.Address),
	)

	if !req.Complete() {
		metrics.ProvisionAttempts.WithLabelValues("invalid_request").Inc()
		return nil, interfaces.ErrInvalidRequest
	}

	if !s.verifier.Verify(req.Address, req.Message, req.Signature) {
		log.Info("Rejected request with invalid signature")
		metrics.ProvisionAttempts.WithLabelValues("invalid_signature").Inc()
		return nil, interfaces.ErrSignatureInvalid
	}

	if s.enforceOwnership && s.machines != nil {
		owns, err := s.machines.OwnsMachine(ctx, interfaces.BTCAddress(req.Address))
		if err != nil {
			log.Error("Machine ownership check failed", "err", err)
			metrics.ProvisionAttempts.WithLabelValues("registry_error").Inc()
			return nil, fmt.Errorf("%w: %v", interfaces.ErrExternalService, err)
		}
		if !owns {
			log.Info("Rejected address without a Bitcoin Machine")
			metrics.ProvisionAttempts.WithLabelValues("no_machine").Inc()
			return nil, interfaces.ErrNoMachine
		}
	}

	granted, err := s.ledger.Reserve(ctx, interfaces.BTCAddress(req.Address))
	if err != nil {
		log.Error("Address reservation failed", "err", err)
		metrics.ProvisionAttempts.WithLabelValues("ledger_error").Inc()
		return nil, fmt.Errorf("%w: %v", interfaces.ErrExternalService, err)
	}
	if !granted {
		log.Info("Rejected already-used address")
		metrics.ProvisionAttempts.WithLabelValues("address_used").Inc()
		return nil, interfaces.ErrAddressAlreadyUsed
	}

	if !s.enforceOwnership && s.machines != nil {
		if owns, err := s.machines.OwnsMachine(ctx, interfaces.BTCAddress(req.Address)); err != nil {
			log.Warn("Machine ownership check failed, continuing", "err", err)
		} else {
			log.Info("Machine ownership status", slog.Bool("ownsBTCMachine", owns))
		}
	}

	credentials, err := s.keys.Generate(interfaces.AccountName(req.Username))
	if err != nil {
		log.Error("Key derivation failed", "err", err)
		metrics.ProvisionAttempts.WithLabelValues("key_error").Inc()
		return nil, fmt.Errorf("failed to derive account keys: %w", err)
	}

	// The address is reserved and the outcome must be settled one way, so a
	// client disconnect no longer cancels the broadcast.
	receipt, err := s.creator.CreateClaimedAccount(context.WithoutCancel(ctx), interfaces.AccountName(req.Username), credentials.PublicKeys())
	if err != nil {
		log.Error("Account creation failed, address stays reserved", "err", err)
		metrics.ProvisionAttempts.WithLabelValues("broadcast_error").Inc()
		return nil, fmt.Errorf("%w: %v", interfaces.ErrExternalService, err)
	}

	log.Info("Provisioned account", slog.Duration("duration", time.Since(start)))
	metrics.ProvisionAttempts.WithLabelValues("success").Inc()

	return &interfaces.ProvisioningResult{
		Receipt:     receipt,
		Credentials: credentials,
	}, nil
}
