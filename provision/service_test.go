package provision

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hivemachines/account-provisioner/interfaces"
)

type mockVerifier struct{ mock.Mock }

func (m *mockVerifier) Verify(address, message, signature string) bool {
	return m.Called(address, message, signature).Bool(0)
}

type mockLedger struct{ mock.Mock }

func (m *mockLedger) Reserve(ctx context.Context, address interfaces.BTCAddress) (bool, error) {
	args := m.Called(ctx, address)
	return args.Bool(0), args.Error(1)
}

func (m *mockLedger) Contains(ctx context.Context, address interfaces.BTCAddress) (bool, error) {
	args := m.Called(ctx, address)
	return args.Bool(0), args.Error(1)
}

func (m *mockLedger) Close() error { return m.Called().Error(0) }

type mockGenerator struct{ mock.Mock }

func (m *mockGenerator) Generate(username interfaces.AccountName) (interfaces.AccountCredentials, error) {
	args := m.Called(username)
	return args.Get(0).(interfaces.AccountCredentials), args.Error(1)
}

type mockCreator struct{ mock.Mock }

func (m *mockCreator) CreateClaimedAccount(ctx context.Context, username interfaces.AccountName, keys interfaces.AccountKeys) (json.RawMessage, error) {
	args := m.Called(ctx, username, keys)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

type mockChecker struct{ mock.Mock }

func (m *mockChecker) OwnsMachine(ctx context.Context, address interfaces.BTCAddress) (bool, error) {
	args := m.Called(ctx, address)
	return args.Bool(0), args.Error(1)
}

var testCredentials = interfaces.AccountCredentials{
	Owner:   interfaces.RoleKeyPair{PrivateWIF: "owner-wif", PublicKey: "STM-owner"},
	Active:  interfaces.RoleKeyPair{PrivateWIF: "active-wif", PublicKey: "STM-active"},
	Posting: interfaces.RoleKeyPair{PrivateWIF: "posting-wif", PublicKey: "STM-posting"},
	Memo:    interfaces.RoleKeyPair{PrivateWIF: "memo-wif", PublicKey: "STM-memo"},
}

func validRequest() interfaces.ProvisioningRequest {
	return interfaces.ProvisioningRequest{
		Username:  "alice",
		Address:   "1BvBMSEYstWetqTFn5Au4m4GFg7xJaNVN2",
		Message:   "register alice",
		Signature: "H9L5yLFjti0QTHhPyFrZCT1V/MMnBtXKmoiKDZ78NDBjERki6ZTQZdSMCtkgoNmp17By9ItJr8o7ChX0XxY91nk=",
	}
}

type serviceMocks struct {
	verifier *mockVerifier
	ledger   *mockLedger
	keys     *mockGenerator
	creator  *mockCreator
	checker  *mockChecker
}

func newTestService(t *testing.T, enforceOwnership bool) (*Service, *serviceMocks) {
	t.Helper()
	m := &serviceMocks{
		verifier: &mockVerifier{},
		ledger:   &mockLedger{},
		keys:     &mockGenerator{},
		creator:  &mockCreator{},
		checker:  &mockChecker{},
	}
	svc := NewService(Config{
		Verifier:         m.verifier,
		Ledger:           m.ledger,
		Keys:             m.keys,
		Creator:          m.creator,
		Machines:         m.checker,
		EnforceOwnership: enforceOwnership,
		Log:              slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return svc, m
}

func TestProvisionSuccess(t *testing.T) {
	svc, m := newTestService(t, false)
	req := validRequest()
	receipt := json.RawMessage(`{"id":"abc123","block_num":42}`)

	m.verifier.On("Verify", req.Address, req.Message, req.Signature).Return(true)
	m.ledger.On("Reserve", mock.Anything, interfaces.BTCAddress(req.Address)).Return(true, nil)
	m.checker.On("OwnsMachine", mock.Anything, interfaces.BTCAddress(req.Address)).Return(true, nil)
	m.keys.On("Generate", interfaces.AccountName("alice")).Return(testCredentials, nil)
	m.creator.On("CreateClaimedAccount", mock.Anything, interfaces.AccountName("alice"), testCredentials.PublicKeys()).
		Return(receipt, nil)

	result, err := svc.Provision(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, receipt, result.Receipt)
	assert.Equal(t, testCredentials, result.Credentials)
	m.creator.AssertExpectations(t)
}

func TestProvisionIncompleteRequest(t *testing.T) {
	svc, m := newTestService(t, false)

	for _, req := range []interfaces.ProvisioningRequest{
		{},
		{Username: "alice", Address: "addr", Message: "msg"},
		{Username: "alice", Address: "   ", Message: "msg", Signature: "sig"},
		{Address: "addr", Message: "msg", Signature: "sig"},
	} {
		_, err := svc.Provision(context.Background(), req)
		assert.ErrorIs(t, err, interfaces.ErrInvalidRequest)
	}
	m.verifier.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything)
	m.ledger.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything)
}

func TestProvisionInvalidSignatureLeavesLedgerUntouched(t *testing.T) {
	svc, m := newTestService(t, false)
	req := validRequest()

	m.verifier.On("Verify", req.Address, req.Message, req.Signature).Return(false)

	_, err := svc.Provision(context.Background(), req)
	assert.ErrorIs(t, err, interfaces.ErrSignatureInvalid)
	m.ledger.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything)
	m.creator.AssertNotCalled(t, "CreateClaimedAccount", mock.Anything, mock.Anything, mock.Anything)
}

func TestProvisionAddressAlreadyUsed(t *testing.T) {
	svc, m := newTestService(t, false)
	req := validRequest()

	m.verifier.On("Verify", req.Address, req.Message, req.Signature).Return(true)
	m.ledger.On("Reserve", mock.Anything, interfaces.BTCAddress(req.Address)).Return(false, nil)

	_, err := svc.Provision(context.Background(), req)
	assert.ErrorIs(t, err, interfaces.ErrAddressAlreadyUsed)
	m.creator.AssertNotCalled(t, "CreateClaimedAccount", mock.Anything, mock.Anything, mock.Anything)
}

func TestProvisionLedgerFailure(t *testing.T) {
	svc, m := newTestService(t, false)
	req := validRequest()

	m.verifier.On("Verify", req.Address, req.Message, req.Signature).Return(true)
	m.ledger.On("Reserve", mock.Anything, interfaces.BTCAddress(req.Address)).
		Return(false, errors.New("disk full"))

	_, err := svc.Provision(context.Background(), req)
	assert.ErrorIs(t, err, interfaces.ErrExternalService)
	m.creator.AssertNotCalled(t, "CreateClaimedAccount", mock.Anything, mock.Anything, mock.Anything)
}

func TestProvisionEnforcedOwnershipRejectsBeforeReserve(t *testing.T) {
	svc, m := newTestService(t, true)
	req := validRequest()

	m.verifier.On("Verify", req.Address, req.Message, req.Signature).Return(true)
	m.checker.On("OwnsMachine", mock.Anything, interfaces.BTCAddress(req.Address)).Return(false, nil)

	_, err := svc.Provision(context.Background(), req)
	assert.ErrorIs(t, err, interfaces.ErrNoMachine)
	// A rejected address must not be burned.
	m.ledger.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything)
}

func TestProvisionEnforcedOwnershipRegistryError(t *testing.T) {
	svc, m := newTestService(t, true)
	req := validRequest()

	m.verifier.On("Verify", req.Address, req.Message, req.Signature).Return(true)
	m.checker.On("OwnsMachine", mock.Anything, interfaces.BTCAddress(req.Address)).
		Return(false, errors.New("registry down"))

	_, err := svc.Provision(context.Background(), req)
	assert.ErrorIs(t, err, interfaces.ErrExternalService)
	assert.NotErrorIs(t, err, interfaces.ErrNoMachine)
	m.ledger.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything)
}

func TestProvisionUnenforcedOwnershipDoesNotGate(t *testing.T) {
	svc, m := newTestService(t, false)
	req := validRequest()
	receipt := json.RawMessage(`{"id":"abc123"}`)

	m.verifier.On("Verify", req.Address, req.Message, req.Signature).Return(true)
	m.ledger.On("Reserve", mock.Anything, interfaces.BTCAddress(req.Address)).Return(true, nil)
	m.checker.On("OwnsMachine", mock.Anything, interfaces.BTCAddress(req.Address)).Return(false, nil)
	m.keys.On("Generate", interfaces.AccountName("alice")).Return(testCredentials, nil)
	m.creator.On("CreateClaimedAccount", mock.Anything, mock.Anything, mock.Anything).Return(receipt, nil)

	_, err := svc.Provision(context.Background(), req)
	assert.NoError(t, err, "ownership is informational when not enforced")
}

func TestProvisionUnenforcedOwnershipSurvivesRegistryOutage(t *testing.T) {
	svc, m := newTestService(t, false)
	req := validRequest()
	receipt := json.RawMessage(`{"id":"abc123"}`)

	m.verifier.On("Verify", req.Address, req.Message, req.Signature).Return(true)
	m.ledger.On("Reserve", mock.Anything, interfaces.BTCAddress(req.Address)).Return(true, nil)
	m.checker.On("OwnsMachine", mock.Anything, interfaces.BTCAddress(req.Address)).
		Return(false, errors.New("registry down"))
	m.keys.On("Generate", interfaces.AccountName("alice")).Return(testCredentials, nil)
	m.creator.On("CreateClaimedAccount", mock.Anything, mock.Anything, mock.Anything).Return(receipt, nil)

	_, err := svc.Provision(context.Background(), req)
	assert.NoError(t, err)
}

func TestProvisionBroadcastFailureKeepsReservation(t *testing.T) {
	svc, m := newTestService(t, false)
	req := validRequest()

	m.verifier.On("Verify", req.Address, req.Message, req.Signature).Return(true)
	m.ledger.On("Reserve", mock.Anything, interfaces.BTCAddress(req.Address)).Return(true, nil)
	m.checker.On("OwnsMachine", mock.Anything, interfaces.BTCAddress(req.Address)).Return(true, nil)
	m.keys.On("Generate", interfaces.AccountName("alice")).Return(testCredentials, nil)
	m.creator.On("CreateClaimedAccount", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("node rejected transaction"))

	_, err := svc.Provision(context.Background(), req)
	assert.ErrorIs(t, err, interfaces.ErrExternalService)

	// The ledger interface has no release operation; the reservation made
	// above is final no matter how the broadcast ends.
	m.ledger.AssertNumberOfCalls(t, "Reserve", 1)
}

func TestProvisionBroadcastOutlivesCancelledRequest(t *testing.T) {
	svc, m := newTestService(t, false)
	req := validRequest()
	receipt := json.RawMessage(`{"id":"abc123"}`)

	ctx, cancel := context.WithCancel(context.Background())

	m.verifier.On("Verify", req.Address, req.Message, req.Signature).Return(true)
	m.ledger.On("Reserve", mock.Anything, interfaces.BTCAddress(req.Address)).Return(true, nil)
	m.checker.On("OwnsMachine", mock.Anything, interfaces.BTCAddress(req.Address)).Return(true, nil)
	m.keys.On("Generate", interfaces.AccountName("alice")).Return(testCredentials, nil)
	m.creator.On("CreateClaimedAccount", mock.MatchedBy(func(callCtx context.Context) bool {
		cancel()
		return callCtx.Err() == nil
	}), mock.Anything, mock.Anything).Return(receipt, nil)

	_, err := svc.Provision(ctx, req)
	assert.NoError(t, err, "broadcast context is detached from the request context")
}
