package hive

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hivemachines/account-provisioner/interfaces"
)

// DefaultAPIAddress is the public condenser API endpoint.
const DefaultAPIAddress = "https://api.hive.blog"

// defaultExpiration is how far in the future broadcast transactions expire,
// measured from the node's own head-block time to sidestep local clock skew.
const defaultExpiration = 60 * time.Second

// Client talks JSON-RPC to a condenser API node and broadcasts
// create_claimed_account operations authorized by a single creator account.
// It is safe for concurrent use and intended to be constructed once at
// process start.
type Client struct {
	endpoint   string
	httpClient *http.Client
	chainID    string
	creator    string
	activeKey  *PrivateKey
	expiration time.Duration
	log        *slog.Logger
}

// ClientOption adjusts optional Client behavior.
type ClientOption func(*Client)

// WithHTTPClient substitutes the HTTP client used for RPC calls.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithChainID overrides the mainnet chain id (for testnets).
func WithChainID(chainID string) ClientOption {
	return func(c *Client) { c.chainID = chainID }
}

// WithExpiration overrides the transaction expiration window.
func WithExpiration(d time.Duration) ClientOption {
	return func(c *Client) { c.expiration = d }
}

// NewClient creates a client for the node at endpoint. creator is the
// account whose pre-claimed slots are spent; activeKey is its active
// authority key used to sign every broadcast.
func NewClient(endpoint, creator string, activeKey *PrivateKey, log *slog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		chainID:    MainnetChainID,
		creator:    creator,
		activeKey:  activeKey,
		expiration: defaultExpiration,
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DynamicGlobalProperties is the subset of chain state needed to anchor a
// transaction to a recent block.
type DynamicGlobalProperties struct {
	HeadBlockNumber uint32 `json:"head_block_number"`
	HeadBlockID     string `json:"head_block_id"`
	Time            Time   `json:"time"`
}

// DynamicGlobalProperties fetches the current chain state.
func (c *Client) DynamicGlobalProperties(ctx context.Context) (*DynamicGlobalProperties, error) {
	var props DynamicGlobalProperties
	if err := c.call(ctx, "condenser_api.get_dynamic_global_properties", []interface{}{}, &props); err != nil {
		return nil, err
	}
	return &props, nil
}

// CreateClaimedAccount implements interfaces.AccountCreator. It anchors a
// transaction to the node's head block, attaches the fixed single-key
// authority structure for each role, signs with the creator's active key and
// broadcasts synchronously, returning the node's receipt verbatim.
func (c *Client) CreateClaimedAccount(ctx context.Context, username interfaces.AccountName, keys interfaces.AccountKeys) (json.RawMessage, error) {
	props, err := c.DynamicGlobalProperties(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching chain properties: %w", err)
	}

	refBlockNum, refBlockPrefix, err := refBlock(props)
	if err != nil {
		return nil, err
	}

	tx := &Transaction{
		RefBlockNum:    refBlockNum,
		RefBlockPrefix: refBlockPrefix,
		Expiration:     Time{props.Time.Add(c.expiration)},
		Operations: []CreateClaimedAccountOperation{{
			Creator:        c.creator,
			NewAccountName: username.String(),
			Owner:          SingleKeyAuthority(keys.Owner),
			Active:         SingleKeyAuthority(keys.Active),
			Posting:        SingleKeyAuthority(keys.Posting),
			MemoKey:        keys.Memo,
			JSONMetadata:   "",
			Extensions:     []json.RawMessage{},
		}},
		Extensions: []json.RawMessage{},
		Signatures: []string{},
	}

	if err := tx.Sign(c.activeKey, c.chainID); err != nil {
		return nil, fmt.Errorf("signing transaction: %w", err)
	}

	c.log.Info("Broadcasting create_claimed_account",
		slog.String("creator", c.creator),
		slog.String("newAccount", username.String()),
		slog.Uint64("refBlockNum", uint64(refBlockNum)))

	var receipt json.RawMessage
	if err := c.call(ctx, "condenser_api.broadcast_transaction_synchronous", []interface{}{tx}, &receipt); err != nil {
		return nil, fmt.Errorf("broadcasting transaction: %w", err)
	}
	return receipt, nil
}

// refBlock derives the TaPoS anchor fields from the head block id: the low
// 16 bits of the block number and a 32-bit prefix taken from bytes 4..8 of
// the block id.
func refBlock(props *DynamicGlobalProperties) (uint16, uint32, error) {
	id, err := hex.DecodeString(props.HeadBlockID)
	if err != nil || len(id) < 8 {
		return 0, 0, fmt.Errorf("malformed head block id %q", props.HeadBlockID)
	}
	return uint16(props.HeadBlockNumber & 0xffff), binary.LittleEndian.Uint32(id[4:8]), nil
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      string        `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call performs one JSON-RPC 2.0 round trip and unmarshals the result into
// out when out is non-nil.
func (c *Client) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      uuid.NewString(),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not reach node: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("node returned status %d: %s", resp.StatusCode, bytes.TrimSpace(payload))
	}

	var parsed rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("could not parse node response: %w", err)
	}
	if parsed.Error != nil {
		return fmt.Errorf("node rejected %s: %s (code %d)", method, parsed.Error.Message, parsed.Error.Code)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(parsed.Result, out); err != nil {
		return fmt.Errorf("could not parse %s result: %w", method, err)
	}
	return nil
}
