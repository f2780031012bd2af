package hive

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// MainnetChainID is the chain identifier mixed into every signing digest.
const MainnetChainID = "beeab0de00000000000000000000000000000000000000000000000000000000"

// createClaimedAccountOpID is the protocol id of the create_claimed_account
// operation.
const createClaimedAccountOpID = 23

// timeFormat is the chain's second-resolution timestamp format, without a
// timezone suffix (timestamps are implicitly UTC).
const timeFormat = "2006-01-02T15:04:05"

// Time wraps time.Time with the chain's JSON encoding.
type Time struct {
	time.Time
}

// MarshalJSON encodes the timestamp in the chain's format.
func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(timeFormat))
}

// UnmarshalJSON decodes a chain-format timestamp.
func (t *Time) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(timeFormat, s)
	if err != nil {
		return err
	}
	t.Time = parsed.UTC()
	return nil
}

// KeyAuth is a single public key authorization with its weight. It encodes
// as the JSON tuple ["STM...", weight].
type KeyAuth struct {
	Key    string
	Weight uint16
}

// MarshalJSON encodes the key auth as a two-element array.
func (a KeyAuth) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{a.Key, a.Weight})
}

// AccountAuth is a delegated account authorization, encoded as
// ["account", weight].
type AccountAuth struct {
	Account string
	Weight  uint16
}

// MarshalJSON encodes the account auth as a two-element array.
func (a AccountAuth) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{a.Account, a.Weight})
}

// Authority is the authority structure attached to each account role.
type Authority struct {
	WeightThreshold uint32        `json:"weight_threshold"`
	AccountAuths    []AccountAuth `json:"account_auths"`
	KeyAuths        []KeyAuth     `json:"key_auths"`
}

// SingleKeyAuthority builds the fixed authority shape used for provisioned
// accounts: threshold 1, no delegated accounts, exactly one key of weight 1.
func SingleKeyAuthority(pub string) Authority {
	return Authority{
		WeightThreshold: 1,
		AccountAuths:    []AccountAuth{},
		KeyAuths:        []KeyAuth{{Key: pub, Weight: 1}},
	}
}

// CreateClaimedAccountOperation creates a named account from a pre-claimed
// slot owned by Creator. No fee is charged.
type CreateClaimedAccountOperation struct {
	Creator        string            `json:"creator"`
	NewAccountName string            `json:"new_account_name"`
	Owner          Authority         `json:"owner"`
	Active         Authority         `json:"active"`
	Posting        Authority         `json:"posting"`
	MemoKey        string            `json:"memo_key"`
	JSONMetadata   string            `json:"json_metadata"`
	Extensions     []json.RawMessage `json:"extensions"`
}

// MarshalJSON encodes the operation as the condenser-API tuple
// ["create_claimed_account", {...}].
func (op CreateClaimedAccountOperation) MarshalJSON() ([]byte, error) {
	type payload CreateClaimedAccountOperation
	return json.Marshal([]interface{}{"create_claimed_account", payload(op)})
}

func (op CreateClaimedAccountOperation) serialize(buf *bytes.Buffer) error {
	writeUvarint(buf, createClaimedAccountOpID)
	writeString(buf, op.Creator)
	writeString(buf, op.NewAccountName)
	for _, auth := range []Authority{op.Owner, op.Active, op.Posting} {
		if err := auth.serialize(buf); err != nil {
			return err
		}
	}
	if err := writePublicKey(buf, op.MemoKey); err != nil {
		return err
	}
	writeString(buf, op.JSONMetadata)
	writeUvarint(buf, uint64(len(op.Extensions)))
	return nil
}

func (a Authority) serialize(buf *bytes.Buffer) error {
	binary.Write(buf, binary.LittleEndian, a.WeightThreshold)
	writeUvarint(buf, uint64(len(a.AccountAuths)))
	for _, acct := range a.AccountAuths {
		writeString(buf, acct.Account)
		binary.Write(buf, binary.LittleEndian, acct.Weight)
	}
	writeUvarint(buf, uint64(len(a.KeyAuths)))
	for _, key := range a.KeyAuths {
		if err := writePublicKey(buf, key.Key); err != nil {
			return err
		}
		binary.Write(buf, binary.LittleEndian, key.Weight)
	}
	return nil
}

// Transaction is a signed or unsigned chain transaction carrying
// create_claimed_account operations.
type Transaction struct {
	RefBlockNum    uint16                          `json:"ref_block_num"`
	RefBlockPrefix uint32                          `json:"ref_block_prefix"`
	Expiration     Time                            `json:"expiration"`
	Operations     []CreateClaimedAccountOperation `json:"operations"`
	Extensions     []json.RawMessage               `json:"extensions"`
	Signatures     []string                        `json:"signatures"`
}

// Serialize returns the canonical binary form of the transaction without
// signatures, as hashed for signing.
func (tx *Transaction) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, tx.RefBlockNum)
	binary.Write(&buf, binary.LittleEndian, tx.RefBlockPrefix)
	binary.Write(&buf, binary.LittleEndian, uint32(tx.Expiration.Unix()))
	writeUvarint(&buf, uint64(len(tx.Operations)))
	for _, op := range tx.Operations {
		if err := op.serialize(&buf); err != nil {
			return nil, err
		}
	}
	writeUvarint(&buf, uint64(len(tx.Extensions)))
	return buf.Bytes(), nil
}

// Digest returns the signing digest: sha256(chainID || serialized tx).
func (tx *Transaction) Digest(chainID string) ([]byte, error) {
	id, err := hex.DecodeString(chainID)
	if err != nil || len(id) != 32 {
		return nil, fmt.Errorf("invalid chain id %q", chainID)
	}
	serialized, err := tx.Serialize()
	if err != nil {
		return nil, err
	}
	h := sha256.New()
	h.Write(id)
	h.Write(serialized)
	return h.Sum(nil), nil
}

// Sign appends a canonical signature by key over the transaction digest.
func (tx *Transaction) Sign(key *PrivateKey, chainID string) error {
	digest, err := tx.Digest(chainID)
	if err != nil {
		return err
	}
	sig, err := key.SignDigest(digest)
	if err != nil {
		return err
	}
	tx.Signatures = append(tx.Signatures, hex.EncodeToString(sig))
	return nil
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func writeString(buf *bytes.Buffer, s string) {
	writeUvarint(buf, uint64(len(s)))
	buf.WriteString(s)
}

func writePublicKey(buf *bytes.Buffer, pub string) error {
	key, err := PublicKeyFromString(pub)
	if err != nil {
		return fmt.Errorf("operation carries %w", err)
	}
	buf.Write(key.Bytes())
	return nil
}
