// Package ledger moves reward tokens and mints collectibles on the Hedera network.
package ledger

import (
	"context"
	"errors"
	"fmt"

	hedera "github.com/hashgraph/hedera-sdk-go/v2"
)

var (
	ErrLedgerDisabled = errors.New("ledger is not configured")
	ErrTransferFailed = errors.New("token transfer failed")
	ErrMintFailed     = errors.New("token mint failed")
	// ErrTokenNotAssociated means the recipient has not associated the token.
	// Association needs the account owner's key, so only the owner can fix it.
	ErrTokenNotAssociated = errors.New("token is not associated with the recipient account")
)

// Ledger is the subset of token operations the service needs.
type Ledger interface {
	Transfer(ctx context.Context, token, from, to string, amount int64) (txID string, err error)
	// MintNFT mints one serial per metadata entry, signed by the operator as supply key.
	MintNFT(ctx context.Context, token string, metadata [][]byte) (*MintResult, error)
}

type MintResult struct {
	TxID    string
	Serials []int64
}

type hederaLedger struct {
	client      *hedera.Client
	operatorKey hedera.PrivateKey
}

// NewHederaLedger connects to network ("testnet", "mainnet", "previewnet")
// and signs with the operator account.
func NewHederaLedger(network, operatorID, operatorKey string) (Ledger, error) {
	client, err := hedera.ClientForName(network)
	if err != nil {
		return nil, fmt.Errorf("failed to create hedera client: %w", err)
	}

	accountID, err := hedera.AccountIDFromString(operatorID)
	if err != nil {
		return nil, fmt.Errorf("invalid operator id: %w", err)
	}

	key, err := hedera.PrivateKeyFromString(operatorKey)
	if err != nil {
		return nil, fmt.Errorf("invalid operator key: %w", err)
	}

	client.SetOperator(accountID, key)

	return &hederaLedger{client: client, operatorKey: key}, nil
}

func (l *hederaLedger) Transfer(ctx context.Context, token, from, to string, amount int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if amount <= 0 {
		return "", fmt.Errorf("%w: amount must be positive", ErrTransferFailed)
	}

	tokenID, err := hedera.TokenIDFromString(token)
	if err != nil {
		return "", fmt.Errorf("invalid token id %q: %w", token, err)
	}
	fromID, err := hedera.AccountIDFromString(from)
	if err != nil {
		return "", fmt.Errorf("invalid treasury account %q: %w", from, err)
	}
	toID, err := hedera.AccountIDFromString(to)
	if err != nil {
		return "", fmt.Errorf("invalid recipient account %q: %w", to, err)
	}

	resp, err := hedera.NewTransferTransaction().
		AddTokenTransfer(tokenID, fromID, -amount).
		AddTokenTransfer(tokenID, toID, amount).
		Execute(l.client)
	if err != nil {
		return "", transferError(err)
	}

	receipt, err := resp.GetReceipt(l.client)
	if err != nil {
		return "", transferError(err)
	}
	if receipt.Status != hedera.StatusSuccess {
		return "", transferError(hedera.ErrHederaReceiptStatus{TxID: resp.TransactionID, Status: receipt.Status})
	}

	return resp.TransactionID.String(), nil
}

func (l *hederaLedger) MintNFT(ctx context.Context, token string, metadata [][]byte) (*MintResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(metadata) == 0 {
		return nil, fmt.Errorf("%w: no metadata", ErrMintFailed)
	}

	tokenID, err := hedera.TokenIDFromString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid token id %q: %w", token, err)
	}

	tx, err := hedera.NewTokenMintTransaction().
		SetTokenID(tokenID).
		SetMetadatas(metadata).
		FreezeWith(l.client)
	if err != nil {
		return nil, fmt.Errorf("failed to build mint transaction: %w", err)
	}

	resp, err := tx.Sign(l.operatorKey).Execute(l.client)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMintFailed, err)
	}

	receipt, err := resp.GetReceipt(l.client)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMintFailed, err)
	}
	if receipt.Status != hedera.StatusSuccess {
		return nil, fmt.Errorf("%w: status %s", ErrMintFailed, receipt.Status.String())
	}

	return &MintResult{TxID: resp.TransactionID.String(), Serials: receipt.SerialNumbers}, nil
}

// transferError maps a missing association to ErrTokenNotAssociated.
func transferError(err error) error {
	if status, ok := statusOf(err); ok && status == hedera.StatusTokenNotAssociatedToAccount {
		return fmt.Errorf("%w: %v", ErrTokenNotAssociated, err)
	}
	return fmt.Errorf("%w: %v", ErrTransferFailed, err)
}

func statusOf(err error) (hedera.Status, bool) {
	var precheck hedera.ErrHederaPreCheckStatus
	if errors.As(err, &precheck) {
		return precheck.Status, true
	}
	var receipt hedera.ErrHederaReceiptStatus
	if errors.As(err, &receipt) {
		return receipt.Status, true
	}
	return 0, false
}

// Disabled rejects every call; used when no operator credentials are configured.
type Disabled struct{}

func (Disabled) Transfer(context.Context, string, string, string, int64) (string, error) {
	return "", ErrLedgerDisabled
}

func (Disabled) MintNFT(context.Context, string, [][]byte) (*MintResult, error) {
	return nil, ErrLedgerDisabled
}
