// Package cancel implements the cancellation receipt pipeline: a state
// machine that turns a cancellation intent into a reviewed draft, an
// on-chain proof transaction and a locally persisted receipt.
package cancel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Jpatching/ghostprotocol/internal/common"
	"github.com/Jpatching/ghostprotocol/internal/ledger"
	"github.com/Jpatching/ghostprotocol/internal/model"
	"github.com/Jpatching/ghostprotocol/internal/wallet"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the pipeline state: generating -> review -> signing -> {done | error}.
// error -> review (retry) and error -> done (abandon) are the recovery paths.
type State string

const (
	StateGenerating State = "generating"
	StateReview     State = "review"
	StateSigning    State = "signing"
	StateDone       State = "done"
	StateError      State = "error"
)

// Phase is one of the four ordered sub-phases inside the signing state,
// surfaced for progress display.
type Phase string

const (
	PhaseIdentityLoad     Phase = "identity-load"
	PhaseBalanceCheck     Phase = "balance-check"
	PhaseSign             Phase = "sign"
	PhaseBroadcastConfirm Phase = "broadcast-and-confirm"
)

// Pipeline failure kinds. Ledger and identity kinds come from their own
// packages; these cover the pipeline's own gates.
var (
	ErrNoIdentity         = errors.New("no identity available")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrDraftGeneration    = errors.New("draft generation failed")
	ErrReceiptPersistence = errors.New("receipt persistence failed")
	ErrInvalidTransition  = errors.New("invalid pipeline transition")
)

// Intent is one user request to cancel a specific subscription.
// Consumed by exactly one pipeline run, never mutated.
type Intent struct {
	SubscriptionID int64
	Name           string
	Amount         float64
	Merchant       string
	RequestedAt    time.Time
}

// Generator drafts the cancellation email. External boundary.
type Generator interface {
	GenerateCancellationDraft(ctx context.Context, name, merchant string, amount float64) (model.Draft, error)
}

// ReceiptStore persists the cancellation receipt. External boundary.
// A nil txSignature records a cancellation without on-chain proof.
type ReceiptStore interface {
	PutCancellationReceipt(ctx context.Context, subscriptionID int64, txSignature *string) error
}

// ActivityRecorder appends immutable log entries for completed actions.
// External boundary; failures are logged, never fatal.
type ActivityRecorder interface {
	AppendActivity(ctx context.Context, action, detail string, at time.Time) error
}

// Deps are the collaborators shared by all pipeline runs
type Deps struct {
	Generator      Generator
	Keystore       *wallet.Keystore
	Ledger         ledger.Client
	Receipts       ReceiptStore
	Activity       ActivityRecorder
	ConfirmTimeout time.Duration
	Log            *zap.Logger
}

// Pipeline is one cancellation run. Runs are independent state machines;
// several may execute concurrently sharing the keystore and ledger client.
type Pipeline struct {
	mu     sync.Mutex
	id     uuid.UUID
	intent Intent
	state  State
	phase  Phase
	phases []Phase
	draft  *model.Draft

	// txSig survives an error transition so a retry can reconcile against a
	// broadcast whose confirmation was lost, instead of re-broadcasting.
	txSig *solana.Signature

	errMsg  string
	errKind string

	deps Deps
}

// New creates a pipeline for the intent. Call Begin to start it.
func New(intent Intent, deps Deps) *Pipeline {
	return &Pipeline{
		id:     uuid.New(),
		intent: intent,
		deps:   deps,
	}
}

// ID returns the run identifier
func (p *Pipeline) ID() uuid.UUID { return p.id }

// State returns the current pipeline state
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Begin enters generating and obtains the cancellation draft.
// On failure the pipeline moves to error; no receipt is created.
func (p *Pipeline) Begin(ctx context.Context) error {
	p.mu.Lock()
	if p.state != "" {
		p.mu.Unlock()
		return fmt.Errorf("%w: begin from %q", ErrInvalidTransition, p.state)
	}
	p.state = StateGenerating
	p.mu.Unlock()

	draft, err := p.deps.Generator.GenerateCancellationDraft(ctx, p.intent.Name, p.intent.Merchant, p.intent.Amount)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrDraftGeneration, err)
		p.toError(err)
		return err
	}

	p.mu.Lock()
	p.draft = &draft
	p.state = StateReview
	p.mu.Unlock()
	return nil
}

// ConfirmAndSign runs the signing sequence: identity-load, balance-check,
// sign, broadcast-and-confirm, then persists the receipt. Any failure moves
// the pipeline to error without persisting anything, so persisted receipts
// always correspond to a confirmed transaction.
func (p *Pipeline) ConfirmAndSign(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateReview {
		p.mu.Unlock()
		return fmt.Errorf("%w: confirm from %q", ErrInvalidTransition, p.state)
	}
	p.state = StateSigning
	p.phases = p.phases[:0]
	prior := p.txSig
	p.mu.Unlock()

	// A previous attempt may have broadcast a transaction whose confirmation
	// was lost. Check chain state first; re-broadcasting would duplicate the
	// proof-of-cancellation.
	if prior != nil {
		confirmed, err := p.deps.Ledger.IsConfirmed(ctx, *prior)
		switch {
		case err == nil && confirmed:
			p.deps.Log.Info("prior broadcast already confirmed, skipping re-broadcast",
				zap.String("txId", prior.String()))
			return p.finish(ctx, prior)
		case err != nil && !errors.Is(err, ledger.ErrRejected):
			// Cannot tell whether the prior broadcast landed; building a fresh
			// transaction here could duplicate the proof. Surface and let the
			// user retry once the chain is reachable.
			err = fmt.Errorf("cannot verify prior broadcast %s: %w", prior.String(), err)
			p.toError(err)
			return err
		}
		// Rejected on-chain or simply never landed: safe to broadcast fresh
	}

	// Sub-phase 1: obtain the identity
	p.setPhase(PhaseIdentityLoad)
	identity, err := p.deps.Keystore.LoadOrCreate()
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrNoIdentity, err)
		p.toError(err)
		return err
	}

	// Sub-phase 2: balance gate
	p.setPhase(PhaseBalanceCheck)
	balance, err := p.deps.Ledger.Balance(ctx, identity.PublicKey)
	if err != nil {
		p.toError(err)
		return err
	}
	if balance < minBalanceLamports {
		err = fmt.Errorf("%w: balance %s SOL below the %s SOL fee floor, request an airdrop first",
			ErrInsufficientFunds, common.LamportsToSOL(balance), common.LamportsToSOL(minBalanceLamports))
		p.toError(err)
		return err
	}

	// Sub-phase 3: build and sign the proof transaction
	p.setPhase(PhaseSign)
	payload, err := proofPayload(p.intent, time.Now().UTC())
	if err != nil {
		err = fmt.Errorf("failed to serialize proof record: %w", err)
		p.toError(err)
		return err
	}

	blockhash, err := p.deps.Ledger.RecentBlockReference(ctx)
	if err != nil {
		p.toError(err)
		return err
	}

	tx, err := buildProofTransaction(payload, identity.PublicKey, blockhash)
	if err != nil {
		err = fmt.Errorf("failed to build proof transaction: %w", err)
		p.toError(err)
		return err
	}
	if _, err := tx.Sign(identity.TransactionSigner()); err != nil {
		err = fmt.Errorf("failed to sign proof transaction: %w", err)
		p.toError(err)
		return err
	}

	// Sub-phase 4: broadcast and wait for confirmation
	p.setPhase(PhaseBroadcastConfirm)
	sig, err := p.deps.Ledger.Broadcast(ctx, tx)
	if err != nil {
		p.toError(err)
		return err
	}

	// Remember the signature before waiting: on a confirmation timeout the
	// transaction may still land, and the retry path must reconcile against it.
	p.mu.Lock()
	p.txSig = &sig
	p.mu.Unlock()

	if err := p.deps.Ledger.AwaitConfirmation(ctx, sig, p.deps.ConfirmTimeout); err != nil {
		p.toError(err)
		return err
	}

	return p.finish(ctx, &sig)
}

// SkipOnChainProof persists a receipt without a transaction signature.
// This path never touches the ledger.
func (p *Pipeline) SkipOnChainProof(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateReview {
		p.mu.Unlock()
		return fmt.Errorf("%w: skip from %q", ErrInvalidTransition, p.state)
	}
	// Leave review under the lock so a concurrent skip or confirm cannot
	// pass the gate as well
	p.state = StateSigning
	p.mu.Unlock()

	return p.finish(ctx, nil)
}

// Retry re-enters review after an error. The draft obtained in generating is
// kept, never re-requested.
func (p *Pipeline) Retry() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateError {
		return fmt.Errorf("%w: retry from %q", ErrInvalidTransition, p.state)
	}
	p.state = StateReview
	p.phase = ""
	p.errMsg = ""
	p.errKind = ""
	return nil
}

// Abandon closes an errored run without a receipt
func (p *Pipeline) Abandon() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateError {
		return fmt.Errorf("%w: abandon from %q", ErrInvalidTransition, p.state)
	}
	p.state = StateDone
	return nil
}

// finish persists the receipt and completes the run. A persistence failure
// after on-chain confirmation still surfaces the confirmed signature in the
// error message: the chain state already changed and the proof must not be
// silently lost.
func (p *Pipeline) finish(ctx context.Context, sig *solana.Signature) error {
	var sigStr *string
	if sig != nil {
		s := sig.String()
		sigStr = &s
	}

	if err := p.deps.Receipts.PutCancellationReceipt(ctx, p.intent.SubscriptionID, sigStr); err != nil {
		if sigStr != nil {
			err = fmt.Errorf("%w: cancellation confirmed on-chain (signature %s) but saving the receipt failed: %v",
				ErrReceiptPersistence, *sigStr, err)
		} else {
			err = fmt.Errorf("%w: %v", ErrReceiptPersistence, err)
		}
		p.toError(err)
		return err
	}

	// Activity entries are a display surface: signatures are truncated there,
	// the full signature lives in the receipt itself
	if sigStr != nil {
		if err := p.deps.Activity.AppendActivity(ctx, model.ActivityReceiptSigned, "tx "+common.TruncateKey(*sigStr), time.Now()); err != nil {
			p.deps.Log.Warn("failed to append activity entry", zap.Error(err))
		}
	}

	detail := fmt.Sprintf("%s ($%s/month)", p.intent.Name, common.FormatUSD(p.intent.Amount))
	if sigStr != nil {
		detail += " tx " + common.TruncateKey(*sigStr)
	}
	if err := p.deps.Activity.AppendActivity(ctx, model.ActivitySubscriptionCancelled, detail, time.Now()); err != nil {
		p.deps.Log.Warn("failed to append activity entry", zap.Error(err))
	}

	p.mu.Lock()
	p.txSig = sig
	p.state = StateDone
	p.phase = ""
	p.mu.Unlock()

	p.deps.Log.Info("cancellation complete",
		zap.Int64("subscriptionId", p.intent.SubscriptionID),
		zap.Stringp("txId", sigStr))
	return nil
}

func (p *Pipeline) setPhase(phase Phase) {
	p.mu.Lock()
	p.phase = phase
	p.phases = append(p.phases, phase)
	p.mu.Unlock()
	p.deps.Log.Debug("signing sub-phase", zap.String("phase", string(phase)))
}

func (p *Pipeline) toError(err error) {
	p.mu.Lock()
	p.state = StateError
	p.errMsg = err.Error()
	p.errKind = kindOf(err)
	p.mu.Unlock()
	p.deps.Log.Warn("pipeline failed",
		zap.Int64("subscriptionId", p.intent.SubscriptionID),
		zap.String("kind", p.errKind),
		zap.Error(err))
}

// View returns the UI snapshot of the run
func (p *Pipeline) View() model.CancellationView {
	p.mu.Lock()
	defer p.mu.Unlock()

	view := model.CancellationView{
		ID:             p.id.String(),
		SubscriptionID: p.intent.SubscriptionID,
		State:          string(p.state),
		Draft:          p.draft,
		Error:          p.errMsg,
		ErrorKind:      p.errKind,
	}
	if p.state == StateSigning {
		view.Phase = string(p.phase)
	}
	for _, phase := range p.phases {
		view.Phases = append(view.Phases, string(phase))
	}
	if p.state == StateDone && p.txSig != nil {
		s := p.txSig.String()
		view.TxSignature = &s
	}
	return view
}

// Phases returns the signing sub-phases observed so far, in order
func (p *Pipeline) Phases() []Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Phase, len(p.phases))
	copy(out, p.phases)
	return out
}

// kindOf maps a pipeline failure to its taxonomy name for the UI boundary
func kindOf(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		return "InsufficientFunds"
	case errors.Is(err, ErrDraftGeneration):
		return "DraftGenerationFailed"
	case errors.Is(err, ErrReceiptPersistence):
		return "PersistenceError"
	case errors.Is(err, wallet.ErrCorruptIdentity):
		return "CorruptIdentity"
	case errors.Is(err, wallet.ErrPersistence):
		return "PersistenceError"
	case errors.Is(err, ErrNoIdentity):
		return "NoIdentity"
	case errors.Is(err, ledger.ErrRateLimited):
		return "RateLimited"
	case errors.Is(err, ledger.ErrRejected):
		return "RejectedTransaction"
	case errors.Is(err, ledger.ErrConfirmationTimeout):
		return "ConfirmationTimeout"
	case errors.Is(err, ledger.ErrNetwork):
		return "NetworkError"
	default:
		return ""
	}
}
