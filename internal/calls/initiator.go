package calls

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"voice-nerve/internal/audio"
	"voice-nerve/internal/dialog"
	"voice-nerve/internal/telephony"
	"voice-nerve/pkg/logger"

	"github.com/google/uuid"
)

// CapGuard bounds the number of simultaneous live calls. Acquire is called
// before dialing; Release when the call's status callback arrives.
type CapGuard interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

var (
	ErrDuplicate = errors.New("calls: initiation already in flight for this order")
	ErrBusy      = errors.New("calls: live call cap reached")
)

// InitiateRequest describes one outbound confirmation call.
type InitiateRequest struct {
	Kind    dialog.CallKind `json:"-"`
	OrderID int64           `json:"order_id"`
	Phone   string          `json:"phone"`

	VendorID   string `json:"vendor_id,omitempty"`
	VendorName string `json:"vendor_name,omitempty"`
	RiderID    string `json:"rider_id,omitempty"`
	RiderName  string `json:"rider_name,omitempty"`

	OrderAmount float64            `json:"order_amount,omitempty"`
	OrderItems  []dialog.OrderItem `json:"order_items,omitempty"`

	Language string `json:"language,omitempty"`
}

func (r InitiateRequest) validate() error {
	if r.OrderID <= 0 {
		return errors.New("calls: order_id is required")
	}
	if strings.TrimSpace(r.Phone) == "" {
		return errors.New("calls: phone is required")
	}
	return nil
}

// idempotencyKey keeps one initiation per order and flow inside the window,
// regardless of which backend instance asked.
func idempotencyKey(kind dialog.CallKind, orderID int64) string {
	prefix := "vendor-confirm"
	if kind == dialog.KindRiderAssignment {
		prefix = "rider-assign"
	}
	return fmt.Sprintf("%s:%d", prefix, orderID)
}

// Initiator places outbound calls: idempotency fence, live-call cap, greeting
// pre-synthesis, provider dial, record creation, in that order.
type Initiator struct {
	Provider telephony.Provider
	Repo     Repository
	Idem     IdempotencyStore

	// Audio pre-synthesizes the greeting so the first callback can Play
	// instead of falling back to provider TTS. Optional.
	Audio *audio.Cache

	// Caps is the optional live-call limiter.
	Caps CapGuard

	// OnPlaced fires after a call is live and recorded, for the call trail.
	OnPlaced func(ctx context.Context, call Call)

	IdempotencyWindow  time.Duration
	TimeLimitSeconds   int
	RingTimeoutSeconds int
	Record             bool
}

func (i *Initiator) window() time.Duration {
	if i.IdempotencyWindow > 0 {
		return i.IdempotencyWindow
	}
	return time.Minute
}

// Initiate places the call. A duplicate request inside the window returns
// ErrDuplicate together with the in-flight call when the record is available.
func (i *Initiator) Initiate(ctx context.Context, req InitiateRequest) (Call, error) {
	log := logger.From(ctx)

	if err := req.validate(); err != nil {
		return Call{}, err
	}
	if req.Kind == "" {
		req.Kind = dialog.KindVendorConfirmation
	}

	key := idempotencyKey(req.Kind, req.OrderID)
	ok, err := i.Idem.Claim(ctx, key, i.window())
	if err != nil {
		return Call{}, fmt.Errorf("calls: idempotency claim: %w", err)
	}
	if !ok {
		// The prior call may already have finished inside the window; the
		// caller still gets its sid and result rather than an empty record.
		if existing, found, ferr := i.Repo.FindLatestByOrder(ctx, string(req.Kind), req.OrderID); ferr == nil && found {
			return existing, ErrDuplicate
		}
		return Call{}, ErrDuplicate
	}

	if i.Caps != nil {
		got, err := i.Caps.Acquire(ctx)
		if err != nil || !got {
			_ = i.Idem.Release(ctx, key)
			if err != nil {
				return Call{}, fmt.Errorf("calls: cap acquire: %w", err)
			}
			return Call{}, ErrBusy
		}
	}

	bc := dialog.BusinessContext{
		CallKind:    req.Kind,
		OrderID:     req.OrderID,
		VendorID:    req.VendorID,
		VendorName:  req.VendorName,
		RiderID:     req.RiderID,
		RiderName:   req.RiderName,
		OrderAmount: req.OrderAmount,
		OrderItems:  req.OrderItems,
		Language:    req.Language,
	}
	bc.GreetingAudioRef = i.preSynthesizeGreeting(ctx, bc)

	res, err := i.Provider.Connect(ctx, telephony.ConnectRequest{
		To:                 req.Phone,
		Context:            bc,
		TimeLimitSeconds:   i.TimeLimitSeconds,
		RingTimeoutSeconds: i.RingTimeoutSeconds,
		Record:             i.Record,
	})
	if err != nil {
		_ = i.Idem.Release(ctx, key)
		if i.Caps != nil {
			_ = i.Caps.Release(ctx)
		}
		return Call{}, fmt.Errorf("calls: dial: %w", err)
	}

	call := Call{
		CallID:  uuid.NewString(),
		CallSid: res.CallSid,
		Kind:    req.Kind,
		OrderID: req.OrderID,
		To:      req.Phone,
		Status:  CallStatusQueued,
	}
	if err := i.Repo.Create(ctx, call); err != nil {
		// The call is already live at the provider; losing the record is a
		// bookkeeping failure, not a reason to fail the request.
		log.Error("call record create failed", "call_sid", res.CallSid, "err", err)
	}

	if i.OnPlaced != nil {
		i.OnPlaced(ctx, call)
	}

	log.Info("call initiated",
		"call_sid", res.CallSid,
		"kind", string(req.Kind),
		"order_id", req.OrderID)
	return call, nil
}

// preSynthesizeGreeting resolves greeting audio ahead of the first callback.
// Best-effort with a short deadline; the flow degrades to text on miss.
func (i *Initiator) preSynthesizeGreeting(ctx context.Context, bc dialog.BusinessContext) string {
	if i.Audio == nil {
		return ""
	}
	sctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	id, err := i.Audio.Resolve(sctx, dialog.GreetingScript(bc), bc.Lang())
	if err != nil {
		logger.From(ctx).Warn("greeting pre-synthesis failed", "order_id", bc.OrderID, "err", err)
		return ""
	}
	return id
}
