package chatapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ngophuc29/sockettuBuild/core"
)

// The server relays WebRTC signaling between peers and tracks who is engaged
// in a call; it never inspects the SDP or ICE payloads it forwards.

type callErrorPayload struct {
	Message string `json:"message"`
}

type callUserPayload struct {
	UserToCall string          `json:"userToCall"`
	From       string          `json:"from"`
	SignalData json.RawMessage `json:"signalData"`
}

type callIncomingPayload struct {
	From   string          `json:"from"`
	Signal json.RawMessage `json:"signal"`
}

// CallUserHandler starts a call: both parties are marked busy and the callee
// receives the caller's offer. An offline or busy callee fails the call
// without engaging anyone.
func (app *App) CallUserHandler(ctx context.Context, e *core.Event) error {
	var payload callUserPayload
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal callUser payload: %w", err)
	}

	if !app.hub.IsOnline(payload.UserToCall) {
		app.reply(e, CallErrorEvent, callErrorPayload{Message: "user is not online"})
		return nil
	}
	if err := app.calls.Engage(payload.From, payload.UserToCall); err != nil {
		if errors.Is(err, core.ErrCalleeBusy) {
			app.reply(e, CallErrorEvent, callErrorPayload{Message: "user is busy"})
			return nil
		}
		return fmt.Errorf("engage call: %w", err)
	}

	delivered := app.notify(payload.UserToCall, CallIncomingEvent, callIncomingPayload{
		From:   payload.From,
		Signal: payload.SignalData,
	})
	if !delivered {
		// The callee dropped between the online check and delivery.
		app.calls.Release(payload.From, payload.UserToCall)
		app.reply(e, CallErrorEvent, callErrorPayload{Message: "user is not online"})
	}
	return nil
}

type acceptCallPayload struct {
	To     string          `json:"to"`
	Signal json.RawMessage `json:"signal"`
}

type callAcceptedPayload struct {
	Signal json.RawMessage `json:"signal"`
}

// AcceptCallHandler relays the callee's answer back to the caller.
func (app *App) AcceptCallHandler(ctx context.Context, e *core.Event) error {
	var payload acceptCallPayload
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal acceptCall payload: %w", err)
	}
	app.notify(payload.To, CallAcceptedEvent, callAcceptedPayload{Signal: payload.Signal})
	return nil
}

type callPeerPayload struct {
	To string `json:"to"`
}

// RejectCallHandler tells the caller the call was declined and frees both
// busy flags.
func (app *App) RejectCallHandler(ctx context.Context, e *core.Event) error {
	var payload callPeerPayload
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal rejectCall payload: %w", err)
	}
	app.notify(payload.To, CallRejectedEvent, struct{}{})
	app.calls.Release(payload.To, e.Dispatcher)
	return nil
}

type iceCandidatePayload struct {
	To        string          `json:"to"`
	Candidate json.RawMessage `json:"candidate"`
}

type iceCandidateRelayPayload struct {
	Candidate json.RawMessage `json:"candidate"`
}

// IceCandidateHandler relays an ICE candidate to the peer.
func (app *App) IceCandidateHandler(ctx context.Context, e *core.Event) error {
	var payload iceCandidatePayload
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal iceCandidate payload: %w", err)
	}
	app.notify(payload.To, IceCandidateEvent, iceCandidateRelayPayload{Candidate: payload.Candidate})
	return nil
}

// EndCallHandler tells the peer the call is over and frees both busy flags.
func (app *App) EndCallHandler(ctx context.Context, e *core.Event) error {
	var payload callPeerPayload
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal endCall payload: %w", err)
	}
	app.notify(payload.To, CallEndedEvent, struct{}{})
	app.calls.Release(payload.To, e.Dispatcher)
	return nil
}
