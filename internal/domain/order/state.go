package order

import "time"

// OrderState implements the state pattern for order lifecycle transitions.
type OrderState interface {
	Status() Status
	Complete(o *Order, paymentIntent string, now time.Time) (OrderState, error)
	Cancel(o *Order, reason string) (OrderState, error)
	Fail(o *Order, reason string) (OrderState, error)
}

func stateFor(s Status) OrderState {
	switch s {
	case StatusCompleted:
		return completedState{}
	case StatusFailed:
		return failedState{}
	case StatusCancelled:
		return cancelledState{}
	default:
		return pendingState{}
	}
}

type pendingState struct{}

func (pendingState) Status() Status { return StatusPending }

func (pendingState) Complete(o *Order, paymentIntent string, now time.Time) (OrderState, error) {
	o.PaymentIntent = paymentIntent
	o.FailureReason = ""
	o.CompletedAt = now
	return completedState{}, nil
}

func (pendingState) Cancel(o *Order, reason string) (OrderState, error) {
	o.FailureReason = reason
	return cancelledState{}, nil
}

func (pendingState) Fail(o *Order, reason string) (OrderState, error) {
	o.FailureReason = reason
	return failedState{}, nil
}

type completedState struct{}

func (completedState) Status() Status { return StatusCompleted }

func (completedState) Complete(*Order, string, time.Time) (OrderState, error) {
	return completedState{}, nil
}

func (completedState) Cancel(*Order, string) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (completedState) Fail(*Order, string) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

type cancelledState struct{}

func (cancelledState) Status() Status { return StatusCancelled }

func (cancelledState) Complete(*Order, string, time.Time) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (cancelledState) Cancel(*Order, string) (OrderState, error) {
	return cancelledState{}, nil
}

func (cancelledState) Fail(*Order, string) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

type failedState struct{}

func (failedState) Status() Status { return StatusFailed }

func (failedState) Complete(*Order, string, time.Time) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (failedState) Cancel(*Order, string) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (failedState) Fail(*Order, string) (OrderState, error) {
	return failedState{}, nil
}
