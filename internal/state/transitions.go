package state

// validTransitions lists the forward moves of the conversation.
// Moving to idle and restarting the captcha are allowed from anywhere.
var validTransitions = map[State][]State{
	StateIdle: {
		StatePaymentAmount,
		StateOrderConfirmation,
		StateAdminBroadcastMessage,
		StateAdminDirectMessage,
	},
	StateAwaitingCaptcha: {
		StateMenuReady,
	},
	StateMenuReady: {
		StatePaymentAmount,
		StateOrderConfirmation,
		StateAdminBroadcastMessage,
		StateAdminDirectMessage,
	},
	StatePaymentAmount: {
		StatePaymentMethod,
	},
	StatePaymentMethod: {
		StatePaymentComment,
	},
	StateOrderConfirmation: {
		StateOrderAddress,
	},
	StateOrderAddress: {
		StateOrderDocument,
	},
	StateAdminBroadcastMessage: {
		StateAdminBroadcastConfirm,
	},
}

// IsTransitionAllowed reports whether moving from one state to another is valid.
func IsTransitionAllowed(from, to State) bool {
	if from == to || to == StateIdle || to == StateAwaitingCaptcha {
		return true
	}

	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}

	for _, state := range allowed {
		if state == to {
			return true
		}
	}

	return false
}
