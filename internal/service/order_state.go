package service

import "grocer/internal/model"

// InitialState is the state a new counter or app order starts in.
// Cashier sales settled in cash or transfer are complete on the spot.
func InitialState(role model.Role, method model.PaymentMethod, delivery model.DeliveryType) model.OrderState {
	if role == model.RoleCashier {
		if method == model.PaymentCash || method == model.PaymentTransfer {
			return model.OrderStateCompleted
		}
		return model.OrderStatePaid
	}
	if delivery == model.DeliveryHome {
		return model.OrderStatePending
	}
	return model.OrderStatePendingPickup
}

// resolveInitialState honours an explicit state only for staff.
func resolveInitialState(role model.Role, req *model.OrderRequest) (model.OrderState, error) {
	if req.State == nil || *req.State == "" {
		return InitialState(role, req.PaymentMethod, req.DeliveryType), nil
	}
	if !role.IsStaff() {
		return "", model.ErrStaffOnly
	}
	if !req.State.IsValid() {
		return "", model.ErrInvalidOrderState
	}
	return *req.State, nil
}
