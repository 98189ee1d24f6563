package users

import (
	"commission-app/internal/domain/credits"
	"commission-app/internal/domain/users"
	"commission-app/internal/services/drafting"
)

func BuildUserDTO(u *users.User) UserDTO {
	return UserDTO{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		Lastname:   u.Lastname,
		Tel:        stringPtrIfNotEmpty(u.Tel),
		Role:       string(u.Role),
		IsVerified: u.IsVerified,
	}
}

func BuildWalletDTO(w *credits.CreditWallet) WalletDTO {
	if w == nil {
		return WalletDTO{}
	}
	return WalletDTO{Balance: w.Balance}
}

func BuildWorkloadDTO(w drafting.Workload) *WorkloadDTO {
	return &WorkloadDTO{Active: w.Active, Capacity: w.Capacity, Available: w.Available}
}

func stringPtrIfNotEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
