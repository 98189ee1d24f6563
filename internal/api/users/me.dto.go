package users

type MeResponse struct {
	User     UserDTO      `json:"user"`
	Wallet   WalletDTO    `json:"wallet"`
	Workload *WorkloadDTO `json:"workload,omitempty"`
}

/* ---------- USER ---------- */

type UserDTO struct {
	ID         uint    `json:"id"`
	Email      string  `json:"email"`
	Name       string  `json:"name"`
	Lastname   string  `json:"lastname"`
	Tel        *string `json:"tel"`
	Role       string  `json:"role"`
	IsVerified bool    `json:"is_verified"`
}

/* ---------- WALLET ---------- */

type WalletDTO struct {
	Balance int64 `json:"balance"`
}

/* ---------- DESIGNER ---------- */

type WorkloadDTO struct {
	Active    int64 `json:"active"`
	Capacity  int   `json:"capacity"`
	Available int64 `json:"available"`
}
