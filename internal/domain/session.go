package domain

// ============================================================
// Auth & session: request and response types of the analyzer backend
// ============================================================

// Credentials is the body of POST /api/auth/signup and /api/auth/login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// User is the account summary the backend returns alongside a session.
type User struct {
	Email     string  `json:"email"`
	Credits   int     `json:"credits"`
	CreatedAt *string `json:"created_at,omitempty"`
}

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	User    *User   `json:"user"`
	Token   *string `json:"token"`
}

// MeResponse is returned by GET /api/auth/me.
type MeResponse struct {
	Authenticated bool  `json:"authenticated"`
	User          *User `json:"user"`
}

// HistoryEntry is one past analysis in GET /api/user/history.
type HistoryEntry struct {
	ID           int64   `json:"id"`
	CreatedAt    *string `json:"created_at"`
	DocumentType string  `json:"document_type"`
	OverallRisk  *string `json:"overall_risk"`
	RiskScore    *int    `json:"risk_score"`
}

// HistoryResponse wraps the history list.
type HistoryResponse struct {
	Uploads []HistoryEntry `json:"uploads"`
}

// AuthSession is the client-visible authentication state. The token itself
// never leaves the BFA.
type AuthSession struct {
	IsLoggedIn bool           `json:"is_logged_in"`
	UserEmail  *string        `json:"user_email"`
	Credits    int            `json:"credits"`
	ModalOpen  bool           `json:"modal_open"`
	AuthError  string         `json:"auth_error,omitempty"`
	Loading    bool           `json:"loading"`
	History    []HistoryEntry `json:"history"`
}

// UnlockRequest is the body of POST /api/unlock-report.
type UnlockRequest struct {
	DocumentHash string `json:"document_hash"`
}

// UnlockResponse is returned by POST /api/unlock-report.
type UnlockResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Credits int    `json:"credits"`
}

// UnlockStatus is returned by GET /api/check-unlock/{hash}.
type UnlockStatus struct {
	Unlocked      bool `json:"unlocked"`
	Authenticated bool `json:"authenticated"`
	Credits       int  `json:"credits"`
}

// CheckoutRequest is the body of POST /api/create-checkout-session.
type CheckoutRequest struct {
	DocumentHash string `json:"document_hash"`
	SuccessURL   string `json:"success_url"`
	CancelURL    string `json:"cancel_url"`
}

// CheckoutResponse points the browser at the hosted payment page.
type CheckoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id"`
}

// WaitlistResponse is returned by POST /api/waitlist.
type WaitlistResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
