package domain

// User-facing messages
const (
	MsgUsernameRequired   = "Username is a required field"
	MsgUsernameTooShort   = "Username must be at least 6 characters"
	MsgPasswordRequired   = "Password is a required field"
	MsgPasswordTooShort   = "Password must be at least 6 characters"
	MsgPasswordsMismatch  = "Passwords do not match"
	MsgLoginRequired      = "Login to add an item to the Cart"
	MsgAlreadyInCart      = "Item already in cart. Use the cart sidebar to update quantity or remove item."
	MsgNotInCart          = "Product is not in the cart"
	MsgQuantityExceeded   = "Quantity exceeds maximum limit"
	MsgSessionExpired     = "Session expired, please log in again"
	MsgBackendUnreachable = "Something went wrong. Check that the backend is running, reachable and returns valid JSON."
	MsgInternal           = "Internal error"
	MsgProductIDRequired  = "productId is required"
	MsgLoggedIn           = "Logged in successfully"
	MsgRegistered         = "Registered successfully"
)

// Minimum lengths enforced before registration reaches the backend
const (
	MinUsernameLength = 6
	MinPasswordLength = 6
)

// Session and anonymous client identification on the storefront API
const (
	SessionCookieName = "sessionId"
	ClientCookieName  = "clientId"
	ClientIDHeader    = "X-Client-ID"
)
