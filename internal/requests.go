package internal

// -- Request data -----------------------------------------------------------------------------------------------------

// eventListRequest filters the listed events by tags
type eventListRequest struct {
	// Only events having all of these tags are returned
	Tags []string
}

// A request made when logging in
type loginRequest struct {
	User string `json:"username"`
	Pass string `json:"password"`
}
