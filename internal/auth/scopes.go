package auth

// Scopes accepted by the insights API.
const (
	ScopeRead   = "insights:read"
	ScopeExport = "insights:export"
	ScopeAdmin  = "insights:admin"
)
