// Package lending reads estimates from the lending-protocol service and turns
// them into pool and position alerts on the notification bus.
package lending

// Reserve is one asset reserve within a pool.
type Reserve struct {
	AssetID       string  `json:"asset_id"`
	Symbol        string  `json:"symbol"`
	TotalSupplied float64 `json:"total_supplied"`
	TotalBorrowed float64 `json:"total_borrowed"`
	Utilization   float64 `json:"utilization"`
	SupplyAPY     float64 `json:"supply_apy"`
	BorrowAPY     float64 `json:"borrow_apy"`
}

// PoolEstimate summarizes a lending pool. Utilization and RiskLevel are fractions in [0, 1].
type PoolEstimate struct {
	PoolID        string    `json:"pool_id"`
	Name          string    `json:"name"`
	TotalSupplied float64   `json:"total_supplied"`
	TotalBorrowed float64   `json:"total_borrowed"`
	Utilization   float64   `json:"utilization"`
	SupplyAPY     float64   `json:"supply_apy"`
	BorrowAPY     float64   `json:"borrow_apy"`
	RiskLevel     float64   `json:"risk_level"`
	Reserves      []Reserve `json:"reserves,omitempty"`
}

// Position is a user's supply or borrow in one reserve.
type Position struct {
	ID         string  `json:"id"`
	AssetID    string  `json:"asset_id"`
	Collateral float64 `json:"collateral"`
	Supplied   float64 `json:"supplied"`
	Borrowed   float64 `json:"borrowed"`
}

// PositionsEstimate summarizes a user's positions in a pool.
// BorrowLimit is the fraction of borrowing capacity in use.
type PositionsEstimate struct {
	UserID        string     `json:"user_id"`
	PoolID        string     `json:"pool_id"`
	TotalSupplied float64    `json:"total_supplied"`
	TotalBorrowed float64    `json:"total_borrowed"`
	BorrowLimit   float64    `json:"borrow_limit"`
	BorrowCap     float64    `json:"borrow_cap"`
	HealthFactor  float64    `json:"health_factor"`
	NetAPY        float64    `json:"net_apy"`
	Positions     []Position `json:"positions,omitempty"`
}

// BackstopEstimate summarizes the backstop deposits insuring a pool.
type BackstopEstimate struct {
	BackstopID     string  `json:"backstop_id"`
	PoolID         string  `json:"pool_id"`
	TotalSpotValue float64 `json:"total_spot_value"`
	Shares         float64 `json:"shares"`
	Q4W            float64 `json:"q4w_percent"`
	APR            float64 `json:"apr"`
}

// BackstopUserEstimate is a user's share of a pool's backstop.
type BackstopUserEstimate struct {
	UserID        string  `json:"user_id"`
	PoolID        string  `json:"pool_id"`
	Tokens        float64 `json:"tokens"`
	Shares        float64 `json:"shares"`
	TotalQueued   float64 `json:"total_queued"`
	TotalUnlocked float64 `json:"total_unlocked"`
	EarnedValue   float64 `json:"earned_value"`
}
