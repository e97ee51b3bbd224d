package notify

import "fmt"

// Thresholds applied by the domain emitters. Comparisons are strict and NaN never emits.
const (
	PositionRiskThreshold    = 0.8
	LiquidationHealthFactor  = 1.1
	PoolUtilizationThreshold = 0.9
	PoolRiskThreshold        = 0.7
)

// NotifyPositionRisk warns when a position's risk fraction exceeds 0.8.
func (b *Bus) NotifyPositionRisk(positionID string, risk float64) (string, bool) {
	if !(risk > PositionRiskThreshold) {
		return "", false
	}
	return b.emit(SeverityWarning, fmt.Sprintf("Position %s is at high risk (%.1f%%)", positionID, risk*100))
}

// NotifyLiquidationRisk raises an error when a health factor drops below 1.1.
func (b *Bus) NotifyLiquidationRisk(positionID string, healthFactor float64) (string, bool) {
	if !(healthFactor < LiquidationHealthFactor) {
		return "", false
	}
	return b.emit(SeverityError, fmt.Sprintf("Position %s is at risk of liquidation! Health factor: %.2f", positionID, healthFactor))
}

// NotifyPoolUtilization warns when a pool's utilization fraction exceeds 0.9.
func (b *Bus) NotifyPoolUtilization(poolID string, utilization float64) (string, bool) {
	if !(utilization > PoolUtilizationThreshold) {
		return "", false
	}
	return b.emit(SeverityWarning, fmt.Sprintf("Pool %s is highly utilized (%.1f%%)", poolID, utilization*100))
}

// NotifyPoolRisk warns when a pool's risk fraction exceeds 0.7.
func (b *Bus) NotifyPoolRisk(poolID string, risk float64) (string, bool) {
	if !(risk > PoolRiskThreshold) {
		return "", false
	}
	return b.emit(SeverityWarning, fmt.Sprintf("Pool %s has elevated risk level (%.1f%%)", poolID, risk*100))
}

// NotifyBetterPoolAvailable announces a higher APY elsewhere. APYs are fractions, like 0.045.
func (b *Bus) NotifyBetterPoolAvailable(positionID string, currentAPY, betterAPY float64) (string, bool) {
	if !(betterAPY > currentAPY) {
		return "", false
	}
	return b.emit(SeverityInfo, fmt.Sprintf("Better APY available for position %s: %.2f%% vs current %.2f%%", positionID, betterAPY*100, currentAPY*100))
}

func (b *Bus) emit(sev Severity, msg string) (string, bool) {
	id := b.Notify(sev, msg)
	return id, id != ""
}
