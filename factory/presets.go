package factory

import "encoding/json"

// =============================================================================
// PRESETS - Common cooperative loan charges
// =============================================================================

// ServiceFeeJSON returns JSON for a percentage service fee assessed once on
// the full term of a diminishing-balance loan.
func ServiceFeeJSON(id, orgID, branchID, name, rate string) string {
	return presetJSON(map[string]interface{}{
		"id":                   id,
		"organization_id":      orgID,
		"branch_id":            branchID,
		"name":                 name,
		"charges_percentage_1": rate,
		"charges_percentage_2": "0",
		"charges_amount":       "0",
		"charges_divisor":      "0",
		"anum":                 0,
		"number_of_months":     0,
	})
}

// AddOnServiceFeeJSON returns JSON for a service fee with separate rates for
// diminishing and add-on loans.
func AddOnServiceFeeJSON(id, orgID, branchID, name, diminishingRate, addOnRate string) string {
	return presetJSON(map[string]interface{}{
		"id":                   id,
		"organization_id":      orgID,
		"branch_id":            branchID,
		"name":                 name,
		"charges_percentage_1": diminishingRate,
		"charges_percentage_2": addOnRate,
		"charges_amount":       "0",
		"charges_divisor":      "0",
		"anum":                 0,
		"number_of_months":     0,
	})
}

// InsuranceDivisorJSON returns JSON for a per-thousand insurance premium
// (amount per divisor of principal) prorated over elapsed months.
func InsuranceDivisorJSON(id, orgID, branchID, name, amount, divisor string, months int) string {
	return presetJSON(map[string]interface{}{
		"id":                   id,
		"organization_id":      orgID,
		"branch_id":            branchID,
		"name":                 name,
		"charges_percentage_1": "0",
		"charges_percentage_2": "0",
		"charges_amount":       amount,
		"charges_divisor":      divisor,
		"anum":                 0,
		"number_of_months":     months,
	})
}

func presetJSON(m map[string]interface{}) string {
	b, _ := json.MarshalIndent(m, "", "  ")
	return string(b)
}
