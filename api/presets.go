/*
presets.go - Seedable scheme sets for new branches and demos

PURPOSE:
  A new cooperative branch usually starts from the same few charges. A preset
  is a named set of scheme JSON documents that can be saved into any
  organization and branch in one call.

AVAILABLE PRESETS:
  service-fees:   4% service fee, add-on variant at 2%/3%
  insurance:      15 per 1000 premium over 6 months, capped at 500
  full-schedule:  Both sets above

USAGE VIA API:
  POST /api/presets/load
  {"preset_id": "insurance", "organization_id": "coop-1", "branch_id": "main"}

  Scheme IDs are prefixed with the branch so loading the same preset into
  two branches does not collide. Loading twice bumps scheme versions.

SEE ALSO:
  - factory/presets.go: Scheme JSON builders
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/warp/charge-engine/charges"
	"github.com/warp/charge-engine/factory"
)

// =============================================================================
// PRESET DEFINITIONS
// =============================================================================

var presets = []PresetDTO{
	{
		ID:          "service-fees",
		Name:        "Service Fees",
		Description: "Percentage service fee on the full term, with an add-on loan variant",
	},
	{
		ID:          "insurance",
		Name:        "Loan Insurance",
		Description: "Per-thousand premium prorated over six months, capped at 500",
	},
	{
		ID:          "full-schedule",
		Name:        "Full Schedule",
		Description: "Service fees and loan insurance",
	},
}

// presetSchemes returns the scheme JSON documents of a preset.
func presetSchemes(presetID, orgID, branchID string) ([]string, bool) {
	id := func(name string) string { return branchID + "-" + name }

	serviceFees := []string{
		factory.ServiceFeeJSON(id("service-fee"), orgID, branchID, "Service fee", "4"),
		factory.AddOnServiceFeeJSON(id("add-on-service-fee"), orgID, branchID, "Service fee (add-on)", "2", "3"),
	}
	insurance := []string{
		withMax(factory.InsuranceDivisorJSON(id("insurance"), orgID, branchID, "Loan insurance", "15", "1000", 6), "500"),
	}

	switch presetID {
	case "service-fees":
		return serviceFees, true
	case "insurance":
		return insurance, true
	case "full-schedule":
		return append(serviceFees, insurance...), true
	}
	return nil, false
}

// withMax adds a max_amount to a preset document.
func withMax(doc, maxAmount string) string {
	var m map[string]any
	if err := json.Unmarshal([]byte(doc), &m); err != nil {
		return doc
	}
	m["max_amount"] = maxAmount
	b, err := json.Marshal(m)
	if err != nil {
		return doc
	}
	return string(b)
}

// =============================================================================
// PRESET HANDLERS
// =============================================================================

// ListPresets returns available presets.
func (h *Handler) ListPresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, presets)
}

// LoadPreset saves a preset's schemes into an organization and branch.
func (h *Handler) LoadPreset(w http.ResponseWriter, r *http.Request) {
	var req LoadPresetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.OrganizationID == "" || req.BranchID == "" {
		writeError(w, http.StatusBadRequest, "organization_id and branch_id are required", nil)
		return
	}

	docs, ok := presetSchemes(req.PresetID, req.OrganizationID, req.BranchID)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown preset: %s", req.PresetID), nil)
		return
	}

	saved, err := h.loadSchemes(r.Context(), docs)
	if err != nil {
		writeDomainError(w, "Failed to load preset", err)
		return
	}

	log.WithFields(log.Fields{
		"preset_id":       req.PresetID,
		"organization_id": req.OrganizationID,
		"branch_id":       req.BranchID,
		"schemes":         len(saved),
	}).Info("preset loaded")

	dtos := make([]SchemeDTO, len(saved))
	for i, rec := range saved {
		dtos[i] = h.toSchemeDTO(rec)
	}
	writeJSON(w, http.StatusCreated, dtos)
}

func (h *Handler) loadSchemes(ctx context.Context, docs []string) ([]charges.SchemeRecord, error) {
	saved := make([]charges.SchemeRecord, 0, len(docs))
	for _, doc := range docs {
		rec, err := h.Factory.ParseScheme(doc)
		if err != nil {
			return nil, err
		}
		rec, err = h.Schemes.SaveScheme(ctx, rec)
		if err != nil {
			return nil, err
		}
		saved = append(saved, rec)
	}
	return saved, nil
}
