package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/scrypster/chronicle/pkg/types"
)

// decisionRecorder applies mention decisions inside the chapter
// transaction.
//
//   - Adopted: the mention becomes an alias of the chosen entity and counts
//     as an appearance.
//   - AdoptedWithWarning: counts as an appearance, and an audit row stays
//     open until someone confirms or dismisses it. The alias is only
//     registered on confirmation.
//   - PendingReview: only the audit row is written; no canonical state
//     changes.
type decisionRecorder struct {
	ctx     context.Context
	in      *ingestion
	context string
}

var _ types.DecisionHandler = (*decisionRecorder)(nil)

func (h *decisionRecorder) Adopted(d types.Decision) error {
	in := h.in
	if _, err := in.e.registry.RegisterAlias(h.ctx, in.w, d.Resolution.Mention, d.Chosen); err != nil {
		return err
	}
	in.appear(d.Chosen, []string{d.Resolution.Mention}, d.Resolution.Confidence())
	in.report.Adopted++
	return nil
}

func (h *decisionRecorder) AdoptedWithWarning(d types.Decision) error {
	in := h.in
	in.appear(d.Chosen, []string{d.Resolution.Mention}, d.Resolution.Confidence())
	in.report.Warned++
	in.report.Warnings = append(in.report.Warnings, fmt.Sprintf("mention %q adopted as %s with confidence %.2f",
		d.Resolution.Mention, d.Chosen, d.Resolution.Confidence()))
	return h.audit(d)
}

func (h *decisionRecorder) PendingReview(d types.Decision) error {
	in := h.in
	in.report.Pending++
	in.report.Warnings = append(in.report.Warnings, fmt.Sprintf("mention %q held for review (confidence %.2f)",
		d.Resolution.Mention, d.Resolution.Confidence()))
	return h.audit(d)
}

func (h *decisionRecorder) audit(d types.Decision) error {
	in := h.in
	return in.w.InsertDisambiguation(h.ctx, &types.DisambiguationRecord{
		ID:         uuid.NewString(),
		Chapter:    in.chapter,
		Mention:    d.Resolution.Mention,
		Tier:       d.Tier,
		Chosen:     d.Chosen,
		Confidence: d.Resolution.Confidence(),
		Candidates: d.Resolution.Candidates,
		Context:    h.context,
		RunID:      in.runID,
		CreatedAt:  in.e.now(),
	})
}
