package tools

import (
	"context"
	"fmt"

	"github.com/HendryAvila/agi-mcp/internal/envelope"
	"github.com/HendryAvila/agi-mcp/internal/modification"
)

// proposeModification handles agi_propose_modification.
func proposeModification(m Modifier) Handler {
	return func(ctx context.Context, args Args) (envelope.Envelope, error) {
		modType, err := modification.ParseType(args.String("modification_type"))
		if err != nil {
			return envelope.Envelope{}, err
		}
		mod, err := m.ProposeModification(ctx,
			args.String("code_before"),
			args.String("code_after"),
			modType,
			args.String("description"),
		)
		if err != nil {
			return envelope.Envelope{}, err
		}
		return envelope.OK(envelope.Payload{
			"modification_id": mod.ID,
			"type":            string(mod.Type),
			"description":     mod.Description,
			"proof_status":    string(mod.ProofStatus),
		}), nil
	}
}

// applyModification handles agi_apply_modification. Applying requires
// rebuilding the full modification, which is not supported; the handler
// reports the recorded state instead.
func applyModification(m Modifier) Handler {
	return func(ctx context.Context, args Args) (envelope.Envelope, error) {
		id := args.String("modification_id")
		r, err := m.Find(ctx, id)
		if err != nil {
			return envelope.Envelope{}, err
		}
		if r == nil {
			return envelope.Failf("Modification %s not found", id), nil
		}
		return envelope.Info(envelope.Payload{
			"message":         "Modification application requires full object reconstruction",
			"modification_id": id,
			"current_status":  r,
		}), nil
	}
}

// improvementHistory handles agi_get_improvement_history. The limit must
// be positive.
func improvementHistory(m Modifier) Handler {
	return func(ctx context.Context, args Args) (envelope.Envelope, error) {
		limit := args.Int("limit")
		if limit <= 0 {
			return envelope.Envelope{}, fmt.Errorf("%w, got %d", modification.ErrInvalidLimit, limit)
		}
		h, err := m.History(ctx, limit)
		if err != nil {
			return envelope.Envelope{}, err
		}
		if h == nil {
			h = []modification.Record{}
		}
		return envelope.OK(envelope.Payload{"history": h}), nil
	}
}
