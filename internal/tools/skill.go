package tools

import (
	"context"
	"time"

	"github.com/HendryAvila/agi-mcp/internal/envelope"
)

// registerSkill handles agi_register_skill.
func registerSkill(s SkillEvolver) Handler {
	return func(ctx context.Context, args Args) (envelope.Envelope, error) {
		v, err := s.RegisterSkill(ctx,
			args.String("skill_name"),
			args.String("code"),
			args.String("description"),
			args.String("version"),
		)
		if err != nil {
			return envelope.Envelope{}, err
		}
		return envelope.OK(envelope.Payload{
			"skill": map[string]any{
				"name":       v.SkillName,
				"version":    v.Version,
				"created_at": v.CreatedAt.UTC().Format(time.RFC3339),
			},
		}), nil
	}
}

// startABTest handles agi_start_ab_test.
func startABTest(s SkillEvolver) Handler {
	return func(ctx context.Context, args Args) (envelope.Envelope, error) {
		name := args.String("skill_name")
		a, b := args.String("version_a"), args.String("version_b")
		split, _ := args.Float("split_ratio")

		id, err := s.StartABTest(ctx, name, a, b, split)
		if err != nil {
			return envelope.Envelope{}, err
		}
		return envelope.OK(envelope.Payload{
			"test_id":     id,
			"skill_name":  name,
			"version_a":   a,
			"version_b":   b,
			"split_ratio": split,
		}), nil
	}
}

// promoteSkill handles agi_promote_skill. An unsuccessful promotion is a
// soft failure, not an error.
func promoteSkill(s SkillEvolver) Handler {
	return func(ctx context.Context, args Args) (envelope.Envelope, error) {
		name, version := args.String("skill_name"), args.String("version")
		ok, err := s.PromoteVersion(ctx, name, version)
		if err != nil {
			return envelope.Envelope{}, err
		}
		p := envelope.Payload{"skill_name": name, "promoted_version": version}
		if !ok {
			return envelope.Failed(p), nil
		}
		return envelope.OK(p), nil
	}
}
