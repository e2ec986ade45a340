package experiment

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"streamhub/internal/api"
)

type fakeAssigner struct {
	assignments map[string]*api.ExperimentAssignment
	err         error
	calls       int
}

func (f *fakeAssigner) FetchAssignment(ctx context.Context, experiment string) (*api.ExperimentAssignment, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if a, ok := f.assignments[experiment]; ok {
		return a, nil
	}
	return &api.ExperimentAssignment{Experiment: experiment}, nil
}

func TestVariantAssigned(t *testing.T) {
	assigner := &fakeAssigner{assignments: map[string]*api.ExperimentAssignment{
		"chat-reactions": {Experiment: "chat-reactions", Enrolled: true, Variant: "reactions"},
	}}
	r := NewResolver(assigner, slog.Default())

	variant, source := r.Variant(context.Background(), "chat-reactions")
	if variant != "reactions" || source != SourceAssigned {
		t.Fatalf("got (%q, %q), want (reactions, assigned)", variant, source)
	}
}

func TestVariantNotEnrolled(t *testing.T) {
	assigner := &fakeAssigner{}
	r := NewResolver(assigner, slog.Default())

	variant, source := r.Variant(context.Background(), "new-player-controls")
	if variant != VariantControl {
		t.Errorf("variant = %q, want control", variant)
	}
	if source != SourceNotEnrolled {
		t.Errorf("source = %q, want not-enrolled", source)
	}
}

func TestVariantCachesDefinitiveAnswers(t *testing.T) {
	assigner := &fakeAssigner{assignments: map[string]*api.ExperimentAssignment{
		"chat-reactions": {Experiment: "chat-reactions", Enrolled: true, Variant: "reactions"},
	}}
	r := NewResolver(assigner, slog.Default())

	r.Variant(context.Background(), "chat-reactions")
	r.Variant(context.Background(), "chat-reactions")
	r.Variant(context.Background(), "other-experiment")
	r.Variant(context.Background(), "other-experiment")

	if assigner.calls != 2 {
		t.Errorf("fetches = %d, want 2 (one per experiment)", assigner.calls)
	}
}

func TestVariantUnavailableNotCached(t *testing.T) {
	assigner := &fakeAssigner{err: errors.New("connection refused")}
	r := NewResolver(assigner, slog.Default())

	variant, source := r.Variant(context.Background(), "chat-reactions")
	if variant != VariantControl || source != SourceUnavailable {
		t.Fatalf("got (%q, %q), want (control, unavailable)", variant, source)
	}

	// Service recovers; the next lookup must ask again
	assigner.err = nil
	assigner.assignments = map[string]*api.ExperimentAssignment{
		"chat-reactions": {Experiment: "chat-reactions", Enrolled: true, Variant: "reactions"},
	}
	variant, source = r.Variant(context.Background(), "chat-reactions")
	if variant != "reactions" || source != SourceAssigned {
		t.Fatalf("after recovery got (%q, %q), want (reactions, assigned)", variant, source)
	}
	if assigner.calls != 2 {
		t.Errorf("fetches = %d, want 2", assigner.calls)
	}
}
