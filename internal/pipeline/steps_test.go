package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openshelf/catkey/internal/model"
	"github.com/openshelf/catkey/internal/notify"
)

func mustCandidate(t *testing.T, isbn, title, author, list string) model.Candidate {
	t.Helper()
	c, err := model.NewCandidate(isbn, title, author, list)
	if err != nil {
		t.Fatalf("NewCandidate(%q) returned error: %v", isbn, err)
	}
	return c
}

// fakeSource serves scripted candidates per list.
type fakeSource struct {
	lists map[string][]model.Candidate
	errs  map[string]error
}

func (s *fakeSource) Fetch(_ context.Context, listName string) ([]model.Candidate, error) {
	if err := s.errs[listName]; err != nil {
		return nil, err
	}
	return s.lists[listName], nil
}

// fakeResolver maps ISBNs to scripted resolutions and counts calls.
type fakeResolver struct {
	outcomes map[string]model.Resolution
	calls    []string
}

func (r *fakeResolver) Resolve(_ context.Context, isbn string) model.Resolution {
	r.calls = append(r.calls, isbn)
	if res, ok := r.outcomes[isbn]; ok {
		return res
	}
	return model.Unresolved(model.ReasonNoPatternMatch)
}

// fakeCache serves scripted cache hits.
type fakeCache struct {
	keys    map[string]string
	err     error
	lookups []string
}

func (c *fakeCache) LastResolved(_ context.Context, isbn string) (string, error) {
	c.lookups = append(c.lookups, isbn)
	if c.err != nil {
		return "", c.err
	}
	return c.keys[isbn], nil
}

func TestResolveStep(t *testing.T) {
	t.Parallel()

	t.Run("resolves and records every candidate", func(t *testing.T) {
		t.Parallel()

		grisham := mustCandidate(t, "9780385545969", "The Secret", "John Grisham", "hardcover-fiction")
		missing := mustCandidate(t, "9780000000002", "Missing Book", "Jane Doe", "hardcover-fiction")
		source := &fakeSource{lists: map[string][]model.Candidate{
			"hardcover-fiction": {grisham, missing},
		}}
		resolver := &fakeResolver{outcomes: map[string]model.Resolution{
			"9780385545969": model.Resolved("482910"),
			"9780000000002": model.Unresolved(model.ReasonTimeout),
		}}

		run := model.NewRun("run-1", []string{"hardcover-fiction"})
		step := NewResolveStep(source, resolver)
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("Do() returned error: %v", err)
		}

		keys := run.Results.ResolvedKeys("hardcover-fiction")
		if len(keys) != 1 || keys[0] != "482910" {
			t.Errorf("resolved keys = %v, want [482910]", keys)
		}
		unresolved := run.Results.Unresolved()
		if len(unresolved) != 1 {
			t.Fatalf("got %d unresolved, want 1", len(unresolved))
		}
		if unresolved[0].ISBN != "9780000000002" || unresolved[0].Reason != model.ReasonTimeout {
			t.Errorf("unresolved row = %+v", unresolved[0])
		}
		if len(run.Outcomes) != 2 {
			t.Errorf("got %d outcomes, want 2", len(run.Outcomes))
		}
		if run.FinishedAt.IsZero() {
			t.Error("FinishedAt not stamped")
		}
	})

	t.Run("fetch failure skips list and continues", func(t *testing.T) {
		t.Parallel()

		good := mustCandidate(t, "9781501110368", "It Ends with Us", "Colleen Hoover", "paperback-fiction")
		source := &fakeSource{
			lists: map[string][]model.Candidate{"paperback-fiction": {good}},
			errs:  map[string]error{"hardcover-fiction": errors.New("upstream 500")},
		}
		resolver := &fakeResolver{outcomes: map[string]model.Resolution{
			"9781501110368": model.Resolved("477001"),
		}}

		run := model.NewRun("run-1", []string{"hardcover-fiction", "paperback-fiction"})
		if err := NewResolveStep(source, resolver).Do(context.Background(), run); err != nil {
			t.Fatalf("Do() returned error: %v", err)
		}
		if got := run.Results.ResolvedKeys("paperback-fiction"); len(got) != 1 {
			t.Errorf("second list not processed after first failed: %v", got)
		}
	})

	t.Run("cache hit skips catalog search", func(t *testing.T) {
		t.Parallel()

		c := mustCandidate(t, "9780385545969", "The Secret", "John Grisham", "hardcover-fiction")
		source := &fakeSource{lists: map[string][]model.Candidate{"hardcover-fiction": {c}}}
		resolver := &fakeResolver{}
		cache := &fakeCache{keys: map[string]string{"9780385545969": "482910"}}

		run := model.NewRun("run-1", []string{"hardcover-fiction"})
		step := NewResolveStep(source, resolver, WithKeyCache(cache))
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("Do() returned error: %v", err)
		}

		if len(resolver.calls) != 0 {
			t.Errorf("resolver called %d times despite cache hit", len(resolver.calls))
		}
		if got := run.Results.ResolvedKeys("hardcover-fiction"); len(got) != 1 || got[0] != "482910" {
			t.Errorf("cached key not recorded: %v", got)
		}
	})

	t.Run("cache miss falls through to resolver", func(t *testing.T) {
		t.Parallel()

		c := mustCandidate(t, "9780385545969", "The Secret", "John Grisham", "hardcover-fiction")
		source := &fakeSource{lists: map[string][]model.Candidate{"hardcover-fiction": {c}}}
		resolver := &fakeResolver{outcomes: map[string]model.Resolution{
			"9780385545969": model.Resolved("482910"),
		}}
		cache := &fakeCache{}

		run := model.NewRun("run-1", []string{"hardcover-fiction"})
		step := NewResolveStep(source, resolver, WithKeyCache(cache))
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("Do() returned error: %v", err)
		}
		if len(resolver.calls) != 1 {
			t.Errorf("resolver called %d times, want 1", len(resolver.calls))
		}
	})

	t.Run("cache error is non-fatal", func(t *testing.T) {
		t.Parallel()

		c := mustCandidate(t, "9780385545969", "The Secret", "John Grisham", "hardcover-fiction")
		source := &fakeSource{lists: map[string][]model.Candidate{"hardcover-fiction": {c}}}
		resolver := &fakeResolver{outcomes: map[string]model.Resolution{
			"9780385545969": model.Resolved("482910"),
		}}
		cache := &fakeCache{err: errors.New("database locked")}

		run := model.NewRun("run-1", []string{"hardcover-fiction"})
		step := NewResolveStep(source, resolver, WithKeyCache(cache))
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("Do() returned error: %v", err)
		}
		if got := run.Results.ResolvedKeys("hardcover-fiction"); len(got) != 1 {
			t.Errorf("candidate not resolved after cache error: %v", got)
		}
	})

	t.Run("cancellation stops mid-list", func(t *testing.T) {
		t.Parallel()

		a := mustCandidate(t, "9780385545969", "The Secret", "John Grisham", "hardcover-fiction")
		b := mustCandidate(t, "9780000000002", "Missing Book", "Jane Doe", "hardcover-fiction")
		source := &fakeSource{lists: map[string][]model.Candidate{"hardcover-fiction": {a, b}}}

		ctx, cancel := context.WithCancel(context.Background())
		resolver := &cancelingResolver{cancel: cancel}

		run := model.NewRun("run-1", []string{"hardcover-fiction"})
		step := NewResolveStep(source, resolver, WithResolveDelay(time.Millisecond))
		err := step.Do(ctx, run)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Do() error = %v, want context.Canceled", err)
		}
		if len(run.Outcomes) != 1 {
			t.Errorf("got %d outcomes after cancellation, want 1", len(run.Outcomes))
		}
		if run.FinishedAt.IsZero() {
			t.Error("FinishedAt not stamped on cancellation")
		}
	})
}

// cancelingResolver cancels the run context from inside the first resolution.
type cancelingResolver struct {
	cancel context.CancelFunc
}

func (r *cancelingResolver) Resolve(_ context.Context, _ string) model.Resolution {
	r.cancel()
	return model.Resolved("111111")
}

// fakeNotifier records sent messages.
type fakeNotifier struct {
	sent []notify.Message
	err  error
}

func (n *fakeNotifier) Send(msg notify.Message) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func TestNotifyStep(t *testing.T) {
	t.Parallel()

	t.Run("sends summary with attachments", func(t *testing.T) {
		t.Parallel()

		run := model.NewRun("run-1", []string{"hardcover-fiction"})
		run.FinishedAt = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
		run.Record(
			mustCandidate(t, "9780385545969", "The Secret", "John Grisham", "hardcover-fiction"),
			model.Resolved("482910"),
		)
		run.Artifacts["found.txt"] = "/tmp/found.txt"

		notifier := &fakeNotifier{}
		if err := NewNotifyStep(notifier).Do(context.Background(), run); err != nil {
			t.Fatalf("Do() returned error: %v", err)
		}
		if len(notifier.sent) != 1 {
			t.Fatalf("got %d messages, want 1", len(notifier.sent))
		}
		msg := notifier.sent[0]
		if msg.Subject != "Bestseller Record Keys - 2026-03-14" {
			t.Errorf("subject = %q", msg.Subject)
		}
		if len(msg.Attachments) != 1 {
			t.Errorf("got %d attachments, want 1", len(msg.Attachments))
		}
		if !run.Notified {
			t.Error("run not marked notified")
		}
	})

	t.Run("skipped without artifacts", func(t *testing.T) {
		t.Parallel()

		run := model.NewRun("run-1", []string{"hardcover-fiction"})
		notifier := &fakeNotifier{}
		if err := NewNotifyStep(notifier).Do(context.Background(), run); err != nil {
			t.Fatalf("Do() returned error: %v", err)
		}
		if len(notifier.sent) != 0 {
			t.Error("notification sent despite empty artifact set")
		}
		if run.Notified {
			t.Error("run marked notified without delivery")
		}
	})

	t.Run("delivery failure leaves run unnotified", func(t *testing.T) {
		t.Parallel()

		run := model.NewRun("run-1", []string{"hardcover-fiction"})
		run.FinishedAt = time.Now()
		run.Artifacts["found.txt"] = "/tmp/found.txt"

		notifier := &fakeNotifier{err: errors.New("connection refused")}
		if err := NewNotifyStep(notifier).Do(context.Background(), run); err == nil {
			t.Fatal("Do() succeeded, want delivery error")
		}
		if run.Notified {
			t.Error("run marked notified after failed delivery")
		}
	})
}
