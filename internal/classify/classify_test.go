package classify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dovakin0007/screen-time-tracking-app/internal/model"
)

type fakeStore struct {
	pending  [][]model.Classification
	fetches  int
	updated  map[string]string
	fetchErr error
}

func (f *fakeStore) FetchUnclassified(ctx context.Context, limit int) ([]model.Classification, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	f.fetches++
	if len(f.pending) == 0 {
		return nil, nil
	}
	batch := f.pending[0]
	f.pending = f.pending[1:]
	return batch, nil
}

func (f *fakeStore) UpdateClassification(ctx context.Context, name, classification string) error {
	if f.updated == nil {
		f.updated = map[string]string{}
	}
	f.updated[name] = classification
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func record(name string) model.Classification {
	return model.Classification{Name: name, Path: `C:\apps\` + name}
}

func TestNextRefillsFromStore(t *testing.T) {
	st := &fakeStore{pending: [][]model.Classification{
		{record("a.exe"), record("b.exe")},
		{record("c.exe")},
	}}
	p := &Pipeline{store: st, logger: discardLogger()}
	ctx := context.Background()

	var got []string
	for i := 0; i < 3; i++ {
		rec, ok := p.next(ctx)
		if !ok {
			t.Fatalf("pop %d: expected a record", i)
		}
		got = append(got, rec.Name)
	}
	if got[0] != "a.exe" || got[1] != "b.exe" || got[2] != "c.exe" {
		t.Errorf("queue order: got %v", got)
	}
	if st.fetches != 2 {
		t.Errorf("expected 2 refills, got %d", st.fetches)
	}

	// Store exhausted: next reports nothing pending.
	if _, ok := p.next(ctx); ok {
		t.Error("expected empty queue after store drained")
	}
}

func TestNextSwallowsFetchError(t *testing.T) {
	st := &fakeStore{fetchErr: errors.New("db locked")}
	p := &Pipeline{store: st, logger: discardLogger()}

	if _, ok := p.next(context.Background()); ok {
		t.Error("fetch error must not yield a record")
	}
}

func TestDecodeResult(t *testing.T) {
	rec, err := decodeResult([]byte(`{"name":"editor.exe","path":"C:\\e.exe","classification":"Productivity"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Name != "editor.exe" || *rec.Classification != "Productivity" {
		t.Errorf("decoded %+v", rec)
	}
}

func TestDecodeResultRejectsBadReplies(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", `{{{`},
		{"missing name", `{"path":"x","classification":"Games"}`},
		{"null verdict", `{"name":"a.exe","path":"x","classification":null}`},
		{"empty verdict", `{"name":"a.exe","path":"x","classification":""}`},
	}
	for _, tc := range cases {
		if _, err := decodeResult([]byte(tc.body)); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}
