package notify

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

type scanResult struct {
	Path   string `json:"path"`
	Issues int    `json:"issues"`
}

func TestHandle_Decodes(t *testing.T) {
	reg := NewRegistry()
	var got []scanResult
	Handle(reg, "scan/result", func(ctx context.Context, p scanResult) error {
		got = append(got, p)
		return nil
	})

	h, ok := reg.Lookup("scan/result")
	if !ok {
		t.Fatal("Lookup() ok = false")
	}
	if err := h(context.Background(), json.RawMessage(`{"path":"/src","issues":3}`)); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if err := h(context.Background(), nil); err != nil {
		t.Fatalf("handler with no params error = %v", err)
	}

	want := []scanResult{{Path: "/src", Issues: 3}, {}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("decoded = %+v, want %+v", got, want)
	}
}

func TestHandle_BadParams(t *testing.T) {
	reg := NewRegistry()
	called := false
	Handle(reg, "scan/result", func(ctx context.Context, p scanResult) error {
		called = true
		return nil
	})

	h, _ := reg.Lookup("scan/result")
	err := h(context.Background(), json.RawMessage(`{"issues":"many"}`))
	if err == nil || !strings.Contains(err.Error(), "decode scan/result params") {
		t.Errorf("error = %v, want decode error", err)
	}
	if called {
		t.Error("handler ran with undecodable params")
	}
}

func TestRegistry_Replace(t *testing.T) {
	reg := NewRegistry()
	first := errors.New("first")
	reg.Register("m", func(context.Context, json.RawMessage) error { return first })
	reg.Register("m", func(context.Context, json.RawMessage) error { return nil })

	if reg.Methods() != 1 {
		t.Errorf("Methods() = %d, want 1", reg.Methods())
	}
	h, _ := reg.Lookup("m")
	if err := h(context.Background(), nil); err != nil {
		t.Errorf("replaced handler returned %v", err)
	}
	if _, ok := reg.Lookup("missing"); ok {
		t.Error("Lookup(missing) ok = true")
	}
}

func TestDispatcher_RoutesInOrder(t *testing.T) {
	logger := &recordingLogger{}
	seq := NewSequencer(context.Background(), logger)
	reg := NewRegistry()
	tr := &trace{}

	Handle(reg, "a", func(ctx context.Context, p string) error {
		tr.add("a:" + p)
		return nil
	})
	Handle(reg, "b", func(ctx context.Context, p string) error {
		tr.add("b:" + p)
		return errors.New("b failed")
	})

	d := NewDispatcher(reg, seq, logger)
	for _, msg := range []Message{
		{Method: "a", Params: json.RawMessage(`"1"`)},
		{Method: "b", Params: json.RawMessage(`"2"`)},
		{Method: "unknown"},
		{Method: "a", Params: json.RawMessage(`"3"`)},
	} {
		if !d.Dispatch(msg) {
			t.Fatalf("Dispatch(%s) = false", msg.Method)
		}
	}
	seq.Stop()

	if got, want := tr.list(), []string{"a:1", "b:2", "a:3"}; !reflect.DeepEqual(got, want) {
		t.Errorf("handled = %v, want %v", got, want)
	}

	errs := logger.byLevel("error")
	if len(errs) != 1 || !strings.Contains(errs[0].value("error").(error).Error(), "b failed") {
		t.Errorf("error logs = %+v, want one for b", errs)
	}
	if d.Dispatch(Message{Method: "a"}) {
		t.Error("Dispatch() = true after Stop")
	}
}
