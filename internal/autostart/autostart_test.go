package autostart_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/emuctl/internal/autostart"
	"github.com/dshills/emuctl/internal/dispatcher"
	"github.com/dshills/emuctl/internal/host/sim"
)

type fakeExecutor struct {
	calls []string
	fail  map[string]error
}

func (f *fakeExecutor) Exec(method string, params map[string]any) (any, error) {
	f.calls = append(f.calls, method)
	if err := f.fail[method]; err != nil {
		return nil, err
	}
	return method, nil
}

func TestRunInOrder(t *testing.T) {
	ex := &fakeExecutor{}
	autostart.Run(ex, []autostart.Entry{
		{Method: "a"},
		{Method: "b"},
		{Method: "c"},
	}, nil)

	if diff := cmp.Diff([]string{"a", "b", "c"}, ex.calls); diff != "" {
		t.Errorf("call order mismatch (-want +got):\n%s", diff)
	}
}

func TestRunSkipsEmptyMethod(t *testing.T) {
	ex := &fakeExecutor{}
	report := autostart.RunWithReport(ex, []autostart.Entry{
		{Method: ""},
		{Method: "b"},
	}, nil)

	if diff := cmp.Diff([]string{"b"}, ex.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	if !report.Outcomes[0].Skipped || report.Ran() != 1 {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestRunContinuesPastErrors(t *testing.T) {
	errBad := errors.New("bad")
	ex := &fakeExecutor{fail: map[string]error{"b": errBad}}

	report := autostart.RunWithReport(ex, []autostart.Entry{
		{Method: "a"},
		{Method: "b"},
		{Method: "c"},
	}, nil)

	if diff := cmp.Diff([]string{"a", "b", "c"}, ex.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	failed := report.Failed()
	if len(failed) != 1 || failed[0].Method != "b" || failed[0].Index != 1 {
		t.Errorf("Failed = %+v", failed)
	}
	if !errors.Is(report.Err(), errBad) {
		t.Errorf("Err = %v, want wrapping %v", report.Err(), errBad)
	}
}

func TestRunEmpty(t *testing.T) {
	report := autostart.RunWithReport(&fakeExecutor{}, nil, nil)
	if report.Ran() != 0 || report.Err() != nil {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestRunAgainstDispatcher(t *testing.T) {
	entries := []autostart.Entry{
		{Method: "control.pause"},
		{Method: "unknown.x"},
		{Method: "control.play"},
	}

	t.Run("permissive", func(t *testing.T) {
		s := sim.New(nil)
		d := dispatcher.New(s, dispatcher.Options{})

		report := autostart.RunWithReport(d, entries, nil)
		if report.Err() != nil {
			t.Errorf("permissive run should not fail: %v", report.Err())
		}
		if diff := cmp.Diff([]string{"Pause", "Play"}, s.CallNames()); diff != "" {
			t.Errorf("host calls mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("strict", func(t *testing.T) {
		s := sim.New(nil)
		d := dispatcher.NewStrict(s, dispatcher.Options{})

		report := autostart.RunWithReport(d, entries, nil)
		if !errors.Is(report.Err(), dispatcher.ErrUnknownMethod) {
			t.Errorf("Err = %v, want unknown method", report.Err())
		}
		if diff := cmp.Diff([]string{"Pause", "Play"}, s.CallNames()); diff != "" {
			t.Errorf("host calls mismatch (-want +got):\n%s", diff)
		}
		if s.Paused() {
			t.Error("play should run after the failing entry")
		}
	})
}
