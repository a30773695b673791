package engine

import (
	"errors"
	"testing"
)

func TestConvert_RejectsMissingSourceConnString(t *testing.T) {
	_, err := Convert(ConvertOptions{DestPath: "out.sqlite"}, nil, nil, nil)
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestConvert_RejectsMissingDestPath(t *testing.T) {
	_, err := Convert(ConvertOptions{SourceConnString: "sqlserver://x"}, nil, nil, nil)
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestConvert_RejectsPassword(t *testing.T) {
	_, err := Convert(ConvertOptions{
		SourceConnString: "sqlserver://x",
		DestPath:         "out.sqlite",
		Password:         "secret",
	}, nil, nil, nil)
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

// A configuration failure is returned synchronously and must never reach
// an installed progress handler.
type failIfCalled struct {
	t *testing.T
}

func (f failIfCalled) OnProgress(done, success bool, percent int, message string) {
	f.t.Fatalf("progress handler invoked on a configuration failure: done=%v success=%v percent=%d message=%q", done, success, percent, message)
}

func TestConvert_ConfigurationFailureNeverInvokesProgress(t *testing.T) {
	_, err := Convert(ConvertOptions{DestPath: "out.sqlite"}, failIfCalled{t: t}, nil, nil)
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestRescale(t *testing.T) {
	tests := []struct {
		percent, start, end, want int
	}{
		{0, 0, 20, 0},
		{100, 0, 20, 20},
		{50, 0, 20, 10},
		{100, 50, 95, 95},
		{0, 50, 95, 50},
	}
	for _, tt := range tests {
		if got := rescale(tt.percent, tt.start, tt.end); got != tt.want {
			t.Errorf("rescale(%d, %d, %d) = %d, want %d", tt.percent, tt.start, tt.end, got, tt.want)
		}
	}
}

func TestIsUnsupportedTypeError(t *testing.T) {
	wrapped := errors.New("wrapped, not an unsupported type error")
	if isUnsupportedTypeError(wrapped) {
		t.Error("expected false for an unrelated error")
	}
}

func TestCoordinator_CancelBeforeStart(t *testing.T) {
	c := &Coordinator{}
	c.Cancel()
	if err := c.checkCancelled(); !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}
