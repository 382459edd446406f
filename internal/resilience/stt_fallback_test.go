package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/echolist/pkg/provider/stt"
	sttmock "github.com/MrWong99/echolist/pkg/provider/stt/mock"
)

func TestSTTFallback_StartStream_PrimarySuccess(t *testing.T) {
	primary := sttmock.NewProvider(sttmock.NewSession())
	secondary := sttmock.NewProvider()

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	handle, err := fb.StartStream(context.Background(), stt.StreamConfig{
		SampleRate: 16000,
		Channels:   1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if handle == nil {
		t.Fatal("handle is nil")
	}
	if primary.StartCount() != 1 {
		t.Fatalf("primary called %d times, want 1", primary.StartCount())
	}
	if secondary.StartCount() != 0 {
		t.Fatalf("secondary called %d times, want 0", secondary.StartCount())
	}
	_ = handle.Close()
}

func TestSTTFallback_StartStream_Failover(t *testing.T) {
	primary := sttmock.NewProvider()
	primary.StartErr = errors.New("primary down")
	secondary := sttmock.NewProvider(sttmock.NewSession())

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	handle, err := fb.StartStream(context.Background(), stt.StreamConfig{
		SampleRate: 16000,
		Channels:   1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if handle == nil {
		t.Fatal("handle is nil")
	}
	if secondary.StartCount() != 1 {
		t.Fatalf("secondary called %d times, want 1", secondary.StartCount())
	}
	_ = handle.Close()
}

func TestSTTFallback_StartStream_AllFail(t *testing.T) {
	primary := sttmock.NewProvider()
	primary.StartErr = errors.New("primary down")
	secondary := sttmock.NewProvider()
	secondary.StartErr = errors.New("secondary down")

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	_, err := fb.StartStream(context.Background(), stt.StreamConfig{})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
