package ratelimit

import (
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name    string
		header  []string
		want    time.Duration
		wantErr error
	}{
		{
			name:   "one second",
			header: []string{"1"},
			want:   1 * time.Second,
		},
		{
			name:   "surrounding whitespace",
			header: []string{" 30 "},
			want:   30 * time.Second,
		},
		{
			name:   "zero",
			header: []string{"0"},
			want:   0,
		},
		{
			name:    "missing header",
			header:  nil,
			wantErr: ErrNoRetryAfter,
		},
		{
			name:    "not a number",
			header:  []string{"soon"},
			wantErr: ErrInvalidRetryAfter,
		},
		{
			name:    "http date is not accepted",
			header:  []string{"Wed, 21 Oct 2015 07:28:00 GMT"},
			wantErr: ErrInvalidRetryAfter,
		},
		{
			name:    "negative",
			header:  []string{"-5"},
			wantErr: ErrInvalidRetryAfter,
		},
		{
			name:    "empty value",
			header:  []string{""},
			wantErr: ErrInvalidRetryAfter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := http.Header{}
			for _, v := range tt.header {
				headers.Add(RetryAfterHeader, v)
			}

			got, err := ParseRetryAfter(headers)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseRetryAfter() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRetryAfter() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseRetryAfter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRateLimitState_TimeUntilResume(t *testing.T) {
	tests := []struct {
		name       string
		state      *RateLimitState
		wantPaused bool
		wantMin    time.Duration
		wantMax    time.Duration
	}{
		{
			name:       "zero deadline",
			state:      &RateLimitState{},
			wantPaused: false,
		},
		{
			name:       "deadline in the past",
			state:      &RateLimitState{PausedUntil: time.Now().Add(-1 * time.Minute)},
			wantPaused: false,
		},
		{
			name:       "deadline in the future",
			state:      &RateLimitState{PausedUntil: time.Now().Add(30 * time.Second)},
			wantPaused: true,
			wantMin:    29 * time.Second,
			wantMax:    30 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsPaused(); got != tt.wantPaused {
				t.Errorf("IsPaused() = %v, want %v", got, tt.wantPaused)
			}
			got := tt.state.TimeUntilResume()
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("TimeUntilResume() = %v, want between %v and %v", got, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestRateLimitState_IsStale(t *testing.T) {
	fresh := &RateLimitState{LastUpdate: time.Now()}
	if fresh.IsStale(time.Minute) {
		t.Error("fresh state reported stale")
	}

	old := &RateLimitState{LastUpdate: time.Now().Add(-10 * time.Minute)}
	if !old.IsStale(5 * time.Minute) {
		t.Error("old state not reported stale")
	}
}
