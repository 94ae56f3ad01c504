package main

import (
	"strings"
	"testing"
	"time"
)

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{name: "seconds only", d: 42 * time.Second, want: "Uptime: 42s"},
		{name: "zero", d: 0, want: "Uptime: 0s"},
		{name: "minutes and seconds", d: 61 * time.Second, want: "Uptime: 1m 1s"},
		{name: "exact hour", d: time.Hour, want: "Uptime: 1h 0s"},
		{name: "full spread", d: 26*time.Hour + 3*time.Minute + 4*time.Second, want: "Uptime: 1d 2h 3m 4s"},
		{name: "zero hours between days and minutes", d: 24*time.Hour + 5*time.Minute, want: "Uptime: 1d 5m 0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatUptime(tt.d); got != tt.want {
				t.Errorf("formatUptime(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestRegisterFailureMessage(t *testing.T) {
	existing := MemberRecord{DiscordID: "100", OsuID: "555", Username: "cookiezi"}
	tests := []struct {
		name string
		err  error
		self bool
		want string
	}{
		{
			name: "permission denied",
			err:  ErrPermissionDenied,
			want: "staff",
		},
		{
			name: "own account taken",
			err:  &AlreadyRegisteredError{Key: ConflictDiscordAccount, Existing: existing},
			self: true,
			want: "You are already registered",
		},
		{
			name: "target account taken",
			err:  &AlreadyRegisteredError{Key: ConflictDiscordAccount, Existing: existing},
			want: "That member is already registered",
		},
		{
			name: "osu account taken",
			err:  &AlreadyRegisteredError{Key: ConflictOsuAccount, Existing: existing},
			want: "already linked to <@100>",
		},
		{
			name: "osu account taken, holder unknown",
			err:  &AlreadyRegisteredError{Key: ConflictOsuAccount, Existing: MemberRecord{OsuID: "555"}},
			want: "`555` is already registered",
		},
		{
			name: "lookup failed",
			err:  &ExternalLookupError{OsuID: "555", Reason: "no such user"},
			want: "Could not verify osu! account",
		},
		{
			name: "store failure stays generic",
			err:  &PersistenceError{Op: "insert"},
			want: "Something went wrong",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := registerFailureMessage(tt.err, tt.self)
			if !strings.Contains(got, tt.want) {
				t.Errorf("registerFailureMessage(%v) = %q, want it to mention %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestUnregisterFailureMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "not registered", err: ErrNotRegistered, want: "No registration found"},
		{name: "permission denied", err: ErrPermissionDenied, want: "staff"},
		{name: "bad reference", err: ErrBadUserRef, want: "mention"},
		{name: "store failure stays generic", err: &PersistenceError{Op: "delete"}, want: "Something went wrong"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := unregisterFailureMessage(tt.err)
			if !strings.Contains(got, tt.want) {
				t.Errorf("unregisterFailureMessage(%v) = %q, want it to mention %q", tt.err, got, tt.want)
			}
		})
	}
}
