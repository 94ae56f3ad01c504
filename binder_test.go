package main

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePairs(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []RolePair
		badLine string
	}{
		{
			name:  "single unicode pair",
			input: "⭐ <@&111>",
			want:  []RolePair{{Emoji: "⭐", RoleID: "111"}},
		},
		{
			name:  "custom emoji normalized",
			input: "<:catjam:12345> <@&111>",
			want:  []RolePair{{Emoji: "catjam:12345", RoleID: "111"}},
		},
		{
			name:  "animated custom emoji",
			input: "<a:party:67890> <@&222>",
			want:  []RolePair{{Emoji: "party:67890", RoleID: "222"}},
		},
		{
			name:  "shortcode kept verbatim",
			input: ":star: <@&111>",
			want:  []RolePair{{Emoji: ":star:", RoleID: "111"}},
		},
		{
			name:  "multiple lines with blanks",
			input: "⭐ <@&111>\n\n🌙 <@&222>\n",
			want: []RolePair{
				{Emoji: "⭐", RoleID: "111"},
				{Emoji: "🌙", RoleID: "222"},
			},
		},
		{
			name:    "missing role",
			input:   "⭐",
			badLine: "⭐",
		},
		{
			name:    "role is not a mention",
			input:   "⭐ 111",
			badLine: "⭐ 111",
		},
		{
			name:    "user mention instead of role",
			input:   "⭐ <@111>",
			badLine: "⭐ <@111>",
		},
		{
			name:    "too many fields",
			input:   "⭐ <@&111> extra",
			badLine: "⭐ <@&111> extra",
		},
		{
			name:    "second line aborts the whole parse",
			input:   "⭐ <@&111>\nnonsense",
			badLine: "nonsense",
		},
		{
			name:  "empty input",
			input: "\n\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pairs, err := ParsePairs(tt.input)
			if tt.want == nil {
				var pairErr *PairFormatError
				require.ErrorAs(t, err, &pairErr)
				assert.Equal(t, tt.badLine, pairErr.Line)
				assert.Nil(t, pairs)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, pairs)
		})
	}
}

func TestBindingMatchFirstWins(t *testing.T) {
	binding := ReactionRoleBinding{
		Pairs: []RolePair{
			{Emoji: "⭐", RoleID: "first"},
			{Emoji: "🌙", RoleID: "moon"},
			{Emoji: "⭐", RoleID: "second"},
		},
	}

	role, ok := binding.Match("⭐")
	assert.True(t, ok)
	assert.Equal(t, "first", role)

	role, ok = binding.Match("🌙")
	assert.True(t, ok)
	assert.Equal(t, "moon", role)

	_, ok = binding.Match("☀️")
	assert.False(t, ok)
}

func testBindingStore(t *testing.T) (*BindingStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bindings.json")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewBindingStore(logger, path), path
}

func TestBindingStoreRoundTrip(t *testing.T) {
	store, _ := testBindingStore(t)

	binding := ReactionRoleBinding{
		MessageID: "msg-1",
		ChannelID: "chan-1",
		Title:     "pick your roles",
		Pairs:     []RolePair{{Emoji: "⭐", RoleID: "111"}},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Put(binding))

	got, err := store.Get("msg-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, binding.Pairs, got.Pairs)
	assert.Equal(t, "chan-1", got.ChannelID)
}

func TestBindingStoreUnknownMessage(t *testing.T) {
	store, _ := testBindingStore(t)

	got, err := store.Get("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestBindingStoreSeesExternalWrites(t *testing.T) {
	first, path := testBindingStore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	second := NewBindingStore(logger, path)

	require.NoError(t, second.Put(ReactionRoleBinding{
		MessageID: "msg-2",
		Pairs:     []RolePair{{Emoji: "🌙", RoleID: "222"}},
	}))

	// no cache: the first handle picks up the other writer's binding
	got, err := first.Get("msg-2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "222", got.Pairs[0].RoleID)
}

func TestBindingStorePreservesExistingBindings(t *testing.T) {
	store, _ := testBindingStore(t)

	require.NoError(t, store.Put(ReactionRoleBinding{MessageID: "a", Pairs: []RolePair{{Emoji: "⭐", RoleID: "1"}}}))
	require.NoError(t, store.Put(ReactionRoleBinding{MessageID: "b", Pairs: []RolePair{{Emoji: "🌙", RoleID: "2"}}}))

	got, err := store.Get("a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "1", got.Pairs[0].RoleID)
}

func TestEmojiDisplay(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{token: "catjam:12345", want: "<:catjam:12345>"},
		{token: "⭐", want: "⭐"},
		{token: ":star:", want: ":star:"},
	}
	for _, tt := range tests {
		if got := emojiDisplay(tt.token); got != tt.want {
			t.Errorf("emojiDisplay(%q) = %q, want %q", tt.token, got, tt.want)
		}
	}
}
