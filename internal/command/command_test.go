package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFormatsWireLine(t *testing.T) {
	tests := []struct {
		name    string
		verb    string
		bot     string
		payload []string
		want    string
	}{
		{name: "verb only", verb: "statusall", want: "statusall"},
		{name: "verb and bot", verb: "farm", bot: "alice", want: "farm alice"},
		{name: "payload joined", verb: "redeem", bot: "alice", payload: []string{"KEY1", "KEY2"}, want: "redeem alice KEY1,KEY2"},
		{name: "single payload line", verb: "play", bot: "bob", payload: []string{"440"}, want: "play bob 440"},
		{name: "blank lines dropped", verb: "redeem", bot: "alice", payload: []string{"", "KEY1", "  ", "KEY2\r", ""}, want: "redeem alice KEY1,KEY2"},
		{name: "all blank payload", verb: "owns", bot: "alice", payload: []string{"", " "}, want: "owns alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := New(tt.verb, tt.bot, tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd.String())
		})
	}
}

func TestNewIsDeterministic(t *testing.T) {
	a, err := New("redeem", "alice", []string{"KEY1", "KEY2"})
	require.NoError(t, err)
	b, err := New("redeem", "alice", []string{"KEY1", "KEY2"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, "KEY1,KEY2", a.Payload())
}

func TestNewRejectsSeparators(t *testing.T) {
	tests := []struct {
		name    string
		verb    string
		bot     string
		payload []string
		wantErr error
	}{
		{name: "empty verb", verb: "", wantErr: ErrEmptyVerb},
		{name: "verb with space", verb: "far m", wantErr: ErrInvalidArgument},
		{name: "bot with space", verb: "farm", bot: "al ice", wantErr: ErrInvalidArgument},
		{name: "bot with tab", verb: "farm", bot: "al\tice", wantErr: ErrInvalidArgument},
		{name: "payload line with delimiter", verb: "redeem", bot: "alice", payload: []string{"KEY1,KEY2"}, wantErr: ErrInvalidArgument},
		{name: "payload line with inner space", verb: "redeem", bot: "alice", payload: []string{"KEY 1"}, wantErr: ErrInvalidArgument},
		{name: "payload without bot", verb: "redeem", payload: []string{"KEY1"}, wantErr: ErrPayloadWithoutBot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.verb, tt.bot, tt.payload)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLabel(t *testing.T) {
	global, err := New("statusall", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "!statusall", global.Label())

	scoped, err := New("farm", "alice", nil)
	require.NoError(t, err)
	assert.Equal(t, "!farm <alice>", scoped.Label())
}

func TestVerbBuild(t *testing.T) {
	redeem, ok := Lookup("redeem")
	require.True(t, ok)
	cmd, err := redeem.Build("alice", []string{"KEY1", "KEY2"})
	require.NoError(t, err)
	assert.Equal(t, "redeem alice KEY1,KEY2", cmd.String())

	farm, ok := Lookup("farm")
	require.True(t, ok)
	cmd, err = farm.Build("alice", []string{"ignored"})
	require.NoError(t, err)
	assert.Equal(t, "farm alice", cmd.String())

	_, err = farm.Build("", nil)
	assert.ErrorIs(t, err, ErrBotRequired)

	statusAll, ok := Lookup("statusall")
	require.True(t, ok)
	cmd, err = statusAll.Build("alice", []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, "statusall", cmd.String())

	_, ok = Lookup("nope")
	assert.False(t, ok)
}

func TestVerbKeysAreUnique(t *testing.T) {
	seen := make(map[string]string)
	for _, v := range Verbs {
		if prev, dup := seen[v.Key]; dup {
			t.Fatalf("key %q bound to both %s and %s", v.Key, prev, v.Name)
		}
		seen[v.Key] = v.Name
	}
}

func TestRejoinSendsRejoinChat(t *testing.T) {
	rejoin, ok := Lookup("rejoinchat")
	require.True(t, ok)
	assert.Equal(t, "j", rejoin.Key)

	cmd, err := rejoin.Build("alice", nil)
	require.NoError(t, err)
	assert.Equal(t, "rejoinchat alice", cmd.String())

	_, ok = Lookup("rejoin")
	assert.False(t, ok)
}
