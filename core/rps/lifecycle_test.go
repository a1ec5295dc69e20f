package rps

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obeworks/kurikulum/core"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		action  Action
		want    Status
		wantErr bool
	}{
		{name: "update draft", from: StatusDraft, action: ActionUpdate, want: StatusDraft},
		{name: "update revised", from: StatusRevised, action: ActionUpdate, want: StatusRevised},
		{name: "update submitted", from: StatusSubmitted, action: ActionUpdate, wantErr: true},
		{name: "update approved", from: StatusApproved, action: ActionUpdate, wantErr: true},
		{name: "submit draft", from: StatusDraft, action: ActionSubmit, want: StatusSubmitted},
		{name: "submit revised", from: StatusRevised, action: ActionSubmit, want: StatusSubmitted},
		{name: "submit submitted", from: StatusSubmitted, action: ActionSubmit, wantErr: true},
		{name: "submit active", from: StatusActive, action: ActionSubmit, wantErr: true},
		{name: "approve submitted", from: StatusSubmitted, action: ActionApprove, want: StatusApproved},
		{name: "approve draft", from: StatusDraft, action: ActionApprove, wantErr: true},
		{name: "revise submitted", from: StatusSubmitted, action: ActionRevise, want: StatusRevised},
		{name: "revise approved", from: StatusApproved, action: ActionRevise, wantErr: true},
		{name: "activate approved", from: StatusApproved, action: ActionActivate, want: StatusActive},
		{name: "activate draft", from: StatusDraft, action: ActionActivate, wantErr: true},
		{name: "activate active", from: StatusActive, action: ActionActivate, wantErr: true},
		{name: "archive draft", from: StatusDraft, action: ActionArchive, want: StatusArchived},
		{name: "archive submitted", from: StatusSubmitted, action: ActionArchive, want: StatusArchived},
		{name: "archive active", from: StatusActive, action: ActionArchive, want: StatusArchived},
		{name: "archive archived", from: StatusArchived, action: ActionArchive, wantErr: true},
		{name: "archive unknown status", from: Status("lol"), action: ActionArchive, wantErr: true},
		{name: "delete draft", from: StatusDraft, action: ActionDelete, want: StatusDraft},
		{name: "delete revised", from: StatusRevised, action: ActionDelete, wantErr: true},
		{name: "unknown action", from: StatusDraft, action: Action("publish"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Transition(tt.from, tt.action)
			if tt.wantErr {
				require.Error(t, err)
				var te *core.TransitionError
				require.True(t, errors.As(err, &te))
				assert.Equal(t, tt.from.String(), te.From)
				assert.Equal(t, string(tt.action), te.Action)
				assert.Equal(t, core.KindConflict, core.Classify(err))
				assert.False(t, CanTransition(tt.from, tt.action))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, CanTransition(tt.from, tt.action))
		})
	}
}

func TestRPS_IsEditable(t *testing.T) {
	for _, st := range AllStatuses() {
		want := st == StatusDraft || st == StatusRevised
		assert.Equal(t, want, RPS{Status: st}.IsEditable(), st.String())
	}
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus(" Approved ")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, st)

	_, err = ParseStatus("published")
	assert.True(t, core.IsValidation(err))
}
