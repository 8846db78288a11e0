package cmd

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fragbridge/internal/syncer"
)

func TestReportSync(t *testing.T) {
	markerErr := errors.New("cannot send messages")

	cases := []struct {
		name    string
		outcome syncer.Outcome
		err     error
		wantMsg string
		wantErr string
	}{
		{
			name:    "created",
			outcome: syncer.OutcomeCreated,
			wantMsg: "mirrored to the knowledge base",
		},
		{
			name:    "created but marker post failed",
			outcome: syncer.OutcomeCreated,
			err:     markerErr,
			wantErr: "confirmation marker could not be posted",
		},
		{
			name:    "already processed",
			outcome: syncer.OutcomeSkipped,
			wantMsg: "already processed",
		},
		{
			name:    "unresolvable",
			outcome: syncer.OutcomeSkipped,
			err:     errors.New("fetch failed"),
			wantErr: "could not be resolved",
		},
		{
			name:    "failed",
			outcome: syncer.OutcomeFailed,
			err:     errors.New("api rejected"),
			wantErr: "failed",
		},
		{
			name:    "untracked",
			outcome: syncer.OutcomeUntracked,
			wantErr: "not tracked",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := reportSync("th-1", "chan-1", tc.outcome, tc.err)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				require.Empty(t, msg, "an errored run must not print a success line")
				return
			}
			require.NoError(t, err)
			require.Contains(t, msg, tc.wantMsg)
		})
	}
}
