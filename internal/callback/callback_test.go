package callback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	rid := "0190f3c2-7a4e-7b1a-9c44-1f2e3d4c5b6a"
	cases := []Data{
		{Action: Taken, UserID: "42", ReminderID: rid, SlotIndex: 3},
		{Action: Skip, UserID: "42", ReminderID: rid},
		{Action: Description, UserID: "42", ReminderID: rid},
		{Action: SaveReminder, ReminderID: rid},
		{Action: ConfirmArchive, ReminderID: rid},
		{Action: RepeatCourse, ArchiveID: rid},
		{Action: CleanupAll, UserID: "42"},
		{Action: CleanupSelective, UserID: "42"},
		{Action: CleanupPill, UserID: "42", PillName: "Vitamin_D"},
		{Action: ConfirmCleanup, UserID: "42", PillName: "Omega 3"},
		{Action: NewReminder},
		{Action: CleanupCancel},
	}
	for _, want := range cases {
		t.Run(string(want.Action), func(t *testing.T) {
			got, err := Parse(want.Encode())
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestParse_WireFormat(t *testing.T) {
	d, err := Parse("taken_123_abc_1")
	require.NoError(t, err)
	assert.Equal(t, Data{Action: Taken, UserID: "123", ReminderID: "abc", SlotIndex: 1}, d)

	d, err = Parse("confirm_cleanup_pill_123_Fish oil")
	require.NoError(t, err)
	assert.Equal(t, ConfirmCleanup, d.Action)
	assert.Equal(t, "Fish oil", d.PillName)
}

func TestParse_Rejects(t *testing.T) {
	for _, s := range []string{"", "bogus", "taken_1_r", "taken_1_r_x", "taken_1_r_-1", "cleanup_pill_1", "save_reminder_"} {
		_, err := Parse(s)
		assert.Error(t, err, s)
	}
}

func TestFits(t *testing.T) {
	assert.True(t, Data{Action: Taken, UserID: "1234567890", ReminderID: "0190f3c2-7a4e-7b1a-9c44-1f2e3d4c5b6a", SlotIndex: 5}.Fits())
	assert.False(t, Data{Action: ConfirmCleanup, UserID: "1234567890", PillName: "An extremely long supplement name that goes on"}.Fits())
}
