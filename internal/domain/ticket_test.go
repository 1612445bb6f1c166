package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTicketStatus(t *testing.T) {
	testCases := []struct {
		name   string
		raw    string
		want   TicketStatus
		wantOK bool
	}{
		{name: "open", raw: "open", want: TicketStatusOpen, wantOK: true},
		{name: "mixed case and spaces", raw: "  Escalated ", want: TicketStatusEscalated, wantOK: true},
		{name: "closed", raw: "CLOSED", want: TicketStatusClosed, wantOK: true},
		{name: "unknown value", raw: "pending", wantOK: false},
		{name: "empty", raw: "", wantOK: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseTicketStatus(tc.raw)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTicketPriority(t *testing.T) {
	assert.False(t, TicketPriority(0).Valid())
	assert.True(t, TicketPriorityHigh.Valid())
	assert.True(t, TicketPriorityLow.Valid())
	assert.False(t, TicketPriority(4).Valid())

	assert.Equal(t, TicketPriorityMedium, TicketPriorityLow.Escalated())
	assert.Equal(t, TicketPriorityHigh, TicketPriorityMedium.Escalated())
	assert.Equal(t, TicketPriorityHigh, TicketPriorityHigh.Escalated())
}

func TestTicketStatusTerminal(t *testing.T) {
	for _, status := range TicketStatuses {
		assert.Equal(t, status == TicketStatusClosed, status.Terminal(), string(status))
	}
}
