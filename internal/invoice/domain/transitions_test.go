package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissiveTransitionsAllowAnyTarget(t *testing.T) {
	graph := PermissiveTransitions()
	statuses := []Status{StatusDraft, StatusSent, StatusPaid, StatusOverdue}

	for _, from := range statuses {
		for _, to := range statuses {
			assert.True(t, graph.Allowed(from, to), "%s -> %s", from, to)
		}
	}
}

func TestStrictTransitions(t *testing.T) {
	graph := StrictTransitions()

	allowed := [][2]Status{
		{StatusDraft, StatusSent},
		{StatusSent, StatusPaid},
		{StatusSent, StatusOverdue},
		{StatusOverdue, StatusPaid},
	}
	for _, pair := range allowed {
		assert.True(t, graph.Allowed(pair[0], pair[1]), "%s -> %s", pair[0], pair[1])
	}

	denied := [][2]Status{
		{StatusDraft, StatusPaid},
		{StatusDraft, StatusOverdue},
		{StatusPaid, StatusSent},
		{StatusPaid, StatusDraft},
		{StatusOverdue, StatusDraft},
		{StatusOverdue, StatusSent},
	}
	for _, pair := range denied {
		assert.False(t, graph.Allowed(pair[0], pair[1]), "%s -> %s", pair[0], pair[1])
	}
}

func TestStrictTransitionsAllowRepeatingCurrentStatus(t *testing.T) {
	graph := StrictTransitions()
	for _, status := range []Status{StatusDraft, StatusSent, StatusPaid, StatusOverdue} {
		assert.True(t, graph.Allowed(status, status), "%s -> %s", status, status)
	}
}

func TestParseStatus(t *testing.T) {
	for _, raw := range []string{"draft", "sent", "paid", "overdue"} {
		status, ok := ParseStatus(raw)
		require.True(t, ok, "expected %q to parse", raw)
		assert.Equal(t, raw, string(status))
	}

	for _, raw := range []string{"", "DRAFT", "Sent", "void", "archived"} {
		_, ok := ParseStatus(raw)
		assert.False(t, ok, "expected %q to be rejected", raw)
	}
}
