package store

import (
	"testing"

	"github.com/safar/go-order-store/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestCanTransitionLegalEdges(t *testing.T) {
	legal := [][2]string{
		{models.OrderStatusPending, models.OrderStatusProcessing},
		{models.OrderStatusProcessing, models.OrderStatusShipped},
		{models.OrderStatusShipped, models.OrderStatusDelivered},
		{models.OrderStatusPending, models.OrderStatusCancelled},
		{models.OrderStatusProcessing, models.OrderStatusCancelled},
	}

	for _, edge := range legal {
		assert.True(t, CanTransition(edge[0], edge[1]), "%s -> %s should be legal", edge[0], edge[1])
	}
}

func TestCanTransitionRejectsEverythingElse(t *testing.T) {
	statuses := []string{
		models.OrderStatusPending,
		models.OrderStatusProcessing,
		models.OrderStatusShipped,
		models.OrderStatusDelivered,
		models.OrderStatusCancelled,
	}

	legal := map[[2]string]bool{
		{models.OrderStatusPending, models.OrderStatusProcessing}:   true,
		{models.OrderStatusProcessing, models.OrderStatusShipped}:   true,
		{models.OrderStatusShipped, models.OrderStatusDelivered}:    true,
		{models.OrderStatusPending, models.OrderStatusCancelled}:    true,
		{models.OrderStatusProcessing, models.OrderStatusCancelled}: true,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			if legal[[2]string{from, to}] {
				continue
			}
			assert.False(t, CanTransition(from, to), "%s -> %s should be rejected", from, to)
		}
	}
}

func TestCanTransitionUnknownStatus(t *testing.T) {
	assert.False(t, CanTransition("draft", models.OrderStatusPending))
	assert.False(t, CanTransition(models.OrderStatusPending, "draft"))
}

func TestStatusPredecessors(t *testing.T) {
	assert.ElementsMatch(t,
		[]string{models.OrderStatusPending, models.OrderStatusProcessing},
		statusPredecessors(models.OrderStatusCancelled))
	assert.ElementsMatch(t,
		[]string{models.OrderStatusPending},
		statusPredecessors(models.OrderStatusProcessing))
	assert.ElementsMatch(t,
		[]string{models.OrderStatusShipped},
		statusPredecessors(models.OrderStatusDelivered))
	assert.Empty(t, statusPredecessors(models.OrderStatusPending))
}

func TestIsOrderStatus(t *testing.T) {
	for status := range orderStatusTransitions {
		assert.True(t, isOrderStatus(status))
	}
	assert.False(t, isOrderStatus("confirmed"))
	assert.False(t, isOrderStatus(""))
	assert.False(t, isOrderStatus("Pending"))
}
